package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/smartclinic/clinic-backend/internal/api"
	"github.com/smartclinic/clinic-backend/internal/appointment"
	"github.com/smartclinic/clinic-backend/internal/availability"
	"github.com/smartclinic/clinic-backend/internal/clinical"
	"github.com/smartclinic/clinic-backend/internal/config"
	"github.com/smartclinic/clinic-backend/internal/db"
	"github.com/smartclinic/clinic-backend/internal/directory"
	"github.com/smartclinic/clinic-backend/internal/identity"
	redisclient "github.com/smartclinic/clinic-backend/internal/redis"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("config load error")
	}

	logger := newLogger(cfg.Env)
	logger.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancelConnect := context.WithTimeout(rootCtx, 10*time.Second)
	defer cancelConnect()

	pgPool, err := db.ConnectPostgres(connectCtx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	mongoClient, err := db.ConnectMongo(connectCtx, cfg.MongoURI)
	if err != nil {
		logger.Fatal().Err(err).Msg("mongo connection error")
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			logger.Error().Err(err).Msg("error closing mongo")
		}
	}()
	logger.Info().Msg("connected to Mongo")

	rdb, err := redisclient.NewRedisClient(connectCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	recordStore := clinical.NewMongoStore(mongoClient.Database(cfg.MongoDB))
	if err := recordStore.EnsureIndexes(connectCtx); err != nil {
		logger.Fatal().Err(err).Msg("mongo index error")
	}

	dirService := directory.NewService(directory.NewPgRepository(pgPool))
	ledger := availability.NewLedger(availability.NewPgRepository(pgPool), logger)
	locker := redisclient.NewRedisLocker(rdb, cfg.LockTTL)
	booking := appointment.NewService(appointment.NewPgRepository(pgPool), ledger, dirService, locker, cfg, logger)
	linker := clinical.NewLinker(recordStore, booking, logger)
	tokens := identity.NewJWTResolver(cfg.JWTSecret, cfg.TokenTTL)

	router := api.NewRouter(api.RouterConfig{
		Booking:    booking,
		Ledger:     ledger,
		Records:    linker,
		Directory:  dirService,
		Resolver:   tokens,
		Tokens:     tokens,
		PgPool:     pgPool,
		Redis:      rdb,
		Mongo:      mongoClient,
		AdminEmail: cfg.AdminEmail,
		Env:        cfg.Env,
		Version:    version,
		Log:        logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()
	logger.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "dev" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
