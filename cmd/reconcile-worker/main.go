// The reconcile worker repairs the one cross-store seam that can land
// partially: a prescription written to the document store whose
// appointment never transitioned to completed. It periodically retries
// the completion step, which is safe because the transition is
// conditional on the scheduled status.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/smartclinic/clinic-backend/internal/appointment"
	"github.com/smartclinic/clinic-backend/internal/availability"
	"github.com/smartclinic/clinic-backend/internal/clinical"
	"github.com/smartclinic/clinic-backend/internal/config"
	"github.com/smartclinic/clinic-backend/internal/db"
	"github.com/smartclinic/clinic-backend/internal/directory"
	redisclient "github.com/smartclinic/clinic-backend/internal/redis"
)

const reconcileBatchSize = 200

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("config load error")
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "reconcile-worker").Logger()
	logger.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("reconcile-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancelConnect := context.WithTimeout(rootCtx, 10*time.Second)
	defer cancelConnect()

	pgPool, err := db.ConnectPostgres(connectCtx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()

	mongoClient, err := db.ConnectMongo(connectCtx, cfg.MongoURI)
	if err != nil {
		logger.Fatal().Err(err).Msg("mongo connection error")
	}
	defer func() {
		_ = mongoClient.Disconnect(context.Background())
	}()

	rdb, err := redisclient.NewRedisClient(connectCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		_ = rdb.Close()
	}()

	dirService := directory.NewService(directory.NewPgRepository(pgPool))
	ledger := availability.NewLedger(availability.NewPgRepository(pgPool), logger)
	locker := redisclient.NewRedisLocker(rdb, cfg.LockTTL)
	booking := appointment.NewService(appointment.NewPgRepository(pgPool), ledger, dirService, locker, cfg, logger)
	linker := clinical.NewLinker(clinical.NewMongoStore(mongoClient.Database(cfg.MongoDB)), booking, logger)

	// Run once at startup
	runOnce(rootCtx, linker, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping reconcile worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, linker, logger)
		}
	}
}

func runOnce(ctx context.Context, linker *clinical.Linker, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	repaired, err := linker.ReconcilePending(runCtx, reconcileBatchSize)
	if err != nil {
		logger.Error().Err(err).Msg("reconcile run error")
		return
	}
	logger.Info().Int("repaired", repaired).Dur("took", time.Since(start)).Msg("reconcile run complete")
}
