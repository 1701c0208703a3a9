// simulate drives concurrent booking traffic against a running
// api-server to observe contention behavior: it deliberately aims many
// patients at overlapping doctor-times and reports how bookings,
// conflicts, and errors distribute.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/smartclinic/clinic-backend/internal/config"
	"github.com/smartclinic/clinic-backend/internal/db"
	"github.com/smartclinic/clinic-backend/internal/identity"
)

var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

type target struct {
	DoctorID uuid.UUID
	Start    time.Time
}

type caller struct {
	PatientID uuid.UUID
	Token     string
}

type metrics struct {
	total     int64
	booked    int64
	conflicts int64
	errors    int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (m *metrics) record(latency time.Duration, status int) {
	atomic.AddInt64(&m.total, 1)
	switch {
	case status == http.StatusCreated:
		atomic.AddInt64(&m.booked, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&m.conflicts, 1)
	default:
		atomic.AddInt64(&m.errors, 1)
	}

	m.mu.Lock()
	m.latencies = append(m.latencies, latency)
	m.mu.Unlock()
}

func (m *metrics) percentile(p float64) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.latencies) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(m.latencies))
	copy(sorted, m.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

func main() {
	var (
		baseURL  = flag.String("base-url", "http://127.0.0.1:8080", "api-server base URL")
		workers  = flag.Int("workers", 16, "concurrent booking workers")
		duration = flag.Duration("duration", 30*time.Second, "how long to run")
		hotspots = flag.Int("hotspots", 10, "distinct doctor-times all workers compete for")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	targets, err := loadOpenSlots(ctx, pool, *hotspots)
	if err != nil {
		logger.Fatal().Err(err).Msg("load open slots")
	}
	callers, err := loadCallers(ctx, pool, cfg, *workers*4)
	if err != nil {
		logger.Fatal().Err(err).Msg("load patients")
	}
	if len(targets) == 0 || len(callers) == 0 {
		logger.Fatal().Msg("no seed data found, run cmd/seed first")
	}

	logger.Info().
		Int("workers", *workers).
		Int("targets", len(targets)).
		Int("callers", len(callers)).
		Dur("duration", *duration).
		Msg("starting simulation")

	runCtx, stop := context.WithTimeout(context.Background(), *duration)
	defer stop()

	var m metrics
	var wg sync.WaitGroup

	client := &http.Client{Timeout: 10 * time.Second}

	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))

			for runCtx.Err() == nil {
				t := targets[rng.Intn(len(targets))]
				c := callers[rng.Intn(len(callers))]
				bookOnce(runCtx, client, *baseURL, c, t, &m)
			}
		}(time.Now().UnixNano() + int64(w))
	}

	wg.Wait()

	report(&m)
}

func loadOpenSlots(ctx context.Context, pool *pgxpool.Pool, limit int) ([]target, error) {
	rows, err := pool.Query(ctx, `
		SELECT doctor_id, start_time
		FROM availability_slots
		WHERE NOT booked
		  AND start_time > now()
		ORDER BY start_time
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []target
	for rows.Next() {
		var t target
		if err := rows.Scan(&t.DoctorID, &t.Start); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func report(m *metrics) {
	fmt.Println("---------------- simulation report ----------------")
	fmt.Printf("requests:  %d\n", atomic.LoadInt64(&m.total))
	fmt.Printf("booked:    %d\n", atomic.LoadInt64(&m.booked))
	fmt.Printf("conflicts: %d\n", atomic.LoadInt64(&m.conflicts))
	fmt.Printf("errors:    %d\n", atomic.LoadInt64(&m.errors))
	fmt.Printf("latency p50=%s p95=%s p99=%s\n", m.percentile(0.50), m.percentile(0.95), m.percentile(0.99))
}

func bookOnce(ctx context.Context, client *http.Client, baseURL string, c caller, t target, m *metrics) {
	body, _ := json.Marshal(map[string]any{
		"patient_id": c.PatientID.String(),
		"doctor_id":  t.DoctorID.String(),
		"time":       t.Start.Format(time.RFC3339),
		"reason":     "load test visit",
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/appointments", bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			m.record(time.Since(start), 0)
		}
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	m.record(time.Since(start), resp.StatusCode)
}

func loadCallers(ctx context.Context, pool *pgxpool.Pool, cfg config.Config, limit int) ([]caller, error) {
	rows, err := pool.Query(ctx, `SELECT id FROM patients LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tokens := identity.NewJWTResolver(cfg.JWTSecret, cfg.TokenTTL)

	var result []caller
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}

		token, err := tokens.Mint(identity.Identity{Role: identity.RolePatient, SubjectID: id})
		if err != nil {
			return nil, err
		}
		result = append(result, caller{PatientID: id, Token: token})
	}
	return result, rows.Err()
}
