// Package db holds the store constructors.
//
// The relational schema the repositories expect:
//
//	doctors            (id uuid pk, name text, specialty text, email text unique, phone text,
//	                    created_at timestamptz, updated_at timestamptz)
//	patients           (id uuid pk, name text, email text unique, phone text,
//	                    created_at timestamptz, updated_at timestamptz)
//	availability_slots (id uuid pk, doctor_id uuid references doctors on delete cascade,
//	                    start_time timestamptz, end_time timestamptz, booked boolean,
//	                    created_at timestamptz, updated_at timestamptz,
//	                    unique (doctor_id, start_time))
//	appointments       (id uuid pk, patient_id uuid references patients on delete cascade,
//	                    doctor_id uuid references doctors on delete cascade,
//	                    appointment_time timestamptz, status text, reason text,
//	                    created_at timestamptz, updated_at timestamptz)
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func ConnectPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 15 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}
