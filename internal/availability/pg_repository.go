package availability

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.StartTime,
		&s.EndTime,
		&s.Booked,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	return &s, nil
}

func (r *PgRepository) Insert(ctx context.Context, doctorID uuid.UUID, start, end time.Time) (*Slot, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO availability_slots (id, doctor_id, start_time, end_time, booked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, false, now(), now())
		RETURNING id, doctor_id, start_time, end_time, booked, created_at, updated_at
	`, id, doctorID, start, end)

	slot, err := scanSlot(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrSlotExists
		}
		return nil, err
	}
	return slot, nil
}

// Claim relies on the conditional UPDATE as the store-level atomic
// check-and-set: two concurrent claims for the same doctor-time can
// never both match the unbooked row.
func (r *PgRepository) Claim(ctx context.Context, doctorID uuid.UUID, start time.Time) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE availability_slots
		SET booked = true,
		    updated_at = now()
		WHERE doctor_id = $1
		  AND start_time = $2
		  AND NOT booked
		RETURNING id, doctor_id, start_time, end_time, booked, created_at, updated_at
	`, doctorID, start)

	slot, err := scanSlot(row)
	if err == nil {
		return slot, nil
	}
	if !errors.Is(err, ErrSlotNotFound) {
		return nil, err
	}

	// Nothing matched: distinguish a missing slot from a lost race.
	var booked bool
	err = r.pool.QueryRow(ctx, `
		SELECT booked
		FROM availability_slots
		WHERE doctor_id = $1 AND start_time = $2
	`, doctorID, start).Scan(&booked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	if booked {
		return nil, ErrSlotTaken
	}
	return nil, ErrSlotNotFound
}

// Release keys on (doctor_id, start_time) so callers that only know the
// appointment's doctor and time can free the slot without the slot id.
func (r *PgRepository) Release(ctx context.Context, handle SlotHandle) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE availability_slots
		SET booked = false,
		    updated_at = now()
		WHERE doctor_id = $1
		  AND start_time = $2
		  AND booked
	`, handle.DoctorID, handle.StartTime)
	return err
}

func (r *PgRepository) HasBookedSlotOn(ctx context.Context, doctorID uuid.UUID, date time.Time) (bool, error) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM availability_slots
			WHERE doctor_id = $1
			  AND booked
			  AND start_time >= $2
			  AND start_time < $3
		)
	`, doctorID, day, day.AddDate(0, 0, 1)).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PgRepository) List(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, start_time, end_time, booked, created_at, updated_at
		FROM availability_slots
		WHERE doctor_id = $1
		  AND start_time >= $2
		  AND start_time < $3
		ORDER BY start_time
	`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) Delete(ctx context.Context, doctorID uuid.UUID, start time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM availability_slots
		WHERE doctor_id = $1
		  AND start_time = $2
		  AND NOT booked
	`, doctorID, start)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var booked bool
		err = r.pool.QueryRow(ctx, `
			SELECT booked
			FROM availability_slots
			WHERE doctor_id = $1 AND start_time = $2
		`, doctorID, start).Scan(&booked)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrSlotNotFound
			}
			return err
		}
		return ErrSlotTaken
	}
	return nil
}
