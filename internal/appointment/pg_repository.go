package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.Time,
		&a.Status,
		&a.Reason,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func (r *PgRepository) Create(ctx context.Context, patientID, doctorID uuid.UUID, t time.Time, reason string) (*Appointment, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, appointment_time, status, reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'scheduled', $5, now(), now())
		RETURNING id, patient_id, doctor_id, appointment_time, status, reason, created_at, updated_at
	`, id, patientID, doctorID, t, reason)

	return scanAppointment(row)
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, patient_id, doctor_id, appointment_time, status, reason, created_at, updated_at
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING id, patient_id, doctor_id, appointment_time, status, reason, created_at, updated_at
	`, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) UpdateTime(ctx context.Context, id uuid.UUID, t time.Time, reason string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET appointment_time = $2,
		    reason = COALESCE(NULLIF($3, ''), reason),
		    updated_at = now()
		WHERE id = $1
		  AND status = 'scheduled'
		RETURNING id, patient_id, doctor_id, appointment_time, status, reason, created_at, updated_at
	`, id, t, reason)

	return scanAppointment(row)
}

func (r *PgRepository) ListForDoctorOn(ctx context.Context, doctorID uuid.UUID, date time.Time, status Status) ([]Appointment, error) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, doctor_id, appointment_time, status, reason, created_at, updated_at
		FROM appointments
		WHERE doctor_id = $1
		  AND appointment_time >= $2
		  AND appointment_time < $3
		  AND ($4 = '' OR status = $4)
		ORDER BY appointment_time
	`, doctorID, day, day.AddDate(0, 0, 1), string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) ListForPatient(ctx context.Context, patientID uuid.UUID, status Status, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, doctor_id, appointment_time, status, reason, created_at, updated_at
		FROM appointments
		WHERE patient_id = $1
		  AND ($2 = '' OR status = $2)
		ORDER BY appointment_time DESC
		LIMIT $3 OFFSET $4
	`, patientID, string(status), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
