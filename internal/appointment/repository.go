package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrAppointmentNotFound = errors.New("appointment not found")

// Repository contains the appointment DB interactions used by the service.
type Repository interface {
	Create(ctx context.Context, patientID, doctorID uuid.UUID, t time.Time, reason string) (*Appointment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// UpdateStatus flips status only when the current status matches
	// from; ErrAppointmentNotFound when nothing matched.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	// UpdateTime moves a scheduled appointment to a new time;
	// ErrAppointmentNotFound when the row is absent or not scheduled.
	UpdateTime(ctx context.Context, id uuid.UUID, t time.Time, reason string) (*Appointment, error)

	ListForDoctorOn(ctx context.Context, doctorID uuid.UUID, date time.Time, status Status) ([]Appointment, error)
	ListForPatient(ctx context.Context, patientID uuid.UUID, status Status, limit, offset int) ([]Appointment, error)
}
