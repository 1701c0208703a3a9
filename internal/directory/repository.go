package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound  = errors.New("doctor not found")
	ErrPatientNotFound = errors.New("patient not found")
	ErrDoctorExists    = errors.New("doctor with that email already exists")
	ErrPatientExists   = errors.New("patient with that email already exists")
)

// Repository contains all DB interactions for doctors and patients.
type Repository interface {
	CreateDoctor(ctx context.Context, d Doctor) (*Doctor, error)
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetDoctorByEmail(ctx context.Context, email string) (*Doctor, error)
	UpdateDoctor(ctx context.Context, id uuid.UUID, upd DoctorUpdate) (*Doctor, error)
	// DeleteDoctor removes the doctor together with their slots and
	// appointments in one transaction.
	DeleteDoctor(ctx context.Context, id uuid.UUID) error
	SearchDoctors(ctx context.Context, name, specialty string) ([]Doctor, error)

	CreatePatient(ctx context.Context, p Patient) (*Patient, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetPatientByEmail(ctx context.Context, email string) (*Patient, error)
	UpdatePatient(ctx context.Context, id uuid.UUID, upd PatientUpdate) (*Patient, error)
	// DeletePatient removes the patient and cascades to their appointments.
	DeletePatient(ctx context.Context, id uuid.UUID) error
}

// Directory is the narrow existence-check view the booking core consumes.
type Directory interface {
	DoctorExists(ctx context.Context, id uuid.UUID) error
	PatientExists(ctx context.Context, id uuid.UUID) error
}
