package directory

import (
	"time"

	"github.com/google/uuid"
)

type Doctor struct {
	ID        uuid.UUID
	Name      string
	Specialty string
	Email     string
	Phone     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Phone     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DoctorUpdate carries the mutable doctor fields; nil means leave as is.
type DoctorUpdate struct {
	Name      *string
	Specialty *string
	Phone     *string
}

type PatientUpdate struct {
	Name  *string
	Phone *string
}
