package clinical

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrAppointmentMissing = errors.New("appointment does not exist for this record")

	// ErrPartialCompletion reports that the document write landed but
	// the relational status transition did not; retrying the completion
	// step alone converges the two stores.
	ErrPartialCompletion = errors.New("record written but appointment completion pending")
)

// Store contains the document-store interactions for clinical records.
// Appends create the record on first write.
type Store interface {
	AppendNote(ctx context.Context, patientID, appointmentID uuid.UUID, note Note) (*Record, error)
	AppendPrescription(ctx context.Context, patientID, appointmentID uuid.UUID, p Prescription) (*Record, error)

	// Get returns (nil, nil) when no record exists yet.
	Get(ctx context.Context, appointmentID uuid.UUID) (*Record, error)

	// ListPrescribed returns records holding at least one prescription,
	// for the reconcile worker.
	ListPrescribed(ctx context.Context, limit int) ([]Record, error)
}
