package availability

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSlotExists   = errors.New("slot already published for that start time")
	ErrSlotNotFound = errors.New("slot not found")
	ErrSlotTaken    = errors.New("slot already booked")
	ErrInvalidSlot  = errors.New("slot end must be after start")
)

// Repository contains the slot DB interactions used by the ledger.
type Repository interface {
	Insert(ctx context.Context, doctorID uuid.UUID, start, end time.Time) (*Slot, error)

	// Claim atomically marks the slot for (doctorID, start) booked and
	// returns it. ErrSlotNotFound when no slot starts then, ErrSlotTaken
	// when the slot is already booked.
	Claim(ctx context.Context, doctorID uuid.UUID, start time.Time) (*Slot, error)

	// Release marks the slot unbooked. Releasing a free or missing slot
	// is a no-op.
	Release(ctx context.Context, handle SlotHandle) error

	HasBookedSlotOn(ctx context.Context, doctorID uuid.UUID, date time.Time) (bool, error)
	List(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Slot, error)

	// Delete removes an unbooked slot; ErrSlotTaken when it is booked.
	Delete(ctx context.Context, doctorID uuid.UUID, start time.Time) error
}
