// Package availability owns doctor time-slot state. The ledger is the
// only writer of the booked flag; the lifecycle manager drives it
// through the claim/release pair.
package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Ledger struct {
	repo Repository
	log  zerolog.Logger
}

func NewLedger(repo Repository, log zerolog.Logger) *Ledger {
	return &Ledger{
		repo: repo,
		log:  log.With().Str("component", "availability").Logger(),
	}
}

// PublishSlot creates an unbooked slot. ErrSlotExists when the doctor
// already has a slot starting at that time.
func (l *Ledger) PublishSlot(ctx context.Context, doctorID uuid.UUID, start, end time.Time) (*Slot, error) {
	if !end.After(start) {
		return nil, ErrInvalidSlot
	}

	slot, err := l.repo.Insert(ctx, doctorID, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}

	l.log.Debug().
		Stringer("doctor_id", doctorID).
		Time("start", slot.StartTime).
		Msg("slot published")

	return slot, nil
}

// ClaimSlot atomically books the slot for (doctorID, start) and returns
// a handle for the compensating release.
func (l *Ledger) ClaimSlot(ctx context.Context, doctorID uuid.UUID, start time.Time) (SlotHandle, error) {
	slot, err := l.repo.Claim(ctx, doctorID, start.UTC())
	if err != nil {
		return SlotHandle{}, err
	}
	return slot.Handle(), nil
}

// ReleaseSlot frees a claimed slot. Releasing an already-free slot is a
// no-op, so a compensating release can be retried safely.
func (l *Ledger) ReleaseSlot(ctx context.Context, handle SlotHandle) error {
	if err := l.repo.Release(ctx, handle); err != nil {
		return fmt.Errorf("release slot %s: %w", handle.SlotID, err)
	}
	return nil
}

// IsDoctorFree reports whether the doctor has no booked slot on the
// given date.
func (l *Ledger) IsDoctorFree(ctx context.Context, doctorID uuid.UUID, date time.Time) (bool, error) {
	busy, err := l.repo.HasBookedSlotOn(ctx, doctorID, date)
	if err != nil {
		return false, fmt.Errorf("check doctor availability: %w", err)
	}
	return !busy, nil
}

func (l *Ledger) ListSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Slot, error) {
	return l.repo.List(ctx, doctorID, from.UTC(), to.UTC())
}

// DeleteSlot retracts published availability. A booked slot cannot be
// deleted while a live appointment references it.
func (l *Ledger) DeleteSlot(ctx context.Context, doctorID uuid.UUID, start time.Time) error {
	return l.repo.Delete(ctx, doctorID, start.UTC())
}
