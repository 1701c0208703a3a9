// Package clinical links document-store clinical records to relational
// appointments. The two stores share no transaction, so the linker
// writes the document first and drives the status transition second;
// the transition is the retryable step when the pair lands partially.
package clinical

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/smartclinic/clinic-backend/internal/appointment"
)

// Appointments is the slice of the lifecycle manager the linker uses
// for cross-store existence checks and the completion transition.
type Appointments interface {
	Get(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	MarkCompleted(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
}

type Linker struct {
	store Store
	appts Appointments
	log   zerolog.Logger
}

func NewLinker(store Store, appts Appointments, log zerolog.Logger) *Linker {
	return &Linker{
		store: store,
		appts: appts,
		log:   log.With().Str("component", "clinical").Logger(),
	}
}

// AttachNote appends a timestamped note, creating the record on first
// write. Notes may be added during a visit, so no status is required —
// only that the appointment exists in the relational store.
func (l *Linker) AttachNote(ctx context.Context, appointmentID, authorDoctorID uuid.UUID, text string) (*Record, error) {
	appt, err := l.appts.Get(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, appointment.ErrAppointmentNotFound) {
			return nil, ErrAppointmentMissing
		}
		return nil, fmt.Errorf("check appointment: %w", err)
	}

	note := Note{
		AuthorDoctorID: authorDoctorID.String(),
		Text:           text,
		CreatedAt:      time.Now().UTC(),
	}

	rec, err := l.store.AppendNote(ctx, appt.PatientID, appointmentID, note)
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// AttachPrescription appends a prescription entry and, when the visit
// is still scheduled, completes the appointment: issuing a prescription
// completes the visit. A lost race against an already-completed status
// means convergence was reached and is not an error; any other
// transition failure surfaces as ErrPartialCompletion with the document
// write left standing.
func (l *Linker) AttachPrescription(ctx context.Context, appointmentID uuid.UUID, p Prescription) (*Record, error) {
	appt, err := l.appts.Get(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, appointment.ErrAppointmentNotFound) {
			return nil, ErrAppointmentMissing
		}
		return nil, fmt.Errorf("check appointment: %w", err)
	}

	p.CreatedAt = time.Now().UTC()

	rec, err := l.store.AppendPrescription(ctx, appt.PatientID, appointmentID, p)
	if err != nil {
		return nil, err
	}

	if appt.Status == appointment.StatusScheduled {
		if _, err := l.appts.MarkCompleted(ctx, appointmentID); err != nil {
			if !errors.Is(err, appointment.ErrInvalidTransition) {
				l.log.Error().Err(err).
					Stringer("appointment_id", appointmentID).
					Msg("completion pending after prescription write")
				return rec, fmt.Errorf("%w: appointment %s: %v", ErrPartialCompletion, appointmentID, err)
			}
			// Someone else completed it between the read and the
			// transition; both stores already agree.
		}
	}

	return rec, nil
}

// GetRecord returns the record for the appointment, or (nil, nil) when
// none exists yet.
func (l *Linker) GetRecord(ctx context.Context, appointmentID uuid.UUID) (*Record, error) {
	return l.store.Get(ctx, appointmentID)
}

// ReconcilePending finds records whose prescription write landed but
// whose appointment never completed, and retries the transition. The
// reconcile worker calls this periodically.
func (l *Linker) ReconcilePending(ctx context.Context, limit int) (int, error) {
	records, err := l.store.ListPrescribed(ctx, limit)
	if err != nil {
		return 0, err
	}

	repaired := 0
	for _, rec := range records {
		apptID, err := uuid.Parse(rec.AppointmentID)
		if err != nil {
			l.log.Warn().Str("appointment_id", rec.AppointmentID).Msg("unparseable appointment id in record")
			continue
		}

		appt, err := l.appts.Get(ctx, apptID)
		if err != nil {
			if errors.Is(err, appointment.ErrAppointmentNotFound) {
				continue
			}
			return repaired, fmt.Errorf("load appointment %s: %w", apptID, err)
		}
		if appt.Status != appointment.StatusScheduled {
			continue
		}

		if _, err := l.appts.MarkCompleted(ctx, apptID); err != nil {
			if errors.Is(err, appointment.ErrInvalidTransition) {
				continue
			}
			l.log.Error().Err(err).Stringer("appointment_id", apptID).Msg("reconcile completion failed")
			continue
		}

		repaired++
		l.log.Info().Stringer("appointment_id", apptID).Msg("straggler appointment completed")
	}

	return repaired, nil
}
