// Package appointment owns the appointment lifecycle: booking, visits
// through their status graph, and the compensating slot work needed to
// keep the availability ledger consistent with appointment state.
package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/smartclinic/clinic-backend/internal/availability"
	"github.com/smartclinic/clinic-backend/internal/config"
	"github.com/smartclinic/clinic-backend/internal/directory"
	redisclient "github.com/smartclinic/clinic-backend/internal/redis"
)

var (
	ErrPastAppointmentTime = errors.New("appointment time must be in the future")
	ErrNotOwner            = errors.New("appointment belongs to a different patient")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrInsideCancelWindow  = errors.New("cancellation inside the minimum lead time")
	ErrSlotContended       = errors.New("slot is currently being booked, please retry")
	ErrAppointmentBusy     = errors.New("appointment is being modified, please retry")

	// ErrCompensationFailed marks a partial failure: a mutation landed
	// but its compensating or follow-up slot work did not, so the named
	// resource needs operator or retry reconciliation.
	ErrCompensationFailed = errors.New("slot state may be inconsistent")
)

// SlotLedger is the slice of the availability ledger the lifecycle
// manager drives.
type SlotLedger interface {
	ClaimSlot(ctx context.Context, doctorID uuid.UUID, start time.Time) (availability.SlotHandle, error)
	ReleaseSlot(ctx context.Context, handle availability.SlotHandle) error
}

type Service struct {
	repo   Repository
	ledger SlotLedger
	dir    directory.Directory
	locker redisclient.Locker
	cfg    config.Config
	now    func() time.Time
	log    zerolog.Logger
}

func NewService(repo Repository, ledger SlotLedger, dir directory.Directory, locker redisclient.Locker, cfg config.Config, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		ledger: ledger,
		dir:    dir,
		locker: locker,
		cfg:    cfg,
		now:    time.Now,
		log:    log.With().Str("component", "appointment").Logger(),
	}
}

// compensationCtx detaches slot compensation from the caller's
// lifetime: a client that disconnects mid-request must not strand a
// claimed slot just because its context died with it.
func compensationCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
}

// Book claims the doctor's slot and persists a scheduled appointment as
// one unit. Existence checks run first so a doomed request never claims
// a slot; a failed persist releases the claim again.
func (s *Service) Book(ctx context.Context, patientID, doctorID uuid.UUID, t time.Time, reason string) (*Appointment, error) {
	if err := s.dir.PatientExists(ctx, patientID); err != nil {
		return nil, err
	}
	if err := s.dir.DoctorExists(ctx, doctorID); err != nil {
		return nil, err
	}
	if !t.After(s.now()) {
		return nil, ErrPastAppointmentTime
	}
	t = t.UTC()

	var created *Appointment

	err := s.locker.WithLock(ctx, redisclient.BookingKey(doctorID, t), func(lockCtx context.Context) error {
		handle, err := s.ledger.ClaimSlot(lockCtx, doctorID, t)
		if err != nil {
			return err
		}

		appt, err := s.repo.Create(lockCtx, patientID, doctorID, t, reason)
		if err != nil {
			relCtx, cancel := compensationCtx(lockCtx)
			defer cancel()
			if relErr := s.ledger.ReleaseSlot(relCtx, handle); relErr != nil {
				s.log.Error().Err(relErr).
					Stringer("slot_id", handle.SlotID).
					Msg("compensating release failed after booking error")
				return fmt.Errorf("%w: slot %s held after failed booking: %v", ErrCompensationFailed, handle.SlotID, err)
			}
			return fmt.Errorf("create appointment: %w", err)
		}

		created = appt
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotContended
		}
		return nil, err
	}

	s.log.Info().
		Stringer("appointment_id", created.ID).
		Stringer("doctor_id", doctorID).
		Time("time", created.Time).
		Msg("appointment booked")

	return created, nil
}

// Reschedule moves a scheduled appointment the requester owns to a new
// time. The whole move runs under the appointment's lock so a
// concurrent cancel or completion cannot act on a half-moved row, and
// the new slot is claimed before the old one is released so a failed
// claim leaves the original reservation intact.
func (s *Service) Reschedule(ctx context.Context, apptID, requesterPatientID uuid.UUID, newTime time.Time, reason string) (*Appointment, error) {
	if !newTime.After(s.now()) {
		return nil, ErrPastAppointmentTime
	}
	newTime = newTime.UTC()

	var (
		updated *Appointment
		oldTime time.Time
	)

	err := s.locker.WithLock(ctx, redisclient.AppointmentKey(apptID), func(apptCtx context.Context) error {
		appt, err := s.repo.GetByID(apptCtx, apptID)
		if err != nil {
			return err
		}
		if appt.PatientID != requesterPatientID {
			return ErrNotOwner
		}
		if appt.Status != StatusScheduled {
			return ErrInvalidTransition
		}
		oldTime = appt.Time

		err = s.locker.WithLock(apptCtx, redisclient.BookingKey(appt.DoctorID, newTime), func(lockCtx context.Context) error {
			newHandle, err := s.ledger.ClaimSlot(lockCtx, appt.DoctorID, newTime)
			if err != nil {
				// Old claim untouched.
				return err
			}

			moved, err := s.repo.UpdateTime(lockCtx, apptID, newTime, reason)
			if err != nil {
				relCtx, cancel := compensationCtx(lockCtx)
				defer cancel()
				if relErr := s.ledger.ReleaseSlot(relCtx, newHandle); relErr != nil {
					return fmt.Errorf("%w: slot %s held after failed reschedule: %v", ErrCompensationFailed, newHandle.SlotID, err)
				}
				if errors.Is(err, ErrAppointmentNotFound) {
					return ErrInvalidTransition
				}
				return fmt.Errorf("move appointment: %w", err)
			}

			relCtx, cancel := compensationCtx(lockCtx)
			defer cancel()
			oldHandle := availability.SlotHandle{DoctorID: appt.DoctorID, StartTime: appt.Time}
			if err := s.ledger.ReleaseSlot(relCtx, oldHandle); err != nil {
				return fmt.Errorf("%w: old slot at %s still booked: %v", ErrCompensationFailed, appt.Time, err)
			}

			updated = moved
			return nil
		})
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return ErrSlotContended
		}
		return err
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrAppointmentBusy
		}
		return nil, err
	}

	s.log.Info().
		Stringer("appointment_id", apptID).
		Time("from", oldTime).
		Time("to", newTime).
		Msg("appointment rescheduled")

	return updated, nil
}

// Cancel terminates a scheduled appointment the requester owns, subject
// to the minimum cancellation lead time, and frees the slot. It runs
// under the appointment's lock and releases the slot named by the
// transitioned row, so a reschedule can never slip between the read and
// the flip and leave its new slot stranded.
func (s *Service) Cancel(ctx context.Context, apptID, requesterPatientID uuid.UUID) (*Appointment, error) {
	var cancelled *Appointment

	err := s.locker.WithLock(ctx, redisclient.AppointmentKey(apptID), func(lockCtx context.Context) error {
		appt, err := s.repo.GetByID(lockCtx, apptID)
		if err != nil {
			return err
		}
		if appt.PatientID != requesterPatientID {
			return ErrNotOwner
		}
		if appt.Status != StatusScheduled {
			return ErrInvalidTransition
		}
		if appt.Time.Sub(s.now()) < s.cfg.CancelLeadTime {
			return ErrInsideCancelWindow
		}

		updated, err := s.repo.UpdateStatus(lockCtx, apptID, StatusScheduled, StatusCancelled)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				return ErrInvalidTransition
			}
			return fmt.Errorf("cancel appointment: %w", err)
		}

		relCtx, cancelRel := compensationCtx(lockCtx)
		defer cancelRel()
		handle := availability.SlotHandle{DoctorID: updated.DoctorID, StartTime: updated.Time}
		if err := s.ledger.ReleaseSlot(relCtx, handle); err != nil {
			s.log.Error().Err(err).
				Stringer("appointment_id", apptID).
				Msg("slot release failed after cancellation")
			return fmt.Errorf("%w: slot at %s still booked after cancellation: %v", ErrCompensationFailed, updated.Time, err)
		}

		cancelled = updated
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrAppointmentBusy
		}
		return nil, err
	}

	s.log.Info().Stringer("appointment_id", apptID).Msg("appointment cancelled")

	return cancelled, nil
}

// MarkCompleted transitions scheduled -> completed. It is deliberately
// not idempotent: a second call reports ErrInvalidTransition so callers
// learn convergence was already reached. The slot stays booked, the
// window is historically consumed.
func (s *Service) MarkCompleted(ctx context.Context, apptID uuid.UUID) (*Appointment, error) {
	var updated *Appointment

	err := s.locker.WithLock(ctx, redisclient.AppointmentKey(apptID), func(lockCtx context.Context) error {
		u, err := s.repo.UpdateStatus(lockCtx, apptID, StatusScheduled, StatusCompleted)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				if _, getErr := s.repo.GetByID(lockCtx, apptID); getErr == nil {
					return ErrInvalidTransition
				}
				return ErrAppointmentNotFound
			}
			return fmt.Errorf("complete appointment: %w", err)
		}
		updated = u
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrAppointmentBusy
		}
		return nil, err
	}

	s.log.Info().Stringer("appointment_id", apptID).Msg("appointment completed")

	return updated, nil
}

// MarkNoShow transitions scheduled -> no_show. Whether the slot opens up
// again is a policy knob; the default frees it.
func (s *Service) MarkNoShow(ctx context.Context, apptID uuid.UUID) (*Appointment, error) {
	var updated *Appointment

	err := s.locker.WithLock(ctx, redisclient.AppointmentKey(apptID), func(lockCtx context.Context) error {
		u, err := s.repo.UpdateStatus(lockCtx, apptID, StatusScheduled, StatusNoShow)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				if _, getErr := s.repo.GetByID(lockCtx, apptID); getErr == nil {
					return ErrInvalidTransition
				}
				return ErrAppointmentNotFound
			}
			return fmt.Errorf("mark no-show: %w", err)
		}

		if s.cfg.ReleaseSlotOnNoShow {
			relCtx, cancel := compensationCtx(lockCtx)
			defer cancel()
			handle := availability.SlotHandle{DoctorID: u.DoctorID, StartTime: u.Time}
			if err := s.ledger.ReleaseSlot(relCtx, handle); err != nil {
				return fmt.Errorf("%w: slot at %s still booked after no-show: %v", ErrCompensationFailed, u.Time, err)
			}
		}

		updated = u
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrAppointmentBusy
		}
		return nil, err
	}

	s.log.Info().Stringer("appointment_id", apptID).Msg("appointment marked no-show")

	return updated, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// ListForDoctor returns the doctor's appointments on a date ordered by
// time ascending. An empty status includes terminal and non-terminal.
func (s *Service) ListForDoctor(ctx context.Context, doctorID uuid.UUID, date time.Time, status Status) ([]Appointment, error) {
	appts, err := s.repo.ListForDoctorOn(ctx, doctorID, date, status)
	if err != nil {
		return nil, fmt.Errorf("list appointments for doctor: %w", err)
	}
	return appts, nil
}

func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID, status Status, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	appts, err := s.repo.ListForPatient(ctx, patientID, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments for patient: %w", err)
	}
	return appts, nil
}
