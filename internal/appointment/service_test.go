package appointment

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/smartclinic/clinic-backend/internal/availability"
	"github.com/smartclinic/clinic-backend/internal/config"
	"github.com/smartclinic/clinic-backend/internal/directory"
	redisclient "github.com/smartclinic/clinic-backend/internal/redis"
)

type fakeApptRepo struct {
	mu    sync.Mutex
	appts map[uuid.UUID]*Appointment

	failCreate error
	createHook func()
}

func newFakeApptRepo() *fakeApptRepo {
	return &fakeApptRepo{appts: make(map[uuid.UUID]*Appointment)}
}

func (r *fakeApptRepo) Create(ctx context.Context, patientID, doctorID uuid.UUID, t time.Time, reason string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.createHook != nil {
		r.createHook()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.failCreate != nil {
		return nil, r.failCreate
	}
	a := &Appointment{
		ID:        uuid.New(),
		PatientID: patientID,
		DoctorID:  doctorID,
		Time:      t,
		Status:    StatusScheduled,
		Reason:    reason,
	}
	r.appts[a.ID] = a
	out := *a
	return &out, nil
}

func (r *fakeApptRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	out := *a
	return &out, nil
}

func (r *fakeApptRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appts[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	out := *a
	return &out, nil
}

func (r *fakeApptRepo) UpdateTime(_ context.Context, id uuid.UUID, t time.Time, reason string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appts[id]
	if !ok || a.Status != StatusScheduled {
		return nil, ErrAppointmentNotFound
	}
	a.Time = t
	if reason != "" {
		a.Reason = reason
	}
	out := *a
	return &out, nil
}

func (r *fakeApptRepo) ListForDoctorOn(_ context.Context, doctorID uuid.UUID, date time.Time, status Status) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	day := date.UTC().Truncate(24 * time.Hour)
	var out []Appointment
	for _, a := range r.appts {
		if a.DoctorID != doctorID || !a.Time.UTC().Truncate(24*time.Hour).Equal(day) {
			continue
		}
		if status != "" && a.Status != status {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

func (r *fakeApptRepo) ListForPatient(_ context.Context, patientID uuid.UUID, status Status, limit, offset int) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Appointment
	for _, a := range r.appts {
		if a.PatientID != patientID {
			continue
		}
		if status != "" && a.Status != status {
			continue
		}
		out = append(out, *a)
	}
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// fakeLedger reproduces the claim/release contract over an in-memory
// booked-flag map and records every release for compensation assertions.
type fakeLedger struct {
	mu     sync.Mutex
	booked map[string]bool

	failRelease error
	releases    []availability.SlotHandle
}

func newFakeLedger(published ...availability.SlotHandle) *fakeLedger {
	l := &fakeLedger{booked: make(map[string]bool)}
	for _, h := range published {
		l.booked[h.DoctorID.String()+"/"+h.StartTime.UTC().Format(time.RFC3339)] = false
	}
	return l
}

func ledgerKey(doctorID uuid.UUID, start time.Time) string {
	return doctorID.String() + "/" + start.UTC().Format(time.RFC3339)
}

func (l *fakeLedger) ClaimSlot(_ context.Context, doctorID uuid.UUID, start time.Time) (availability.SlotHandle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := ledgerKey(doctorID, start)
	booked, ok := l.booked[key]
	if !ok {
		return availability.SlotHandle{}, availability.ErrSlotNotFound
	}
	if booked {
		return availability.SlotHandle{}, availability.ErrSlotTaken
	}
	l.booked[key] = true
	return availability.SlotHandle{SlotID: uuid.New(), DoctorID: doctorID, StartTime: start}, nil
}

func (l *fakeLedger) ReleaseSlot(ctx context.Context, handle availability.SlotHandle) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if l.failRelease != nil {
		return l.failRelease
	}
	l.releases = append(l.releases, handle)
	l.booked[ledgerKey(handle.DoctorID, handle.StartTime)] = false
	return nil
}

func (l *fakeLedger) isBooked(doctorID uuid.UUID, start time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.booked[ledgerKey(doctorID, start)]
}

type fakeDirectory struct {
	doctors  map[uuid.UUID]bool
	patients map[uuid.UUID]bool
}

func (d *fakeDirectory) DoctorExists(_ context.Context, id uuid.UUID) error {
	if !d.doctors[id] {
		return directory.ErrDoctorNotFound
	}
	return nil
}

func (d *fakeDirectory) PatientExists(_ context.Context, id uuid.UUID) error {
	if !d.patients[id] {
		return directory.ErrPatientNotFound
	}
	return nil
}

// fakeLocker mimics SETNX semantics: a held key fails immediately
// instead of blocking.
type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]bool)}
}

func (l *fakeLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	if l.held[key] {
		l.mu.Unlock()
		return redisclient.ErrLockNotAcquired
	}
	l.held[key] = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}()

	return fn(ctx)
}

type fixture struct {
	svc    *Service
	repo   *fakeApptRepo
	ledger *fakeLedger
	locker *fakeLocker
	dir    *fakeDirectory

	patientID uuid.UUID
	doctorID  uuid.UUID
	slotTime  time.Time
}

func newFixture(t *testing.T, cfg config.Config) *fixture {
	t.Helper()

	patientID := uuid.New()
	doctorID := uuid.New()
	slotTime := time.Date(2026, 10, 5, 9, 0, 0, 0, time.UTC)

	repo := newFakeApptRepo()
	ledger := newFakeLedger(availability.SlotHandle{DoctorID: doctorID, StartTime: slotTime})
	dir := &fakeDirectory{
		doctors:  map[uuid.UUID]bool{doctorID: true},
		patients: map[uuid.UUID]bool{patientID: true},
	}
	locker := newFakeLocker()

	svc := NewService(repo, ledger, dir, locker, cfg, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC) }

	return &fixture{
		svc:       svc,
		repo:      repo,
		ledger:    ledger,
		locker:    locker,
		dir:       dir,
		patientID: patientID,
		doctorID:  doctorID,
		slotTime:  slotTime,
	}
}

func defaultConfig() config.Config {
	return config.Config{
		CancelLeadTime:      24 * time.Hour,
		ReleaseSlotOnNoShow: true,
	}
}

func TestBook(t *testing.T) {
	ctx := context.Background()

	t.Run("HappyPath", func(t *testing.T) {
		f := newFixture(t, defaultConfig())

		appt, err := f.svc.Book(ctx, f.patientID, f.doctorID, f.slotTime, "checkup")
		if err != nil {
			t.Fatalf("Book: %v", err)
		}
		if appt.Status != StatusScheduled {
			t.Fatalf("status = %s, want scheduled", appt.Status)
		}
		if !f.ledger.isBooked(f.doctorID, f.slotTime) {
			t.Fatal("slot not booked after successful booking")
		}
	})

	t.Run("PastTime", func(t *testing.T) {
		f := newFixture(t, defaultConfig())

		past := f.svc.now().Add(-time.Hour)
		_, err := f.svc.Book(ctx, f.patientID, f.doctorID, past, "checkup")
		if !errors.Is(err, ErrPastAppointmentTime) {
			t.Fatalf("expected ErrPastAppointmentTime, got %v", err)
		}
		if f.ledger.isBooked(f.doctorID, past) {
			t.Fatal("rejected booking must not touch the ledger")
		}
	})

	t.Run("UnknownPatient", func(t *testing.T) {
		f := newFixture(t, defaultConfig())

		_, err := f.svc.Book(ctx, uuid.New(), f.doctorID, f.slotTime, "checkup")
		if !errors.Is(err, directory.ErrPatientNotFound) {
			t.Fatalf("expected ErrPatientNotFound, got %v", err)
		}
		if f.ledger.isBooked(f.doctorID, f.slotTime) {
			t.Fatal("rejected booking must not claim the slot")
		}
	})

	t.Run("UnknownDoctor", func(t *testing.T) {
		f := newFixture(t, defaultConfig())

		_, err := f.svc.Book(ctx, f.patientID, uuid.New(), f.slotTime, "checkup")
		if !errors.Is(err, directory.ErrDoctorNotFound) {
			t.Fatalf("expected ErrDoctorNotFound, got %v", err)
		}
	})

	t.Run("SlotTaken", func(t *testing.T) {
		f := newFixture(t, defaultConfig())

		if _, err := f.svc.Book(ctx, f.patientID, f.doctorID, f.slotTime, "first"); err != nil {
			t.Fatalf("first booking: %v", err)
		}
		_, err := f.svc.Book(ctx, f.patientID, f.doctorID, f.slotTime, "second")
		if !errors.Is(err, availability.ErrSlotTaken) {
			t.Fatalf("expected ErrSlotTaken, got %v", err)
		}
	})

	t.Run("UnpublishedSlot", func(t *testing.T) {
		f := newFixture(t, defaultConfig())

		_, err := f.svc.Book(ctx, f.patientID, f.doctorID, f.slotTime.Add(time.Hour), "checkup")
		if !errors.Is(err, availability.ErrSlotNotFound) {
			t.Fatalf("expected ErrSlotNotFound, got %v", err)
		}
	})

	t.Run("CompensatesFailedPersist", func(t *testing.T) {
		f := newFixture(t, defaultConfig())
		f.repo.failCreate = errors.New("insert failed")

		_, err := f.svc.Book(ctx, f.patientID, f.doctorID, f.slotTime, "checkup")
		if err == nil {
			t.Fatal("expected booking to fail")
		}
		if errors.Is(err, ErrCompensationFailed) {
			t.Fatalf("compensation should have succeeded, got %v", err)
		}
		if f.ledger.isBooked(f.doctorID, f.slotTime) {
			t.Fatal("claim must be released after failed persist")
		}

		// The slot is free again, a retry after the fault clears works.
		f.repo.failCreate = nil
		if _, err := f.svc.Book(ctx, f.patientID, f.doctorID, f.slotTime, "retry"); err != nil {
			t.Fatalf("retry booking: %v", err)
		}
	})

	t.Run("CompensationOutlivesCaller", func(t *testing.T) {
		f := newFixture(t, defaultConfig())

		// Caller disconnects while the persist is in flight. The
		// compensating release must not die with its context.
		callerCtx, disconnect := context.WithCancel(context.Background())
		f.repo.createHook = disconnect

		_, err := f.svc.Book(callerCtx, f.patientID, f.doctorID, f.slotTime, "checkup")
		if err == nil {
			t.Fatal("expected booking to fail")
		}
		if errors.Is(err, ErrCompensationFailed) {
			t.Fatalf("release must not ride the dead caller context, got %v", err)
		}
		if f.ledger.isBooked(f.doctorID, f.slotTime) {
			t.Fatal("claim must be released even after the caller disconnected")
		}
	})

	t.Run("CompensationFailure", func(t *testing.T) {
		f := newFixture(t, defaultConfig())
		f.repo.failCreate = errors.New("insert failed")
		f.ledger.failRelease = errors.New("release failed")

		_, err := f.svc.Book(ctx, f.patientID, f.doctorID, f.slotTime, "checkup")
		if !errors.Is(err, ErrCompensationFailed) {
			t.Fatalf("expected ErrCompensationFailed, got %v", err)
		}
	})

	t.Run("LockContention", func(t *testing.T) {
		f := newFixture(t, defaultConfig())
		f.locker.held[redisclient.BookingKey(f.doctorID, f.slotTime)] = true

		_, err := f.svc.Book(ctx, f.patientID, f.doctorID, f.slotTime, "checkup")
		if !errors.Is(err, ErrSlotContended) {
			t.Fatalf("expected ErrSlotContended, got %v", err)
		}
	})
}

func TestBookConcurrent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, defaultConfig())

	const attempts = 32

	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Book(ctx, f.patientID, f.doctorID, f.slotTime, "race")
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, availability.ErrSlotTaken), errors.Is(err, ErrSlotContended):
		default:
			t.Fatalf("unexpected error under contention: %v", err)
		}
	}
	if won != 1 {
		t.Fatalf("winners = %d, want exactly 1", won)
	}
	if !f.ledger.isBooked(f.doctorID, f.slotTime) {
		t.Fatal("slot must end up booked")
	}
}

func TestCancel(t *testing.T) {
	ctx := context.Background()

	book := func(t *testing.T, f *fixture) *Appointment {
		t.Helper()
		appt, err := f.svc.Book(ctx, f.patientID, f.doctorID, f.slotTime, "checkup")
		if err != nil {
			t.Fatalf("Book: %v", err)
		}
		return appt
	}

	t.Run("HappyPath", func(t *testing.T) {
		f := newFixture(t, defaultConfig())
		appt := book(t, f)

		cancelled, err := f.svc.Cancel(ctx, appt.ID, f.patientID)
		if err != nil {
			t.Fatalf("Cancel: %v", err)
		}
		if cancelled.Status != StatusCancelled {
			t.Fatalf("status = %s, want cancelled", cancelled.Status)
		}
		if f.ledger.isBooked(f.doctorID, f.slotTime) {
			t.Fatal("slot must be released after cancellation")
		}
	})

	t.Run("InsideLeadTime", func(t *testing.T) {
		f := newFixture(t, defaultConfig())
		appt := book(t, f)

		// Move the clock to two hours before the appointment.
		f.svc.now = func() time.Time { return f.slotTime.Add(-2 * time.Hour) }

		_, err := f.svc.Cancel(ctx, appt.ID, f.patientID)
		if !errors.Is(err, ErrInsideCancelWindow) {
			t.Fatalf("expected ErrInsideCancelWindow, got %v", err)
		}

		got, err := f.svc.Get(ctx, appt.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Status != StatusScheduled {
			t.Fatalf("status = %s, rejected cancel must leave it scheduled", got.Status)
		}
		if !f.ledger.isBooked(f.doctorID, f.slotTime) {
			t.Fatal("rejected cancel must leave the slot booked")
		}
	})

	t.Run("NotOwner", func(t *testing.T) {
		f := newFixture(t, defaultConfig())
		appt := book(t, f)

		_, err := f.svc.Cancel(ctx, appt.ID, uuid.New())
		if !errors.Is(err, ErrNotOwner) {
			t.Fatalf("expected ErrNotOwner, got %v", err)
		}
	})

	t.Run("AfterReschedule", func(t *testing.T) {
		// Cancelling a moved appointment must free the slot it holds
		// now, not the one it was booked at.
		f := newFixture(t, defaultConfig())
		appt := book(t, f)

		newTime := f.slotTime.Add(24 * time.Hour)
		f.ledger.booked[ledgerKey(f.doctorID, newTime)] = false
		if _, err := f.svc.Reschedule(ctx, appt.ID, f.patientID, newTime, ""); err != nil {
			t.Fatalf("Reschedule: %v", err)
		}

		if _, err := f.svc.Cancel(ctx, appt.ID, f.patientID); err != nil {
			t.Fatalf("Cancel: %v", err)
		}
		if f.ledger.isBooked(f.doctorID, newTime) {
			t.Fatal("cancel must release the rescheduled slot")
		}
		if f.ledger.isBooked(f.doctorID, f.slotTime) {
			t.Fatal("original slot must stay free")
		}
	})

	t.Run("BusyAppointment", func(t *testing.T) {
		f := newFixture(t, defaultConfig())
		appt := book(t, f)

		// Another lifecycle operation holds the appointment's lock.
		f.locker.held[redisclient.AppointmentKey(appt.ID)] = true

		_, err := f.svc.Cancel(ctx, appt.ID, f.patientID)
		if !errors.Is(err, ErrAppointmentBusy) {
			t.Fatalf("expected ErrAppointmentBusy, got %v", err)
		}

		got, err := f.svc.Get(ctx, appt.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Status != StatusScheduled {
			t.Fatalf("status = %s, contended cancel must change nothing", got.Status)
		}
		if !f.ledger.isBooked(f.doctorID, f.slotTime) {
			t.Fatal("contended cancel must leave the slot booked")
		}
	})

	t.Run("AlreadyCancelled", func(t *testing.T) {
		f := newFixture(t, defaultConfig())
		appt := book(t, f)

		if _, err := f.svc.Cancel(ctx, appt.ID, f.patientID); err != nil {
			t.Fatalf("Cancel: %v", err)
		}
		_, err := f.svc.Cancel(ctx, appt.ID, f.patientID)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		f := newFixture(t, defaultConfig())

		_, err := f.svc.Cancel(ctx, uuid.New(), f.patientID)
		if !errors.Is(err, ErrAppointmentNotFound) {
			t.Fatalf("expected ErrAppointmentNotFound, got %v", err)
		}
	})
}

func TestReschedule(t *testing.T) {
	ctx := context.Background()

	t.Run("HappyPath", func(t *testing.T) {
		f := newFixture(t, defaultConfig())
		newTime := f.slotTime.Add(24 * time.Hour)
		f.ledger.booked[ledgerKey(f.doctorID, newTime)] = false

		appt, err := f.svc.Book(ctx, f.patientID, f.doctorID, f.slotTime, "checkup")
		if err != nil {
			t.Fatalf("Book: %v", err)
		}

		moved, err := f.svc.Reschedule(ctx, appt.ID, f.patientID, newTime, "")
		if err != nil {
			t.Fatalf("Reschedule: %v", err)
		}
		if !moved.Time.Equal(newTime) {
			t.Fatalf("time = %s, want %s", moved.Time, newTime)
		}
		if f.ledger.isBooked(f.doctorID, f.slotTime) {
			t.Fatal("old slot must be released")
		}
		if !f.ledger.isBooked(f.doctorID, newTime) {
			t.Fatal("new slot must be booked")
		}
	})

	t.Run("NewSlotTaken", func(t *testing.T) {
		f := newFixture(t, defaultConfig())
		newTime := f.slotTime.Add(24 * time.Hour)
		f.ledger.booked[ledgerKey(f.doctorID, newTime)] = true

		appt, err := f.svc.Book(ctx, f.patientID, f.doctorID, f.slotTime, "checkup")
		if err != nil {
			t.Fatalf("Book: %v", err)
		}

		_, err = f.svc.Reschedule(ctx, appt.ID, f.patientID, newTime, "")
		if !errors.Is(err, availability.ErrSlotTaken) {
			t.Fatalf("expected ErrSlotTaken, got %v", err)
		}

		// Failed claim of the new time leaves the original untouched.
		if !f.ledger.isBooked(f.doctorID, f.slotTime) {
			t.Fatal("original slot must stay booked")
		}
		got, err := f.svc.Get(ctx, appt.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !got.Time.Equal(f.slotTime) {
			t.Fatalf("time = %s, failed reschedule must not move the appointment", got.Time)
		}
	})

	t.Run("NotOwner", func(t *testing.T) {
		f := newFixture(t, defaultConfig())

		appt, err := f.svc.Book(ctx, f.patientID, f.doctorID, f.slotTime, "checkup")
		if err != nil {
			t.Fatalf("Book: %v", err)
		}
		_, err = f.svc.Reschedule(ctx, appt.ID, uuid.New(), f.slotTime.Add(24*time.Hour), "")
		if !errors.Is(err, ErrNotOwner) {
			t.Fatalf("expected ErrNotOwner, got %v", err)
		}
	})

	t.Run("TerminalStatus", func(t *testing.T) {
		f := newFixture(t, defaultConfig())

		appt, err := f.svc.Book(ctx, f.patientID, f.doctorID, f.slotTime, "checkup")
		if err != nil {
			t.Fatalf("Book: %v", err)
		}
		if _, err := f.svc.MarkCompleted(ctx, appt.ID); err != nil {
			t.Fatalf("MarkCompleted: %v", err)
		}
		_, err = f.svc.Reschedule(ctx, appt.ID, f.patientID, f.slotTime.Add(24*time.Hour), "")
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("BusyAppointment", func(t *testing.T) {
		f := newFixture(t, defaultConfig())
		newTime := f.slotTime.Add(24 * time.Hour)
		f.ledger.booked[ledgerKey(f.doctorID, newTime)] = false

		appt, err := f.svc.Book(ctx, f.patientID, f.doctorID, f.slotTime, "checkup")
		if err != nil {
			t.Fatalf("Book: %v", err)
		}
		f.locker.held[redisclient.AppointmentKey(appt.ID)] = true

		_, err = f.svc.Reschedule(ctx, appt.ID, f.patientID, newTime, "")
		if !errors.Is(err, ErrAppointmentBusy) {
			t.Fatalf("expected ErrAppointmentBusy, got %v", err)
		}
		if !f.ledger.isBooked(f.doctorID, f.slotTime) {
			t.Fatal("contended reschedule must leave the original slot booked")
		}
		if f.ledger.isBooked(f.doctorID, newTime) {
			t.Fatal("contended reschedule must not claim the new slot")
		}
	})
}

// TestCancelRescheduleRace drives a cancel and a reschedule of the same
// appointment concurrently. Whatever interleaving wins, no slot may end
// up booked without a scheduled appointment behind it.
func TestCancelRescheduleRace(t *testing.T) {
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		f := newFixture(t, defaultConfig())
		newTime := f.slotTime.Add(24 * time.Hour)
		f.ledger.booked[ledgerKey(f.doctorID, newTime)] = false

		appt, err := f.svc.Book(ctx, f.patientID, f.doctorID, f.slotTime, "checkup")
		if err != nil {
			t.Fatalf("Book: %v", err)
		}

		var wg sync.WaitGroup
		var cancelErr, reschedErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, cancelErr = f.svc.Cancel(ctx, appt.ID, f.patientID)
		}()
		go func() {
			defer wg.Done()
			_, reschedErr = f.svc.Reschedule(ctx, appt.ID, f.patientID, newTime, "")
		}()
		wg.Wait()

		for _, err := range []error{cancelErr, reschedErr} {
			if err != nil && !errors.Is(err, ErrAppointmentBusy) && !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("iteration %d: unexpected error: %v", i, err)
			}
		}

		got, err := f.svc.Get(ctx, appt.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		switch got.Status {
		case StatusCancelled:
			if f.ledger.isBooked(f.doctorID, f.slotTime) || f.ledger.isBooked(f.doctorID, newTime) {
				t.Fatalf("iteration %d: cancelled appointment left a slot booked", i)
			}
		case StatusScheduled:
			if !f.ledger.isBooked(f.doctorID, got.Time) {
				t.Fatalf("iteration %d: scheduled appointment's slot is not booked", i)
			}
			other := newTime
			if got.Time.Equal(newTime) {
				other = f.slotTime
			}
			if f.ledger.isBooked(f.doctorID, other) {
				t.Fatalf("iteration %d: slot at %s booked with no appointment behind it", i, other)
			}
		default:
			t.Fatalf("iteration %d: unexpected status %s", i, got.Status)
		}
	}
}

func TestMarkCompleted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, defaultConfig())

	appt, err := f.svc.Book(ctx, f.patientID, f.doctorID, f.slotTime, "checkup")
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	done, err := f.svc.MarkCompleted(ctx, appt.ID)
	if err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	if done.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", done.Status)
	}
	if !f.ledger.isBooked(f.doctorID, f.slotTime) {
		t.Fatal("completed visit keeps its slot consumed")
	}

	// Not idempotent: the second completion reports the lost race.
	if _, err := f.svc.MarkCompleted(ctx, appt.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	if _, err := f.svc.MarkCompleted(ctx, uuid.New()); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("expected ErrAppointmentNotFound, got %v", err)
	}
}

func TestMarkNoShow(t *testing.T) {
	ctx := context.Background()

	t.Run("ReleasesSlot", func(t *testing.T) {
		f := newFixture(t, defaultConfig())

		appt, err := f.svc.Book(ctx, f.patientID, f.doctorID, f.slotTime, "checkup")
		if err != nil {
			t.Fatalf("Book: %v", err)
		}
		updated, err := f.svc.MarkNoShow(ctx, appt.ID)
		if err != nil {
			t.Fatalf("MarkNoShow: %v", err)
		}
		if updated.Status != StatusNoShow {
			t.Fatalf("status = %s, want no_show", updated.Status)
		}
		if f.ledger.isBooked(f.doctorID, f.slotTime) {
			t.Fatal("default policy frees the slot on no-show")
		}
	})

	t.Run("KeepsSlotWhenDisabled", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.ReleaseSlotOnNoShow = false
		f := newFixture(t, cfg)

		appt, err := f.svc.Book(ctx, f.patientID, f.doctorID, f.slotTime, "checkup")
		if err != nil {
			t.Fatalf("Book: %v", err)
		}
		if _, err := f.svc.MarkNoShow(ctx, appt.ID); err != nil {
			t.Fatalf("MarkNoShow: %v", err)
		}
		if !f.ledger.isBooked(f.doctorID, f.slotTime) {
			t.Fatal("slot must stay booked when the release knob is off")
		}
	})
}

// TestBookingLifecycle walks one slot through the contended booking
// story: a booking wins, a competitor conflicts, the winner cancels,
// and the competitor takes the freed slot.
func TestBookingLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, defaultConfig())

	rival := uuid.New()
	f.dir.patients[rival] = true

	appt, err := f.svc.Book(ctx, f.patientID, f.doctorID, f.slotTime, "checkup")
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	if _, err := f.svc.Book(ctx, rival, f.doctorID, f.slotTime, "checkup"); !errors.Is(err, availability.ErrSlotTaken) {
		t.Fatalf("rival booking: expected ErrSlotTaken, got %v", err)
	}

	if _, err := f.svc.Cancel(ctx, appt.ID, f.patientID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	rebooked, err := f.svc.Book(ctx, rival, f.doctorID, f.slotTime, "checkup")
	if err != nil {
		t.Fatalf("rebook after cancel: %v", err)
	}
	if rebooked.PatientID != rival {
		t.Fatalf("rebooked patient = %s, want %s", rebooked.PatientID, rival)
	}
	if !f.ledger.isBooked(f.doctorID, f.slotTime) {
		t.Fatal("slot must be booked again")
	}
}

// A doctor's day schedule comes back ordered by appointment time, the
// same order the store's query guarantees.
func TestListForDoctorOrdered(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, defaultConfig())

	day := time.Date(2026, 10, 5, 0, 0, 0, 0, time.UTC)
	for _, hour := range []int{15, 9, 13, 11} {
		if _, err := f.repo.Create(ctx, f.patientID, f.doctorID, day.Add(time.Duration(hour)*time.Hour), "visit"); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	appts, err := f.svc.ListForDoctor(ctx, f.doctorID, day, "")
	if err != nil {
		t.Fatalf("ListForDoctor: %v", err)
	}
	if len(appts) != 4 {
		t.Fatalf("len = %d, want 4", len(appts))
	}
	for i := 1; i < len(appts); i++ {
		if appts[i].Time.Before(appts[i-1].Time) {
			t.Fatalf("appointments out of order: %s before %s", appts[i-1].Time, appts[i].Time)
		}
	}
}

func TestListForPatientClampsLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, defaultConfig())

	if _, err := f.svc.Book(ctx, f.patientID, f.doctorID, f.slotTime, "checkup"); err != nil {
		t.Fatalf("Book: %v", err)
	}

	appts, err := f.svc.ListForPatient(ctx, f.patientID, "", -5, -1)
	if err != nil {
		t.Fatalf("ListForPatient: %v", err)
	}
	if len(appts) != 1 {
		t.Fatalf("len = %d, want 1", len(appts))
	}
}
