package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/smartclinic/clinic-backend/internal/appointment"
	"github.com/smartclinic/clinic-backend/internal/availability"
	"github.com/smartclinic/clinic-backend/internal/clinical"
	"github.com/smartclinic/clinic-backend/internal/directory"
	"github.com/smartclinic/clinic-backend/internal/identity"
)

// BookingService is the lifecycle-manager surface the handlers use.
type BookingService interface {
	Book(ctx context.Context, patientID, doctorID uuid.UUID, t time.Time, reason string) (*appointment.Appointment, error)
	Reschedule(ctx context.Context, apptID, requesterPatientID uuid.UUID, newTime time.Time, reason string) (*appointment.Appointment, error)
	Cancel(ctx context.Context, apptID, requesterPatientID uuid.UUID) (*appointment.Appointment, error)
	MarkCompleted(ctx context.Context, apptID uuid.UUID) (*appointment.Appointment, error)
	MarkNoShow(ctx context.Context, apptID uuid.UUID) (*appointment.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	ListForDoctor(ctx context.Context, doctorID uuid.UUID, date time.Time, status appointment.Status) ([]appointment.Appointment, error)
	ListForPatient(ctx context.Context, patientID uuid.UUID, status appointment.Status, limit, offset int) ([]appointment.Appointment, error)
}

type AvailabilityLedger interface {
	PublishSlot(ctx context.Context, doctorID uuid.UUID, start, end time.Time) (*availability.Slot, error)
	ListSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]availability.Slot, error)
	DeleteSlot(ctx context.Context, doctorID uuid.UUID, start time.Time) error
	IsDoctorFree(ctx context.Context, doctorID uuid.UUID, date time.Time) (bool, error)
}

type RecordLinker interface {
	AttachNote(ctx context.Context, appointmentID, authorDoctorID uuid.UUID, text string) (*clinical.Record, error)
	AttachPrescription(ctx context.Context, appointmentID uuid.UUID, p clinical.Prescription) (*clinical.Record, error)
	GetRecord(ctx context.Context, appointmentID uuid.UUID) (*clinical.Record, error)
}

type DirectoryService interface {
	CreateDoctor(ctx context.Context, d directory.Doctor) (*directory.Doctor, error)
	GetDoctor(ctx context.Context, id uuid.UUID) (*directory.Doctor, error)
	GetDoctorByEmail(ctx context.Context, email string) (*directory.Doctor, error)
	UpdateDoctor(ctx context.Context, id uuid.UUID, upd directory.DoctorUpdate) (*directory.Doctor, error)
	DeleteDoctor(ctx context.Context, id uuid.UUID) error
	SearchDoctors(ctx context.Context, name, specialty string) ([]directory.Doctor, error)
	CreatePatient(ctx context.Context, p directory.Patient) (*directory.Patient, error)
	GetPatient(ctx context.Context, id uuid.UUID) (*directory.Patient, error)
	GetPatientByEmail(ctx context.Context, email string) (*directory.Patient, error)
	UpdatePatient(ctx context.Context, id uuid.UUID, upd directory.PatientUpdate) (*directory.Patient, error)
	DeletePatient(ctx context.Context, id uuid.UUID) error
}

// TokenIssuer mints caller tokens for /auth/login.
type TokenIssuer interface {
	Mint(id identity.Identity) (string, error)
}

type RouterConfig struct {
	Booking   BookingService
	Ledger    AvailabilityLedger
	Records   RecordLinker
	Directory DirectoryService

	Resolver identity.Resolver
	Tokens   TokenIssuer

	PgPool     *pgxpool.Pool
	Redis      *redis.Client
	Mongo      *mongo.Client
	AdminEmail string
	Env        string
	Version    string
	Log        zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(RequestLogger(cfg.Log))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Mongo, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Public: login and patient self-registration.
	r.Post("/auth/login", loginHandler(cfg.Directory, cfg.Tokens, cfg.AdminEmail))
	r.Post("/patients", createPatientHandler(cfg.Directory))

	r.Group(func(r chi.Router) {
		r.Use(Authenticate(cfg.Resolver))

		r.Route("/doctors", func(r chi.Router) {
			r.Post("/", createDoctorHandler(cfg.Directory))
			r.Get("/", searchDoctorsHandler(cfg.Directory))
			r.Get("/{id}", getDoctorHandler(cfg.Directory))
			r.Patch("/{id}", updateDoctorHandler(cfg.Directory))
			r.Delete("/{id}", deleteDoctorHandler(cfg.Directory))

			r.Get("/{id}/availability", doctorAvailabilityHandler(cfg.Ledger))
			r.Post("/{id}/slots", publishSlotHandler(cfg.Ledger))
			r.Get("/{id}/slots", listSlotsHandler(cfg.Ledger))
			r.Delete("/{id}/slots", deleteSlotHandler(cfg.Ledger))
		})

		r.Route("/patients", func(r chi.Router) {
			r.Get("/{id}", getPatientHandler(cfg.Directory))
			r.Patch("/{id}", updatePatientHandler(cfg.Directory))
			r.Delete("/{id}", deletePatientHandler(cfg.Directory))
		})

		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", bookAppointmentHandler(cfg.Booking))
			r.Get("/", listAppointmentsHandler(cfg.Booking))
			r.Get("/{id}", getAppointmentHandler(cfg.Booking))
			r.Patch("/{id}", rescheduleAppointmentHandler(cfg.Booking))
			r.Post("/{id}/cancel", cancelAppointmentHandler(cfg.Booking))
			r.Post("/{id}/complete", completeAppointmentHandler(cfg.Booking))
			r.Post("/{id}/no-show", noShowAppointmentHandler(cfg.Booking))

			r.Post("/{id}/notes", attachNoteHandler(cfg.Records, cfg.Booking))
			r.Post("/{id}/prescriptions", attachPrescriptionHandler(cfg.Records, cfg.Booking))
			r.Get("/{id}/record", getRecordHandler(cfg.Records, cfg.Booking))
		})
	})

	return r
}
