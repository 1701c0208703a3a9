package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/smartclinic/clinic-backend/internal/appointment"
	"github.com/smartclinic/clinic-backend/internal/availability"
	"github.com/smartclinic/clinic-backend/internal/directory"
)

type LoginRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	Role      string    `json:"role"`
	SubjectID uuid.UUID `json:"subject_id"`
}

type BookAppointmentRequest struct {
	PatientID string    `json:"patient_id"`
	DoctorID  string    `json:"doctor_id"`
	Time      time.Time `json:"time"`
	Reason    string    `json:"reason"`
}

type RescheduleRequest struct {
	Time   time.Time `json:"time"`
	Reason string    `json:"reason"`
}

type AppointmentResponse struct {
	ID        uuid.UUID `json:"id"`
	PatientID uuid.UUID `json:"patient_id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	Time      time.Time `json:"time"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:        a.ID,
		PatientID: a.PatientID,
		DoctorID:  a.DoctorID,
		Time:      a.Time,
		Status:    string(a.Status),
		Reason:    a.Reason,
	}
}

type PublishSlotRequest struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type SlotResponse struct {
	ID       uuid.UUID `json:"id"`
	DoctorID uuid.UUID `json:"doctor_id"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Booked   bool      `json:"booked"`
}

func toSlotResponse(s *availability.Slot) SlotResponse {
	return SlotResponse{
		ID:       s.ID,
		DoctorID: s.DoctorID,
		Start:    s.StartTime,
		End:      s.EndTime,
		Booked:   s.Booked,
	}
}

type AvailabilityResponse struct {
	IsAvailable bool `json:"is_available"`
}

type CreateDoctorRequest struct {
	Name      string  `json:"name"`
	Specialty string  `json:"specialty"`
	Email     string  `json:"email"`
	Phone     *string `json:"phone,omitempty"`
}

type UpdateDoctorRequest struct {
	Name      *string `json:"name,omitempty"`
	Specialty *string `json:"specialty,omitempty"`
	Phone     *string `json:"phone,omitempty"`
}

type DoctorResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Specialty string    `json:"specialty"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone,omitempty"`
}

func toDoctorResponse(d *directory.Doctor) DoctorResponse {
	return DoctorResponse{
		ID:        d.ID,
		Name:      d.Name,
		Specialty: d.Specialty,
		Email:     d.Email,
		Phone:     d.Phone,
	}
}

type CreatePatientRequest struct {
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Phone *string `json:"phone,omitempty"`
}

type UpdatePatientRequest struct {
	Name  *string `json:"name,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

type PatientResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Phone *string   `json:"phone,omitempty"`
}

func toPatientResponse(p *directory.Patient) PatientResponse {
	return PatientResponse{
		ID:    p.ID,
		Name:  p.Name,
		Email: p.Email,
		Phone: p.Phone,
	}
}

type AttachNoteRequest struct {
	Text string `json:"text"`
}

type AttachPrescriptionRequest struct {
	Medication string `json:"medication"`
	Dosage     string `json:"dosage"`
	Frequency  string `json:"frequency"`
	Duration   string `json:"duration"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
