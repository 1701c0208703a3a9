package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/smartclinic/clinic-backend/internal/appointment"
	"github.com/smartclinic/clinic-backend/internal/identity"
)

func bookAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := requireRole(w, r, identity.RolePatient, identity.RoleAdmin)
		if !ok {
			return
		}

		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		if req.Time.IsZero() {
			writeError(w, http.StatusBadRequest, "validation_failed", "time is required")
			return
		}

		// Patients book for themselves; admins may book on behalf.
		if ident.Role == identity.RolePatient && ident.SubjectID != patientID {
			writeError(w, http.StatusForbidden, "forbidden", "patients may only book their own appointments")
			return
		}

		appt, err := svc.Book(r.Context(), patientID, doctorID, req.Time, req.Reason)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlUUID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.Get(r.Context(), id)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		if !appointmentVisible(r, appt) {
			writeError(w, http.StatusForbidden, "forbidden", "caller may not view this appointment")
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

// appointmentVisible limits reads to the owning patient, the assigned
// doctor, and admins.
func appointmentVisible(r *http.Request, appt *appointment.Appointment) bool {
	ident, ok := callerIdentity(r)
	if !ok {
		return false
	}
	switch ident.Role {
	case identity.RoleAdmin:
		return true
	case identity.RoleDoctor:
		return ident.SubjectID == appt.DoctorID
	case identity.RolePatient:
		return ident.SubjectID == appt.PatientID
	}
	return false
}

func rescheduleAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := requireRole(w, r, identity.RolePatient, identity.RoleAdmin)
		if !ok {
			return
		}

		id, ok := urlUUID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.Time.IsZero() {
			writeError(w, http.StatusBadRequest, "validation_failed", "time is required")
			return
		}

		requester, ok := requesterPatient(w, r, svc, ident, id)
		if !ok {
			return
		}

		appt, err := svc.Reschedule(r.Context(), id, requester, req.Time, req.Reason)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := requireRole(w, r, identity.RolePatient, identity.RoleAdmin)
		if !ok {
			return
		}

		id, ok := urlUUID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		requester, ok := requesterPatient(w, r, svc, ident, id)
		if !ok {
			return
		}

		appt, err := svc.Cancel(r.Context(), id, requester)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

// requesterPatient resolves the patient id the ownership check runs
// against: the caller itself for patients, the appointment's owner for
// admins acting on their behalf.
func requesterPatient(w http.ResponseWriter, r *http.Request, svc BookingService, ident identity.Identity, apptID uuid.UUID) (uuid.UUID, bool) {
	if ident.Role == identity.RolePatient {
		return ident.SubjectID, true
	}

	appt, err := svc.Get(r.Context(), apptID)
	if err != nil {
		handleDomainError(w, err)
		return uuid.Nil, false
	}
	return appt.PatientID, true
}

func completeAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appt, ok := assignedDoctorAppointment(w, r, svc)
		if !ok {
			return
		}

		updated, err := svc.MarkCompleted(r.Context(), appt.ID)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(updated))
	}
}

func noShowAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appt, ok := assignedDoctorAppointment(w, r, svc)
		if !ok {
			return
		}

		updated, err := svc.MarkNoShow(r.Context(), appt.ID)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(updated))
	}
}

// assignedDoctorAppointment loads the appointment and enforces that the
// caller is the assigned doctor (or an admin).
func assignedDoctorAppointment(w http.ResponseWriter, r *http.Request, svc BookingService) (*appointment.Appointment, bool) {
	ident, ok := requireRole(w, r, identity.RoleDoctor, identity.RoleAdmin)
	if !ok {
		return nil, false
	}

	id, ok := urlUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return nil, false
	}

	appt, err := svc.Get(r.Context(), id)
	if err != nil {
		handleDomainError(w, err)
		return nil, false
	}
	if ident.Role == identity.RoleDoctor && ident.SubjectID != appt.DoctorID {
		writeError(w, http.StatusForbidden, "forbidden", "only the assigned doctor may do this")
		return nil, false
	}

	return appt, true
}

func listAppointmentsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		status := appointment.Status(q.Get("status"))

		switch {
		case q.Get("doctor_id") != "":
			doctorID, err := uuid.Parse(q.Get("doctor_id"))
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
				return
			}
			date, err := time.Parse("2006-01-02", q.Get("date"))
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
				return
			}

			// A day schedule names the doctor's patients, so only the
			// doctor themself or an admin may read it.
			if _, ok := selfOrAdmin(w, r, doctorID); !ok {
				return
			}

			appts, err := svc.ListForDoctor(r.Context(), doctorID, date, status)
			if err != nil {
				handleDomainError(w, err)
				return
			}
			writeAppointmentList(w, appts)

		case q.Get("patient_id") != "":
			patientID, err := uuid.Parse(q.Get("patient_id"))
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
				return
			}
			if _, ok := selfOrAdmin(w, r, patientID); !ok {
				return
			}

			limit, _ := strconv.Atoi(q.Get("limit"))
			offset, _ := strconv.Atoi(q.Get("offset"))

			appts, err := svc.ListForPatient(r.Context(), patientID, status, limit, offset)
			if err != nil {
				handleDomainError(w, err)
				return
			}
			writeAppointmentList(w, appts)

		default:
			writeError(w, http.StatusBadRequest, "missing_filter", "doctor_id or patient_id is required")
		}
	}
}

func writeAppointmentList(w http.ResponseWriter, appts []appointment.Appointment) {
	resp := make([]AppointmentResponse, 0, len(appts))
	for i := range appts {
		resp = append(resp, toAppointmentResponse(&appts[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}
