package api

import (
	"encoding/json"
	"net/http"

	"github.com/smartclinic/clinic-backend/internal/clinical"
	"github.com/smartclinic/clinic-backend/internal/identity"
)

func attachNoteHandler(records RecordLinker, booking BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appt, ok := assignedDoctorAppointment(w, r, booking)
		if !ok {
			return
		}

		var req AttachNoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.Text == "" {
			writeError(w, http.StatusBadRequest, "validation_failed", "text is required")
			return
		}

		ident, _ := callerIdentity(r)
		authorID := ident.SubjectID
		if ident.Role == identity.RoleAdmin {
			authorID = appt.DoctorID
		}

		rec, err := records.AttachNote(r.Context(), appt.ID, authorID, req.Text)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, rec)
	}
}

func attachPrescriptionHandler(records RecordLinker, booking BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appt, ok := assignedDoctorAppointment(w, r, booking)
		if !ok {
			return
		}

		var req AttachPrescriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.Medication == "" || req.Dosage == "" {
			writeError(w, http.StatusBadRequest, "validation_failed", "medication and dosage are required")
			return
		}

		rec, err := records.AttachPrescription(r.Context(), appt.ID, clinical.Prescription{
			Medication: req.Medication,
			Dosage:     req.Dosage,
			Frequency:  req.Frequency,
			Duration:   req.Duration,
		})
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, rec)
	}
}

func getRecordHandler(records RecordLinker, booking BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlUUID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := booking.Get(r.Context(), id)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		if !appointmentVisible(r, appt) {
			writeError(w, http.StatusForbidden, "forbidden", "caller may not view this record")
			return
		}

		rec, err := records.GetRecord(r.Context(), id)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		if rec == nil {
			// No record yet is an empty result, not an error.
			writeJSON(w, http.StatusOK, clinical.Record{
				AppointmentID: id.String(),
				PatientID:     appt.PatientID.String(),
				Notes:         []clinical.Note{},
				Prescriptions: []clinical.Prescription{},
			})
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}
