package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/smartclinic/clinic-backend/internal/appointment"
	"github.com/smartclinic/clinic-backend/internal/availability"
	"github.com/smartclinic/clinic-backend/internal/clinical"
	"github.com/smartclinic/clinic-backend/internal/directory"
	redisclient "github.com/smartclinic/clinic-backend/internal/redis"
)

// handleDomainError maps the error taxonomy of the core packages onto
// HTTP statuses and stable machine-readable codes, so a caller can
// decide between retrying and surfacing the failure.
func handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, directory.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, directory.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, availability.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, clinical.ErrAppointmentMissing):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())

	case errors.Is(err, directory.ErrDoctorExists):
		writeError(w, http.StatusConflict, "doctor_exists", err.Error())
	case errors.Is(err, directory.ErrPatientExists):
		writeError(w, http.StatusConflict, "patient_exists", err.Error())
	case errors.Is(err, availability.ErrSlotExists):
		writeError(w, http.StatusConflict, "slot_exists", err.Error())
	case errors.Is(err, availability.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_already_booked", err.Error())
	case errors.Is(err, appointment.ErrSlotContended),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, appointment.ErrAppointmentBusy):
		writeError(w, http.StatusConflict, "appointment_busy", "appointment is being modified, please retry shortly")
	case errors.Is(err, appointment.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())

	case errors.Is(err, availability.ErrInvalidSlot),
		errors.Is(err, appointment.ErrPastAppointmentTime):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())

	case errors.Is(err, appointment.ErrNotOwner):
		writeError(w, http.StatusForbidden, "not_owner", err.Error())

	case errors.Is(err, appointment.ErrInsideCancelWindow):
		writeError(w, http.StatusUnprocessableEntity, "cancellation_window", err.Error())

	case errors.Is(err, appointment.ErrCompensationFailed),
		errors.Is(err, clinical.ErrPartialCompletion):
		writeError(w, http.StatusInternalServerError, "partial_failure", err.Error())

	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", "operation exceeded its deadline")

	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
