package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/smartclinic/clinic-backend/internal/directory"
	"github.com/smartclinic/clinic-backend/internal/identity"
)

func urlUUID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}

func requireRole(w http.ResponseWriter, r *http.Request, roles ...identity.Role) (identity.Identity, bool) {
	ident, ok := callerIdentity(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_identity", "caller identity not resolved")
		return identity.Identity{}, false
	}
	for _, role := range roles {
		if ident.Role == role {
			return ident, true
		}
	}
	writeError(w, http.StatusForbidden, "forbidden", "caller role may not perform this operation")
	return identity.Identity{}, false
}

// selfOrAdmin allows admins through and otherwise requires the caller
// to be acting on their own resource.
func selfOrAdmin(w http.ResponseWriter, r *http.Request, subject uuid.UUID) (identity.Identity, bool) {
	ident, ok := callerIdentity(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_identity", "caller identity not resolved")
		return identity.Identity{}, false
	}
	if ident.Role != identity.RoleAdmin && ident.SubjectID != subject {
		writeError(w, http.StatusForbidden, "forbidden", "caller may not act on this resource")
		return identity.Identity{}, false
	}
	return ident, true
}

func createDoctorHandler(dir DirectoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireRole(w, r, identity.RoleAdmin); !ok {
			return
		}

		var req CreateDoctorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.Name == "" || req.Email == "" {
			writeError(w, http.StatusBadRequest, "validation_failed", "name and email are required")
			return
		}

		created, err := dir.CreateDoctor(r.Context(), directory.Doctor{
			Name:      req.Name,
			Specialty: req.Specialty,
			Email:     req.Email,
			Phone:     req.Phone,
		})
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toDoctorResponse(created))
	}
}

func searchDoctorsHandler(dir DirectoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctors, err := dir.SearchDoctors(r.Context(), r.URL.Query().Get("name"), r.URL.Query().Get("specialty"))
		if err != nil {
			handleDomainError(w, err)
			return
		}

		resp := make([]DoctorResponse, 0, len(doctors))
		for i := range doctors {
			resp = append(resp, toDoctorResponse(&doctors[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getDoctorHandler(dir DirectoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlUUID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
			return
		}

		d, err := dir.GetDoctor(r.Context(), id)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toDoctorResponse(d))
	}
}

func updateDoctorHandler(dir DirectoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlUUID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
			return
		}
		if _, ok := selfOrAdmin(w, r, id); !ok {
			return
		}

		var req UpdateDoctorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		d, err := dir.UpdateDoctor(r.Context(), id, directory.DoctorUpdate{
			Name:      req.Name,
			Specialty: req.Specialty,
			Phone:     req.Phone,
		})
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toDoctorResponse(d))
	}
}

func deleteDoctorHandler(dir DirectoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireRole(w, r, identity.RoleAdmin); !ok {
			return
		}

		id, ok := urlUUID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
			return
		}

		if err := dir.DeleteDoctor(r.Context(), id); err != nil {
			handleDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func createPatientHandler(dir DirectoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreatePatientRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.Name == "" || req.Email == "" {
			writeError(w, http.StatusBadRequest, "validation_failed", "name and email are required")
			return
		}

		created, err := dir.CreatePatient(r.Context(), directory.Patient{
			Name:  req.Name,
			Email: req.Email,
			Phone: req.Phone,
		})
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toPatientResponse(created))
	}
}

func getPatientHandler(dir DirectoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlUUID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "id must be a valid UUID")
			return
		}
		if _, ok := selfOrAdmin(w, r, id); !ok {
			return
		}

		p, err := dir.GetPatient(r.Context(), id)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPatientResponse(p))
	}
}

func updatePatientHandler(dir DirectoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlUUID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "id must be a valid UUID")
			return
		}
		if _, ok := selfOrAdmin(w, r, id); !ok {
			return
		}

		var req UpdatePatientRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		p, err := dir.UpdatePatient(r.Context(), id, directory.PatientUpdate{
			Name:  req.Name,
			Phone: req.Phone,
		})
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPatientResponse(p))
	}
}

func deletePatientHandler(dir DirectoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireRole(w, r, identity.RoleAdmin); !ok {
			return
		}

		id, ok := urlUUID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "id must be a valid UUID")
			return
		}

		if err := dir.DeletePatient(r.Context(), id); err != nil {
			handleDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
