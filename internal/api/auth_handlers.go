package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/smartclinic/clinic-backend/internal/identity"
)

// loginHandler exchanges an email + role for a caller token. The token
// itself is an implementation detail of the identity collaborator; the
// booking core only ever sees the resolved role and subject id.
func loginHandler(dir DirectoryService, tokens TokenIssuer, adminEmail string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		role := identity.Role(req.Role)
		if !role.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_role", "role must be admin, doctor, or patient")
			return
		}

		var subject uuid.UUID
		switch role {
		case identity.RoleAdmin:
			if req.Email != adminEmail {
				writeError(w, http.StatusUnauthorized, "unknown_identity", "no such admin")
				return
			}
			subject = uuid.Nil
		case identity.RoleDoctor:
			d, err := dir.GetDoctorByEmail(r.Context(), req.Email)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unknown_identity", "no doctor with that email")
				return
			}
			subject = d.ID
		case identity.RolePatient:
			p, err := dir.GetPatientByEmail(r.Context(), req.Email)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unknown_identity", "no patient with that email")
				return
			}
			subject = p.ID
		}

		token, err := tokens.Mint(identity.Identity{Role: role, SubjectID: subject})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, LoginResponse{
			Token:     token,
			Role:      string(role),
			SubjectID: subject,
		})
	}
}
