package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Go-ku/zmapp/internal/auth"
)

type setActiveRequest struct {
	IsActive *bool `json:"isActive"`
}

// handleListStaff returns the staff of a landlord. Landlords see their own
// staff; SYSTEM_ADMIN names the landlord with ?landlordId=.
func (s *Server) handleListStaff(w http.ResponseWriter, r *http.Request) {
	actor := identityFromContext(r.Context())

	landlordID := r.URL.Query().Get("landlordId")
	if landlordID == "" {
		if !actor.Role.Is(auth.RoleLandlord) {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, "landlordId is required")
			return
		}
		landlordID = actor.ID
	}

	staff, err := s.auth.ListStaff(r.Context(), actor, landlordID)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"staff": staff,
		"count": len(staff),
	})
}

// handleUpdateStaffPermissions replaces a staff member's permission flags.
func (s *Server) handleUpdateStaffPermissions(w http.ResponseWriter, r *http.Request) {
	var perms auth.StaffPermissions
	if !decodeJSON(w, r, &perms) {
		return
	}

	actor := identityFromContext(r.Context())
	user, err := s.auth.UpdateStaffPermissions(r.Context(), actor, chi.URLParam(r, "id"), perms, s.requestMeta(r))
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Staff permissions updated",
		"user":    user,
	})
}

// handleSetUserActive activates or deactivates an account.
func (s *Server) handleSetUserActive(w http.ResponseWriter, r *http.Request) {
	var req setActiveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.IsActive == nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "isActive is required")
		return
	}

	actor := identityFromContext(r.Context())
	userID := chi.URLParam(r, "id")
	if err := s.auth.SetActive(r.Context(), actor, userID, *req.IsActive, s.requestMeta(r)); err != nil {
		s.writeAuthError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Account status updated",
		"userId":   userID,
		"isActive": *req.IsActive,
	})
}

// handleUnlockUser clears an account lockout.
func (s *Server) handleUnlockUser(w http.ResponseWriter, r *http.Request) {
	actor := identityFromContext(r.Context())
	userID := chi.URLParam(r, "id")
	if err := s.auth.Unlock(r.Context(), actor, userID, s.requestMeta(r)); err != nil {
		s.writeAuthError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Account unlocked",
		"userId":  userID,
	})
}
