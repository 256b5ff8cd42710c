package server

import (
	"net/http"
	"strings"

	"bookcourier/pkg/domain"
)

type changeRoleRequest struct {
	Role string `json:"role"`
}

func (s *Server) handleIdentities(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	identities, err := s.app.ListIdentities(r.Context(), ident)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": identities,
		"count": len(identities),
	})
}

// /api/identities/{id}/role
func (s *Server) handleIdentityByID(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
	path := strings.TrimPrefix(r.URL.Path, "/api/identities/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" || len(parts) != 2 || parts[1] != "role" {
		notFound(w, "not found")
		return
	}
	if r.Method != http.MethodPatch {
		methodNotAllowed(w)
		return
	}
	var req changeRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	updated, err := s.app.ChangeRole(r.Context(), ident, id, domain.Role(strings.ToLower(strings.TrimSpace(req.Role))))
	if err != nil {
		s.audit(r, "api.identities.role", "fail", "identity_id", ident.ID, "target_id", id, "reason", errMessage(err))
		writeAppError(w, err)
		return
	}
	s.audit(r, "api.identities.role", "success", "identity_id", ident.ID, "target_id", id, "role", string(updated.Role))
	writeJSON(w, http.StatusOK, updated)
}
