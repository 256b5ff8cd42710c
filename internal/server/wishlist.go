package server

import (
	"net/http"

	"bookcourier/pkg/domain"
)

type toggleWishlistRequest struct {
	BookID string `json:"bookId"`
}

func (s *Server) handleWishlist(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
	switch r.Method {
	case http.MethodPost:
		s.handleToggleWishlist(w, r, ident)
	case http.MethodGet:
		s.handleListWishlist(w, r, ident)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleToggleWishlist(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
	var req toggleWishlistRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	effect, err := s.app.ToggleWishlist(r.Context(), ident, req.BookID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"action": effect})
}

func (s *Server) handleListWishlist(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
	entries, err := s.app.ListWishlist(r.Context(), ident)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": entries,
		"count": len(entries),
	})
}
