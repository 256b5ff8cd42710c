package server

import (
	"net/http"
	"strings"

	"bookcourier/pkg/domain"
)

type submitReviewRequest struct {
	BookID string  `json:"bookId"`
	Rating float64 `json:"rating"`
	Text   string  `json:"review"`
}

func (s *Server) handleReviews(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
	switch r.Method {
	case http.MethodPost:
		s.handleSubmitReview(w, r, ident)
	case http.MethodGet:
		s.handleListReviews(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleSubmitReview(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
	if !s.allowRate(w, r, s.reviewLimiter, ident.ID, "too many review requests") {
		s.audit(r, "api.reviews.submit", "rate_limited", "identity_id", ident.ID)
		return
	}
	var req submitReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	review, effect, err := s.app.SubmitReview(r.Context(), ident, req.BookID, req.Rating, req.Text)
	if err != nil {
		s.audit(r, "api.reviews.submit", "fail", "identity_id", ident.ID, "book_id", req.BookID, "reason", errMessage(err))
		writeAppError(w, err)
		return
	}
	status := http.StatusOK
	if effect == "created" {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{
		"review": review,
		"action": effect,
	})
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	bookID := strings.TrimSpace(r.URL.Query().Get("bookId"))
	reviews, avg, err := s.app.ListReviewsForBook(r.Context(), bookID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":         reviews,
		"count":         len(reviews),
		"averageRating": avg,
	})
}

func (s *Server) handleMyStats(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	stats, err := s.app.ComputeUserStats(r.Context(), ident)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
