package server

import (
	"net/http"
	"strings"

	"bookcourier/pkg/domain"
)

type checkoutSessionRequest struct {
	OrderID string `json:"orderId"`
}

type confirmPaymentRequest struct {
	SessionID string `json:"sessionId"`
}

func (s *Server) handleCheckoutSessions(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.checkoutLimiter, ident.ID, "too many checkout requests") {
		s.audit(r, "api.checkout.create", "rate_limited", "identity_id", ident.ID)
		return
	}
	var req checkoutSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	session, err := s.app.CreateCheckoutSession(r.Context(), ident, req.OrderID)
	if err != nil {
		s.audit(r, "api.checkout.create", "fail", "identity_id", ident.ID, "order_id", req.OrderID, "reason", errMessage(err))
		writeAppError(w, err)
		return
	}
	s.audit(r, "api.checkout.create", "success", "identity_id", ident.ID, "order_id", req.OrderID)
	writeJSON(w, http.StatusCreated, session)
}

// handlePaymentConfirmations settles a checkout session against its order.
// Both POST and PATCH are accepted, and the session may arrive as a JSON
// body or a session_id query parameter; redirect targets use the latter.
func (s *Server) handlePaymentConfirmations(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
	if r.Method != http.MethodPost && r.Method != http.MethodPatch {
		methodNotAllowed(w)
		return
	}
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		var req confirmPaymentRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		sessionID = strings.TrimSpace(req.SessionID)
	}
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}
	result, err := s.app.ConfirmPayment(r.Context(), sessionID)
	if err != nil {
		s.audit(r, "api.payments.confirm", "fail", "identity_id", ident.ID, "session_id", sessionID, "reason", errMessage(err))
		writeAppError(w, err)
		return
	}
	s.audit(r, "api.payments.confirm", "success", "identity_id", ident.ID, "order_id", result.OrderID, "effect", result.Effect)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePayments(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	payments, err := s.app.ListPaymentsForUser(r.Context(), ident)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": payments,
		"count": len(payments),
	})
}

func (s *Server) handleAdminPayments(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	payments, err := s.app.ListAllPayments(r.Context(), ident)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": payments,
		"count": len(payments),
	})
}
