package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"bookcourier/internal/app"
	"bookcourier/internal/identitytoken"
	"bookcourier/internal/ratelimit"
	"bookcourier/internal/util"
	"bookcourier/pkg/domain"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                        *app.App
	TokenVerifier              *identitytoken.Verifier
	RedisAddr                  string
	RedisPassword              string
	TrustedProxies             []string
	OrderRateLimitPerMinute    int
	CheckoutRateLimitPerMinute int
	ReviewRateLimitPerMinute   int
}

// Server exposes the HTTP API.
type Server struct {
	app             *app.App
	tokenVerifier   *identitytoken.Verifier
	mux             *http.ServeMux
	trustedProxies  *util.TrustedProxies
	orderLimiter    *ratelimit.FixedWindowLimiter
	checkoutLimiter *ratelimit.FixedWindowLimiter
	reviewLimiter   *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	orderLimit := cfg.OrderRateLimitPerMinute
	if orderLimit <= 0 {
		orderLimit = 30
	}
	checkoutLimit := cfg.CheckoutRateLimitPerMinute
	if checkoutLimit <= 0 {
		checkoutLimit = 10
	}
	reviewLimit := cfg.ReviewRateLimitPerMinute
	if reviewLimit <= 0 {
		reviewLimit = 20
	}
	rateWindow := time.Minute
	newLimiter := func(name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
		prefix := "bookcourier:api:ratelimit:" + name
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, prefix, limit, rateWindow)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	orderLimiter, err := newLimiter("orders", orderLimit)
	if err != nil {
		return nil, err
	}
	checkoutLimiter, err := newLimiter("checkout", checkoutLimit)
	if err != nil {
		return nil, err
	}
	reviewLimiter, err := newLimiter("reviews", reviewLimit)
	if err != nil {
		return nil, err
	}
	trustedProxies, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("parse trusted proxies: %w", err)
	}
	s := &Server{
		app:             cfg.App,
		tokenVerifier:   cfg.TokenVerifier,
		mux:             http.NewServeMux(),
		trustedProxies:  trustedProxies,
		orderLimiter:    orderLimiter,
		checkoutLimiter: checkoutLimiter,
		reviewLimiter:   reviewLimiter,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("api", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// orders
	s.mux.Handle("/api/orders", s.authenticated(s.handleOrders))
	s.mux.Handle("/api/orders/", s.authenticated(s.handleOrderByID))
	s.mux.Handle("/api/librarian/orders", s.librarianOnly(s.handleLibrarianOrders))

	// payments
	s.mux.Handle("/api/checkout-sessions", s.authenticated(s.handleCheckoutSessions))
	s.mux.Handle("/api/payment-confirmations", s.authenticated(s.handlePaymentConfirmations))
	s.mux.Handle("/api/payments", s.authenticated(s.handlePayments))
	s.mux.Handle("/api/admin/payments", s.adminOnly(s.handleAdminPayments))

	// wishlist & reviews
	s.mux.Handle("/api/wishlist", s.authenticated(s.handleWishlist))
	s.mux.Handle("/api/reviews", s.authenticated(s.handleReviews))
	s.mux.Handle("/api/me/stats", s.authenticated(s.handleMyStats))

	// identities (admin)
	s.mux.Handle("/api/identities", s.adminOnly(s.handleIdentities))
	s.mux.Handle("/api/identities/", s.adminOnly(s.handleIdentityByID))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type authHandler func(http.ResponseWriter, *http.Request, domain.Identity)

// authenticated verifies the bearer token and resolves the caller's stored
// identity (with role) before invoking the handler.
func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, ok := s.identify(w, r)
		if !ok {
			return
		}
		next(w, r, ident)
	})
}

func (s *Server) librarianOnly(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, ok := s.identify(w, r)
		if !ok {
			return
		}
		if ident.Role != domain.RoleLibrarian && ident.Role != domain.RoleAdmin {
			s.audit(r, "api.librarian.authorize", "fail", "identity_id", ident.ID, "reason", "forbidden")
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r, ident)
	})
}

func (s *Server) adminOnly(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, ok := s.identify(w, r)
		if !ok {
			return
		}
		if ident.Role != domain.RoleAdmin {
			s.audit(r, "api.admin.authorize", "fail", "identity_id", ident.ID, "reason", "forbidden")
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r, ident)
	})
}

func (s *Server) identify(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	if s.tokenVerifier == nil {
		writeError(w, http.StatusInternalServerError, "token verifier not configured")
		return domain.Identity{}, false
	}
	token, ok := bearerToken(r)
	if !ok {
		s.audit(r, "api.authorize", "fail", "reason", "missing_token")
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return domain.Identity{}, false
	}
	claims, err := s.tokenVerifier.Verify(token)
	if err != nil {
		s.audit(r, "api.authorize", "fail", "reason", "invalid_token")
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return domain.Identity{}, false
	}
	ident, err := s.app.ResolveIdentity(r.Context(), app.IdentityClaims{
		ID:          claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.DisplayName,
		PhotoURL:    claims.PhotoURL,
	})
	if err != nil {
		s.audit(r, "api.authorize", "fail", "reason", "identity_resolve_failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return domain.Identity{}, false
	}
	return ident, true
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r, s.trustedProxies),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, key, msg string) bool {
	if limiter.Allow(r.URL.Path + "|" + key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusNotFound, msg)
}

// writeAppError maps app-layer error categories to HTTP statuses. The
// wrapped message is surfaced as-is; categories carry no internals.
func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrValidation):
		writeError(w, http.StatusBadRequest, errMessage(err))
	case errors.Is(err, app.ErrNotFound):
		writeError(w, http.StatusNotFound, errMessage(err))
	case errors.Is(err, app.ErrForbidden):
		writeError(w, http.StatusForbidden, errMessage(err))
	case errors.Is(err, app.ErrConflict), errors.Is(err, app.ErrInvalidTransition):
		writeError(w, http.StatusConflict, errMessage(err))
	case errors.Is(err, app.ErrUpstreamUnavailable):
		writeError(w, http.StatusBadGateway, errMessage(err))
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func errMessage(err error) string {
	msg := err.Error()
	for _, sentinel := range []string{"invalid input: ", "not found: ", "forbidden: ", "conflict: ", "invalid status transition: ", "upstream unavailable: "} {
		if strings.HasPrefix(msg, sentinel) {
			return strings.TrimPrefix(msg, sentinel)
		}
	}
	return msg
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      errorCodeFor(status),
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

func errorCodeFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "REQUEST_INVALID"
	case http.StatusUnauthorized:
		return "AUTH_INVALID_TOKEN"
	case http.StatusForbidden:
		return "ACCESS_FORBIDDEN"
	case http.StatusNotFound:
		return "RESOURCE_NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "SYSTEM_METHOD_NOT_ALLOWED"
	case http.StatusConflict:
		return "RESOURCE_CONFLICT"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	case http.StatusBadGateway:
		return "UPSTREAM_UNAVAILABLE"
	default:
		if status >= http.StatusInternalServerError {
			return "SYSTEM_INTERNAL_ERROR"
		}
		return "REQUEST_ERROR"
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}
