package server

import (
	"net/http"
	"strings"

	"bookcourier/pkg/domain"
)

type createOrderRequest struct {
	BookID  string `json:"bookId"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateOrder(w, r, ident)
	case http.MethodGet:
		s.handleListOrders(w, r, ident)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
	if !s.allowRate(w, r, s.orderLimiter, ident.ID, "too many order requests") {
		s.audit(r, "api.orders.create", "rate_limited", "identity_id", ident.ID)
		return
	}
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	order, err := s.app.CreateOrder(r.Context(), ident, req.BookID, req.Phone, req.Address)
	if err != nil {
		s.audit(r, "api.orders.create", "fail", "identity_id", ident.ID, "book_id", req.BookID, "reason", errMessage(err))
		writeAppError(w, err)
		return
	}
	s.audit(r, "api.orders.create", "success", "identity_id", ident.ID, "order_id", order.ID)
	writeJSON(w, http.StatusCreated, order)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
	orders, err := s.app.ListOrdersForUser(r.Context(), ident)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": orders,
		"count": len(orders),
	})
}

// /api/orders/{id} or /api/orders/{id}/status
func (s *Server) handleOrderByID(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
	path := strings.TrimPrefix(r.URL.Path, "/api/orders/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		notFound(w, "not found")
		return
	}
	if len(parts) == 2 {
		if parts[1] != "status" {
			notFound(w, "not found")
			return
		}
		s.handleOrderStatus(w, r, ident, id)
		return
	}

	switch r.Method {
	case http.MethodGet:
		order, err := s.app.GetOrder(r.Context(), ident, id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, order)
	case http.MethodDelete:
		if err := s.app.CancelOrder(r.Context(), ident, id); err != nil {
			s.audit(r, "api.orders.cancel", "fail", "identity_id", ident.ID, "order_id", id, "reason", errMessage(err))
			writeAppError(w, err)
			return
		}
		s.audit(r, "api.orders.cancel", "success", "identity_id", ident.ID, "order_id", id)
		writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleOrderStatus(w http.ResponseWriter, r *http.Request, ident domain.Identity, id string) {
	if r.Method != http.MethodPatch {
		methodNotAllowed(w)
		return
	}
	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	next, ok := parseOrderStatus(req.Status)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}
	order, err := s.app.UpdateOrderStatus(r.Context(), ident, id, next)
	if err != nil {
		s.audit(r, "api.orders.status", "fail", "identity_id", ident.ID, "order_id", id, "reason", errMessage(err))
		writeAppError(w, err)
		return
	}
	s.audit(r, "api.orders.status", "success", "identity_id", ident.ID, "order_id", id, "status", string(next))
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleLibrarianOrders(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	orders, err := s.app.ListOrdersForLibrarian(r.Context(), ident)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": orders,
		"count": len(orders),
	})
}

func parseOrderStatus(status string) (domain.OrderStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case string(domain.OrderPending):
		return domain.OrderPending, true
	case string(domain.OrderShipped):
		return domain.OrderShipped, true
	case string(domain.OrderDelivered):
		return domain.OrderDelivered, true
	default:
		return "", false
	}
}
