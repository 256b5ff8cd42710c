package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"bookcourier/internal/checkout"
	"bookcourier/pkg/domain"
	"bookcourier/pkg/store"
)

// Confirmation effects reported to callers so they never have to infer the
// outcome from a status code.
const (
	EffectPaid        = "paid"
	EffectAlreadyPaid = "already-paid"
)

// CheckoutSession is the redirect handle returned to the client.
type CheckoutSession struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// ConfirmResult reports the concrete effect of a payment confirmation.
type ConfirmResult struct {
	Effect        string `json:"effect"`
	OrderID       string `json:"orderId"`
	TransactionID string `json:"transactionId"`
}

// CreateCheckoutSession requests a hosted checkout session for a pending,
// unpaid order owned by the actor. Order state is untouched; payment is not
// presumed until the confirmation arrives.
func (a *App) CreateCheckoutSession(ctx context.Context, actor domain.Identity, orderID string) (CheckoutSession, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return CheckoutSession{}, fmt.Errorf("%w: orderId is required", ErrValidation)
	}
	order, ok, err := a.store.GetOrder(orderID)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("fetch order: %w", err)
	}
	if !ok {
		return CheckoutSession{}, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	if order.UserID != actor.ID {
		return CheckoutSession{}, fmt.Errorf("%w: not your order", ErrForbidden)
	}
	if order.PaymentStatus == domain.PaymentPaid {
		return CheckoutSession{}, fmt.Errorf("%w: order is already paid", ErrConflict)
	}
	if order.Status != domain.OrderPending {
		return CheckoutSession{}, fmt.Errorf("%w: order is no longer pending", ErrConflict)
	}

	session, err := a.checkout.CreateSession(ctx, checkout.CreateSessionRequest{
		OrderID:       order.ID,
		CustomerEmail: order.Customer.Email,
		Amount:        order.PriceSnapshot,
		Currency:      a.currency,
		SuccessURL:    a.successURL,
		CancelURL:     a.cancelURL,
	})
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("%w: create session: %v", ErrUpstreamUnavailable, err)
	}
	return CheckoutSession{SessionID: session.ID, URL: session.URL}, nil
}

// ConfirmPayment is the single payment-state-mutating operation. It is
// idempotent by session ID: a repeated confirmation returns the original
// transaction ID and creates no second payment row. A confirmation for an
// order cancelled in the meantime is logged and reported as having no effect.
func (a *App) ConfirmPayment(ctx context.Context, sessionID string) (ConfirmResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ConfirmResult{}, fmt.Errorf("%w: sessionId is required", ErrValidation)
	}

	session, err := a.checkout.GetSession(ctx, sessionID)
	if err != nil {
		var apiErr *checkout.APIError
		if errors.As(err, &apiErr) && apiErr.Status == 404 {
			return ConfirmResult{}, fmt.Errorf("%w: checkout session %s", ErrNotFound, sessionID)
		}
		return ConfirmResult{}, fmt.Errorf("%w: fetch session: %v", ErrUpstreamUnavailable, err)
	}
	if session.OrderID == "" {
		return ConfirmResult{}, fmt.Errorf("%w: session is not bound to an order", ErrNotFound)
	}
	if session.PaymentStatus != "paid" {
		return ConfirmResult{}, fmt.Errorf("%w: checkout session is not settled", ErrConflict)
	}
	transactionID := session.TransactionID
	if transactionID == "" {
		transactionID = session.ID
	}

	order, ok, err := a.store.GetOrder(session.OrderID)
	if err != nil {
		return ConfirmResult{}, fmt.Errorf("fetch order: %w", err)
	}
	if !ok {
		a.logOrphanedConfirmation(session, transactionID)
		return ConfirmResult{}, fmt.Errorf("%w: order was cancelled before the confirmation arrived; the payment was not applied", ErrConflict)
	}
	if order.PaymentStatus == domain.PaymentPaid {
		return a.alreadyPaidResult(order.ID)
	}

	payment := domain.Payment{
		ID:            uuid.NewString(),
		OrderID:       order.ID,
		UserID:        order.UserID,
		BookID:        order.BookID,
		TransactionID: transactionID,
		// Always the snapshot taken at order creation, never the book's
		// current price.
		Amount: order.PriceSnapshot,
		PaidAt: time.Now().UTC(),
	}
	switch err := a.store.MarkOrderPaid(payment); {
	case err == nil:
		return ConfirmResult{Effect: EffectPaid, OrderID: order.ID, TransactionID: transactionID}, nil
	case errors.Is(err, store.ErrAlreadyPaid):
		return a.alreadyPaidResult(order.ID)
	case errors.Is(err, store.ErrOrderGone):
		a.logOrphanedConfirmation(session, transactionID)
		return ConfirmResult{}, fmt.Errorf("%w: order was cancelled before the confirmation arrived; the payment was not applied", ErrConflict)
	default:
		return ConfirmResult{}, fmt.Errorf("record payment: %w", err)
	}
}

func (a *App) alreadyPaidResult(orderID string) (ConfirmResult, error) {
	existing, ok, err := a.store.GetPaymentByOrder(orderID)
	if err != nil {
		return ConfirmResult{}, fmt.Errorf("fetch payment: %w", err)
	}
	if !ok {
		// paymentStatus == paid implies exactly one payment row.
		return ConfirmResult{}, fmt.Errorf("order %s marked paid but has no payment record", orderID)
	}
	return ConfirmResult{Effect: EffectAlreadyPaid, OrderID: orderID, TransactionID: existing.TransactionID}, nil
}

func (a *App) logOrphanedConfirmation(session checkout.Session, transactionID string) {
	slog.Warn("payment confirmation for cancelled order",
		"session_id", session.ID,
		"order_id", session.OrderID,
		"transaction_id", transactionID,
		"amount", session.Amount.String(),
	)
}

// ListPaymentsForUser returns the actor's payment history.
func (a *App) ListPaymentsForUser(ctx context.Context, actor domain.Identity) ([]domain.Payment, error) {
	return a.store.ListPaymentsByUser(actor.ID)
}

// ListAllPayments returns every payment, for the admin transactions view.
func (a *App) ListAllPayments(ctx context.Context, actor domain.Identity) ([]domain.Payment, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	return a.store.ListPayments()
}
