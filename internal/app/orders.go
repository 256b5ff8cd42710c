package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"bookcourier/internal/catalog"
	"bookcourier/pkg/domain"
	"bookcourier/pkg/store"
)

// CreateOrder places a pending/unpaid order for the actor, freezing the
// librarian and customer details and the book price at this instant.
func (a *App) CreateOrder(ctx context.Context, actor domain.Identity, bookID, phone, address string) (domain.Order, error) {
	bookID = strings.TrimSpace(bookID)
	phone = strings.TrimSpace(phone)
	address = strings.TrimSpace(address)
	if bookID == "" {
		return domain.Order{}, fmt.Errorf("%w: bookId is required", ErrValidation)
	}
	if phone == "" || address == "" {
		return domain.Order{}, fmt.Errorf("%w: phone and address are required", ErrValidation)
	}

	book, err := a.catalog.GetBook(ctx, bookID)
	if err != nil {
		var apiErr *catalog.APIError
		if errors.As(err, &apiErr) && apiErr.Status == 404 {
			return domain.Order{}, fmt.Errorf("%w: book %s", ErrNotFound, bookID)
		}
		return domain.Order{}, fmt.Errorf("%w: fetch book: %v", ErrUpstreamUnavailable, err)
	}
	if book.Status != domain.BookPublished {
		return domain.Order{}, fmt.Errorf("%w: book is not available for ordering", ErrConflict)
	}

	now := time.Now().UTC()
	order := domain.Order{
		ID:     uuid.NewString(),
		BookID: book.ID,
		UserID: actor.ID,
		Librarian: domain.LibrarianSnapshot{
			Name:  book.LibrarianName,
			Email: book.LibrarianEmail,
			Photo: book.LibrarianPhoto,
		},
		Customer: domain.CustomerSnapshot{
			Name:    actor.DisplayName,
			Email:   actor.Email,
			Photo:   actor.PhotoURL,
			Phone:   phone,
			Address: address,
		},
		Status:        domain.OrderPending,
		PaymentStatus: domain.PaymentUnpaid,
		PriceSnapshot: book.Price,
		CreatedAt:     now,
	}
	if err := a.store.CreateOrder(order); err != nil {
		if errors.Is(err, store.ErrDuplicateOrder) {
			return domain.Order{}, fmt.Errorf("%w: you already have an order for this book", ErrConflict)
		}
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}
	return order, nil
}

// GetOrder returns one order, visible to its owner, the librarian it is
// addressed to, and admins.
func (a *App) GetOrder(ctx context.Context, actor domain.Identity, orderID string) (domain.Order, error) {
	order, ok, err := a.store.GetOrder(orderID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("fetch order: %w", err)
	}
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	if !canSeeOrder(actor, order) {
		return domain.Order{}, fmt.Errorf("%w: not your order", ErrForbidden)
	}
	return order, nil
}

func canSeeOrder(actor domain.Identity, order domain.Order) bool {
	switch {
	case actor.Role == domain.RoleAdmin:
		return true
	case order.UserID == actor.ID:
		return true
	case actor.Role == domain.RoleLibrarian && order.Librarian.Email == actor.Email:
		return true
	}
	return false
}

// ListOrdersForUser returns the actor's own orders.
func (a *App) ListOrdersForUser(ctx context.Context, actor domain.Identity) ([]domain.Order, error) {
	return a.store.ListOrdersByUser(actor.ID)
}

// ListOrdersForLibrarian returns orders addressed to the acting librarian.
func (a *App) ListOrdersForLibrarian(ctx context.Context, actor domain.Identity) ([]domain.Order, error) {
	if actor.Role != domain.RoleLibrarian && actor.Role != domain.RoleAdmin {
		return nil, fmt.Errorf("%w: librarian role required", ErrForbidden)
	}
	return a.store.ListOrdersByLibrarianEmail(actor.Email)
}

// UpdateOrderStatus advances the order along pending -> shipped -> delivered.
// The transition is a single compare-and-set; concurrent mutations make the
// swap miss rather than regress state.
func (a *App) UpdateOrderStatus(ctx context.Context, actor domain.Identity, orderID string, next domain.OrderStatus) (domain.Order, error) {
	if actor.Role != domain.RoleLibrarian && actor.Role != domain.RoleAdmin {
		return domain.Order{}, fmt.Errorf("%w: librarian role required", ErrForbidden)
	}
	order, ok, err := a.store.GetOrder(orderID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("fetch order: %w", err)
	}
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	if actor.Role == domain.RoleLibrarian && order.Librarian.Email != actor.Email {
		return domain.Order{}, fmt.Errorf("%w: order belongs to another librarian", ErrForbidden)
	}

	var from domain.OrderStatus
	switch next {
	case domain.OrderShipped:
		from = domain.OrderPending
	case domain.OrderDelivered:
		from = domain.OrderShipped
	default:
		return domain.Order{}, fmt.Errorf("%w: cannot move an order to %q", ErrInvalidTransition, next)
	}

	swapped, err := a.store.AdvanceOrderStatus(orderID, from, next)
	if err != nil {
		return domain.Order{}, fmt.Errorf("advance status: %w", err)
	}
	if !swapped {
		// The CAS missed: the order moved concurrently or was cancelled.
		if _, stillThere, err := a.store.GetOrder(orderID); err != nil {
			return domain.Order{}, fmt.Errorf("fetch order: %w", err)
		} else if !stillThere {
			return domain.Order{}, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
		}
		return domain.Order{}, fmt.Errorf("%w: order is not %s", ErrInvalidTransition, from)
	}
	order.Status = next
	return order, nil
}

// CancelOrder hard-deletes a pending, unpaid order. The unpaid check runs
// inside the same atomic step as the delete, so a payment confirmation
// racing in makes the cancel fail instead of deleting a paid order.
func (a *App) CancelOrder(ctx context.Context, actor domain.Identity, orderID string) error {
	order, ok, err := a.store.GetOrder(orderID)
	if err != nil {
		return fmt.Errorf("fetch order: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	if order.UserID != actor.ID && actor.Role != domain.RoleAdmin {
		return fmt.Errorf("%w: not your order", ErrForbidden)
	}

	deleted, err := a.store.DeleteOrderIfCancellable(orderID)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	if deleted {
		return nil
	}
	// The guarded delete missed; classify what changed underneath us.
	order, ok, err = a.store.GetOrder(orderID)
	if err != nil {
		return fmt.Errorf("fetch order: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	if order.PaymentStatus == domain.PaymentPaid {
		return fmt.Errorf("%w: a paid order cannot be cancelled", ErrConflict)
	}
	return fmt.Errorf("%w: only pending orders can be cancelled", ErrConflict)
}
