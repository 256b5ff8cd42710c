package store

import (
	"errors"

	"bookcourier/pkg/domain"
)

var (
	// ErrDuplicateOrder signals the user already holds a live order for the book.
	ErrDuplicateOrder = errors.New("order already exists for this book")
	// ErrOrderGone signals the order row vanished (cancelled) before the mutation.
	ErrOrderGone = errors.New("order no longer exists")
	// ErrAlreadyPaid signals the order was settled by an earlier confirmation.
	ErrAlreadyPaid = errors.New("order already paid")
)

// Store defines persistence operations for identities, orders, payments,
// wishlist entries, and reviews.
//
// Every mutation that depends on current order state is a single atomic
// conditional step inside the store; callers never read-modify-write across
// two round trips.
type Store interface {
	// identities
	SaveIdentity(id domain.Identity) error
	GetIdentityByID(id string) (domain.Identity, bool, error)
	GetIdentityByEmail(email string) (domain.Identity, bool, error)
	ListIdentities() ([]domain.Identity, error)
	SetIdentityRole(id string, role domain.Role) (bool, error)

	// orders
	CreateOrder(o domain.Order) error
	GetOrder(id string) (domain.Order, bool, error)
	ListOrdersByUser(userID string) ([]domain.Order, error)
	ListOrdersByLibrarianEmail(email string) ([]domain.Order, error)
	// AdvanceOrderStatus performs a compare-and-set from -> to and reports
	// whether a row actually transitioned.
	AdvanceOrderStatus(id string, from, to domain.OrderStatus) (bool, error)
	// DeleteOrderIfCancellable deletes the order only while it is still
	// pending and unpaid, in the same atomic step as those checks.
	DeleteOrderIfCancellable(id string) (bool, error)
	// MarkOrderPaid atomically flips paymentStatus unpaid -> paid and inserts
	// the payment row. Returns ErrOrderGone when the order was cancelled,
	// ErrAlreadyPaid when a confirmation already settled it.
	MarkOrderPaid(p domain.Payment) error
	HasPaidOrder(userID, bookID string) (bool, error)

	// payments
	GetPaymentByOrder(orderID string) (domain.Payment, bool, error)
	ListPaymentsByUser(userID string) ([]domain.Payment, error)
	ListPayments() ([]domain.Payment, error)

	// wishlist
	// ToggleWishlist inserts the entry when absent and deletes it when
	// present, reporting true for added and false for removed.
	ToggleWishlist(entry domain.WishlistEntry) (bool, error)
	ListWishlistByUser(userID string) ([]domain.WishlistEntry, error)

	// reviews
	// UpsertReview creates the review or revises the existing (user, book)
	// row, reporting true when a new row was created.
	UpsertReview(r domain.Review) (bool, error)
	ListReviewsByBook(bookID string) ([]domain.Review, error)
	ListReviewsByUser(userID string) ([]domain.Review, error)
}
