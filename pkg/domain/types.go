package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleLibrarian Role = "librarian"
	RoleAdmin     Role = "admin"
)

// ValidRole reports whether r is one of the three known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleUser, RoleLibrarian, RoleAdmin:
		return true
	}
	return false
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
)

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

type BookStatus string

const (
	BookPublished   BookStatus = "publish"
	BookUnpublished BookStatus = "unpublish"
)

// Identity is an authenticated principal supplied by the identity provider,
// with the role this service stores for it.
type Identity struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	PhotoURL    string    `json:"photoURL,omitempty"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Book is catalog data read at order-creation time. The catalog owns it;
// this service only snapshots from it.
type Book struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Price          decimal.Decimal `json:"price"`
	Status         BookStatus      `json:"status"`
	ImageURL       string          `json:"image,omitempty"`
	LibrarianID    string          `json:"librarianId"`
	LibrarianName  string          `json:"librarianName"`
	LibrarianEmail string          `json:"librarianEmail"`
	LibrarianPhoto string          `json:"librarianPhoto,omitempty"`
}

// LibrarianSnapshot is librarian detail frozen onto an order at creation.
type LibrarianSnapshot struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Photo string `json:"photo,omitempty"`
}

// CustomerSnapshot is customer detail frozen onto an order at creation.
type CustomerSnapshot struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Photo   string `json:"photo,omitempty"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// Order links a user to a book through the lending lifecycle. The snapshots
// and PriceSnapshot are immutable once written; later profile or price edits
// do not rewrite order history. Cancellation deletes the row outright.
type Order struct {
	ID            string            `json:"id"`
	BookID        string            `json:"bookId"`
	UserID        string            `json:"userId"`
	Librarian     LibrarianSnapshot `json:"librarianDetails"`
	Customer      CustomerSnapshot  `json:"customerDetails"`
	Status        OrderStatus       `json:"status"`
	PaymentStatus PaymentStatus     `json:"paymentStatus"`
	PriceSnapshot decimal.Decimal   `json:"priceSnapshot"`
	CreatedAt     time.Time         `json:"createdAt"`
	PaidAt        *time.Time        `json:"paidAt,omitempty"`
}

// Payment records a settled checkout. Exactly one exists per order, ever,
// and it is never mutated after creation.
type Payment struct {
	ID            string          `json:"id"`
	OrderID       string          `json:"orderId"`
	UserID        string          `json:"userId"`
	BookID        string          `json:"bookId"`
	TransactionID string          `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
	PaidAt        time.Time       `json:"paidAt"`
}

// WishlistEntry marks membership of a book in a user's wishlist.
type WishlistEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	BookID    string    `json:"bookId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Review is a purchase-gated rating. One per (user, book); resubmitting
// revises the existing row.
type Review struct {
	ID        string    `json:"id"`
	BookID    string    `json:"bookId"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	UserPhoto string    `json:"userPhoto,omitempty"`
	Rating    float64   `json:"rating"`
	Text      string    `json:"review"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserStats is the per-user dashboard aggregate, recomputed from live rows.
type UserStats struct {
	TotalOrders   int             `json:"totalOrders"`
	PaidOrders    int             `json:"paidOrders"`
	TotalSpent    decimal.Decimal `json:"totalSpent"`
	WishlistCount int             `json:"wishlistCount"`
	TotalReviews  int             `json:"totalReviews"`
	AvgRating     float64         `json:"avgRating"`
}
