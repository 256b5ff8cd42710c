package store

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// GORM models used for persistence.
type IdentityModel struct {
	ID          string `gorm:"primaryKey"`
	Email       string `gorm:"uniqueIndex;not null"`
	DisplayName string
	PhotoURL    string
	Role        string    `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time
}

type OrderModel struct {
	ID                string          `gorm:"primaryKey"`
	BookID            string          `gorm:"not null;uniqueIndex:idx_orders_user_book"`
	UserID            string          `gorm:"not null;uniqueIndex:idx_orders_user_book;index"`
	LibrarianSnapshot datatypes.JSON  `gorm:"type:jsonb;not null"`
	CustomerSnapshot  datatypes.JSON  `gorm:"type:jsonb;not null"`
	LibrarianEmail    string          `gorm:"not null;index"`
	Status            string          `gorm:"not null"`
	PaymentStatus     string          `gorm:"not null"`
	PriceSnapshot     decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	CreatedAt         time.Time       `gorm:"not null;index"`
	PaidAt            *time.Time
}

type PaymentModel struct {
	ID            string          `gorm:"primaryKey"`
	OrderID       string          `gorm:"not null;uniqueIndex"`
	UserID        string          `gorm:"not null;index"`
	BookID        string          `gorm:"not null"`
	TransactionID string          `gorm:"not null"`
	Amount        decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	PaidAt        time.Time       `gorm:"not null;index"`
}

type WishlistModel struct {
	ID        string    `gorm:"primaryKey"`
	UserID    string    `gorm:"not null;uniqueIndex:idx_wishlist_user_book;index"`
	BookID    string    `gorm:"not null;uniqueIndex:idx_wishlist_user_book"`
	CreatedAt time.Time `gorm:"not null"`
}

type ReviewModel struct {
	ID        string  `gorm:"primaryKey"`
	BookID    string  `gorm:"not null;uniqueIndex:idx_reviews_user_book;index"`
	UserID    string  `gorm:"not null;uniqueIndex:idx_reviews_user_book;index"`
	UserName  string  `gorm:"not null"`
	UserPhoto string
	Rating    float64   `gorm:"not null"`
	Text      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time `gorm:"not null"`
}
