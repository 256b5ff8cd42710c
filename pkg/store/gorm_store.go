package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"bookcourier/pkg/domain"
)

const migrateLockID int64 = 52095209

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&IdentityModel{},
			&OrderModel{},
			&PaymentModel{},
			&WishlistModel{},
			&ReviewModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// SaveIdentity registers or refreshes an identity's profile fields.
// The stored role is never overwritten by an upsert; role changes go
// through SetIdentityRole only.
func (s *GormStore) SaveIdentity(id domain.Identity) error {
	model := identityToModel(id)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "display_name", "photo_url", "updated_at"}),
	}).Create(&model).Error
}

// GetIdentityByID returns an identity by ID.
func (s *GormStore) GetIdentityByID(id string) (domain.Identity, bool, error) {
	var model IdentityModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Identity{}, false, nil
		}
		return domain.Identity{}, false, err
	}
	return identityFromModel(model), true, nil
}

// GetIdentityByEmail looks up an identity by email.
func (s *GormStore) GetIdentityByEmail(email string) (domain.Identity, bool, error) {
	var model IdentityModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Identity{}, false, nil
		}
		return domain.Identity{}, false, err
	}
	return identityFromModel(model), true, nil
}

// ListIdentities returns all identities ordered by created_at.
func (s *GormStore) ListIdentities() ([]domain.Identity, error) {
	var models []IdentityModel
	if err := s.db.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Identity, 0, len(models))
	for _, m := range models {
		res = append(res, identityFromModel(m))
	}
	return res, nil
}

// SetIdentityRole updates the stored role for an identity.
func (s *GormStore) SetIdentityRole(id string, role domain.Role) (bool, error) {
	res := s.db.Model(&IdentityModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"role":       string(role),
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected > 0, res.Error
}

// CreateOrder inserts a new order. The unique (user_id, book_id) index
// rejects a second live order for the same pair; cancelled orders are
// deleted, so the index exactly encodes "a non-cancelled order exists".
func (s *GormStore) CreateOrder(o domain.Order) error {
	model, err := orderToModel(o)
	if err != nil {
		return err
	}
	if err := s.db.Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateOrder
		}
		return err
	}
	return nil
}

// GetOrder retrieves an order.
func (s *GormStore) GetOrder(id string) (domain.Order, bool, error) {
	var model OrderModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Order{}, false, nil
		}
		return domain.Order{}, false, err
	}
	return orderFromModel(model), true, nil
}

// ListOrdersByUser returns the user's orders, newest first.
func (s *GormStore) ListOrdersByUser(userID string) ([]domain.Order, error) {
	return s.listOrders("user_id = ?", userID)
}

// ListOrdersByLibrarianEmail returns orders addressed to a librarian.
func (s *GormStore) ListOrdersByLibrarianEmail(email string) ([]domain.Order, error) {
	return s.listOrders("librarian_email = ?", email)
}

func (s *GormStore) listOrders(cond string, args ...any) ([]domain.Order, error) {
	var models []OrderModel
	if err := s.db.Where(cond, args...).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Order, 0, len(models))
	for _, m := range models {
		res = append(res, orderFromModel(m))
	}
	return res, nil
}

// AdvanceOrderStatus transitions status from -> to in one conditional UPDATE.
func (s *GormStore) AdvanceOrderStatus(id string, from, to domain.OrderStatus) (bool, error) {
	res := s.db.Model(&OrderModel{}).
		Where("id = ? AND status = ?", id, string(from)).
		Update("status", string(to))
	return res.RowsAffected > 0, res.Error
}

// DeleteOrderIfCancellable deletes the order while still pending and unpaid.
// A payment confirmation racing in makes the guarded delete miss.
func (s *GormStore) DeleteOrderIfCancellable(id string) (bool, error) {
	res := s.db.
		Where("id = ? AND status = ? AND payment_status = ?",
			id, string(domain.OrderPending), string(domain.PaymentUnpaid)).
		Delete(&OrderModel{})
	return res.RowsAffected > 0, res.Error
}

// MarkOrderPaid settles the order and records the payment in one transaction.
func (s *GormStore) MarkOrderPaid(p domain.Payment) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&OrderModel{}).
			Where("id = ? AND payment_status = ?", p.OrderID, string(domain.PaymentUnpaid)).
			Updates(map[string]any{
				"payment_status": string(domain.PaymentPaid),
				"paid_at":        p.PaidAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&OrderModel{}).Where("id = ?", p.OrderID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrOrderGone
			}
			return ErrAlreadyPaid
		}
		model := paymentToModel(p)
		return tx.Create(&model).Error
	})
}

// HasPaidOrder reports whether the user holds a paid order for the book.
func (s *GormStore) HasPaidOrder(userID, bookID string) (bool, error) {
	var count int64
	err := s.db.Model(&OrderModel{}).
		Where("user_id = ? AND book_id = ? AND payment_status = ?",
			userID, bookID, string(domain.PaymentPaid)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetPaymentByOrder returns the payment settled against an order.
func (s *GormStore) GetPaymentByOrder(orderID string) (domain.Payment, bool, error) {
	var model PaymentModel
	if err := s.db.Where("order_id = ?", orderID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Payment{}, false, nil
		}
		return domain.Payment{}, false, err
	}
	return paymentFromModel(model), true, nil
}

// ListPaymentsByUser returns a user's payment history, newest first.
func (s *GormStore) ListPaymentsByUser(userID string) ([]domain.Payment, error) {
	return s.listPayments(s.db.Where("user_id = ?", userID))
}

// ListPayments returns all payments, newest first.
func (s *GormStore) ListPayments() ([]domain.Payment, error) {
	return s.listPayments(s.db)
}

func (s *GormStore) listPayments(tx *gorm.DB) ([]domain.Payment, error) {
	var models []PaymentModel
	if err := tx.Order("paid_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Payment, 0, len(models))
	for _, m := range models {
		res = append(res, paymentFromModel(m))
	}
	return res, nil
}

// ToggleWishlist flips membership for (user, book) in one transaction.
func (s *GormStore) ToggleWishlist(entry domain.WishlistEntry) (bool, error) {
	added := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND book_id = ?", entry.UserID, entry.BookID).
			Delete(&WishlistModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		model := wishlistToModel(entry)
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		added = true
		return nil
	})
	return added, err
}

// ListWishlistByUser returns the user's wishlist entries.
func (s *GormStore) ListWishlistByUser(userID string) ([]domain.WishlistEntry, error) {
	var models []WishlistModel
	if err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.WishlistEntry, 0, len(models))
	for _, m := range models {
		res = append(res, wishlistFromModel(m))
	}
	return res, nil
}

// UpsertReview creates the review or revises the caller's existing one.
func (s *GormStore) UpsertReview(r domain.Review) (bool, error) {
	created := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&ReviewModel{}).
			Where("user_id = ? AND book_id = ?", r.UserID, r.BookID).
			Updates(map[string]any{
				"rating":     r.Rating,
				"text":       r.Text,
				"user_name":  r.UserName,
				"user_photo": r.UserPhoto,
				"updated_at": r.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		model := reviewToModel(r)
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}

// ListReviewsByBook returns reviews for a book, newest first.
func (s *GormStore) ListReviewsByBook(bookID string) ([]domain.Review, error) {
	return s.listReviews("book_id = ?", bookID)
}

// ListReviewsByUser returns reviews authored by a user.
func (s *GormStore) ListReviewsByUser(userID string) ([]domain.Review, error) {
	return s.listReviews("user_id = ?", userID)
}

func (s *GormStore) listReviews(cond string, args ...any) ([]domain.Review, error) {
	var models []ReviewModel
	if err := s.db.Where(cond, args...).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Review, 0, len(models))
	for _, m := range models {
		res = append(res, reviewFromModel(m))
	}
	return res, nil
}

func identityToModel(id domain.Identity) IdentityModel {
	return IdentityModel{
		ID:          id.ID,
		Email:       id.Email,
		DisplayName: id.DisplayName,
		PhotoURL:    id.PhotoURL,
		Role:        string(id.Role),
		CreatedAt:   id.CreatedAt,
		UpdatedAt:   id.UpdatedAt,
	}
}

func identityFromModel(m IdentityModel) domain.Identity {
	role := domain.Role(m.Role)
	if !domain.ValidRole(role) {
		role = domain.RoleUser
	}
	return domain.Identity{
		ID:          m.ID,
		Email:       m.Email,
		DisplayName: m.DisplayName,
		PhotoURL:    m.PhotoURL,
		Role:        role,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func orderToModel(o domain.Order) (OrderModel, error) {
	librarian, err := json.Marshal(o.Librarian)
	if err != nil {
		return OrderModel{}, fmt.Errorf("marshal librarian snapshot: %w", err)
	}
	customer, err := json.Marshal(o.Customer)
	if err != nil {
		return OrderModel{}, fmt.Errorf("marshal customer snapshot: %w", err)
	}
	return OrderModel{
		ID:                o.ID,
		BookID:            o.BookID,
		UserID:            o.UserID,
		LibrarianSnapshot: librarian,
		CustomerSnapshot:  customer,
		LibrarianEmail:    o.Librarian.Email,
		Status:            string(o.Status),
		PaymentStatus:     string(o.PaymentStatus),
		PriceSnapshot:     o.PriceSnapshot,
		CreatedAt:         o.CreatedAt,
		PaidAt:            o.PaidAt,
	}, nil
}

func orderFromModel(m OrderModel) domain.Order {
	var librarian domain.LibrarianSnapshot
	if len(m.LibrarianSnapshot) > 0 {
		_ = json.Unmarshal(m.LibrarianSnapshot, &librarian)
	}
	var customer domain.CustomerSnapshot
	if len(m.CustomerSnapshot) > 0 {
		_ = json.Unmarshal(m.CustomerSnapshot, &customer)
	}
	return domain.Order{
		ID:            m.ID,
		BookID:        m.BookID,
		UserID:        m.UserID,
		Librarian:     librarian,
		Customer:      customer,
		Status:        domain.OrderStatus(m.Status),
		PaymentStatus: domain.PaymentStatus(m.PaymentStatus),
		PriceSnapshot: m.PriceSnapshot,
		CreatedAt:     m.CreatedAt,
		PaidAt:        m.PaidAt,
	}
}

func paymentToModel(p domain.Payment) PaymentModel {
	return PaymentModel{
		ID:            p.ID,
		OrderID:       p.OrderID,
		UserID:        p.UserID,
		BookID:        p.BookID,
		TransactionID: p.TransactionID,
		Amount:        p.Amount,
		PaidAt:        p.PaidAt,
	}
}

func paymentFromModel(m PaymentModel) domain.Payment {
	return domain.Payment{
		ID:            m.ID,
		OrderID:       m.OrderID,
		UserID:        m.UserID,
		BookID:        m.BookID,
		TransactionID: m.TransactionID,
		Amount:        m.Amount,
		PaidAt:        m.PaidAt,
	}
}

func wishlistToModel(e domain.WishlistEntry) WishlistModel {
	return WishlistModel{
		ID:        e.ID,
		UserID:    e.UserID,
		BookID:    e.BookID,
		CreatedAt: e.CreatedAt,
	}
}

func wishlistFromModel(m WishlistModel) domain.WishlistEntry {
	return domain.WishlistEntry{
		ID:        m.ID,
		UserID:    m.UserID,
		BookID:    m.BookID,
		CreatedAt: m.CreatedAt,
	}
}

func reviewToModel(r domain.Review) ReviewModel {
	return ReviewModel{
		ID:        r.ID,
		BookID:    r.BookID,
		UserID:    r.UserID,
		UserName:  r.UserName,
		UserPhoto: r.UserPhoto,
		Rating:    r.Rating,
		Text:      r.Text,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func reviewFromModel(m ReviewModel) domain.Review {
	return domain.Review{
		ID:        m.ID,
		BookID:    m.BookID,
		UserID:    m.UserID,
		UserName:  m.UserName,
		UserPhoto: m.UserPhoto,
		Rating:    m.Rating,
		Text:      m.Text,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
