package store

import (
	"sort"
	"sync"
	"time"

	"bookcourier/pkg/domain"
)

// MemoryStore keeps all records in-process. It mirrors the conditional-update
// semantics of GormStore under a single mutex, so the application core
// behaves identically in tests.
type MemoryStore struct {
	mu         sync.RWMutex
	identities map[string]domain.Identity
	email      map[string]string // email -> identity ID
	orders     map[string]domain.Order
	payments   map[string]domain.Payment // key: order ID
	wishlist   map[string]domain.WishlistEntry
	reviews    map[string]domain.Review
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		identities: make(map[string]domain.Identity),
		email:      make(map[string]string),
		orders:     make(map[string]domain.Order),
		payments:   make(map[string]domain.Payment),
		wishlist:   make(map[string]domain.WishlistEntry),
		reviews:    make(map[string]domain.Review),
	}
}

func pairKey(userID, bookID string) string {
	return userID + "\x00" + bookID
}

// SaveIdentity registers or refreshes an identity, preserving a stored role.
func (m *MemoryStore) SaveIdentity(id domain.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.identities[id.ID]; ok {
		id.Role = existing.Role
		id.CreatedAt = existing.CreatedAt
		delete(m.email, existing.Email)
	}
	m.identities[id.ID] = id
	m.email[id.Email] = id.ID
	return nil
}

// GetIdentityByID returns an identity by ID.
func (m *MemoryStore) GetIdentityByID(id string) (domain.Identity, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ident, ok := m.identities[id]
	return ident, ok, nil
}

// GetIdentityByEmail looks up an identity by email.
func (m *MemoryStore) GetIdentityByEmail(email string) (domain.Identity, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.email[email]; ok {
		ident, exists := m.identities[id]
		return ident, exists, nil
	}
	return domain.Identity{}, false, nil
}

// ListIdentities returns all identities ordered by creation time.
func (m *MemoryStore) ListIdentities() ([]domain.Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Identity, 0, len(m.identities))
	for _, ident := range m.identities {
		res = append(res, ident)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

// SetIdentityRole updates the stored role for an identity.
func (m *MemoryStore) SetIdentityRole(id string, role domain.Role) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ident, ok := m.identities[id]
	if !ok {
		return false, nil
	}
	ident.Role = role
	ident.UpdatedAt = time.Now().UTC()
	m.identities[id] = ident
	return true, nil
}

// CreateOrder inserts a new order, rejecting a second live (user, book) pair.
func (m *MemoryStore) CreateOrder(o domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.orders {
		if existing.UserID == o.UserID && existing.BookID == o.BookID {
			return ErrDuplicateOrder
		}
	}
	m.orders[o.ID] = o
	return nil
}

// GetOrder retrieves an order.
func (m *MemoryStore) GetOrder(id string) (domain.Order, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	return o, ok, nil
}

// ListOrdersByUser returns the user's orders, newest first.
func (m *MemoryStore) ListOrdersByUser(userID string) ([]domain.Order, error) {
	return m.listOrders(func(o domain.Order) bool { return o.UserID == userID })
}

// ListOrdersByLibrarianEmail returns orders addressed to a librarian.
func (m *MemoryStore) ListOrdersByLibrarianEmail(email string) ([]domain.Order, error) {
	return m.listOrders(func(o domain.Order) bool { return o.Librarian.Email == email })
}

func (m *MemoryStore) listOrders(match func(domain.Order) bool) ([]domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Order, 0)
	for _, o := range m.orders {
		if match(o) {
			res = append(res, o)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

// AdvanceOrderStatus transitions status from -> to atomically.
func (m *MemoryStore) AdvanceOrderStatus(id string, from, to domain.OrderStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	m.orders[id] = o
	return true, nil
}

// DeleteOrderIfCancellable deletes the order only while pending and unpaid.
func (m *MemoryStore) DeleteOrderIfCancellable(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != domain.OrderPending || o.PaymentStatus != domain.PaymentUnpaid {
		return false, nil
	}
	delete(m.orders, id)
	return true, nil
}

// MarkOrderPaid settles the order and records the payment atomically.
func (m *MemoryStore) MarkOrderPaid(p domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[p.OrderID]
	if !ok {
		return ErrOrderGone
	}
	if o.PaymentStatus == domain.PaymentPaid {
		return ErrAlreadyPaid
	}
	paidAt := p.PaidAt
	o.PaymentStatus = domain.PaymentPaid
	o.PaidAt = &paidAt
	m.orders[p.OrderID] = o
	m.payments[p.OrderID] = p
	return nil
}

// HasPaidOrder reports whether the user holds a paid order for the book.
func (m *MemoryStore) HasPaidOrder(userID, bookID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.orders {
		if o.UserID == userID && o.BookID == bookID && o.PaymentStatus == domain.PaymentPaid {
			return true, nil
		}
	}
	return false, nil
}

// GetPaymentByOrder returns the payment settled against an order.
func (m *MemoryStore) GetPaymentByOrder(orderID string) (domain.Payment, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payments[orderID]
	return p, ok, nil
}

// ListPaymentsByUser returns a user's payment history, newest first.
func (m *MemoryStore) ListPaymentsByUser(userID string) ([]domain.Payment, error) {
	return m.listPayments(func(p domain.Payment) bool { return p.UserID == userID })
}

// ListPayments returns all payments, newest first.
func (m *MemoryStore) ListPayments() ([]domain.Payment, error) {
	return m.listPayments(func(domain.Payment) bool { return true })
}

func (m *MemoryStore) listPayments(match func(domain.Payment) bool) ([]domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Payment, 0)
	for _, p := range m.payments {
		if match(p) {
			res = append(res, p)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].PaidAt.After(res[j].PaidAt) })
	return res, nil
}

// ToggleWishlist flips membership for (user, book).
func (m *MemoryStore) ToggleWishlist(entry domain.WishlistEntry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey(entry.UserID, entry.BookID)
	if _, ok := m.wishlist[key]; ok {
		delete(m.wishlist, key)
		return false, nil
	}
	m.wishlist[key] = entry
	return true, nil
}

// ListWishlistByUser returns the user's wishlist entries.
func (m *MemoryStore) ListWishlistByUser(userID string) ([]domain.WishlistEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.WishlistEntry, 0)
	for _, e := range m.wishlist {
		if e.UserID == userID {
			res = append(res, e)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

// UpsertReview creates the review or revises the caller's existing one.
func (m *MemoryStore) UpsertReview(r domain.Review) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey(r.UserID, r.BookID)
	if existing, ok := m.reviews[key]; ok {
		existing.Rating = r.Rating
		existing.Text = r.Text
		existing.UserName = r.UserName
		existing.UserPhoto = r.UserPhoto
		existing.UpdatedAt = r.UpdatedAt
		m.reviews[key] = existing
		return false, nil
	}
	m.reviews[key] = r
	return true, nil
}

// ListReviewsByBook returns reviews for a book, newest first.
func (m *MemoryStore) ListReviewsByBook(bookID string) ([]domain.Review, error) {
	return m.listReviews(func(r domain.Review) bool { return r.BookID == bookID })
}

// ListReviewsByUser returns reviews authored by a user.
func (m *MemoryStore) ListReviewsByUser(userID string) ([]domain.Review, error) {
	return m.listReviews(func(r domain.Review) bool { return r.UserID == userID })
}

func (m *MemoryStore) listReviews(match func(domain.Review) bool) ([]domain.Review, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Review, 0)
	for _, r := range m.reviews {
		if match(r) {
			res = append(res, r)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}
