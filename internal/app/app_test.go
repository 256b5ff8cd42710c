package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"bookcourier/internal/catalog"
	"bookcourier/internal/checkout"
	"bookcourier/pkg/domain"
	"bookcourier/pkg/store"
)

type fakeCatalog struct {
	books map[string]domain.Book
	err   error
}

func (f *fakeCatalog) GetBook(_ context.Context, id string) (domain.Book, error) {
	if f.err != nil {
		return domain.Book{}, f.err
	}
	book, ok := f.books[id]
	if !ok {
		return domain.Book{}, &catalog.APIError{Status: 404, Message: "book not found"}
	}
	return book, nil
}

type fakeCheckout struct {
	sessions  map[string]checkout.Session
	createErr error
	nextID    int
}

func (f *fakeCheckout) CreateSession(_ context.Context, req checkout.CreateSessionRequest) (checkout.Session, error) {
	if f.createErr != nil {
		return checkout.Session{}, f.createErr
	}
	f.nextID++
	session := checkout.Session{
		ID:            fmt.Sprintf("cs_%d", f.nextID),
		URL:           fmt.Sprintf("https://checkout.example.com/cs_%d", f.nextID),
		OrderID:       req.OrderID,
		CustomerEmail: req.CustomerEmail,
		Amount:        req.Amount,
		PaymentStatus: "open",
	}
	f.sessions[session.ID] = session
	return session, nil
}

func (f *fakeCheckout) GetSession(_ context.Context, sessionID string) (checkout.Session, error) {
	session, ok := f.sessions[sessionID]
	if !ok {
		return checkout.Session{}, &checkout.APIError{Status: 404, Message: "session not found"}
	}
	return session, nil
}

func (f *fakeCheckout) settle(sessionID, transactionID string) {
	session := f.sessions[sessionID]
	session.PaymentStatus = "paid"
	session.TransactionID = transactionID
	f.sessions[sessionID] = session
}

type testEnv struct {
	app      *App
	store    *store.MemoryStore
	catalog  *fakeCatalog
	checkout *fakeCheckout
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mem := store.NewMemoryStore()
	cat := &fakeCatalog{books: map[string]domain.Book{
		"b1": {
			ID:             "b1",
			Name:           "The Left Hand of Darkness",
			Price:          decimal.NewFromFloat(14.99),
			Status:         domain.BookPublished,
			LibrarianID:    "lib-1",
			LibrarianName:  "Lib One",
			LibrarianEmail: "lib1@example.com",
		},
		"b2": {
			ID:             "b2",
			Name:           "Unlisted Manuscript",
			Price:          decimal.NewFromFloat(9.99),
			Status:         domain.BookUnpublished,
			LibrarianEmail: "lib1@example.com",
		},
	}}
	chk := &fakeCheckout{sessions: map[string]checkout.Session{}}
	a, err := New(Config{
		Store:              mem,
		Catalog:            cat,
		Checkout:           chk,
		CheckoutSuccessURL: "https://shop.example.com/success",
		CheckoutCancelURL:  "https://shop.example.com/cancel",
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return &testEnv{app: a, store: mem, catalog: cat, checkout: chk}
}

func testUser(id string) domain.Identity {
	return domain.Identity{
		ID:          id,
		Email:       id + "@example.com",
		DisplayName: "User " + id,
		Role:        domain.RoleUser,
	}
}

func testLibrarian(email string) domain.Identity {
	return domain.Identity{ID: "lib-" + email, Email: email, Role: domain.RoleLibrarian}
}

func testAdmin() domain.Identity {
	return domain.Identity{ID: "admin-1", Email: "admin@example.com", Role: domain.RoleAdmin}
}

func mustCreateOrder(t *testing.T, env *testEnv, actor domain.Identity, bookID string) domain.Order {
	t.Helper()
	order, err := env.app.CreateOrder(context.Background(), actor, bookID, "+15550001111", "12 Shelf Lane")
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

func mustBeCategory(t *testing.T, err, category error) {
	t.Helper()
	if !errors.Is(err, category) {
		t.Fatalf("error = %v, want category %v", err, category)
	}
}
