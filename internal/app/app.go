package app

import (
	"context"
	"fmt"
	"strings"

	"bookcourier/internal/checkout"
	"bookcourier/pkg/domain"
	"bookcourier/pkg/store"
)

// CatalogClient reads book data from the external catalog.
type CatalogClient interface {
	GetBook(ctx context.Context, id string) (domain.Book, error)
}

// CheckoutClient talks to the external hosted-checkout provider.
type CheckoutClient interface {
	CreateSession(ctx context.Context, req checkout.CreateSessionRequest) (checkout.Session, error)
	GetSession(ctx context.Context, sessionID string) (checkout.Session, error)
}

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL        string
	Store              store.Store
	Catalog            CatalogClient
	Checkout           CheckoutClient
	CheckoutSuccessURL string
	CheckoutCancelURL  string
	Currency           string
}

// App is the core application service wiring storage, catalog reads, and the
// payment reconciliation logic together.
type App struct {
	store      store.Store
	catalog    CatalogClient
	checkout   CheckoutClient
	successURL string
	cancelURL  string
	currency   string
}

// New constructs the application with database storage.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog client required")
	}
	if cfg.Checkout == nil {
		return nil, fmt.Errorf("checkout client required")
	}
	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "usd"
	}
	return &App{
		store:      dataStore,
		catalog:    cfg.Catalog,
		checkout:   cfg.Checkout,
		successURL: cfg.CheckoutSuccessURL,
		cancelURL:  cfg.CheckoutCancelURL,
		currency:   currency,
	}, nil
}
