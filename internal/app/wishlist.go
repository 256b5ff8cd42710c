package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"bookcourier/pkg/domain"
)

// Wishlist effects.
const (
	EffectAdded   = "added"
	EffectRemoved = "removed"
)

// ToggleWishlist flips the (user, book) membership in a single atomic step
// and reports which way it flipped. There are deliberately no separate
// add/remove operations.
func (a *App) ToggleWishlist(ctx context.Context, actor domain.Identity, bookID string) (string, error) {
	bookID = strings.TrimSpace(bookID)
	if bookID == "" {
		return "", fmt.Errorf("%w: bookId is required", ErrValidation)
	}
	added, err := a.store.ToggleWishlist(domain.WishlistEntry{
		ID:        uuid.NewString(),
		UserID:    actor.ID,
		BookID:    bookID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("toggle wishlist: %w", err)
	}
	if added {
		return EffectAdded, nil
	}
	return EffectRemoved, nil
}

// ListWishlist returns the actor's wishlist entries.
func (a *App) ListWishlist(ctx context.Context, actor domain.Identity) ([]domain.WishlistEntry, error) {
	return a.store.ListWishlistByUser(actor.ID)
}
