package app

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"bookcourier/pkg/domain"
)

// Review effects.
const (
	EffectCreated = "created"
	EffectUpdated = "updated"
)

// HasQualifyingOrder reports whether the user holds a paid order for the
// book. Only paid orders qualify; merely having placed an order does not.
func (a *App) HasQualifyingOrder(ctx context.Context, userID, bookID string) (bool, error) {
	return a.store.HasPaidOrder(userID, bookID)
}

// SubmitReview appends or revises the actor's review for a book. Ratings run
// 0 to 5 in half-star steps, and only paid customers may review.
func (a *App) SubmitReview(ctx context.Context, actor domain.Identity, bookID string, rating float64, text string) (domain.Review, string, error) {
	bookID = strings.TrimSpace(bookID)
	text = strings.TrimSpace(text)
	if bookID == "" {
		return domain.Review{}, "", fmt.Errorf("%w: bookId is required", ErrValidation)
	}
	if text == "" {
		return domain.Review{}, "", fmt.Errorf("%w: review text is required", ErrValidation)
	}
	if rating < 0 || rating > 5 || rating*2 != math.Trunc(rating*2) {
		return domain.Review{}, "", fmt.Errorf("%w: rating must be between 0 and 5 in 0.5 steps", ErrValidation)
	}

	qualified, err := a.HasQualifyingOrder(ctx, actor.ID, bookID)
	if err != nil {
		return domain.Review{}, "", fmt.Errorf("check order: %w", err)
	}
	if !qualified {
		return domain.Review{}, "", fmt.Errorf("%w: reviews require a paid order for this book", ErrForbidden)
	}

	now := time.Now().UTC()
	review := domain.Review{
		ID:        uuid.NewString(),
		BookID:    bookID,
		UserID:    actor.ID,
		UserName:  actor.DisplayName,
		UserPhoto: actor.PhotoURL,
		Rating:    rating,
		Text:      text,
		CreatedAt: now,
		UpdatedAt: now,
	}
	created, err := a.store.UpsertReview(review)
	if err != nil {
		return domain.Review{}, "", fmt.Errorf("save review: %w", err)
	}
	effect := EffectUpdated
	if created {
		effect = EffectCreated
	}
	return review, effect, nil
}

// ListReviewsForBook returns a book's reviews and their average rating.
func (a *App) ListReviewsForBook(ctx context.Context, bookID string) ([]domain.Review, float64, error) {
	bookID = strings.TrimSpace(bookID)
	if bookID == "" {
		return nil, 0, fmt.Errorf("%w: bookId is required", ErrValidation)
	}
	reviews, err := a.store.ListReviewsByBook(bookID)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, averageRating(reviews), nil
}

// ComputeUserStats derives the actor's dashboard aggregates from live order,
// payment, wishlist, and review rows. Nothing is cached; the independent
// reads fan out concurrently.
func (a *App) ComputeUserStats(ctx context.Context, actor domain.Identity) (domain.UserStats, error) {
	var (
		orders   []domain.Order
		payments []domain.Payment
		wishlist []domain.WishlistEntry
		reviews  []domain.Review
	)
	var g errgroup.Group
	g.Go(func() error {
		var err error
		orders, err = a.store.ListOrdersByUser(actor.ID)
		return err
	})
	g.Go(func() error {
		var err error
		payments, err = a.store.ListPaymentsByUser(actor.ID)
		return err
	})
	g.Go(func() error {
		var err error
		wishlist, err = a.store.ListWishlistByUser(actor.ID)
		return err
	})
	g.Go(func() error {
		var err error
		reviews, err = a.store.ListReviewsByUser(actor.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.UserStats{}, fmt.Errorf("aggregate stats: %w", err)
	}

	stats := domain.UserStats{
		TotalOrders:   len(orders),
		PaidOrders:    len(payments),
		WishlistCount: len(wishlist),
		TotalReviews:  len(reviews),
		AvgRating:     averageRating(reviews),
	}
	for _, p := range payments {
		stats.TotalSpent = stats.TotalSpent.Add(p.Amount)
	}
	return stats, nil
}

func averageRating(reviews []domain.Review) float64 {
	if len(reviews) == 0 {
		return 0
	}
	var sum float64
	for _, r := range reviews {
		sum += r.Rating
	}
	return sum / float64(len(reviews))
}
