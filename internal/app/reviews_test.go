package app

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"bookcourier/pkg/domain"
)

func payForBook(t *testing.T, env *testEnv, actor domain.Identity, bookID string) domain.Order {
	t.Helper()
	ctx := context.Background()
	order := mustCreateOrder(t, env, actor, bookID)
	session, err := env.app.CreateCheckoutSession(ctx, actor, order.ID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	env.checkout.settle(session.SessionID, "tx-"+order.ID)
	if _, err := env.app.ConfirmPayment(ctx, session.SessionID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	return order
}

func TestSubmitReviewRequiresPaidOrder(t *testing.T) {
	env := newTestEnv(t)
	user := testUser("u1")
	ctx := context.Background()

	// No order at all.
	if _, _, err := env.app.SubmitReview(ctx, user, "b1", 4, "great"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("review without order: %v", err)
	}

	// A pending unpaid order does not qualify.
	mustCreateOrder(t, env, user, "b1")
	if _, _, err := env.app.SubmitReview(ctx, user, "b1", 4, "great"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("review with unpaid order: %v", err)
	}
}

func TestSubmitReviewValidation(t *testing.T) {
	env := newTestEnv(t)
	user := testUser("u1")
	payForBook(t, env, user, "b1")
	ctx := context.Background()

	if _, _, err := env.app.SubmitReview(ctx, user, "", 4, "x"); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing bookId: %v", err)
	}
	if _, _, err := env.app.SubmitReview(ctx, user, "b1", 4, "  "); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty text: %v", err)
	}
	if _, _, err := env.app.SubmitReview(ctx, user, "b1", 5.5, "x"); !errors.Is(err, ErrValidation) {
		t.Fatalf("rating above 5: %v", err)
	}
	if _, _, err := env.app.SubmitReview(ctx, user, "b1", 3.25, "x"); !errors.Is(err, ErrValidation) {
		t.Fatalf("rating off the half-star grid: %v", err)
	}
	if _, _, err := env.app.SubmitReview(ctx, user, "b1", 4.5, "lovely"); err != nil {
		t.Fatalf("valid half-star rating: %v", err)
	}
}

func TestSubmitReviewRevises(t *testing.T) {
	env := newTestEnv(t)
	user := testUser("u1")
	payForBook(t, env, user, "b1")
	ctx := context.Background()

	_, effect, err := env.app.SubmitReview(ctx, user, "b1", 3, "fine")
	if err != nil || effect != EffectCreated {
		t.Fatalf("first review: effect=%s err=%v", effect, err)
	}
	_, effect, err = env.app.SubmitReview(ctx, user, "b1", 5, "grew on me")
	if err != nil || effect != EffectUpdated {
		t.Fatalf("revision: effect=%s err=%v", effect, err)
	}

	reviews, avg, err := env.app.ListReviewsForBook(ctx, "b1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(reviews) != 1 || reviews[0].Rating != 5 {
		t.Fatalf("revision should replace, not append: %+v", reviews)
	}
	if avg != 5 {
		t.Fatalf("avg = %v, want 5", avg)
	}
}

func TestListReviewsAverage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i, rating := range []float64{2, 3, 4} {
		user := testUser(string(rune('a' + i)))
		payForBook(t, env, user, "b1")
		if _, _, err := env.app.SubmitReview(ctx, user, "b1", rating, "ok"); err != nil {
			t.Fatalf("review %d: %v", i, err)
		}
	}

	reviews, avg, err := env.app.ListReviewsForBook(ctx, "b1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(reviews) != 3 || avg != 3 {
		t.Fatalf("got %d reviews avg %v, want 3 reviews avg 3", len(reviews), avg)
	}
}

func TestComputeUserStats(t *testing.T) {
	env := newTestEnv(t)
	user := testUser("u1")
	ctx := context.Background()

	payForBook(t, env, user, "b1")
	if _, _, err := env.app.SubmitReview(ctx, user, "b1", 4, "good"); err != nil {
		t.Fatalf("review: %v", err)
	}
	if _, err := env.app.ToggleWishlist(ctx, user, "b2"); err != nil {
		t.Fatalf("wishlist: %v", err)
	}

	stats, err := env.app.ComputeUserStats(ctx, user)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalOrders != 1 || stats.PaidOrders != 1 || stats.WishlistCount != 1 || stats.TotalReviews != 1 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	if !stats.TotalSpent.Equal(decimal.NewFromFloat(14.99)) {
		t.Fatalf("total spent = %s, want 14.99", stats.TotalSpent)
	}
	if stats.AvgRating != 4 {
		t.Fatalf("avg rating = %v, want 4", stats.AvgRating)
	}
}

func TestToggleWishlistEffects(t *testing.T) {
	env := newTestEnv(t)
	user := testUser("u1")
	ctx := context.Background()

	effect, err := env.app.ToggleWishlist(ctx, user, "b1")
	if err != nil || effect != EffectAdded {
		t.Fatalf("first toggle: effect=%s err=%v", effect, err)
	}
	effect, err = env.app.ToggleWishlist(ctx, user, "b1")
	if err != nil || effect != EffectRemoved {
		t.Fatalf("second toggle: effect=%s err=%v", effect, err)
	}
	if _, err := env.app.ToggleWishlist(ctx, user, ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty bookId: %v", err)
	}

	entries, err := env.app.ListWishlist(ctx, user)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("double toggle should leave nothing, got %d", len(entries))
	}
}
