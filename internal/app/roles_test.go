package app

import (
	"context"
	"errors"
	"testing"

	"bookcourier/pkg/domain"
)

func resolve(t *testing.T, env *testEnv, id, email string) domain.Identity {
	t.Helper()
	ident, err := env.app.ResolveIdentity(context.Background(), IdentityClaims{ID: id, Email: email})
	if err != nil {
		t.Fatalf("resolve %s: %v", id, err)
	}
	return ident
}

func TestResolveIdentityRegistersWithDefaultRole(t *testing.T) {
	env := newTestEnv(t)
	ident := resolve(t, env, "u1", "u1@example.com")
	if ident.Role != domain.RoleUser {
		t.Fatalf("new identity role = %s, want user", ident.Role)
	}
}

func TestResolveIdentityPreservesStoredRole(t *testing.T) {
	env := newTestEnv(t)
	resolve(t, env, "u1", "u1@example.com")
	if _, err := env.store.SetIdentityRole("u1", domain.RoleLibrarian); err != nil {
		t.Fatalf("set role: %v", err)
	}

	// Next sign-in refreshes the profile but keeps the elevated role.
	ident, err := env.app.ResolveIdentity(context.Background(), IdentityClaims{
		ID:          "u1",
		Email:       "u1@example.com",
		DisplayName: "Renamed",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if ident.Role != domain.RoleLibrarian {
		t.Fatalf("role lost on refresh: %s", ident.Role)
	}
	if ident.DisplayName != "Renamed" {
		t.Fatalf("profile not refreshed: %+v", ident)
	}
}

func TestResolveIdentityValidation(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.app.ResolveIdentity(context.Background(), IdentityClaims{ID: "", Email: "x@example.com"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing id: %v", err)
	}
	if _, err := env.app.ResolveIdentity(context.Background(), IdentityClaims{ID: "u1", Email: ""}); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing email: %v", err)
	}
}

func TestChangeRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	resolve(t, env, "u1", "u1@example.com")
	admin := resolve(t, env, "a1", "a1@example.com")
	if _, err := env.store.SetIdentityRole("a1", domain.RoleAdmin); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	admin.Role = domain.RoleAdmin

	// Only admins may change roles.
	user := resolve(t, env, "u2", "u2@example.com")
	if _, err := env.app.ChangeRole(ctx, user, "u1", domain.RoleLibrarian); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-admin change: %v", err)
	}

	updated, err := env.app.ChangeRole(ctx, admin, "u1", domain.RoleLibrarian)
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if updated.Role != domain.RoleLibrarian {
		t.Fatalf("role = %s, want librarian", updated.Role)
	}

	if _, err := env.app.ChangeRole(ctx, admin, "u1", domain.Role("owner")); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown role: %v", err)
	}
	if _, err := env.app.ChangeRole(ctx, admin, "missing", domain.RoleUser); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown target: %v", err)
	}
	// Admins cannot demote themselves.
	if _, err := env.app.ChangeRole(ctx, admin, admin.ID, domain.RoleUser); !errors.Is(err, ErrConflict) {
		t.Fatalf("self-demotion: %v", err)
	}
}

func TestListIdentitiesIsAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	resolve(t, env, "u1", "u1@example.com")

	if _, err := env.app.ListIdentities(ctx, testUser("u1")); !errors.Is(err, ErrForbidden) {
		t.Fatalf("user listing identities: %v", err)
	}
	identities, err := env.app.ListIdentities(ctx, testAdmin())
	if err != nil {
		t.Fatalf("admin listing: %v", err)
	}
	if len(identities) != 1 {
		t.Fatalf("expected 1 identity, got %d", len(identities))
	}
}
