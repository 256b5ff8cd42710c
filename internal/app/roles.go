package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bookcourier/pkg/domain"
)

// IdentityClaims is what the identity provider attests about a caller.
// The role is never part of the token; it is resolved from storage here.
type IdentityClaims struct {
	ID          string
	Email       string
	DisplayName string
	PhotoURL    string
}

// ResolveIdentity maps verified identity claims to a stored identity with
// its role. Unknown identities are registered with the default user role;
// known ones get their profile refreshed without touching the stored role.
// Both lookups are indexed point reads.
func (a *App) ResolveIdentity(ctx context.Context, claims IdentityClaims) (domain.Identity, error) {
	id := strings.TrimSpace(claims.ID)
	email := strings.TrimSpace(strings.ToLower(claims.Email))
	if id == "" || email == "" {
		return domain.Identity{}, fmt.Errorf("%w: identity id and email are required", ErrValidation)
	}

	existing, ok, err := a.store.GetIdentityByID(id)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("fetch identity: %w", err)
	}
	if !ok {
		existing, ok, err = a.store.GetIdentityByEmail(email)
		if err != nil {
			return domain.Identity{}, fmt.Errorf("fetch identity: %w", err)
		}
	}

	now := time.Now().UTC()
	ident := domain.Identity{
		ID:          id,
		Email:       email,
		DisplayName: claims.DisplayName,
		PhotoURL:    claims.PhotoURL,
		Role:        domain.RoleUser,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if ok {
		ident.Role = existing.Role
		ident.CreatedAt = existing.CreatedAt
	}
	if err := a.store.SaveIdentity(ident); err != nil {
		return domain.Identity{}, fmt.Errorf("save identity: %w", err)
	}
	return ident, nil
}

// ChangeRole sets an identity's role. Only admins may do this, the check
// runs here at the operation boundary, and admins cannot demote themselves.
func (a *App) ChangeRole(ctx context.Context, actor domain.Identity, targetID string, newRole domain.Role) (domain.Identity, error) {
	if actor.Role != domain.RoleAdmin {
		return domain.Identity{}, fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	targetID = strings.TrimSpace(targetID)
	if targetID == "" {
		return domain.Identity{}, fmt.Errorf("%w: target identity is required", ErrValidation)
	}
	if !domain.ValidRole(newRole) {
		return domain.Identity{}, fmt.Errorf("%w: unknown role %q", ErrValidation, newRole)
	}
	if targetID == actor.ID && newRole != domain.RoleAdmin {
		return domain.Identity{}, fmt.Errorf("%w: cannot change own role", ErrConflict)
	}

	found, err := a.store.SetIdentityRole(targetID, newRole)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("set role: %w", err)
	}
	if !found {
		return domain.Identity{}, fmt.Errorf("%w: identity %s", ErrNotFound, targetID)
	}
	updated, _, err := a.store.GetIdentityByID(targetID)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("fetch identity: %w", err)
	}
	return updated, nil
}

// ListIdentities returns all identities for the admin manage-users view.
func (a *App) ListIdentities(ctx context.Context, actor domain.Identity) ([]domain.Identity, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	return a.store.ListIdentities()
}
