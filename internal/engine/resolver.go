package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Hamza7661/Assistly-Backend-sub000/internal/store"
)

// KeyKind selects the resolution path for an inbound tenant key.
type KeyKind string

const (
	KeyApp   KeyKind = "app"
	KeyPhone KeyKind = "phone"
	KeyOwner KeyKind = "owner"
)

// Key identifies a tenant by app id, bound phone number, or legacy owner id.
type Key struct {
	Kind  KeyKind
	Value string
}

// Resolver maps an inbound key to exactly one active tenant. Read-only.
type Resolver struct {
	repo   Repository
	logger *zap.Logger
}

func NewResolver(repo Repository, logger *zap.Logger) *Resolver {
	return &Resolver{repo: repo, logger: logger}
}

func (r *Resolver) Resolve(ctx context.Context, key Key) (store.Tenant, error) {
	switch key.Kind {
	case KeyApp:
		return r.resolveApp(ctx, key.Value)
	case KeyPhone:
		return r.resolvePhone(ctx, key.Value)
	case KeyOwner:
		return r.resolveOwner(ctx, key.Value)
	default:
		return store.Tenant{}, fmt.Errorf("unknown key kind %q: %w", key.Kind, ErrInvalidKey)
	}
}

func (r *Resolver) resolveApp(ctx context.Context, id string) (store.Tenant, error) {
	if _, err := uuid.Parse(id); err != nil {
		return store.Tenant{}, fmt.Errorf("app id %q: %w", id, ErrInvalidKey)
	}
	tenant, err := r.repo.GetTenant(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.Tenant{}, ErrNotFound
	}
	if err != nil {
		return store.Tenant{}, fmt.Errorf("resolve app %s: %w", id, err)
	}
	if !tenant.Active || tenant.DeletedAt != nil {
		return store.Tenant{}, ErrNotFound
	}
	return tenant, nil
}

func (r *Resolver) resolvePhone(ctx context.Context, number string) (store.Tenant, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return store.Tenant{}, fmt.Errorf("empty phone number: %w", ErrInvalidKey)
	}
	candidates, err := r.repo.TenantsByBoundNumber(ctx, number)
	if err != nil {
		return store.Tenant{}, fmt.Errorf("resolve phone %s: %w", number, err)
	}
	tenant, ok := pickTenant(candidates, "")
	if !ok {
		return store.Tenant{}, ErrNotFound
	}
	return tenant, nil
}

// resolveOwner is the backward-compat path: resolve the legacy owner, then
// that owner's most relevant tenant. "Owner found but tenant missing" is
// signaled distinctly from a missing owner for diagnostics.
func (r *Resolver) resolveOwner(ctx context.Context, id string) (store.Tenant, error) {
	if _, err := uuid.Parse(id); err != nil {
		return store.Tenant{}, fmt.Errorf("owner id %q: %w", id, ErrInvalidKey)
	}
	owner, err := r.repo.GetOwner(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.Tenant{}, fmt.Errorf("owner %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return store.Tenant{}, fmt.Errorf("resolve owner %s: %w", id, err)
	}
	tenants, err := r.repo.TenantsByOwner(ctx, owner.ID)
	if err != nil {
		return store.Tenant{}, fmt.Errorf("tenants of owner %s: %w", owner.ID, err)
	}
	tenant, ok := pickTenant(tenants, owner.Phone)
	if !ok {
		r.logger.Warn("owner resolved but has no active tenant", zap.String("owner_id", owner.ID))
		return store.Tenant{}, fmt.Errorf("owner %s has no active tenant: %w", owner.ID, ErrNotFound)
	}
	return tenant, nil
}

// pickTenant selects one tenant from candidates using the shared-number
// conventions: a tenant bound to ownerPhone with the holder flag wins, then
// any flagged holder, then the oldest candidate (id as the final tie-break so
// the choice is stable across instances).
func pickTenant(candidates []store.Tenant, ownerPhone string) (store.Tenant, bool) {
	var best store.Tenant
	found := false
	for _, t := range candidates {
		if !t.Active || t.DeletedAt != nil {
			continue
		}
		if !found || tenantRank(t, ownerPhone) < tenantRank(best, ownerPhone) ||
			(tenantRank(t, ownerPhone) == tenantRank(best, ownerPhone) && olderTenant(t, best)) {
			best = t
			found = true
		}
	}
	return best, found
}

func tenantRank(t store.Tenant, ownerPhone string) int {
	if t.UsesBoundNumber && ownerPhone != "" && t.BoundNumber != nil && *t.BoundNumber == ownerPhone {
		return 0
	}
	if t.UsesBoundNumber {
		return 1
	}
	return 2
}

func olderTenant(a, b store.Tenant) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
