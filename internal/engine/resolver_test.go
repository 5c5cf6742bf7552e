package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Hamza7661/Assistly-Backend-sub000/internal/store"
)

// fakeRepo is an in-memory Repository for engine tests. Per-collection error
// hooks simulate backend failures.
type fakeRepo struct {
	tenants     map[string]store.Tenant
	owners      map[string]store.Owner
	faq         []store.FAQEntry
	plans       []store.ServicePlan
	nodes       []store.WorkflowNode
	kinds       []store.QuestionKind
	integration *store.Integration

	faqErr   error
	faqCalls int

	tenantErr   error
	tenantDelay time.Duration
	tenantCalls int
	numberErr   error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		tenants: map[string]store.Tenant{},
		owners:  map[string]store.Owner{},
	}
}

func (f *fakeRepo) GetTenant(ctx context.Context, id string) (store.Tenant, error) {
	f.tenantCalls++
	if f.tenantDelay > 0 {
		select {
		case <-time.After(f.tenantDelay):
		case <-ctx.Done():
			return store.Tenant{}, ctx.Err()
		}
	}
	if f.tenantErr != nil {
		return store.Tenant{}, f.tenantErr
	}
	t, ok := f.tenants[id]
	if !ok {
		return store.Tenant{}, store.ErrNotFound
	}
	return t, nil
}

func (f *fakeRepo) TenantsByBoundNumber(ctx context.Context, number string) ([]store.Tenant, error) {
	if f.numberErr != nil {
		return nil, f.numberErr
	}
	var out []store.Tenant
	for _, t := range f.tenants {
		if t.BoundNumber != nil && *t.BoundNumber == number {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetOwner(ctx context.Context, id string) (store.Owner, error) {
	o, ok := f.owners[id]
	if !ok {
		return store.Owner{}, store.ErrNotFound
	}
	return o, nil
}

func (f *fakeRepo) TenantsByOwner(ctx context.Context, ownerID string) ([]store.Tenant, error) {
	var out []store.Tenant
	for _, t := range f.tenants {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListFAQ(ctx context.Context, tenantID string) ([]store.FAQEntry, error) {
	f.faqCalls++
	if f.faqErr != nil {
		return nil, f.faqErr
	}
	return f.faq, nil
}

func (f *fakeRepo) ListServicePlans(ctx context.Context, tenantID string) ([]store.ServicePlan, error) {
	return f.plans, nil
}

func (f *fakeRepo) ListWorkflowNodes(ctx context.Context, tenantID string) ([]store.WorkflowNode, error) {
	return f.nodes, nil
}

func (f *fakeRepo) GetIntegration(ctx context.Context, tenantID, ownerID string) (store.Integration, error) {
	if f.integration == nil {
		return store.Integration{}, store.ErrNotFound
	}
	return *f.integration, nil
}

func (f *fakeRepo) ListQuestionKinds(ctx context.Context, tenantID string) ([]store.QuestionKind, error) {
	return f.kinds, nil
}

const (
	appA   = "11111111-1111-1111-1111-111111111111"
	appB   = "22222222-2222-2222-2222-222222222222"
	appC   = "33333333-3333-3333-3333-333333333333"
	owner1 = "44444444-4444-4444-4444-444444444444"
)

func testTenant(id, ownerID string, active bool) store.Tenant {
	return store.Tenant{
		ID:        id,
		OwnerID:   ownerID,
		Active:    active,
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestResolveAppID(t *testing.T) {
	repo := newFakeRepo()
	repo.tenants[appA] = testTenant(appA, owner1, true)
	r := NewResolver(repo, zap.NewNop())

	tenant, err := r.Resolve(context.Background(), Key{Kind: KeyApp, Value: appA})
	require.NoError(t, err)
	assert.Equal(t, appA, tenant.ID)
}

func TestResolveAppIDInvalid(t *testing.T) {
	r := NewResolver(newFakeRepo(), zap.NewNop())

	_, err := r.Resolve(context.Background(), Key{Kind: KeyApp, Value: "not-a-uuid"})
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestResolveAppIDInactive(t *testing.T) {
	repo := newFakeRepo()
	repo.tenants[appA] = testTenant(appA, owner1, false)
	r := NewResolver(repo, zap.NewNop())

	_, err := r.Resolve(context.Background(), Key{Kind: KeyApp, Value: appA})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolvePhoneFlaggedHolderWins(t *testing.T) {
	number := "+15550001"
	repo := newFakeRepo()

	a := testTenant(appA, owner1, true)
	a.BoundNumber = &number
	a.UsesBoundNumber = true
	a.CreatedAt = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	b := testTenant(appB, owner1, true)
	b.BoundNumber = &number
	b.CreatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	repo.tenants[appA] = a
	repo.tenants[appB] = b
	r := NewResolver(repo, zap.NewNop())

	tenant, err := r.Resolve(context.Background(), Key{Kind: KeyPhone, Value: number})
	require.NoError(t, err)
	assert.Equal(t, appA, tenant.ID, "flagged holder beats an older unflagged tenant")
}

func TestResolvePhoneTieBreakOldestThenID(t *testing.T) {
	number := "+15550002"
	repo := newFakeRepo()

	a := testTenant(appB, owner1, true)
	a.BoundNumber = &number
	b := testTenant(appA, owner1, true)
	b.BoundNumber = &number

	repo.tenants[appA] = b
	repo.tenants[appB] = a
	r := NewResolver(repo, zap.NewNop())

	tenant, err := r.Resolve(context.Background(), Key{Kind: KeyPhone, Value: number})
	require.NoError(t, err)
	assert.Equal(t, appA, tenant.ID, "equal created_at breaks the tie on id")
}

func TestResolvePhoneEmpty(t *testing.T) {
	r := NewResolver(newFakeRepo(), zap.NewNop())

	_, err := r.Resolve(context.Background(), Key{Kind: KeyPhone, Value: "   "})
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestResolvePhoneNoMatch(t *testing.T) {
	r := NewResolver(newFakeRepo(), zap.NewNop())

	_, err := r.Resolve(context.Background(), Key{Kind: KeyPhone, Value: "+19990000"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveOwnerPrefersPhoneMatchedHolder(t *testing.T) {
	ownerPhone := "+15550003"
	otherNumber := "+15550004"
	repo := newFakeRepo()
	repo.owners[owner1] = store.Owner{ID: owner1, Phone: ownerPhone}

	a := testTenant(appA, owner1, true)
	a.BoundNumber = &otherNumber
	a.UsesBoundNumber = true

	b := testTenant(appB, owner1, true)
	b.BoundNumber = &ownerPhone
	b.UsesBoundNumber = true

	repo.tenants[appA] = a
	repo.tenants[appB] = b
	r := NewResolver(repo, zap.NewNop())

	tenant, err := r.Resolve(context.Background(), Key{Kind: KeyOwner, Value: owner1})
	require.NoError(t, err)
	assert.Equal(t, appB, tenant.ID, "tenant bound to the owner's own number wins")
}

func TestResolveOwnerWithoutTenants(t *testing.T) {
	repo := newFakeRepo()
	repo.owners[owner1] = store.Owner{ID: owner1}
	r := NewResolver(repo, zap.NewNop())

	_, err := r.Resolve(context.Background(), Key{Kind: KeyOwner, Value: owner1})
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "has no active tenant")
}

func TestResolveOwnerMissing(t *testing.T) {
	r := NewResolver(newFakeRepo(), zap.NewNop())

	_, err := r.Resolve(context.Background(), Key{Kind: KeyOwner, Value: owner1})
	require.ErrorIs(t, err, ErrNotFound)
	assert.NotContains(t, err.Error(), "has no active tenant")
}

func TestResolveUnknownKind(t *testing.T) {
	r := NewResolver(newFakeRepo(), zap.NewNop())

	_, err := r.Resolve(context.Background(), Key{Kind: "email", Value: "x"})
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestResolveOwnerSkipsDeleted(t *testing.T) {
	repo := newFakeRepo()
	repo.owners[owner1] = store.Owner{ID: owner1}

	deleted := testTenant(appA, owner1, true)
	now := time.Now()
	deleted.DeletedAt = &now
	live := testTenant(appB, owner1, true)

	repo.tenants[appA] = deleted
	repo.tenants[appB] = live
	r := NewResolver(repo, zap.NewNop())

	tenant, err := r.Resolve(context.Background(), Key{Kind: KeyOwner, Value: owner1})
	require.NoError(t, err)
	assert.Equal(t, appB, tenant.ID)
}
