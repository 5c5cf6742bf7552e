package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Hamza7661/Assistly-Backend-sub000/internal/store"
)

// memKV is an in-memory KV without expiry, enough for assembler tests.
type memKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemKV() *memKV {
	return &memKV{data: map[string]string{}}
}

func (m *memKV) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return v, nil
}

func (m *memKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memKV) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func newTestAssembler(repo Repository) *Assembler {
	cache := NewContextCache(newMemKV(), time.Minute, zap.NewNop())
	return NewAssembler(repo, cache, time.Second, zap.NewNop())
}

func seedRepo() *fakeRepo {
	repo := newFakeRepo()
	repo.tenants[appA] = store.Tenant{
		ID:          appA,
		OwnerID:     owner1,
		DisplayName: "Bright Smiles Dental",
		Industry:    "dentistry",
		Active:      true,
	}
	repo.faq = []store.FAQEntry{
		{ID: "f-1", Question: "Opening hours?", Answer: "9 to 5", Active: true},
		{ID: "f-2", Question: "Old question", Answer: "Old answer", Active: false},
	}
	repo.nodes = []store.WorkflowNode{
		{ID: "w-1", Title: "Checkup", IsRoot: true, GroupID: strPtr("w-1"), SortOrder: 0, Active: true},
		{ID: "w-2", Title: "Whitening", IsRoot: true, GroupID: strPtr("w-2"), SortOrder: 1, Active: true},
		{ID: "q-1", Title: "Any pain?", GroupID: strPtr("w-1"), SortOrder: 0, Active: true},
	}
	repo.plans = []store.ServicePlan{
		{
			ID: "p-1", Question: "Smile makeover", Answer: "Full plan", Active: true,
			AttachedWorkflows: []store.WorkflowAttachment{{WorkflowID: "w-2", Order: 0}},
		},
	}
	repo.integration = &store.Integration{
		AssistantName: "Daisy",
		CompanyName:   "Bright Smiles",
		Greeting:      "Hi, I'm {assistantName} from {companyName}.",
		LeadTypes: []store.LeadTypeOverride{
			{ID: "lt-1", Text: "Book a Cleaning", Order: 0},
		},
	}
	return repo
}

func TestAssemblerHappyPath(t *testing.T) {
	repo := seedRepo()
	a := newTestAssembler(repo)

	cx, err := a.Context(context.Background(), Key{Kind: KeyApp, Value: appA})
	require.NoError(t, err)

	assert.Equal(t, "Bright Smiles Dental", cx.Tenant.DisplayName)
	assert.Equal(t, "Daisy", cx.Integration.AssistantName)
	assert.Equal(t, "Hi, I'm {assistantName} from {companyName}.", cx.Integration.Greeting,
		"greeting placeholders pass through unresolved")

	require.Len(t, cx.FAQ, 1, "inactive FAQ entries are filtered")
	assert.Equal(t, "Opening hours?", cx.FAQ[0].Question)

	require.Len(t, cx.LeadTypes, 1)
	assert.Equal(t, "book-a-cleaning", cx.LeadTypes[0].Value)

	require.Len(t, cx.Workflows, 2)
	var whitening RootWorkflow
	for _, rw := range cx.Workflows {
		if rw.ID == "w-2" {
			whitening = rw
		}
	}
	require.NotNil(t, whitening.TreatmentPlanOrder)
	assert.Equal(t, 0, *whitening.TreatmentPlanOrder)
	assert.Equal(t, "Smile makeover", whitening.TreatmentPlanSourceLabel)

	require.Len(t, cx.ServicePlans, 1)
	require.Len(t, cx.ServicePlans[0].AttachedWorkflows, 1)
	att := cx.ServicePlans[0].AttachedWorkflows[0]
	require.NotNil(t, att.Workflow)
	assert.Equal(t, "Whitening", att.Workflow.Title)
}

func TestAssemblerMissingIntegrationUsesDefaults(t *testing.T) {
	repo := seedRepo()
	repo.integration = nil
	a := newTestAssembler(repo)

	cx, err := a.Context(context.Background(), Key{Kind: KeyApp, Value: appA})
	require.NoError(t, err)

	assert.Empty(t, cx.Integration.AssistantName)
	require.Len(t, cx.LeadTypes, 3, "no settings means the default lead-type catalog")
}

func TestAssemblerFailsWholeAggregationOnReadFailure(t *testing.T) {
	repo := seedRepo()
	repo.faqErr = errors.New("connection reset")
	a := newTestAssembler(repo)

	_, err := a.Context(context.Background(), Key{Kind: KeyApp, Value: appA})
	require.ErrorIs(t, err, ErrRepositoryUnavailable)
	assert.Equal(t, 2, repo.faqCalls, "failed read is retried exactly once")
}

func TestAssemblerResolverReadFailureIsUnavailable(t *testing.T) {
	repo := seedRepo()
	repo.tenantErr = errors.New("connection refused")
	a := newTestAssembler(repo)

	_, err := a.Context(context.Background(), Key{Kind: KeyApp, Value: appA})
	require.ErrorIs(t, err, ErrRepositoryUnavailable)
	assert.Equal(t, 2, repo.tenantCalls, "failed tenant lookup is retried exactly once")
}

func TestAssemblerPhoneLookupFailureIsUnavailable(t *testing.T) {
	repo := seedRepo()
	repo.numberErr = errors.New("connection refused")
	a := newTestAssembler(repo)

	_, err := a.Context(context.Background(), Key{Kind: KeyPhone, Value: "+15550001"})
	assert.ErrorIs(t, err, ErrRepositoryUnavailable)
}

func TestAssemblerSlowResolverReadIsBounded(t *testing.T) {
	repo := seedRepo()
	repo.tenantDelay = 2 * time.Second
	cache := NewContextCache(newMemKV(), time.Minute, zap.NewNop())
	a := NewAssembler(repo, cache, 50*time.Millisecond, zap.NewNop())

	started := time.Now()
	_, err := a.Context(context.Background(), Key{Kind: KeyApp, Value: appA})
	require.ErrorIs(t, err, ErrRepositoryUnavailable)
	assert.Less(t, time.Since(started), time.Second,
		"a hung tenant lookup must be cut off at the per-read timeout")
}

func TestAssemblerRecoversWhenRetrySucceeds(t *testing.T) {
	repo := seedRepo()
	transient := errors.New("transient")
	repo.faqErr = transient
	a := newTestAssembler(repo)

	// First call fails both attempts. Clear the fault and the next request
	// must succeed; nothing broken was cached.
	_, err := a.Context(context.Background(), Key{Kind: KeyApp, Value: appA})
	require.Error(t, err)

	repo.faqErr = nil
	cx, err := a.Context(context.Background(), Key{Kind: KeyApp, Value: appA})
	require.NoError(t, err)
	assert.Equal(t, "Bright Smiles Dental", cx.Tenant.DisplayName)
}

func TestAssemblerServesFromCache(t *testing.T) {
	repo := seedRepo()
	a := newTestAssembler(repo)
	ctx := context.Background()

	_, err := a.Context(ctx, Key{Kind: KeyApp, Value: appA})
	require.NoError(t, err)
	firstCalls := repo.faqCalls

	_, err = a.Context(ctx, Key{Kind: KeyApp, Value: appA})
	require.NoError(t, err)
	assert.Equal(t, firstCalls, repo.faqCalls, "cache hit must not touch the repository")
}

func TestAssemblerInvalidatePicksUpChanges(t *testing.T) {
	repo := seedRepo()
	a := newTestAssembler(repo)
	ctx := context.Background()

	_, err := a.Context(ctx, Key{Kind: KeyApp, Value: appA})
	require.NoError(t, err)

	repo.faq = append(repo.faq, store.FAQEntry{
		ID: "f-3", Question: "Insurance?", Answer: "Yes", Active: true,
	})
	require.NoError(t, a.Invalidate(ctx, appA))

	cx, err := a.Context(ctx, Key{Kind: KeyApp, Value: appA})
	require.NoError(t, err)
	assert.Len(t, cx.FAQ, 2, "invalidation must surface the new entry immediately")
}
