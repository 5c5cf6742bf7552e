package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Hamza7661/Assistly-Backend-sub000/internal/store"
)

// Assembler composes resolver, repository, tree builder, plan merger, and
// lead-type normalizer behind the context cache.
type Assembler struct {
	repo     Repository
	resolver *Resolver
	cache    *ContextCache
	logger   *zap.Logger
}

// NewAssembler wraps repo so every read, the resolver's included, runs under
// the per-read timeout with one retry and degrades to
// ErrRepositoryUnavailable on final failure.
func NewAssembler(repo Repository, cache *ContextCache, timeout time.Duration, logger *zap.Logger) *Assembler {
	guarded := newGuardedRepo(repo, timeout, logger)
	return &Assembler{
		repo:     guarded,
		resolver: NewResolver(guarded, logger),
		cache:    cache,
		logger:   logger,
	}
}

// Context resolves the key to a tenant and returns that tenant's assembled
// context, cached for the configured TTL.
func (a *Assembler) Context(ctx context.Context, key Key) (*AssembledContext, error) {
	tenant, err := a.resolver.Resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	return a.cache.GetOrBuild(ctx, tenant.ID, func(ctx context.Context) (*AssembledContext, error) {
		return a.build(ctx, tenant)
	})
}

// Invalidate drops a tenant's cached context. Called by the administrative
// CRUD paths after every configuration change.
func (a *Assembler) Invalidate(ctx context.Context, tenantID string) error {
	return a.cache.Invalidate(ctx, tenantID)
}

// build loads the tenant's raw documents in parallel and assembles the
// context model. If any read fails after its retry the whole aggregation
// fails; partial contexts are never served.
func (a *Assembler) build(ctx context.Context, tenant store.Tenant) (*AssembledContext, error) {
	started := time.Now()

	var (
		faq         []store.FAQEntry
		plans       []store.ServicePlan
		nodes       []store.WorkflowNode
		kinds       []store.QuestionKind
		integration store.Integration
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		faq, err = a.repo.ListFAQ(gctx, tenant.ID)
		return err
	})
	g.Go(func() error {
		var err error
		plans, err = a.repo.ListServicePlans(gctx, tenant.ID)
		return err
	})
	g.Go(func() error {
		var err error
		nodes, err = a.repo.ListWorkflowNodes(gctx, tenant.ID)
		return err
	})
	g.Go(func() error {
		var err error
		kinds, err = a.repo.ListQuestionKinds(gctx, tenant.ID)
		return err
	})
	g.Go(func() error {
		in, err := a.repo.GetIntegration(gctx, tenant.ID, tenant.OwnerID)
		if errors.Is(err, store.ErrNotFound) {
			// A tenant without settings still gets a context; the lead-type
			// normalizer falls back to the system defaults.
			integration = store.Integration{}
			return nil
		}
		if err != nil {
			return err
		}
		integration = in
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	forest := BuildForest(nodes, kinds)
	workflows := MergePlans(forest.Roots, plans, forest.Lookup)

	cx := &AssembledContext{
		Tenant: TenantSummary{
			ID:          tenant.ID,
			DisplayName: tenant.DisplayName,
			Industry:    tenant.Industry,
		},
		Integration: IntegrationSummary{
			AssistantName:       integration.AssistantName,
			CompanyName:         integration.CompanyName,
			Greeting:            integration.Greeting,
			ValidateEmail:       integration.ValidateEmail,
			ValidatePhoneNumber: integration.ValidatePhoneNumber,
			GoogleReviewEnabled: integration.GoogleReviewEnabled,
			GoogleReviewURL:     integration.GoogleReviewURL,
		},
		LeadTypes:    NormalizeLeadTypes(integration.LeadTypes),
		FAQ:          make([]FAQItem, 0, len(faq)),
		ServicePlans: make([]ServicePlanItem, 0, len(plans)),
		Workflows:    workflows,
	}

	for _, entry := range faq {
		if !entry.Active {
			continue
		}
		cx.FAQ = append(cx.FAQ, FAQItem{Question: entry.Question, Answer: entry.Answer})
	}

	for _, plan := range plans {
		if !plan.Active {
			continue
		}
		item := ServicePlanItem{
			Question:          plan.Question,
			Answer:            plan.Answer,
			AttachedWorkflows: make([]PlanAttachment, 0, len(plan.AttachedWorkflows)),
		}
		for _, att := range plan.AttachedWorkflows {
			pa := PlanAttachment{WorkflowID: att.WorkflowID, Order: att.Order}
			if summary, ok := forest.Summary(att.WorkflowID); ok {
				pa.Workflow = &summary
			}
			item.AttachedWorkflows = append(item.AttachedWorkflows, pa)
		}
		cx.ServicePlans = append(cx.ServicePlans, item)
	}

	a.logger.Debug("assembled tenant context",
		zap.String("tenant_id", tenant.ID),
		zap.Int("workflows", len(cx.Workflows)),
		zap.Int("faq", len(cx.FAQ)),
		zap.Duration("took", time.Since(started)),
	)
	return cx, nil
}
