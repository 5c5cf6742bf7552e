package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Hamza7661/Assistly-Backend-sub000/internal/store"
)

// Repository is the engine's read-only view of the document store. It is
// satisfied by *store.PostgresStore; tests use in-memory fakes.
type Repository interface {
	GetTenant(ctx context.Context, id string) (store.Tenant, error)
	TenantsByBoundNumber(ctx context.Context, number string) ([]store.Tenant, error)
	GetOwner(ctx context.Context, id string) (store.Owner, error)
	TenantsByOwner(ctx context.Context, ownerID string) ([]store.Tenant, error)

	ListFAQ(ctx context.Context, tenantID string) ([]store.FAQEntry, error)
	ListServicePlans(ctx context.Context, tenantID string) ([]store.ServicePlan, error)
	ListWorkflowNodes(ctx context.Context, tenantID string) ([]store.WorkflowNode, error)
	GetIntegration(ctx context.Context, tenantID, ownerID string) (store.Integration, error)
	ListQuestionKinds(ctx context.Context, tenantID string) ([]store.QuestionKind, error)
}

// guardedRepo wraps every repository read with the configured per-read
// timeout and a single immediate retry, and maps final failures onto
// ErrRepositoryUnavailable. Missing-record results pass through untouched so
// the resolver's NotFound taxonomy survives the wrapping.
type guardedRepo struct {
	repo    Repository
	timeout time.Duration
	logger  *zap.Logger
}

func newGuardedRepo(repo Repository, timeout time.Duration, logger *zap.Logger) *guardedRepo {
	return &guardedRepo{repo: repo, timeout: timeout, logger: logger}
}

func guardedRead[T any](ctx context.Context, g *guardedRepo, name string, fn func(context.Context) (T, error)) (T, error) {
	out, err := attemptRead(ctx, g.timeout, fn)
	if err == nil || errors.Is(err, store.ErrNotFound) {
		return out, err
	}
	if ctx.Err() == nil {
		g.logger.Warn("repository read failed, retrying",
			zap.String("read", name),
			zap.Error(err),
		)
		out, err = attemptRead(ctx, g.timeout, fn)
		if err == nil || errors.Is(err, store.ErrNotFound) {
			return out, err
		}
	}
	g.logger.Error("repository read failed",
		zap.String("read", name),
		zap.Error(err),
	)
	var zero T
	return zero, fmt.Errorf("%s: %v: %w", name, err, ErrRepositoryUnavailable)
}

func attemptRead[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx)
}

func (g *guardedRepo) GetTenant(ctx context.Context, id string) (store.Tenant, error) {
	return guardedRead(ctx, g, "tenant", func(ctx context.Context) (store.Tenant, error) {
		return g.repo.GetTenant(ctx, id)
	})
}

func (g *guardedRepo) TenantsByBoundNumber(ctx context.Context, number string) ([]store.Tenant, error) {
	return guardedRead(ctx, g, "tenants_by_number", func(ctx context.Context) ([]store.Tenant, error) {
		return g.repo.TenantsByBoundNumber(ctx, number)
	})
}

func (g *guardedRepo) GetOwner(ctx context.Context, id string) (store.Owner, error) {
	return guardedRead(ctx, g, "owner", func(ctx context.Context) (store.Owner, error) {
		return g.repo.GetOwner(ctx, id)
	})
}

func (g *guardedRepo) TenantsByOwner(ctx context.Context, ownerID string) ([]store.Tenant, error) {
	return guardedRead(ctx, g, "tenants_by_owner", func(ctx context.Context) ([]store.Tenant, error) {
		return g.repo.TenantsByOwner(ctx, ownerID)
	})
}

func (g *guardedRepo) ListFAQ(ctx context.Context, tenantID string) ([]store.FAQEntry, error) {
	return guardedRead(ctx, g, "faq", func(ctx context.Context) ([]store.FAQEntry, error) {
		return g.repo.ListFAQ(ctx, tenantID)
	})
}

func (g *guardedRepo) ListServicePlans(ctx context.Context, tenantID string) ([]store.ServicePlan, error) {
	return guardedRead(ctx, g, "service_plans", func(ctx context.Context) ([]store.ServicePlan, error) {
		return g.repo.ListServicePlans(ctx, tenantID)
	})
}

func (g *guardedRepo) ListWorkflowNodes(ctx context.Context, tenantID string) ([]store.WorkflowNode, error) {
	return guardedRead(ctx, g, "workflow_nodes", func(ctx context.Context) ([]store.WorkflowNode, error) {
		return g.repo.ListWorkflowNodes(ctx, tenantID)
	})
}

func (g *guardedRepo) GetIntegration(ctx context.Context, tenantID, ownerID string) (store.Integration, error) {
	return guardedRead(ctx, g, "integration", func(ctx context.Context) (store.Integration, error) {
		return g.repo.GetIntegration(ctx, tenantID, ownerID)
	})
}

func (g *guardedRepo) ListQuestionKinds(ctx context.Context, tenantID string) ([]store.QuestionKind, error) {
	return guardedRead(ctx, g, "question_kinds", func(ctx context.Context) ([]store.QuestionKind, error) {
		return g.repo.ListQuestionKinds(ctx, tenantID)
	})
}
