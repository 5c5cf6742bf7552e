package app

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Hamza7661/Assistly-Backend-sub000/internal/engine"
	"github.com/Hamza7661/Assistly-Backend-sub000/internal/search"
	"github.com/Hamza7661/Assistly-Backend-sub000/internal/store"
)

// dataStore is the slice of the persistence layer the service uses.
// *store.PostgresStore satisfies it.
type dataStore interface {
	Ping(ctx context.Context) error
	GetTenant(ctx context.Context, id string) (store.Tenant, error)

	ListFAQ(ctx context.Context, tenantID string) ([]store.FAQEntry, error)
	CreateFAQ(ctx context.Context, entry store.FAQEntry) (store.FAQEntry, error)
	UpdateFAQ(ctx context.Context, entry store.FAQEntry) (store.FAQEntry, error)
	DeleteFAQ(ctx context.Context, id string) (string, error)

	ListServicePlans(ctx context.Context, tenantID string) ([]store.ServicePlan, error)
	CreateServicePlan(ctx context.Context, plan store.ServicePlan) (store.ServicePlan, error)
	UpdateServicePlan(ctx context.Context, plan store.ServicePlan) (store.ServicePlan, error)
	DeleteServicePlan(ctx context.Context, id string) (string, error)

	ListWorkflowNodes(ctx context.Context, tenantID string) ([]store.WorkflowNode, error)
	CreateWorkflowNode(ctx context.Context, node store.WorkflowNode) (store.WorkflowNode, error)
	UpdateWorkflowNode(ctx context.Context, node store.WorkflowNode) (store.WorkflowNode, error)
	DeleteWorkflowNode(ctx context.Context, id string) (string, error)

	GetIntegration(ctx context.Context, tenantID, ownerID string) (store.Integration, error)
	UpsertIntegration(ctx context.Context, in store.Integration) (store.Integration, error)
}

// Service wires the persistence layer, the context engine, and search behind
// the HTTP surface. Every configuration write invalidates the owning tenant's
// cached context before returning.
type Service struct {
	store     dataStore
	assembler *engine.Assembler
	search    *search.Service
	logger    *zap.Logger
}

func NewService(store dataStore, assembler *engine.Assembler, search *search.Service, logger *zap.Logger) *Service {
	return &Service{
		store:     store,
		assembler: assembler,
		search:    search,
		logger:    logger,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// SearchHealthy reports whether the search primary is up. Degraded search
// never fails readiness; it only changes which backend serves queries.
func (s *Service) SearchHealthy() bool {
	return s.search.MeiliHealthy()
}

// Context returns the assembled context for the tenant the key resolves to.
func (s *Service) Context(ctx context.Context, key engine.Key) (*engine.AssembledContext, error) {
	return s.assembler.Context(ctx, key)
}

// InvalidateTenant drops the tenant's cached context. Unknown tenants are a
// 404; invalidating a tenant with nothing cached succeeds.
func (s *Service) InvalidateTenant(ctx context.Context, tenantID string) error {
	if _, err := s.store.GetTenant(ctx, tenantID); err != nil {
		return err
	}
	return s.assembler.Invalidate(ctx, tenantID)
}

// invalidate is the post-write hook. Cache trouble here is logged, not
// surfaced; the write itself already succeeded.
func (s *Service) invalidate(ctx context.Context, tenantID string) {
	if err := s.assembler.Invalidate(ctx, tenantID); err != nil {
		s.logger.Warn("context invalidation failed after write",
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
	}
}

func (s *Service) ListFAQ(ctx context.Context, tenantID string) ([]store.FAQEntry, error) {
	return s.store.ListFAQ(ctx, tenantID)
}

func (s *Service) CreateFAQ(ctx context.Context, entry store.FAQEntry) (store.FAQEntry, error) {
	if err := validateFAQ(entry); err != nil {
		return store.FAQEntry{}, err
	}
	created, err := s.store.CreateFAQ(ctx, entry)
	if err != nil {
		return store.FAQEntry{}, err
	}
	s.invalidate(ctx, created.TenantID)
	s.search.IndexFAQ(faqRecord(created))
	return created, nil
}

func (s *Service) UpdateFAQ(ctx context.Context, entry store.FAQEntry) (store.FAQEntry, error) {
	if err := validateFAQ(entry); err != nil {
		return store.FAQEntry{}, err
	}
	updated, err := s.store.UpdateFAQ(ctx, entry)
	if err != nil {
		return store.FAQEntry{}, err
	}
	s.invalidate(ctx, updated.TenantID)
	s.search.IndexFAQ(faqRecord(updated))
	return updated, nil
}

func (s *Service) DeleteFAQ(ctx context.Context, id string) error {
	tenantID, err := s.store.DeleteFAQ(ctx, id)
	if err != nil {
		return err
	}
	s.invalidate(ctx, tenantID)
	s.search.DeleteFAQ(id)
	return nil
}

func (s *Service) ListServicePlans(ctx context.Context, tenantID string) ([]store.ServicePlan, error) {
	return s.store.ListServicePlans(ctx, tenantID)
}

func (s *Service) CreateServicePlan(ctx context.Context, plan store.ServicePlan) (store.ServicePlan, error) {
	if err := validatePlan(plan); err != nil {
		return store.ServicePlan{}, err
	}
	created, err := s.store.CreateServicePlan(ctx, plan)
	if err != nil {
		return store.ServicePlan{}, err
	}
	s.invalidate(ctx, created.TenantID)
	s.search.IndexPlan(planRecord(created))
	return created, nil
}

func (s *Service) UpdateServicePlan(ctx context.Context, plan store.ServicePlan) (store.ServicePlan, error) {
	if err := validatePlan(plan); err != nil {
		return store.ServicePlan{}, err
	}
	updated, err := s.store.UpdateServicePlan(ctx, plan)
	if err != nil {
		return store.ServicePlan{}, err
	}
	s.invalidate(ctx, updated.TenantID)
	s.search.IndexPlan(planRecord(updated))
	return updated, nil
}

func (s *Service) DeleteServicePlan(ctx context.Context, id string) error {
	tenantID, err := s.store.DeleteServicePlan(ctx, id)
	if err != nil {
		return err
	}
	s.invalidate(ctx, tenantID)
	s.search.DeletePlan(id)
	return nil
}

func (s *Service) ListWorkflowNodes(ctx context.Context, tenantID string) ([]store.WorkflowNode, error) {
	return s.store.ListWorkflowNodes(ctx, tenantID)
}

func (s *Service) CreateWorkflowNode(ctx context.Context, node store.WorkflowNode) (store.WorkflowNode, error) {
	if err := validateWorkflowNode(node); err != nil {
		return store.WorkflowNode{}, err
	}
	created, err := s.store.CreateWorkflowNode(ctx, node)
	if err != nil {
		return store.WorkflowNode{}, err
	}
	s.invalidate(ctx, created.TenantID)
	return created, nil
}

func (s *Service) UpdateWorkflowNode(ctx context.Context, node store.WorkflowNode) (store.WorkflowNode, error) {
	if err := validateWorkflowNode(node); err != nil {
		return store.WorkflowNode{}, err
	}
	updated, err := s.store.UpdateWorkflowNode(ctx, node)
	if err != nil {
		return store.WorkflowNode{}, err
	}
	s.invalidate(ctx, updated.TenantID)
	return updated, nil
}

func (s *Service) DeleteWorkflowNode(ctx context.Context, id string) error {
	tenantID, err := s.store.DeleteWorkflowNode(ctx, id)
	if err != nil {
		return err
	}
	s.invalidate(ctx, tenantID)
	return nil
}

// Integration returns the tenant's assistant settings, falling back to a
// legacy owner-level record when the tenant has none.
func (s *Service) Integration(ctx context.Context, tenantID string) (store.Integration, error) {
	tenant, err := s.store.GetTenant(ctx, tenantID)
	if err != nil {
		return store.Integration{}, err
	}
	return s.store.GetIntegration(ctx, tenant.ID, tenant.OwnerID)
}

func (s *Service) PutIntegration(ctx context.Context, tenantID string, in store.Integration) (store.Integration, error) {
	tenant, err := s.store.GetTenant(ctx, tenantID)
	if err != nil {
		return store.Integration{}, err
	}
	in.TenantID = &tenant.ID
	in.OwnerID = nil
	updated, err := s.store.UpsertIntegration(ctx, in)
	if err != nil {
		return store.Integration{}, err
	}
	s.invalidate(ctx, tenant.ID)
	return updated, nil
}

// Search runs a tenant-scoped full-text search over FAQ entries and service
// plans.
func (s *Service) Search(q search.Query) search.Response {
	return s.search.Search(q)
}

func validateFAQ(entry store.FAQEntry) error {
	var fields []string
	if strings.TrimSpace(entry.TenantID) == "" {
		fields = append(fields, "tenantId")
	}
	if strings.TrimSpace(entry.Question) == "" {
		fields = append(fields, "question")
	}
	if strings.TrimSpace(entry.Answer) == "" {
		fields = append(fields, "answer")
	}
	return validationError(fields)
}

func validatePlan(plan store.ServicePlan) error {
	var fields []string
	if strings.TrimSpace(plan.TenantID) == "" {
		fields = append(fields, "tenantId")
	}
	if strings.TrimSpace(plan.Question) == "" {
		fields = append(fields, "question")
	}
	for _, att := range plan.AttachedWorkflows {
		if strings.TrimSpace(att.WorkflowID) == "" {
			fields = append(fields, "attachedWorkflows.workflowId")
			break
		}
	}
	return validationError(fields)
}

func validateWorkflowNode(node store.WorkflowNode) error {
	var fields []string
	if strings.TrimSpace(node.TenantID) == "" {
		fields = append(fields, "tenantId")
	}
	if strings.TrimSpace(node.Title) == "" {
		fields = append(fields, "title")
	}
	if !node.IsRoot && node.GroupID != nil && strings.TrimSpace(*node.GroupID) == "" {
		fields = append(fields, "groupId")
	}
	return validationError(fields)
}

func validationError(fields []string) error {
	if len(fields) == 0 {
		return nil
	}
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR",
		"missing or invalid fields", map[string]any{"fields": fields})
}

func faqRecord(entry store.FAQEntry) search.FAQRecord {
	return search.FAQRecord{
		ID:       entry.ID,
		Question: entry.Question,
		Answer:   entry.Answer,
		TenantID: entry.TenantID,
		Active:   entry.Active,
	}
}

func planRecord(plan store.ServicePlan) search.PlanRecord {
	return search.PlanRecord{
		ID:       plan.ID,
		Question: plan.Question,
		Answer:   plan.Answer,
		TenantID: plan.TenantID,
		Active:   plan.Active,
	}
}
