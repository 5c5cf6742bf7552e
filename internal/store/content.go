package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Content CRUD for the documents the context engine aggregates. Deletes are
// soft: rows keep their id so workflow attachments never dangle into reuse.

func (s *PostgresStore) ListFAQ(ctx context.Context, tenantID string) ([]FAQEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, question, answer, active, created_at, updated_at
		FROM faq_entries
		WHERE tenant_id = $1 AND deleted_at IS NULL
		ORDER BY created_at ASC, id ASC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list faq: %w", err)
	}
	defer rows.Close()

	var entries []FAQEntry
	for rows.Next() {
		var e FAQEntry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.Question, &e.Answer, &e.Active, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan faq: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) CreateFAQ(ctx context.Context, entry FAQEntry) (FAQEntry, error) {
	entry.ID = uuid.NewString()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO faq_entries (id, tenant_id, question, answer, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, entry.ID, entry.TenantID, entry.Question, entry.Answer, entry.Active).
		Scan(&entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return FAQEntry{}, fmt.Errorf("create faq: %w", err)
	}
	return entry, nil
}

func (s *PostgresStore) UpdateFAQ(ctx context.Context, entry FAQEntry) (FAQEntry, error) {
	err := s.db.QueryRowContext(ctx, `
		UPDATE faq_entries
		SET question = $2, answer = $3, active = $4, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING tenant_id, created_at, updated_at
	`, entry.ID, entry.Question, entry.Answer, entry.Active).
		Scan(&entry.TenantID, &entry.CreatedAt, &entry.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return FAQEntry{}, ErrNotFound
	}
	if err != nil {
		return FAQEntry{}, fmt.Errorf("update faq: %w", err)
	}
	return entry, nil
}

// DeleteFAQ soft-deletes an entry and returns its tenant id so the caller can
// invalidate the context cache.
func (s *PostgresStore) DeleteFAQ(ctx context.Context, id string) (string, error) {
	var tenantID string
	err := s.db.QueryRowContext(ctx, `
		UPDATE faq_entries
		SET active = FALSE, deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING tenant_id
	`, id).Scan(&tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("delete faq: %w", err)
	}
	return tenantID, nil
}

const planColumns = `id, tenant_id, question, answer, attached_workflows, active, created_at, updated_at`

func scanServicePlan(row interface{ Scan(...any) error }) (ServicePlan, error) {
	var p ServicePlan
	var attachments []byte
	err := row.Scan(&p.ID, &p.TenantID, &p.Question, &p.Answer, &attachments, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return ServicePlan{}, err
	}
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &p.AttachedWorkflows); err != nil {
			return ServicePlan{}, fmt.Errorf("unmarshal attachments: %w", err)
		}
	}
	return p, nil
}

func (s *PostgresStore) ListServicePlans(ctx context.Context, tenantID string) ([]ServicePlan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+planColumns+`
		FROM service_plans
		WHERE tenant_id = $1 AND deleted_at IS NULL
		ORDER BY created_at ASC, id ASC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list service plans: %w", err)
	}
	defer rows.Close()

	var plans []ServicePlan
	for rows.Next() {
		p, err := scanServicePlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan service plan: %w", err)
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func (s *PostgresStore) CreateServicePlan(ctx context.Context, plan ServicePlan) (ServicePlan, error) {
	plan.ID = uuid.NewString()
	attachments, err := json.Marshal(plan.AttachedWorkflows)
	if err != nil {
		return ServicePlan{}, fmt.Errorf("marshal attachments: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO service_plans (id, tenant_id, question, answer, attached_workflows, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, plan.ID, plan.TenantID, plan.Question, plan.Answer, attachments, plan.Active).
		Scan(&plan.CreatedAt, &plan.UpdatedAt)
	if err != nil {
		return ServicePlan{}, fmt.Errorf("create service plan: %w", err)
	}
	return plan, nil
}

func (s *PostgresStore) UpdateServicePlan(ctx context.Context, plan ServicePlan) (ServicePlan, error) {
	attachments, err := json.Marshal(plan.AttachedWorkflows)
	if err != nil {
		return ServicePlan{}, fmt.Errorf("marshal attachments: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `
		UPDATE service_plans
		SET question = $2, answer = $3, attached_workflows = $4, active = $5, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING tenant_id, created_at, updated_at
	`, plan.ID, plan.Question, plan.Answer, attachments, plan.Active).
		Scan(&plan.TenantID, &plan.CreatedAt, &plan.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ServicePlan{}, ErrNotFound
	}
	if err != nil {
		return ServicePlan{}, fmt.Errorf("update service plan: %w", err)
	}
	return plan, nil
}

func (s *PostgresStore) DeleteServicePlan(ctx context.Context, id string) (string, error) {
	var tenantID string
	err := s.db.QueryRowContext(ctx, `
		UPDATE service_plans
		SET active = FALSE, deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING tenant_id
	`, id).Scan(&tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("delete service plan: %w", err)
	}
	return tenantID, nil
}

const workflowColumns = `id, tenant_id, title, prompt, question_kind, is_root, group_id, sort_order, active, created_at, updated_at`

func scanWorkflowNode(row interface{ Scan(...any) error }) (WorkflowNode, error) {
	var n WorkflowNode
	err := row.Scan(&n.ID, &n.TenantID, &n.Title, &n.Prompt, &n.QuestionKind,
		&n.IsRoot, &n.GroupID, &n.SortOrder, &n.Active, &n.CreatedAt, &n.UpdatedAt)
	return n, err
}

// ListWorkflowNodes returns the full flat node set for a tenant, inactive
// rows included; the tree builder needs them to attribute children before
// pruning.
func (s *PostgresStore) ListWorkflowNodes(ctx context.Context, tenantID string) ([]WorkflowNode, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+workflowColumns+`
		FROM workflow_nodes
		WHERE tenant_id = $1 AND deleted_at IS NULL
		ORDER BY sort_order ASC, created_at ASC, id ASC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list workflow nodes: %w", err)
	}
	defer rows.Close()

	var nodes []WorkflowNode
	for rows.Next() {
		n, err := scanWorkflowNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan workflow node: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func (s *PostgresStore) CreateWorkflowNode(ctx context.Context, node WorkflowNode) (WorkflowNode, error) {
	node.ID = uuid.NewString()
	if node.IsRoot && node.GroupID == nil {
		node.GroupID = &node.ID
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO workflow_nodes (id, tenant_id, title, prompt, question_kind, is_root, group_id, sort_order, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, node.ID, node.TenantID, node.Title, node.Prompt, node.QuestionKind,
		node.IsRoot, node.GroupID, node.SortOrder, node.Active).
		Scan(&node.CreatedAt, &node.UpdatedAt)
	if err != nil {
		return WorkflowNode{}, fmt.Errorf("create workflow node: %w", err)
	}
	return node, nil
}

func (s *PostgresStore) UpdateWorkflowNode(ctx context.Context, node WorkflowNode) (WorkflowNode, error) {
	err := s.db.QueryRowContext(ctx, `
		UPDATE workflow_nodes
		SET title = $2, prompt = $3, question_kind = $4, is_root = $5, group_id = $6,
			sort_order = $7, active = $8, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING tenant_id, created_at, updated_at
	`, node.ID, node.Title, node.Prompt, node.QuestionKind, node.IsRoot,
		node.GroupID, node.SortOrder, node.Active).
		Scan(&node.TenantID, &node.CreatedAt, &node.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return WorkflowNode{}, ErrNotFound
	}
	if err != nil {
		return WorkflowNode{}, fmt.Errorf("update workflow node: %w", err)
	}
	return node, nil
}

func (s *PostgresStore) DeleteWorkflowNode(ctx context.Context, id string) (string, error) {
	var tenantID string
	err := s.db.QueryRowContext(ctx, `
		UPDATE workflow_nodes
		SET active = FALSE, deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING tenant_id
	`, id).Scan(&tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("delete workflow node: %w", err)
	}
	return tenantID, nil
}
