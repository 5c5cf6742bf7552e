package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStore(db *sql.DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const tenantColumns = `id, owner_id, display_name, industry, bound_number, uses_bound_number, active, deleted_at, created_at, updated_at`

func scanTenant(row interface{ Scan(...any) error }) (Tenant, error) {
	var t Tenant
	err := row.Scan(&t.ID, &t.OwnerID, &t.DisplayName, &t.Industry, &t.BoundNumber,
		&t.UsesBoundNumber, &t.Active, &t.DeletedAt, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// GetTenant returns an active, non-deleted tenant by id.
func (s *PostgresStore) GetTenant(ctx context.Context, id string) (Tenant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+tenantColumns+`
		FROM tenants
		WHERE id = $1 AND active AND deleted_at IS NULL
	`, id)
	t, err := scanTenant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Tenant{}, ErrNotFound
	}
	if err != nil {
		return Tenant{}, fmt.Errorf("get tenant: %w", err)
	}
	return t, nil
}

// TenantsByBoundNumber returns all active tenants bound to the number,
// flagged holders first, then oldest first. The order is the resolver's
// tie-break contract; keep it deterministic.
func (s *PostgresStore) TenantsByBoundNumber(ctx context.Context, number string) ([]Tenant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+tenantColumns+`
		FROM tenants
		WHERE bound_number = $1 AND active AND deleted_at IS NULL
		ORDER BY uses_bound_number DESC, created_at ASC, id ASC
	`, number)
	if err != nil {
		return nil, fmt.Errorf("tenants by bound number: %w", err)
	}
	defer rows.Close()

	var tenants []Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func (s *PostgresStore) GetOwner(ctx context.Context, id string) (Owner, error) {
	var o Owner
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, COALESCE(phone, ''), created_at FROM owners WHERE id = $1
	`, id).Scan(&o.ID, &o.Email, &o.Phone, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Owner{}, ErrNotFound
	}
	if err != nil {
		return Owner{}, fmt.Errorf("get owner: %w", err)
	}
	return o, nil
}

func (s *PostgresStore) TenantsByOwner(ctx context.Context, ownerID string) ([]Tenant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+tenantColumns+`
		FROM tenants
		WHERE owner_id = $1 AND active AND deleted_at IS NULL
		ORDER BY created_at ASC, id ASC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("tenants by owner: %w", err)
	}
	defer rows.Close()

	var tenants []Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

const integrationColumns = `id, tenant_id, owner_id, assistant_name, company_name, greeting,
	validate_email, validate_phone_number, google_review_enabled, google_review_url,
	lead_types, created_at, updated_at`

func scanIntegration(row interface{ Scan(...any) error }) (Integration, error) {
	var in Integration
	var leadTypes []byte
	err := row.Scan(&in.ID, &in.TenantID, &in.OwnerID, &in.AssistantName, &in.CompanyName,
		&in.Greeting, &in.ValidateEmail, &in.ValidatePhoneNumber, &in.GoogleReviewEnabled,
		&in.GoogleReviewURL, &leadTypes, &in.CreatedAt, &in.UpdatedAt)
	if err != nil {
		return Integration{}, err
	}
	if len(leadTypes) > 0 {
		if err := json.Unmarshal(leadTypes, &in.LeadTypes); err != nil {
			return Integration{}, fmt.Errorf("unmarshal lead types: %w", err)
		}
	}
	return in, nil
}

// GetIntegration returns the tenant-scoped integration record. When none
// exists it falls back to the legacy owner-level record; that path is
// migration-only and logged so it can be retired.
func (s *PostgresStore) GetIntegration(ctx context.Context, tenantID, ownerID string) (Integration, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+integrationColumns+` FROM integrations WHERE tenant_id = $1
	`, tenantID)
	in, err := scanIntegration(row)
	if err == nil {
		return in, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Integration{}, fmt.Errorf("get integration: %w", err)
	}

	row = s.db.QueryRowContext(ctx, `
		SELECT `+integrationColumns+` FROM integrations WHERE tenant_id IS NULL AND owner_id = $1
	`, ownerID)
	in, err = scanIntegration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Integration{}, ErrNotFound
	}
	if err != nil {
		return Integration{}, fmt.Errorf("get owner integration: %w", err)
	}
	s.logger.Warn("integration resolved via legacy owner-level record",
		zap.String("tenant_id", tenantID),
		zap.String("owner_id", ownerID),
	)
	return in, nil
}

// UpsertIntegration writes the tenant-scoped integration record.
func (s *PostgresStore) UpsertIntegration(ctx context.Context, in Integration) (Integration, error) {
	leadTypes, err := json.Marshal(in.LeadTypes)
	if err != nil {
		return Integration{}, fmt.Errorf("marshal lead types: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO integrations (id, tenant_id, assistant_name, company_name, greeting,
			validate_email, validate_phone_number, google_review_enabled, google_review_url, lead_types)
		VALUES (COALESCE(NULLIF($1, ''), gen_random_uuid()::text), $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (tenant_id) WHERE tenant_id IS NOT NULL DO UPDATE SET
			assistant_name = EXCLUDED.assistant_name,
			company_name = EXCLUDED.company_name,
			greeting = EXCLUDED.greeting,
			validate_email = EXCLUDED.validate_email,
			validate_phone_number = EXCLUDED.validate_phone_number,
			google_review_enabled = EXCLUDED.google_review_enabled,
			google_review_url = EXCLUDED.google_review_url,
			lead_types = EXCLUDED.lead_types,
			updated_at = NOW()
		RETURNING `+integrationColumns+`
	`, in.ID, in.TenantID, in.AssistantName, in.CompanyName, in.Greeting,
		in.ValidateEmail, in.ValidatePhoneNumber, in.GoogleReviewEnabled, in.GoogleReviewURL, leadTypes)
	out, err := scanIntegration(row)
	if err != nil {
		return Integration{}, fmt.Errorf("upsert integration: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ListQuestionKinds(ctx context.Context, tenantID string) ([]QuestionKind, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, label, active
		FROM question_kinds
		WHERE tenant_id = $1
		ORDER BY id ASC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list question kinds: %w", err)
	}
	defer rows.Close()

	var kinds []QuestionKind
	for rows.Next() {
		var k QuestionKind
		if err := rows.Scan(&k.ID, &k.TenantID, &k.Label, &k.Active); err != nil {
			return nil, fmt.Errorf("scan question kind: %w", err)
		}
		kinds = append(kinds, k)
	}
	return kinds, rows.Err()
}
