package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across faq_entries and service_plans
// using plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text, q.TenantID}

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultFAQ {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'faq'::text AS type, f.id, f.question AS title,
				ts_headline('english', coalesce(f.answer, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				f.tenant_id,
				ts_rank(f.fts, %s) AS rank
			FROM faq_entries f
			WHERE f.fts @@ %s AND f.tenant_id = $2 AND f.active AND f.deleted_at IS NULL`,
			tsQuery, tsQuery, tsQuery))
	}

	if q.FilterType == "" || q.FilterType == ResultPlan {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'plan'::text AS type, sp.id, sp.question AS title,
				ts_headline('english', coalesce(sp.answer, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				sp.tenant_id,
				ts_rank(sp.fts, %s) AS rank
			FROM service_plans sp
			WHERE sp.fts @@ %s AND sp.tenant_id = $2 AND sp.active AND sp.deleted_at IS NULL`,
			tsQuery, tsQuery, tsQuery))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, tenant_id
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.TenantID); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]FAQRecord, []PlanRecord, error) {
	faqRows, err := p.db.QueryContext(ctx, `
		SELECT id, question, answer, tenant_id, active
		FROM faq_entries
		WHERE deleted_at IS NULL
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load faq entries: %w", err)
	}
	defer faqRows.Close()

	faqs := make([]FAQRecord, 0)
	for faqRows.Next() {
		var rec FAQRecord
		if err := faqRows.Scan(&rec.ID, &rec.Question, &rec.Answer, &rec.TenantID, &rec.Active); err != nil {
			return nil, nil, fmt.Errorf("scan faq entry: %w", err)
		}
		faqs = append(faqs, rec)
	}
	if err := faqRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate faq entries: %w", err)
	}

	planRows, err := p.db.QueryContext(ctx, `
		SELECT id, question, answer, tenant_id, active
		FROM service_plans
		WHERE deleted_at IS NULL
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load service plans: %w", err)
	}
	defer planRows.Close()

	plans := make([]PlanRecord, 0)
	for planRows.Next() {
		var rec PlanRecord
		if err := planRows.Scan(&rec.ID, &rec.Question, &rec.Answer, &rec.TenantID, &rec.Active); err != nil {
			return nil, nil, fmt.Errorf("scan service plan: %w", err)
		}
		plans = append(plans, rec)
	}
	if err := planRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate service plans: %w", err)
	}

	return faqs, plans, nil
}
