package search

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

const (
	idxFAQ   = "assistly_faq"
	idxPlans = "assistly_service_plans"
)

// Meili implements Searcher and Indexer via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	logger  *zap.Logger
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures indexes. The caller
// proceeds without search highlighting if the initial connection fails; the
// health loop reconfigures indexes on recovery.
func NewMeili(url, apiKey string, logger *zap.Logger) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		logger: logger,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		logger.Warn("meilisearch unavailable", zap.String("url", url), zap.Error(err))
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	indexes := []struct {
		uid        string
		filterable []string
		searchable []string
	}{
		{
			uid:        idxFAQ,
			filterable: []string{"tenantId", "active"},
			searchable: []string{"question", "answer"},
		},
		{
			uid:        idxPlans,
			filterable: []string{"tenantId", "active"},
			searchable: []string{"question", "answer"},
		},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        idx.uid,
			PrimaryKey: "id",
		}); err != nil {
			m.logger.Debug("create index (may already exist)", zap.String("index", idx.uid), zap.Error(err))
		}

		index := m.client.Index(idx.uid)
		filterable := make([]interface{}, len(idx.filterable))
		for i, v := range idx.filterable {
			filterable[i] = v
		}
		if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
			m.logger.Warn("update filterable attrs", zap.String("index", idx.uid), zap.Error(err))
		}
		if _, err := index.UpdateSearchableAttributes(&idx.searchable); err != nil {
			m.logger.Warn("update searchable attrs", zap.String("index", idx.uid), zap.Error(err))
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.logger.Info("meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries the FAQ and plan indexes (or a filtered subset) and merges
// results.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	var queries []*meili.SearchRequest
	targets := []struct {
		uid  string
		rtyp ResultType
	}{
		{idxFAQ, ResultFAQ},
		{idxPlans, ResultPlan},
	}

	for _, t := range targets {
		if q.FilterType != "" && q.FilterType != t.rtyp {
			continue
		}
		queries = append(queries, &meili.SearchRequest{
			IndexUID: t.uid,
			Limit:    limit,
			Offset:   int64(q.Offset),
			Filter: []string{
				fmt.Sprintf("tenantId = %q", q.TenantID),
				"active = true",
			},
			AttributesToHighlight: []string{"*"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
		})
	}

	if len(queries) == 0 {
		return nil, 0, nil
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{Queries: queries})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		rtyp := indexToResultType(sr.IndexUID)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit, rtyp))
		}
	}

	return results, total, nil
}

func indexToResultType(uid string) ResultType {
	switch uid {
	case idxFAQ:
		return ResultFAQ
	case idxPlans:
		return ResultPlan
	default:
		return ""
	}
}

func hitToResult(hit meili.Hit, rtyp ResultType) Result {
	r := Result{Type: rtyp}
	r.ID = decodeString(hit, "id")
	r.TenantID = decodeString(hit, "tenantId")
	r.Title = firstNonBlank(decodeFormattedString(hit, "question"), decodeString(hit, "question"))
	r.Snippet = firstNonBlank(decodeFormattedString(hit, "answer"), decodeString(hit, "answer"))
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]json.RawMessage
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(formatted[key], &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// IndexFAQ adds or updates an FAQ entry in the search index.
func (m *Meili) IndexFAQ(rec FAQRecord) error {
	_, err := m.client.Index(idxFAQ).AddDocuments([]FAQRecord{rec}, nil)
	return err
}

// IndexPlan adds or updates a service plan in the search index.
func (m *Meili) IndexPlan(rec PlanRecord) error {
	_, err := m.client.Index(idxPlans).AddDocuments([]PlanRecord{rec}, nil)
	return err
}

// DeleteFAQ removes an FAQ entry from the search index.
func (m *Meili) DeleteFAQ(id string) error {
	_, err := m.client.Index(idxFAQ).DeleteDocument(id, nil)
	return err
}

// DeletePlan removes a service plan from the search index.
func (m *Meili) DeletePlan(id string) error {
	_, err := m.client.Index(idxPlans).DeleteDocument(id, nil)
	return err
}

// IndexFAQs bulk-indexes FAQ entries.
func (m *Meili) IndexFAQs(records []FAQRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxFAQ).AddDocuments(records, nil)
	return err
}

// IndexPlans bulk-indexes service plans.
func (m *Meili) IndexPlans(records []PlanRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxPlans).AddDocuments(records, nil)
	return err
}
