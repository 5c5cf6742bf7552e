package search

import (
	"context"

	"go.uber.org/zap"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili  *Meili
	pgfts  *PgFTS
	logger *zap.Logger
}

// NewService creates a search service. meili may be nil if Meilisearch is not
// configured.
func NewService(meili *Meili, pgfts *PgFTS, logger *zap.Logger) *Service {
	return &Service{meili: meili, pgfts: pgfts, logger: logger}
}

// MeiliHealthy reports whether the Meilisearch primary is configured and
// reachable. Search still works when it is not; results come from Postgres.
func (s *Service) MeiliHealthy() bool {
	return s.meili != nil && s.meili.Healthy()
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.logger.Warn("meilisearch error, falling back to pgfts", zap.Error(err))
	}

	results, total, err := s.pgfts.Search(q)
	if err != nil {
		s.logger.Error("pgfts search failed", zap.Error(err))
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexFAQ indexes an FAQ entry (fire-and-forget to Meilisearch).
func (s *Service) IndexFAQ(rec FAQRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexFAQ(rec); err != nil {
			s.logger.Warn("index faq entry", zap.String("id", rec.ID), zap.Error(err))
		}
	}()
}

// IndexPlan indexes a service plan (fire-and-forget to Meilisearch).
func (s *Service) IndexPlan(rec PlanRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexPlan(rec); err != nil {
			s.logger.Warn("index service plan", zap.String("id", rec.ID), zap.Error(err))
		}
	}()
}

// DeleteFAQ removes an FAQ entry from the search index (fire-and-forget).
func (s *Service) DeleteFAQ(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteFAQ(id); err != nil {
			s.logger.Warn("delete faq entry from index", zap.String("id", id), zap.Error(err))
		}
	}()
}

// DeletePlan removes a service plan from the search index (fire-and-forget).
func (s *Service) DeletePlan(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeletePlan(id); err != nil {
			s.logger.Warn("delete service plan from index", zap.String("id", id), zap.Error(err))
		}
	}()
}

// ReindexAllFromPG reads all searchable entities from PostgreSQL and pushes
// them to Meilisearch. Called at startup when Meilisearch is healthy.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return
	}
	faqs, plans, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		s.logger.Warn("reindex load failed", zap.Error(err))
		return
	}
	if err := s.meili.IndexFAQs(faqs); err != nil {
		s.logger.Warn("reindex faq entries", zap.Error(err))
	}
	if err := s.meili.IndexPlans(plans); err != nil {
		s.logger.Warn("reindex service plans", zap.Error(err))
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
