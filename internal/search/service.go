package search

import (
	"context"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili *Meili
	pgfts *PgFTS
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	return &Service{meili: meili, pgfts: pgfts}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}

	results, total, err := s.pgfts.Search(q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexEntity indexes an entity (fire-and-forget to Meilisearch).
func (s *Service) IndexEntity(e EntityRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexEntity(e); err != nil {
			log.Printf("search: index entity %s: %v", e.ID, err)
		}
	}()
}

// IndexContribution indexes a contribution (fire-and-forget to Meilisearch).
func (s *Service) IndexContribution(c ContributionRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexContribution(c); err != nil {
			log.Printf("search: index contribution %s: %v", c.ID, err)
		}
	}()
}

// DeleteEntity removes an entity from the search index (fire-and-forget).
func (s *Service) DeleteEntity(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteEntity(id); err != nil {
			log.Printf("search: delete entity %s: %v", id, err)
		}
	}()
}

// ReindexAll pushes the given records to Meilisearch in bulk.
func (s *Service) ReindexAll(entities []EntityRecord, contributions []ContributionRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}

	if len(entities) > 0 {
		if err := s.meili.IndexEntities(entities); err != nil {
			log.Printf("search: reindex entities: %v", err)
		}
	}
	if len(contributions) > 0 {
		if err := s.meili.IndexContributions(contributions); err != nil {
			log.Printf("search: reindex contributions: %v", err)
		}
	}
}

// ReindexAllFromPG reindexes all searchable records from PostgreSQL into Meilisearch.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return
	}
	entities, contributions, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	s.ReindexAll(entities, contributions)
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
