package search

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const (
	idxEntities      = "curator_entities"
	idxContributions = "curator_contributions"
)

// Meili implements Searcher and Indexer via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures indexes.
// Returns a usable handle even if the initial connection fails; the
// background health loop will reconfigure once the server comes back.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	// Initial health check
	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
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
		primaryKey string
		filterable []string
		searchable []string
	}{
		{
			uid:        idxEntities,
			primaryKey: "id",
			filterable: []string{"entityType", "locked"},
			searchable: []string{"title", "synopsis"},
		},
		{
			uid:        idxContributions,
			primaryKey: "id",
			filterable: []string{"entityType", "entityId", "status"},
			searchable: []string{"entityTitle", "contributorName", "note"},
		},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        idx.uid,
			PrimaryKey: idx.primaryKey,
		}); err != nil {
			log.Printf("search: create index %s (may already exist): %v", idx.uid, err)
		}

		index := m.client.Index(idx.uid)
		filterableInterface := make([]interface{}, len(idx.filterable))
		for i, v := range idx.filterable {
			filterableInterface[i] = v
		}
		if _, err := index.UpdateFilterableAttributes(&filterableInterface); err != nil {
			log.Printf("search: update filterable attrs for %s: %v", idx.uid, err)
		}
		if _, err := index.UpdateSearchableAttributes(&idx.searchable); err != nil {
			log.Printf("search: update searchable attrs for %s: %v", idx.uid, err)
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
				log.Println("search: meilisearch recovered, reconfiguring indexes")
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

// Search queries both indexes (or a filtered subset) and merges results.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	var queries []*meili.SearchRequest
	targetIndexes := []struct {
		uid  string
		rtyp ResultType
	}{
		{idxEntities, ResultEntity},
		{idxContributions, ResultContribution},
	}

	for _, ti := range targetIndexes {
		if q.FilterType != "" && q.FilterType != ti.rtyp {
			continue
		}
		sr := &meili.SearchRequest{
			IndexUID:              ti.uid,
			Limit:                 limit,
			Offset:                int64(q.Offset),
			AttributesToHighlight: []string{"*"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
			ShowRankingScore:      true,
		}

		var filters []string
		if q.FilterEntityType != "" {
			filters = append(filters, fmt.Sprintf("entityType = %q", q.FilterEntityType))
		}
		if q.FilterStatus != "" && ti.rtyp == ResultContribution {
			filters = append(filters, fmt.Sprintf("status = %q", q.FilterStatus))
		}
		if len(filters) > 0 {
			sr.Filter = filters
		}
		queries = append(queries, sr)
	}

	if len(queries) == 0 {
		return nil, 0, nil
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: queries,
	})
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
	case idxEntities:
		return ResultEntity
	case idxContributions:
		return ResultContribution
	default:
		return ""
	}
}

func hitToResult(hit meili.Hit, rtyp ResultType) Result {
	r := Result{Type: rtyp}
	r.ID = decodeString(hit, "id")
	r.EntityType = decodeString(hit, "entityType")

	switch rtyp {
	case ResultEntity:
		r.EntityID = r.ID
		r.Title = firstNonBlank(decodeFormattedString(hit, "title"), decodeString(hit, "title"))
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "synopsis"), decodeString(hit, "synopsis"))
	case ResultContribution:
		r.EntityID = decodeString(hit, "entityId")
		r.Status = decodeString(hit, "status")
		r.Title = firstNonBlank(decodeFormattedString(hit, "entityTitle"), decodeString(hit, "entityTitle"))
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "note"), decodeString(hit, "note"))
	}
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
	var formatted map[string]string
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	return strings.TrimSpace(formatted[key])
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// IndexEntity adds or updates an entity in the search index.
func (m *Meili) IndexEntity(e EntityRecord) error {
	_, err := m.client.Index(idxEntities).AddDocuments([]EntityRecord{e}, nil)
	return err
}

// IndexContribution adds or updates a contribution in the search index.
func (m *Meili) IndexContribution(c ContributionRecord) error {
	_, err := m.client.Index(idxContributions).AddDocuments([]ContributionRecord{c}, nil)
	return err
}

// DeleteEntity removes an entity from the search index.
func (m *Meili) DeleteEntity(id string) error {
	_, err := m.client.Index(idxEntities).DeleteDocument(id, nil)
	return err
}

// DeleteContribution removes a contribution from the search index.
func (m *Meili) DeleteContribution(id string) error {
	_, err := m.client.Index(idxContributions).DeleteDocument(id, nil)
	return err
}

// IndexEntities bulk-indexes entities.
func (m *Meili) IndexEntities(entities []EntityRecord) error {
	if len(entities) == 0 {
		return nil
	}
	_, err := m.client.Index(idxEntities).AddDocuments(entities, nil)
	return err
}

// IndexContributions bulk-indexes contributions.
func (m *Meili) IndexContributions(contributions []ContributionRecord) error {
	if len(contributions) == 0 {
		return nil
	}
	_, err := m.client.Index(idxContributions).AddDocuments(contributions, nil)
	return err
}
