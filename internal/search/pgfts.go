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

// Healthy always returns true — if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

const (
	entityVector = `to_tsvector('english', e.title || ' ' || coalesce(e.data->>'synopsis', ''))`
	contribVector = `to_tsvector('english', coalesce(en.title, '') || ' ' ||
		c.contributor_name || ' ' || coalesce(c.contributor_note, ''))`
)

// Search executes a UNION ALL query across entities and contributions
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
	args := []any{q.Text}
	argN := 2

	var subQueries []string

	// Entities sub-query
	if q.FilterType == "" || q.FilterType == ResultEntity {
		entWhere := entityVector + " @@ " + tsQuery
		if q.FilterEntityType != "" {
			entWhere += fmt.Sprintf(" AND e.entity_type = $%d", argN)
			args = append(args, q.FilterEntityType)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'entity'::text AS type, e.id, e.title,
				ts_headline('english', coalesce(e.data->>'synopsis', ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				e.entity_type, e.id AS entity_id,
				''::text AS status,
				ts_rank(%s, %s) AS rank
			FROM entities e
			WHERE %s`, tsQuery, entityVector, tsQuery, entWhere))
	}

	// Contributions sub-query
	if q.FilterType == "" || q.FilterType == ResultContribution {
		conWhere := contribVector + " @@ " + tsQuery
		if q.FilterEntityType != "" {
			conWhere += fmt.Sprintf(" AND c.entity_type = $%d", argN)
			args = append(args, q.FilterEntityType)
			argN++
		}
		if q.FilterStatus != "" {
			conWhere += fmt.Sprintf(" AND c.status = $%d", argN)
			args = append(args, q.FilterStatus)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'contribution'::text AS type, c.id, coalesce(en.title, '') AS title,
				ts_headline('english', coalesce(c.contributor_note, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				c.entity_type, c.entity_id,
				c.status,
				ts_rank(%s, %s) AS rank
			FROM contributions c
			LEFT JOIN entities en ON en.id = c.entity_id
			WHERE %s`, tsQuery, contribVector, tsQuery, conWhere))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	// Count query
	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	// Data query
	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, entity_type, entity_id, status
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
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.EntityType, &r.EntityID, &r.Status); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]EntityRecord, []ContributionRecord, error) {
	entRows, err := p.db.QueryContext(ctx, `
		SELECT id, entity_type, title, coalesce(data->>'synopsis', ''), locked
		FROM entities
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load entities: %w", err)
	}
	defer entRows.Close()

	entities := make([]EntityRecord, 0)
	for entRows.Next() {
		var e EntityRecord
		if err := entRows.Scan(&e.ID, &e.EntityType, &e.Title, &e.Synopsis, &e.Locked); err != nil {
			return nil, nil, fmt.Errorf("scan entity: %w", err)
		}
		entities = append(entities, e)
	}
	if err := entRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate entities: %w", err)
	}

	conRows, err := p.db.QueryContext(ctx, `
		SELECT c.id, c.entity_type, c.entity_id, coalesce(en.title, ''),
			c.contributor_name, coalesce(c.contributor_note, ''), c.status
		FROM contributions c
		LEFT JOIN entities en ON en.id = c.entity_id
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load contributions: %w", err)
	}
	defer conRows.Close()

	contributions := make([]ContributionRecord, 0)
	for conRows.Next() {
		var c ContributionRecord
		if err := conRows.Scan(&c.ID, &c.EntityType, &c.EntityID, &c.EntityTitle, &c.ContributorName, &c.Note, &c.Status); err != nil {
			return nil, nil, fmt.Errorf("scan contribution: %w", err)
		}
		contributions = append(contributions, c)
	}
	if err := conRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate contributions: %w", err)
	}

	return entities, contributions, nil
}
