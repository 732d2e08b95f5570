package search

// ResultType identifies the kind of record in a search result.
type ResultType string

const (
	ResultEntity       ResultType = "entity"
	ResultContribution ResultType = "contribution"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type       ResultType `json:"type"`
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Snippet    string     `json:"snippet"`
	EntityType string     `json:"entityType"`
	EntityID   string     `json:"entityId"`
	Status     string     `json:"status,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text             string
	FilterType       ResultType // empty = all types
	FilterEntityType string     // series, character, staff, studio
	FilterStatus     string     // contribution status, only applies to contributions
	Limit            int
	Offset           int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push records into a search index.
type Indexer interface {
	IndexEntity(e EntityRecord) error
	IndexContribution(c ContributionRecord) error
	DeleteEntity(id string) error
	DeleteContribution(id string) error
}

// EntityRecord is the data we index for a catalog entity.
type EntityRecord struct {
	ID         string `json:"id"`
	EntityType string `json:"entityType"`
	Title      string `json:"title"`
	Synopsis   string `json:"synopsis"`
	Locked     bool   `json:"locked"`
}

// ContributionRecord is the data we index for a contribution.
type ContributionRecord struct {
	ID              string `json:"id"`
	EntityType      string `json:"entityType"`
	EntityID        string `json:"entityId"`
	EntityTitle     string `json:"entityTitle"`
	ContributorName string `json:"contributorName"`
	Note            string `json:"note"`
	Status          string `json:"status"`
}
