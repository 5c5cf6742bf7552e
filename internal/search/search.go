package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultFAQ  ResultType = "faq"
	ResultPlan ResultType = "plan"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type     ResultType `json:"type"`
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Snippet  string     `json:"snippet"`
	TenantID string     `json:"tenantId"`
}

// Query describes a search request. TenantID is mandatory; tenants never see
// each other's content.
type Query struct {
	TenantID   string
	Text       string
	FilterType ResultType // empty = all types
	Limit      int
	Offset     int
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

// Indexer can push entities into a search index.
type Indexer interface {
	IndexFAQ(rec FAQRecord) error
	IndexPlan(rec PlanRecord) error
	DeleteFAQ(id string) error
	DeletePlan(id string) error
}

// FAQRecord is the data we index for an FAQ entry.
type FAQRecord struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	TenantID string `json:"tenantId"`
	Active   bool   `json:"active"`
}

// PlanRecord is the data we index for a service plan.
type PlanRecord struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	TenantID string `json:"tenantId"`
	Active   bool   `json:"active"`
}
