package search

// Result is a single proposal search hit.
type Result struct {
	ID      string `json:"id"`
	Tenant  string `json:"tenant"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Type    string `json:"proposalType"`
}

// Query describes a proposal search request. Tenant is mandatory: results
// never cross deployments.
type Query struct {
	Tenant string
	Text   string
	Limit  int
	Offset int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a proposal search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// ProposalRecord is the data indexed per proposal. Key is the index
// primary key; ids repeat across tenants so the key namespaces them.
type ProposalRecord struct {
	Key         string `json:"key"`
	ID          string `json:"id"`
	Tenant      string `json:"tenant"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Type        string `json:"proposalType"`
}

// RecordKey builds the namespaced primary key for a proposal record.
func RecordKey(tenant, id string) string {
	return tenant + "-" + id
}
