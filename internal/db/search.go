package db

// VectorField is the hash field holding the FLOAT32 vector blob.
const VectorField = "vector"

// TagFilter restricts a query to documents whose TAG field matches any of Values.
type TagFilter struct {
	Field  string
	Values []string
}

// Tag is shorthand for a single-value TagFilter.
func Tag(field, value string) TagFilter {
	return TagFilter{Field: field, Values: []string{value}}
}

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName     string
	Tags          []TagFilter
	Vector        []float32
	K             int
	ReturnFields  []string
	IncludeVector bool // add the raw vector blob to ReturnFields
}

// ListQuery is the input for filtered, paginated listing.
type ListQuery struct {
	IndexName    string
	Tags         []TagFilter
	Offset       int
	Limit        int
	ReturnFields []string
	SortBy       string
	Descending   bool
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
