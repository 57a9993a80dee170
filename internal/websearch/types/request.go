package types

// SearchRequest represents a search request
type SearchRequest struct {
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results,omitempty"`
	SearchDepth string `json:"search_depth,omitempty"` // "basic" or "advanced"
}
