// Package search finds passages in meeting transcripts. Within a single
// meeting the canonical semantics is a case-insensitive substring scan over
// the transcript's paragraph units; cross-meeting search is served by
// Meilisearch when available, with the scan as fallback.
package search

// Match is one transcript unit containing the search term.
type Match struct {
	Index   int    `json:"index"`
	Text    string `json:"text"`
	Preview string `json:"preview"`
}

// Query is a cross-meeting search request.
type Query struct {
	Text    string
	Meeting string
	Limit   int
}

// Result is one cross-meeting hit.
type Result struct {
	Meeting string `json:"meeting"`
	Index   int    `json:"index"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	Preview string `json:"preview"`
}

// Response wraps a cross-meeting search.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}
