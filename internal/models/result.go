package models

import "time"

// MatchResult is the resolved canonical title for one query.
type MatchResult struct {
	Query          string  `json:"query"`
	Title          string  `json:"title"`
	Classification string  `json:"classification"`
	Code           string  `json:"code,omitempty"`
	Row            int     `json:"row"`
	Score          float64 `json:"score"`
}

// Standardized renders the result as "<title> - <classification>".
func (r MatchResult) Standardized() string {
	return r.Title + " - " + r.Classification
}

// MatchResponse is the response for a match request.
type MatchResponse struct {
	RunID     string        `json:"run_id,omitempty"`
	Results   []MatchResult `json:"results"`
	QueryTime int64         `json:"query_time_ms"`
}

// StandardizeResponse carries one "<title> - <classification>" value per query.
type StandardizeResponse struct {
	Values []string `json:"values"`
}

// LookupResponse is the reverse lookup of a canonical title.
type LookupResponse struct {
	Title          string `json:"title"`
	Classification string `json:"classification"`
	Code           string `json:"code,omitempty"`
	Known          bool   `json:"known"`
	// DidYouMean lists close known titles when Known is false.
	DidYouMean []string `json:"did_you_mean,omitempty"`
}

// IndexStatus describes the loaded index.
type IndexStatus struct {
	Loaded      bool      `json:"loaded"`
	Documents   int       `json:"documents"`
	Terms       int       `json:"terms"`
	NonZeros    int       `json:"nonzeros"`
	Entries     int       `json:"catalog_entries"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	LoadedAt    time.Time `json:"loaded_at,omitempty"`
	IndexPath   string    `json:"index_path"`
	IndexBytes  int64     `json:"index_bytes"`
	CatalogPath string    `json:"catalog_path,omitempty"`
	CacheHits   int64     `json:"cache_hits"`
	CacheMisses int64     `json:"cache_misses"`
}
