// Package models defines the request, result and run types shared by the HTTP server,
// the CLI and the match history store.
package models

import "fmt"

// MaxQueriesPerRequest caps one match batch.
const MaxQueriesPerRequest = 10000

// MatchRequest is a batch of query titles to resolve.
type MatchRequest struct {
	Queries []string `json:"queries"`
	// Record stores the batch in the match history when history is enabled.
	Record bool   `json:"record,omitempty"`
	Source string `json:"source,omitempty"`
}

// Validate checks the batch size and fills the default source.
func (r *MatchRequest) Validate() error {
	if len(r.Queries) == 0 {
		return fmt.Errorf("queries cannot be empty")
	}
	if len(r.Queries) > MaxQueriesPerRequest {
		return fmt.Errorf("too many queries: %d (max %d)", len(r.Queries), MaxQueriesPerRequest)
	}
	if r.Source == "" {
		r.Source = "api"
	}
	return nil
}
