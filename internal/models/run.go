package models

import "time"

// MatchRun is one recorded match batch.
type MatchRun struct {
	ID             string        `json:"id"`
	Source         string        `json:"source"`
	QueryCount     int           `json:"query_count"`
	ZeroScoreCount int           `json:"zero_score_count"`
	Fingerprint    string        `json:"fingerprint"`
	CreatedAt      time.Time     `json:"created_at"`
	Results        []MatchResult `json:"results,omitempty"`
}

// RunList is a page of recorded runs, newest first, without their results.
type RunList struct {
	Runs  []*MatchRun `json:"runs"`
	Total int64       `json:"total"`
}
