// Package storage defines the persistence interface for recorded match runs.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/titlenorm/internal/models"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// History stores match runs and their per-query results.
type History interface {
	// SaveRun assigns an ID and creation time when they are unset, then stores the run
	// and its results atomically.
	SaveRun(ctx context.Context, run *models.MatchRun) error
	GetRun(ctx context.Context, id string) (*models.MatchRun, error)
	// ListRuns returns runs newest first, without results.
	ListRuns(ctx context.Context, offset, limit int) ([]*models.MatchRun, error)
	CountRuns(ctx context.Context) (int64, error)
	DeleteRun(ctx context.Context, id string) error

	Close() error
}
