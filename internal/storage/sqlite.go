package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/titlenorm/internal/models"
)

// SQLiteHistory implements History using SQLite.
type SQLiteHistory struct {
	db *sql.DB
}

// NewSQLiteHistory opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteHistory(dbPath string) (*SQLiteHistory, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteHistory{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS match_runs (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		query_count INTEGER NOT NULL,
		zero_score_count INTEGER NOT NULL,
		fingerprint TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_match_runs_created_at ON match_runs(created_at);

	CREATE TABLE IF NOT EXISTS match_results (
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		query TEXT NOT NULL,
		title TEXT NOT NULL,
		classification TEXT NOT NULL,
		code TEXT,
		row_index INTEGER NOT NULL,
		score REAL NOT NULL,
		PRIMARY KEY (run_id, position),
		FOREIGN KEY (run_id) REFERENCES match_runs(id) ON DELETE CASCADE
	);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveRun inserts the run and its results in one transaction.
func (s *SQLiteHistory) SaveRun(ctx context.Context, run *models.MatchRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	run.QueryCount = len(run.Results)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO match_runs (id, source, query_count, zero_score_count, fingerprint, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.QueryCount, run.ZeroScoreCount, run.Fingerprint, run.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO match_results (run_id, position, query, title, classification, code, row_index, score)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range run.Results {
		if _, err := stmt.ExecContext(ctx, run.ID, i, r.Query, r.Title, r.Classification, r.Code, r.Row, r.Score); err != nil {
			return fmt.Errorf("insert result %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// GetRun returns a run with its results in query order.
func (s *SQLiteHistory) GetRun(ctx context.Context, id string) (*models.MatchRun, error) {
	var run models.MatchRun
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source, query_count, zero_score_count, fingerprint, created_at
		 FROM match_runs WHERE id = ?`, id,
	).Scan(&run.ID, &run.Source, &run.QueryCount, &run.ZeroScoreCount, &run.Fingerprint, &run.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT query, title, classification, code, row_index, score
		 FROM match_results WHERE run_id = ? ORDER BY position`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	run.Results = make([]models.MatchResult, 0, run.QueryCount)
	for rows.Next() {
		var r models.MatchResult
		var code sql.NullString
		if err := rows.Scan(&r.Query, &r.Title, &r.Classification, &code, &r.Row, &r.Score); err != nil {
			return nil, err
		}
		r.Code = code.String
		run.Results = append(run.Results, r)
	}
	return &run, rows.Err()
}

// ListRuns returns runs newest first with offset and limit.
func (s *SQLiteHistory) ListRuns(ctx context.Context, offset, limit int) ([]*models.MatchRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, query_count, zero_score_count, fingerprint, created_at
		 FROM match_runs ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.MatchRun
	for rows.Next() {
		var run models.MatchRun
		if err := rows.Scan(&run.ID, &run.Source, &run.QueryCount, &run.ZeroScoreCount, &run.Fingerprint, &run.CreatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// CountRuns returns the total number of recorded runs.
func (s *SQLiteHistory) CountRuns(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM match_runs`).Scan(&count)
	return count, err
}

// DeleteRun removes a run and its results.
func (s *SQLiteHistory) DeleteRun(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM match_runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteHistory) Close() error {
	return s.db.Close()
}
