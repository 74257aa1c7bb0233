// Package db records training runs in SQLite.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"medrisk/ml"
	"medrisk/training"
)

const schema = `
CREATE TABLE IF NOT EXISTS training_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL UNIQUE,
    dataset_path TEXT NOT NULL,
    artifact_path TEXT NOT NULL,
    samples INTEGER NOT NULL,
    train_size INTEGER NOT NULL,
    resampled_size INTEGER NOT NULL,
    best_params TEXT NOT NULL,
    best_cv_mean REAL NOT NULL,
    cv_mean REAL NOT NULL,
    cv_std REAL NOT NULL,
    test_accuracy REAL NOT NULL,
    latency_ms REAL NOT NULL,
    duration_ms INTEGER NOT NULL,
    trained_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS grid_results (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES training_runs(run_id) ON DELETE CASCADE,
    config_id INTEGER NOT NULL,
    n_estimators INTEGER NOT NULL,
    max_depth INTEGER NOT NULL,
    min_samples_split INTEGER NOT NULL,
    mean_score REAL NOT NULL,
    std_score REAL NOT NULL,
    rank INTEGER NOT NULL,
    UNIQUE(run_id, config_id)
);
CREATE INDEX IF NOT EXISTS idx_training_runs_trained_at ON training_runs(trained_at);
`

// ErrNotInitialized is returned by methods called on a nil Store.
var ErrNotInitialized = errors.New("database not initialized")

// Store is the training run log. It serialises access through a single connection.
type Store struct {
	db *sql.DB
}

// Open creates the database file and its parent directory when missing.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	database, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database failed: %w", err)
	}
	database.SetMaxOpenConns(1)
	if _, err := database.Exec(schema); err != nil {
		database.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: database}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordRun stores the run summary and every grid configuration in one transaction.
func (s *Store) RecordRun(ctx context.Context, report *training.Report) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}
	if report == nil || report.Search == nil {
		return errors.New("report has no search result")
	}
	best, err := json.Marshal(report.Best)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
        INSERT INTO training_runs (
            run_id, dataset_path, artifact_path, samples, train_size, resampled_size,
            best_params, best_cv_mean, cv_mean, cv_std, test_accuracy, latency_ms,
            duration_ms, trained_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.RunID, report.DatasetPath, report.ArtifactPath, report.Samples, report.TrainSize,
		report.ResampledSize, string(best), report.Search.Best.Mean, report.CVMean, report.CVStd,
		report.TestAccuracy, report.LatencyMS, report.Duration.Milliseconds(), report.TrainedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO grid_results (
            run_id, config_id, n_estimators, max_depth, min_samples_split, mean_score, std_score, rank
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, it := range report.Search.Iterations {
		if _, err := stmt.ExecContext(ctx, report.RunID, it.ID, it.Params.NEstimators, it.Params.MaxDepth,
			it.Params.MinSamplesSplit, it.Mean, it.Std, it.Rank); err != nil {
			return fmt.Errorf("insert grid result %d: %w", it.ID, err)
		}
	}
	return tx.Commit()
}

// TrainingRun is one row of training_runs.
type TrainingRun struct {
	RunID         string          `json:"run_id"`
	DatasetPath   string          `json:"dataset_path"`
	ArtifactPath  string          `json:"artifact_path"`
	Samples       int             `json:"samples"`
	TrainSize     int             `json:"train_size"`
	ResampledSize int             `json:"resampled_size"`
	BestParams    ml.ForestParams `json:"best_params"`
	BestCVMean    float64         `json:"best_cv_mean"`
	CVMean        float64         `json:"cv_mean"`
	CVStd         float64         `json:"cv_std"`
	TestAccuracy  float64         `json:"test_accuracy"`
	LatencyMS     float64         `json:"latency_ms"`
	Duration      time.Duration   `json:"duration"`
	TrainedAt     time.Time       `json:"trained_at"`
}

// GridResult is one scored grid configuration of a run.
type GridResult struct {
	ConfigID int             `json:"config_id"`
	Params   ml.ForestParams `json:"params"`
	Mean     float64         `json:"mean"`
	Std      float64         `json:"std"`
	Rank     int             `json:"rank"`
}

// ListRuns returns the most recent runs first. limit <= 0 returns all of them.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]TrainingRun, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotInitialized
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT run_id, dataset_path, artifact_path, samples, train_size, resampled_size,
               best_params, best_cv_mean, cv_mean, cv_std, test_accuracy, latency_ms,
               duration_ms, trained_at
        FROM training_runs
        ORDER BY trained_at DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]TrainingRun, 0)
	for rows.Next() {
		var run TrainingRun
		var best string
		var durationMS int64
		if err := rows.Scan(&run.RunID, &run.DatasetPath, &run.ArtifactPath, &run.Samples, &run.TrainSize,
			&run.ResampledSize, &best, &run.BestCVMean, &run.CVMean, &run.CVStd, &run.TestAccuracy,
			&run.LatencyMS, &durationMS, &run.TrainedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(best), &run.BestParams); err != nil {
			return nil, fmt.Errorf("decode best params of %s: %w", run.RunID, err)
		}
		run.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GridResults returns a run's configurations in enumeration order.
func (s *Store) GridResults(ctx context.Context, runID string) ([]GridResult, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotInitialized
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT config_id, n_estimators, max_depth, min_samples_split, mean_score, std_score, rank
        FROM grid_results
        WHERE run_id = ?
        ORDER BY config_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]GridResult, 0)
	for rows.Next() {
		var r GridResult
		if err := rows.Scan(&r.ConfigID, &r.Params.NEstimators, &r.Params.MaxDepth, &r.Params.MinSamplesSplit,
			&r.Mean, &r.Std, &r.Rank); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
