package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/webswarm/internal/model"
)

// DBFileName is the database file created inside the data directory.
const DBFileName = "webswarm.db"

// HistoryDB provides SQLite-based storage for run reports and discovered
// site maps.
type HistoryDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a HistoryDB in dbDir.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return hdb, nil
}

// Path returns the database file path.
func (hdb *HistoryDB) Path() string {
	return hdb.dbPath
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (hdb *HistoryDB) createTables() error {
	schema := `
	-- One row per load-test run
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		target TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		users INTEGER NOT NULL,
		seed TEXT NOT NULL,
		interrupted INTEGER NOT NULL DEFAULT 0,
		total_requests INTEGER NOT NULL,
		total_failures INTEGER NOT NULL,
		rps REAL NOT NULL,
		p95_ms INTEGER NOT NULL,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_target ON runs(target);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Per-label statistics of a run
	CREATE TABLE IF NOT EXISTS label_stats (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		label TEXT NOT NULL,
		requests INTEGER NOT NULL,
		failures INTEGER NOT NULL,
		rps REAL NOT NULL,
		avg_ms REAL NOT NULL,
		min_ms INTEGER NOT NULL,
		max_ms INTEGER NOT NULL,
		p50_ms INTEGER NOT NULL,
		p95_ms INTEGER NOT NULL,
		p99_ms INTEGER NOT NULL,
		bytes INTEGER NOT NULL,
		UNIQUE(run_id, label)
	);

	CREATE INDEX IF NOT EXISTS idx_label_stats_run ON label_stats(run_id);

	-- Paths discovered on a target across crawls
	CREATE TABLE IF NOT EXISTS discoveries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		target TEXT NOT NULL,
		path TEXT NOT NULL,
		kind TEXT NOT NULL,
		first_seen TEXT NOT NULL,
		last_seen TEXT NOT NULL,
		UNIQUE(target, path)
	);

	CREATE INDEX IF NOT EXISTS idx_discoveries_target ON discoveries(target);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRunReport stores a run and its per-label statistics and returns the
// run ID.
func (hdb *HistoryDB) SaveRunReport(ctx context.Context, report *model.RunReport) (int64, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
	INSERT INTO runs (target, started_at, finished_at, users, seed, interrupted,
		total_requests, total_failures, rps, p95_ms, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.Target,
		formatTimestamp(report.StartedAt),
		formatTimestamp(report.FinishedAt),
		report.UserCount,
		strconv.FormatUint(report.Seed, 10),
		report.Interrupted,
		report.Total.Requests,
		report.Total.Failures,
		report.Total.RPS,
		report.Total.P95Ms,
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}
	runID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO label_stats (run_id, label, requests, failures, rps, avg_ms,
		min_ms, max_ms, p50_ms, p95_ms, p99_ms, bytes)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare label insert: %w", err)
	}
	defer stmt.Close()

	for _, l := range report.Labels {
		if _, err := stmt.ExecContext(ctx, runID, l.Label, l.Requests, l.Failures, l.RPS, l.AvgMs,
			l.MinMs, l.MaxMs, l.P50Ms, l.P95Ms, l.P99Ms, l.Bytes); err != nil {
			return 0, fmt.Errorf("failed to save label %q: %w", l.Label, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return runID, nil
}

// GetLatestRunReport retrieves the most recent run for target.
// It returns nil without error when there is none.
func (hdb *HistoryDB) GetLatestRunReport(ctx context.Context, target string) (*model.RunReport, error) {
	query := `
	SELECT report_json FROM runs
	WHERE target = ?
	ORDER BY started_at DESC, id DESC
	LIMIT 1
	`
	return hdb.queryReport(ctx, query, target)
}

// GetRunReportByID retrieves a run by its database ID.
// It returns nil without error when there is none.
func (hdb *HistoryDB) GetRunReportByID(ctx context.Context, id int64) (*model.RunReport, error) {
	return hdb.queryReport(ctx, `SELECT report_json FROM runs WHERE id = ?`, id)
}

func (hdb *HistoryDB) queryReport(ctx context.Context, query string, args ...any) (*model.RunReport, error) {
	var reportJSON string
	err := hdb.db.QueryRowContext(ctx, query, args...).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run report: %w", err)
	}

	var report model.RunReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// ListTargets returns every target with at least one stored run.
func (hdb *HistoryDB) ListTargets(ctx context.Context) ([]string, error) {
	rows, err := hdb.db.QueryContext(ctx, `SELECT DISTINCT target FROM runs ORDER BY target`)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	defer rows.Close()

	var targets []string
	for rows.Next() {
		var target string
		if err := rows.Scan(&target); err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		targets = append(targets, target)
	}
	return targets, rows.Err()
}

// RunMetadata summarizes a stored run without loading the full report.
type RunMetadata struct {
	ID          int64
	Target      string
	StartedAt   time.Time
	FinishedAt  time.Time
	Users       int
	Seed        uint64
	Interrupted bool
	Requests    int
	Failures    int
	RPS         float64
	P95Ms       int64
}

// Duration returns the wall-clock run time.
func (m RunMetadata) Duration() time.Duration {
	return m.FinishedAt.Sub(m.StartedAt)
}

// FailureRate returns the failure percentage of the run.
func (m RunMetadata) FailureRate() float64 {
	if m.Requests == 0 {
		return 0
	}
	return float64(m.Failures) / float64(m.Requests) * 100
}

// GetRunHistory returns up to limit runs for target, newest first.
// A limit of zero or less returns every run.
func (hdb *HistoryDB) GetRunHistory(ctx context.Context, target string, limit int) ([]RunMetadata, error) {
	query := `
	SELECT id, target, started_at, finished_at, users, seed, interrupted,
		total_requests, total_failures, rps, p95_ms
	FROM runs
	WHERE target = ?
	ORDER BY started_at DESC, id DESC
	`
	args := []any{target}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := hdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var (
			meta              RunMetadata
			started, finished string
			seed              string
		)
		if err := rows.Scan(&meta.ID, &meta.Target, &started, &finished, &meta.Users, &seed,
			&meta.Interrupted, &meta.Requests, &meta.Failures, &meta.RPS, &meta.P95Ms); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		meta.StartedAt = parseTimestamp(started)
		meta.FinishedAt = parseTimestamp(finished)
		meta.Seed, _ = strconv.ParseUint(seed, 10, 64) //nolint:errcheck // written by SaveRunReport
		results = append(results, meta)
	}
	return results, rows.Err()
}

// GetLabelStats returns the per-label statistics of a run sorted by label.
func (hdb *HistoryDB) GetLabelStats(ctx context.Context, runID int64) ([]model.LabelSummary, error) {
	rows, err := hdb.db.QueryContext(ctx, `
	SELECT label, requests, failures, rps, avg_ms, min_ms, max_ms, p50_ms, p95_ms, p99_ms, bytes
	FROM label_stats
	WHERE run_id = ?
	ORDER BY label
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get label stats: %w", err)
	}
	defer rows.Close()

	var results []model.LabelSummary
	for rows.Next() {
		var l model.LabelSummary
		if err := rows.Scan(&l.Label, &l.Requests, &l.Failures, &l.RPS, &l.AvgMs,
			&l.MinMs, &l.MaxMs, &l.P50Ms, &l.P95Ms, &l.P99Ms, &l.Bytes); err != nil {
			return nil, fmt.Errorf("failed to scan label stats: %w", err)
		}
		results = append(results, l)
	}
	return results, rows.Err()
}

// DeleteRun removes a run and its label statistics.
func (hdb *HistoryDB) DeleteRun(ctx context.Context, runID int64) error {
	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM label_stats WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to delete label stats: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return tx.Commit()
}

// timestampLayout keeps sub-second precision and sorts lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// timestampFormats contains the timestamp formats parseTimestamp accepts.
var timestampFormats = []string{
	timestampLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05", // SQLite datetime()
	"2006-01-02T15:04:05",
}

// parseTimestamp parses s with each known format and returns the zero time
// if none matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
