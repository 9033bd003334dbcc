package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/policyscan/internal/model"
)

// DBFileName is the name of the history database file inside the data directory.
const DBFileName = "policyscan.db"

// Run status values stored in the status column.
const (
	StatusCompleted = "completed"
	StatusNoPolicy  = "no-policy"
	StatusFailed    = "failed"
)

// timeLayout stores timestamps as fixed-width UTC text so that
// lexical order in SQLite equals chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("run not found")

// HistoryDB stores scan reports so that runs against the same site can be
// listed and compared later.
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

// RunSummary is one row of the runs table without the full report.
type RunSummary struct {
	RunID         string    `json:"run_id"`
	BaseURL       string    `json:"base_url"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Status        string    `json:"status"`
	FailedStage   string    `json:"failed_stage,omitempty"`
	Error         string    `json:"error,omitempty"`
	LinkCount     int       `json:"link_count"`
	WordTotal     int       `json:"word_total"`
	DistinctWords int       `json:"distinct_words"`
	PolicyURL     string    `json:"policy_url,omitempty"`
}

// SiteSummary aggregates the runs recorded for one base URL.
type SiteSummary struct {
	BaseURL  string    `json:"base_url"`
	RunCount int       `json:"run_count"`
	LastRun  time.Time `json:"last_run"`
}

// Open opens or creates a HistoryDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
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

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

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
func (h *HistoryDB) Path() string {
	return h.dbPath
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

func (h *HistoryDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		base_url TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		status TEXT NOT NULL,
		failed_stage TEXT,
		error TEXT,
		link_count INTEGER NOT NULL DEFAULT 0,
		word_total INTEGER NOT NULL DEFAULT 0,
		distinct_words INTEGER NOT NULL DEFAULT 0,
		homepage_hash TEXT,
		policy_url TEXT,
		policy_hash TEXT,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_base_url ON runs(base_url);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	`

	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// RunStatus classifies a report for the status column.
func RunStatus(r *model.ScanReport) string {
	switch {
	case r.Failed():
		return StatusFailed
	case !r.PolicyFound():
		return StatusNoPolicy
	default:
		return StatusCompleted
	}
}

// SaveRun stores a scan report. A RunID is assigned when the report has none.
func (h *HistoryDB) SaveRun(ctx context.Context, r *model.ScanReport) error {
	if r.RunID == "" {
		r.RunID = uuid.NewString()
	}
	if r.Error != nil && r.ErrorMessage == "" {
		r.ErrorMessage = r.Error.Error()
	}

	reportJSON, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	var homepageHash, policyURL, policyHash string
	if r.Homepage != nil {
		homepageHash = r.Homepage.Hash
	}
	if r.Anchor != nil {
		policyURL = r.Anchor.URL
	}
	if r.PolicyPage != nil {
		policyHash = r.PolicyPage.Hash
	}

	query := `
	INSERT INTO runs (
		run_id, base_url, started_at, finished_at, status, failed_stage, error,
		link_count, word_total, distinct_words, homepage_hash, policy_url, policy_hash,
		report_json
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = h.db.ExecContext(ctx, query,
		r.RunID,
		r.BaseURL,
		formatTimestamp(r.StartedAt),
		formatTimestamp(r.FinishedAt),
		RunStatus(r),
		r.FailedStage,
		r.ErrorMessage,
		len(r.ExternalLinks),
		r.WordCount.Total(),
		len(r.WordCount),
		homepageHash,
		policyURL,
		policyHash,
		string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	return nil
}

// GetRun loads the full report of a run. It returns ErrNotFound when no
// run has the given ID.
func (h *HistoryDB) GetRun(ctx context.Context, runID string) (*model.ScanReport, error) {
	var reportJSON string
	err := h.db.QueryRowContext(ctx,
		`SELECT report_json FROM runs WHERE run_id = ?`, runID,
	).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return decodeReport(reportJSON)
}

// ListRuns returns run summaries newest first. An empty baseURL lists runs
// for every site. A non-positive limit returns all rows.
func (h *HistoryDB) ListRuns(ctx context.Context, baseURL string, limit int) ([]RunSummary, error) {
	query := `
	SELECT run_id, base_url, started_at, finished_at, status,
		COALESCE(failed_stage, ''), COALESCE(error, ''),
		link_count, word_total, distinct_words, COALESCE(policy_url, '')
	FROM runs
	WHERE (? = '' OR base_url = ?)
	ORDER BY started_at DESC, id DESC
	`
	args := []any{baseURL, baseURL}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var results []RunSummary
	for rows.Next() {
		var s RunSummary
		var started, finished sql.NullString
		if err := rows.Scan(
			&s.RunID, &s.BaseURL, &started, &finished, &s.Status,
			&s.FailedStage, &s.Error,
			&s.LinkCount, &s.WordTotal, &s.DistinctWords, &s.PolicyURL,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		s.StartedAt = parseTimestamp(started.String)
		s.FinishedAt = parseTimestamp(finished.String)
		results = append(results, s)
	}

	return results, rows.Err()
}

// LatestRuns returns the full reports of the n newest runs for baseURL,
// newest first.
func (h *HistoryDB) LatestRuns(ctx context.Context, baseURL string, n int) ([]*model.ScanReport, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT report_json FROM runs
	WHERE base_url = ?
	ORDER BY started_at DESC, id DESC
	LIMIT ?
	`, baseURL, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest runs: %w", err)
	}
	defer rows.Close()

	var reports []*model.ScanReport
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r, err := decodeReport(reportJSON)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}

	return reports, rows.Err()
}

// ListSites returns every base URL with at least one recorded run,
// most recently scanned first.
func (h *HistoryDB) ListSites(ctx context.Context) ([]SiteSummary, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT base_url, COUNT(*), MAX(started_at)
	FROM runs
	GROUP BY base_url
	ORDER BY MAX(started_at) DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()

	var sites []SiteSummary
	for rows.Next() {
		var s SiteSummary
		var last string
		if err := rows.Scan(&s.BaseURL, &s.RunCount, &last); err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		s.LastRun = parseTimestamp(last)
		sites = append(sites, s)
	}

	return sites, rows.Err()
}

// DeleteBefore removes runs that started before t and returns how many
// rows were deleted.
func (h *HistoryDB) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := h.db.ExecContext(ctx,
		`DELETE FROM runs WHERE started_at < ?`, formatTimestamp(t))
	if err != nil {
		return 0, fmt.Errorf("failed to delete runs: %w", err)
	}
	return res.RowsAffected()
}

func decodeReport(reportJSON string) (*model.ScanReport, error) {
	var r model.ScanReport
	if err := json.Unmarshal([]byte(reportJSON), &r); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &r, nil
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

// timestampFormats lists the layouts parseTimestamp accepts, in order.
var timestampFormats = []string{
	timeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

// parseTimestamp returns the zero time when s matches no known layout.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
