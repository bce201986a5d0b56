// Package storage provides SQLite-backed persistence for scoring runs and per-wallet results.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/rewired-gh/walletrisk/internal/models"
)

// ErrNotFound is returned when a requested run or score does not exist.
var ErrNotFound = errors.New("not found")

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db      *sql.DB
	maxRuns int
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/walletrisk/data.db.
func New(maxRuns int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "walletrisk", "data.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	s := &Storage{db: db, maxRuns: maxRuns}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id            TEXT PRIMARY KEY,
			as_of         INTEGER NOT NULL,
			method        TEXT NOT NULL,
			weights       TEXT NOT NULL,
			wallet_count  INTEGER NOT NULL,
			failed_count  INTEGER NOT NULL,
			created_at    INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS wallet_scores (
			run_id                TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			position              INTEGER NOT NULL,
			address               TEXT NOT NULL,
			status                TEXT NOT NULL,
			score                 INTEGER NOT NULL,
			raw                   REAL NOT NULL,
			age_days              REAL NOT NULL,
			tx_count              INTEGER NOT NULL,
			avg_tx_value          REAL NOT NULL,
			unique_counterparties INTEGER NOT NULL,
			norm_age              REAL NOT NULL,
			norm_tx_count         REAL NOT NULL,
			norm_avg_value        REAL NOT NULL,
			norm_counterparties   REAL NOT NULL,
			contrib_age           REAL NOT NULL,
			contrib_tx_count      REAL NOT NULL,
			contrib_avg_value     REAL NOT NULL,
			contrib_counterparties REAL NOT NULL,
			error                 TEXT,
			PRIMARY KEY (run_id, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_wallet_scores_address ON wallet_scores(address)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveRun stores a run and all of its results in one transaction, assigning
// run.ID and run.CreatedAt when unset, then enforces the run cap.
func (s *Storage) SaveRun(run *models.Run, results []models.WalletResult) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(`
		INSERT INTO runs (id, as_of, method, weights, wallet_count, failed_count, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		run.ID, run.AsOf.Unix(), run.Method, run.WeightsJSON, run.WalletCount, run.FailedCount,
		run.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO wallet_scores (` + scoreCols + `)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare score insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range results {
		n, c := r.Score.Breakdown.Normalized, r.Score.Breakdown.Contributions
		_, err := stmt.Exec(
			run.ID, i, strings.ToLower(r.Address), string(r.Status), r.Score.Value, r.Score.Raw,
			r.Features.AgeDays, r.Features.TxCount, r.Features.AvgTxValue, r.Features.UniqueCounterparties,
			n.AgeDays, n.TxCount, n.AvgTxValue, n.UniqueCounterparties,
			c.AgeDays, c.TxCount, c.AvgTxValue, c.UniqueCounterparties,
			nullString(r.Error),
		)
		if err != nil {
			return fmt.Errorf("failed to insert score for %s: %w", r.Address, err)
		}
	}

	if err := rotateRuns(tx, s.maxRuns); err != nil {
		return err
	}

	return tx.Commit()
}

// GetRun returns a single run by id.
func (s *Storage) GetRun(id string) (*models.Run, error) {
	row := s.db.QueryRow(`SELECT `+runCols+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return r, nil
}

// ListRuns returns the newest runs first.
func (s *Storage) ListRuns(limit int) ([]models.Run, error) {
	rows, err := s.db.Query(`SELECT `+runCols+` FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []models.Run{}
	for rows.Next() {
		r, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// ListResults returns a run's results in their original batch order.
func (s *Storage) ListResults(runID string) ([]models.WalletResult, error) {
	rows, err := s.db.Query(`SELECT `+scoreCols+` FROM wallet_scores WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scores: %w", err)
	}
	defer rows.Close()

	var results []models.WalletResult
	for rows.Next() {
		r, err := scanResult(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		results = append(results, *r)
	}
	return results, rows.Err()
}

// LatestResult returns the most recent scored result for address across runs.
// Scores from different runs are relative to different batches.
func (s *Storage) LatestResult(address string) (*models.WalletResult, error) {
	row := s.db.QueryRow(`
		SELECT `+prefixed("ws.", scoreCols)+`
		FROM wallet_scores ws JOIN runs r ON r.id = ws.run_id
		WHERE ws.address = ? AND ws.status = ?
		ORDER BY r.created_at DESC LIMIT 1`,
		strings.ToLower(address), string(models.StatusScored))
	res, err := scanResult(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("score for %s: %w", address, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest score: %w", err)
	}
	return res, nil
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// rotateRuns keeps at most maxRuns newest runs by created_at.
// Cascading deletes remove their wallet scores.
func rotateRuns(db execer, maxRuns int) error {
	if maxRuns < 1 {
		return nil
	}
	_, err := db.Exec(`
		DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY created_at DESC LIMIT ?
		)`, maxRuns)
	if err != nil {
		return fmt.Errorf("failed to rotate runs: %w", err)
	}
	return nil
}

const runCols = `id, as_of, method, weights, wallet_count, failed_count, created_at`

const scoreCols = `run_id, position, address, status, score, raw,
	age_days, tx_count, avg_tx_value, unique_counterparties,
	norm_age, norm_tx_count, norm_avg_value, norm_counterparties,
	contrib_age, contrib_tx_count, contrib_avg_value, contrib_counterparties,
	error`

func prefixed(prefix, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func scanRun(scan func(...any) error) (*models.Run, error) {
	var r models.Run
	var asOf, createdAtNano int64
	err := scan(&r.ID, &asOf, &r.Method, &r.WeightsJSON, &r.WalletCount, &r.FailedCount, &createdAtNano)
	if err != nil {
		return nil, err
	}
	r.AsOf = time.Unix(asOf, 0)
	r.CreatedAt = time.Unix(0, createdAtNano)
	return &r, nil
}

func scanResult(scan func(...any) error) (*models.WalletResult, error) {
	var r models.WalletResult
	var runID, status string
	var position int
	var errText sql.NullString
	n := &r.Score.Breakdown.Normalized
	c := &r.Score.Breakdown.Contributions
	err := scan(
		&runID, &position, &r.Address, &status, &r.Score.Value, &r.Score.Raw,
		&r.Features.AgeDays, &r.Features.TxCount, &r.Features.AvgTxValue, &r.Features.UniqueCounterparties,
		&n.AgeDays, &n.TxCount, &n.AvgTxValue, &n.UniqueCounterparties,
		&c.AgeDays, &c.TxCount, &c.AvgTxValue, &c.UniqueCounterparties,
		&errText,
	)
	if err != nil {
		return nil, err
	}
	r.Status = models.Status(status)
	r.Error = errText.String
	return &r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
