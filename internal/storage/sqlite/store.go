// Package sqlite keeps the local history of backtest runs.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/dyike/QuantDesk/consts"
	"github.com/dyike/QuantDesk/models"
)

// fixed width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func Open(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=3000;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %s: %w", p, err)
		}
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    symbol TEXT NOT NULL,
    status TEXT NOT NULL,
    config_json TEXT NOT NULL DEFAULT '{}',
    results_json TEXT NOT NULL DEFAULT '{}',
    candles INTEGER NOT NULL DEFAULT 0,
    signals INTEGER NOT NULL DEFAULT 0,
    error TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    entry_time TEXT,
    exit_time TEXT,
    side TEXT,
    entry_price REAL,
    exit_price REAL,
    size REAL,
    pnl REAL,
    PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_runs_symbol ON runs(symbol);
`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// CreateRun inserts or replaces the header of a run. Empty ID and status
// are filled in; the stored record is returned.
func (s *Store) CreateRun(ctx context.Context, run models.RunRecord) (models.RunRecord, error) {
	if run.ID == "" {
		run.ID = NewRunID()
	}
	if run.Status == "" {
		run.Status = consts.Run_Streaming
	}
	if run.Symbol == "" {
		run.Symbol = run.Config.Symbol
	}
	now := s.now()
	run.CreatedAt, run.UpdatedAt = now, now

	cfg, err := json.Marshal(run.Config)
	if err != nil {
		return run, fmt.Errorf("encode config: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO runs (id, symbol, status, config_json, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    symbol=excluded.symbol,
    status=excluded.status,
    config_json=excluded.config_json,
    updated_at=excluded.updated_at
`, run.ID, run.Symbol, run.Status, string(cfg), now.Format(timeLayout), now.Format(timeLayout))
	if err != nil {
		return run, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// FinishRun stores results and trades and marks the run done.
func (s *Store) FinishRun(ctx context.Context, id string, results models.BacktestResults, candles, signals int) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("run id is required")
	}
	res, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	out, err := tx.ExecContext(ctx, `
UPDATE runs
SET status = ?, results_json = ?, candles = ?, signals = ?, updated_at = ?
WHERE id = ?
`, consts.Run_Done, string(res), candles, signals, s.now().Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if rows, _ := out.RowsAffected(); rows == 0 {
		return fmt.Errorf("finish run: run %s not found", id)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM trades WHERE run_id = ?`, id); err != nil {
		return fmt.Errorf("clear trades: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO trades (run_id, seq, entry_time, exit_time, side, entry_price, exit_price, size, pnl)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return fmt.Errorf("prepare trade insert: %w", err)
	}
	defer stmt.Close()
	for i, t := range results.Trades {
		if _, err := stmt.ExecContext(ctx, id, i+1, string(t.EntryTime), string(t.ExitTime), t.Side, t.EntryPrice, t.ExitPrice, t.Size, t.PnL); err != nil {
			return fmt.Errorf("insert trade %d: %w", i+1, err)
		}
	}
	return tx.Commit()
}

// FailRun marks the run as errored with msg.
func (s *Store) FailRun(ctx context.Context, id, msg string) error {
	if strings.TrimSpace(id) == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
UPDATE runs
SET status = ?, error = ?, updated_at = ?
WHERE id = ?
`, consts.Run_Error, msg, s.now().Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("fail run: %w", err)
	}
	return nil
}

// UpdateRunStatus sets status without touching results.
func (s *Store) UpdateRunStatus(ctx context.Context, id, status string) error {
	if strings.TrimSpace(id) == "" || strings.TrimSpace(status) == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
UPDATE runs
SET status = ?, updated_at = ?
WHERE id = ?
`, status, s.now().Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	return nil
}

// ListRuns returns the newest runs first, optionally for one symbol.
// Trades are not loaded.
func (s *Store) ListRuns(ctx context.Context, params models.HistoryParams) ([]models.RunRecord, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	symbol := strings.ToUpper(strings.TrimSpace(params.Symbol))

	rows, err := s.db.QueryContext(ctx, `
SELECT id, symbol, status, config_json, results_json, candles, signals, error, created_at, updated_at
FROM runs
WHERE (? = '' OR UPPER(symbol) = ?)
ORDER BY created_at DESC, rowid DESC
LIMIT ?
`, symbol, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []models.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs rows: %w", err)
	}
	return runs, nil
}

// GetRun loads one run with its trades. It returns nil, nil when absent.
func (s *Store) GetRun(ctx context.Context, id string) (*models.RunRecord, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("run id is required")
	}
	row := s.db.QueryRowContext(ctx, `
SELECT id, symbol, status, config_json, results_json, candles, signals, error, created_at, updated_at
FROM runs
WHERE id = ?
LIMIT 1
`, id)
	rec, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	trades, err := s.listTrades(ctx, id)
	if err != nil {
		return nil, err
	}
	rec.Results.Trades = trades
	return &rec, nil
}

// DeleteRun removes a run and its trades.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}

func (s *Store) listTrades(ctx context.Context, runID string) ([]models.CompletedTrade, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT entry_time, exit_time, side, entry_price, exit_price, size, pnl
FROM trades
WHERE run_id = ?
ORDER BY seq ASC
`, runID)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()

	var trades []models.CompletedTrade
	for rows.Next() {
		var t models.CompletedTrade
		var entry, exit string
		if err := rows.Scan(&entry, &exit, &t.Side, &t.EntryPrice, &t.ExitPrice, &t.Size, &t.PnL); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.EntryTime, t.ExitTime = models.Timestamp(entry), models.Timestamp(exit)
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list trades rows: %w", err)
	}
	return trades, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (models.RunRecord, error) {
	var rec models.RunRecord
	var cfg, res, created, updated string
	if err := row.Scan(&rec.ID, &rec.Symbol, &rec.Status, &cfg, &res, &rec.Candles, &rec.Signals, &rec.Error, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scan run: %w", err)
	}
	if err := json.Unmarshal([]byte(cfg), &rec.Config); err != nil {
		return rec, fmt.Errorf("decode run config: %w", err)
	}
	if err := json.Unmarshal([]byte(res), &rec.Results); err != nil {
		return rec, fmt.Errorf("decode run results: %w", err)
	}
	rec.Results.Trades = nil
	rec.CreatedAt, _ = time.Parse(timeLayout, created)
	rec.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return rec, nil
}
