// Package history keeps a SQLite log of completed backtest runs and their
// trade ledgers.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/newthinker/trendweek/internal/backtest"
	"github.com/newthinker/trendweek/internal/core"
	"github.com/newthinker/trendweek/internal/regime"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	created_at    INTEGER NOT NULL,
	ticker        TEXT NOT NULL,
	benchmark     TEXT NOT NULL,
	period        TEXT NOT NULL,
	initial       REAL NOT NULL,
	final         REAL NOT NULL,
	total_pl      REAL NOT NULL,
	trade_count   INTEGER NOT NULL,
	win_rate      REAL NOT NULL,
	max_drawdown  REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS trades (
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq         INTEGER NOT NULL,
	date        TEXT NOT NULL,
	action      TEXT NOT NULL,
	reason      TEXT NOT NULL,
	raw_price   REAL NOT NULL,
	adj_price   REAL NOT NULL,
	commission  REAL NOT NULL,
	balance     REAL NOT NULL,
	regime      TEXT NOT NULL,
	gross_pl    REAL NOT NULL,
	pl_percent  REAL NOT NULL,
	PRIMARY KEY (run_id, seq)
);
CREATE INDEX IF NOT EXISTS runs_created_at ON runs(created_at);
`

// Run summarizes one stored backtest
type Run struct {
	ID             string
	CreatedAt      time.Time
	Ticker         string
	Benchmark      string
	Period         string
	InitialBalance float64
	FinalBalance   float64
	TotalPLPercent float64
	TradeCount     int
	WinRate        float64
	MaxDrawdown    float64
}

// Store persists runs in a SQLite database
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("applying schema: %w", err))
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores res and its ledger under a new run ID, which it returns.
func (s *Store) Save(ctx context.Context, res *backtest.Result) (string, error) {
	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", core.WrapError(core.ErrStorageFailed, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, ticker, benchmark, period, initial, final, total_pl, trade_count, win_rate, max_drawdown)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, s.now().UnixMilli(), res.Ticker, res.Benchmark, res.Period,
		res.InitialBalance, res.FinalBalance, res.TotalPLPercent, res.TradeCount,
		res.Stats.WinRate, res.Stats.MaxDrawdown,
	)
	if err != nil {
		return "", core.WrapError(core.ErrStorageFailed, fmt.Errorf("inserting run: %w", err))
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO trades (run_id, seq, date, action, reason, raw_price, adj_price, commission, balance, regime, gross_pl, pl_percent)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", core.WrapError(core.ErrStorageFailed, err)
	}
	defer stmt.Close()

	for i, t := range res.Trades {
		_, err := stmt.ExecContext(ctx, id, i, t.Date.Format(time.DateOnly), string(t.Action), string(t.Reason),
			t.RawPrice, t.AdjustedPrice, t.Commission, t.Balance, string(t.Regime), t.GrossPL, t.PLPercent)
		if err != nil {
			return "", core.WrapError(core.ErrStorageFailed, fmt.Errorf("inserting trade %d: %w", i, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return "", core.WrapError(core.ErrStorageFailed, err)
	}
	return id, nil
}

// List returns the most recent runs, newest first, up to limit.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, ticker, benchmark, period, initial, final, total_pl, trade_count, win_rate, max_drawdown
		 FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var created int64
		if err := rows.Scan(&r.ID, &created, &r.Ticker, &r.Benchmark, &r.Period, &r.InitialBalance,
			&r.FinalBalance, &r.TotalPLPercent, &r.TradeCount, &r.WinRate, &r.MaxDrawdown); err != nil {
			return nil, core.WrapError(core.ErrStorageFailed, err)
		}
		r.CreatedAt = time.UnixMilli(created)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Trades returns the ledger of run id in order.
func (s *Store) Trades(ctx context.Context, id string) ([]backtest.TradeRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, action, reason, raw_price, adj_price, commission, balance, regime, gross_pl, pl_percent
		 FROM trades WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	defer rows.Close()

	var trades []backtest.TradeRecord
	for rows.Next() {
		var t backtest.TradeRecord
		var date, action, reason, r string
		if err := rows.Scan(&date, &action, &reason, &t.RawPrice, &t.AdjustedPrice, &t.Commission,
			&t.Balance, &r, &t.GrossPL, &t.PLPercent); err != nil {
			return nil, core.WrapError(core.ErrStorageFailed, err)
		}
		t.Date, err = time.Parse(time.DateOnly, date)
		if err != nil {
			return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("trade date %q: %w", date, err))
		}
		t.Action = backtest.Action(action)
		t.Reason = backtest.Reason(reason)
		t.Regime = regime.Regime(r)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
