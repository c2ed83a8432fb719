// Package storage persists closed trades to a local ledger via
// modernc.org/sqlite, the pure-Go sqlite driver ChoSanghyuk-blackholedex
// depends on. The engine's core state is fully re-derivable at startup
// (spec.md §6: "Persisted state: none in the core") — this ledger is an
// audit trail alongside that core, not a source of truth it reads back
// from on boot.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ClosedTrade is one row of the trade ledger.
type ClosedTrade struct {
	PositionID      string
	TokenID         string
	Side            string
	EntryPriceCents float64
	ExitPriceCents  float64
	SizeUsd         float64
	PnLCents        float64
	PnLUsd          float64
	ExitReason      string
	OpenedAt        time.Time
	ClosedAt        time.Time
	IsExternal      bool
}

// Ledger wraps a sqlite-backed trade ledger.
type Ledger struct {
	db *sql.DB
}

// Open opens (creating if absent) the sqlite database at path and ensures
// the ledger schema exists.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	l := &Ledger{db: db}
	if err := l.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) migrate(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS closed_trades (
	position_id       TEXT PRIMARY KEY,
	token_id          TEXT NOT NULL,
	side              TEXT NOT NULL,
	entry_price_cents REAL NOT NULL,
	exit_price_cents  REAL NOT NULL,
	size_usd          REAL NOT NULL,
	pnl_cents         REAL NOT NULL,
	pnl_usd           REAL NOT NULL,
	exit_reason       TEXT NOT NULL,
	opened_at         DATETIME NOT NULL,
	closed_at         DATETIME NOT NULL,
	is_external       INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_closed_trades_closed_at ON closed_trades(closed_at);
`)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// RecordClosedTrade inserts one closed trade, idempotent on position id.
func (l *Ledger) RecordClosedTrade(ctx context.Context, t ClosedTrade) error {
	_, err := l.db.ExecContext(ctx, `
INSERT INTO closed_trades (position_id, token_id, side, entry_price_cents, exit_price_cents, size_usd, pnl_cents, pnl_usd, exit_reason, opened_at, closed_at, is_external)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(position_id) DO NOTHING`,
		t.PositionID, t.TokenID, t.Side, t.EntryPriceCents, t.ExitPriceCents, t.SizeUsd,
		t.PnLCents, t.PnLUsd, t.ExitReason, t.OpenedAt, t.ClosedAt, t.IsExternal)
	if err != nil {
		return fmt.Errorf("record closed trade: %w", err)
	}
	return nil
}

// RecentTrades returns the most recently closed trades, newest first.
func (l *Ledger) RecentTrades(ctx context.Context, limit int) ([]ClosedTrade, error) {
	rows, err := l.db.QueryContext(ctx, `
SELECT position_id, token_id, side, entry_price_cents, exit_price_cents, size_usd, pnl_cents, pnl_usd, exit_reason, opened_at, closed_at, is_external
FROM closed_trades ORDER BY closed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent trades: %w", err)
	}
	defer rows.Close()

	var out []ClosedTrade
	for rows.Next() {
		var t ClosedTrade
		if err := rows.Scan(&t.PositionID, &t.TokenID, &t.Side, &t.EntryPriceCents, &t.ExitPriceCents,
			&t.SizeUsd, &t.PnLCents, &t.PnLUsd, &t.ExitReason, &t.OpenedAt, &t.ClosedAt, &t.IsExternal); err != nil {
			return nil, fmt.Errorf("scan closed trade: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}
