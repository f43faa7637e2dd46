package sqlite

import (
	"context"
	"fmt"
	"time"
)

func (s *Store) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`
CREATE TABLE IF NOT EXISTS current_coin (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  symbol TEXT NOT NULL,
  updated_at INTEGER NOT NULL
);`,
		`
CREATE TABLE IF NOT EXISTS pairs (
  from_symbol TEXT NOT NULL,
  to_symbol TEXT NOT NULL,
  ratio TEXT NOT NULL,
  updated_at INTEGER NOT NULL,
  PRIMARY KEY (from_symbol, to_symbol)
);`,
		`
CREATE TABLE IF NOT EXISTS trade_history (
  id TEXT PRIMARY KEY,
  from_symbol TEXT NOT NULL,
  to_symbol TEXT NOT NULL,
  from_qty TEXT NOT NULL,
  to_qty TEXT NOT NULL,
  price TEXT NOT NULL,
  ts INTEGER NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_trade_history_ts ON trade_history(ts DESC);`,
		`
CREATE TABLE IF NOT EXISTS scout_history (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  from_symbol TEXT NOT NULL,
  to_symbol TEXT NOT NULL,
  current_ratio TEXT NOT NULL,
  reference_ratio TEXT NOT NULL,
  improvement TEXT NOT NULL,
  threshold TEXT NOT NULL,
  cleared INTEGER NOT NULL,
  ts INTEGER NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_scout_history_ts ON scout_history(ts);`,
		`
CREATE TABLE IF NOT EXISTS value_history (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  symbol TEXT NOT NULL,
  balance TEXT NOT NULL,
  bridge_value TEXT NOT NULL,
  ts INTEGER NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_value_history_ts ON value_history(ts);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
