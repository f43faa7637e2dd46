package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/betbot/coinjump/internal/domain"
	"github.com/shopspring/decimal"
)

func (s *Store) RecordTrade(ctx context.Context, fill domain.Fill) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO trade_history (id, from_symbol, to_symbol, from_qty, to_qty, price, ts)
VALUES (?,?,?,?,?,?,?)
`, fill.ID, fill.From.Symbol, fill.To.Symbol, fill.FromQty.String(), fill.ToQty.String(), fill.Price.String(), fill.Time.UnixMilli())
	if err != nil {
		return fmt.Errorf("record trade: %w", err)
	}
	return nil
}

func (s *Store) RecordScout(ctx context.Context, decisions []domain.Decision) error {
	if len(decisions) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record scout: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO scout_history (from_symbol, to_symbol, current_ratio, reference_ratio, improvement, threshold, cleared, ts)
VALUES (?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("record scout: %w", err)
	}
	defer stmt.Close()

	for _, d := range decisions {
		cleared := 0
		if d.Cleared {
			cleared = 1
		}
		if _, err := stmt.ExecContext(ctx, d.From.Symbol, d.To.Symbol, d.Current.String(), d.Reference.String(),
			d.Improvement.String(), d.Threshold.String(), cleared, d.Time.UnixMilli()); err != nil {
			return fmt.Errorf("record scout: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) RecordValue(ctx context.Context, p domain.ValuePoint) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO value_history (symbol, balance, bridge_value, ts) VALUES (?,?,?,?)
`, p.Asset.Symbol, p.Balance.String(), p.BridgeValue.String(), p.Time.UnixMilli())
	if err != nil {
		return fmt.Errorf("record value: %w", err)
	}
	return nil
}

// RecentTrades 最近的成交（时间倒序）
func (s *Store) RecentTrades(ctx context.Context, limit int) ([]domain.Fill, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, from_symbol, to_symbol, from_qty, to_qty, price, ts
FROM trade_history ORDER BY ts DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent trades: %w", err)
	}
	defer rows.Close()

	var out []domain.Fill
	for rows.Next() {
		var (
			f                     domain.Fill
			from, to              string
			fromQty, toQty, price string
			ts                    int64
		)
		if err := rows.Scan(&f.ID, &from, &to, &fromQty, &toQty, &price, &ts); err != nil {
			return nil, fmt.Errorf("recent trades: %w", err)
		}
		f.From = domain.NewAsset(from)
		f.To = domain.NewAsset(to)
		f.FromQty, _ = decimal.NewFromString(fromQty)
		f.ToQty, _ = decimal.NewFromString(toQty)
		f.Price, _ = decimal.NewFromString(price)
		f.Time = time.UnixMilli(ts)
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) PruneScoutHistory(ctx context.Context, olderThan time.Time) (int64, error) {
	return s.prune(ctx, "scout_history", olderThan)
}

func (s *Store) PruneValueHistory(ctx context.Context, olderThan time.Time) (int64, error) {
	return s.prune(ctx, "value_history", olderThan)
}

func (s *Store) prune(ctx context.Context, table string, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE ts < ?`, olderThan.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune %s: %w", table, err)
	}
	return res.RowsAffected()
}
