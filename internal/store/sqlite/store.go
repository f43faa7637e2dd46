package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/betbot/coinjump/internal/domain"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// Store sqlite 后端：当前持仓（单行）+ 参考比率 + 历史
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open 打开（必要时创建）数据库文件并执行迁移
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite：单连接更稳定
	db.SetMaxIdleConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) CurrentCoin(ctx context.Context) (domain.Asset, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT symbol FROM current_coin WHERE id=1`)
	var symbol string
	if err := row.Scan(&symbol); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Asset{}, false, nil
		}
		return domain.Asset{}, false, fmt.Errorf("get current coin: %w", err)
	}
	return domain.NewAsset(symbol), true, nil
}

// SetCurrentCoin 单条 UPSERT，天然原子
func (s *Store) SetCurrentCoin(ctx context.Context, asset domain.Asset) error {
	if asset.IsZero() {
		return errors.New("set current coin: empty symbol")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO current_coin (id, symbol, updated_at)
VALUES (1, ?, ?)
ON CONFLICT(id) DO UPDATE SET symbol=excluded.symbol, updated_at=excluded.updated_at
`, asset.Symbol, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("set current coin: %w", err)
	}
	return nil
}

func (s *Store) Ratio(ctx context.Context, from, to domain.Asset) (decimal.Decimal, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT ratio FROM pairs WHERE from_symbol=? AND to_symbol=?`, from.Symbol, to.Symbol)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, fmt.Errorf("get ratio %s/%s: %w", from, to, err)
	}
	r, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("parse ratio %s/%s: %w", from, to, err)
	}
	return r, true, nil
}

func (s *Store) SetRatio(ctx context.Context, from, to domain.Asset, ratio decimal.Decimal) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO pairs (from_symbol, to_symbol, ratio, updated_at)
VALUES (?,?,?,?)
ON CONFLICT(from_symbol,to_symbol) DO UPDATE SET ratio=excluded.ratio, updated_at=excluded.updated_at
`, from.Symbol, to.Symbol, ratio.String(), s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("set ratio %s/%s: %w", from, to, err)
	}
	return nil
}
