package badgerkv

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/betbot/coinjump/internal/domain"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/shopspring/decimal"
)

const (
	currentCoinKey = "state/current_coin"
	ratioPrefix    = "ratio/"
)

// Store badger KV 后端：当前持仓 + 参考比率。
// 加密由 Badger 选项提供（value log + key registry），不是本包实现。
type Store struct {
	db *badger.DB
}

type OpenOptions struct {
	Path          string
	InMemory      bool   // 测试用：不落盘
	EncryptionKey []byte // 32 bytes；nil 表示不加密
}

func Open(opts OpenOptions) (*Store, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if strings.TrimSpace(opts.Path) == "" {
			return nil, errors.New("badgerkv: path is required")
		}
		bopts = badger.DefaultOptions(opts.Path)
	}
	bopts = bopts.WithLogger(nil)
	if len(opts.EncryptionKey) > 0 {
		// 加密模式下 Badger 要求开启 index cache
		bopts = bopts.
			WithEncryptionKey(opts.EncryptionKey).
			WithIndexCacheSize(100 << 20)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("badgerkv: open: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func ratioKey(from, to domain.Asset) []byte {
	return []byte(ratioPrefix + from.Symbol + "/" + to.Symbol)
}

func (s *Store) get(key []byte) (string, bool, error) {
	var (
		out   string
		found bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			out = string(val)
			return nil
		})
	})
	if err != nil {
		return "", false, err
	}
	return out, found, nil
}

func (s *Store) set(key []byte, val string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, []byte(val))
	})
}

func (s *Store) CurrentCoin(_ context.Context) (domain.Asset, bool, error) {
	v, ok, err := s.get([]byte(currentCoinKey))
	if err != nil {
		return domain.Asset{}, false, fmt.Errorf("badgerkv: current coin: %w", err)
	}
	if !ok || v == "" {
		return domain.Asset{}, false, nil
	}
	return domain.NewAsset(v), true, nil
}

// SetCurrentCoin 单 key 写事务，原子
func (s *Store) SetCurrentCoin(_ context.Context, asset domain.Asset) error {
	if asset.IsZero() {
		return errors.New("badgerkv: empty symbol")
	}
	if err := s.set([]byte(currentCoinKey), asset.Symbol); err != nil {
		return fmt.Errorf("badgerkv: set current coin: %w", err)
	}
	return nil
}

func (s *Store) Ratio(_ context.Context, from, to domain.Asset) (decimal.Decimal, bool, error) {
	v, ok, err := s.get(ratioKey(from, to))
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("badgerkv: ratio %s/%s: %w", from, to, err)
	}
	if !ok {
		return decimal.Zero, false, nil
	}
	r, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("badgerkv: parse ratio %s/%s: %w", from, to, err)
	}
	return r, true, nil
}

func (s *Store) SetRatio(_ context.Context, from, to domain.Asset, ratio decimal.Decimal) error {
	if err := s.set(ratioKey(from, to), ratio.String()); err != nil {
		return fmt.Errorf("badgerkv: set ratio %s/%s: %w", from, to, err)
	}
	return nil
}

// ParseKey 解析 32 字节加密 key（hex 或 base64）。空输入返回 nil。
func ParseKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	// hex 优先，避免把 hex 串误判为 base64
	if b, err := hex.DecodeString(strings.TrimPrefix(raw, "0x")); err == nil {
		if len(b) != 32 {
			return nil, fmt.Errorf("decoded key length must be 32, got %d", len(b))
		}
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(raw); err == nil {
		if len(b) != 32 {
			return nil, fmt.Errorf("decoded key length must be 32, got %d", len(b))
		}
		return b, nil
	}
	return nil, errors.New("key must be base64(32 bytes) or hex(32 bytes)")
}
