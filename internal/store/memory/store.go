package memory

import (
	"context"
	"sync"

	"github.com/betbot/coinjump/internal/domain"
	"github.com/shopspring/decimal"
)

// Store 进程内后端：不落盘，用于测试与不需要持久化的纸交易
type Store struct {
	mu      sync.RWMutex
	current string
	ratios  map[string]decimal.Decimal
	writes  int
}

func New() *Store {
	return &Store{ratios: make(map[string]decimal.Decimal)}
}

func pairKey(from, to domain.Asset) string {
	return from.Symbol + "/" + to.Symbol
}

func (s *Store) CurrentCoin(_ context.Context) (domain.Asset, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == "" {
		return domain.Asset{}, false, nil
	}
	return domain.NewAsset(s.current), true, nil
}

func (s *Store) SetCurrentCoin(_ context.Context, asset domain.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = asset.Symbol
	s.writes++
	return nil
}

// Writes 返回 SetCurrentCoin 调用次数（测试用）
func (s *Store) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

func (s *Store) Ratio(_ context.Context, from, to domain.Asset) (decimal.Decimal, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.ratios[pairKey(from, to)]
	return r, ok, nil
}

func (s *Store) SetRatio(_ context.Context, from, to domain.Asset, ratio decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ratios[pairKey(from, to)] = ratio
	return nil
}

func (s *Store) Close() error { return nil }
