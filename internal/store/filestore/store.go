package filestore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/betbot/coinjump/internal/domain"
	"github.com/betbot/coinjump/pkg/persistence"
	"github.com/shopspring/decimal"
)

const defaultID = "coinjump"

// state 按字段持久化：每个 tag 一个 JSON 文件
type state struct {
	CurrentCoin string            `persistence:"current_coin"`
	Ratios      map[string]string `persistence:"ratios"`
}

// Store JSON 文件后端
type Store struct {
	mu      sync.Mutex
	id      string
	service persistence.Service
	st      state
}

// Open 从 dir 加载已有状态（不存在则为空）
func Open(dir, id string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("filestore: dir is required")
	}
	if id == "" {
		id = defaultID
	}
	s := &Store{
		id:      id,
		service: persistence.NewJSONFileService(dir),
		st:      state{Ratios: map[string]string{}},
	}
	if err := persistence.LoadFields(&s.st, s.id, s.service); err != nil {
		return nil, fmt.Errorf("filestore: load: %w", err)
	}
	if s.st.Ratios == nil {
		s.st.Ratios = map[string]string{}
	}
	return s, nil
}

func ratioKey(from, to domain.Asset) string {
	return from.Symbol + "/" + to.Symbol
}

func (s *Store) CurrentCoin(_ context.Context) (domain.Asset, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.CurrentCoin == "" {
		return domain.Asset{}, false, nil
	}
	return domain.NewAsset(s.st.CurrentCoin), true, nil
}

// SetCurrentCoin 写入失败时回滚内存值
func (s *Store) SetCurrentCoin(_ context.Context, asset domain.Asset) error {
	if asset.IsZero() {
		return errors.New("filestore: empty symbol")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.st.CurrentCoin
	s.st.CurrentCoin = asset.Symbol
	if err := persistence.SaveField(&s.st, s.id, "current_coin", s.service); err != nil {
		s.st.CurrentCoin = prev
		return fmt.Errorf("filestore: set current coin: %w", err)
	}
	return nil
}

func (s *Store) Ratio(_ context.Context, from, to domain.Asset) (decimal.Decimal, bool, error) {
	s.mu.Lock()
	raw, ok := s.st.Ratios[ratioKey(from, to)]
	s.mu.Unlock()
	if !ok {
		return decimal.Zero, false, nil
	}
	r, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("filestore: parse ratio %s/%s: %w", from, to, err)
	}
	return r, true, nil
}

func (s *Store) SetRatio(_ context.Context, from, to domain.Asset, ratio decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ratioKey(from, to)
	prev, had := s.st.Ratios[key]
	s.st.Ratios[key] = ratio.String()
	if err := persistence.SaveField(&s.st, s.id, "ratios", s.service); err != nil {
		if had {
			s.st.Ratios[key] = prev
		} else {
			delete(s.st.Ratios, key)
		}
		return fmt.Errorf("filestore: set ratio %s: %w", key, err)
	}
	return nil
}

func (s *Store) Close() error { return nil }
