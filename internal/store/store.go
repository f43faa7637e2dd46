// Package store 按配置打开状态存储后端
package store

import (
	"fmt"
	"strings"

	"github.com/betbot/coinjump/internal/ports"
	"github.com/betbot/coinjump/internal/store/badgerkv"
	"github.com/betbot/coinjump/internal/store/filestore"
	"github.com/betbot/coinjump/internal/store/memory"
	"github.com/betbot/coinjump/internal/store/sqlite"
	"github.com/betbot/coinjump/pkg/config"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "store")

// Backend 当前持仓 + 参考比率
type Backend interface {
	ports.CoinStateStore
	ports.RatioStore
	Close() error
}

// Opened 打开的后端；History 只有 sqlite 后端提供，其余为 nil
type Opened struct {
	Backend Backend
	History ports.HistoryRecorder
}

func (o *Opened) Close() error {
	if o == nil || o.Backend == nil {
		return nil
	}
	return o.Backend.Close()
}

func Open(cfg config.StoreConfig) (*Opened, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	switch backend {
	case config.StoreSQLite, "":
		s, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		log.Infof("状态存储: sqlite %s", cfg.Path)
		return &Opened{Backend: s, History: s}, nil
	case config.StoreBadger:
		key, err := badgerkv.ParseKey(cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("store encryption key: %w", err)
		}
		s, err := badgerkv.Open(badgerkv.OpenOptions{Path: cfg.Path, EncryptionKey: key})
		if err != nil {
			return nil, err
		}
		log.Infof("状态存储: badger %s (encrypted=%v)", cfg.Path, len(key) > 0)
		return &Opened{Backend: s}, nil
	case config.StoreFile:
		s, err := filestore.Open(cfg.Path, "")
		if err != nil {
			return nil, err
		}
		log.Infof("状态存储: json 文件 %s", cfg.Path)
		return &Opened{Backend: s}, nil
	case config.StoreMemory:
		log.Warn("状态存储: memory（重启后状态丢失）")
		return &Opened{Backend: memory.New()}, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}
