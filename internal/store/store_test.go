package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/betbot/coinjump/internal/domain"
	"github.com/betbot/coinjump/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackends(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		cfg         config.StoreConfig
		wantHistory bool
	}{
		{config.StoreConfig{Backend: config.StoreSQLite, Path: filepath.Join(dir, "a.db")}, true},
		{config.StoreConfig{Backend: config.StoreBadger, Path: filepath.Join(dir, "badger")}, false},
		{config.StoreConfig{Backend: config.StoreFile, Path: filepath.Join(dir, "state")}, false},
		{config.StoreConfig{Backend: config.StoreMemory}, false},
	}
	for _, c := range cases {
		t.Run(c.cfg.Backend, func(t *testing.T) {
			o, err := Open(c.cfg)
			require.NoError(t, err)
			defer o.Close()
			assert.Equal(t, c.wantHistory, o.History != nil)

			ctx := context.Background()
			require.NoError(t, o.Backend.SetCurrentCoin(ctx, domain.NewAsset("ETH")))
			got, ok, err := o.Backend.CurrentCoin(ctx)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "ETH", got.Symbol)
		})
	}
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open(config.StoreConfig{Backend: "redis"})
	assert.Error(t, err)
}

func TestOpenRejectsBadKey(t *testing.T) {
	_, err := Open(config.StoreConfig{Backend: config.StoreBadger, Path: t.TempDir(), EncryptionKey: "short"})
	assert.Error(t, err)
}
