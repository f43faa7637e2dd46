//go:build wireinject

package app

import (
	"github.com/betbot/coinjump/pkg/config"
	"github.com/google/wire"
)

func BuildApp(cfg *config.Config) (*App, error) {
	wire.Build(ProviderSet)
	return nil, nil
}
