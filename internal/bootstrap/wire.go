//go:build wireinject
// +build wireinject

//go:generate wire

package bootstrap

import (
	"context"

	"github.com/google/wire"
)

// InitializeApp creates the client with all its dependencies.
// The cleanup function closes connections and flushes the logger.
func InitializeApp(ctx context.Context, settings Settings) (*App, func(), error) {
	wire.Build(ProviderSet)
	return nil, nil, nil
}
