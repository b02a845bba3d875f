//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"
	"github.com/spf13/viper"
	"github.com/trebuchet-org/treb-anvil/internal/adapters"
	"github.com/trebuchet-org/treb-anvil/internal/config"
	"github.com/trebuchet-org/treb-anvil/internal/logging"
	"github.com/trebuchet-org/treb-anvil/internal/usecase"
)

// InitApp creates a fully wired App instance
func InitApp(v *viper.Viper, sink usecase.ProgressSink) (*App, error) {
	wire.Build(
		// Configuration
		config.Provider,
		logging.LoggingSet,

		// Adapters
		adapters.AllAdapters,

		// Provider and use cases
		usecase.NewProvider,
		usecase.NewStartNode,
		usecase.NewNodeStatus,
		usecase.NewManageChain,
		usecase.NewTraceTransaction,
		usecase.NewDetectHardfork,

		// App
		NewApp,
	)
	return nil, nil
}
