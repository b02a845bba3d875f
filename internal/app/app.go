package app

import (
	"log/slog"

	"github.com/trebuchet-org/treb-anvil/internal/domain/config"
	"github.com/trebuchet-org/treb-anvil/internal/usecase"
)

// App is the main application container that holds all use cases
type App struct {
	// Configuration
	Config *config.RuntimeConfig
	Logger *slog.Logger

	// Provider is the node connection shared by the use cases
	Provider *usecase.Provider

	// Use cases
	StartNode        *usecase.StartNode
	NodeStatus       *usecase.NodeStatus
	ManageChain      *usecase.ManageChain
	TraceTransaction *usecase.TraceTransaction
	DetectHardfork   *usecase.DetectHardfork
}

// NewApp creates a new application instance with all use cases
func NewApp(
	cfg *config.RuntimeConfig,
	logger *slog.Logger,
	provider *usecase.Provider,
	startNode *usecase.StartNode,
	nodeStatus *usecase.NodeStatus,
	manageChain *usecase.ManageChain,
	traceTransaction *usecase.TraceTransaction,
	detectHardfork *usecase.DetectHardfork,
) (*App, error) {
	return &App{
		Config:           cfg,
		Logger:           logger,
		Provider:         provider,
		StartNode:        startNode,
		NodeStatus:       nodeStatus,
		ManageChain:      manageChain,
		TraceTransaction: traceTransaction,
		DetectHardfork:   detectHardfork,
	}, nil
}
