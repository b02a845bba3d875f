package usecase

import (
	"context"
	"fmt"

	"github.com/trebuchet-org/treb-anvil/internal/domain"
)

// NodeStage is a progress stage of connecting to a node
type NodeStage string

const (
	StageResolvingFork NodeStage = "resolving_fork"
	StageConnecting    NodeStage = "connecting"
	StageConnected     NodeStage = "connected"
)

// StartNode connects the provider, starting anvil when needed
type StartNode struct {
	provider *Provider
	progress ProgressSink
}

// NewStartNode creates a new start node use case
func NewStartNode(provider *Provider, progress ProgressSink) *StartNode {
	return &StartNode{
		provider: provider,
		progress: progress,
	}
}

// StartNodeParams contains parameters for starting a node
type StartNodeParams struct {
	// Fork overrides the configured fork settings of a fork network
	Fork *domain.ForkOverride
}

// StartNodeResult contains the started node
type StartNodeResult struct {
	Status domain.NodeStatus
}

// Execute connects to or starts the node
func (s *StartNode) Execute(ctx context.Context, params StartNodeParams) (*StartNodeResult, error) {
	network := s.provider.Network()
	if network.IsFork() {
		s.progress.OnProgress(ctx, ProgressEvent{
			Stage:   string(StageResolvingFork),
			Message: fmt.Sprintf("Resolving upstream for %s", network),
			Spinner: true,
		})
	}

	s.progress.OnProgress(ctx, ProgressEvent{
		Stage:   string(StageConnecting),
		Message: fmt.Sprintf("Connecting to %s node", network),
		Spinner: true,
	})

	if err := s.provider.Connect(ctx, params.Fork); err != nil {
		s.progress.Error(fmt.Sprintf("Failed to connect to %s node", network))
		return nil, err
	}

	status := s.provider.Status(ctx)
	s.progress.OnProgress(ctx, ProgressEvent{
		Stage:    string(StageConnected),
		Message:  fmt.Sprintf("Connected to %s", status.Endpoint),
		Metadata: status,
	})

	return &StartNodeResult{Status: status}, nil
}

// Stop disconnects the node, stopping it if it was started here
func (s *StartNode) Stop() error {
	return s.provider.Disconnect()
}
