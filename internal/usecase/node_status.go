package usecase

import (
	"context"
	"errors"

	"github.com/trebuchet-org/treb-anvil/internal/domain"
)

// NodeStatus reports on the node at the configured endpoint without
// starting one
type NodeStatus struct {
	provider *Provider
}

// NewNodeStatus creates a new node status use case
func NewNodeStatus(provider *Provider) *NodeStatus {
	return &NodeStatus{provider: provider}
}

// Execute attaches to the node, if any, and describes it
func (n *NodeStatus) Execute(ctx context.Context) (*domain.NodeStatus, error) {
	err := n.provider.Attach(ctx)
	switch {
	case err == nil:
		defer n.provider.Disconnect()
	case errors.Is(err, domain.ErrNotConnected), errors.Is(err, domain.ErrRemoteUnreachable):
		// nothing running is a status, not a failure
	default:
		return nil, err
	}

	status := n.provider.Status(ctx)
	return &status, nil
}
