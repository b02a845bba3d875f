package rpc

import (
	"context"
	"time"

	"github.com/trebuchet-org/treb-anvil/internal/domain"
	"github.com/trebuchet-org/treb-anvil/internal/usecase"
)

// Connector adapts Handshaker to usecase.Connector.
type Connector struct {
	handshaker *Handshaker
}

// NewConnector creates a new connector
func NewConnector(handshaker *Handshaker) *Connector {
	return &Connector{handshaker: handshaker}
}

// TryConnect implements usecase.Connector
func (c *Connector) TryConnect(ctx context.Context, endpoint domain.NodeEndpoint, timeout time.Duration) (usecase.NodeClient, error) {
	conn, err := c.handshaker.TryConnect(ctx, endpoint, timeout)
	if conn == nil {
		return nil, err
	}
	return conn, nil
}

// Ensure the adapters implement the ports
var (
	_ usecase.Connector  = (*Connector)(nil)
	_ usecase.NodeClient = (*Connection)(nil)
)
