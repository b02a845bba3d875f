package rpc

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/trebuchet-org/treb-anvil/internal/domain"
)

// DefaultTimeout applies when a client is created without one.
const DefaultTimeout = 30 * time.Second

// Client is a JSON-RPC client that applies a per-call timeout and records
// call metrics.
type Client struct {
	rpc      *rpc.Client
	endpoint domain.NodeEndpoint
	timeout  time.Duration
	log      *slog.Logger
}

// Dial creates a client for the endpoint. HTTP endpoints are dialed lazily,
// so an unreachable node is only noticed on the first call.
func Dial(ctx context.Context, endpoint domain.NodeEndpoint, timeout time.Duration, log *slog.Logger) (*Client, error) {
	if endpoint.IsZero() {
		return nil, fmt.Errorf("cannot dial unresolved endpoint")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c, err := rpc.DialOptions(ctx, endpoint.URL(), rpc.WithHTTPClient(&http.Client{Timeout: timeout}))
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", endpoint, err)
	}
	return &Client{
		rpc:      c,
		endpoint: endpoint,
		timeout:  timeout,
		log:      log.With("endpoint", endpoint.URL()),
	}, nil
}

// Endpoint returns the dialed endpoint.
func (c *Client) Endpoint() domain.NodeEndpoint {
	return c.endpoint
}

// Timeout returns the per-call timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Call performs a single JSON-RPC request bounded by the client timeout.
func (c *Client) Call(ctx context.Context, result any, method string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := c.rpc.CallContext(ctx, result, method, args...)
	duration := time.Since(start)

	status := statusSuccess
	if err != nil {
		status = statusError
	}
	node := c.endpoint.URL()
	RPCCallDuration.WithLabelValues(node, method, status).Observe(duration.Seconds())
	RPCCallsTotal.WithLabelValues(node, method, status).Inc()

	if err != nil {
		c.log.Debug("rpc call failed", "method", method, "duration", duration, "error", err)
	}
	return err
}

// Close releases the underlying transport.
func (c *Client) Close() {
	c.rpc.Close()
}
