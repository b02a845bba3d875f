package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/trebuchet-org/treb-anvil/internal/domain"
)

// ExpectedClient must appear in the web3_clientVersion of a usable node.
const ExpectedClient = "anvil"

// Handshaker verifies that an endpoint is a live anvil node.
type Handshaker struct {
	log *slog.Logger
}

// NewHandshaker creates a handshaker
func NewHandshaker(log *slog.Logger) *Handshaker {
	return &Handshaker{log: log.With("component", "handshake")}
}

// TryConnect returns a connection if an anvil node answers at the endpoint.
// A nil connection with a nil error means nothing is listening yet. Errors
// are reserved for a malformed endpoint and for an endpoint occupied by
// something other than anvil.
func (h *Handshaker) TryConnect(ctx context.Context, endpoint domain.NodeEndpoint, timeout time.Duration) (*Connection, error) {
	client, err := Dial(ctx, endpoint, timeout, h.log)
	if err != nil {
		return nil, err
	}

	var head hexutil.Uint64
	if err := client.Call(ctx, &head, "eth_blockNumber"); err != nil {
		client.Close()
		var httpErr rpc.HTTPError
		if errors.As(err, &httpErr) {
			HandshakesTotal.WithLabelValues("occupied").Inc()
			return nil, domain.OccupiedPortError{Endpoint: endpoint.URL(), ClientVersion: httpErr.Status}
		}
		HandshakesTotal.WithLabelValues("unreachable").Inc()
		h.log.Debug("endpoint not live", "endpoint", endpoint.URL(), "error", err)
		return nil, nil
	}

	var version string
	if err := client.Call(ctx, &version, "web3_clientVersion"); err != nil {
		h.log.Debug("client version probe failed", "endpoint", endpoint.URL(), "error", err)
	}
	if !strings.Contains(strings.ToLower(version), ExpectedClient) {
		client.Close()
		HandshakesTotal.WithLabelValues("occupied").Inc()
		return nil, domain.OccupiedPortError{Endpoint: endpoint.URL(), ClientVersion: version}
	}

	relaxed := h.detectProofOfAuthority(ctx, client)
	if relaxed {
		h.log.Debug("proof-of-authority headers detected, using relaxed decoding", "endpoint", endpoint.URL())
	}

	HandshakesTotal.WithLabelValues("connected").Inc()
	return NewConnection(client, version, relaxed), nil
}

// detectProofOfAuthority probes genesis and the latest block for
// extraData a strict header decode would reject.
func (h *Handshaker) detectProofOfAuthority(ctx context.Context, client *Client) bool {
	for _, id := range []string{BlockID(0), "latest"} {
		var raw json.RawMessage
		if err := client.Call(ctx, &raw, "eth_getBlockByNumber", id, false); err != nil {
			continue
		}
		if isProofOfAuthority(raw) {
			return true
		}
	}
	return false
}
