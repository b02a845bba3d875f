package rpc

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/treb-anvil/internal/domain"
)

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result"`
	Error   *rpcError       `json:"error,omitempty"`
}

// newMockRPCServer creates a test HTTP server that responds to JSON-RPC requests
func newMockRPCServer(t *testing.T, handler func(req rpcRequest) rpcResponse) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp := handler(req)
		resp.JSONRPC = "2.0"
		resp.ID = req.ID
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server
}

// anvilHandler answers the handshake probes like a fresh anvil node and
// delegates everything else to next.
func anvilHandler(extraData string, next func(req rpcRequest) rpcResponse) func(req rpcRequest) rpcResponse {
	return func(req rpcRequest) rpcResponse {
		switch req.Method {
		case "eth_blockNumber":
			return rpcResponse{Result: "0x0"}
		case "web3_clientVersion":
			return rpcResponse{Result: "anvil/v1.0.0"}
		case "eth_chainId":
			return rpcResponse{Result: "0x7a69"}
		case "eth_getBlockByNumber":
			return rpcResponse{Result: testBlock(extraData)}
		}
		if next != nil {
			return next(req)
		}
		return rpcResponse{Error: &rpcError{Code: -32601, Message: "method not found"}}
	}
}

func testBlock(extraData string) map[string]any {
	return map[string]any{
		"number":     "0x0",
		"hash":       "0x0101010101010101010101010101010101010101010101010101010101010101",
		"parentHash": "0x0000000000000000000000000000000000000000000000000000000000000000",
		"timestamp":  "0x5",
		"gasLimit":   "0x1c9c380",
		"gasUsed":    "0x0",
		"extraData":  extraData,
	}
}

func endpointForServer(t *testing.T, server *httptest.Server) domain.NodeEndpoint {
	t.Helper()
	ep, err := domain.ParseEndpoint(server.URL)
	require.NoError(t, err)
	return ep
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
