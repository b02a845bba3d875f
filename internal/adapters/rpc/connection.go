package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/trebuchet-org/treb-anvil/internal/domain"
)

// Connection is a verified connection to an anvil node.
type Connection struct {
	*Client

	clientVersion string
	relaxed       bool
}

// NewConnection wraps a client whose identity has already been checked.
func NewConnection(client *Client, clientVersion string, relaxedHeaders bool) *Connection {
	return &Connection{Client: client, clientVersion: clientVersion, relaxed: relaxedHeaders}
}

// ClientVersion is the node's web3_clientVersion.
func (c *Connection) ClientVersion() string {
	return c.clientVersion
}

// RelaxedHeaders reports whether block headers are decoded leniently.
func (c *Connection) RelaxedHeaders() bool {
	return c.relaxed
}

// BlockID formats a block number for RPC parameters.
func BlockID(n uint64) string {
	return hexutil.EncodeUint64(n)
}

func (c *Connection) ChainID(ctx context.Context) (uint64, error) {
	var id hexutil.Uint64
	if err := c.Call(ctx, &id, "eth_chainId"); err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func (c *Connection) BlockNumber(ctx context.Context) (uint64, error) {
	var n hexutil.Uint64
	if err := c.Call(ctx, &n, "eth_blockNumber"); err != nil {
		return 0, err
	}
	return uint64(n), nil
}

// GetBlock fetches a block header by tag ("latest", "earliest") or hex number.
func (c *Connection) GetBlock(ctx context.Context, id string) (*domain.Block, error) {
	var raw json.RawMessage
	if err := c.Call(ctx, &raw, "eth_getBlockByNumber", id, false); err != nil {
		return nil, err
	}
	block, err := DecodeBlock(raw, c.relaxed)
	if err != nil {
		return nil, fmt.Errorf("block %s: %w", id, err)
	}
	return block, nil
}

func (c *Connection) GetBalance(ctx context.Context, addr common.Address, block string) (*big.Int, error) {
	var bal hexutil.Big
	if err := c.Call(ctx, &bal, "eth_getBalance", addr, block); err != nil {
		return nil, err
	}
	return bal.ToInt(), nil
}

func (c *Connection) GetCode(ctx context.Context, addr common.Address, block string) ([]byte, error) {
	var code hexutil.Bytes
	if err := c.Call(ctx, &code, "eth_getCode", addr, block); err != nil {
		return nil, err
	}
	return code, nil
}

func (c *Connection) GetStorageAt(ctx context.Context, addr common.Address, slot common.Hash, block string) (common.Hash, error) {
	var value hexutil.Bytes
	if err := c.Call(ctx, &value, "eth_getStorageAt", addr, slot, block); err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(value), nil
}

func (c *Connection) SetBalance(ctx context.Context, addr common.Address, amount *big.Int) error {
	return c.Call(ctx, nil, "anvil_setBalance", addr, (*hexutil.Big)(amount))
}

func (c *Connection) SetCode(ctx context.Context, addr common.Address, code []byte) error {
	return c.Call(ctx, nil, "anvil_setCode", addr, hexutil.Bytes(code))
}

func (c *Connection) SetStorageAt(ctx context.Context, addr common.Address, slot, value common.Hash) error {
	return c.Call(ctx, nil, "anvil_setStorageAt", addr, slot, value)
}

// Snapshot creates a node-side checkpoint and returns its id.
func (c *Connection) Snapshot(ctx context.Context) (string, error) {
	var id string
	if err := c.Call(ctx, &id, "evm_snapshot"); err != nil {
		return "", err
	}
	if id == "" {
		return "", domain.ErrSnapshotFailed
	}
	return id, nil
}

// Revert restores a snapshot. Unknown ids yield false, not an error.
func (c *Connection) Revert(ctx context.Context, id string) (bool, error) {
	var ok bool
	if err := c.Call(ctx, &ok, "evm_revert", id); err != nil {
		return false, err
	}
	return ok, nil
}

// Mine mines a number of blocks.
func (c *Connection) Mine(ctx context.Context, blocks uint64) error {
	var result string
	if err := c.Call(ctx, &result, "evm_mine", map[string]any{"blocks": blocks}); err != nil {
		return err
	}
	if result != "0x0" {
		return fmt.Errorf("evm_mine returned unexpected result %q", result)
	}
	return nil
}

func (c *Connection) SetAutomine(ctx context.Context, enabled bool) error {
	return c.Call(ctx, nil, "anvil_setAutomine", enabled)
}

func (c *Connection) GetAutomine(ctx context.Context) (bool, error) {
	var enabled bool
	if err := c.Call(ctx, &enabled, "anvil_getAutomine"); err != nil {
		return false, err
	}
	return enabled, nil
}

// SetIntervalMining mines a block every interval seconds. Zero disables it.
func (c *Connection) SetIntervalMining(ctx context.Context, seconds uint64) error {
	return c.Call(ctx, nil, "evm_setIntervalMining", seconds)
}

func (c *Connection) SetNextBlockTimestamp(ctx context.Context, timestamp uint64) error {
	return c.Call(ctx, nil, "evm_setNextBlockTimestamp", timestamp)
}

func (c *Connection) SetBlockGasLimit(ctx context.Context, limit uint64) (bool, error) {
	var ok bool
	if err := c.Call(ctx, &ok, "evm_setBlockGasLimit", hexutil.EncodeUint64(limit)); err != nil {
		return false, err
	}
	return ok, nil
}

func (c *Connection) SetNextBlockBaseFee(ctx context.Context, fee uint64) error {
	return c.Call(ctx, nil, "anvil_setNextBlockBaseFeePerGas", hexutil.EncodeUint64(fee))
}

func (c *Connection) Impersonate(ctx context.Context, addr common.Address) error {
	return c.Call(ctx, nil, "anvil_impersonateAccount", addr)
}

func (c *Connection) StopImpersonating(ctx context.Context, addr common.Address) error {
	return c.Call(ctx, nil, "anvil_stopImpersonatingAccount", addr)
}

// Reset re-forks the node from url at block. A nil block forks from latest.
func (c *Connection) Reset(ctx context.Context, url string, block *uint64) error {
	forking := map[string]any{"jsonRpcUrl": url}
	if block != nil {
		forking["blockNumber"] = *block
	}
	return c.Call(ctx, nil, "anvil_reset", map[string]any{"forking": forking})
}

func (c *Connection) EthCall(ctx context.Context, req domain.CallRequest, block string) ([]byte, error) {
	var out hexutil.Bytes
	if err := c.Call(ctx, &out, "eth_call", req, block); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Connection) SendTransaction(ctx context.Context, req domain.CallRequest) (common.Hash, error) {
	var hash common.Hash
	if err := c.Call(ctx, &hash, "eth_sendTransaction", req); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

func (c *Connection) TransactionReceipt(ctx context.Context, hash common.Hash) (*domain.Receipt, error) {
	var receipt *domain.Receipt
	if err := c.Call(ctx, &receipt, "eth_getTransactionReceipt", hash); err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, fmt.Errorf("receipt for %s not found", hash)
	}
	return receipt, nil
}

func (c *Connection) TransactionByHash(ctx context.Context, hash common.Hash) (*domain.Transaction, error) {
	var tx *domain.Transaction
	if err := c.Call(ctx, &tx, "eth_getTransactionByHash", hash); err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction %s not found", hash)
	}
	return tx, nil
}

// TraceTransaction fetches the struct-log trace of a mined transaction.
func (c *Connection) TraceTransaction(ctx context.Context, hash common.Hash) (*domain.TransactionTrace, error) {
	var trace domain.TransactionTrace
	opts := map[string]any{"stepsTracing": true, "enableMemory": true}
	if err := c.Call(ctx, &trace, "debug_traceTransaction", hash, opts); err != nil {
		return nil, err
	}
	return &trace, nil
}

// TraceCall traces a call without mining it.
func (c *Connection) TraceCall(ctx context.Context, req domain.CallRequest, block string) (*domain.TransactionTrace, error) {
	var trace domain.TransactionTrace
	opts := map[string]any{"enableMemory": true}
	if err := c.Call(ctx, &trace, "debug_traceCall", req, block, opts); err != nil {
		return nil, err
	}
	return &trace, nil
}

// TraceTransactionFlat fetches the parity-style flat trace of a transaction.
func (c *Connection) TraceTransactionFlat(ctx context.Context, hash common.Hash) ([]domain.ParityTrace, error) {
	var traces []domain.ParityTrace
	if err := c.Call(ctx, &traces, "trace_transaction", hash); err != nil {
		return nil, err
	}
	return traces, nil
}
