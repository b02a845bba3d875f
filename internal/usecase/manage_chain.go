package usecase

import (
	"context"
	"fmt"
	"strconv"
)

// ManageChain handles chain state operations on a running node
type ManageChain struct {
	provider *Provider
	progress ProgressSink
}

// NewManageChain creates a new chain management use case
func NewManageChain(provider *Provider, progress ProgressSink) *ManageChain {
	return &ManageChain{
		provider: provider,
		progress: progress,
	}
}

// ManageChainParams contains parameters for chain operations
type ManageChainParams struct {
	Operation string // snapshot, revert, mine, reset, set-time, automine
	Arg       string
}

// ManageChainResult contains the result of chain operations
type ManageChainResult struct {
	Operation  string
	SnapshotID string
	Success    bool
	Message    string
}

// Execute performs the chain operation against the running node
func (m *ManageChain) Execute(ctx context.Context, params ManageChainParams) (*ManageChainResult, error) {
	if err := m.provider.Attach(ctx); err != nil {
		return nil, err
	}
	defer m.provider.Disconnect()

	switch params.Operation {
	case "snapshot":
		return m.snapshot(ctx)
	case "revert":
		return m.revert(ctx, params.Arg)
	case "mine":
		return m.mine(ctx, params.Arg)
	case "reset":
		return m.reset(ctx, params.Arg)
	case "set-time":
		return m.setTime(ctx, params.Arg)
	case "automine":
		return m.automine(ctx, params.Arg)
	default:
		return nil, fmt.Errorf("unknown operation: %s", params.Operation)
	}
}

func (m *ManageChain) snapshot(ctx context.Context) (*ManageChainResult, error) {
	id, err := m.provider.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to take snapshot: %w", err)
	}

	return &ManageChainResult{
		Operation:  "snapshot",
		SnapshotID: id,
		Success:    true,
		Message:    fmt.Sprintf("Snapshot %s taken", id),
	}, nil
}

func (m *ManageChain) revert(ctx context.Context, id string) (*ManageChainResult, error) {
	if id == "" {
		return nil, fmt.Errorf("revert needs a snapshot id")
	}

	m.progress.Info(fmt.Sprintf("⏪ Reverting to snapshot %s...", id))
	ok, err := m.provider.Restore(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to revert: %w", err)
	}

	result := &ManageChainResult{
		Operation:  "revert",
		SnapshotID: id,
		Success:    ok,
		Message:    fmt.Sprintf("Reverted to snapshot %s", id),
	}
	if !ok {
		result.Message = fmt.Sprintf("Snapshot %s does not exist", id)
	}
	return result, nil
}

func (m *ManageChain) mine(ctx context.Context, arg string) (*ManageChainResult, error) {
	blocks := uint64(1)
	if arg != "" {
		n, err := strconv.ParseUint(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid block count %q: %w", arg, err)
		}
		blocks = n
	}

	if err := m.provider.Mine(ctx, blocks); err != nil {
		return nil, fmt.Errorf("failed to mine: %w", err)
	}

	return &ManageChainResult{
		Operation: "mine",
		Success:   true,
		Message:   fmt.Sprintf("Mined %d block(s)", max(blocks, 1)),
	}, nil
}

func (m *ManageChain) reset(ctx context.Context, arg string) (*ManageChainResult, error) {
	var block *uint64
	if arg != "" {
		n, err := strconv.ParseUint(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid block number %q: %w", arg, err)
		}
		block = &n
	}

	m.progress.Info("🔄 Resetting fork...")
	if err := m.provider.ResetFork(ctx, block); err != nil {
		return nil, err
	}

	msg := "Fork reset to the latest upstream block"
	if block != nil {
		msg = fmt.Sprintf("Fork reset to block %d", *block)
	}
	return &ManageChainResult{Operation: "reset", Success: true, Message: msg}, nil
}

func (m *ManageChain) setTime(ctx context.Context, arg string) (*ManageChainResult, error) {
	ts, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp %q: %w", arg, err)
	}
	if err := m.provider.SetTimestamp(ctx, ts); err != nil {
		return nil, fmt.Errorf("failed to set timestamp: %w", err)
	}

	return &ManageChainResult{
		Operation: "set-time",
		Success:   true,
		Message:   fmt.Sprintf("Next block timestamp set to %d", ts),
	}, nil
}

func (m *ManageChain) automine(ctx context.Context, arg string) (*ManageChainResult, error) {
	if arg == "" {
		enabled, err := m.provider.AutoMine(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read automine: %w", err)
		}
		return &ManageChainResult{
			Operation: "automine",
			Success:   true,
			Message:   fmt.Sprintf("Automine is %s", onOff(enabled)),
		}, nil
	}

	enabled, err := strconv.ParseBool(arg)
	if err != nil {
		return nil, fmt.Errorf("invalid automine value %q: %w", arg, err)
	}
	if err := m.provider.SetAutoMine(ctx, enabled); err != nil {
		return nil, fmt.Errorf("failed to set automine: %w", err)
	}

	return &ManageChainResult{
		Operation: "automine",
		Success:   true,
		Message:   fmt.Sprintf("Automine turned %s", onOff(enabled)),
	}, nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
