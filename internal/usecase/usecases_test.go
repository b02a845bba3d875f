package usecase_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/treb-anvil/internal/domain"
	"github.com/trebuchet-org/treb-anvil/internal/usecase"
)

func TestStartNode(t *testing.T) {
	ctx := context.Background()

	t.Run("fork start reports every stage", func(t *testing.T) {
		h, p := newHarness(t, "ethereum:mainnet-fork", managed("auto"))
		h.forker.upstream = "https://eth.example.com"
		h.alloc.next = []int{8545}
		h.serveOnListen(1)
		progress := &recordingProgress{}

		uc := usecase.NewStartNode(p, progress)
		result, err := uc.Execute(ctx, usecase.StartNodeParams{})
		require.NoError(t, err)

		assert.True(t, result.Status.Connected)
		assert.True(t, result.Status.Managed)
		require.Len(t, progress.events, 3)
		assert.Equal(t, string(usecase.StageResolvingFork), progress.events[0].Stage)
		assert.Equal(t, string(usecase.StageConnecting), progress.events[1].Stage)
		assert.Equal(t, string(usecase.StageConnected), progress.events[2].Stage)

		require.NoError(t, uc.Stop())
		assert.Len(t, h.sup.stopped, 1)
	})

	t.Run("failure is reported", func(t *testing.T) {
		h, p := newHarness(t, "local", managed("auto"))
		h.sup.startErrs = []error{domain.NodeNotInstalledError{Binary: "anvil"}}
		h.alloc.next = []int{8545}
		progress := &recordingProgress{}

		_, err := usecase.NewStartNode(p, progress).Execute(ctx, usecase.StartNodeParams{})
		require.Error(t, err)
		assert.Len(t, progress.errors, 1)
	})
}

func TestNodeStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing running", func(t *testing.T) {
		_, p := newHarness(t, "local", managed("auto"))

		status, err := usecase.NewNodeStatus(p).Execute(ctx)
		require.NoError(t, err)
		assert.False(t, status.Connected)
		assert.Equal(t, domain.LocalChainID, status.ChainID)
	})

	t.Run("running node", func(t *testing.T) {
		h, p := newHarness(t, "local", managed("auto"))
		client := newFakeClient(domain.LocalEndpoint(8545), 31337)
		h.conn.serve(client)

		status, err := usecase.NewNodeStatus(p).Execute(ctx)
		require.NoError(t, err)
		assert.True(t, status.Connected)
		assert.Equal(t, "http://127.0.0.1:8545", status.Endpoint)
		assert.False(t, p.IsConnected())
		assert.Equal(t, 1, client.closed)
	})

	t.Run("occupied port is an error", func(t *testing.T) {
		h, p := newHarness(t, "local", managed("auto"))
		h.conn.errs["http://127.0.0.1:8545"] = domain.OccupiedPortError{Endpoint: "http://127.0.0.1:8545"}

		_, err := usecase.NewNodeStatus(p).Execute(ctx)
		var occupied domain.OccupiedPortError
		assert.ErrorAs(t, err, &occupied)
	})
}

func TestManageChain(t *testing.T) {
	ctx := context.Background()
	h, p := newHarness(t, "local", managed("auto"))
	client := newFakeClient(domain.LocalEndpoint(8545), 31337)
	h.conn.serve(client)
	uc := usecase.NewManageChain(p, &recordingProgress{})

	snap, err := uc.Execute(ctx, usecase.ManageChainParams{Operation: "snapshot"})
	require.NoError(t, err)
	assert.Equal(t, "0x0", snap.SnapshotID)

	reverted, err := uc.Execute(ctx, usecase.ManageChainParams{Operation: "revert", Arg: snap.SnapshotID})
	require.NoError(t, err)
	assert.True(t, reverted.Success)

	missing, err := uc.Execute(ctx, usecase.ManageChainParams{Operation: "revert", Arg: "0x9"})
	require.NoError(t, err)
	assert.False(t, missing.Success)

	mined, err := uc.Execute(ctx, usecase.ManageChainParams{Operation: "mine", Arg: "3"})
	require.NoError(t, err)
	assert.Equal(t, "Mined 3 block(s)", mined.Message)

	_, err = uc.Execute(ctx, usecase.ManageChainParams{Operation: "set-time", Arg: "1700000000"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1700000000), client.timestamp)

	_, err = uc.Execute(ctx, usecase.ManageChainParams{Operation: "automine", Arg: "false"})
	require.NoError(t, err)
	assert.False(t, client.automine)

	_, err = uc.Execute(ctx, usecase.ManageChainParams{Operation: "reset"})
	assert.ErrorIs(t, err, domain.ErrNotForked)

	_, err = uc.Execute(ctx, usecase.ManageChainParams{Operation: "mine", Arg: "many"})
	assert.Error(t, err)

	_, err = uc.Execute(ctx, usecase.ManageChainParams{Operation: "explode"})
	assert.EqualError(t, err, "unknown operation: explode")
}

func TestTraceTransaction(t *testing.T) {
	ctx := context.Background()
	h, p := newHarness(t, "local", managed("auto"))
	client := newFakeClient(domain.LocalEndpoint(8545), 31337)
	client.receipt = &domain.Receipt{Status: 0}
	client.flat = []domain.ParityTrace{{}}
	client.trace = &domain.TransactionTrace{Failed: true}
	h.conn.serve(client)

	result, err := usecase.NewTraceTransaction(p).Execute(ctx, usecase.TraceTransactionParams{TxHash: common.HexToHash("0x01")})
	require.NoError(t, err)

	require.NotNil(t, result.Failure)
	assert.Equal(t, domain.RevertedNoReason, result.Failure.Kind)
	assert.NotNil(t, result.Tree)
	assert.False(t, p.IsConnected())
}

func TestDetectHardfork(t *testing.T) {
	ctx := context.Background()
	forker := &fakeForker{upstream: "https://eth.example.com", hardfork: "shanghai"}
	uc := usecase.NewDetectHardfork(forker)

	result, err := uc.Execute(ctx, usecase.DetectHardforkParams{
		Network: domain.NetworkChoice{Ecosystem: "ethereum", Network: "mainnet-fork"},
	})
	require.NoError(t, err)
	assert.True(t, result.Found)
	assert.Equal(t, "shanghai", result.Hardfork)
	assert.Equal(t, "shanghai", result.Spec.EVMVersion)
	assert.Equal(t, "https://eth.example.com", result.UpstreamURL)

	_, err = uc.Execute(ctx, usecase.DetectHardforkParams{Network: domain.NetworkChoice{Ecosystem: "ethereum", Network: "local"}})
	assert.ErrorIs(t, err, domain.ErrNotForked)
}
