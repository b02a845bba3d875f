package usecase

import (
	"context"
	"iter"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/treb-anvil/internal/domain"
	"github.com/trebuchet-org/treb-anvil/internal/domain/config"
)

// PortAllocator hands out ports for new node processes
type PortAllocator interface {
	Allocate(preferred *int, defaultPort int) (int, error)
}

// NodeSupervisor owns spawned node processes
type NodeSupervisor interface {
	BuildCommand(opts config.LaunchOptions) []string
	Start(ctx context.Context, port int, args []string) (*domain.ProcessHandle, error)
	WaitUntilListening(ctx context.Context, handle *domain.ProcessHandle, timeout time.Duration) error
	Stop(handle *domain.ProcessHandle) error
}

// Connector performs the connection handshake. A nil client with a nil
// error means nothing answered at the endpoint.
type Connector interface {
	TryConnect(ctx context.Context, endpoint domain.NodeEndpoint, timeout time.Duration) (NodeClient, error)
}

// NodeClient is a live, verified connection to a node
type NodeClient interface {
	Endpoint() domain.NodeEndpoint
	Close()
	ClientVersion() string
	RelaxedHeaders() bool

	ChainID(ctx context.Context) (uint64, error)
	BlockNumber(ctx context.Context) (uint64, error)
	GetBlock(ctx context.Context, id string) (*domain.Block, error)

	GetBalance(ctx context.Context, addr common.Address, block string) (*big.Int, error)
	GetCode(ctx context.Context, addr common.Address, block string) ([]byte, error)
	GetStorageAt(ctx context.Context, addr common.Address, slot common.Hash, block string) (common.Hash, error)
	SetBalance(ctx context.Context, addr common.Address, amount *big.Int) error
	SetCode(ctx context.Context, addr common.Address, code []byte) error
	SetStorageAt(ctx context.Context, addr common.Address, slot, value common.Hash) error

	Snapshot(ctx context.Context) (string, error)
	Revert(ctx context.Context, id string) (bool, error)
	Mine(ctx context.Context, blocks uint64) error
	SetAutomine(ctx context.Context, enabled bool) error
	GetAutomine(ctx context.Context) (bool, error)
	SetIntervalMining(ctx context.Context, seconds uint64) error
	SetNextBlockTimestamp(ctx context.Context, timestamp uint64) error
	SetBlockGasLimit(ctx context.Context, limit uint64) (bool, error)
	SetNextBlockBaseFee(ctx context.Context, fee uint64) error
	Impersonate(ctx context.Context, addr common.Address) error
	StopImpersonating(ctx context.Context, addr common.Address) error
	Reset(ctx context.Context, url string, block *uint64) error

	EthCall(ctx context.Context, req domain.CallRequest, block string) ([]byte, error)
	SendTransaction(ctx context.Context, req domain.CallRequest) (common.Hash, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*domain.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*domain.Transaction, error)
	TraceTransaction(ctx context.Context, hash common.Hash) (*domain.TransactionTrace, error)
	TraceCall(ctx context.Context, req domain.CallRequest, block string) (*domain.TransactionTrace, error)
	TraceTransactionFlat(ctx context.Context, hash common.Hash) ([]domain.ParityTrace, error)
}

// Forker resolves and checks the upstream of a forked node
type Forker interface {
	ResolveUpstream(ctx context.Context, network domain.NetworkChoice, override *domain.ForkOverride) (domain.ForkSpec, string, error)
	CheckUpstream(upstreamURL string, local domain.NodeEndpoint) error
	DetectHardfork(spec *domain.ForkSpec) (string, bool)
	VerifyGenesis(ctx context.Context, local domain.NodeEndpoint, upstreamURL string)
}

// ErrorTranslator turns node errors into transaction errors
type ErrorTranslator interface {
	NeedsTrace(err error) bool
	Translate(err error, tctx domain.FailureContext) *domain.TransactionError
}

// CallTreeBuilder rebuilds call trees from traces
type CallTreeBuilder interface {
	FromStructLogs(root domain.RootCall, frames iter.Seq[domain.TraceFrame]) (*domain.CallTreeNode, error)
	FromParityTraces(traces []domain.ParityTrace) (*domain.CallTreeNode, error)
}

// Progress tracking interfaces

// ProgressEvent represents a progress update
type ProgressEvent struct {
	Stage    string
	Message  string
	Spinner  bool
	Metadata interface{}
}

// ProgressSink receives progress events
type ProgressSink interface {
	OnProgress(ctx context.Context, event ProgressEvent)
	Info(message string)
	Error(message string)
}
