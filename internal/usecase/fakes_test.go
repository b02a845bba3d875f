package usecase_test

import (
	"context"
	"io"
	"iter"
	"log/slog"
	"math/big"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/treb-anvil/internal/domain"
	"github.com/trebuchet-org/treb-anvil/internal/domain/config"
	"github.com/trebuchet-org/treb-anvil/internal/usecase"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeAllocator returns the preferred port, else ports from a queue.
type fakeAllocator struct {
	mu    sync.Mutex
	next  []int
	calls int
}

func (a *fakeAllocator) Allocate(preferred *int, defaultPort int) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if preferred != nil {
		return *preferred, nil
	}
	if len(a.next) == 0 {
		return 0, domain.PortExhaustedError{Tried: []int{defaultPort}}
	}
	port := a.next[0]
	a.next = a.next[1:]
	return port, nil
}

// fakeSupervisor records launches. waitErrs and startErrs are consumed one
// per attempt; once exhausted the attempt succeeds.
type fakeSupervisor struct {
	startErrs []error
	waitErrs  []error

	// onListening runs when an attempt reports listening
	onListening func(port int)

	starts  []int
	args    [][]string
	stopped []*domain.ProcessHandle
}

func (s *fakeSupervisor) BuildCommand(opts config.LaunchOptions) []string {
	args := []string{"--port", itoa(opts.Port)}
	if opts.Fork != nil {
		args = append(args, "--fork-url", opts.ForkURL)
	}
	return args
}

func (s *fakeSupervisor) Start(_ context.Context, port int, args []string) (*domain.ProcessHandle, error) {
	s.starts = append(s.starts, port)
	s.args = append(s.args, args)
	if len(s.startErrs) > 0 {
		err := s.startErrs[0]
		s.startErrs = s.startErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	h := domain.NewProcessHandle(nil, port, args, "anvil.log", "anvil.pid")
	h.PID = 1000 + len(s.starts)
	return h, nil
}

func (s *fakeSupervisor) WaitUntilListening(_ context.Context, handle *domain.ProcessHandle, _ time.Duration) error {
	if len(s.waitErrs) > 0 {
		err := s.waitErrs[0]
		s.waitErrs = s.waitErrs[1:]
		if err != nil {
			return err
		}
	}
	if s.onListening != nil {
		s.onListening(handle.Port)
	}
	return nil
}

func (s *fakeSupervisor) Stop(handle *domain.ProcessHandle) error {
	if handle == nil {
		return nil
	}
	s.stopped = append(s.stopped, handle)
	handle.MarkExited(nil)
	return nil
}

// fakeConnector answers with the node registered for an endpoint URL.
type fakeConnector struct {
	mu       sync.Mutex
	nodes    map[string]*fakeClient
	errs     map[string]error
	attempts []string
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{nodes: map[string]*fakeClient{}, errs: map[string]error{}}
}

func (c *fakeConnector) serve(client *fakeClient) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes[client.endpoint.URL()] = client
}

func (c *fakeConnector) TryConnect(_ context.Context, ep domain.NodeEndpoint, _ time.Duration) (usecase.NodeClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts = append(c.attempts, ep.URL())
	if err := c.errs[ep.URL()]; err != nil {
		return nil, err
	}
	if node, ok := c.nodes[ep.URL()]; ok {
		return node, nil
	}
	return nil, nil
}

// fakeForker resolves every fork to a fixed upstream.
type fakeForker struct {
	upstream string
	hardfork string
	genesis  []string
	checks   int
}

func (f *fakeForker) ResolveUpstream(_ context.Context, network domain.NetworkChoice, override *domain.ForkOverride) (domain.ForkSpec, string, error) {
	spec := domain.ForkSpec{Ecosystem: network.Ecosystem, Network: network.Network}
	spec = spec.Merge(override)
	url := f.upstream
	if spec.UpstreamProvider != "" {
		url = spec.UpstreamProvider
	}
	if url == "" {
		return spec, "", domain.ForkConfigurationError{Reason: "no upstream"}
	}
	return spec, url, nil
}

func (f *fakeForker) CheckUpstream(upstreamURL string, local domain.NodeEndpoint) error {
	f.checks++
	up, err := domain.ParseEndpoint(upstreamURL)
	if err != nil {
		return domain.ForkConfigurationError{Reason: err.Error()}
	}
	if up.Port == local.Port && up.IsLocal() && local.IsLocal() {
		return domain.ForkConfigurationError{Reason: "fork upstream is the local node"}
	}
	return nil
}

func (f *fakeForker) DetectHardfork(spec *domain.ForkSpec) (string, bool) {
	if f.hardfork == "" {
		return "", false
	}
	spec.EVMVersion = f.hardfork
	return f.hardfork, true
}

func (f *fakeForker) VerifyGenesis(_ context.Context, local domain.NodeEndpoint, upstreamURL string) {
	f.genesis = append(f.genesis, local.URL()+"|"+upstreamURL)
}

// fakeTranslator records the context it was asked to translate with.
type fakeTranslator struct {
	needsTrace bool
	got        []domain.FailureContext
}

func (t *fakeTranslator) NeedsTrace(error) bool { return t.needsTrace }

func (t *fakeTranslator) Translate(err error, tctx domain.FailureContext) *domain.TransactionError {
	t.got = append(t.got, tctx)
	return &domain.TransactionError{Kind: domain.RevertedNoReason, Message: domain.DefaultTransactionMessage, Base: err}
}

// fakeTrees returns a root-only tree and remembers the input.
type fakeTrees struct {
	root   domain.RootCall
	frames int
	flat   int
}

func (b *fakeTrees) FromStructLogs(root domain.RootCall, frames iter.Seq[domain.TraceFrame]) (*domain.CallTreeNode, error) {
	b.root = root
	b.frames = len(slices.Collect(frames))
	return &domain.CallTreeNode{CallType: root.CallType, Address: root.Address, Succeeded: true}, nil
}

func (b *fakeTrees) FromParityTraces(traces []domain.ParityTrace) (*domain.CallTreeNode, error) {
	b.flat = len(traces)
	return &domain.CallTreeNode{CallType: domain.CallTypeCall, Succeeded: true}, nil
}

// fakeClient is an in-memory node.
type fakeClient struct {
	endpoint     domain.NodeEndpoint
	chainID      uint64
	chainIDCalls int
	closed       int
	block        *domain.Block

	snapshots []string
	storage   map[common.Hash]common.Hash
	balances  map[common.Address]*big.Int

	callErr   error
	trace     *domain.TransactionTrace
	flat      []domain.ParityTrace
	tx        *domain.Transaction
	receipt   *domain.Receipt
	resets    []*uint64
	baseFees  []uint64
	sent      []domain.CallRequest
	automine  bool
	timestamp uint64
}

func newFakeClient(ep domain.NodeEndpoint, chainID uint64) *fakeClient {
	return &fakeClient{
		endpoint: ep,
		chainID:  chainID,
		storage:  map[common.Hash]common.Hash{},
		balances: map[common.Address]*big.Int{},
		automine: true,
	}
}

func (c *fakeClient) Endpoint() domain.NodeEndpoint { return c.endpoint }
func (c *fakeClient) Close()                        { c.closed++ }
func (c *fakeClient) ClientVersion() string         { return "anvil/v1.0.0" }
func (c *fakeClient) RelaxedHeaders() bool          { return false }

func (c *fakeClient) ChainID(context.Context) (uint64, error) {
	c.chainIDCalls++
	return c.chainID, nil
}

func (c *fakeClient) BlockNumber(context.Context) (uint64, error) { return 7, nil }

func (c *fakeClient) GetBlock(context.Context, string) (*domain.Block, error) {
	if c.block == nil {
		return &domain.Block{}, nil
	}
	b := *c.block
	return &b, nil
}

func (c *fakeClient) GetBalance(_ context.Context, addr common.Address, _ string) (*big.Int, error) {
	if b, ok := c.balances[addr]; ok {
		return b, nil
	}
	return new(big.Int), nil
}

func (c *fakeClient) GetCode(context.Context, common.Address, string) ([]byte, error) { return nil, nil }

func (c *fakeClient) GetStorageAt(_ context.Context, _ common.Address, slot common.Hash, _ string) (common.Hash, error) {
	return c.storage[slot], nil
}

func (c *fakeClient) SetBalance(_ context.Context, addr common.Address, amount *big.Int) error {
	c.balances[addr] = amount
	return nil
}

func (c *fakeClient) SetCode(context.Context, common.Address, []byte) error { return nil }

func (c *fakeClient) SetStorageAt(_ context.Context, _ common.Address, slot, value common.Hash) error {
	c.storage[slot] = value
	return nil
}

func (c *fakeClient) Snapshot(context.Context) (string, error) {
	id := "0x" + itoa(len(c.snapshots))
	c.snapshots = append(c.snapshots, id)
	return id, nil
}

func (c *fakeClient) Revert(_ context.Context, id string) (bool, error) {
	return slices.Contains(c.snapshots, id), nil
}

func (c *fakeClient) Mine(context.Context, uint64) error { return nil }

func (c *fakeClient) SetAutomine(_ context.Context, enabled bool) error {
	c.automine = enabled
	return nil
}

func (c *fakeClient) GetAutomine(context.Context) (bool, error)      { return c.automine, nil }
func (c *fakeClient) SetIntervalMining(context.Context, uint64) error { return nil }

func (c *fakeClient) SetNextBlockTimestamp(_ context.Context, ts uint64) error {
	c.timestamp = ts
	return nil
}

func (c *fakeClient) SetBlockGasLimit(context.Context, uint64) (bool, error) { return true, nil }

func (c *fakeClient) SetNextBlockBaseFee(_ context.Context, fee uint64) error {
	c.baseFees = append(c.baseFees, fee)
	return nil
}

func (c *fakeClient) Impersonate(context.Context, common.Address) error       { return nil }
func (c *fakeClient) StopImpersonating(context.Context, common.Address) error { return nil }

func (c *fakeClient) Reset(_ context.Context, _ string, block *uint64) error {
	c.resets = append(c.resets, block)
	return nil
}

func (c *fakeClient) EthCall(context.Context, domain.CallRequest, string) ([]byte, error) {
	if c.callErr != nil {
		return nil, c.callErr
	}
	return []byte{0x01}, nil
}

func (c *fakeClient) SendTransaction(_ context.Context, req domain.CallRequest) (common.Hash, error) {
	c.sent = append(c.sent, req)
	if c.callErr != nil {
		return common.Hash{}, c.callErr
	}
	return common.HexToHash("0x01"), nil
}

func (c *fakeClient) TransactionReceipt(context.Context, common.Hash) (*domain.Receipt, error) {
	if c.receipt == nil {
		return &domain.Receipt{Status: 1}, nil
	}
	return c.receipt, nil
}

func (c *fakeClient) TransactionByHash(context.Context, common.Hash) (*domain.Transaction, error) {
	return c.tx, nil
}

func (c *fakeClient) TraceTransaction(context.Context, common.Hash) (*domain.TransactionTrace, error) {
	return c.trace, nil
}

func (c *fakeClient) TraceCall(context.Context, domain.CallRequest, string) (*domain.TransactionTrace, error) {
	return c.trace, nil
}

func (c *fakeClient) TraceTransactionFlat(context.Context, common.Hash) ([]domain.ParityTrace, error) {
	return c.flat, nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

var _ usecase.NodeClient = (*fakeClient)(nil)

// recordingProgress records progress events and messages.
type recordingProgress struct {
	events []usecase.ProgressEvent
	infos  []string
	errors []string
}

func (r *recordingProgress) OnProgress(_ context.Context, event usecase.ProgressEvent) {
	r.events = append(r.events, event)
}

func (r *recordingProgress) Info(message string)  { r.infos = append(r.infos, message) }
func (r *recordingProgress) Error(message string) { r.errors = append(r.errors, message) }
