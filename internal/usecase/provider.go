package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/trebuchet-org/treb-anvil/internal/domain"
	"github.com/trebuchet-org/treb-anvil/internal/domain/config"
)

// HostEnvVar overrides every other endpoint setting when set.
const HostEnvVar = "TREB_ANVIL_HOST"

const (
	DefaultRequestTimeout     = 30 * time.Second
	DefaultForkRequestTimeout = 300 * time.Second
	DefaultProcessAttempts    = 5
	DefaultListenTimeout      = 10 * time.Second
)

// Provider manages one logical connection to an anvil node, spawning the
// process when nothing is listening at the configured endpoint.
type Provider struct {
	cfg        *config.RuntimeConfig
	network    domain.NetworkChoice
	allocator  PortAllocator
	supervisor NodeSupervisor
	connector  Connector
	forker     Forker
	translator ErrorTranslator
	trees      CallTreeBuilder
	log        *slog.Logger

	getenv        func(string) string
	retryInterval time.Duration
	listenTimeout time.Duration

	mu          sync.Mutex
	conn        NodeClient
	process     *domain.ProcessHandle
	endpoint    domain.NodeEndpoint
	chainID     uint64
	fork        *domain.ForkSpec
	upstreamURL string
}

// NewProvider creates a provider for the configured network. The forker
// is only consulted for fork networks.
func NewProvider(
	cfg *config.RuntimeConfig,
	allocator PortAllocator,
	supervisor NodeSupervisor,
	connector Connector,
	forker Forker,
	translator ErrorTranslator,
	trees CallTreeBuilder,
	log *slog.Logger,
) *Provider {
	return &Provider{
		cfg:           cfg,
		network:       cfg.Network,
		allocator:     allocator,
		supervisor:    supervisor,
		connector:     connector,
		forker:        forker,
		translator:    translator,
		trees:         trees,
		log:           log.With("component", "provider", "network", cfg.Network.String()),
		getenv:        os.Getenv,
		retryInterval: 500 * time.Millisecond,
		listenTimeout: DefaultListenTimeout,
	}
}

// ForNetwork returns an unconnected provider for another network that
// shares this provider's collaborators, including the port registry.
func (p *Provider) ForNetwork(network domain.NetworkChoice) *Provider {
	return &Provider{
		cfg:           p.cfg,
		network:       network,
		allocator:     p.allocator,
		supervisor:    p.supervisor,
		connector:     p.connector,
		forker:        p.forker,
		translator:    p.translator,
		trees:         p.trees,
		log:           p.log.With("network", network.String()),
		getenv:        p.getenv,
		retryInterval: p.retryInterval,
		listenTimeout: p.listenTimeout,
	}
}

// WithEnv replaces the environment lookup.
func (p *Provider) WithEnv(getenv func(string) string) *Provider {
	p.getenv = getenv
	return p
}

// WithTimings overrides the pause between start attempts and the time a
// started process gets to report it is listening.
func (p *Provider) WithTimings(retryInterval, listenTimeout time.Duration) *Provider {
	p.retryInterval = retryInterval
	p.listenTimeout = listenTimeout
	return p
}

func (p *Provider) Network() domain.NetworkChoice {
	return p.network
}

// IsConnected reports whether a verified connection is live.
func (p *Provider) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn != nil
}

// Endpoint is the connected endpoint, or the zero endpoint.
func (p *Provider) Endpoint() domain.NodeEndpoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.endpoint
}

// ChainID is the cached chain ID. A provider that has never observed one
// reports the local anvil chain ID.
func (p *Provider) ChainID() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.chainID == 0 {
		return domain.LocalChainID
	}
	return p.chainID
}

// ForkSpec is the resolved fork spec of a connected fork provider.
func (p *Provider) ForkSpec() *domain.ForkSpec {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fork == nil {
		return nil
	}
	spec := *p.fork
	return &spec
}

// Connect attaches to a node at the configured endpoint, or starts one.
// override is only used by fork networks.
func (p *Provider) Connect(ctx context.Context, override *domain.ForkOverride) error {
	return p.connect(ctx, override, true)
}

// Attach connects to an already running node and never starts one.
func (p *Provider) Attach(ctx context.Context) error {
	return p.connect(ctx, nil, false)
}

func (p *Provider) connect(ctx context.Context, override *domain.ForkOverride, spawn bool) (err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil {
		return nil
	}
	defer func() {
		if err != nil {
			p.fork = nil
			p.upstreamURL = ""
		}
	}()

	if p.network.IsFork() {
		if err := p.resolveFork(ctx, override); err != nil {
			return err
		}
	}

	host, auto := p.resolveHost()
	if auto && !spawn {
		host = domain.LocalEndpoint(domain.DefaultPort).URL()
		auto = false
	}

	var preferred *int
	if !auto {
		ep, err := domain.ParseEndpoint(host)
		if err != nil {
			return fmt.Errorf("invalid node host %q: %w", host, err)
		}
		if p.fork != nil {
			if err := p.forker.CheckUpstream(p.upstreamURL, ep); err != nil {
				return err
			}
		}

		conn, err := p.connector.TryConnect(ctx, ep, p.requestTimeout())
		if err != nil {
			return err
		}
		if conn != nil {
			p.log.Info("connected to running node", "endpoint", ep.URL(), "client", conn.ClientVersion())
			p.attach(ctx, conn, nil)
			return nil
		}

		switch {
		case !ep.IsLocal():
			return fmt.Errorf("%w: %s", domain.ErrRemoteUnreachable, ep.URL())
		case !spawn:
			return fmt.Errorf("%w: nothing is listening at %s", domain.ErrNotConnected, ep.URL())
		case !p.cfg.Node.ManageProcess:
			return fmt.Errorf("%w: nothing is listening at %s and process management is disabled", domain.ErrNotConnected, ep.URL())
		}
		port := ep.Port
		preferred = &port
	} else if !p.cfg.Node.ManageProcess {
		return fmt.Errorf("host %q needs process management to be enabled", domain.AutoHost)
	}

	return p.spawn(ctx, preferred)
}

// resolveHost applies the endpoint precedence: environment override, then
// configured host. The second result is true for automatic port selection.
func (p *Provider) resolveHost() (string, bool) {
	if env := p.getenv(HostEnvVar); env != "" {
		return env, env == domain.AutoHost
	}
	if p.cfg.Node.IsAuto() {
		return "", true
	}
	return p.cfg.Node.Host, false
}

func (p *Provider) resolveFork(ctx context.Context, override *domain.ForkOverride) error {
	if p.forker == nil {
		return domain.ForkConfigurationError{Reason: "fork network " + p.network.String() + " without fork support"}
	}
	spec, url, err := p.forker.ResolveUpstream(ctx, p.network, override)
	if err != nil {
		return err
	}
	if hf, ok := p.forker.DetectHardfork(&spec); ok {
		p.log.Debug("detected hardfork", "hardfork", hf)
	}
	p.fork = &spec
	p.upstreamURL = url
	return nil
}

func (p *Provider) spawn(ctx context.Context, preferred *int) error {
	attempts := p.cfg.Node.ProcessAttempts
	if attempts <= 0 {
		attempts = DefaultProcessAttempts
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.retryInterval), uint64(attempts-1)),
		ctx,
	)

	op := func() error {
		err := p.startOnce(ctx, preferred)
		if err != nil && isPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		p.log.Info("retrying node startup", "error", err, "in", next)
	}

	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return fmt.Errorf("failed to start node: %w", err)
	}
	return nil
}

// startOnce runs one allocate, spawn, wait and handshake cycle.
func (p *Provider) startOnce(ctx context.Context, preferred *int) error {
	port, err := p.allocator.Allocate(preferred, domain.DefaultPort)
	if err != nil {
		return err
	}
	ep := domain.LocalEndpoint(port)

	if p.fork != nil {
		if err := p.forker.CheckUpstream(p.upstreamURL, ep); err != nil {
			return err
		}
	}

	args := p.supervisor.BuildCommand(config.LaunchOptions{
		Port:      port,
		Ecosystem: p.network.Ecosystem,
		Node:      p.cfg.Node,
		Fork:      p.fork,
		ForkURL:   p.upstreamURL,
	})

	handle, err := p.supervisor.Start(ctx, port, args)
	if err != nil {
		return err
	}

	if err := p.supervisor.WaitUntilListening(ctx, handle, p.listenTimeout); err != nil {
		p.stop(handle)
		return err
	}

	conn, err := p.connector.TryConnect(ctx, ep, p.requestTimeout())
	if err != nil {
		p.stop(handle)
		return err
	}
	if conn == nil {
		p.stop(handle)
		return domain.HandshakeTimeoutError{Endpoint: ep.URL(), Timeout: p.listenTimeout}
	}

	p.log.Info("started node", "endpoint", ep.URL(), "pid", handle.PID)
	p.attach(ctx, conn, handle)
	return nil
}

// isPermanent reports whether retrying the start could not help.
func isPermanent(err error) bool {
	var (
		notInstalled domain.NodeNotInstalledError
		occupied     domain.OccupiedPortError
		exhausted    domain.PortExhaustedError
		forkConfig   domain.ForkConfigurationError
	)
	return errors.As(err, &notInstalled) ||
		errors.As(err, &occupied) ||
		errors.As(err, &exhausted) ||
		errors.As(err, &forkConfig) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (p *Provider) attach(ctx context.Context, conn NodeClient, handle *domain.ProcessHandle) {
	p.conn = conn
	p.process = handle
	p.endpoint = conn.Endpoint()

	if p.chainID == 0 {
		id, err := conn.ChainID(ctx)
		if err != nil {
			p.log.Warn("failed to read chain ID", "error", err)
		} else {
			p.chainID = id
		}
	}

	if p.fork != nil {
		p.forker.VerifyGenesis(ctx, p.endpoint, p.upstreamURL)
	}
}

func (p *Provider) stop(handle *domain.ProcessHandle) {
	if err := p.supervisor.Stop(handle); err != nil {
		p.log.Warn("failed to stop node", "pid", handle.PID, "error", err)
	}
}

// Disconnect closes the connection and stops a spawned process. It is
// safe to call at any time, any number of times.
func (p *Provider) Disconnect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	keepChainID := p.fork == nil && (p.endpoint.IsZero() || p.endpoint.IsLocal())

	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}

	var err error
	if p.process != nil {
		err = p.supervisor.Stop(p.process)
		p.process = nil
	}

	p.endpoint = domain.NodeEndpoint{}
	p.fork = nil
	p.upstreamURL = ""
	if !keepChainID {
		p.chainID = 0
	}

	if err != nil {
		return fmt.Errorf("failed to stop node: %w", err)
	}
	return nil
}

func (p *Provider) requestTimeout() time.Duration {
	if p.network.IsFork() {
		if p.cfg.Node.ForkRequestTimeout > 0 {
			return p.cfg.Node.ForkRequestTimeout
		}
		return DefaultForkRequestTimeout
	}
	if p.cfg.Node.RequestTimeout > 0 {
		return p.cfg.Node.RequestTimeout
	}
	return DefaultRequestTimeout
}

func (p *Provider) client() (NodeClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil, domain.ErrNotConnected
	}
	return p.conn, nil
}

// Status describes the provider and, when connected, the node.
func (p *Provider) Status(ctx context.Context) domain.NodeStatus {
	p.mu.Lock()
	status := domain.NodeStatus{
		Network:   p.network.String(),
		Connected: p.conn != nil,
		Managed:   p.process != nil,
		ChainID:   domain.LocalChainID,
	}
	if p.chainID != 0 {
		status.ChainID = p.chainID
	}
	if !p.endpoint.IsZero() {
		status.Endpoint = p.endpoint.URL()
	}
	if p.process != nil {
		status.PID = p.process.PID
		status.LogFile = p.process.LogFile
	}
	if p.fork != nil {
		status.ForkURL = p.upstreamURL
		status.Hardfork = p.fork.EVMVersion
		if p.fork.BlockNumber != nil {
			status.ForkBlock = *p.fork.BlockNumber
		}
	}
	conn := p.conn
	p.mu.Unlock()

	if conn == nil {
		return status
	}
	status.ClientVersion = conn.ClientVersion()
	status.RelaxedHeaders = conn.RelaxedHeaders()
	if n, err := conn.BlockNumber(ctx); err == nil {
		status.BlockNumber = n
	} else {
		p.log.Debug("failed to read block number", "error", err)
	}
	return status
}

// Snapshot records the chain state and returns its id.
func (p *Provider) Snapshot(ctx context.Context) (string, error) {
	c, err := p.client()
	if err != nil {
		return "", err
	}
	return c.Snapshot(ctx)
}

// Restore reverts to a snapshot. It reports false for an unknown id.
func (p *Provider) Restore(ctx context.Context, id string) (bool, error) {
	c, err := p.client()
	if err != nil {
		return false, err
	}
	return c.Revert(ctx, id)
}

// Mine mines n blocks, at least one.
func (p *Provider) Mine(ctx context.Context, n uint64) error {
	c, err := p.client()
	if err != nil {
		return err
	}
	return c.Mine(ctx, max(n, 1))
}

func (p *Provider) SetTimestamp(ctx context.Context, timestamp uint64) error {
	c, err := p.client()
	if err != nil {
		return err
	}
	return c.SetNextBlockTimestamp(ctx, timestamp)
}

func (p *Provider) SetAutoMine(ctx context.Context, enabled bool) error {
	c, err := p.client()
	if err != nil {
		return err
	}
	return c.SetAutomine(ctx, enabled)
}

func (p *Provider) AutoMine(ctx context.Context) (bool, error) {
	c, err := p.client()
	if err != nil {
		return false, err
	}
	return c.GetAutomine(ctx)
}

// SetBlockTime mines a block every seconds; zero disables interval mining.
func (p *Provider) SetBlockTime(ctx context.Context, seconds uint64) error {
	c, err := p.client()
	if err != nil {
		return err
	}
	return c.SetIntervalMining(ctx, seconds)
}

func (p *Provider) SetBlockGasLimit(ctx context.Context, limit uint64) error {
	c, err := p.client()
	if err != nil {
		return err
	}
	ok, err := c.SetBlockGasLimit(ctx, limit)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("node rejected block gas limit %d", limit)
	}
	return nil
}

func (p *Provider) GetBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	c, err := p.client()
	if err != nil {
		return nil, err
	}
	return c.GetBalance(ctx, addr, "latest")
}

func (p *Provider) SetBalance(ctx context.Context, addr common.Address, amount *big.Int) error {
	c, err := p.client()
	if err != nil {
		return err
	}
	return c.SetBalance(ctx, addr, amount)
}

func (p *Provider) GetCode(ctx context.Context, addr common.Address) ([]byte, error) {
	c, err := p.client()
	if err != nil {
		return nil, err
	}
	return c.GetCode(ctx, addr, "latest")
}

func (p *Provider) SetCode(ctx context.Context, addr common.Address, code []byte) error {
	c, err := p.client()
	if err != nil {
		return err
	}
	return c.SetCode(ctx, addr, code)
}

func (p *Provider) GetStorage(ctx context.Context, addr common.Address, slot common.Hash) (common.Hash, error) {
	c, err := p.client()
	if err != nil {
		return common.Hash{}, err
	}
	return c.GetStorageAt(ctx, addr, slot, "latest")
}

// SetStorage writes value left-padded to a full word.
func (p *Provider) SetStorage(ctx context.Context, addr common.Address, slot common.Hash, value []byte) error {
	if len(value) > common.HashLength {
		return fmt.Errorf("storage value is %d bytes, at most %d allowed", len(value), common.HashLength)
	}
	c, err := p.client()
	if err != nil {
		return err
	}
	return c.SetStorageAt(ctx, addr, slot, common.BytesToHash(value))
}

func (p *Provider) Impersonate(ctx context.Context, addr common.Address) error {
	c, err := p.client()
	if err != nil {
		return err
	}
	return c.Impersonate(ctx, addr)
}

func (p *Provider) StopImpersonating(ctx context.Context, addr common.Address) error {
	c, err := p.client()
	if err != nil {
		return err
	}
	return c.StopImpersonating(ctx, addr)
}

// GetBlock fetches a block. Forked nodes may omit the base fee, which is
// reported as zero.
func (p *Provider) GetBlock(ctx context.Context, id string) (*domain.Block, error) {
	c, err := p.client()
	if err != nil {
		return nil, err
	}
	block, err := c.GetBlock(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.network.IsFork() && block.BaseFeePerGas == nil {
		block.BaseFeePerGas = new(big.Int)
	}
	return block, nil
}

// ResetFork re-forks from the upstream at block, or at the fork block of the
// current spec when block is nil, then carries the upstream base fee into
// the next block.
func (p *Provider) ResetFork(ctx context.Context, block *uint64) error {
	c, err := p.client()
	if err != nil {
		return err
	}

	p.mu.Lock()
	if p.fork == nil {
		p.mu.Unlock()
		return domain.ErrNotForked
	}
	url, target := p.upstreamURL, block
	if target == nil {
		target = p.fork.BlockNumber
	}
	p.mu.Unlock()

	if err := c.Reset(ctx, url, target); err != nil {
		return fmt.Errorf("failed to reset fork: %w", err)
	}

	latest, err := c.GetBlock(ctx, "latest")
	if err != nil {
		return fmt.Errorf("failed to read forked block: %w", err)
	}
	if latest.BaseFeePerGas == nil || !latest.BaseFeePerGas.IsUint64() {
		p.log.Warn("forked block has no base fee, keeping the node default", "block", latest.Number)
	} else if err := c.SetNextBlockBaseFee(ctx, latest.BaseFeePerGas.Uint64()); err != nil {
		return fmt.Errorf("failed to set next block base fee: %w", err)
	}

	if block != nil {
		p.mu.Lock()
		if p.fork != nil {
			n := *block
			p.fork.BlockNumber = &n
		}
		p.mu.Unlock()
	}
	return nil
}

// Call runs eth_call. A failure is returned as a *domain.TransactionError,
// explained from a trace when the node gave no reason.
func (p *Provider) Call(ctx context.Context, req domain.CallRequest, block string) ([]byte, error) {
	c, err := p.client()
	if err != nil {
		return nil, err
	}
	if block == "" {
		block = "latest"
	}

	out, err := c.EthCall(ctx, req, block)
	if err == nil {
		return out, nil
	}

	fctx := domain.FailureContext{Contract: req.To}
	if p.translator.NeedsTrace(err) {
		trace, terr := c.TraceCall(ctx, req, block)
		if terr != nil {
			p.log.Debug("failed to trace reverted call", "error", terr)
		} else {
			fctx.Trace = trace.StructLogs
		}
	}
	return nil, p.translator.Translate(err, fctx)
}

// SendTransaction submits a transaction from an unlocked or impersonated
// sender. Dynamic-fee requests without a tip get the configured priority fee.
func (p *Provider) SendTransaction(ctx context.Context, req domain.CallRequest) (common.Hash, error) {
	c, err := p.client()
	if err != nil {
		return common.Hash{}, err
	}

	if req.MaxPriorityFeePerGas == nil && req.GasPrice == nil && p.cfg.Node.PriorityFee > 0 {
		req.MaxPriorityFeePerGas = (*hexutil.Big)(new(big.Int).SetUint64(p.cfg.Node.PriorityFee))
	}

	hash, err := c.SendTransaction(ctx, req)
	if err != nil {
		fctx := domain.FailureContext{Contract: req.To}
		if req.Nonce != nil {
			n := uint64(*req.Nonce)
			fctx.Nonce = &n
		}
		return common.Hash{}, p.translator.Translate(err, fctx)
	}
	return hash, nil
}

// GetReceipt fetches a receipt. A receipt recording a failed execution is
// returned together with the translated failure.
func (p *Provider) GetReceipt(ctx context.Context, hash common.Hash) (*domain.Receipt, error) {
	c, err := p.client()
	if err != nil {
		return nil, err
	}
	receipt, err := c.TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, err
	}
	if !receipt.Failed() {
		return receipt, nil
	}

	fctx := domain.FailureContext{TxHash: &hash, Contract: receipt.ContractAddress}
	trace, err := c.TraceTransaction(ctx, hash)
	if err != nil {
		p.log.Debug("failed to trace failed transaction", "tx", hash, "error", err)
	} else {
		fctx.Trace = trace.StructLogs
	}
	return receipt, p.translator.Translate(errors.New("execution reverted"), fctx)
}

func (p *Provider) GetTransactionTrace(ctx context.Context, hash common.Hash) (*domain.TransactionTrace, error) {
	c, err := p.client()
	if err != nil {
		return nil, err
	}
	return c.TraceTransaction(ctx, hash)
}

// GetCallTree rebuilds the call tree of a mined transaction, preferring
// the node's flat call traces over struct logs.
func (p *Provider) GetCallTree(ctx context.Context, hash common.Hash) (*domain.CallTreeNode, error) {
	c, err := p.client()
	if err != nil {
		return nil, err
	}

	flat, err := c.TraceTransactionFlat(ctx, hash)
	if err == nil && len(flat) > 0 {
		return p.trees.FromParityTraces(flat)
	}
	if err != nil {
		p.log.Debug("flat traces unavailable, using struct logs", "tx", hash, "error", err)
	}

	tx, err := c.TransactionByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	trace, err := c.TraceTransaction(ctx, hash)
	if err != nil {
		return nil, err
	}

	root := domain.RootCall{CallType: domain.CallTypeCall, Calldata: tx.Input}
	if tx.Value != nil {
		root.Value = tx.Value.ToInt()
	}
	if tx.To != nil {
		root.Address = *tx.To
	} else {
		root.CallType = domain.CallTypeCreate
		if receipt, err := c.TransactionReceipt(ctx, hash); err == nil && receipt.ContractAddress != nil {
			root.Address = *receipt.ContractAddress
		}
	}

	tree, err := p.trees.FromStructLogs(root, slices.Values(trace.StructLogs))
	if err != nil {
		return nil, err
	}
	if trace.Failed {
		tree.Succeeded = false
	}
	return tree, nil
}

// TraceCall traces a call without mining it and returns its call tree.
func (p *Provider) TraceCall(ctx context.Context, req domain.CallRequest, block string) (*domain.CallTreeNode, error) {
	c, err := p.client()
	if err != nil {
		return nil, err
	}
	if block == "" {
		block = "latest"
	}

	trace, err := c.TraceCall(ctx, req, block)
	if err != nil {
		return nil, err
	}

	root := domain.RootCall{CallType: domain.CallTypeCall, Calldata: req.Data}
	if req.To != nil {
		root.Address = *req.To
	} else {
		root.CallType = domain.CallTypeCreate
	}
	if req.Value != nil {
		root.Value = req.Value.ToInt()
	}
	if req.Gas != nil {
		root.Gas = uint64(*req.Gas)
	}

	tree, err := p.trees.FromStructLogs(root, slices.Values(trace.StructLogs))
	if err != nil {
		return nil, err
	}
	if trace.Failed {
		tree.Succeeded = false
	}
	return tree, nil
}
