package fork

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/trebuchet-org/treb-anvil/internal/adapters/rpc"
	"github.com/trebuchet-org/treb-anvil/internal/domain"
	"github.com/trebuchet-org/treb-anvil/internal/domain/config"
)

// EndpointSource resolves named RPC endpoints, e.g. foundry.toml rpc_endpoints.
type EndpointSource interface {
	Endpoint(name string) (string, bool)
}

// Reconciler resolves fork upstreams, detects hardforks and checks that a
// fork's genesis matches its upstream.
type Reconciler struct {
	node      config.NodeConfig
	endpoints EndpointSource
	hardforks HardforkTable
	log       *slog.Logger
}

// NewReconciler creates a reconciler
func NewReconciler(cfg *config.RuntimeConfig, hardforks HardforkTable, log *slog.Logger) *Reconciler {
	var endpoints EndpointSource = cfg.FoundryConfig
	if cfg.FoundryConfig == nil {
		endpoints = &config.FoundryConfig{}
	}
	return &Reconciler{
		node:      cfg.Node,
		endpoints: endpoints,
		hardforks: hardforks,
		log:       log.With("component", "fork"),
	}
}

// WithEndpoints replaces the named endpoint source.
func (r *Reconciler) WithEndpoints(src EndpointSource) *Reconciler {
	r.endpoints = src
	return r
}

// ResolveUpstream builds the fork spec for a forked network and resolves its
// upstream URL. A per-connection override wins over the configured fork
// table, which wins over the network's own rpc endpoint.
func (r *Reconciler) ResolveUpstream(ctx context.Context, network domain.NetworkChoice, override *domain.ForkOverride) (domain.ForkSpec, string, error) {
	upstream := network.UpstreamNetwork()
	spec := r.node.ForkSpec(network.Ecosystem, upstream).Merge(override)

	var url string
	if spec.UpstreamProvider != "" {
		resolved, ok := r.lookup(spec.UpstreamProvider)
		if !ok {
			return spec, "", domain.ForkConfigurationError{
				Reason: fmt.Sprintf("upstream provider %q for %s is not a URL or a known rpc endpoint", spec.UpstreamProvider, network),
			}
		}
		url = resolved
	} else {
		candidates := []string{
			upstream,
			network.Ecosystem + "-" + upstream,
			network.Ecosystem + "_" + upstream,
		}
		for _, name := range candidates {
			if resolved, ok := r.lookup(name); ok {
				url = resolved
				break
			}
		}
		if url == "" {
			return spec, "", domain.ForkConfigurationError{
				Reason: fmt.Sprintf("no upstream provider for %s; set fork.%s.%s.upstream_provider or add rpc_endpoints.%s to foundry.toml",
					network, network.Ecosystem, upstream, upstream),
			}
		}
	}

	if _, err := domain.ParseEndpoint(url); err != nil {
		return spec, "", domain.ForkConfigurationError{Reason: fmt.Sprintf("upstream URL %q is unusable: %v", url, err)}
	}

	r.log.Debug("resolved fork upstream", "network", network.String(), "upstream", url)
	return spec, url, nil
}

func (r *Reconciler) lookup(provider string) (string, bool) {
	if strings.Contains(provider, "://") {
		return provider, true
	}
	url, ok := r.endpoints.Endpoint(provider)
	return url, ok && url != ""
}

// CheckUpstream fails if the upstream URL points at the fork's own endpoint.
func (r *Reconciler) CheckUpstream(upstreamURL string, local domain.NodeEndpoint) error {
	if local.IsZero() {
		return nil
	}
	if SameEndpoint(upstreamURL, local.URL()) {
		return domain.ForkConfigurationError{
			Reason: fmt.Sprintf("upstream %s is the fork's own endpoint %s", upstreamURL, local.URL()),
		}
	}
	return nil
}

// SameEndpoint compares two URLs ignoring scheme and treating localhost as
// the loopback address.
func SameEndpoint(a, b string) bool {
	return normalize(a) == normalize(b)
}

func normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "localhost", domain.DefaultHost)
	if ep, err := domain.ParseEndpoint(s); err == nil {
		host := ep.Host
		if host == "0.0.0.0" || host == "::1" {
			host = domain.DefaultHost
		}
		return fmt.Sprintf("%s:%d", host, ep.Port)
	}
	for _, prefix := range []string{"http://", "https://", "ws://", "wss://"} {
		s = strings.TrimPrefix(s, prefix)
	}
	return strings.TrimSuffix(s, "/")
}

// DetectHardfork returns the hardfork of the spec's fork block, caching it
// onto the spec. Specs with an explicit EVM version are returned as is.
func (r *Reconciler) DetectHardfork(spec *domain.ForkSpec) (string, bool) {
	if spec.EVMVersion != "" {
		return spec.EVMVersion, true
	}
	if spec.BlockNumber == nil {
		return "", false
	}
	name, ok := r.hardforks.Lookup(spec.Ecosystem, spec.Network, *spec.BlockNumber)
	if !ok {
		return "", false
	}
	spec.EVMVersion = name
	return name, true
}

// VerifyGenesis logs a warning when the fork's genesis block differs from
// the upstream's. It never fails.
func (r *Reconciler) VerifyGenesis(ctx context.Context, local domain.NodeEndpoint, upstreamURL string) {
	upstream, err := domain.ParseEndpoint(upstreamURL)
	if err != nil {
		r.log.Warn("cannot verify fork genesis", "upstream", upstreamURL, "error", err)
		return
	}

	hashes := make([]string, 0, 2)
	for _, ep := range []domain.NodeEndpoint{local, upstream} {
		hash, err := r.genesisHash(ctx, ep)
		if err != nil {
			r.log.Warn("cannot verify fork genesis", "upstream", upstreamURL, "error", err)
			return
		}
		hashes = append(hashes, hash)
	}

	if hashes[0] != hashes[1] {
		r.log.Warn("forked genesis block does not match upstream",
			"fork", hashes[0], "upstream", hashes[1], "upstream_url", upstreamURL)
		return
	}
	r.log.Debug("fork genesis matches upstream", "hash", hashes[0])
}

func (r *Reconciler) genesisHash(ctx context.Context, ep domain.NodeEndpoint) (string, error) {
	timeout := r.node.ForkRequestTimeout
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	client, err := rpc.Dial(ctx, ep, timeout, r.log)
	if err != nil {
		return "", err
	}
	defer client.Close()

	block, err := rpc.NewConnection(client, "", true).GetBlock(ctx, rpc.BlockID(0))
	if err != nil {
		return "", fmt.Errorf("genesis of %s: %w", ep, err)
	}
	return block.Hash.Hex(), nil
}
