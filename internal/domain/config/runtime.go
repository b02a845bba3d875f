package config

import (
	"time"

	"github.com/trebuchet-org/treb-anvil/internal/domain"
)

// RuntimeConfig represents the complete runtime configuration
// This is injected into use cases and contains all resolved settings
type RuntimeConfig struct {
	// Core settings
	ProjectRoot string
	DataDir     string

	// Context settings
	Network domain.NetworkChoice

	// Execution settings
	Debug   bool
	JSON    bool
	Timeout time.Duration

	Node NodeConfig

	// Resolved foundry.toml, nil when the project has none
	FoundryConfig *FoundryConfig
}

// NodeConfig configures how nodes are launched and talked to.
type NodeConfig struct {
	// Host is "auto", a host[:port] or a URL. Empty behaves like "auto".
	Host          string `mapstructure:"host"`
	ManageProcess bool   `mapstructure:"manage_process"`
	BinaryPath    string `mapstructure:"binary_path"`

	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	ForkRequestTimeout time.Duration `mapstructure:"fork_request_timeout"`
	ProcessAttempts    int           `mapstructure:"process_attempts"`

	BaseFee     uint64 `mapstructure:"base_fee"`
	PriorityFee uint64 `mapstructure:"priority_fee"`
	GasPrice    uint64 `mapstructure:"gas_price"`

	DisableBlockGasLimit bool   `mapstructure:"disable_block_gas_limit"`
	AutoMine             bool   `mapstructure:"auto_mine"`
	BlockTime            *int   `mapstructure:"block_time"`
	EVMVersion           string `mapstructure:"evm_version"`

	Mnemonic         string `mapstructure:"mnemonic"`
	NumberOfAccounts int    `mapstructure:"number_of_accounts"`

	// Fork is keyed by ecosystem, then network (e.g. fork.ethereum.mainnet).
	Fork map[string]map[string]ForkConfig `mapstructure:"fork"`
}

// ForkConfig is the statically configured fork settings for one network.
type ForkConfig struct {
	UpstreamProvider string  `mapstructure:"upstream_provider"`
	BlockNumber      *uint64 `mapstructure:"block_number"`
	EVMVersion       string  `mapstructure:"evm_version"`
}

// ForkSpec returns the configured fork spec for a network, or an empty one.
func (c NodeConfig) ForkSpec(ecosystem, network string) domain.ForkSpec {
	spec := domain.ForkSpec{Ecosystem: ecosystem, Network: network}
	fc, ok := c.Fork[ecosystem][network]
	if !ok {
		return spec
	}
	spec.UpstreamProvider = fc.UpstreamProvider
	if fc.BlockNumber != nil {
		n := *fc.BlockNumber
		spec.BlockNumber = &n
	}
	spec.EVMVersion = fc.EVMVersion
	return spec
}

// IsAuto reports whether the host selects a free port on connect.
func (c NodeConfig) IsAuto() bool {
	return c.Host == "" || c.Host == domain.AutoHost
}

// LaunchOptions is everything that shapes an anvil command line.
type LaunchOptions struct {
	Port      int
	Ecosystem string
	Node      NodeConfig

	// Fork is nil for a plain local node.
	Fork    *domain.ForkSpec
	ForkURL string
}
