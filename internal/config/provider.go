package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/trebuchet-org/treb-anvil/internal/domain"
	"github.com/trebuchet-org/treb-anvil/internal/domain/config"
)

const (
	// EnvPrefix prefixes every environment override, e.g. TREB_ANVIL_NODE_HOST
	EnvPrefix = "TREB_ANVIL"

	// DataDirName is the per-project directory for logs and pid files
	DataDirName = ".treb-anvil"
)

// flagKeys maps CLI flags onto nested config keys. Other flags bind under
// their own name with dashes replaced.
var flagKeys = map[string]string{
	"host":             "node.host",
	"anvil-bin":        "node.binary_path",
	"process-attempts": "node.process_attempts",
	"base-fee":         "node.base_fee",
	"evm-version":      "node.evm_version",
	"block-time":       "node.block_time",
}

// Provider creates RuntimeConfig for Wire dependency injection
func Provider(v *viper.Viper) (*config.RuntimeConfig, error) {
	projectRoot := v.GetString("project_root")
	if projectRoot == "" {
		var err error
		projectRoot, err = FindProjectRoot()
		if err != nil {
			// foundry.toml is optional; fall back to the working directory
			if projectRoot, err = os.Getwd(); err != nil {
				return nil, err
			}
		}
	}

	network, err := domain.ParseNetworkChoice(v.GetString("network"))
	if err != nil {
		return nil, fmt.Errorf("invalid network: %w", err)
	}

	cfg := &config.RuntimeConfig{
		ProjectRoot: projectRoot,
		DataDir:     filepath.Join(projectRoot, DataDirName),
		Network:     network,
		Debug:       v.GetBool("debug"),
		JSON:        v.GetBool("json"),
		Timeout:     v.GetDuration("timeout"),
	}

	node, err := nodeConfig(v)
	if err != nil {
		return nil, err
	}
	cfg.Node = node

	foundryConfig, err := LoadFoundryConfig(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to load foundry config: %w", err)
	}
	cfg.FoundryConfig = foundryConfig

	return cfg, nil
}

// nodeConfig reads node.* key by key so environment overrides apply to
// nested keys.
func nodeConfig(v *viper.Viper) (config.NodeConfig, error) {
	node := config.NodeConfig{
		Host:                 v.GetString("node.host"),
		ManageProcess:        v.GetBool("node.manage_process"),
		BinaryPath:           v.GetString("node.binary_path"),
		RequestTimeout:       v.GetDuration("node.request_timeout"),
		ForkRequestTimeout:   v.GetDuration("node.fork_request_timeout"),
		ProcessAttempts:      v.GetInt("node.process_attempts"),
		BaseFee:              v.GetUint64("node.base_fee"),
		PriorityFee:          v.GetUint64("node.priority_fee"),
		GasPrice:             v.GetUint64("node.gas_price"),
		DisableBlockGasLimit: v.GetBool("node.disable_block_gas_limit"),
		AutoMine:             v.GetBool("node.auto_mine"),
		EVMVersion:           v.GetString("node.evm_version"),
		Mnemonic:             v.GetString("node.mnemonic"),
		NumberOfAccounts:     v.GetInt("node.number_of_accounts"),
	}

	if v.IsSet("node.block_time") {
		bt := v.GetInt("node.block_time")
		node.BlockTime = &bt
	}

	if err := v.UnmarshalKey("node.fork", &node.Fork); err != nil {
		return node, fmt.Errorf("invalid fork config: %w", err)
	}

	return node, nil
}

// FindProjectRoot walks up from current directory to find foundry.toml
func FindProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		foundryToml := filepath.Join(dir, "foundry.toml")
		if _, err := os.Stat(foundryToml); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not in a Foundry project (foundry.toml not found)")
		}
		dir = parent
	}
}

// SetupViper creates and configures a viper instance
func SetupViper(projectRoot string, cmd *cobra.Command) *viper.Viper {
	v := viper.New()

	// treb-anvil.toml / treb-anvil.yaml in the project root
	v.SetConfigName("treb-anvil")
	v.AddConfigPath(projectRoot)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	v.SetDefault("project_root", projectRoot)
	v.SetDefault("network", "ethereum:local")
	v.SetDefault("timeout", "5m")
	v.SetDefault("debug", false)
	v.SetDefault("json", false)

	v.SetDefault("node.host", domain.AutoHost)
	v.SetDefault("node.manage_process", true)
	v.SetDefault("node.binary_path", "anvil")
	v.SetDefault("node.request_timeout", "30s")
	v.SetDefault("node.fork_request_timeout", "300s")
	v.SetDefault("node.process_attempts", 5)
	v.SetDefault("node.base_fee", 0)
	v.SetDefault("node.priority_fee", 0)
	v.SetDefault("node.gas_price", 0)
	v.SetDefault("node.disable_block_gas_limit", false)
	v.SetDefault("node.auto_mine", true)
	v.SetDefault("node.evm_version", "")
	v.SetDefault("node.mnemonic", "")
	v.SetDefault("node.number_of_accounts", 10)

	// Try to read config file (ignore error if not found)
	_ = v.ReadInConfig()

	if cmd != nil {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			if err := v.BindPFlag(flagKey(f.Name), f); err != nil {
				panic(err)
			}
		})
	}

	return v
}

func flagKey(name string) string {
	if key, ok := flagKeys[name]; ok {
		return key
	}
	return strings.ReplaceAll(name, "-", "_")
}
