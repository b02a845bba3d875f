package anvil

import (
	"strconv"

	"github.com/samber/lo"
	"github.com/trebuchet-org/treb-anvil/internal/domain/config"
)

const (
	// DerivationPath is the account derivation base used for test accounts.
	DerivationPath = "m/44'/60'/0'"

	DefaultMnemonic         = "test test test test test test test test test test test junk"
	DefaultNumberOfAccounts = 10
)

// ecosystems whose chains need anvil's optimism compatibility mode
var optimismEcosystems = []string{"optimism", "base"}

// BuildCommand maps launch options to anvil arguments.
func BuildCommand(opts config.LaunchOptions) []string {
	node := opts.Node
	mnemonic := lo.Ternary(node.Mnemonic != "", node.Mnemonic, DefaultMnemonic)
	accounts := lo.Ternary(node.NumberOfAccounts > 0, node.NumberOfAccounts, DefaultNumberOfAccounts)

	args := []string{
		"--port", strconv.Itoa(opts.Port),
		"--mnemonic", mnemonic,
		"--accounts", strconv.Itoa(accounts),
		"--derivation-path", DerivationPath,
		"--steps-tracing",
		"--block-base-fee-per-gas", strconv.FormatUint(node.BaseFee, 10),
	}

	if node.GasPrice > 0 {
		args = append(args, "--gas-price", strconv.FormatUint(node.GasPrice, 10))
	}
	if !node.AutoMine {
		args = append(args, "--no-mining")
	}
	if node.BlockTime != nil {
		args = append(args, "--block-time", strconv.Itoa(*node.BlockTime))
	}
	if node.DisableBlockGasLimit {
		args = append(args, "--disable-block-gas-limit")
	}

	hardfork := node.EVMVersion
	if opts.Fork != nil && opts.Fork.EVMVersion != "" {
		hardfork = opts.Fork.EVMVersion
	}
	if hardfork != "" {
		args = append(args, "--hardfork", hardfork)
	}

	if lo.Contains(optimismEcosystems, opts.Ecosystem) {
		args = append(args, "--optimism")
	}

	if opts.Fork != nil {
		args = append(args, "--fork-url", opts.ForkURL)
		if opts.Fork.BlockNumber != nil {
			args = append(args, "--fork-block-number", strconv.FormatUint(*opts.Fork.BlockNumber, 10))
		}
	}

	return args
}
