package anvil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/trebuchet-org/treb-anvil/internal/domain"
	"github.com/trebuchet-org/treb-anvil/internal/domain/config"
)

func baseArgs(port string) []string {
	return []string{
		"--port", port,
		"--mnemonic", DefaultMnemonic,
		"--accounts", "10",
		"--derivation-path", "m/44'/60'/0'",
		"--steps-tracing",
		"--block-base-fee-per-gas", "0",
	}
}

func TestBuildCommand_Basic(t *testing.T) {
	args := BuildCommand(config.LaunchOptions{
		Port: 8545,
		Node: config.NodeConfig{AutoMine: true},
	})
	assert.Equal(t, baseArgs("8545"), args)
}

func TestBuildCommand_Mining(t *testing.T) {
	blockTime := 12
	args := BuildCommand(config.LaunchOptions{
		Port: 9000,
		Node: config.NodeConfig{AutoMine: false, BlockTime: &blockTime},
	})
	assert.Equal(t, append(baseArgs("9000"), "--no-mining", "--block-time", "12"), args)
}

func TestBuildCommand_Fees(t *testing.T) {
	args := BuildCommand(config.LaunchOptions{
		Port: 9000,
		Node: config.NodeConfig{
			AutoMine:             true,
			BaseFee:              7,
			GasPrice:             1000,
			DisableBlockGasLimit: true,
			Mnemonic:             "abandon abandon",
			NumberOfAccounts:     3,
		},
	})
	assert.Equal(t, []string{
		"--port", "9000",
		"--mnemonic", "abandon abandon",
		"--accounts", "3",
		"--derivation-path", "m/44'/60'/0'",
		"--steps-tracing",
		"--block-base-fee-per-gas", "7",
		"--gas-price", "1000",
		"--disable-block-gas-limit",
	}, args)
}

func TestBuildCommand_Fork(t *testing.T) {
	block := uint64(17_000_000)
	args := BuildCommand(config.LaunchOptions{
		Port:      9000,
		Ecosystem: "ethereum",
		Node:      config.NodeConfig{AutoMine: true, EVMVersion: "shanghai"},
		Fork: &domain.ForkSpec{
			BlockNumber: &block,
			EVMVersion:  "london",
		},
		ForkURL: "https://rpc.example.org",
	})
	assert.Equal(t, append(baseArgs("9000"),
		"--hardfork", "london",
		"--fork-url", "https://rpc.example.org",
		"--fork-block-number", "17000000",
	), args)
}

func TestBuildCommand_ForkWithoutBlock(t *testing.T) {
	args := BuildCommand(config.LaunchOptions{
		Port:    9000,
		Node:    config.NodeConfig{AutoMine: true},
		Fork:    &domain.ForkSpec{},
		ForkURL: "https://rpc.example.org",
	})
	assert.Equal(t, append(baseArgs("9000"), "--fork-url", "https://rpc.example.org"), args)
	assert.NotContains(t, args, "--fork-block-number")
}

func TestBuildCommand_Optimism(t *testing.T) {
	for _, eco := range []string{"optimism", "base"} {
		args := BuildCommand(config.LaunchOptions{Port: 1, Ecosystem: eco, Node: config.NodeConfig{AutoMine: true}})
		assert.Contains(t, args, "--optimism", eco)
	}
	args := BuildCommand(config.LaunchOptions{Port: 1, Ecosystem: "ethereum", Node: config.NodeConfig{AutoMine: true}})
	assert.NotContains(t, args, "--optimism")
}

func TestBuildCommand_NoForkFlagsWithoutFork(t *testing.T) {
	args := BuildCommand(config.LaunchOptions{Port: 8545, Node: config.NodeConfig{AutoMine: true}})
	for _, arg := range args {
		assert.NotEqual(t, "--fork-url", arg)
	}
}
