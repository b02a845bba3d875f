package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNetworkChoice(t *testing.T) {
	n, err := ParseNetworkChoice("ethereum:mainnet-fork")
	require.NoError(t, err)
	assert.Equal(t, NetworkChoice{Ecosystem: "ethereum", Network: "mainnet-fork"}, n)
	assert.True(t, n.IsFork())
	assert.Equal(t, "mainnet", n.UpstreamNetwork())
	assert.Equal(t, "ethereum:mainnet-fork", n.String())

	n, err = ParseNetworkChoice("sepolia")
	require.NoError(t, err)
	assert.Equal(t, "ethereum", n.Ecosystem)
	assert.False(t, n.IsFork())

	n, err = ParseNetworkChoice("")
	require.NoError(t, err)
	assert.Equal(t, LocalNetwork, n.Network)

	for _, bad := range []string{"a:b:c", ":mainnet", "ethereum:"} {
		_, err := ParseNetworkChoice(bad)
		assert.Error(t, err, bad)
	}
}

func TestForkSpecMerge(t *testing.T) {
	block := uint64(100)
	spec := ForkSpec{Ecosystem: "ethereum", Network: "mainnet", UpstreamProvider: "mainnet", BlockNumber: &block}

	assert.Equal(t, spec, spec.Merge(nil))

	override := uint64(200)
	merged := spec.Merge(&ForkOverride{BlockNumber: &override, EVMVersion: "cancun"})
	assert.Equal(t, "mainnet", merged.UpstreamProvider)
	require.NotNil(t, merged.BlockNumber)
	assert.Equal(t, uint64(200), *merged.BlockNumber)
	assert.Equal(t, "cancun", merged.EVMVersion)

	// the override's pointer is not shared
	override = 300
	assert.Equal(t, uint64(200), *merged.BlockNumber)
	assert.Equal(t, uint64(100), *spec.BlockNumber)
}
