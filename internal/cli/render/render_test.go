package render

import (
	"bytes"
	"encoding/json"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/treb-anvil/internal/domain"
	"github.com/trebuchet-org/treb-anvil/internal/usecase"
)

func noColor(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })
}

func TestNodeRendererStatus(t *testing.T) {
	noColor(t)

	t.Run("running fork", func(t *testing.T) {
		var buf bytes.Buffer
		status := &domain.NodeStatus{
			Network:   "ethereum:mainnet-fork",
			Endpoint:  "http://127.0.0.1:8545",
			Connected: true,
			Managed:   true,
			PID:       4242,
			ChainID:   1,
			ForkURL:   "https://eth.example",
			ForkBlock: 19000000,
			Hardfork:  "cancun",
		}
		require.NoError(t, NewNodeRenderer(&buf, false).Render(status))

		out := buf.String()
		assert.Contains(t, out, "ethereum:mainnet-fork")
		assert.Contains(t, out, "Running (PID 4242)")
		assert.Contains(t, out, "http://127.0.0.1:8545")
		assert.Contains(t, out, "19000000")
		assert.Contains(t, out, "cancun")
	})

	t.Run("not running", func(t *testing.T) {
		var buf bytes.Buffer
		status := &domain.NodeStatus{Network: "ethereum:local", ChainID: domain.LocalChainID}
		require.NoError(t, NewNodeRenderer(&buf, false).Render(status))
		assert.Contains(t, buf.String(), "Not running")
		assert.NotContains(t, buf.String(), "Block")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		status := &domain.NodeStatus{Network: "ethereum:local", Connected: true, ChainID: 31337, BlockNumber: 7}
		require.NoError(t, NewNodeRenderer(&buf, true).Render(status))

		var decoded domain.NodeStatus
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, *status, decoded)
	})
}

func TestNodeRendererChain(t *testing.T) {
	noColor(t)

	var buf bytes.Buffer
	r := NewNodeRenderer(&buf, false)
	require.NoError(t, r.RenderChain(&usecase.ManageChainResult{Operation: "snapshot", Success: true, Message: "Snapshot 0x1 taken"}))
	require.NoError(t, r.RenderChain(&usecase.ManageChainResult{Operation: "revert", Message: "Snapshot 0x9 does not exist"}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "✅ Snapshot 0x1 taken", lines[0])
	assert.Equal(t, "⚠️  Snapshot 0x9 does not exist", lines[1])
}

func TestCallTree(t *testing.T) {
	noColor(t)

	a := common.HexToAddress("0xaaaa")
	b := common.HexToAddress("0xbbbb")
	c := common.HexToAddress("0xcccc")
	root := &domain.CallTreeNode{
		CallType:  domain.CallTypeCall,
		Address:   a,
		Calldata:  []byte{0xa9, 0x05, 0x9c, 0xbb, 0x01},
		GasCost:   21000,
		Succeeded: true,
		Children: []*domain.CallTreeNode{
			{CallType: domain.CallTypeStaticCall, Address: b, GasCost: 300, Succeeded: true},
			{
				CallType:   domain.CallTypeCall,
				Address:    c,
				Value:      big.NewInt(5),
				GasCost:    10,
				ReturnData: []byte{0xde, 0xad, 0xbe, 0xef},
			},
		},
	}

	out := CallTree(root)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "CALL "+a.Hex()+" 0xa9059cbb [21000 gas]")
	assert.Contains(t, lines[1], "STATICCALL "+b.Hex()+" [300 gas]")
	assert.Contains(t, lines[2], "value=5")
	assert.Contains(t, lines[2], "✗ reverted 0xdeadbeef")
}

func TestCallTreeCreateWithoutAddress(t *testing.T) {
	noColor(t)

	out := CallTree(&domain.CallTreeNode{CallType: domain.CallTypeCreate, GasCost: 1, Succeeded: false})
	assert.Contains(t, out, "CREATE <create>")
}

func TestShortHex(t *testing.T) {
	assert.Equal(t, "0xdeadbeef", shortHex("0xdeadbeef", 8))
	assert.Equal(t, "0x01234567…cdef0123", shortHex("0x0123456789abcdef0123456789abcdef0123", 8))
}
