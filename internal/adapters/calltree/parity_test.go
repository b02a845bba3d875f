package calltree

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/treb-anvil/internal/domain"
)

func parityCall(addr []uint32, callType, to, gasUsed string) domain.ParityTrace {
	return domain.ParityTrace{
		Type:         "call",
		TraceAddress: addr,
		Action: domain.ParityTraceAction{
			CallType: callType,
			To:       to,
			Gas:      "0x1388",
			Input:    "0x12345678",
			Value:    "0x0",
		},
		Result: &domain.ParityTraceResult{GasUsed: gasUsed, Output: "0x"},
	}
}

func TestFromParityTraces_Nested(t *testing.T) {
	traces := []domain.ParityTrace{
		parityCall(nil, "call", addrA.Hex(), "0x66"),
		parityCall([]uint32{0}, "call", addrB.Hex(), "0x66"),
		parityCall([]uint32{0, 0}, "staticcall", addrC.Hex(), "0x3"),
		parityCall([]uint32{1}, "delegatecall", addrC.Hex(), "0x10"),
	}

	root, err := FromParityTraces(traces)
	require.NoError(t, err)

	assert.Equal(t, addrA, root.Address)
	assert.Equal(t, uint64(0x66), root.GasCost)
	require.Len(t, root.Children, 2)

	b := root.Children[0]
	assert.Equal(t, addrB, b.Address)
	assert.Equal(t, common.FromHex("0x12345678"), b.Calldata)
	require.Len(t, b.Children, 1)
	assert.Equal(t, domain.CallTypeStaticCall, b.Children[0].CallType)
	assert.Equal(t, uint64(3), b.Children[0].GasCost)

	assert.Equal(t, domain.CallTypeDelegateCall, root.Children[1].CallType)
}

func TestFromParityTraces_CreateAndFailure(t *testing.T) {
	created := common.HexToAddress("0x00000000000000000000000000000000000000dd")
	traces := []domain.ParityTrace{
		parityCall(nil, "call", addrA.Hex(), "0x100"),
		{
			Type:         "create",
			TraceAddress: []uint32{0},
			Action:       domain.ParityTraceAction{Init: "0x6000", Value: "0x2", Gas: "0x500", CreationMethod: "create2"},
			Result:       &domain.ParityTraceResult{GasUsed: "0x20", Address: created.Hex()},
		},
		{
			Type:         "call",
			TraceAddress: []uint32{1},
			Action:       domain.ParityTraceAction{CallType: "call", To: addrB.Hex(), Gas: "0x40", Value: "0x0"},
			Error:        "Reverted",
		},
	}

	root, err := FromParityTraces(traces)
	require.NoError(t, err)
	require.Len(t, root.Children, 2)

	c := root.Children[0]
	assert.Equal(t, domain.CallTypeCreate2, c.CallType)
	assert.Equal(t, created, c.Address)
	assert.Equal(t, "2", c.Value.String())
	assert.True(t, c.Succeeded)

	failed := root.Children[1]
	assert.False(t, failed.Succeeded)
	assert.Equal(t, uint64(0x40), failed.GasCost)
}

func TestFromParityTraces_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		traces []domain.ParityTrace
	}{
		{"empty", nil},
		{"root not first", []domain.ParityTrace{parityCall([]uint32{0}, "call", addrB.Hex(), "0x1")}},
		{"orphan", []domain.ParityTrace{
			parityCall(nil, "call", addrA.Hex(), "0x1"),
			parityCall([]uint32{3, 0}, "call", addrB.Hex(), "0x1"),
		}},
		{"two roots", []domain.ParityTrace{
			parityCall(nil, "call", addrA.Hex(), "0x1"),
			parityCall(nil, "call", addrB.Hex(), "0x1"),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromParityTraces(tt.traces)
			var malformed domain.MalformedTraceError
			assert.ErrorAs(t, err, &malformed)
		})
	}
}
