package calltree

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/treb-anvil/internal/domain"
)

// FromParityTraces rebuilds the call tree of a trace_transaction result.
// The root trace must come first; children may follow in any order as long
// as their parent precedes them.
func FromParityTraces(traces []domain.ParityTrace) (*domain.CallTreeNode, error) {
	if len(traces) == 0 {
		return nil, domain.MalformedTraceError{Reason: "empty trace"}
	}
	if len(traces[0].TraceAddress) != 0 {
		return nil, domain.MalformedTraceError{Reason: "first trace is not the root call"}
	}

	nodes := make(map[string]*domain.CallTreeNode, len(traces))
	root := parityNode(traces[0])
	nodes[traceKey(nil)] = root

	for i, t := range traces[1:] {
		if len(t.TraceAddress) == 0 {
			return nil, domain.MalformedTraceError{Reason: fmt.Sprintf("trace %d is a second root", i+1)}
		}
		parent, ok := nodes[traceKey(t.TraceAddress[:len(t.TraceAddress)-1])]
		if !ok {
			return nil, domain.MalformedTraceError{
				Depth:  len(t.TraceAddress),
				Reason: fmt.Sprintf("trace %d has no parent at %v", i+1, t.TraceAddress),
			}
		}
		node := parityNode(t)
		parent.Children = append(parent.Children, node)
		nodes[traceKey(t.TraceAddress)] = node
	}
	return root, nil
}

func parityNode(t domain.ParityTrace) *domain.CallTreeNode {
	a := t.Action
	node := &domain.CallTreeNode{Succeeded: t.Error == ""}

	switch strings.ToLower(t.Type) {
	case "create":
		node.CallType = domain.CallTypeCreate
		if strings.EqualFold(a.CreationMethod, "create2") {
			node.CallType = domain.CallTypeCreate2
		}
		node.Calldata = common.FromHex(a.Init)
		node.Value = hexBig(a.Value)
		if t.Result != nil {
			node.Address = common.HexToAddress(t.Result.Address)
		}
	case "suicide", "selfdestruct":
		node.CallType = domain.CallTypeSelfDestruct
		node.Address = common.HexToAddress(a.Address)
		node.Value = hexBig(a.Balance)
	default:
		node.CallType = domain.CallTypeCall
		if a.CallType != "" {
			node.CallType = domain.CallType(strings.ToUpper(a.CallType))
		}
		node.Address = common.HexToAddress(a.To)
		node.Calldata = common.FromHex(a.Input)
		node.Value = hexBig(a.Value)
	}

	if t.Result != nil {
		node.GasCost = hexBig(t.Result.GasUsed).Uint64()
		node.ReturnData = common.FromHex(t.Result.Output)
	} else {
		// failed frames report no result and consume their allowance
		node.GasCost = hexBig(a.Gas).Uint64()
	}
	return node
}

func traceKey(addr []uint32) string {
	var sb strings.Builder
	for i, a := range addr {
		if i > 0 {
			sb.WriteByte('.')
		}
		fmt.Fprintf(&sb, "%d", a)
	}
	return sb.String()
}

// hexBig parses a quantity leniently; empty or invalid input is zero.
func hexBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"), 16)
	if !ok {
		return new(big.Int)
	}
	return v
}
