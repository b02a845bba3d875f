// Package calltree rebuilds nested call trees from flat execution traces.
package calltree

import (
	"fmt"
	"iter"
	"math/big"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/trebuchet-org/treb-anvil/internal/domain"
)

// frame is a call tree node under construction.
type frame struct {
	node     *domain.CallTreeNode
	depth    uint64
	entryGas uint64
	exitGas  uint64
	exited   bool
}

// pendingCall is a call opcode whose callee has not executed yet.
type pendingCall struct {
	node  *domain.CallTreeNode
	depth uint64
	frame domain.TraceFrame
}

// builder consumes struct logs one at a time.
type builder struct {
	stack    []*frame
	pending  *pendingCall
	returned *domain.CallTreeNode // child popped on the previous frame
	last     domain.TraceFrame
	seen     int
}

// FromStructLogs rebuilds the call tree of a struct-log trace. frames is
// consumed exactly once, in order.
func FromStructLogs(root domain.RootCall, frames iter.Seq[domain.TraceFrame]) (*domain.CallTreeNode, error) {
	callType := root.CallType
	if callType == "" {
		callType = domain.CallTypeCall
	}
	rootNode := &domain.CallTreeNode{
		CallType:  callType,
		Address:   root.Address,
		Calldata:  root.Calldata,
		Value:     root.Value,
		Succeeded: true,
	}
	b := &builder{stack: []*frame{{node: rootNode, entryGas: root.Gas}}}

	for f := range frames {
		if err := b.step(f); err != nil {
			return nil, err
		}
	}
	return b.finish()
}

func (b *builder) top() *frame {
	return b.stack[len(b.stack)-1]
}

func (b *builder) step(f domain.TraceFrame) error {
	if b.seen == 0 {
		r := b.stack[0]
		r.depth = f.Depth
		if r.entryGas == 0 {
			r.entryGas = f.Gas
		}
	}
	b.seen++

	if p := b.pending; p != nil {
		b.pending = nil
		if f.Depth == p.depth+1 {
			b.stack = append(b.stack, &frame{node: p.node, depth: f.Depth, entryGas: f.Gas})
		} else {
			// callee had no code: the call completed within the opcode
			p.node.GasCost = sub(p.frame.Gas, f.Gas)
			b.returned = p.node
			p.node.Succeeded = true
		}
	}

	// callee halted exceptionally without a halting opcode
	for len(b.stack) > 1 && b.top().depth > f.Depth {
		fr := b.top()
		fr.node.Succeeded = false
		fr.node.GasCost = fr.entryGas
		b.stack = b.stack[:len(b.stack)-1]
		b.returned = fr.node
	}

	cur := b.top()
	if f.Depth != cur.depth {
		return domain.MalformedTraceError{
			Depth:  len(b.stack) - 1,
			Reason: fmt.Sprintf("frame %d at depth %d inside a call at depth %d", b.seen-1, f.Depth, cur.depth),
		}
	}

	if r := b.returned; r != nil {
		b.returned = nil
		b.collectResult(r, f)
	}

	op := vm.StringToOp(f.Op)
	switch op {
	case vm.CALL, vm.CALLCODE, vm.DELEGATECALL, vm.STATICCALL, vm.CREATE, vm.CREATE2:
		child := newChild(op, f)
		cur.node.Children = append(cur.node.Children, child)
		b.pending = &pendingCall{node: child, depth: f.Depth, frame: f}

	case vm.RETURN, vm.STOP, vm.REVERT, vm.INVALID, vm.SELFDESTRUCT:
		cur.exitGas = sub(f.Gas, f.GasCost)
		cur.exited = true
		cur.node.Succeeded = op != vm.REVERT && op != vm.INVALID && f.Error == ""
		if op == vm.RETURN || op == vm.REVERT {
			cur.node.ReturnData = f.MemorySlice(f.StackBack(0), f.StackBack(1))
		}
		if len(b.stack) > 1 {
			cur.node.GasCost = sub(cur.entryGas, cur.exitGas)
			b.stack = b.stack[:len(b.stack)-1]
			b.returned = cur.node
		}
	}

	b.last = f
	return nil
}

// collectResult reads a returned call's result from the first frame back in
// the caller, where the call opcode has pushed it.
func (b *builder) collectResult(node *domain.CallTreeNode, f domain.TraceFrame) {
	top := f.StackBack(0)
	if top == nil {
		return
	}
	switch node.CallType {
	case domain.CallTypeCreate, domain.CallTypeCreate2:
		if top.Sign() == 0 {
			node.Succeeded = false
		} else {
			node.Address = common.BigToAddress(top)
		}
	default:
		node.Succeeded = node.Succeeded && top.Sign() != 0
	}
}

func (b *builder) finish() (*domain.CallTreeNode, error) {
	if b.pending != nil {
		return nil, domain.MalformedTraceError{Depth: len(b.stack), Reason: "trace ended inside a call"}
	}
	if len(b.stack) != 1 {
		return nil, domain.MalformedTraceError{Depth: len(b.stack) - 1}
	}

	root := b.stack[0]
	if b.seen > 0 {
		if !root.exited {
			root.exitGas = sub(b.last.Gas, b.last.GasCost)
		}
		root.node.GasCost = sub(root.entryGas, root.exitGas)
	}
	return root.node, nil
}

func newChild(op vm.OpCode, f domain.TraceFrame) *domain.CallTreeNode {
	node := &domain.CallTreeNode{CallType: domain.CallType(op.String())}

	switch op {
	case vm.CALL, vm.CALLCODE:
		node.Address = address(f.StackBack(1))
		node.Value = f.StackBack(2)
		node.Calldata = f.MemorySlice(f.StackBack(3), f.StackBack(4))
	case vm.DELEGATECALL, vm.STATICCALL:
		node.Address = address(f.StackBack(1))
		node.Calldata = f.MemorySlice(f.StackBack(2), f.StackBack(3))
	case vm.CREATE, vm.CREATE2:
		node.Value = f.StackBack(0)
		node.Calldata = f.MemorySlice(f.StackBack(1), f.StackBack(2))
	}
	return node
}

func address(v *big.Int) common.Address {
	if v == nil {
		return common.Address{}
	}
	return common.BigToAddress(v)
}

func sub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

// FromFrames is FromStructLogs over a slice.
func FromFrames(root domain.RootCall, frames []domain.TraceFrame) (*domain.CallTreeNode, error) {
	return FromStructLogs(root, slices.Values(frames))
}

// Builder exposes the package functions for injection.
type Builder struct{}

// NewBuilder creates a call tree builder
func NewBuilder() *Builder {
	return &Builder{}
}

func (*Builder) FromStructLogs(root domain.RootCall, frames iter.Seq[domain.TraceFrame]) (*domain.CallTreeNode, error) {
	return FromStructLogs(root, frames)
}

func (*Builder) FromParityTraces(traces []domain.ParityTrace) (*domain.CallTreeNode, error) {
	return FromParityTraces(traces)
}
