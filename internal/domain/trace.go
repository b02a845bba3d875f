package domain

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// TransactionTrace is a debug_traceTransaction / debug_traceCall result.
type TransactionTrace struct {
	Gas         uint64       `json:"gas"`
	Failed      bool         `json:"failed"`
	ReturnValue string       `json:"returnValue"`
	StructLogs  []TraceFrame `json:"structLogs"`
}

// TraceFrame is one struct log entry. Stack values are hex quantities with
// the top of the stack last; memory is a list of 32-byte hex words.
type TraceFrame struct {
	PC      uint64   `json:"pc"`
	Op      string   `json:"op"`
	Gas     uint64   `json:"gas"`
	GasCost uint64   `json:"gasCost"`
	Depth   uint64   `json:"depth"`
	Stack   []string `json:"stack,omitempty"`
	Memory  []string `json:"memory,omitempty"`
	Refund  *uint64  `json:"refund,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// ParityTrace is a single entry of a trace_transaction result.
type ParityTrace struct {
	Action       ParityTraceAction  `json:"action"`
	Result       *ParityTraceResult `json:"result"`
	Subtraces    uint32             `json:"subtraces"`
	TraceAddress []uint32           `json:"traceAddress"`
	Type         string             `json:"type"` // call, create, suicide
	Error        string             `json:"error,omitempty"`
}

// ParityTraceAction holds the call details of a flat trace.
type ParityTraceAction struct {
	From           string `json:"from"`
	To             string `json:"to,omitempty"`
	CallType       string `json:"callType,omitempty"`
	Gas            string `json:"gas"`
	Input          string `json:"input,omitempty"`
	Init           string `json:"init,omitempty"`
	Value          string `json:"value"`
	CreationMethod string `json:"creationMethod,omitempty"`
	Address        string `json:"address,omitempty"`       // suicide
	RefundAddress  string `json:"refundAddress,omitempty"` // suicide
	Balance        string `json:"balance,omitempty"`       // suicide
}

// ParityTraceResult holds the outcome of a flat trace.
type ParityTraceResult struct {
	GasUsed string `json:"gasUsed"`
	Output  string `json:"output,omitempty"`
	Code    string `json:"code,omitempty"`
	Address string `json:"address,omitempty"`
}

// CallType is the kind of message call that opened a call tree node.
type CallType string

const (
	CallTypeCall         CallType = "CALL"
	CallTypeCallCode     CallType = "CALLCODE"
	CallTypeDelegateCall CallType = "DELEGATECALL"
	CallTypeStaticCall   CallType = "STATICCALL"
	CallTypeCreate       CallType = "CREATE"
	CallTypeCreate2      CallType = "CREATE2"
	CallTypeSelfDestruct CallType = "SELFDESTRUCT"
)

// RootCall describes the outermost call of a trace.
type RootCall struct {
	CallType CallType
	Address  common.Address
	Calldata []byte
	Value    *big.Int

	// Gas available at entry. Zero means take it from the first frame.
	Gas uint64
}

// CallTreeNode is one message call in a reconstructed call tree.
type CallTreeNode struct {
	CallType   CallType        `json:"callType"`
	Address    common.Address  `json:"address"`
	Calldata   []byte          `json:"calldata,omitempty"`
	Value      *big.Int        `json:"value,omitempty"`
	GasCost    uint64          `json:"gasCost"`
	Succeeded  bool            `json:"succeeded"`
	ReturnData []byte          `json:"returnData,omitempty"`
	Children   []*CallTreeNode `json:"children,omitempty"`
}

// Walk visits the node and its descendants depth first.
func (n *CallTreeNode) Walk(fn func(node *CallTreeNode, depth int)) {
	n.walk(fn, 0)
}

func (n *CallTreeNode) walk(fn func(*CallTreeNode, int), depth int) {
	fn(n, depth)
	for _, c := range n.Children {
		c.walk(fn, depth+1)
	}
}

// Selector returns the first four bytes of the calldata, if present.
func (n *CallTreeNode) Selector() []byte {
	if len(n.Calldata) < 4 {
		return nil
	}
	return n.Calldata[:4]
}

// StackBack returns the n-th stack item from the top, or nil if the stack
// is shorter or the value does not parse.
func (f *TraceFrame) StackBack(n int) *big.Int {
	if n < 0 || n >= len(f.Stack) {
		return nil
	}
	v, ok := new(big.Int).SetString(strings.TrimPrefix(f.Stack[len(f.Stack)-1-n], "0x"), 16)
	if !ok {
		return nil
	}
	return v
}

// MemoryBytes concatenates the memory words.
func (f *TraceFrame) MemoryBytes() []byte {
	var buf []byte
	for _, word := range f.Memory {
		buf = append(buf, common.FromHex(word)...)
	}
	return buf
}

// MemorySlice returns memory[offset:offset+size], zero padded past the end
// of recorded memory. It returns nil if the range is implausibly large.
func (f *TraceFrame) MemorySlice(offset, size *big.Int) []byte {
	if offset == nil || size == nil || !offset.IsUint64() || !size.IsUint64() {
		return nil
	}
	off, n := offset.Uint64(), size.Uint64()
	if n == 0 {
		return []byte{}
	}
	if n > maxMemorySlice || off > maxMemorySlice {
		return nil
	}
	mem := f.MemoryBytes()
	out := make([]byte, n)
	if off < uint64(len(mem)) {
		copy(out, mem[off:])
	}
	return out
}

const maxMemorySlice = 1 << 24
