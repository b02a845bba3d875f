package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/list"
	"github.com/trebuchet-org/treb-anvil/internal/domain"
	"github.com/trebuchet-org/treb-anvil/internal/usecase"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	callTypeStyle = color.New(color.FgMagenta)
	addrStyle     = color.New(color.FgWhite)
	gasStyle      = color.New(color.Faint)
	revertStyle   = color.New(color.FgRed)
)

// TraceRenderer renders reconstructed call trees
type TraceRenderer struct {
	out  io.Writer
	json bool
}

// NewTraceRenderer creates a new trace renderer
func NewTraceRenderer(out io.Writer, asJSON bool) *TraceRenderer {
	return &TraceRenderer{out: out, json: asJSON}
}

// Render renders a traced transaction
func (r *TraceRenderer) Render(result *usecase.TraceTransactionResult) error {
	if r.json {
		return writeJSON(r.out, result)
	}

	receipt := result.Receipt
	headerStyle.Fprintf(r.out, "🔍 Transaction %s\n", receipt.TxHash.Hex())
	fmt.Fprintf(r.out, "  %s %d   %s %d\n",
		labelStyle.Sprint("Block"), uint64(receipt.BlockNumber),
		labelStyle.Sprint("Gas used"), uint64(receipt.GasUsed))

	if result.Failure != nil {
		kind := cases.Title(language.English).String(result.Failure.Kind.String())
		fmt.Fprintln(r.out, revertStyle.Sprintf("  %s: %s", kind, result.Failure.Message))
	}
	fmt.Fprintln(r.out)

	if result.Tree != nil {
		fmt.Fprintln(r.out, CallTree(result.Tree))
	}
	return nil
}

// CallTree renders a call tree as an indented list
func CallTree(root *domain.CallTreeNode) string {
	l := list.NewWriter()
	l.SetStyle(list.StyleConnectedLight)

	var add func(node *domain.CallTreeNode)
	add = func(node *domain.CallTreeNode) {
		l.AppendItem(callLine(node))
		if len(node.Children) == 0 {
			return
		}
		l.Indent()
		for _, child := range node.Children {
			add(child)
		}
		l.UnIndent()
	}
	add(root)

	return l.Render()
}

func callLine(node *domain.CallTreeNode) string {
	var b strings.Builder
	b.WriteString(callTypeStyle.Sprint(string(node.CallType)))
	b.WriteString(" ")
	b.WriteString(addrStyle.Sprint(addressOrCreate(node.Address)))

	if sel := node.Selector(); sel != nil {
		b.WriteString(" " + hexutil.Encode(sel))
	}
	if node.Value != nil && node.Value.Sign() > 0 {
		fmt.Fprintf(&b, " value=%s", node.Value.String())
	}
	b.WriteString(gasStyle.Sprintf(" [%d gas]", node.GasCost))

	if !node.Succeeded {
		b.WriteString(revertStyle.Sprint(" ✗ reverted"))
		if len(node.ReturnData) > 0 {
			b.WriteString(revertStyle.Sprintf(" %s", shortHex(hexutil.Encode(node.ReturnData), 8)))
		}
	}
	return b.String()
}

// addressOrCreate labels a zero address as a pending creation
func addressOrCreate(addr common.Address) string {
	if addr == (common.Address{}) {
		return "<create>"
	}
	return addr.Hex()
}
