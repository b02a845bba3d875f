package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/trebuchet-org/treb-anvil/internal/domain"
	"github.com/trebuchet-org/treb-anvil/internal/usecase"
)

var (
	labelStyle   = color.New(color.FgHiBlack)
	runningStyle = color.New(color.FgGreen)
	stoppedStyle = color.New(color.FgRed)
	urlStyle     = color.New(color.FgBlue)
	headerStyle  = color.New(color.FgCyan, color.Bold)
)

// NodeRenderer renders node status and chain operation results
type NodeRenderer struct {
	out  io.Writer
	json bool
}

// NewNodeRenderer creates a new node renderer
func NewNodeRenderer(out io.Writer, asJSON bool) *NodeRenderer {
	return &NodeRenderer{out: out, json: asJSON}
}

// Render renders a node status
func (r *NodeRenderer) Render(status *domain.NodeStatus) error {
	if r.json {
		return writeJSON(r.out, status)
	}

	headerStyle.Fprintf(r.out, "📊 Node Status (%s):\n", status.Network)
	fmt.Fprintln(r.out, statusTable(status))
	return nil
}

// RenderStarted renders the node a start command connected to
func (r *NodeRenderer) RenderStarted(result *usecase.StartNodeResult) error {
	if r.json {
		return writeJSON(r.out, result.Status)
	}

	status := result.Status
	if status.Managed {
		fmt.Fprintln(r.out, FormatSuccess(fmt.Sprintf("Started anvil for %s", status.Network)))
	} else {
		fmt.Fprintln(r.out, FormatSuccess(fmt.Sprintf("Attached to running node for %s", status.Network)))
	}
	fmt.Fprintln(r.out, statusTable(&status))
	return nil
}

// RenderChain renders a chain operation result
func (r *NodeRenderer) RenderChain(result *usecase.ManageChainResult) error {
	if r.json {
		return writeJSON(r.out, result)
	}
	if !result.Success {
		fmt.Fprintln(r.out, FormatWarning(result.Message))
		return nil
	}
	fmt.Fprintln(r.out, FormatSuccess(result.Message))
	return nil
}

// RenderHardfork renders a resolved fork spec
func (r *NodeRenderer) RenderHardfork(result *usecase.DetectHardforkResult) error {
	if r.json {
		return writeJSON(r.out, result)
	}

	t := newKVTable()
	t.AppendRow(table.Row{labelStyle.Sprint("Network"), result.Spec.Ecosystem + ":" + result.Spec.Network})
	t.AppendRow(table.Row{labelStyle.Sprint("Upstream"), urlStyle.Sprint(result.UpstreamURL)})
	block := "latest"
	if result.Spec.BlockNumber != nil {
		block = strconv.FormatUint(*result.Spec.BlockNumber, 10)
	}
	t.AppendRow(table.Row{labelStyle.Sprint("Fork block"), block})

	hardfork := color.New(color.FgYellow).Sprint("unknown (anvil default)")
	if result.Found {
		hardfork = result.Hardfork
	}
	t.AppendRow(table.Row{labelStyle.Sprint("Hardfork"), hardfork})

	fmt.Fprintln(r.out, t.Render())
	return nil
}

func statusTable(status *domain.NodeStatus) string {
	t := newKVTable()

	if status.Connected {
		state := "🟢 Running"
		if status.PID != 0 {
			state = fmt.Sprintf("🟢 Running (PID %d)", status.PID)
		}
		t.AppendRow(table.Row{labelStyle.Sprint("Status"), runningStyle.Sprint(state)})
	} else {
		t.AppendRow(table.Row{labelStyle.Sprint("Status"), stoppedStyle.Sprint("🔴 Not running")})
	}

	if status.Endpoint != "" {
		t.AppendRow(table.Row{labelStyle.Sprint("RPC URL"), urlStyle.Sprint(status.Endpoint)})
	}
	t.AppendRow(table.Row{labelStyle.Sprint("Chain ID"), status.ChainID})
	if status.Connected {
		t.AppendRow(table.Row{labelStyle.Sprint("Block"), status.BlockNumber})
	}
	if status.ClientVersion != "" {
		t.AppendRow(table.Row{labelStyle.Sprint("Client"), status.ClientVersion})
	}
	if status.ForkURL != "" {
		t.AppendRow(table.Row{labelStyle.Sprint("Fork URL"), urlStyle.Sprint(status.ForkURL)})
		if status.ForkBlock != 0 {
			t.AppendRow(table.Row{labelStyle.Sprint("Fork block"), status.ForkBlock})
		}
	}
	if status.Hardfork != "" {
		t.AppendRow(table.Row{labelStyle.Sprint("Hardfork"), status.Hardfork})
	}
	if status.LogFile != "" {
		t.AppendRow(table.Row{labelStyle.Sprint("Log file"), status.LogFile})
	}
	return t.Render()
}

func newKVTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.Style().Options.DrawBorder = false
	t.Style().Options.SeparateColumns = false
	t.Style().Options.SeparateHeader = false
	t.Style().Box = table.BoxStyle{PaddingLeft: "  ", PaddingRight: " "}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, WidthMin: 12},
		{Number: 2, Align: text.AlignLeft},
	})
	return t
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
