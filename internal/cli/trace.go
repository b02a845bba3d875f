package cli

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
	"github.com/trebuchet-org/treb-anvil/internal/cli/render"
	"github.com/trebuchet-org/treb-anvil/internal/usecase"
)

// NewTraceCmd creates the trace command
func NewTraceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trace <tx-hash>",
		Short: "Show the call tree of a mined transaction",
		Long: `Rebuild the call tree of a transaction from the node's debug trace and
explain why it failed, if it did.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := parseTxHash(args[0])
			if err != nil {
				return err
			}

			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			result, err := app.TraceTransaction.Execute(cmd.Context(), usecase.TraceTransactionParams{TxHash: hash})
			if err != nil {
				return err
			}

			return render.NewTraceRenderer(cmd.OutOrStdout(), app.Config.JSON).Render(result)
		},
	}
}

func parseTxHash(s string) (common.Hash, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid transaction hash %q: %w", s, err)
	}
	if len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid transaction hash %q: want %d bytes, got %d", s, common.HashLength, len(b))
	}
	return common.BytesToHash(b), nil
}
