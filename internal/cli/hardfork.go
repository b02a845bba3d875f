package cli

import (
	"github.com/spf13/cobra"
	"github.com/trebuchet-org/treb-anvil/internal/cli/render"
	"github.com/trebuchet-org/treb-anvil/internal/usecase"
)

// NewHardforkCmd creates the hardfork command
func NewHardforkCmd() *cobra.Command {
	flags := &forkFlags{}

	cmd := &cobra.Command{
		Use:   "hardfork",
		Short: "Show the upstream and hardfork a fork network would use",
		Long: `Resolve the upstream of a fork network (e.g. --network ethereum:mainnet-fork)
and look up the hardfork active at its fork block.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			result, err := app.DetectHardfork.Execute(cmd.Context(), usecase.DetectHardforkParams{
				Network: app.Config.Network,
				Fork:    flags.override(cmd),
			})
			if err != nil {
				return err
			}

			return render.NewNodeRenderer(cmd.OutOrStdout(), app.Config.JSON).RenderHardfork(result)
		},
	}

	addForkFlags(cmd, flags)
	return cmd
}
