package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/trebuchet-org/treb-anvil/internal/cli/render"
	"github.com/trebuchet-org/treb-anvil/internal/usecase"
)

// NewChainCmd creates the chain command with subcommands
func NewChainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chain",
		Short: "Manipulate the state of a running node",
		Long:  `Take and restore snapshots, mine blocks and control time on a running node.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "snapshot",
		Short: "Snapshot the chain state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChainCommand(cmd, "snapshot", "")
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "revert <snapshot-id>",
		Short: "Revert to a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChainCommand(cmd, "revert", args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "mine [blocks]",
		Short: "Mine one or more blocks",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChainCommand(cmd, "mine", optionalArg(args))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset [block]",
		Short: "Reset a fork to its upstream, optionally at a block",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChainCommand(cmd, "reset", optionalArg(args))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set-time <timestamp>",
		Short: "Set the timestamp of the next block",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChainCommand(cmd, "set-time", args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:       "automine [on|off]",
		Short:     "Show or toggle automatic mining",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			arg, err := parseOnOff(optionalArg(args))
			if err != nil {
				return err
			}
			return runChainCommand(cmd, "automine", arg)
		},
	})

	return cmd
}

// runChainCommand executes a chain operation against the running node
func runChainCommand(cmd *cobra.Command, operation, arg string) error {
	app, err := getApp(cmd)
	if err != nil {
		return err
	}

	result, err := app.ManageChain.Execute(cmd.Context(), usecase.ManageChainParams{
		Operation: operation,
		Arg:       arg,
	})
	if err != nil {
		return err
	}

	return render.NewNodeRenderer(cmd.OutOrStdout(), app.Config.JSON).RenderChain(result)
}

func optionalArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// parseOnOff maps on/off onto the boolean strings the use case accepts
func parseOnOff(arg string) (string, error) {
	switch strings.ToLower(arg) {
	case "":
		return "", nil
	case "on", "true", "1":
		return "true", nil
	case "off", "false", "0":
		return "false", nil
	default:
		return "", fmt.Errorf("expected on or off, got %q", arg)
	}
}
