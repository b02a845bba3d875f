package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/trebuchet-org/treb-anvil/internal/adapters/progress"
	"github.com/trebuchet-org/treb-anvil/internal/app"
	"github.com/trebuchet-org/treb-anvil/internal/config"
	"github.com/trebuchet-org/treb-anvil/internal/usecase"
)

// contextKey is the type for context keys
type contextKey string

const (
	// appKey is the context key for the app instance
	appKey contextKey = "app"

	// longRunning marks commands that must not inherit the global timeout
	longRunning = "long-running"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "treb-anvil",
		Short: "Local anvil node manager for Foundry projects",
		Long: `treb-anvil starts, attaches to and inspects local anvil nodes, including
forks of live networks, and explains failed transactions with call traces.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip for help/version commands
			if cmd.Name() == "version" || cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}

			projectRoot, err := config.FindProjectRoot()
			if err != nil {
				// foundry.toml is optional
				if projectRoot, err = os.Getwd(); err != nil {
					return err
				}
			}

			v := config.SetupViper(projectRoot, cmd)

			var sink usecase.ProgressSink = progress.NewSpinnerProgressReporter()
			if v.GetBool("json") || color.NoColor {
				sink = progress.NewNopSink()
			}

			// Initialize app with DI
			appInstance, err := app.InitApp(v, sink)
			if err != nil {
				return fmt.Errorf("failed to initialize app: %w", err)
			}

			ctx := context.WithValue(cmd.Context(), appKey, appInstance)

			if appInstance.Config.Timeout > 0 && cmd.Annotations[longRunning] == "" {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, appInstance.Config.Timeout)
				cmd.PostRun = func(cmd *cobra.Command, args []string) {
					cancel()
				}
			}

			cmd.SetContext(ctx)
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug output")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().StringP("network", "n", "", "Network as ecosystem:network (e.g. ethereum:local, ethereum:mainnet-fork)")
	rootCmd.PersistentFlags().String("host", "", `Node host, URL or "auto" to pick a free port (env: TREB_ANVIL_HOST)`)

	rootCmd.AddGroup(&cobra.Group{
		ID:    "node",
		Title: "Node Commands",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "inspect",
		Title: "Inspection Commands",
	})

	nodeCmd := NewNodeCmd()
	nodeCmd.GroupID = "node"
	rootCmd.AddCommand(nodeCmd)

	chainCmd := NewChainCmd()
	chainCmd.GroupID = "node"
	rootCmd.AddCommand(chainCmd)

	traceCmd := NewTraceCmd()
	traceCmd.GroupID = "inspect"
	rootCmd.AddCommand(traceCmd)

	hardforkCmd := NewHardforkCmd()
	hardforkCmd.GroupID = "inspect"
	rootCmd.AddCommand(hardforkCmd)

	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

// getApp retrieves the app instance from the command context
func getApp(cmd *cobra.Command) (*app.App, error) {
	appInstance := cmd.Context().Value(appKey)
	if appInstance == nil {
		return nil, fmt.Errorf("app not initialized")
	}

	app, ok := appInstance.(*app.App)
	if !ok {
		return nil, fmt.Errorf("invalid app instance")
	}

	return app, nil
}
