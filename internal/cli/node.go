package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/trebuchet-org/treb-anvil/internal/cli/render"
	"github.com/trebuchet-org/treb-anvil/internal/domain"
	"github.com/trebuchet-org/treb-anvil/internal/usecase"
)

// NewNodeCmd creates the node command with subcommands
func NewNodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Start or inspect the local node",
		Long: `Start an anvil node for the selected network, or attach to one that is
already running at the configured host.`,
	}

	cmd.AddCommand(newNodeStartCmd())
	cmd.AddCommand(newNodeStatusCmd())

	return cmd
}

// forkFlags holds flags overriding the configured fork of a network
type forkFlags struct {
	url        string
	block      uint64
	evmVersion string
}

func addForkFlags(cmd *cobra.Command, flags *forkFlags) {
	cmd.Flags().StringVar(&flags.url, "fork-url", "", "Upstream RPC URL or rpc_endpoints name to fork from")
	cmd.Flags().Uint64Var(&flags.block, "fork-block", 0, "Block number to fork at (default: latest)")
	cmd.Flags().StringVar(&flags.evmVersion, "fork-evm-version", "", "Hardfork to run the fork with")
}

// override returns nil when no fork flag was changed
func (f *forkFlags) override(cmd *cobra.Command) *domain.ForkOverride {
	if !cmd.Flags().Changed("fork-url") && !cmd.Flags().Changed("fork-block") && !cmd.Flags().Changed("fork-evm-version") {
		return nil
	}
	o := &domain.ForkOverride{
		UpstreamProvider: f.url,
		EVMVersion:       f.evmVersion,
	}
	if cmd.Flags().Changed("fork-block") {
		block := f.block
		o.BlockNumber = &block
	}
	return o
}

func newNodeStartCmd() *cobra.Command {
	flags := &forkFlags{}
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start or attach to a node and keep it running",
		Long: `Connect to the node for the selected network, starting anvil when nothing
is listening. A node started here runs until interrupted.`,
		Annotations: map[string]string{longRunning: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if metricsAddr != "" {
				shutdown := serveMetrics(metricsAddr, app.Logger)
				defer shutdown()
			}

			result, err := app.StartNode.Execute(ctx, usecase.StartNodeParams{Fork: flags.override(cmd)})
			if err != nil {
				return err
			}
			defer app.StartNode.Stop()

			renderer := render.NewNodeRenderer(cmd.OutOrStdout(), app.Config.JSON)
			if err := renderer.RenderStarted(result); err != nil {
				return err
			}

			if !result.Status.Managed {
				return nil
			}

			<-ctx.Done()
			app.Logger.Info("stopping node", "pid", result.Status.PID)
			return nil
		},
	}

	addForkFlags(cmd, flags)
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().String("anvil-bin", "", "Path to the anvil binary")
	cmd.Flags().Int("process-attempts", 0, "Attempts at starting anvil before giving up")
	cmd.Flags().Int("block-time", 0, "Mine a block every N seconds instead of on each transaction")
	cmd.Flags().Uint64("base-fee", 0, "Base fee of the first block")
	cmd.Flags().String("evm-version", "", "Hardfork for local nodes")
	return cmd
}

func newNodeStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the node at the configured host",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			status, err := app.NodeStatus.Execute(cmd.Context())
			if err != nil {
				return err
			}

			return render.NewNodeRenderer(cmd.OutOrStdout(), app.Config.JSON).Render(status)
		},
	}
}

// serveMetrics exposes the default Prometheus registry until shutdown is called
func serveMetrics(addr string, log *slog.Logger) (shutdown func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	log.Debug("serving metrics", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Debug("metrics server shutdown", "error", err)
		}
	}
}
