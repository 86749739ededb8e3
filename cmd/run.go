package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/encodeous/icntm/bus"
	"github.com/encodeous/icntm/core"
	"github.com/encodeous/icntm/state"
)

var runCmd = &cobra.Command{
	Use:   "run <topology>",
	Short: "Run the topology and resilience managers on one bus",
	Long: `Runs the topology manager and the resilience manager in one process, connected by a shared in-memory control bus.
The topology manager options are the same as for "icntm tm".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runControlPlane(ctx, args[0], tmCfg, rmCfg, logLevel(cmd), nil)
	},
	GroupID: "ctl",
}

// runControlPlane starts both managers over one bus and returns once both
// have stopped. Either one failing stops the other.
func runControlPlane(ctx context.Context, path string, tm state.TMConfig, rm state.RMConfig, level slog.Level, ready func(*state.State)) error {
	// each manager owns its arena, so the topology is loaded once per process
	tmTopo, err := state.LoadTopology(path)
	if err != nil {
		return err
	}
	rmTopo, err := state.LoadTopology(path)
	if err != nil {
		return err
	}

	shared := bus.NewWatermill(slog.Default(), level == slog.LevelDebug)
	defer shared.Close()

	g, gctx := errgroup.WithContext(ctx)
	// the RM goes first so no delivery update from the TM is lost
	rmReady := make(chan struct{})
	g.Go(func() error {
		return core.Start(core.Options{
			Process:  state.ProcessRM,
			Topology: rmTopo,
			RM:       rm,
			LogLevel: level,
			Bus:      shared,
			Context:  gctx,
			Ready: func(s *state.State) {
				if ready != nil {
					ready(s)
				}
				close(rmReady)
			},
		})
	})
	select {
	case <-rmReady:
	case <-gctx.Done():
		return g.Wait()
	}
	g.Go(func() error {
		return core.Start(core.Options{
			Process:  state.ProcessTM,
			Topology: tmTopo,
			TM:       tm,
			LogLevel: level,
			Bus:      shared,
			Context:  gctx,
			Ready:    ready,
		})
	})
	return g.Wait()
}

func init() {
	rootCmd.AddCommand(runCmd)
	bindTMFlags(runCmd)
	runCmd.Flags().StringVar(&tmCfg.DebugAddr, "debug-addr", "", "Serve the topology manager's metrics and topology dump on this address")
	runCmd.Flags().StringVar(&rmCfg.DebugAddr, "rm-debug-addr", "", "Serve the resilience manager's metrics and tracker dump on this address")
	runCmd.Flags().StringVar(&tmCfg.LogPath, "log-path", "", "Also write the topology manager's logs to this file")
	runCmd.Flags().StringVar(&rmCfg.LogPath, "rm-log-path", "", "Also write the resilience manager's logs to this file")
}
