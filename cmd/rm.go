package cmd

import (
	"github.com/spf13/cobra"

	"github.com/encodeous/icntm/core"
	"github.com/encodeous/icntm/state"
)

var rmCfg state.RMConfig

var rmCmd = &cobra.Command{
	Use:   "rm <topology>",
	Short: "Run the resilience manager",
	Long: `Tracks the delivery paths reported by the topology manager and asks it to re-route deliveries that cross a failed link.
The bus is in-memory and private to this process. Use "icntm run" to run it next to the topology manager.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		topo, err := state.LoadTopology(args[0])
		if err != nil {
			return err
		}
		return core.Start(core.Options{
			Process:  state.ProcessRM,
			Topology: topo,
			RM:       rmCfg,
			LogLevel: logLevel(cmd),
		})
	},
	GroupID: "ctl",
}

func init() {
	rootCmd.AddCommand(rmCmd)

	rmCmd.Flags().BoolP("verbose", "v", false, "Verbose output")
	rmCmd.Flags().StringVar(&rmCfg.DebugAddr, "debug-addr", "", "Serve metrics and the tracker dump on this address")
	rmCmd.Flags().StringVar(&rmCfg.LogPath, "log-path", "", "Also write logs to this file")
}
