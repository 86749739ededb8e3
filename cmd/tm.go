package cmd

import (
	"github.com/spf13/cobra"

	"github.com/encodeous/icntm/core"
	"github.com/encodeous/icntm/state"
)

var tmCfg = state.DefaultTMConfig()

var tmCmd = &cobra.Command{
	Use:   "tm <topology>",
	Short: "Run the topology manager",
	Long: `Loads the topology description and answers path requests and link-state events on the control bus.
The bus is in-memory and private to this process, so a resilience manager started with "icntm rm" cannot reach it.
Use "icntm run" to run both managers on one bus.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		topo, err := state.LoadTopology(args[0])
		if err != nil {
			return err
		}
		return core.Start(core.Options{
			Process:  state.ProcessTM,
			Topology: topo,
			TM:       tmCfg,
			LogLevel: logLevel(cmd),
		})
	},
	GroupID: "ctl",
}

func init() {
	rootCmd.AddCommand(tmCmd)
	bindTMFlags(tmCmd)
	tmCmd.Flags().StringVar(&tmCfg.DebugAddr, "debug-addr", "", "Serve metrics and the topology dump on this address")
	tmCmd.Flags().StringVar(&tmCfg.LogPath, "log-path", "", "Also write logs to this file")
}

// bindTMFlags registers the topology manager options shared by tm and run.
func bindTMFlags(c *cobra.Command) {
	f := c.Flags()
	f.BoolP("verbose", "v", false, "Verbose output")
	f.BoolVar(&tmCfg.TrafficEngineering, "te", false, "Route on traffic engineering weights")
	f.DurationVar(&tmCfg.TEDelay, "te-delay", tmCfg.TEDelay, "Interval between traffic engineering refreshes")
	f.Float64Var(&tmCfg.TEEpsilon, "te-epsilon", tmCfg.TEEpsilon, "Utilisation change that triggers a weight refresh")
	f.Float64Var(&tmCfg.TEBandwidth, "te-bandwidth", tmCfg.TEBandwidth, "Link capacity in bit/s")
	f.BoolVar(&tmCfg.QoS, "qos", false, "Route on QoS priority planes")
	f.BoolVar(&tmCfg.Resilience, "resilience", false, "Report deliveries and link failures to the resilience manager")
	f.BoolVar(&tmCfg.PathManagement, "path-management", false, "Notify nodes of failed links directly")
	f.BoolVar(&tmCfg.UnicastNotify, "unicast-notify", tmCfg.UnicastNotify, "Send path management notifications per node instead of one broadcast")
	f.DurationVar(&tmCfg.MetadataTTL, "metadata-ttl", tmCfg.MetadataTTL, "How long QoS metadata is kept for an item")

	c.MarkFlagsMutuallyExclusive("resilience", "path-management")
	c.MarkFlagsMutuallyExclusive("te", "qos")
}
