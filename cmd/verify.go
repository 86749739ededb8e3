package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/encodeous/icntm/core"
	"github.com/encodeous/icntm/state"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <topology>",
	Short: "Validates a topology description",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		topo, err := state.LoadTopology(args[0])
		if err != nil {
			return err
		}
		mut := core.NewMutator(topo, core.BasicRouter{}, nil, nil)
		mut.CalculateManagerFIDs()

		unreachable := 0
		for _, n := range topo.Nodes {
			if n.TMToNode.IsZero() {
				unreachable++
			}
		}
		fmt.Println("Topology is valid")
		fmt.Printf("%d nodes, %d links, fid_len %d, %d nodes unreachable from the TM\n",
			len(topo.Nodes), len(topo.Links), topo.FidLen, unreachable)
		if ok, _ := cmd.Flags().GetBool("dump"); ok {
			fmt.Print(core.DumpTopology(topo))
		}
		return nil
	},
	GroupID: "tools",
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().BoolP("dump", "d", false, "Print the topology with its manager FIDs")
}
