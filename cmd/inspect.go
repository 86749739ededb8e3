package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/encodeous/icntm/core"
)

var inspectCmd = &cobra.Command{
	Use:     "inspect <debug-addr>",
	Aliases: []string{"i"},
	Short:   "Inspects the topology of a running manager",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := core.Inspect(args[0])
		if err != nil {
			return err
		}
		fmt.Print(result)
		return nil
	},
	GroupID: "tools",
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
