package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/greenledger/pkg/greenledger"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the greenledger version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if flagJSON {
			_ = printJSON(map[string]string{"version": greenledger.Version})
			return
		}
		fmt.Printf("greenledger %s\n", greenledger.Version)
	},
}
