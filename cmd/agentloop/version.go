package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/agentloop"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of agentloop",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "agentloop version %s\n", strings.TrimSpace(agentloop.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
