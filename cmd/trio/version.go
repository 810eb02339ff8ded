package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/trio"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of trio",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "trio version %s\n", strings.TrimSpace(trio.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
