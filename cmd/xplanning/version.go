package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/xplanning"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of xplanning",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "xplanning version %s\n", strings.TrimSpace(xplanning.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
