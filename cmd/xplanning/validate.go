package main

import (
	"os"

	"github.com/aretw0/xplanning/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <model>",
	Short: "Check a model file for consistency",
	Long:  `Builds the model and reports every structural or reference error, and every invalid distribution.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.RunValidate(args[0], os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
