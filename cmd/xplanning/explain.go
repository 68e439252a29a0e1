package main

import (
	"os"

	"github.com/aretw0/xplanning/internal/cli"
	"github.com/spf13/cobra"
)

var explainCmd = &cobra.Command{
	Use:   "explain <model>",
	Short: "Explain the optimal policy of a model",
	Long: `Solves the model, or takes the policy given with --policy, and reports how each
alternative policy trades the quality attributes of the model.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := runOptions(cmd, args)
		opts.JSON, _ = cmd.Flags().GetBool("json")

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()
		return cli.RunExplain(ctx, opts, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(explainCmd)
	explainCmd.Flags().String("policy", "", "Policy file to explain instead of the optimal policy")
	explainCmd.Flags().Bool("json", false, "Write the explanation as JSON")
}
