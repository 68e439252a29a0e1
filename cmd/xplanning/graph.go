package main

import (
	"os"

	"github.com/aretw0/xplanning/internal/cli"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <model>",
	Short: "Export the model or a policy as a Mermaid diagram",
	Long: `Outputs a Mermaid diagram (graph TD) of the chain induced by the optimal policy,
the policy given with --policy, or with --full every transition of the model.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		full, _ := cmd.Flags().GetBool("full")

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()
		return cli.RunGraph(ctx, cli.GraphOptions{RunOptions: runOptions(cmd, args), Full: full}, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("policy", "", "Policy file to draw instead of the optimal policy")
	graphCmd.Flags().Bool("full", false, "Draw every action of the model")
}
