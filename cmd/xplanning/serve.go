package main

import (
	"github.com/aretw0/xplanning"
	"github.com/aretw0/xplanning/internal/cli"
	"github.com/aretw0/xplanning/internal/presentation/report"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP explanation server",
	Long:  `Serves /model, /explain, /healthz and /metrics until interrupted.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		debug, _ := cmd.Flags().GetBool("debug")
		addr, _ := cmd.Flags().GetString("addr")

		report.PrintBanner(cmd.ErrOrStderr(), xplanning.Version)

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()
		return cli.RunServe(ctx, cli.ServeOptions{
			RunOptions: cli.RunOptions{ConfigPath: configPath, Debug: debug},
			Addr:       addr,
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Address to listen on (default from the settings file)")
}
