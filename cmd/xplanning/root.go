package main

import (
	"fmt"
	"os"

	"github.com/aretw0/xplanning/internal/cli"
	"github.com/aretw0/xplanning/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "xplanning",
	Short: "xplanning explains MDP policies through their alternatives",
	Long: `xplanning solves factored multi-objective MDPs and explains the optimal policy
by contrasting it with the alternatives that trade one quality attribute for another.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", config.DefaultFile, "Settings file")
	rootCmd.PersistentFlags().Bool("debug", false, "Log everything to stderr")
}

// runOptions reads the shared flags; the model is the first argument.
func runOptions(cmd *cobra.Command, args []string) cli.RunOptions {
	configPath, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")
	policyPath, _ := cmd.Flags().GetString("policy")
	return cli.RunOptions{
		ConfigPath: configPath,
		ModelPath:  args[0],
		PolicyPath: policyPath,
		Debug:      debug,
	}
}
