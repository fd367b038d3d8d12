package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "flowbuild",
	Short: "flowbuild drives flow builds against a remote execution engine",
	Long: `flowbuild resolves the execution order of an AI-component flow,
streams build events from the engine and renders per-component progress.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a flowbuild config file")
	rootCmd.PersistentFlags().String("engine", "", "Engine base URL (overrides config)")
	rootCmd.PersistentFlags().String("api-key", "", "Engine API key (overrides config)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
}
