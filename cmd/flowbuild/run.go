package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/langflow-ai/flowbuild/internal/cli"
)

// runCmd builds one flow end to end.
var runCmd = &cobra.Command{
	Use:   "run <flow-id>",
	Short: "Build a flow and stream its progress",
	Long: `Run asks the engine for the flow's execution order, starts a build
and renders per-component progress as events arrive. Delivery falls
back from direct to streaming to polling automatically.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		opts := cli.RunOptions{FlowID: args[0]}
		opts.ConfigPath, _ = cmd.Flags().GetString("config")
		opts.EngineURL, _ = cmd.Flags().GetString("engine")
		opts.APIKey, _ = cmd.Flags().GetString("api-key")
		opts.Debug, _ = cmd.Flags().GetBool("debug")
		opts.NoColor, _ = cmd.Flags().GetBool("no-color")
		opts.InputValue, _ = cmd.Flags().GetString("input")
		opts.SessionID, _ = cmd.Flags().GetString("session")
		opts.Delivery, _ = cmd.Flags().GetString("delivery")
		opts.Eventless, _ = cmd.Flags().GetBool("eventless")
		opts.LogBuilds, _ = cmd.Flags().GetBool("log-builds")
		opts.StartID, _ = cmd.Flags().GetString("start")
		opts.StopID, _ = cmd.Flags().GetString("stop")

		if opts.StartID != "" && opts.StopID != "" {
			fmt.Println("Error: --start and --stop cannot be used together.")
			os.Exit(1)
		}
		if err := cli.Run(opts); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("input", "", "Chat input value passed to the flow")
	runCmd.Flags().String("session", "", "Session id (defaults to the flow id)")
	runCmd.Flags().String("delivery", "", "Force event delivery: direct, streaming or polling")
	runCmd.Flags().Bool("eventless", false, "Use per-vertex builds instead of the event stream")
	runCmd.Flags().Bool("log-builds", false, "Ask the engine to log vertex builds")
	runCmd.Flags().String("start", "", "Build only from this component onwards")
	runCmd.Flags().String("stop", "", "Build only up to this component")
}
