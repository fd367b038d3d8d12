package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/langflow-ai/flowbuild/internal/cli"
)

// demoCmd runs a scripted build against an in-process engine.
var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Build a scripted flow against a local in-process engine",
	Long: `Demo starts a fake engine inside the process and builds a small
retrieval flow against it, exercising the full event protocol without
any external service.`,
	Run: func(cmd *cobra.Command, args []string) {
		opts := cli.DemoOptions{}
		opts.Delivery, _ = cmd.Flags().GetString("delivery")
		opts.Fail, _ = cmd.Flags().GetBool("fail")
		opts.Debug, _ = cmd.Flags().GetBool("debug")
		opts.NoColor, _ = cmd.Flags().GetBool("no-color")

		if err := cli.Demo(opts); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(demoCmd)

	demoCmd.Flags().String("delivery", "", "Force event delivery: direct, streaming or polling")
	demoCmd.Flags().Bool("fail", false, "Script a failing model component")
}
