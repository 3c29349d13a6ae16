package commands

import (
	"context"
	"fmt"
	"os"

	"formrunner/lib/telemetry"

	"github.com/spf13/cobra"
)

var debug *bool

func init() {
	debug = rootCmd.PersistentFlags().Bool("debug", false, "Enables debug logging, including request/response previews.")
}

var rootCmd = &cobra.Command{
	Use:   "formrunner",
	Short: "formrunner automates one submission of the Good Save report form.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*debug)
	},
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
