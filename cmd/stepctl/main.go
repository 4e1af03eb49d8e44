package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stepwise-app/stepwise/cmd/stepctl/cmd"
)

func main() {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:          "stepctl",
		Short:        "Operational tools for Stepwise",
		SilenceUsage: true,
		PersistentPreRun: func(c *cobra.Command, args []string) {
			cmd.InitLogging(verbose)
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(cmd.MigrateCmd())
	rootCmd.AddCommand(cmd.FallbackCmd())
	rootCmd.AddCommand(cmd.RemindersCmd())
	rootCmd.AddCommand(cmd.TokenCmd())
	rootCmd.AddCommand(cmd.DevCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
