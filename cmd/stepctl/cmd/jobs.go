package cmd

import (
	"github.com/spf13/cobra"

	"github.com/stepwise-app/stepwise/internal/app"
)

func FallbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fallback",
		Short: "Inspect and replay goals held in the fallback log",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "reconcile",
		Short: "Write logged goals into the database and compact the log",
		RunE: func(c *cobra.Command, args []string) error {
			return withApp(c.Context(), func(a *app.App) error {
				report, err := a.Reconciler.Run(c.Context())
				if err != nil {
					return err
				}
				return printJSON(report)
			})
		},
	})

	return cmd
}

func RemindersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Check-in reminder emails",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "send",
		Short: "Email every user with active goals and no activity today",
		RunE: func(c *cobra.Command, args []string) error {
			return withApp(c.Context(), func(a *app.App) error {
				report, err := a.ReminderService.Send(c.Context())
				if err != nil {
					return err
				}
				return printJSON(report)
			})
		},
	})

	return cmd
}
