package cli

import (
	"time"

	"bankcore/internal/bootstrap"
	"bankcore/internal/services/scheduler"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(recurringCmd)
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove expired one-time code challenges once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(func(c *bootstrap.Container) error {
			n, err := c.Verifier.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			printf(cmd, "Swept %d expired challenges\n", n)
			return nil
		})
	},
}

var recurringCmd = &cobra.Command{
	Use:   "run-recurring",
	Short: "Settle the standing orders due now, outside the scheduler",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(func(c *bootstrap.Container) error {
			return runRecurring(cmd, c.Transfer, time.Now())
		})
	},
}

func runRecurring(cmd *cobra.Command, runner scheduler.RecurringRunner, now time.Time) error {
	report, err := runner.RunRecurring(cmd.Context(), now)
	if err != nil {
		return err
	}
	printf(cmd, "due=%d completed=%d failed=%d deferred=%d\n",
		report.Due, report.Completed, report.Failed, report.Deferred)
	return nil
}
