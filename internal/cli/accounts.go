package cli

import (
	"fmt"

	"bankcore/internal/bootstrap"
	"bankcore/internal/models"
	"bankcore/internal/services/ledger"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(accountsCmd)
	accountsCmd.AddCommand(accountsOpenCmd)
	accountsCmd.AddCommand(accountsVerifyCmd)
	accountsCmd.AddCommand(accountsRebuildCmd)

	accountsOpenCmd.Flags().String("owner", "", "Owner (subject) ID")
	accountsOpenCmd.Flags().String("currency", "USD", "ISO 4217 currency")
	accountsOpenCmd.Flags().String("deposit", "", "Opening deposit in major units, e.g. 1000.00")
	_ = accountsOpenCmd.MarkFlagRequired("owner")
}

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Open and check ledger accounts",
}

var accountsOpenCmd = &cobra.Command{
	Use:   "open",
	Short: "Open an account, optionally with an opening deposit",
	Long: `Open an account for an owner. Use --owner bank to create the fee
income account and put its ID in FEE_ACCOUNT_ID.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(func(c *bootstrap.Container) error {
			return runAccountsOpen(cmd, c.Ledger)
		})
	},
}

func runAccountsOpen(cmd *cobra.Command, l ledger.Service) error {
	owner, _ := cmd.Flags().GetString("owner")
	currency, _ := cmd.Flags().GetString("currency")
	deposit, _ := cmd.Flags().GetString("deposit")

	var amount models.Amount
	if deposit != "" {
		var err error
		if amount, err = models.ParseAmount(deposit); err != nil {
			return err
		}
		if amount <= 0 {
			return fmt.Errorf("deposit must be positive")
		}
	}

	account, err := l.OpenAccount(cmd.Context(), owner, currency)
	if err != nil {
		return fmt.Errorf("open account: %w", err)
	}
	printf(cmd, "Opened account %s for %s (%s)\n", account.ID, account.OwnerID, account.Currency)

	if amount > 0 {
		balance, _, err := l.ApplyLedgerChange(cmd.Context(), account.ID, models.CategoryChecking, amount, ledger.EntryTemplate{
			Kind:        models.KindDeposit,
			Description: "Opening deposit",
			Reference:   ledger.NewReference("DEP"),
		})
		if err != nil {
			return fmt.Errorf("opening deposit: %w", err)
		}
		printf(cmd, "Deposited %s, checking balance %s\n", amount, balance)
	}
	return nil
}

var accountsVerifyCmd = &cobra.Command{
	Use:   "verify ACCOUNT_ID...",
	Short: "Replay entries and compare them with stored balances",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(func(c *bootstrap.Container) error {
			return runAccountsVerify(cmd, c.Ledger, args)
		})
	},
}

func runAccountsVerify(cmd *cobra.Command, l ledger.Service, ids []string) error {
	failed := 0
	for _, id := range ids {
		report, err := l.VerifyConsistency(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("verify %s: %w", id, err)
		}
		if report.Consistent {
			printf(cmd, "%s consistent\n", id)
			continue
		}
		failed++
		printf(cmd, "%s INCONSISTENT: %s\n", id, report.Discrepancy)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d accounts inconsistent", failed, len(ids))
	}
	return nil
}

var accountsRebuildCmd = &cobra.Command{
	Use:   "rebuild-activity ACCOUNT_ID",
	Short: "Rebuild the Redis recent-activity list from the ledger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(func(c *bootstrap.Container) error {
			if err := c.Ledger.RebuildRecentActivity(cmd.Context(), args[0]); err != nil {
				return err
			}
			printf(cmd, "Rebuilt recent activity for %s\n", args[0])
			return nil
		})
	},
}
