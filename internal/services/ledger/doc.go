/*
Package ledger is the single authority over account balances and ledger
entries.

Every mutation runs inside one atomic unit of the ledger repository: the
balance read, the non-negativity check, the balance write and the entry append
either all commit or none do. Accounts touched by a unit are locked in sorted
order so concurrent units on overlapping accounts cannot deadlock each other.

Usage:

	svc := ledger.NewService(repo, activity, ledger.Config{}, metrics)

	// Credit 100.00 to checking
	balance, entry, err := svc.ApplyLedgerChange(ctx, accountID, models.CategoryChecking, 10000,
	    ledger.EntryTemplate{Kind: models.KindDeposit, Reference: "DEP-1"})

	// Debit a transfer and its fee together
	results, err := svc.ApplyLedgerChangeSet(ctx, []ledger.Change{...})

Holds:

Standard-speed transfers reserve funds with PlaceHold. The reserved amount is
added to the balance's Held column and pending memo entries are written; any
later debit is checked against Balance - Held. PostHold turns the reservation
into completed entries and ReleaseHold gives it back with failed memo entries.
*/
package ledger
