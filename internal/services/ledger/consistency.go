package ledger

import (
	"context"
	"fmt"
	"log"
	"strings"

	"bankcore/internal/models"
)

// VerifyConsistency replays an account's ledger and compares the result with
// the stored balances. It checks that completed entries sum to each balance,
// that the newest entry of every category snapshots that balance, that Held
// matches the active holds and that sequence numbers run 1..LastSeq without
// gaps.
func (s *service) VerifyConsistency(ctx context.Context, accountID string) (*ConsistencyReport, error) {
	account, err := s.repo.ReadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	balances, err := s.repo.ReadBalances(ctx, accountID)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.ReadEntries(ctx, EntryFilter{AccountID: accountID, Ascending: true})
	if err != nil {
		return nil, err
	}
	holds, err := s.repo.ReadHolds(ctx, accountID, models.HoldStatusActive)
	if err != nil {
		return nil, err
	}

	replayed := make(map[models.Category]models.Amount)
	last := make(map[models.Category]models.LedgerEntry)
	for _, e := range entries {
		if e.Effective() {
			replayed[e.Category] += e.SignedAmount()
		}
		last[e.Category] = e
	}
	reserved := make(map[models.Category]models.Amount)
	for _, h := range holds {
		reserved[h.Category] += h.Amount
	}

	report := &ConsistencyReport{AccountID: accountID, Consistent: true}
	var problems []string

	for _, b := range balances {
		cr := CategoryReport{
			Category:    b.Category,
			Balance:     b.Balance,
			Held:        b.Held,
			Replayed:    replayed[b.Category],
			ActiveHolds: reserved[b.Category],
			Consistent:  true,
		}
		if e, ok := last[b.Category]; ok {
			cr.LastSeq = e.Seq
			cr.LastBalance = e.BalanceAfter
		}

		var issues []string
		if cr.Replayed != b.Balance {
			issues = append(issues, fmt.Sprintf("replayed %s != balance %s", cr.Replayed, b.Balance))
		}
		if cr.LastSeq > 0 && cr.LastBalance != b.Balance {
			issues = append(issues, fmt.Sprintf("last snapshot %s != balance %s", cr.LastBalance, b.Balance))
		}
		if cr.ActiveHolds != b.Held {
			issues = append(issues, fmt.Sprintf("active holds %s != held %s", cr.ActiveHolds, b.Held))
		}
		if len(issues) > 0 {
			cr.Consistent = false
			cr.Discrepancy = strings.Join(issues, "; ")
			problems = append(problems, string(b.Category)+": "+cr.Discrepancy)
		}
		report.Categories = append(report.Categories, cr)
	}

	if gap := sequenceGap(entries, account.LastSeq); gap != "" {
		problems = append(problems, gap)
	}

	if len(problems) > 0 {
		report.Consistent = false
		report.Discrepancy = strings.Join(problems, "; ")
		log.Printf("⚠️ Ledger inconsistency on account %s: %s", accountID, report.Discrepancy)
	}
	return report, nil
}

// sequenceGap expects entries in ascending seq order.
func sequenceGap(entries []models.LedgerEntry, lastSeq int64) string {
	for i, e := range entries {
		if want := int64(i + 1); e.Seq != want {
			return fmt.Sprintf("sequence gap: expected %d, found %d", want, e.Seq)
		}
	}
	if int64(len(entries)) != lastSeq {
		return fmt.Sprintf("sequence mismatch: %d entries, last seq %d", len(entries), lastSeq)
	}
	return ""
}
