package transfer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"bankcore/internal/models"
	"bankcore/internal/services/ledger"
)

// SettleTransfer moves the money for a validated, priced intent. Express and
// instant tiers post immediately; the standard tier reserves the funds with a
// hold that is posted later by ConfirmPending.
func (s *service) SettleTransfer(ctx context.Context, intent Intent, pricing *Pricing, challengeCode string) (*Result, error) {
	intent = normalize(intent)

	sender, err := s.validate(ctx, intent)
	if err != nil {
		s.metrics.RecordTransfer(intent.Class, intent.Tier, "rejected")
		return nil, err
	}

	current, err := s.PriceTransfer(ctx, intent)
	if err != nil {
		s.metrics.RecordTransfer(intent.Class, intent.Tier, "rejected")
		return nil, err
	}
	if pricing != nil {
		if err := matchQuote(pricing, current); err != nil {
			s.metrics.RecordTransfer(intent.Class, intent.Tier, "rejected")
			return nil, err
		}
	}
	pricing = current

	reference, err := s.reference(intent)
	if err != nil {
		return nil, err
	}

	if intent.IdempotencyKey != "" {
		if res, err := s.replay(ctx, intent, reference, pricing); err != nil || res != nil {
			return res, err
		}
	}

	if err := s.authorize(ctx, intent, sender.OwnerID, challengeCode); err != nil {
		return nil, err
	}

	var result *Result
	err = s.withRetry(ctx, func() error {
		var err error
		if intent.Tier.Immediate() {
			result, err = s.post(ctx, intent, pricing, reference)
		} else {
			result, err = s.hold(ctx, intent, pricing, reference)
		}
		return err
	})
	if err != nil {
		// A concurrent request with the same key won the race to the ledger.
		if intent.IdempotencyKey != "" && errors.Is(err, ledger.ErrDuplicateReference) {
			if res, rerr := s.replay(ctx, intent, reference, pricing); rerr == nil && res != nil {
				return res, nil
			}
		}
		s.metrics.RecordTransfer(intent.Class, intent.Tier, "failed")
		return nil, err
	}

	s.metrics.RecordTransfer(intent.Class, intent.Tier, result.Status)
	s.metrics.RecordFee(intent.Class, pricing.Fee)
	s.notify(ctx, sender.OwnerID, result, pricing.Amount, pricing.Fee, pricing.Currency)
	return result, nil
}

// requiresChallenge applies to customer-initiated transfers above the
// threshold and to every international wire.
func (s *service) requiresChallenge(intent Intent) bool {
	if s.verifier == nil || intent.Origin != models.OriginCustomer {
		return false
	}
	return intent.Amount > s.config.ChallengeThreshold || intent.Class == models.ClassInternational
}

// authorize consumes the owner's transfer code when the intent needs one.
func (s *service) authorize(ctx context.Context, intent Intent, ownerID, challengeCode string) error {
	if !s.requiresChallenge(intent) {
		return nil
	}
	if strings.TrimSpace(challengeCode) == "" {
		s.metrics.RecordTransfer(intent.Class, intent.Tier, "challenged")
		return ErrChallengeRequired
	}
	if _, err := s.verifier.CheckChallenge(ctx, ownerID, models.PurposeTransfer, challengeCode); err != nil {
		s.metrics.RecordTransfer(intent.Class, intent.Tier, "challenge_failed")
		return fmt.Errorf("transfer challenge: %w", err)
	}
	return nil
}

func (s *service) post(ctx context.Context, intent Intent, pricing *Pricing, reference string) (*Result, error) {
	meta := s.metadata(intent, pricing)
	description := describe(intent)
	feeRef := FeeReference(reference)

	changes := []ledger.Change{{
		AccountID: intent.SenderAccountID,
		Category:  intent.SenderCategory,
		Delta:     -pricing.Amount,
		Entry:     ledger.EntryTemplate{Kind: models.KindTransferOut, Description: description, Reference: reference, Metadata: meta},
	}}
	if pricing.Fee > 0 {
		changes = append(changes, ledger.Change{
			AccountID: intent.SenderAccountID,
			Category:  intent.SenderCategory,
			Delta:     -pricing.Fee,
			Entry:     ledger.EntryTemplate{Kind: models.KindFee, Description: "Fee: " + description, Reference: feeRef, Metadata: meta},
		})
	}
	if intent.Recipient.OnUs() {
		changes = append(changes, ledger.Change{
			AccountID: intent.Recipient.AccountID,
			Category:  intent.Recipient.Category,
			Delta:     pricing.ConvertedAmount,
			Entry:     ledger.EntryTemplate{Kind: models.KindTransferIn, Description: description, Reference: reference, Metadata: meta},
		})
	}
	if pricing.Fee > 0 && s.config.FeeAccountID != "" {
		changes = append(changes, ledger.Change{
			AccountID: s.config.FeeAccountID,
			Category:  models.CategoryChecking,
			Delta:     pricing.Fee,
			Entry:     ledger.EntryTemplate{Kind: s.config.FeeIncomeKind, Description: "Fee income: " + reference, Reference: feeRef, Metadata: meta},
		})
	}

	results, err := s.ledger.ApplyLedgerChangeSet(ctx, changes)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Reference: reference,
		Status:    models.EntryStatusCompleted,
		State:     models.TransferPosted,
		Pricing:   pricing,
	}
	if pricing.Fee > 0 {
		res.FeeReference = feeRef
	}
	for _, r := range results {
		res.Entries = append(res.Entries, r.Entry)
		if r.Entry.AccountID == intent.SenderAccountID && r.Entry.Category == intent.SenderCategory {
			res.NewBalance = r.NewBalance
		}
	}
	res.Available = s.available(ctx, intent.SenderAccountID, intent.SenderCategory, res.NewBalance)
	return res, nil
}

func (s *service) hold(ctx context.Context, intent Intent, pricing *Pricing, reference string) (*Result, error) {
	req := ledger.HoldRequest{
		AccountID:    intent.SenderAccountID,
		Category:     intent.SenderCategory,
		Reference:    reference,
		Amount:       pricing.Amount,
		Fee:          pricing.Fee,
		Description:  describe(intent),
		Metadata:     s.metadata(intent, pricing),
		FeeAccountID: s.config.FeeAccountID,
	}
	if intent.Recipient.OnUs() {
		req.Credit = &ledger.CreditLeg{
			AccountID: intent.Recipient.AccountID,
			Category:  intent.Recipient.Category,
			Amount:    pricing.ConvertedAmount,
		}
	}

	hr, err := s.ledger.PlaceHold(ctx, req)
	if err != nil {
		return nil, err
	}
	res := holdResult(hr, models.EntryStatusPending, models.TransferPosted)
	res.Pricing = pricing
	return res, nil
}

// replay returns the outcome of an earlier settle with the same reference, or
// nil when the reference is unused.
func (s *service) replay(ctx context.Context, intent Intent, reference string, pricing *Pricing) (*Result, error) {
	entries, err := s.ledger.FindByReference(ctx, intent.SenderAccountID, reference)
	if err != nil {
		return nil, fmt.Errorf("lookup reference %s: %w", reference, err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	var debit *models.LedgerEntry
	for i := range entries {
		e := &entries[i]
		if e.Kind == models.KindTransferOut && e.Category == intent.SenderCategory {
			debit = e
		}
	}
	if debit == nil || debit.Amount != pricing.Amount {
		return nil, invalid("idempotency_key", "already used for a different transfer")
	}

	fees, err := s.ledger.FindByReference(ctx, intent.SenderAccountID, FeeReference(reference))
	if err != nil {
		return nil, fmt.Errorf("lookup reference %s: %w", FeeReference(reference), err)
	}

	res := &Result{
		Reference: reference,
		Status:    debit.Status,
		State:     stateOf(debit.Status),
		Pricing:   pricing,
		Entries:   append(entries, fees...),
		Replayed:  true,
	}
	if len(fees) > 0 {
		res.FeeReference = FeeReference(reference)
	}
	if bal, err := s.ledger.GetBalance(ctx, intent.SenderAccountID, intent.SenderCategory); err == nil {
		res.NewBalance = bal.Balance
		res.Available = bal.Available()
	} else {
		res.NewBalance = debit.BalanceAfter
		res.Available = debit.BalanceAfter
	}

	log.Printf("Replayed transfer %s for idempotency key on account %s", reference, intent.SenderAccountID)
	s.metrics.RecordTransfer(intent.Class, intent.Tier, "replayed")
	return res, nil
}

// ConfirmPending posts a held transfer.
func (s *service) ConfirmPending(ctx context.Context, reference string) (*Result, error) {
	var hr *ledger.HoldResult
	err := s.withRetry(ctx, func() error {
		var err error
		hr, err = s.ledger.PostHold(ctx, reference)
		return err
	})
	if err != nil {
		return nil, holdError(err)
	}

	res := holdResult(hr, models.EntryStatusCompleted, models.TransferPosted)
	s.metrics.RecordTransfer(holdClass(&hr.Hold), models.TierStandard, res.Status)
	s.metrics.RecordFee(holdClass(&hr.Hold), hr.Hold.Fee)
	s.notifyHold(ctx, &hr.Hold, res)
	return res, nil
}

// CancelPending releases a held transfer. The reserved funds become available
// again and the pending entries are closed out as failed.
func (s *service) CancelPending(ctx context.Context, reference, reason string) (*Result, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "cancelled"
	}

	var hr *ledger.HoldResult
	err := s.withRetry(ctx, func() error {
		var err error
		hr, err = s.ledger.ReleaseHold(ctx, reference, reason)
		return err
	})
	if err != nil {
		return nil, holdError(err)
	}

	res := holdResult(hr, models.EntryStatusFailed, models.TransferFailed)
	s.metrics.RecordTransfer(holdClass(&hr.Hold), models.TierStandard, "cancelled")
	s.notifyHold(ctx, &hr.Hold, res)
	return res, nil
}

func holdResult(hr *ledger.HoldResult, status string, state models.TransferState) *Result {
	res := &Result{
		Reference:  hr.Hold.Reference,
		Status:     status,
		State:      state,
		NewBalance: hr.Balance.Balance,
		Available:  hr.Balance.Available(),
		Entries:    hr.Entries,
	}
	if hr.Hold.Fee > 0 {
		res.FeeReference = FeeReference(hr.Hold.Reference)
	}
	return res
}

func holdError(err error) error {
	if errors.Is(err, ledger.ErrHoldNotActive) {
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	return err
}

func holdClass(h *models.Hold) models.TransferClass {
	return models.TransferClass(h.Metadata.String("class"))
}

func stateOf(status string) models.TransferState {
	if status == models.EntryStatusFailed {
		return models.TransferFailed
	}
	return models.TransferPosted
}

// available reads the spendable balance after a commit. The read is outside
// the atomic unit, so on error the committed balance is reported instead.
func (s *service) available(ctx context.Context, accountID string, category models.Category, fallback models.Amount) models.Amount {
	bal, err := s.ledger.GetBalance(ctx, accountID, category)
	if err != nil {
		return fallback
	}
	return bal.Available()
}

func (s *service) metadata(intent Intent, pricing *Pricing) models.JSON {
	meta := models.JSON{
		"class":  string(intent.Class),
		"tier":   string(intent.Tier),
		"origin": string(intent.Origin),
	}
	if intent.OwnerID != "" {
		meta["owner_id"] = intent.OwnerID
	}
	if intent.IdempotencyKey != "" {
		meta["idempotency_key"] = intent.IdempotencyKey
	}

	r := intent.Recipient
	if r.OnUs() {
		meta["counterparty_account_id"] = r.AccountID
		meta["counterparty_category"] = string(r.Category)
	} else {
		meta["recipient_name"] = r.Name
		meta["recipient_country"] = r.Country
		if r.BankName != "" {
			meta["recipient_bank"] = r.BankName
		}
		if r.BIC != "" {
			meta["recipient_bic"] = r.BIC
		}
		if r.IBAN != "" {
			meta["recipient_iban"] = mask(r.IBAN)
		}
		if r.AccountNumber != "" {
			meta["recipient_account"] = mask(r.AccountNumber)
		}
		if r.RoutingNumber != "" {
			meta["recipient_routing"] = r.RoutingNumber
		}
	}

	if pricing.TargetCurrency != pricing.Currency {
		meta["exchange_rate"] = pricing.ExchangeRate.String()
		meta["target_currency"] = pricing.TargetCurrency
		meta["converted_amount"] = pricing.ConvertedAmount.String()
	}
	if pricing.Surcharge > 0 {
		meta["surcharge"] = pricing.Surcharge.String()
	}
	return meta
}

// mask keeps the last four characters of an account identifier.
func mask(s string) string {
	s = strings.ReplaceAll(s, " ", "")
	if len(s) <= 4 {
		return s
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}

func describe(intent Intent) string {
	if intent.Description != "" {
		return intent.Description
	}
	r := intent.Recipient
	switch {
	case intent.Class == models.ClassInternal:
		return fmt.Sprintf("Move %s to %s", intent.SenderCategory, r.Category)
	case r.Name != "":
		return fmt.Sprintf("%s transfer to %s", titleCase(string(intent.Class)), r.Name)
	}
	return fmt.Sprintf("%s transfer", titleCase(string(intent.Class)))
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (s *service) notify(ctx context.Context, destination string, res *Result, amount, fee models.Amount, currency string) {
	if destination == "" {
		return
	}
	payload := models.Notification{
		Reference: res.Reference,
		Status:    res.Status,
		Amount:    amount,
		Fee:       fee,
		Currency:  currency,
		Message:   fmt.Sprintf("Transfer %s is %s", res.Reference, res.Status),
	}
	if err := s.notifier.Notify(context.WithoutCancel(ctx), destination, models.PurposeTransfer, payload); err != nil {
		log.Printf("Failed to notify transfer %s: %v", res.Reference, err)
	}
}

func (s *service) notifyHold(ctx context.Context, h *models.Hold, res *Result) {
	destination := h.Metadata.String("owner_id")
	if destination == "" {
		if account, err := s.ledger.GetAccount(ctx, h.AccountID); err == nil {
			destination = account.OwnerID
		}
	}
	s.notify(ctx, destination, res, h.Principal(), h.Fee, h.Currency)
}
