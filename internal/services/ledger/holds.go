package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bankcore/internal/models"
	"bankcore/internal/repositories"
)

func (s *service) PlaceHold(ctx context.Context, req HoldRequest) (*HoldResult, error) {
	const op = "place_hold"
	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration(op, time.Since(start)) }()

	if err := validateHoldRequest(req); err != nil {
		s.metrics.RecordError(op, "invalid_change")
		return nil, err
	}

	var result *HoldResult
	err := s.repo.WithAtomicUnit(ctx, func(tx repositories.LedgerTx) error {
		u := newUnit(tx, time.Now().UTC())

		keys := []balanceKey{{accountID: req.AccountID, category: req.Category}}
		if req.Credit != nil {
			keys = append(keys, balanceKey{accountID: req.Credit.AccountID, category: req.Credit.Category})
		}
		if req.FeeAccountID != "" && req.Fee > 0 {
			keys = append(keys, balanceKey{accountID: req.FeeAccountID, category: models.CategoryChecking})
		}
		if err := u.lock(keys); err != nil {
			return err
		}

		account := u.account(req.AccountID)
		if err := checkDebit(account); err != nil {
			return err
		}
		if req.Credit != nil {
			if err := checkCredit(u.account(req.Credit.AccountID)); err != nil {
				return err
			}
		}

		if _, err := tx.ReadHold(req.Reference); err == nil {
			return fmt.Errorf("%w: hold %s", ErrDuplicateReference, req.Reference)
		} else if !errors.Is(err, ErrHoldNotFound) {
			return err
		}

		balance := u.balance(req.AccountID, req.Category)
		total := req.Amount + req.Fee
		if balance.Available() < total {
			return insufficient(balance, total)
		}
		balance.Held += total

		if _, err := u.append(balance, models.KindTransferOut, req.Amount, models.EntryStatusPending, EntryTemplate{
			Description: req.Description,
			Reference:   req.Reference,
			Metadata:    req.Metadata,
		}); err != nil {
			return err
		}
		if req.Fee > 0 {
			if _, err := u.append(balance, models.KindFee, req.Fee, models.EntryStatusPending, EntryTemplate{
				Description: feeDescription(req.Description),
				Reference:   req.Reference + models.FeeSuffix,
				Metadata:    req.Metadata,
			}); err != nil {
				return err
			}
		}

		hold := &models.Hold{
			AccountID:    req.AccountID,
			Category:     req.Category,
			Reference:    req.Reference,
			Amount:       total,
			Fee:          req.Fee,
			Currency:     account.Currency,
			Status:       models.HoldStatusActive,
			Description:  req.Description,
			FeeAccountID: req.FeeAccountID,
			Metadata:     req.Metadata,
		}
		if req.Credit != nil {
			hold.CreditAccountID = req.Credit.AccountID
			hold.CreditCategory = req.Credit.Category
			hold.CreditAmount = req.Credit.Amount
		}
		if err := tx.CreateHold(hold); err != nil {
			return err
		}
		if err := u.flush(); err != nil {
			return err
		}

		result = &HoldResult{Hold: *hold, Entries: u.entries, Balance: *balance}
		return nil
	})
	if err != nil {
		s.recordFailure(op, err)
		return nil, err
	}

	s.metrics.RecordOperationResult(op, "success")
	s.publish(ctx, result.Entries)
	return result, nil
}

func (s *service) PostHold(ctx context.Context, reference string) (*HoldResult, error) {
	const op = "post_hold"
	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration(op, time.Since(start)) }()

	var result *HoldResult
	err := s.repo.WithAtomicUnit(ctx, func(tx repositories.LedgerTx) error {
		hold, err := tx.ReadHold(reference)
		if err != nil {
			return err
		}
		if !hold.IsActive() {
			return fmt.Errorf("%w: hold %s is %s", ErrHoldNotActive, reference, hold.Status)
		}

		u := newUnit(tx, time.Now().UTC())
		keys := []balanceKey{{accountID: hold.AccountID, category: hold.Category}}
		if hold.CreditAccountID != "" {
			keys = append(keys, balanceKey{accountID: hold.CreditAccountID, category: hold.CreditCategory})
		}
		if hold.FeeAccountID != "" && hold.Fee > 0 {
			keys = append(keys, balanceKey{accountID: hold.FeeAccountID, category: models.CategoryChecking})
		}
		if err := u.lock(keys); err != nil {
			return err
		}

		balance := u.balance(hold.AccountID, hold.Category)
		if balance.Held < hold.Amount || balance.Balance < hold.Amount {
			return fmt.Errorf("%w: hold %s exceeds reserved funds", ErrInvalidChange, reference)
		}
		balance.Held -= hold.Amount
		balance.Balance -= hold.Principal()
		if _, err := u.append(balance, models.KindTransferOut, hold.Principal(), models.EntryStatusCompleted, EntryTemplate{
			Description: hold.Description,
			Reference:   hold.Reference,
			Metadata:    hold.Metadata,
		}); err != nil {
			return err
		}
		if hold.Fee > 0 {
			balance.Balance -= hold.Fee
			if _, err := u.append(balance, models.KindFee, hold.Fee, models.EntryStatusCompleted, EntryTemplate{
				Description: feeDescription(hold.Description),
				Reference:   hold.Reference + models.FeeSuffix,
				Metadata:    hold.Metadata,
			}); err != nil {
				return err
			}
		}

		if hold.CreditAccountID != "" && hold.CreditAmount > 0 {
			if err := checkCredit(u.account(hold.CreditAccountID)); err != nil {
				return err
			}
			credit := u.balance(hold.CreditAccountID, hold.CreditCategory)
			credit.Balance += hold.CreditAmount
			if _, err := u.append(credit, models.KindTransferIn, hold.CreditAmount, models.EntryStatusCompleted, EntryTemplate{
				Description: hold.Description,
				Reference:   hold.Reference,
				Metadata:    hold.Metadata,
			}); err != nil {
				return err
			}
		}
		if hold.FeeAccountID != "" && hold.Fee > 0 {
			income := u.balance(hold.FeeAccountID, models.CategoryChecking)
			income.Balance += hold.Fee
			if _, err := u.append(income, s.config.FeeIncomeKind, hold.Fee, models.EntryStatusCompleted, EntryTemplate{
				Description: "Fee income " + hold.Reference,
				Reference:   hold.Reference + models.FeeSuffix,
			}); err != nil {
				return err
			}
		}

		hold.Status = models.HoldStatusPosted
		if err := tx.WriteHold(hold); err != nil {
			return err
		}
		if err := u.flush(); err != nil {
			return err
		}
		result = &HoldResult{Hold: *hold, Entries: u.entries, Balance: *balance}
		return nil
	})
	if err != nil {
		s.recordFailure(op, err)
		return nil, err
	}

	s.metrics.RecordOperationResult(op, "success")
	for _, e := range result.Entries {
		s.metrics.RecordEntry(e.Kind, e.Amount)
	}
	s.publish(ctx, result.Entries)
	return result, nil
}

func (s *service) ReleaseHold(ctx context.Context, reference, reason string) (*HoldResult, error) {
	const op = "release_hold"
	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration(op, time.Since(start)) }()

	var result *HoldResult
	err := s.repo.WithAtomicUnit(ctx, func(tx repositories.LedgerTx) error {
		hold, err := tx.ReadHold(reference)
		if err != nil {
			return err
		}
		if !hold.IsActive() {
			return fmt.Errorf("%w: hold %s is %s", ErrHoldNotActive, reference, hold.Status)
		}

		u := newUnit(tx, time.Now().UTC())
		if err := u.lock([]balanceKey{{accountID: hold.AccountID, category: hold.Category}}); err != nil {
			return err
		}
		balance := u.balance(hold.AccountID, hold.Category)
		if balance.Held < hold.Amount {
			return fmt.Errorf("%w: hold %s exceeds reserved funds", ErrInvalidChange, reference)
		}
		balance.Held -= hold.Amount

		meta := hold.Metadata.Clone()
		if reason != "" {
			meta["failure_reason"] = reason
		}
		if _, err := u.append(balance, models.KindTransferOut, hold.Principal(), models.EntryStatusFailed, EntryTemplate{
			Description: hold.Description,
			Reference:   hold.Reference,
			Metadata:    meta,
		}); err != nil {
			return err
		}
		if hold.Fee > 0 {
			if _, err := u.append(balance, models.KindFee, hold.Fee, models.EntryStatusFailed, EntryTemplate{
				Description: feeDescription(hold.Description),
				Reference:   hold.Reference + models.FeeSuffix,
				Metadata:    meta,
			}); err != nil {
				return err
			}
		}

		hold.Status = models.HoldStatusReleased
		hold.Reason = reason
		if err := tx.WriteHold(hold); err != nil {
			return err
		}
		if err := u.flush(); err != nil {
			return err
		}
		result = &HoldResult{Hold: *hold, Entries: u.entries, Balance: *balance}
		return nil
	})
	if err != nil {
		s.recordFailure(op, err)
		return nil, err
	}

	s.metrics.RecordOperationResult(op, "success")
	s.publish(ctx, result.Entries)
	return result, nil
}

func (s *service) GetHold(ctx context.Context, reference string) (*models.Hold, error) {
	return s.repo.ReadHold(ctx, reference)
}

func (s *service) ListHolds(ctx context.Context, accountID, status string) ([]models.Hold, error) {
	return s.repo.ReadHolds(ctx, accountID, status)
}

func validateHoldRequest(req HoldRequest) error {
	switch {
	case req.AccountID == "":
		return fmt.Errorf("%w: hold has no account", ErrInvalidChange)
	case !req.Category.Valid():
		return fmt.Errorf("%w: unknown category %q", ErrInvalidChange, req.Category)
	case req.Reference == "":
		return fmt.Errorf("%w: hold has no reference", ErrInvalidChange)
	case req.Amount <= 0:
		return fmt.Errorf("%w: hold amount must be positive", ErrInvalidChange)
	case req.Fee < 0:
		return fmt.Errorf("%w: fee cannot be negative", ErrInvalidChange)
	}
	if req.Credit != nil {
		if req.Credit.AccountID == "" || !req.Credit.Category.Valid() || req.Credit.Amount <= 0 {
			return fmt.Errorf("%w: invalid credit leg", ErrInvalidChange)
		}
		if req.Credit.AccountID == req.AccountID && req.Credit.Category == req.Category {
			return fmt.Errorf("%w: credit leg targets the held balance", ErrInvalidChange)
		}
	}
	return nil
}

func feeDescription(description string) string {
	if description == "" {
		return "Transfer fee"
	}
	return "Fee: " + description
}
