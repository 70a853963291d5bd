package transfer

import (
	"context"
	"errors"
	"strings"

	domainerrors "bankcore/internal/errors"
	"bankcore/internal/models"
	"bankcore/internal/validation"
)

var maxAmountByClass = map[models.TransferClass]models.Amount{
	models.ClassInternal:      validation.MaxInternalTransferAmount,
	models.ClassDomestic:      validation.MaxDomesticTransferAmount,
	models.ClassInternational: validation.MaxInternationalTransferAmt,
}

// ValidateTransfer checks an intent and reports every violated rule at once
// as a *ValidationError.
func (s *service) ValidateTransfer(ctx context.Context, intent Intent) error {
	_, err := s.validate(ctx, normalize(intent))
	return err
}

// validate returns the sender account when the intent is valid.
func (s *service) validate(ctx context.Context, intent Intent) (*models.Account, error) {
	v := validation.New()

	v.Required("sender_account_id", intent.SenderAccountID)
	if intent.Origin == models.OriginCustomer {
		v.Required("owner_id", intent.OwnerID)
	}
	v.Check(intent.SenderCategory.Valid(), "sender_category", "must be checking, savings or investment")
	v.Check(intent.Class.Valid(), "class", "must be internal, domestic or international")
	v.Check(intent.Tier.Valid(), "tier", "must be standard, express or instant")
	if intent.Class.Valid() && intent.Tier.Valid() {
		_, offered := s.config.Fees[intent.Class][intent.Tier]
		v.Check(offered, "tier", "is not offered for "+string(intent.Class)+" transfers")
	}

	if max, ok := maxAmountByClass[intent.Class]; ok {
		v.AmountRange("amount", intent.Amount, validation.MinTransferAmount, max)
	} else {
		v.Check(intent.Amount >= validation.MinTransferAmount, "amount", "must be positive")
	}
	v.Currency("currency", intent.Currency)
	if intent.TargetCurrency != "" {
		v.Currency("target_currency", intent.TargetCurrency)
	}
	v.MaxLength("description", intent.Description, validation.MaxDescriptionLength)
	v.MaxLength("idempotency_key", intent.IdempotencyKey, validation.MaxReferenceLength)

	s.validateRecipient(v, intent)

	var sender *models.Account
	if intent.SenderAccountID != "" {
		sender = s.validateAccounts(ctx, v, intent)
	}

	if !v.Valid() {
		return nil, &ValidationError{Violations: v.Violations()}
	}
	return sender, nil
}

func (s *service) validateRecipient(v *validation.Validator, intent Intent) {
	r := intent.Recipient

	switch intent.Class {
	case models.ClassInternal:
		v.Required("recipient.account_id", r.AccountID)
		v.Check(r.Category.Valid(), "recipient.category", "must be checking, savings or investment")
		v.Check(r.AccountID != intent.SenderAccountID || r.Category != intent.SenderCategory,
			"recipient", "must differ from the sender")
		v.Check(intent.targetCurrency() == intent.Currency, "target_currency", "internal moves cannot convert currency")
		return
	case models.ClassDomestic, models.ClassInternational:
	default:
		return
	}

	v.Required("recipient.name", r.Name)
	v.MaxLength("recipient.name", r.Name, validation.MaxRecipientNameLength)

	if r.OnUs() {
		v.Check(r.Category == "" || r.Category.Valid(), "recipient.category", "must be checking, savings or investment")
		v.Check(r.AccountID != intent.SenderAccountID, "recipient", "must differ from the sender")
		return
	}

	v.Country("recipient.country", r.Country)
	if !validation.ValidCountry(r.Country) {
		return
	}

	domesticCountry := r.Country == s.config.HomeCountry
	if intent.Class == models.ClassDomestic {
		v.Check(domesticCountry, "recipient.country", "must be "+s.config.HomeCountry+" for domestic transfers")
	} else {
		v.Check(!domesticCountry, "recipient.country", "must be outside "+s.config.HomeCountry+" for international transfers")
	}

	switch {
	case validation.UsesIBAN(r.Country):
		v.IBAN("recipient.iban", r.IBAN)
		if validation.ValidIBAN(r.IBAN) {
			v.Check(strings.HasPrefix(validation.NormalizeIBAN(r.IBAN), r.Country), "recipient.iban", "does not match the recipient country")
		}
	case r.Country == "US":
		v.AccountNumber("recipient.account_number", r.AccountNumber)
		v.RoutingNumber("recipient.routing_number", r.RoutingNumber)
	default:
		v.Required("recipient.account_number", r.AccountNumber)
	}

	if intent.Class == models.ClassInternational {
		v.BIC("recipient.bic", r.BIC)
	}
}

func (s *service) validateAccounts(ctx context.Context, v *validation.Validator, intent Intent) *models.Account {
	account, err := s.ledger.GetAccount(ctx, intent.SenderAccountID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrAccountNotFound) {
			v.AddError("sender_account_id", "account not found")
		} else {
			v.AddError("sender_account_id", "account could not be loaded")
		}
		return nil
	}
	if intent.OwnerID != "" {
		v.Check(account.OwnerID == intent.OwnerID, "sender_account_id", "account not found")
	}
	v.Check(account.IsActive(), "sender_account_id", "account is "+account.Status)
	v.Check(account.ID != s.config.FeeAccountID, "sender_account_id", "fee collection account cannot send transfers")
	v.Check(account.Currency == intent.Currency, "currency", "must match the account currency "+account.Currency)

	r := intent.Recipient
	if !r.OnUs() || !intent.Class.Valid() {
		return account
	}
	recipient := account
	if r.AccountID != account.ID {
		recipient, err = s.ledger.GetAccount(ctx, r.AccountID)
		if err != nil {
			v.AddError("recipient.account_id", "account not found")
			return account
		}
	}
	v.Check(recipient.Status != models.AccountStatusClosed, "recipient.account_id", "account is closed")
	v.Check(recipient.Currency == intent.targetCurrency(), "target_currency", "must match the recipient account currency "+recipient.Currency)
	if intent.Class == models.ClassInternal {
		v.Check(recipient.OwnerID == account.OwnerID, "recipient.account_id", "internal moves must stay with the same owner")
	}
	return account
}

func normalize(intent Intent) Intent {
	intent.Currency = strings.ToUpper(strings.TrimSpace(intent.Currency))
	intent.TargetCurrency = strings.ToUpper(strings.TrimSpace(intent.TargetCurrency))
	intent.Recipient.Country = strings.ToUpper(strings.TrimSpace(intent.Recipient.Country))
	intent.Recipient.BIC = strings.ToUpper(strings.TrimSpace(intent.Recipient.BIC))
	intent.Recipient.Name = strings.TrimSpace(intent.Recipient.Name)
	intent.Description = strings.TrimSpace(intent.Description)
	if intent.SenderCategory == "" {
		intent.SenderCategory = models.CategoryChecking
	}
	if intent.Recipient.OnUs() && intent.Recipient.Category == "" {
		intent.Recipient.Category = models.CategoryChecking
	}
	if intent.Origin == "" {
		intent.Origin = models.OriginCustomer
	}
	return intent
}
