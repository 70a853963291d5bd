package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"bankcore/internal/models"
	"bankcore/internal/repositories"

	"github.com/robfig/cron/v3"
)

var errRecurringDisabled = errors.New("recurring transfers are not configured")

// ErrRecurringNotFound is returned for unknown or foreign standing orders.
var ErrRecurringNotFound = repositories.ErrRecurringNotFound

// ScheduleRecurring validates a standing order against the transfer rules and
// stores it with its first run time. Runs settle without a code, so an order
// that would need one as a single transfer is authorized here, once.
func (s *service) ScheduleRecurring(ctx context.Context, rt *models.RecurringTransfer, challengeCode string) error {
	if s.recurring == nil {
		return errRecurringDisabled
	}

	rt.Schedule = strings.TrimSpace(rt.Schedule)
	schedule, err := cron.ParseStandard(rt.Schedule)
	if err != nil {
		return invalid("schedule", "is not a valid cron expression")
	}

	intent, err := intentFor(rt)
	if err != nil {
		return err
	}
	intent.Origin = models.OriginCustomer
	intent = normalize(intent)
	if _, err := s.validate(ctx, intent); err != nil {
		return err
	}
	if _, err := s.PriceTransfer(ctx, intent); err != nil {
		return err
	}
	if err := s.authorize(ctx, intent, rt.OwnerID, challengeCode); err != nil {
		return err
	}

	rt.Currency = strings.ToUpper(rt.Currency)
	rt.TargetCurrency = strings.ToUpper(rt.TargetCurrency)
	if rt.SenderCategory == "" {
		rt.SenderCategory = models.CategoryChecking
	}
	rt.NextRunAt = schedule.Next(s.now()).UTC()
	rt.Active = true
	rt.LastError = ""
	if err := s.recurring.Create(ctx, rt); err != nil {
		return fmt.Errorf("create recurring transfer: %w", err)
	}

	log.Printf("Scheduled recurring transfer %s for account %s, next run %s", rt.ID, rt.SenderAccountID, rt.NextRunAt.Format("2006-01-02T15:04Z"))
	return nil
}

func (s *service) ListRecurring(ctx context.Context, ownerID string) ([]models.RecurringTransfer, error) {
	if s.recurring == nil {
		return nil, errRecurringDisabled
	}
	return s.recurring.ListByOwner(ctx, ownerID)
}

func (s *service) CancelRecurring(ctx context.Context, ownerID, id string) error {
	if s.recurring == nil {
		return errRecurringDisabled
	}
	rt, err := s.recurring.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if ownerID != "" && rt.OwnerID != ownerID {
		return ErrRecurringNotFound
	}
	if !rt.Active {
		return nil
	}
	rt.Active = false
	return s.recurring.Update(ctx, rt)
}

// RunRecurring settles every standing order due at now. Each run uses the
// order ID and due date as its idempotency key, so a run repeated after a
// crash replays instead of paying twice. Aborted settlements keep their due
// time and are picked up by the next pass.
func (s *service) RunRecurring(ctx context.Context, now time.Time) (*RunReport, error) {
	if s.recurring == nil {
		return nil, errRecurringDisabled
	}

	due, err := s.recurring.ListDue(ctx, now, s.config.RecurringBatch)
	if err != nil {
		return nil, fmt.Errorf("list due recurring transfers: %w", err)
	}

	report := &RunReport{Due: len(due)}
	for i := range due {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		s.runOne(ctx, &due[i], now, report)
	}

	if report.Due > 0 {
		log.Printf("Recurring run: due=%d completed=%d failed=%d deferred=%d",
			report.Due, report.Completed, report.Failed, report.Deferred)
	}
	return report, nil
}

func (s *service) runOne(ctx context.Context, rt *models.RecurringTransfer, now time.Time, report *RunReport) {
	schedule, err := cron.ParseStandard(rt.Schedule)
	if err != nil {
		rt.Active = false
		rt.LastError = "invalid schedule: " + err.Error()
		report.Failed++
		s.saveRun(ctx, rt)
		return
	}

	intent, err := intentFor(rt)
	if err == nil {
		intent.IdempotencyKey = rt.RunKey(rt.NextRunAt)
		intent.Origin = models.OriginRecurring

		var res *Result
		res, err = s.SettleTransfer(ctx, intent, nil, "")
		if err == nil {
			rt.LastReference = res.Reference
		}
	}

	switch {
	case err == nil:
		rt.LastError = ""
		report.Completed++
	case Classify(err) == Retryable || errors.Is(err, ErrSettlementFailed):
		rt.LastError = err.Error()
		report.Deferred++
		s.saveRun(ctx, rt)
		return
	default:
		rt.LastError = err.Error()
		report.Failed++
		log.Printf("Recurring transfer %s failed: %v", rt.ID, err)
	}

	ranAt := now.UTC()
	rt.LastRunAt = &ranAt
	rt.NextRunAt = schedule.Next(now).UTC()
	s.saveRun(ctx, rt)
}

func (s *service) saveRun(ctx context.Context, rt *models.RecurringTransfer) {
	if err := s.recurring.Update(context.WithoutCancel(ctx), rt); err != nil {
		log.Printf("Failed to update recurring transfer %s: %v", rt.ID, err)
	}
}

// NewRecurring builds the standing order that repeats intent on schedule.
func NewRecurring(intent Intent, schedule string) *models.RecurringTransfer {
	rt := &models.RecurringTransfer{
		OwnerID:         intent.OwnerID,
		SenderAccountID: intent.SenderAccountID,
		SenderCategory:  intent.SenderCategory,
		Class:           intent.Class,
		Tier:            intent.Tier,
		Amount:          intent.Amount,
		Currency:        intent.Currency,
		TargetCurrency:  intent.TargetCurrency,
		Description:     intent.Description,
		Recipient:       RecipientJSON(intent.Recipient),
		Schedule:        schedule,
	}
	if intent.Recipient.OnUs() {
		rt.RecipientAccountID = intent.Recipient.AccountID
		rt.RecipientCategory = intent.Recipient.Category
	}
	return rt
}

// intentFor rebuilds the transfer intent a standing order describes.
func intentFor(rt *models.RecurringTransfer) (Intent, error) {
	intent := Intent{
		OwnerID:         rt.OwnerID,
		SenderAccountID: rt.SenderAccountID,
		SenderCategory:  rt.SenderCategory,
		Class:           rt.Class,
		Tier:            rt.Tier,
		Amount:          rt.Amount,
		Currency:        rt.Currency,
		TargetCurrency:  rt.TargetCurrency,
		Description:     rt.Description,
	}
	if len(rt.Recipient) > 0 {
		r, err := RecipientFromJSON(rt.Recipient)
		if err != nil {
			return Intent{}, invalid("recipient", "is malformed")
		}
		intent.Recipient = r
	}
	if rt.RecipientAccountID != "" {
		intent.Recipient.AccountID = rt.RecipientAccountID
		intent.Recipient.Category = rt.RecipientCategory
	}
	return intent, nil
}

// RecipientJSON encodes recipient bank details for storage on a standing order.
func RecipientJSON(r Recipient) models.JSON {
	b, _ := json.Marshal(r)
	out := models.JSON{}
	_ = json.Unmarshal(b, &out)
	return out
}

// RecipientFromJSON is the inverse of RecipientJSON.
func RecipientFromJSON(j models.JSON) (Recipient, error) {
	var r Recipient
	b, err := json.Marshal(j)
	if err != nil {
		return r, err
	}
	err = json.Unmarshal(b, &r)
	return r, err
}
