package handlers

import (
	"strings"

	"bankcore/internal/models"
	"bankcore/internal/services/transfer"
	"bankcore/internal/utils"

	"github.com/gofiber/fiber/v2"
)

// IdempotencyHeader carries the client's retry key for POST /transfers.
const IdempotencyHeader = "Idempotency-Key"

// TransferHandler exposes transfer and standing order endpoints.
type TransferHandler struct {
	service transfer.Service
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(s transfer.Service) *TransferHandler { return &TransferHandler{service: s} }

// transferRequest takes the amount in major units ("200.00").
type transferRequest struct {
	SenderAccountID string               `json:"sender_account_id"`
	SenderCategory  models.Category      `json:"sender_category"`
	Class           models.TransferClass `json:"class"`
	Tier            models.TransferTier  `json:"tier"`
	Amount          string               `json:"amount"`
	Currency        string               `json:"currency"`
	TargetCurrency  string               `json:"target_currency"`
	Recipient       transfer.Recipient   `json:"recipient"`
	Description     string               `json:"description"`

	// Settle and recurring only
	Quote *transfer.Pricing `json:"quote"`
	Code  string            `json:"code"`
}

func (r *transferRequest) intent(ownerID string) (transfer.Intent, error) {
	amount, err := models.ParseAmount(r.Amount)
	if err != nil {
		return transfer.Intent{}, &transfer.ValidationError{Violations: violation("amount", err.Error())}
	}
	return transfer.Intent{
		OwnerID:         ownerID,
		SenderAccountID: r.SenderAccountID,
		SenderCategory:  models.Category(strings.ToLower(string(r.SenderCategory))),
		Class:           models.TransferClass(strings.ToLower(string(r.Class))),
		Tier:            models.TransferTier(strings.ToLower(string(r.Tier))),
		Amount:          amount,
		Currency:        r.Currency,
		TargetCurrency:  r.TargetCurrency,
		Recipient:       r.Recipient,
		Description:     r.Description,
		Origin:          models.OriginCustomer,
	}, nil
}

func (h *TransferHandler) parse(c *fiber.Ctx) (*transferRequest, transfer.Intent, error) {
	claims, err := utils.GetUserClaims(c)
	if err != nil {
		return nil, transfer.Intent{}, utils.ErrMissingClaims
	}
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, transfer.Intent{}, &transfer.ValidationError{Violations: violation("body", "is not valid JSON")}
	}
	intent, err := req.intent(claims.SubjectID)
	return &req, intent, err
}

// Validate handles POST /transfers/validate.
func (h *TransferHandler) Validate(c *fiber.Ctx) error {
	_, intent, err := h.parse(c)
	if err != nil {
		return handleError(c, err)
	}
	if err := h.service.ValidateTransfer(c.Context(), intent); err != nil {
		return handleError(c, err)
	}
	return utils.Success(c, fiber.Map{"valid": true})
}

// Quote handles POST /transfers/quote.
func (h *TransferHandler) Quote(c *fiber.Ctx) error {
	_, intent, err := h.parse(c)
	if err != nil {
		return handleError(c, err)
	}
	if err := h.service.ValidateTransfer(c.Context(), intent); err != nil {
		return handleError(c, err)
	}
	pricing, err := h.service.PriceTransfer(c.Context(), intent)
	if err != nil {
		return handleError(c, err)
	}
	return utils.Success(c, pricing)
}

// Create handles POST /transfers. Repeating a request with the same
// Idempotency-Key returns the original result with status 200.
func (h *TransferHandler) Create(c *fiber.Ctx) error {
	req, intent, err := h.parse(c)
	if err != nil {
		return handleError(c, err)
	}
	intent.IdempotencyKey = strings.TrimSpace(c.Get(IdempotencyHeader))

	result, err := h.service.SettleTransfer(c.Context(), intent, req.Quote, req.Code)
	if err != nil {
		return handleError(c, err)
	}
	if result.Replayed {
		return utils.Success(c, result)
	}
	return utils.Created(c, result)
}

type recurringRequest struct {
	transferRequest
	Schedule string `json:"schedule"`
}

// ScheduleRecurring handles POST /transfers/recurring.
func (h *TransferHandler) ScheduleRecurring(c *fiber.Ctx) error {
	claims, err := utils.GetUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	var req recurringRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequest(c, "invalid request")
	}
	intent, err := req.intent(claims.SubjectID)
	if err != nil {
		return handleError(c, err)
	}

	rt := transfer.NewRecurring(intent, req.Schedule)
	if err := h.service.ScheduleRecurring(c.Context(), rt, req.Code); err != nil {
		return handleError(c, err)
	}
	return utils.Created(c, rt)
}

// ListRecurring handles GET /transfers/recurring.
func (h *TransferHandler) ListRecurring(c *fiber.Ctx) error {
	claims, err := utils.GetUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	list, err := h.service.ListRecurring(c.Context(), claims.SubjectID)
	if err != nil {
		return handleError(c, err)
	}
	return utils.Success(c, fiber.Map{"recurring": list})
}

// CancelRecurring handles DELETE /transfers/recurring/:id.
func (h *TransferHandler) CancelRecurring(c *fiber.Ctx) error {
	claims, err := utils.GetUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	if err := h.service.CancelRecurring(c.Context(), claims.SubjectID, c.Params("id")); err != nil {
		return handleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
