package handlers

import (
	"log"
	"strings"

	"bankcore/internal/models"
	"bankcore/internal/services/ledger"
	"bankcore/internal/services/transfer"
	"bankcore/internal/utils"

	"github.com/gofiber/fiber/v2"
)

// AdminHandler exposes back-office operations. Routes are mounted behind
// AdminAuthMiddleware.
type AdminHandler struct {
	ledger   ledger.Service
	transfer transfer.Service
}

func NewAdminHandler(ledgerService ledger.Service, transferService transfer.Service) *AdminHandler {
	return &AdminHandler{ledger: ledgerService, transfer: transferService}
}

// OpenAccount handles POST /admin/accounts.
func (h *AdminHandler) OpenAccount(c *fiber.Ctx) error {
	var req struct {
		OwnerID  string `json:"owner_id"`
		Currency string `json:"currency"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequest(c, "invalid request")
	}

	account, err := h.ledger.OpenAccount(c.Context(), req.OwnerID, req.Currency)
	if err != nil {
		return handleError(c, err)
	}
	return utils.Created(c, account)
}

// SetAccountStatus handles PATCH /admin/accounts/:id/status.
func (h *AdminHandler) SetAccountStatus(c *fiber.Ctx) error {
	var req struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequest(c, "invalid request")
	}

	account, err := h.ledger.SetAccountStatus(c.Context(), c.Params("id"), strings.ToLower(req.Status))
	if err != nil {
		return handleError(c, err)
	}
	return utils.Success(c, account)
}

// Adjust handles POST /admin/accounts/:id/adjust, a manual single-leg
// correction recorded as an adjustment entry.
func (h *AdminHandler) Adjust(c *fiber.Ctx) error {
	claims, err := utils.GetUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var req struct {
		Category    models.Category `json:"category"`
		Direction   string          `json:"direction"`
		Amount      string          `json:"amount"`
		Description string          `json:"description"`
		Reference   string          `json:"reference"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequest(c, "invalid request")
	}

	amount, err := models.ParseAmount(req.Amount)
	if err != nil || amount <= 0 {
		return handleError(c, &transfer.ValidationError{Violations: violation("amount", "must be a positive amount")})
	}

	kind := models.KindAdjustmentCredit
	delta := amount
	switch strings.ToLower(req.Direction) {
	case "credit":
	case "debit":
		kind = models.KindAdjustmentDebit
		delta = -amount
	default:
		return handleError(c, &transfer.ValidationError{Violations: violation("direction", "must be credit or debit")})
	}

	if req.Category == "" {
		req.Category = models.CategoryChecking
	}
	if req.Reference == "" {
		req.Reference = ledger.NewReference("ADJ")
	}

	balance, entry, err := h.ledger.ApplyLedgerChange(c.Context(), c.Params("id"), req.Category, delta, ledger.EntryTemplate{
		Kind:        kind,
		Description: req.Description,
		Reference:   req.Reference,
		Metadata:    models.JSON{"adjusted_by": claims.SubjectID},
	})
	if err != nil {
		return handleError(c, err)
	}

	log.Printf("Admin %s adjusted %s/%s by %s (ref %s)", claims.SubjectID, c.Params("id"), req.Category, delta, req.Reference)
	return utils.Created(c, fiber.Map{
		"new_balance": balance.String(),
		"entry":       entry,
	})
}

// VerifyAccount handles GET /admin/accounts/:id/verify.
func (h *AdminHandler) VerifyAccount(c *fiber.Ctx) error {
	report, err := h.ledger.VerifyConsistency(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}
	return utils.Success(c, report)
}

// RebuildActivity handles POST /admin/accounts/:id/activity/rebuild.
func (h *AdminHandler) RebuildActivity(c *fiber.Ctx) error {
	if err := h.ledger.RebuildRecentActivity(c.Context(), c.Params("id")); err != nil {
		return handleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListHolds handles GET /admin/accounts/:id/holds.
func (h *AdminHandler) ListHolds(c *fiber.Ctx) error {
	holds, err := h.ledger.ListHolds(c.Context(), c.Params("id"), c.Query("status"))
	if err != nil {
		return handleError(c, err)
	}
	return utils.Success(c, fiber.Map{"holds": holds})
}

// ConfirmTransfer handles POST /admin/transfers/:reference/confirm.
func (h *AdminHandler) ConfirmTransfer(c *fiber.Ctx) error {
	result, err := h.transfer.ConfirmPending(c.Context(), c.Params("reference"))
	if err != nil {
		return handleError(c, err)
	}
	return utils.Success(c, result)
}

// CancelTransfer handles POST /admin/transfers/:reference/cancel.
func (h *AdminHandler) CancelTransfer(c *fiber.Ctx) error {
	var req struct {
		Reason string `json:"reason"`
	}
	// An empty body is allowed
	_ = c.BodyParser(&req)
	if req.Reason == "" {
		req.Reason = "cancelled by operator"
	}

	result, err := h.transfer.CancelPending(c.Context(), c.Params("reference"), req.Reason)
	if err != nil {
		return handleError(c, err)
	}
	return utils.Success(c, result)
}
