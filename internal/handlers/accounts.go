package handlers

import (
	"strconv"
	"strings"

	"bankcore/internal/models"
	"bankcore/internal/services/ledger"
	"bankcore/internal/utils"

	"github.com/gofiber/fiber/v2"
)

// AccountHandler exposes read access to a holder's accounts.
type AccountHandler struct {
	ledger ledger.Service
}

func NewAccountHandler(ledgerService ledger.Service) *AccountHandler {
	return &AccountHandler{ledger: ledgerService}
}

// ListAccounts handles GET /accounts.
func (h *AccountHandler) ListAccounts(c *fiber.Ctx) error {
	claims, err := utils.GetUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	accounts, err := h.ledger.ListAccounts(c.Context(), claims.SubjectID)
	if err != nil {
		return handleError(c, err)
	}
	return utils.Success(c, fiber.Map{"accounts": accounts})
}

// GetBalances handles GET /accounts/:id/balances.
func (h *AccountHandler) GetBalances(c *fiber.Ctx) error {
	account, err := h.ownedAccount(c)
	if err != nil {
		return handleError(c, err)
	}

	balances, err := h.ledger.GetBalances(c.Context(), account.ID)
	if err != nil {
		return handleError(c, err)
	}

	out := make([]fiber.Map, len(balances))
	for i, b := range balances {
		out[i] = fiber.Map{
			"category":  b.Category,
			"balance":   b.Balance.String(),
			"held":      b.Held.String(),
			"available": b.Available().String(),
		}
	}
	return utils.Success(c, fiber.Map{
		"account_id": account.ID,
		"currency":   account.Currency,
		"status":     account.Status,
		"balances":   out,
	})
}

// ListEntries handles GET /accounts/:id/entries.
func (h *AccountHandler) ListEntries(c *fiber.Ctx) error {
	account, err := h.ownedAccount(c)
	if err != nil {
		return handleError(c, err)
	}

	p := utils.GetPagination(c, 1, 20)
	filter := ledger.EntryFilter{
		AccountID: account.ID,
		Reference: c.Query("reference"),
		Limit:     p.Limit,
		Offset:    p.Offset,
	}
	if category := c.Query("category"); category != "" {
		filter.Category = models.Category(strings.ToLower(category))
		if !filter.Category.Valid() {
			return utils.BadRequest(c, "unknown category "+category)
		}
	}

	entries, total, err := h.ledger.ListEntries(c.Context(), filter)
	if err != nil {
		return handleError(c, err)
	}
	p.SetTotal(total)
	return utils.Success(c, utils.NewPaginatedResponse(entries, p))
}

// RecentActivity handles GET /accounts/:id/activity.
func (h *AccountHandler) RecentActivity(c *fiber.Ctx) error {
	account, err := h.ownedAccount(c)
	if err != nil {
		return handleError(c, err)
	}

	n, _ := strconv.Atoi(c.Query("n"))
	entries, err := h.ledger.RecentActivity(c.Context(), account.ID, n)
	if err != nil {
		return handleError(c, err)
	}
	return utils.Success(c, fiber.Map{"entries": entries})
}

// ownedAccount loads the :id account if the caller may see it. Foreign
// accounts look the same as missing ones.
func (h *AccountHandler) ownedAccount(c *fiber.Ctx) (*models.Account, error) {
	claims, err := utils.GetUserClaims(c)
	if err != nil {
		return nil, utils.ErrMissingClaims
	}

	account, err := h.ledger.GetAccount(c.Context(), c.Params("id"))
	if err != nil {
		return nil, err
	}
	if !utils.CanActFor(claims, account.OwnerID) {
		return nil, ledger.ErrAccountNotFound
	}
	return account, nil
}
