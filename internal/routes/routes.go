// Package routes defines the API routing configuration.
// It mounts every handler with its authentication and permission middleware.
package routes

import (
	"time"

	"bankcore/internal/handlers"
	"bankcore/internal/middleware"
	"bankcore/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// Handlers groups the handlers mounted by SetupRoutes.
type Handlers struct {
	Accounts *handlers.AccountHandler
	OTP      *handlers.OTPHandler
	Transfer *handlers.TransferHandler
	Admin    *handlers.AdminHandler
	Health   *handlers.HealthHandler
	// Metrics serves the Prometheus exposition; nil leaves /metrics unmounted.
	Metrics fiber.Handler
}

// SetupRoutes configures all application routes.
// It groups routes by functionality and applies appropriate middleware.
func SetupRoutes(app *fiber.App, h Handlers, auth *middleware.AuthMiddleware) {
	app.Get("/health", h.Health.Health)
	if h.Metrics != nil {
		app.Get("/metrics", h.Metrics)
	}

	api := app.Group("/api", auth.Handler)

	setupAccountRoutes(api, h.Accounts)
	setupOTPRoutes(api, h.OTP)
	setupTransferRoutes(api, h.Transfer)
	setupAdminRoutes(api, h.Admin)
}

func setupAccountRoutes(router fiber.Router, h *handlers.AccountHandler) {
	accounts := router.Group("/accounts", middleware.HasPermission(models.PermissionAccountRead))
	accounts.Get("/", h.ListAccounts)
	accounts.Get("/:id/balances", h.GetBalances)
	accounts.Get("/:id/entries", h.ListEntries)
	accounts.Get("/:id/activity", h.RecentActivity)
}

func setupOTPRoutes(router fiber.Router, h *handlers.OTPHandler) {
	otp := router.Group("/otp", middleware.HasPermission(models.PermissionOTPWrite), limiter.New(limiter.Config{
		Max:        10,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			if id, ok := c.Locals("subjectID").(string); ok {
				return "otp:" + id
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests. Please try again later.",
			})
		},
	}))
	otp.Post("/issue", h.Issue)
	otp.Post("/verify", h.Verify)
	otp.Get("/verify/:token", h.VerifyToken)
}

func setupTransferRoutes(router fiber.Router, h *handlers.TransferHandler) {
	transfers := router.Group("/transfers", middleware.HasPermission(models.PermissionTransferWrite))
	transfers.Post("/validate", h.Validate)
	transfers.Post("/quote", h.Quote)
	transfers.Post("/", h.Create)

	recurring := transfers.Group("/recurring")
	recurring.Get("/", h.ListRecurring)
	recurring.Post("/", h.ScheduleRecurring)
	recurring.Delete("/:id", h.CancelRecurring)
}

func setupAdminRoutes(router fiber.Router, h *handlers.AdminHandler) {
	admin := router.Group("/admin", middleware.AdminAuthMiddleware)

	read := middleware.HasPermission(models.PermissionReadAdmin)
	write := middleware.HasPermission(models.PermissionWriteAdmin)

	admin.Post("/accounts", write, h.OpenAccount)
	admin.Patch("/accounts/:id/status", write, h.SetAccountStatus)
	admin.Post("/accounts/:id/adjust", write, h.Adjust)
	admin.Post("/accounts/:id/activity/rebuild", write, h.RebuildActivity)
	admin.Get("/accounts/:id/verify", read, h.VerifyAccount)
	admin.Get("/accounts/:id/holds", read, h.ListHolds)

	admin.Post("/transfers/:reference/confirm", write, h.ConfirmTransfer)
	admin.Post("/transfers/:reference/cancel", write, h.CancelTransfer)
}
