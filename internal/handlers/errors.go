package handlers

import (
	"errors"
	"log"
	"math"
	"strconv"

	domainerrors "bankcore/internal/errors"
	"bankcore/internal/services/transfer"
	"bankcore/internal/services/verification"
	"bankcore/internal/utils"
	"bankcore/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// statusByCode maps domain error codes onto HTTP statuses.
var statusByCode = map[string]int{
	"VALIDATION_ERROR": fiber.StatusUnprocessableEntity,
	"INVALID_CHANGE":   fiber.StatusUnprocessableEntity,

	"INSUFFICIENT_FUNDS":  fiber.StatusConflict,
	"ACCOUNT_INACTIVE":    fiber.StatusConflict,
	"DUPLICATE_REFERENCE": fiber.StatusConflict,
	"HOLD_NOT_ACTIVE":     fiber.StatusConflict,
	"INVALID_STATE":       fiber.StatusConflict,
	"CHALLENGE_ACTIVE":    fiber.StatusConflict,

	"ACCOUNT_NOT_FOUND":   fiber.StatusNotFound,
	"HOLD_NOT_FOUND":      fiber.StatusNotFound,
	"CHALLENGE_NOT_FOUND": fiber.StatusNotFound,

	"CHALLENGE_REQUIRED": fiber.StatusPreconditionRequired,
	"CHALLENGE_INVALID":  fiber.StatusUnauthorized,
	"CHALLENGE_EXPIRED":  fiber.StatusGone,
	"SUBJECT_BLOCKED":    fiber.StatusTooManyRequests,
	"TOO_MANY_ATTEMPTS":  fiber.StatusTooManyRequests,

	"TRANSACTION_ABORTED": fiber.StatusServiceUnavailable,
	"SETTLEMENT_FAILED":   fiber.StatusServiceUnavailable,
	"RATE_UNAVAILABLE":    fiber.StatusServiceUnavailable,
	"NOTIFIER_FAILED":     fiber.StatusServiceUnavailable,
}

// handleError writes the JSON error envelope for err.
func handleError(c *fiber.Ctx, err error) error {
	var verr *transfer.ValidationError
	if errors.As(err, &verr) {
		return utils.Respond(c, fiber.StatusUnprocessableEntity, fiber.Map{
			"error":      "validation failed",
			"code":       "VALIDATION_ERROR",
			"violations": verr.Violations,
		})
	}

	if errors.Is(err, utils.ErrMissingClaims) {
		return utils.Unauthorized(c, err.Error())
	}
	if errors.Is(err, transfer.ErrRecurringNotFound) {
		return utils.NotFound(c, err.Error())
	}

	var blocked *verification.BlockedError
	if errors.As(err, &blocked) {
		seconds := int(math.Ceil(blocked.Remaining.Seconds()))
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(max(seconds, 1)))
	}

	code := domainerrors.Code(err)
	status, ok := statusByCode[code]
	if !ok {
		log.Printf("Unhandled error on %s %s: %v", c.Method(), c.Path(), err)
		return utils.InternalError(c, "internal server error")
	}

	body := fiber.Map{"error": err.Error(), "code": code}
	if domainerrors.IsRetryable(err) {
		body["retryable"] = true
	}
	var invalidCode *verification.InvalidCodeError
	if errors.As(err, &invalidCode) {
		body["attempts_remaining"] = invalidCode.Remaining
	}
	return utils.Respond(c, status, body)
}

func violation(field, message string) []validation.Violation {
	return []validation.Violation{{Field: field, Message: message}}
}
