package utils

import (
	"errors"

	"bankcore/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ErrMissingClaims means the request did not pass through AuthMiddleware.
var ErrMissingClaims = errors.New("claims not found in context")

// GetUserClaims returns the claims AuthMiddleware stored on the request.
func GetUserClaims(c *fiber.Ctx) (*models.UserClaims, error) {
	claims, ok := c.Locals("claims").(*models.UserClaims)
	if !ok || claims == nil {
		return nil, ErrMissingClaims
	}
	return claims, nil
}

// CanActFor reports whether the caller may act on resources of ownerID.
func CanActFor(claims *models.UserClaims, ownerID string) bool {
	return claims != nil && (claims.IsAdmin() || claims.SubjectID == ownerID)
}
