// Package middleware provides HTTP middleware components for the application.
// It includes authentication and authorization for the fiber routes.
package middleware

import (
	"log"
	"strings"

	"bankcore/internal/models"
	"bankcore/internal/utils"

	"github.com/gofiber/fiber/v2"
)

// AuthMiddleware handles JWT token validation.
// It extracts the JWT token from the Authorization header, validates it,
// and adds the user claims to the request context.
type AuthMiddleware struct {
	secret string
}

func NewAuthMiddleware(secret string) *AuthMiddleware {
	if secret == "" {
		panic("jwt secret is required")
	}
	return &AuthMiddleware{secret: secret}
}

// Handler validates bearer tokens and stores the claims in c.Locals("claims").
func (m *AuthMiddleware) Handler(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return utils.Unauthorized(c, "missing authorization header")
	}

	tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || tokenString == "" {
		return utils.Unauthorized(c, "invalid authorization format")
	}

	claims, err := utils.ParseToken(m.secret, tokenString)
	if err != nil {
		log.Printf("Token validation error: %v", err)
		return utils.Unauthorized(c, "invalid token")
	}

	c.Locals("claims", claims)
	c.Locals("subjectID", claims.SubjectID)
	return c.Next()
}

// AdminAuthMiddleware verifies that the request has valid admin claims.
func AdminAuthMiddleware(c *fiber.Ctx) error {
	claims, err := utils.GetUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	if !claims.IsAdmin() {
		log.Printf("Access denied: subject %s has role %s, not admin", claims.SubjectID, claims.Role)
		return utils.Forbidden(c, "insufficient permissions")
	}
	return c.Next()
}

// HasPermission returns a middleware that checks for a specific permission.
func HasPermission(permission string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := utils.GetUserClaims(c)
		if err != nil {
			return utils.Unauthorized(c, "invalid claims")
		}

		// Admins hold every permission
		if claims.Role == models.RoleAdmin || claims.HasPermission(permission) {
			return c.Next()
		}
		return utils.Forbidden(c, "insufficient permissions")
	}
}
