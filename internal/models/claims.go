package models

import "github.com/golang-jwt/jwt/v5"

// UserClaims is the bearer token payload. SubjectID is the account owner the
// caller acts for.
type UserClaims struct {
	jwt.RegisteredClaims
	SubjectID   string   `json:"sub_id"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// HasPermission checks if the claims include a specific permission
func (c *UserClaims) HasPermission(permission string) bool {
	for _, p := range c.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

func (c *UserClaims) IsAdmin() bool { return c.Role == RoleAdmin }
