package utils

import (
	"net/http/httptest"
	"testing"
	"time"

	"bankcore/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	token, err := GenerateToken("secret", "owner-42", models.RoleCustomer, time.Minute)
	require.NoError(t, err)

	claims, err := ParseToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "owner-42", claims.SubjectID)
	assert.Equal(t, models.RoleCustomer, claims.Role)
	assert.True(t, claims.HasPermission(models.PermissionTransferWrite))
	assert.False(t, claims.HasPermission(models.PermissionWriteAdmin))
	assert.NotEmpty(t, claims.ID)

	_, err = ParseToken("other", token)
	assert.Error(t, err)

	_, err = GenerateToken("", "owner-42", models.RoleCustomer, time.Minute)
	assert.Error(t, err)
}

func TestParseTokenRejectsExpiredAndForeign(t *testing.T) {
	expired, err := GenerateToken("secret", "owner-42", models.RoleCustomer, -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken("secret", expired)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, models.UserClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
		SubjectID: "owner-42",
	})
	signed, err := foreign.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = ParseToken("secret", signed)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
}

func TestGetPagination(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		page   int
		limit  int
		offset int
	}{
		{"defaults", "", 1, 20, 0},
		{"explicit", "?page=3&limit=10", 3, 10, 20},
		{"garbage falls back", "?page=x&limit=-4", 1, 20, 0},
		{"limit is capped", "?limit=5000", 1, MaxPageSize, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			var got Pagination
			app.Get("/", func(c *fiber.Ctx) error {
				got = GetPagination(c, 1, 20)
				return nil
			})

			_, err := app.Test(httptest.NewRequest("GET", "/"+tt.query, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.page, got.Page)
			assert.Equal(t, tt.limit, got.Limit)
			assert.Equal(t, tt.offset, got.Offset)
		})
	}

	p := Pagination{Limit: 10}
	p.SetTotal(21)
	assert.Equal(t, 3, p.LastPage)
}

func TestCanActFor(t *testing.T) {
	customer := &models.UserClaims{SubjectID: "owner-42", Role: models.RoleCustomer}
	admin := &models.UserClaims{SubjectID: "ops-1", Role: models.RoleAdmin}

	assert.True(t, CanActFor(customer, "owner-42"))
	assert.False(t, CanActFor(customer, "owner-7"))
	assert.True(t, CanActFor(admin, "owner-7"))
	assert.False(t, CanActFor(nil, "owner-42"))
}
