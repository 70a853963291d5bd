package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetDurationEnv(t *testing.T) {
	t.Setenv("TEST_DURATION", "90s")
	assert.Equal(t, 90*time.Second, GetDurationEnv("TEST_DURATION", time.Minute))

	t.Setenv("TEST_DURATION", "soon")
	assert.Equal(t, time.Minute, GetDurationEnv("TEST_DURATION", time.Minute))

	assert.Equal(t, time.Hour, GetDurationEnv("TEST_DURATION_UNSET", time.Hour))
}

func TestGetListEnv(t *testing.T) {
	t.Setenv("TEST_LIST", " NG, ,KE,GH ")
	assert.Equal(t, []string{"NG", "KE", "GH"}, GetListEnv("TEST_LIST", nil))

	t.Setenv("TEST_LIST", "  ")
	assert.Equal(t, []string{"US"}, GetListEnv("TEST_LIST", []string{"US"}))
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OTP_MAX_ATTEMPTS", "5")
	t.Setenv("HIGH_COST_COUNTRIES", "NG,VE")

	cfg := Load()

	assert.Equal(t, 6, cfg.OTP.CodeLength)
	assert.Equal(t, 5, cfg.OTP.MaxAttempts)
	assert.Equal(t, 5*time.Minute, cfg.OTP.TTL)
	assert.Equal(t, []string{"NG", "VE"}, cfg.Transfer.HighCostCountries)
	assert.Contains(t, cfg.Database.DSN(), "dbname=")
}
