package bootstrap

import (
	"context"
	"testing"
	"time"

	"bankcore/internal/config"
	"bankcore/internal/models"
	"bankcore/internal/repositories/cache"
	"bankcore/internal/services/rates"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferConfig(t *testing.T) {
	cfg := TransferConfig(config.TransferConfig{
		HighCostCountries:  []string{"ng", "VE"},
		HighCostSurcharge:  1500,
		SpreadBps:          25,
		ChallengeThreshold: 250000,
		FeeAccountID:       "fees",
		MaxRetries:         2,
		RetryBaseDelay:     time.Millisecond,
		HomeCountry:        "US",
	})

	assert.Equal(t, []string{"NG", "VE"}, cfg.HighCostCountries)
	assert.Equal(t, models.Amount(1500), cfg.HighCostSurcharge)
	assert.Equal(t, models.Amount(250000), cfg.ChallengeThreshold)
	assert.Equal(t, "fees", cfg.FeeAccountID)
	assert.Nil(t, cfg.Fees, "the orchestrator fills in the published fee table")
}

func TestRateSource(t *testing.T) {
	ctx := context.Background()

	_, err := RateSource(config.TransferConfig{BaseCurrency: "USD", Rates: "EUR=abc"}, nil)
	assert.Error(t, err)

	plain, err := RateSource(config.TransferConfig{BaseCurrency: "USD", Rates: "EUR=0.92"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &rates.StaticSource{}, plain)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cached, err := RateSource(config.TransferConfig{
		BaseCurrency: "USD",
		Rates:        "EUR=0.92",
		RateCacheTTL: time.Minute,
	}, cache.NewCacheService(client, time.Minute))
	require.NoError(t, err)
	assert.IsType(t, &rates.CachedSource{}, cached)

	rate, _, err := cached.GetRate(ctx, "USD", "EUR")
	require.NoError(t, err)
	assert.Equal(t, "0.92", rate.String())
}
