package rates

import (
	"context"
	"log"
	"strings"
	"time"

	"bankcore/internal/repositories/cache"

	"github.com/shopspring/decimal"
)

type cachedRate struct {
	Rate decimal.Decimal `json:"rate"`
	AsOf time.Time       `json:"as_of"`
}

// CachedSource keeps recently used rates in Redis so every instance prices
// against the same quote within the TTL.
type CachedSource struct {
	source Source
	cache  *cache.CacheService
	ttl    time.Duration
}

func NewCachedSource(source Source, c *cache.CacheService, ttl time.Duration) *CachedSource {
	if source == nil {
		panic("source is required")
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedSource{source: source, cache: c, ttl: ttl}
}

func (s *CachedSource) GetRate(ctx context.Context, from, to string) (decimal.Decimal, time.Time, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if s.cache == nil || from == to {
		return s.source.GetRate(ctx, from, to)
	}

	key := s.cache.GenerateKey("fx", "rate", from+to)
	var hit cachedRate
	found, err := s.cache.Get(ctx, key, &hit)
	if err != nil {
		log.Printf("Failed to read cached rate %s/%s: %v", from, to, err)
	}
	if found {
		return hit.Rate, hit.AsOf, nil
	}

	rate, asOf, err := s.source.GetRate(ctx, from, to)
	if err != nil {
		return decimal.Zero, time.Time{}, err
	}
	if err := s.cache.SetWithTTL(ctx, key, cachedRate{Rate: rate, AsOf: asOf}, s.ttl); err != nil {
		log.Printf("Failed to cache rate %s/%s: %v", from, to, err)
	}
	return rate, asOf, nil
}
