package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"bankcore/internal/models"
)

// DefaultActivityLimit bounds the per-account recent-activity list.
const DefaultActivityLimit = 100

// ActivityCache keeps the newest ledger entries of each account in a capped
// Redis list. It is a projection of the ledger and can be rebuilt at any time.
type ActivityCache struct {
	cache *CacheService
	limit int64
}

func NewActivityCache(cache *CacheService, limit int) *ActivityCache {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	return &ActivityCache{cache: cache, limit: int64(limit)}
}

func (a *ActivityCache) key(accountID string) string {
	return a.cache.GenerateKey("ledger", "recent", accountID)
}

// Append pushes entries given in append order.
func (a *ActivityCache) Append(ctx context.Context, entries ...models.LedgerEntry) error {
	byAccount := make(map[string][]interface{})
	var order []string
	for _, e := range entries {
		if _, ok := byAccount[e.AccountID]; !ok {
			order = append(order, e.AccountID)
		}
		byAccount[e.AccountID] = append(byAccount[e.AccountID], e)
	}
	for _, accountID := range order {
		if err := a.cache.PushCapped(ctx, a.key(accountID), a.limit, byAccount[accountID]...); err != nil {
			return fmt.Errorf("failed to push recent activity for %s: %w", accountID, err)
		}
	}
	return nil
}

// Recent returns up to n entries, newest first.
func (a *ActivityCache) Recent(ctx context.Context, accountID string, n int) ([]models.LedgerEntry, error) {
	if n <= 0 || int64(n) > a.limit {
		n = int(a.limit)
	}
	raw, err := a.cache.ListRange(ctx, a.key(accountID), 0, int64(n-1))
	if err != nil {
		return nil, err
	}
	entries := make([]models.LedgerEntry, 0, len(raw))
	for _, item := range raw {
		var e models.LedgerEntry
		if err := json.Unmarshal(item, &e); err != nil {
			return nil, fmt.Errorf("failed to decode recent activity: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Replace overwrites the list with entries given newest first.
func (a *ActivityCache) Replace(ctx context.Context, accountID string, entries []models.LedgerEntry) error {
	if int64(len(entries)) > a.limit {
		entries = entries[:a.limit]
	}
	values := make([]interface{}, len(entries))
	for i := range entries {
		values[i] = entries[i]
	}
	return a.cache.ReplaceList(ctx, a.key(accountID), values...)
}
