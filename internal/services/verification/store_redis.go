package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domainerrors "bankcore/internal/errors"
	"bankcore/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	challengePrefix = "otp:challenge:"
	tokenPrefix     = "otp:token:"
	blockPrefix     = "otp:block:"

	maxMutateRounds = 5
	sweepBatch      = 100
)

type tokenRef struct {
	SubjectID string         `json:"subject_id"`
	Purpose   models.Purpose `json:"purpose"`
}

// RedisStore keeps challenges, token links and blocks in Redis so every
// instance sees the same state and nothing is lost on restart.
type RedisStore struct {
	client *redis.Client
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func challengeKey(subjectID string, purpose models.Purpose) string {
	return challengePrefix + subjectID + ":" + string(purpose)
}

func tokenKey(token string) string { return tokenPrefix + token }

func blockKey(subjectID string) string { return blockPrefix + subjectID }

func (s *RedisStore) Mutate(ctx context.Context, subjectID string, purpose models.Purpose, fn MutateFunc) error {
	cKey, bKey := challengeKey(subjectID, purpose), blockKey(subjectID)

	txf := func(tx *redis.Tx) error {
		var st State
		var err error
		if st.Challenge, err = loadJSON[models.Challenge](ctx, tx, cKey); err != nil {
			return err
		}
		if st.Block, err = loadJSON[models.Block](ctx, tx, bKey); err != nil {
			return err
		}

		m, err := fn(st)
		if err != nil {
			return err
		}
		if m.empty() {
			return nil
		}

		var challengeData, blockData []byte
		if m.Put != nil {
			if challengeData, err = json.Marshal(m.Put); err != nil {
				return fmt.Errorf("failed to marshal challenge: %w", err)
			}
		}
		if m.Block != nil {
			if blockData, err = json.Marshal(m.Block); err != nil {
				return fmt.Errorf("failed to marshal block: %w", err)
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if st.Challenge != nil && (m.Delete || (m.Put != nil && m.Put.Token != st.Challenge.Token)) {
				pipe.Del(ctx, tokenKey(st.Challenge.Token))
			}
			if m.Delete && m.Put == nil {
				pipe.Del(ctx, cKey)
			}
			if m.Put != nil {
				ttl := minTTL(m.PutTTL)
				pipe.Set(ctx, cKey, challengeData, ttl)
				ref, _ := json.Marshal(tokenRef{SubjectID: subjectID, Purpose: purpose})
				pipe.Set(ctx, tokenKey(m.Put.Token), ref, ttl)
			}
			if m.Unblock {
				pipe.Del(ctx, bKey)
			}
			if m.Block != nil {
				pipe.Set(ctx, bKey, blockData, minTTL(m.BlockTTL))
			}
			return nil
		})
		return err
	}

	for i := 0; i < maxMutateRounds; i++ {
		err := s.client.Watch(ctx, txf, cKey, bKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("%w: challenge %s/%s kept changing", domainerrors.ErrTransactionAborted, subjectID, purpose)
}

func (s *RedisStore) LookupToken(ctx context.Context, token string) (string, models.Purpose, error) {
	ref, err := loadJSON[tokenRef](ctx, s.client, tokenKey(token))
	if err != nil {
		return "", "", err
	}
	if ref == nil {
		return "", "", ErrChallengeNotFound
	}
	return ref.SubjectID, ref.Purpose, nil
}

// Sweep deletes challenges that expired or can no longer be answered, token
// links whose challenge is gone, and lapsed blocks. Redis TTLs normally get
// there first; the sweep covers clock skew and keys written without a TTL.
func (s *RedisStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	removed := 0

	err := s.scan(ctx, challengePrefix+"*", func(key string) error {
		c, err := loadJSON[models.Challenge](ctx, s.client, key)
		if err != nil || c == nil || c.Usable(now) {
			return err
		}
		n, err := s.client.Del(ctx, key, tokenKey(c.Token)).Result()
		if n > 0 {
			removed++
		}
		return err
	})
	if err != nil {
		return removed, err
	}

	err = s.scan(ctx, tokenPrefix+"*", func(key string) error {
		ref, err := loadJSON[tokenRef](ctx, s.client, key)
		if err != nil || ref == nil {
			return err
		}
		c, err := loadJSON[models.Challenge](ctx, s.client, challengeKey(ref.SubjectID, ref.Purpose))
		if err != nil {
			return err
		}
		if c != nil && tokenKey(c.Token) == key {
			return nil
		}
		n, err := s.client.Del(ctx, key).Result()
		removed += int(n)
		return err
	})
	if err != nil {
		return removed, err
	}

	err = s.scan(ctx, blockPrefix+"*", func(key string) error {
		b, err := loadJSON[models.Block](ctx, s.client, key)
		if err != nil || b == nil || b.Active(now) {
			return err
		}
		n, err := s.client.Del(ctx, key).Result()
		removed += int(n)
		return err
	})
	return removed, err
}

func (s *RedisStore) scan(ctx context.Context, pattern string, fn func(key string) error) error {
	iter := s.client.Scan(ctx, 0, pattern, sweepBatch).Iterator()
	for iter.Next(ctx) {
		if err := fn(iter.Val()); err != nil {
			return err
		}
	}
	return iter.Err()
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func loadJSON[T any](ctx context.Context, c getter, key string) (*T, error) {
	data, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return &v, nil
}

func minTTL(ttl time.Duration) time.Duration {
	if ttl < time.Second {
		return time.Second
	}
	return ttl
}
