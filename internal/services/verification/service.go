package verification

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	domainerrors "bankcore/internal/errors"
	"bankcore/internal/models"

	"golang.org/x/crypto/bcrypt"
)

type service struct {
	store   Store
	config  Config
	metrics MetricsCollector
	now     func() time.Time
}

// Option customizes the service.
type Option func(*service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// NewService creates a new verification service
func NewService(store Store, config Config, metrics MetricsCollector, opts ...Option) Service {
	if store == nil {
		panic("store is required")
	}

	if config.CodeLength <= 0 || config.CodeLength > 18 {
		config.CodeLength = 6
	}
	if config.TTL <= 0 {
		config.TTL = 5 * time.Minute
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.BlockDuration <= 0 {
		config.BlockDuration = 15 * time.Minute
	}
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}

	if metrics == nil {
		metrics = &NoopMetricsCollector{}
	}

	s := &service{
		store:   store,
		config:  config,
		metrics: metrics,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) IssueChallenge(ctx context.Context, subjectID string, purpose models.Purpose, notifier Notifier) (*Issued, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return nil, fmt.Errorf("%w: subject is required", domainerrors.ErrValidation)
	}
	if !purpose.Valid() {
		return nil, fmt.Errorf("%w: unknown purpose %q", domainerrors.ErrValidation, purpose)
	}

	code, err := generateCode(s.config.CodeLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate code: %w", err)
	}
	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash code: %w", err)
	}

	var challenge *models.Challenge
	err = s.store.Mutate(ctx, subjectID, purpose, func(st State) (Mutation, error) {
		now := s.now()
		var m Mutation
		if st.Block != nil {
			if st.Block.Active(now) {
				return m, &BlockedError{Remaining: st.Block.UnblockAt.Sub(now)}
			}
			m.Unblock = true
		}
		// A live code is never replaced, so reissuing cannot reset the attempt count.
		if c := st.Challenge; c != nil && c.Usable(now) {
			return Mutation{}, ErrChallengeAlreadyActive
		}

		challenge = &models.Challenge{
			SubjectID:   subjectID,
			Purpose:     purpose,
			CodeHash:    hash,
			Token:       token,
			MaxAttempts: s.config.MaxAttempts,
			ExpiresAt:   now.Add(s.config.TTL),
			CreatedAt:   now,
		}
		m.Put = challenge
		m.PutTTL = s.config.TTL
		return m, nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordChallengeIssued(purpose)
	issued := &Issued{Token: challenge.Token, ExpiresAt: challenge.ExpiresAt}

	if notifier == nil {
		return issued, nil
	}
	if err := notifier.Notify(ctx, subjectID, purpose, models.Notification{
		Code:      code,
		Token:     challenge.Token,
		ExpiresAt: challenge.ExpiresAt,
	}); err != nil {
		log.Printf("Failed to deliver %s code to %s: %v", purpose, subjectID, err)
		return issued, fmt.Errorf("%w: %v", ErrNotifierFailed, err)
	}
	return issued, nil
}

func (s *service) CheckChallenge(ctx context.Context, subjectID string, purpose models.Purpose, code string) (bool, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return false, fmt.Errorf("%w: code is required", domainerrors.ErrValidation)
	}

	var outcome string
	var result error
	err := s.store.Mutate(ctx, subjectID, purpose, func(st State) (Mutation, error) {
		m, o, res := s.evaluate(st, func(c *models.Challenge) bool {
			return bcrypt.CompareHashAndPassword(c.CodeHash, []byte(code)) == nil
		})
		outcome, result = o, res
		return m, nil
	})
	if err != nil {
		return false, err
	}

	s.record(purpose, outcome)
	if result != nil {
		return false, result
	}
	return true, nil
}

func (s *service) CheckChallengeByToken(ctx context.Context, token string) (string, models.Purpose, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", "", ErrChallengeNotFound
	}
	subjectID, purpose, err := s.store.LookupToken(ctx, token)
	if err != nil {
		return "", "", err
	}

	var outcome string
	var result error
	err = s.store.Mutate(ctx, subjectID, purpose, func(st State) (Mutation, error) {
		if st.Challenge != nil && st.Challenge.Token != token {
			// The challenge was reissued; the old link is dead.
			outcome, result = outcomeNotFound, ErrChallengeNotFound
			return Mutation{}, nil
		}
		m, o, res := s.evaluate(st, func(*models.Challenge) bool { return true })
		outcome, result = o, res
		return m, nil
	})
	if err != nil {
		return "", "", err
	}

	s.record(purpose, outcome)
	if result != nil {
		return "", "", result
	}
	return subjectID, purpose, nil
}

// evaluate applies one answer to the loaded state and returns the writes, the
// metrics outcome and the error to hand back to the caller.
func (s *service) evaluate(st State, matches func(*models.Challenge) bool) (Mutation, string, error) {
	now := s.now()
	var m Mutation

	if st.Block != nil {
		if st.Block.Active(now) {
			return m, outcomeBlocked, &BlockedError{Remaining: st.Block.UnblockAt.Sub(now)}
		}
		m.Unblock = true
	}

	c := st.Challenge
	if c == nil {
		return m, outcomeNotFound, ErrChallengeNotFound
	}
	if c.Expired(now) {
		m.Delete = true
		return m, outcomeExpired, ErrChallengeExpired
	}
	if !c.Usable(now) {
		m.Delete = true
		return m, outcomeNotFound, ErrChallengeNotFound
	}

	if matches(c) {
		m.Delete = true
		return m, outcomeSuccess, nil
	}

	updated := *c
	updated.Attempts++
	if updated.Attempts >= updated.MaxAttempts {
		m.Delete = true
		m.Block = &models.Block{SubjectID: c.SubjectID, UnblockAt: now.Add(s.config.BlockDuration)}
		m.BlockTTL = s.config.BlockDuration
		return m, outcomeLocked, ErrTooManyAttempts
	}
	m.Put = &updated
	m.PutTTL = c.ExpiresAt.Sub(now)
	return m, outcomeInvalid, &InvalidCodeError{Remaining: updated.RemainingAttempts()}
}

func (s *service) record(purpose models.Purpose, outcome string) {
	s.metrics.RecordChallengeCheck(purpose, outcome)
	if outcome == outcomeLocked {
		s.metrics.RecordSubjectBlocked()
	}
}

func (s *service) Sweep(ctx context.Context) (int, error) {
	removed, err := s.store.Sweep(ctx, s.now())
	if err != nil {
		return removed, fmt.Errorf("failed to sweep challenges: %w", err)
	}
	if removed > 0 {
		log.Printf("Swept %d expired challenges and blocks", removed)
	}
	s.metrics.RecordSwept(removed)
	return removed, nil
}

// generateCode returns a zero-padded numeric code of the given length.
func generateCode(length int) (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", length, n.Int64()), nil
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector
type NoopMetricsCollector struct{}

func (n *NoopMetricsCollector) RecordChallengeIssued(models.Purpose)        {}
func (n *NoopMetricsCollector) RecordChallengeCheck(models.Purpose, string) {}
func (n *NoopMetricsCollector) RecordSubjectBlocked()                       {}
func (n *NoopMetricsCollector) RecordSwept(int)                             {}
