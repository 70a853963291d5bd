package transfer

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"time"
)

// withRetry runs fn until it succeeds, fails terminally or the retry budget is
// spent. Every attempt is a complete settle; nothing carries over between them.
func (s *service) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			if werr := s.sleep(ctx, s.backoff(attempt)); werr != nil {
				return fmt.Errorf("%w: %w", ErrSettlementFailed, werr)
			}
		}

		err = fn()
		if err == nil {
			s.metrics.RecordSettleAttempt("success")
			return nil
		}
		if Classify(err) == Terminal {
			s.metrics.RecordSettleAttempt("terminal")
			return err
		}
		s.metrics.RecordSettleAttempt("aborted")
		log.Printf("Settle attempt %d aborted: %v", attempt+1, err)
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrSettlementFailed, s.config.MaxRetries+1, err)
}

// backoff is exponential in the attempt number with up to one base delay of
// jitter.
func (s *service) backoff(attempt int) time.Duration {
	base := s.config.RetryBaseDelay
	d := base << (attempt - 1)
	return d + time.Duration(rand.Int64N(int64(base)))
}
