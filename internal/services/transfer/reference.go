package transfer

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"fmt"
	"time"

	"bankcore/internal/models"
)

const referencePrefix = "TRF"

var referenceEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// newReference returns TRF-YYYYMMDDHHMMSS-XXXXXX.
func newReference(now time.Time) (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate reference: %w", err)
	}
	return fmt.Sprintf("%s-%s-%s", referencePrefix, now.UTC().Format("20060102150405"), referenceEncoding.EncodeToString(b)[:6]), nil
}

// keyedReference derives a stable reference from a client idempotency key so
// that a repeated request lands on the entries written by the first one.
func keyedReference(senderAccountID, key string) string {
	sum := sha256.Sum256([]byte(senderAccountID + "\x00" + key))
	return referencePrefix + "-K" + referenceEncoding.EncodeToString(sum[:])[:20]
}

func (s *service) reference(intent Intent) (string, error) {
	if intent.IdempotencyKey != "" {
		return keyedReference(intent.SenderAccountID, intent.IdempotencyKey), nil
	}
	return newReference(s.now())
}

// FeeReference names the fee leg of a transfer.
func FeeReference(reference string) string {
	return reference + models.FeeSuffix
}
