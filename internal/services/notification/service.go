// Package notification delivers one-time codes and transfer outcomes to
// account holders. Services depend only on the Notify method; the concrete
// notifier is picked at startup.
package notification

import (
	"context"
	"log"
	"strings"

	"bankcore/internal/models"
)

// LogNotifier writes notifications to the process log. It is the default in
// development and the fallback when no broker is configured.
type LogNotifier struct {
	// RevealCodes prints one-time codes in full. Leave off outside development.
	RevealCodes bool
}

// NewLogNotifier creates a new log-backed notifier.
func NewLogNotifier(revealCodes bool) *LogNotifier {
	return &LogNotifier{RevealCodes: revealCodes}
}

func (n *LogNotifier) Notify(ctx context.Context, destination string, purpose models.Purpose, payload models.Notification) error {
	if payload.Code != "" {
		code := payload.Code
		if !n.RevealCodes {
			code = mask(code)
		}
		log.Printf("Notify %s: %s code %s (expires %s)", destination, purpose, code, payload.ExpiresAt.Format("15:04:05"))
		return nil
	}
	log.Printf("Notify %s: transfer %s %s %s %s", destination, payload.Reference, payload.Status, payload.Amount, payload.Currency)
	return nil
}

func mask(code string) string {
	if len(code) <= 2 {
		return strings.Repeat("*", len(code))
	}
	return strings.Repeat("*", len(code)-2) + code[len(code)-2:]
}
