package models

import "time"

// Notification is the payload handed to a notifier. OTP deliveries fill Code
// and Token; transfer outcomes fill the transfer fields.
type Notification struct {
	Code      string    `json:"code,omitempty"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`

	Reference string `json:"reference,omitempty"`
	Status    string `json:"status,omitempty"`
	Amount    Amount `json:"amount,omitempty"`
	Fee       Amount `json:"fee,omitempty"`
	Currency  string `json:"currency,omitempty"`
	Message   string `json:"message,omitempty"`
}
