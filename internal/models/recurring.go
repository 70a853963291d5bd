package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RecurringTransfer is a standing order. Each due run settles one transfer whose
// idempotency key is derived from the ID and the run date.
type RecurringTransfer struct {
	ID                 string        `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OwnerID            string        `gorm:"index;not null" json:"owner_id"`
	SenderAccountID    string        `gorm:"type:varchar(36);not null;index" json:"sender_account_id"`
	SenderCategory     Category      `gorm:"type:varchar(16);not null" json:"sender_category"`
	RecipientAccountID string        `gorm:"type:varchar(36)" json:"recipient_account_id,omitempty"`
	RecipientCategory  Category      `gorm:"type:varchar(16)" json:"recipient_category,omitempty"`
	Class              TransferClass `gorm:"type:varchar(32);not null" json:"class"`
	Tier               TransferTier  `gorm:"type:varchar(16);not null" json:"tier"`
	Amount             Amount        `gorm:"not null;check:amount > 0" json:"amount"`
	Currency           string        `gorm:"type:varchar(3);not null" json:"currency"`
	TargetCurrency     string        `gorm:"type:varchar(3)" json:"target_currency,omitempty"`
	Description        string        `json:"description"`

	// Recipient as given when scheduling: name plus bank details or on-us account.
	Recipient JSON `gorm:"type:jsonb" json:"recipient,omitempty"`

	Schedule      string     `gorm:"not null" json:"schedule"`
	NextRunAt     time.Time  `gorm:"index" json:"next_run_at"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	LastReference string     `json:"last_reference,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	Active        bool       `gorm:"not null;default:true;index" json:"active"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (r *RecurringTransfer) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// RunKey identifies one run of the standing order.
func (r *RecurringTransfer) RunKey(due time.Time) string {
	return r.ID + ":" + due.UTC().Format("2006-01-02")
}
