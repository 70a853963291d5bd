package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Hold statuses
const (
	HoldStatusActive   = "active"
	HoldStatusPosted   = "posted"
	HoldStatusReleased = "released"
)

// Hold reserves funds for a pending outgoing transfer. While active, Amount is
// included in the balance's Held column and cannot be spent.
type Hold struct {
	ID          string   `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AccountID   string   `gorm:"type:varchar(36);not null;index" json:"account_id"`
	Category    Category `gorm:"type:varchar(16);not null" json:"category"`
	Reference   string   `gorm:"type:varchar(64);uniqueIndex;not null" json:"reference"`
	Amount      Amount   `gorm:"not null;check:amount > 0" json:"amount"`
	Fee         Amount   `gorm:"not null;default:0" json:"fee"`
	Currency    string   `gorm:"type:varchar(3);not null" json:"currency"`
	Status      string   `gorm:"type:varchar(16);not null;default:'active'" json:"status"`
	Version     int64    `gorm:"not null;default:0" json:"-"`
	Description string   `json:"description"`
	Reason      string   `json:"reason,omitempty"`

	// Credit leg applied when the hold is posted, for on-us recipients.
	CreditAccountID string    `gorm:"type:varchar(36)" json:"credit_account_id,omitempty"`
	CreditCategory  Category  `gorm:"type:varchar(16)" json:"credit_category,omitempty"`
	CreditAmount    Amount    `json:"credit_amount,omitempty"`
	FeeAccountID    string    `gorm:"type:varchar(36)" json:"fee_account_id,omitempty"`
	Metadata        JSON      `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (h *Hold) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return nil
}

// Principal is the transferred amount without the fee.
func (h *Hold) Principal() Amount { return h.Amount - h.Fee }

func (h *Hold) IsActive() bool { return h.Status == HoldStatusActive }
