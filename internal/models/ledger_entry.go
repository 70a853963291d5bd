package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Entry statuses
const (
	EntryStatusPending   = "pending"
	EntryStatusCompleted = "completed"
	EntryStatusFailed    = "failed"
)

// FeeSuffix is appended to a transfer reference to name its fee leg.
const FeeSuffix = "-FEE"

// LedgerEntry is an immutable record of one balance-affecting event. Pending and
// failed entries are memos: they carry the unchanged balance in BalanceAfter.
type LedgerEntry struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AccountID    string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_entry_seq,priority:1;uniqueIndex:idx_entry_ref,priority:1" json:"account_id"`
	Seq          int64     `gorm:"not null;uniqueIndex:idx_entry_seq,priority:2" json:"seq"`
	Category     Category  `gorm:"type:varchar(16);not null;uniqueIndex:idx_entry_ref,priority:2" json:"category"`
	Kind         EntryKind `gorm:"type:varchar(32);not null" json:"kind"`
	Amount       Amount    `gorm:"not null;check:amount > 0" json:"amount"`
	Currency     string    `gorm:"type:varchar(3);not null" json:"currency"`
	Description  string    `json:"description"`
	Reference    string    `gorm:"type:varchar(64);not null;index;uniqueIndex:idx_entry_ref,priority:3" json:"reference"`
	Status       string    `gorm:"type:varchar(16);not null;uniqueIndex:idx_entry_ref,priority:4" json:"status"`
	BalanceAfter Amount    `gorm:"not null" json:"balance_after"`
	Metadata     JSON      `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

func (e *LedgerEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// Effective reports whether the entry moved the balance.
func (e *LedgerEntry) Effective() bool {
	return e.Status == EntryStatusCompleted
}

// SignedAmount is the balance effect of a completed entry.
func (e *LedgerEntry) SignedAmount() Amount {
	if !e.Effective() {
		return 0
	}
	return e.Kind.SignedAmount(e.Amount)
}
