package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Account statuses
const (
	AccountStatusActive = "active"
	AccountStatusFrozen = "frozen"
	AccountStatusClosed = "closed"
)

// Account is the stable identity that owns per-category balances and the
// append sequence of its ledger entries.
type Account struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	OwnerID   string `gorm:"index;not null"`
	Currency  string `gorm:"type:varchar(3);not null;default:'USD'"`
	Status    string `gorm:"not null;default:'active'"`
	LastSeq   int64  `gorm:"not null;default:0"`
	Version   int64  `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

func (a *Account) IsActive() bool { return a.Status == AccountStatusActive }

// AccountBalance is one category balance of an account. Held is the sum of
// active holds and is never spendable.
type AccountBalance struct {
	AccountID string   `gorm:"primaryKey;type:varchar(36)"`
	Category  Category `gorm:"primaryKey;type:varchar(16)"`
	Balance   Amount   `gorm:"not null;default:0;check:balance >= 0"`
	Held      Amount   `gorm:"not null;default:0;check:held >= 0"`
	Version   int64    `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

// Available is the spendable part of the balance.
func (b *AccountBalance) Available() Amount {
	return b.Balance - b.Held
}
