package models

import "fmt"

// EntryKind classifies a ledger entry. The set is closed; every kind has a fixed
// direction recorded in Sign.
type EntryKind string

const (
	KindDeposit          EntryKind = "deposit"
	KindWithdrawal       EntryKind = "withdrawal"
	KindTransferIn       EntryKind = "transfer-in"
	KindTransferOut      EntryKind = "transfer-out"
	KindFee              EntryKind = "fee"
	KindInterest         EntryKind = "interest"
	KindAdjustmentCredit EntryKind = "adjustment-credit"
	KindAdjustmentDebit  EntryKind = "adjustment-debit"
)

// EntryKinds lists all kinds in a stable order.
var EntryKinds = []EntryKind{
	KindDeposit,
	KindWithdrawal,
	KindTransferIn,
	KindTransferOut,
	KindFee,
	KindInterest,
	KindAdjustmentCredit,
	KindAdjustmentDebit,
}

// Sign returns +1 for kinds that increase a balance, -1 for kinds that decrease
// it and 0 for an unknown kind.
func (k EntryKind) Sign() int {
	switch k {
	case KindDeposit, KindTransferIn, KindInterest, KindAdjustmentCredit:
		return 1
	case KindWithdrawal, KindTransferOut, KindFee, KindAdjustmentDebit:
		return -1
	}
	return 0
}

func (k EntryKind) Valid() bool { return k.Sign() != 0 }

func (k EntryKind) IsCredit() bool { return k.Sign() > 0 }

func (k EntryKind) IsDebit() bool { return k.Sign() < 0 }

// SignedAmount applies the kind's direction to a positive amount.
func (k EntryKind) SignedAmount(amount Amount) Amount {
	return Amount(k.Sign()) * amount
}

// ParseEntryKind validates a kind received from outside the process.
func ParseEntryKind(s string) (EntryKind, error) {
	k := EntryKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown entry kind %q", s)
	}
	return k, nil
}
