package models

// TransferClass is the kind of money movement.
type TransferClass string

const (
	ClassInternal      TransferClass = "internal"
	ClassDomestic      TransferClass = "domestic"
	ClassInternational TransferClass = "international"
)

func (c TransferClass) Valid() bool {
	switch c {
	case ClassInternal, ClassDomestic, ClassInternational:
		return true
	}
	return false
}

// TransferTier is the settlement speed. Standard transfers are held until
// confirmed; express and instant post immediately.
type TransferTier string

const (
	TierStandard TransferTier = "standard"
	TierExpress  TransferTier = "express"
	TierInstant  TransferTier = "instant"
)

func (t TransferTier) Valid() bool {
	switch t {
	case TierStandard, TierExpress, TierInstant:
		return true
	}
	return false
}

// Immediate reports whether the tier posts at settlement time.
func (t TransferTier) Immediate() bool {
	return t == TierExpress || t == TierInstant
}

// TransferState tracks a transfer through the orchestrator:
// draft -> validated -> (challenged ->) posted, or failed.
type TransferState string

const (
	TransferDraft      TransferState = "draft"
	TransferValidated  TransferState = "validated"
	TransferChallenged TransferState = "challenged"
	TransferPosted     TransferState = "posted"
	TransferFailed     TransferState = "failed"
)

// TransferOrigin records who initiated a transfer.
type TransferOrigin string

const (
	OriginCustomer  TransferOrigin = "customer"
	OriginRecurring TransferOrigin = "recurring"
	OriginAdmin     TransferOrigin = "admin"
)
