package validation

import "bankcore/internal/models"

const (
	// Amount limits in minor units
	MinTransferAmount           models.Amount = 1
	MaxInternalTransferAmount   models.Amount = 100_000_000
	MaxDomesticTransferAmount   models.Amount = 25_000_000
	MaxInternationalTransferAmt models.Amount = 10_000_000

	// String lengths
	MaxDescriptionLength   = 140
	MaxRecipientNameLength = 70
	MaxReferenceLength     = 64
)
