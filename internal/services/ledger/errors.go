package ledger

import domainerrors "bankcore/internal/errors"

// Service errors
var (
	ErrInsufficientFunds  = domainerrors.ErrInsufficientFunds
	ErrAccountNotFound    = domainerrors.ErrAccountNotFound
	ErrAccountInactive    = domainerrors.ErrAccountInactive
	ErrInvalidChange      = domainerrors.ErrInvalidChange
	ErrDuplicateReference = domainerrors.ErrDuplicateReference
	ErrTransactionAborted = domainerrors.ErrTransactionAborted
	ErrHoldNotFound       = domainerrors.ErrHoldNotFound
	ErrHoldNotActive      = domainerrors.ErrHoldNotActive
)
