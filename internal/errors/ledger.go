package errors

var (
	ErrValidation = New("VALIDATION_ERROR", "validation failed")

	ErrInsufficientFunds  = New("INSUFFICIENT_FUNDS", "insufficient funds")
	ErrAccountNotFound    = New("ACCOUNT_NOT_FOUND", "account not found")
	ErrAccountInactive    = New("ACCOUNT_INACTIVE", "account is not active")
	ErrInvalidChange      = New("INVALID_CHANGE", "invalid ledger change")
	ErrDuplicateReference = New("DUPLICATE_REFERENCE", "reference already used")
	ErrHoldNotFound       = New("HOLD_NOT_FOUND", "hold not found")
	ErrHoldNotActive      = New("HOLD_NOT_ACTIVE", "hold is not active")

	ErrTransactionAborted = NewRetryable("TRANSACTION_ABORTED", "transaction aborted")
)
