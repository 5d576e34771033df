package ledger

import "errors"

var (
	// ErrCustomerNotFound means the customer id does not exist. No state change.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrLimitExceeded means the debit would push the balance below
	// -overdraft_limit. The ledger is left exactly as before.
	ErrLimitExceeded = errors.New("overdraft limit exceeded")

	// ErrInvalidInput means the transaction fields failed validation.
	// Raised before any storage access.
	ErrInvalidInput = errors.New("invalid transaction")
)
