package loan

import "errors"

// Domain outcomes returned by the engine and reporter. Callers match
// them with errors.Is; the HTTP layer maps them to status codes.
var (
	ErrNotFound            = errors.New("book not found")
	ErrAlreadyOnLoan       = errors.New("book is already on loan")
	ErrNotOnLoan           = errors.New("book is not on loan")
	ErrForbidden           = errors.New("customer is not allowed to perform this operation")
	ErrInvalidCategory     = errors.New("invalid book category")
	ErrLedgerInconsistency = errors.New("book holder is set but no open loan exists")
	ErrStoreUnavailable    = errors.New("storage unavailable")
)

var domainErrors = []error{
	ErrNotFound,
	ErrAlreadyOnLoan,
	ErrNotOnLoan,
	ErrForbidden,
	ErrInvalidCategory,
	ErrLedgerInconsistency,
}

// isDomainError reports whether err is one of the loan domain outcomes,
// as opposed to a persistence failure.
func isDomainError(err error) bool {
	for _, de := range domainErrors {
		if errors.Is(err, de) {
			return true
		}
	}
	return false
}
