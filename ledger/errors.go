package ledger

import "errors"

// error taxonomy of the node core. Specific errors wrap one of the four categories
var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation error")
	ErrStorageFailure     = errors.New("storage failure")
	ErrInvariantViolation = errors.New("invariant violation")
)

var (
	ErrMalformedPayload = wrapErr(ErrValidation, "malformed payload")
	ErrBadSignature     = wrapErr(ErrValidation, "bad signature")
	ErrStaleIndex       = wrapErr(ErrValidation, "stale milestone index")
	ErrNotEnoughPoW     = wrapErr(ErrValidation, "not enough proof of work")

	ErrMissingAncestor = wrapErr(ErrInvariantViolation, "missing ancestor")
	ErrSupplyMismatch  = wrapErr(ErrInvariantViolation, "total supply mismatch")
	ErrAlreadyApplied  = wrapErr(ErrInvariantViolation, "milestone already applied")
	ErrNotContiguous   = wrapErr(ErrInvariantViolation, "milestone index not contiguous")

	ErrNoTipsAvailable = wrapErr(ErrNotFound, "no tips available")
)

type categorizedError struct {
	category error
	msg      string
}

func wrapErr(category error, msg string) error {
	return &categorizedError{category: category, msg: msg}
}

func (e *categorizedError) Error() string {
	return e.category.Error() + ": " + e.msg
}

func (e *categorizedError) Unwrap() error {
	return e.category
}

// IsRetryable returns true for errors after which the operation may be repeated
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageFailure)
}

// IsFatal returns true for errors after which the node must not continue
func IsFatal(err error) bool {
	return errors.Is(err, ErrInvariantViolation)
}
