package service

import (
	"errors"
	"fmt"
)

var (
	ErrGoalLimitReached   = errors.New("free plan active goal limit reached")
	ErrProRequired        = errors.New("this feature requires an active Pro subscription")
	ErrActiveSubscription = errors.New("cancel the active Pro subscription before deleting the account")
)

// ValidationError is an input error whose message is safe to return to the caller verbatim.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

// Invalid builds a ValidationError.
func Invalid(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err (or anything it wraps) is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
