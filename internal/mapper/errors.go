package mapper

import (
	"errors"
	"fmt"
)

// Validation error codes
const (
	ErrCodeInvalidCodeCombination    = "invalid_code_combination"
	ErrCodeDispositionNotAllowed     = "disposition_not_allowed"
	ErrCodeRemandReasonsMissing      = "remand_reasons_missing"
	ErrCodeRemandReasonNotRecognized = "remand_reason_not_recognized"
)

// ValidationError reports an attribute set the legacy system would
// reject. These are expected, recoverable failures; callers branch on
// Code.
type ValidationError struct {
	Code    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// AsValidationError returns the *ValidationError inside err, or nil
// when err is a different kind of failure.
func AsValidationError(err error) *ValidationError {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr
	}
	return nil
}
