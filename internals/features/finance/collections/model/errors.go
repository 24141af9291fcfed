package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrFieldValidation        = errors.New("field validation failed")
	ErrAmountExceedsRemaining = errors.New("amount exceeds remaining balance")
	ErrDuplicateInstrument    = errors.New("duplicate payment instrument")
	ErrSingletonViolation     = errors.New("only one gift voucher entry is allowed")
	ErrAmountLocked           = errors.New("entry amount cannot be changed")
	ErrSubmissionBlocked      = errors.New("allocation is not complete")

	// misuse, not user input
	ErrEntryNotFound    = errors.New("payment entry not found")
	ErrNotSubmittable   = errors.New("ledger is not submittable")
	ErrUnboundResource  = errors.New("entry requires an external resource that is not bound yet")
	ErrSessionNotFound  = errors.New("collection session not found")
	ErrSessionCompleted = errors.New("collection session already completed")
)

type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationError wraps one of the rejection sentinels with per-field detail.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Err.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("%s: %s", e.Err.Error(), strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return e.Err }

func Reject(sentinel error, fields ...FieldError) *ValidationError {
	return &ValidationError{Err: sentinel, Fields: fields}
}

// ExternalResourceCreationError aborts a completion attempt.
type ExternalResourceCreationError struct {
	LocalID string
	Kind    MethodKind
	Err     error
}

func (e *ExternalResourceCreationError) Error() string {
	return fmt.Sprintf("create %s for entry %s failed: %v", e.Kind, e.LocalID, e.Err)
}

func (e *ExternalResourceCreationError) Unwrap() error { return e.Err }

// SubmissionError is a failed final submit; the ledger stays intact for retry.
type SubmissionError struct {
	Flow Flow
	Err  error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit %s failed: %v", e.Flow, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// IsRejection reports locally-recoverable validation failures.
func IsRejection(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
