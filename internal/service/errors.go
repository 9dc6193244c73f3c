package service

import (
	"errors"
	"fmt"
)

const (
	MsgMissingFields = "Missing required fields"
	MsgDuplicateCode = "This M-Pesa code has already been submitted"
)

var (
	ErrDuplicateMpesaCode    = errors.New(MsgDuplicateCode)
	ErrTransactionNotFound   = errors.New("Transaction not found")
	ErrManualPaymentNotFound = errors.New("Payment not found")
	ErrInvalidCreds          = errors.New("invalid email or password")
	ErrUploadsDisabled       = errors.New("proof uploads are disabled")
	ErrPaymentReviewed       = errors.New("Payment has already been reviewed")
)

// ValidationError is a request the caller must fix before retrying.
type ValidationError struct {
	Message string
}

func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return e.Message
}

// UpstreamError wraps a failure reported by, or while reaching, the payment provider.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return e.Err.Error()
}

func (e *UpstreamError) Unwrap() error { return e.Err }
