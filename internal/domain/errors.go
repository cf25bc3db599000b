package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("message not found")
	ErrNoRecipients      = errors.New("no valid phone numbers provided")
	ErrTooManyRecipients = fmt.Errorf("maximum %d recipients allowed per batch", MaxRecipients)
	ErrCampaignUnsettled = errors.New("campaign still has pending recipients")
	ErrUnknownStatus     = errors.New("unknown delivery status")
)

// FormatError means a phone number lacks an explicit country code
type FormatError struct {
	Input string
}

func (e *FormatError) Error() string {
	return "please include country code (e.g. +254 for Kenya, +1 for US)"
}

// ValidationError means a canonical phone number failed the pattern check
type ValidationError struct {
	Number string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid phone number format: %q", e.Number)
}

// GatewayError is a send that still failed after all attempts
type GatewayError struct {
	Reason string
}

func (e *GatewayError) Error() string {
	return "failed to send sms: " + e.Reason
}

// StorageError wraps a ledger failure
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsInputError reports whether err was caused by the request rather than the system
func IsInputError(err error) bool {
	var fe *FormatError
	var ve *ValidationError
	return errors.As(err, &fe) ||
		errors.As(err, &ve) ||
		errors.Is(err, ErrNoRecipients) ||
		errors.Is(err, ErrTooManyRecipients)
}
