package util

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Common application-specific errors.
var (
	ErrNotFound             = errors.New("resource not found")
	ErrInvalidInput         = errors.New("invalid input provided")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrDuplicateEntry       = errors.New("duplicate entry")
	ErrForbidden            = errors.New("forbidden")
	ErrPersistence          = errors.New("persistence failure")
	ErrProviderNotSupported = errors.New("payment provider not supported")
	ErrProviderUnavailable  = errors.New("payment provider not configured or disabled")
	ErrGatewayInit          = errors.New("payment gateway could not be initialised")
	ErrGatewayTimeout       = errors.New("payment gateway timed out")
	ErrPaymentFailed        = errors.New("payment processing failed")
	ErrPackageInactive      = errors.New("token package is not available")
)

// InsufficientFundsError carries the amounts involved in a rejected debit.
// It matches ErrInsufficientFunds with errors.Is.
type InsufficientFundsError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: required %s, available %s", e.Required.String(), e.Available.String())
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// PaymentError is a gateway failure whose Message is safe to show to callers.
type PaymentError struct {
	Provider string
	Message  string
	Err      error
}

func (e *PaymentError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Provider, e.Err, e.Message)
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

// IsError reports whether err matches target anywhere in its chain.
func IsError(err, target error) bool {
	return errors.Is(err, target)
}

// AsInsufficientFunds extracts the amounts of an insufficient funds failure.
func AsInsufficientFunds(err error) (*InsufficientFundsError, bool) {
	var ife *InsufficientFundsError
	if errors.As(err, &ife) {
		return ife, true
	}
	return nil, false
}
