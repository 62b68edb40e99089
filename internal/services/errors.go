package services

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrInsufficientBalance = errors.New("insufficient balance for purchase")
	ErrIncorrectPin        = errors.New("incorrect transaction pin")
	ErrPinNotSet           = errors.New("transaction pin has not been set")
	ErrPlanNotFound        = errors.New("plan not found or inactive")
	ErrTransactionNotFound = errors.New("transaction not found")
)

// PurchaseFailedError is a provider-confirmed business failure. The
// wallet has already been compensated when it is returned.
type PurchaseFailedError struct {
	Reference string
	Reason    string
}

func (e *PurchaseFailedError) Error() string {
	if e.Reason == "" {
		return "purchase failed"
	}
	return "purchase failed: " + e.Reason
}

// ProviderError is a transport-level fault talking to a provider. Like
// a business failure it triggers compensation, but it surfaces as a
// server-side error rather than a client one.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
