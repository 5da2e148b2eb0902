package checkout

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart          = errors.New("cart is empty, nothing to checkout")
	ErrSubmissionInFlight = errors.New("checkout already in progress")
)

const (
	msgCheckoutFailed = "checkout failed"
	msgNoCheckoutURL  = "no checkout url returned"
	reasonTimeout     = "timeout"
)

// ValidationError rejects a checkout before any request is sent.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NetworkError means the provider could not be reached or did not answer in time.
type NetworkError struct {
	Reason string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("checkout request failed: %s", e.Reason)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Timeout reports whether the bounded wait expired.
func (e *NetworkError) Timeout() bool { return e.Reason == reasonTimeout }

// ServiceError means the provider answered without a redirect URL.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	return e.Message
}
