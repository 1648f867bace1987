// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	// ErrAlreadyNotified signals a dedup-key conflict on notification
	// insert. It is expected and benign: the notification was sent in an
	// earlier cycle.
	ErrAlreadyNotified = errors.New("notification already recorded")

	ErrTrackingLimit      = errors.New("tracking limit reached")
	ErrAlreadyTracking    = errors.New("instrument already tracked")
	ErrNotTracking        = errors.New("instrument not tracked")
	ErrInstrumentNotFound = errors.New("instrument not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidISIN        = errors.New("invalid ISIN")
	ErrInvalidPlan        = errors.New("invalid subscription plan")
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrJobRunning         = errors.New("job already running")
	ErrConfigInvalid      = errors.New("invalid configuration")
)

// FetchError represents a transient failure talking to the upstream
// market-data API.
type FetchError struct {
	ISIN     string
	Endpoint string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch error [%s] %s: %v", e.ISIN, e.Endpoint, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a new FetchError.
func NewFetchError(isin, endpoint string, err error) *FetchError {
	return &FetchError{
		ISIN:     isin,
		Endpoint: endpoint,
		Err:      err,
	}
}

// StoreError represents a persistence failure.
type StoreError struct {
	Entity string
	Key    string
	Err    error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error [%s] %s: %v", e.Entity, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(entity, key string, err error) *StoreError {
	return &StoreError{
		Entity: entity,
		Key:    key,
		Err:    err,
	}
}

// DispatchError represents a failure delivering a message to a user.
// The dedup marker is written before dispatch, so this is a known-lossy
// path: callers log it and move on.
type DispatchError struct {
	UserID int64
	Err    error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch error [user %d]: %v", e.UserID, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// NewDispatchError creates a new DispatchError.
func NewDispatchError(userID int64, err error) *DispatchError {
	return &DispatchError{UserID: userID, Err: err}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
