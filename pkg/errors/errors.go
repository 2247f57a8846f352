// Package errors provides structured error handling for the keychain
// library. It defines sentinel errors and helpers for adding context,
// details, and suggestions to errors.
//
// Lookup misses are not errors anywhere in this library; they are
// reported as absent results. The sentinels here cover the failure
// conditions a caller can actually act on.
//
//nolint:revive // Package name intentionally shadows stdlib for domain-specific error handling
package errors

import (
	"errors"
	"fmt"
	"sort"
)

// KeychainError is the structured error type for the keychain library.
type KeychainError struct {
	Code       string            // Machine-readable error code
	Message    string            // Human-readable message
	Details    map[string]string // Additional context
	Suggestion string            // Actionable suggestion for the caller
	Cause      error             // Underlying error
}

func (e *KeychainError) Error() string {
	msg := e.Message

	// Include details in error message (sorted for deterministic output)
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			msg = fmt.Sprintf("%s (%s: %s)", msg, k, e.Details[k])
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *KeychainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for KeychainError.
func (e *KeychainError) Is(target error) bool {
	var t *KeychainError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinel errors.
var (
	ErrGeneral = &KeychainError{
		Code:    "GENERAL_ERROR",
		Message: "an error occurred",
	}

	ErrInvalidInput = &KeychainError{
		Code:    "INVALID_INPUT",
		Message: "invalid input",
	}

	// ErrChainLocked indicates issuance or private-material access was
	// requested while the chain requires unlocking. Recoverable: unlock
	// and retry.
	ErrChainLocked = &KeychainError{
		Code:       "CHAIN_LOCKED",
		Message:    "key chain is locked",
		Suggestion: "unlock the chain with its passphrase and retry",
	}

	// ErrExhaustedKeySpace indicates the chain has no further keys
	// derivable or issuable under its current policy.
	ErrExhaustedKeySpace = &KeychainError{
		Code:    "EXHAUSTED_KEY_SPACE",
		Message: "no further keys can be issued",
	}

	// ErrInvalidFilterParams indicates out-of-range Bloom filter
	// parameters. Rejected before any computation or state access.
	ErrInvalidFilterParams = &KeychainError{
		Code:    "INVALID_FILTER_PARAMS",
		Message: "invalid bloom filter parameters",
	}

	// ErrFilterMismatch indicates two filters were built with different
	// size, hash-function count, or tweak and cannot be merged.
	ErrFilterMismatch = &KeychainError{
		Code:    "FILTER_MISMATCH",
		Message: "bloom filters were built with incompatible parameters",
	}

	// ErrInconsistentState indicates an internal invariant violation,
	// such as the two lookup indices disagreeing. A programming defect,
	// not a user-recoverable condition.
	ErrInconsistentState = &KeychainError{
		Code:    "INCONSISTENT_STATE",
		Message: "key chain internal state is inconsistent",
	}

	ErrInvalidMnemonic = &KeychainError{
		Code:    "INVALID_MNEMONIC",
		Message: "invalid mnemonic phrase",
	}

	ErrDecryptionFailed = &KeychainError{
		Code:    "DECRYPTION_FAILED",
		Message: "decryption failed - wrong passphrase or corrupted data",
	}

	ErrInvalidKey = &KeychainError{
		Code:    "INVALID_KEY",
		Message: "invalid key material",
	}
)

// New creates a new KeychainError with the given code and message.
func New(code, message string) *KeychainError {
	return &KeychainError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)

	var ke *KeychainError
	if errors.As(err, &ke) {
		return &KeychainError{
			Code:       ke.Code,
			Message:    fmt.Sprintf("%s: %s", msg, ke.Message),
			Details:    ke.Details,
			Suggestion: ke.Suggestion,
			Cause:      err,
		}
	}

	return &KeychainError{
		Code:    "GENERAL_ERROR",
		Message: msg,
		Cause:   err,
	}
}

// WithDetails adds details to an error.
func WithDetails(err error, details map[string]string) error {
	if err == nil {
		return nil
	}

	var ke *KeychainError
	if errors.As(err, &ke) {
		return &KeychainError{
			Code:       ke.Code,
			Message:    ke.Message,
			Details:    details,
			Suggestion: ke.Suggestion,
			Cause:      ke.Cause,
		}
	}

	return &KeychainError{
		Code:    "GENERAL_ERROR",
		Message: err.Error(),
		Details: details,
		Cause:   err,
	}
}

// WithSuggestion adds a suggestion to an error.
func WithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}

	var ke *KeychainError
	if errors.As(err, &ke) {
		return &KeychainError{
			Code:       ke.Code,
			Message:    ke.Message,
			Details:    ke.Details,
			Suggestion: suggestion,
			Cause:      ke.Cause,
		}
	}

	return &KeychainError{
		Code:       "GENERAL_ERROR",
		Message:    err.Error(),
		Suggestion: suggestion,
		Cause:      err,
	}
}

// Code returns the error code for an error.
func Code(err error) string {
	var ke *KeychainError
	if errors.As(err, &ke) {
		return ke.Code
	}
	return "GENERAL_ERROR"
}

// Is wraps errors.Is for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience.
func As(err error, target any) bool {
	return errors.As(err, target)
}
