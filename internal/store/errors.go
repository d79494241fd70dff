package store

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidInput is matched by every validation failure, so callers can
	// distinguish bad requests from storage failures with errors.Is.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInconsistentState is returned by every call after an operation
	// panicked while holding the connection lock.
	ErrInconsistentState = errors.New("store is in an inconsistent state, restart required")
)

// ValidationError reports a field that failed validation before any write.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// ParseError reports an unknown on-disk or user-supplied enum string.
type ParseError struct {
	Kind  string
	Value string
	Valid []string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unknown %s %q (valid: %s)", e.Kind, e.Value, strings.Join(e.Valid, ", "))
}

func (e *ParseError) Is(target error) bool { return target == ErrInvalidInput }

func requireText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Reason: "must not be blank"}
	}
	return nil
}
