package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrPageOutOfRange  = errors.New("page out of range")
	ErrExportEmpty     = errors.New("nothing to export")
	ErrProviderFailure = errors.New("provider failure")
)

// ErrorKind classifies a backend failure once, at the boundary where the raw
// error is first caught, so downstream logic switches on the tag instead of
// re-parsing message strings.
type ErrorKind string

const (
	KindTransientCapacity ErrorKind = "transient_capacity"
	KindFatal             ErrorKind = "fatal"
)

// GenerationError wraps a failure from the generative backend together with
// its classification.
type GenerationError struct {
	Kind  ErrorKind
	Op    string
	Cause error
}

func (e *GenerationError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("generation %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("generation %s: %v", e.Op, e.Cause)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// NewTransientError tags err as a temporary capacity problem (rate limit,
// quota) that is worth retrying with backoff.
func NewTransientError(op string, err error) *GenerationError {
	return &GenerationError{Kind: KindTransientCapacity, Op: op, Cause: err}
}

// NewFatalError tags err as a final failure for the operation.
func NewFatalError(op string, err error) *GenerationError {
	return &GenerationError{Kind: KindFatal, Op: op, Cause: err}
}

// IsTransientCapacity reports whether err should be retried with backoff.
// Structured GenerationErrors are checked by tag; for foreign errors the
// textual contract applies: a representation containing "429", "quota" or
// "RESOURCE_EXHAUSTED" counts as a capacity problem. The substring match is
// case-sensitive and intentionally the contract of last resort.
func IsTransientCapacity(err error) bool {
	if err == nil {
		return false
	}
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.Kind == KindTransientCapacity
	}
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED")
}
