package services

import (
	"errors"
	"fmt"
)

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "Validation error"
	}
	return fmt.Sprintf("Validation error: %v", e.Fields)
}

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

type UnauthorizedError struct{ Message string }

func (e *UnauthorizedError) Error() string { return e.Message }

type RateLimitError struct{ Message string }

func (e *RateLimitError) Error() string { return e.Message }

type InsufficientCreditsError struct {
	Action  string
	Needed  int
	Balance int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits for %s: need %d, have %d", e.Action, e.Needed, e.Balance)
}

// TransientNetworkError marks a platform, generator or store call that could not be completed.
type TransientNetworkError struct {
	Op  string
	Err error
}

func (e *TransientNetworkError) Error() string {
	return fmt.Sprintf("%s: service unavailable: %v", e.Op, e.Err)
}

func (e *TransientNetworkError) Unwrap() error { return e.Err }

// MalformedResponseError means the generator answered with output of the wrong shape.
type MalformedResponseError struct {
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return "generator returned a malformed response: " + e.Reason
}

// PartialSyncFailureError reports local progress rows that could not be migrated.
type PartialSyncFailureError struct {
	PlaylistID string
	Pending    int
	Err        error
}

func (e *PartialSyncFailureError) Error() string {
	return fmt.Sprintf("progress migration for playlist %s incomplete (%d rows kept locally): %v", e.PlaylistID, e.Pending, e.Err)
}

func (e *PartialSyncFailureError) Unwrap() error { return e.Err }

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsTransient(err error) bool {
	var tn *TransientNetworkError
	return errors.As(err, &tn)
}
