package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrConfigMissing      = errors.New("configuration missing")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrRateLimited        = errors.New("rate limited")
	ErrUpstream           = errors.New("upstream failure")
)

// Error pairs a sentinel kind with the message shown to the caller.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

// Invalid reports client input that cannot be processed (HTTP 400).
func Invalid(msg string) error { return &Error{Kind: ErrInvalidArgument, Msg: msg} }

// MissingConfig reports an absent operator secret (HTTP 500).
func MissingConfig(msg string) error { return &Error{Kind: ErrConfigMissing, Msg: msg} }

// Conflict reports a uniqueness violation (HTTP 409).
func Conflict(msg string) error { return &Error{Kind: ErrAlreadyExists, Msg: msg} }

// UpstreamError carries the status and message of a failed call to an external API.
// Status is zero when the upstream could not be reached at all.
type UpstreamError struct {
	Provider string
	Status   int
	Message  string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s upstream (%d): %s", e.Provider, e.Status, e.Message)
}

func (e *UpstreamError) Unwrap() error { return ErrUpstream }

// Message returns the user-facing text for err when it is a domain error.
func Message(err error) (string, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Msg, true
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Message, true
	}
	return "", false
}
