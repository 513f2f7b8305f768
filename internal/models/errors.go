package models

import "errors"

// Error kinds shared by every layer. Callers classify with errors.Is.
var (
	// ErrInvalidArgument marks a non-positive radius, an out-of-range coordinate or a malformed request.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrStoreUnavailable marks any failed or timed out document store call.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrTimeout is wrapped alongside ErrStoreUnavailable when a store call ran out of time.
	ErrTimeout = errors.New("timeout")
	// ErrPermissionDenied marks a missing device location.
	ErrPermissionDenied = errors.New("location permission denied")
	// ErrAIBackend marks a failed conversational backend call.
	ErrAIBackend = errors.New("ai backend failure")
)
