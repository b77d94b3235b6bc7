package session

import "errors"

// Sentinel errors for session lifecycle and turn preconditions. Callers
// check them with errors.Is to pick the right response.
var (
	// ErrNoDocuments indicates a session start with an empty document list.
	ErrNoDocuments = errors.New("no documents loaded")

	// ErrActive indicates an operation that requires no running session.
	ErrActive = errors.New("session already active")

	// ErrInactive indicates an operation that requires a running session.
	ErrInactive = errors.New("no active session")

	// ErrTurnInFlight indicates a send while a previous turn is still
	// streaming.
	ErrTurnInFlight = errors.New("a turn is already in flight")

	// ErrBlankMessage indicates a send with no visible content.
	ErrBlankMessage = errors.New("message is blank")

	// ErrInit wraps provider failures while opening a session.
	ErrInit = errors.New("session initialization failed")
)
