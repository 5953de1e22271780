package session

import "errors"

var (
	// ErrBusy is returned when another action is still running.
	ErrBusy              = errors.New("another action is in progress")
	ErrInvalidTransition = errors.New("action not allowed in current state")
	ErrNoResponse        = errors.New("no recording or typed response to submit")
	ErrNoTranscript      = errors.New("no transcript to evaluate")
)
