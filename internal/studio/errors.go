package studio

import (
	"errors"
	"fmt"
)

var (
	// ErrStaleResponse reports a collaborator response that arrived after
	// the session was reset. The response was discarded.
	ErrStaleResponse  = errors.New("response discarded: session was reset")
	ErrRefineInFlight = errors.New("a refinement is already running for this design")
	ErrSearchDisabled = errors.New("shopping search is not configured")
	ErrEmptyQuery     = errors.New("search query cannot be empty")
	ErrEmptyEstimate  = errors.New("estimate has no rows")
	ErrInvalidIndex   = errors.New("index out of range")
	ErrInvalidMode    = errors.New("room mode must be single or multi")
	ErrUnknownRoom    = errors.New("not a quick-add room")
)

// CallError wraps a failed collaborator call. Op names the operation as
// shown to the user.
type CallError struct {
	Op  string
	Err error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}
