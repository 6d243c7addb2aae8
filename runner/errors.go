package runner

import (
	"errors"
	"fmt"
)

// ErrNoGuestCall is returned for modules that do not export __guest_call.
var ErrNoGuestCall = errors.New("module does not export __guest_call")

// ErrClosed is returned by Invoke after Close.
var ErrClosed = errors.New("runner closed")

// GuestError is a failure the guest reported through __guest_error.
type GuestError struct {
	Operation string
	Message   string
}

func (e *GuestError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("guest call %s failed", e.Operation)
	}
	return fmt.Sprintf("guest call %s failed: %s", e.Operation, e.Message)
}

// AbortError is an abort signal raised by the guest runtime.
type AbortError struct {
	Message string
	Source  string
	Line    uint32
	Column  uint32
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("guest aborted: %s at %s:%d:%d", e.Message, e.Source, e.Line, e.Column)
}
