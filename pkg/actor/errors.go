package actor

import (
	"errors"
	"fmt"

	"github.com/vango-dev/vdombridge/pkg/protocol"
)

var (
	// ErrInputClosed is returned by Send after CloseInput.
	ErrInputClosed = errors.New("actor: input closed")

	// ErrStopped is returned by Send once the actor loop has exited.
	ErrStopped = errors.New("actor: stopped")

	// ErrAlreadyRunning is returned when Run is called twice.
	ErrAlreadyRunning = errors.New("actor: already running")
)

// ReducerError reports an irrecoverable reducer failure. The actor stops
// after returning it.
type ReducerError struct {
	Tag protocol.Tag
	Err error
}

// Error returns the error message.
func (e *ReducerError) Error() string {
	return fmt.Sprintf("actor: reduce %s: %v", e.Tag, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *ReducerError) Unwrap() error {
	return e.Err
}
