package server

import (
	"errors"
	"fmt"
)

// Sentinel errors for listener and bridge conditions.
var (
	// ErrServerClosed is returned when the server is shutting down.
	ErrServerClosed = errors.New("server: closed")

	// ErrSubprotocolMismatch is recorded when a client does not offer the
	// configured sub-protocol.
	ErrSubprotocolMismatch = errors.New("server: sub-protocol mismatch")

	// ErrNoSessionFactory is logged when a connection is refused with HTTP
	// 500 because the server was built without a session factory.
	ErrNoSessionFactory = errors.New("server: no session factory")
)

// BridgeError wraps a transport failure with connection context.
type BridgeError struct {
	ConnID string
	Op     string // "read" or "write"
	Err    error  // Underlying error
}

// Error returns the error message with connection context.
func (e *BridgeError) Error() string {
	if e.ConnID == "" {
		return fmt.Sprintf("server: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("server: conn %s: %s: %v", e.ConnID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *BridgeError) Unwrap() error {
	return e.Err
}
