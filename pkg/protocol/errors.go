package protocol

import (
	"errors"
	"fmt"
)

// Decoding errors. Every error returned by Codec.DecodeAction is a
// *DecodeError wrapping one of these.
var (
	ErrMalformed    = errors.New("protocol: malformed message")
	ErrMissingField = errors.New("protocol: missing field")
	ErrUnknownTag   = errors.New("protocol: unknown tag")
)

// DecodeError describes an inbound message that could not be turned into an
// Action. It is never fatal to the connection.
type DecodeError struct {
	Field string // Offending field, if any
	Err   error  // Underlying error
}

// Error returns the error message.
func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("protocol: decode action: %v", e.Err)
	}
	return fmt.Sprintf("protocol: decode action: %s: %v", e.Field, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

func decodeErr(field string, err error) *DecodeError {
	return &DecodeError{Field: field, Err: err}
}
