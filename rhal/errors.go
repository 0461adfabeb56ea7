package rhal

import (
	"errors"
	"fmt"
)

var (
	// ErrConnClosed indicates that the connection closed before the call resolved,
	// or that a call was issued on a closed connection.
	ErrConnClosed = errors.New("connection closed")

	// ErrTimeout indicates that no response arrived within the request timeout.
	// The connection stays usable.
	ErrTimeout = errors.New("request timeout")
)

var (
	// ErrMalformedMessage indicates that a frame was read but its payload could not be decoded.
	// The offending message is dropped, other in-flight calls are not affected.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrInvalidFrameLength indicates a frame header with a zero or oversized length.
	// The stream cannot be resynchronized and the connection is closed.
	ErrInvalidFrameLength = errors.New("invalid frame length")
)

var (
	// ErrDeviceAlreadyBound indicates a connect request for a device path that is already bound.
	ErrDeviceAlreadyBound = errors.New("device already bound")

	// ErrDeviceNotBound indicates an operation on a device path that is not bound.
	ErrDeviceNotBound = errors.New("device not bound")

	// ErrUnhandled indicates that the server does not support the request kind.
	ErrUnhandled = errors.New("request unhandled by server")
)

var (
	// ErrInvalidData indicates a byte literal that is not valid hex data.
	ErrInvalidData = errors.New("invalid data")

	// ErrLengthMismatch indicates a response payload whose length differs from the caller's buffer.
	ErrLengthMismatch = errors.New("response data length mismatch")

	// ErrConfigNil indicates that a nil configuration was provided.
	ErrConfigNil = errors.New("config is nil")
)

// RemoteError is a failure reported by the server with an ErrorRsp.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "remote error: " + e.Message
}

// UnexpectedResponseError is returned when the server answers with a kind the caller did not expect.
type UnexpectedResponseError struct {
	Kind ResponseKind
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("unexpected response: %s", KindString(e.Kind))
}

// ErrorFromResponse maps a response kind that is not the expected result of a call to an error.
//
// Binding conflicts and unhandled requests map to their sentinel errors, ErrorRsp maps to *RemoteError,
// any other kind maps to *UnexpectedResponseError.
func ErrorFromResponse(kind ResponseKind) error {
	switch k := kind.(type) {
	case DeviceAlreadyBoundRsp:
		return ErrDeviceAlreadyBound
	case DeviceNotBoundRsp:
		return ErrDeviceNotBound
	case UnhandledRsp:
		return ErrUnhandled
	case ErrorRsp:
		return &RemoteError{Message: k.Message}
	default:
		return &UnexpectedResponseError{Kind: kind}
	}
}
