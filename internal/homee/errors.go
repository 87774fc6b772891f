package homee

import (
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-homee/internal/homee/attribute"
)

// Domain errors for the homee client.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, homee.ErrNotConnected) {
//	    // reconnect
//	}
var (
	// ErrNotConnected is returned when an operation needs a live message connection.
	ErrNotConnected = errors.New("homee: not connected")

	// ErrAuthFailed is returned when the credential exchange is rejected or
	// the transport fails while acquiring a token.
	ErrAuthFailed = errors.New("homee: authentication failed")

	// ErrStreamError is returned when the transport reports an error while receiving.
	ErrStreamError = errors.New("homee: stream error")

	// ErrMalformedMessage is returned when a frame does not decode as JSON.
	ErrMalformedMessage = errors.New("homee: malformed message")

	// ErrUnsupportedMessage is returned when a decoded envelope matches no known shape.
	ErrUnsupportedMessage = errors.New("homee: unsupported message")

	// ErrInvalidDevice is returned when the registry is given something that is not a device.
	ErrInvalidDevice = errors.New("homee: invalid device")

	// ErrInvalidInstance is returned when a property instance index is out of range.
	ErrInvalidInstance = errors.New("homee: invalid instance")

	// ErrNotEditable is returned when a write targets a missing or read-only property.
	ErrNotEditable = errors.New("homee: property not editable")

	// ErrNotNumeric is returned when a numeric aggregate meets a non-numeric value.
	ErrNotNumeric = errors.New("homee: value not numeric")

	// ErrLockTimeout is returned when the registry lock is not acquired in time.
	ErrLockTimeout = errors.New("homee: registry lock timeout")

	// ErrNotSupported is returned when a capability operation is invoked on a
	// device that does not carry the capability.
	ErrNotSupported = errors.New("homee: capability not supported")

	// ErrUnknownProperty is returned when a catalog lookup misses.
	ErrUnknownProperty = attribute.ErrUnknown
)

// UnsupportedMessageError carries the envelope that failed dispatch.
type UnsupportedMessageError struct {
	Envelope any
}

// maxEnvelopeInError bounds how much of an offending envelope is echoed.
const maxEnvelopeInError = 256

func (e *UnsupportedMessageError) Error() string {
	s := fmt.Sprint(e.Envelope)
	if len(s) > maxEnvelopeInError {
		s = s[:maxEnvelopeInError] + "..."
	}
	return ErrUnsupportedMessage.Error() + ": " + s
}

func (e *UnsupportedMessageError) Unwrap() error {
	return ErrUnsupportedMessage
}

// IsNotConnected reports whether err means the session has no live connection.
func IsNotConnected(err error) bool {
	return errors.Is(err, ErrNotConnected)
}

// IsAuthFailed reports whether err is an authentication failure.
func IsAuthFailed(err error) bool {
	return errors.Is(err, ErrAuthFailed)
}
