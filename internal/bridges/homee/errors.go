package homee

import (
	"context"
	"errors"

	hub "github.com/nerrad567/gray-logic-homee/internal/homee"
)

// Bridge errors.
var (
	// ErrUnknownCommand is returned for commands the bridge does not implement.
	ErrUnknownCommand = errors.New("homee bridge: unknown command")

	// ErrInvalidParameter is returned when a command parameter is missing or malformed.
	ErrInvalidParameter = errors.New("homee bridge: invalid parameter")

	// ErrUnknownNode is returned when a command addresses a node the hub has not reported.
	ErrUnknownNode = errors.New("homee bridge: unknown node")
)

// ackCode maps a command failure to the error code carried in the ack.
func ackCode(err error) string {
	switch {
	case errors.Is(err, ErrUnknownNode):
		return ErrCodeNotConfigured
	case errors.Is(err, ErrUnknownCommand), errors.Is(err, hub.ErrNotSupported):
		return ErrCodeInvalidCommand
	case errors.Is(err, ErrInvalidParameter),
		errors.Is(err, hub.ErrNotEditable),
		errors.Is(err, hub.ErrInvalidInstance),
		errors.Is(err, hub.ErrUnknownProperty):
		return ErrCodeInvalidParameters
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, hub.ErrLockTimeout):
		return ErrCodeTimeout
	case errors.Is(err, hub.ErrNotConnected),
		errors.Is(err, hub.ErrAuthFailed),
		errors.Is(err, hub.ErrStreamError):
		return ErrCodeDeviceUnreachable
	default:
		return ErrCodeBridgeError
	}
}
