package device

import (
	"errors"
)

// ErrDeviceNotFound is returned when the control channel endpoint doesn't exist.
var ErrDeviceNotFound = errors.New("control channel not found")

// ErrPermissionDenied is returned when access rights to the control channel are insufficient.
var ErrPermissionDenied = errors.New("permission denied on control channel")

// ErrOpenFailed is returned for any other failure to acquire the control channel.
var ErrOpenFailed = errors.New("failed to open control channel")

// ErrRingSetupFailed is returned when the driver refuses the ring configuration.
var ErrRingSetupFailed = errors.New("failed to setup transfer ring")

// ErrClosed is returned when using a session after it was closed.
var ErrClosed = errors.New("session is closed")
