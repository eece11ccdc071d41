package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device does not exist for the
	// requesting user. A device owned by another user produces the same
	// error as a missing one.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrTopicConflict is returned when a device's topic base or
	// endpoint ID collides with an existing registration.
	ErrTopicConflict = errors.New("device: topic already in use")

	// ErrInvalidDeviceType is returned when a device type is not recognised.
	ErrInvalidDeviceType = errors.New("device: invalid type")

	// ErrInvalidIntegration is returned when an integration value is not recognised.
	ErrInvalidIntegration = errors.New("device: invalid integration")

	// ErrInvalidPowerState is returned when a power state value is not recognised.
	ErrInvalidPowerState = errors.New("device: invalid power state")

	// ErrInvalidName is returned when a device name is empty or too long.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrInvalidEndpointID is returned when an endpoint ID is empty or malformed.
	ErrInvalidEndpointID = errors.New("device: invalid endpoint id")

	// ErrInvalidChannels is returned when the channel count is out of range.
	ErrInvalidChannels = errors.New("device: invalid channel count")

	// ErrTransportUnavailable is returned when a command cannot be sent
	// because the MQTT connection is down.
	ErrTransportUnavailable = errors.New("device: transport unavailable")

	// ErrTransportError is returned when a command publish was attempted
	// but not acknowledged by the broker.
	ErrTransportError = errors.New("device: transport error")
)
