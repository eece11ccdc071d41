package device

import (
	"strings"
	"time"
)

// Channel count limits per device.
const (
	MinChannels = 1
	MaxChannels = 32
)

// maxNameLength bounds device names and endpoint IDs.
const maxNameLength = 128

// Device represents a registered smart-home device.
// This matches the database schema in migrations/20250610_090000_devices.up.sql.
type Device struct {
	// Identity
	ID     string `json:"id"`
	UserID string `json:"user_id"`

	// EndpointID is the voice-assistant facing identifier, unique per user.
	EndpointID string `json:"endpoint_id"`

	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Classification
	Type        DeviceType  `json:"type"`
	Integration Integration `json:"integration"`

	// TopicBase anchors the device's MQTT channels. Globally unique.
	TopicBase string `json:"topic_base"`

	// Channels is the number of controllable channels on the device.
	Channels int `json:"channels"`

	// PowerState is the last known power state, updated optimistically
	// by the dispatcher and authoritatively by the reconciler.
	PowerState PowerState `json:"power_state"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateSpec describes a device registration request.
type CreateSpec struct {
	EndpointID  string
	Name        string
	Description string
	Type        DeviceType
	Integration Integration

	// Topic is the caller-supplied topic base. Only honoured for
	// IntegrationCustomTopic; board devices always get the derived
	// default base.
	Topic string

	// Channels defaults to MinChannels when zero.
	Channels int
}

// DeviceType represents the kind of device being controlled.
type DeviceType string //nolint:revive // device.DeviceType is clearer than device.Type in calling code

// DeviceType constants.
const (
	DeviceTypeLight      DeviceType = "LIGHT"
	DeviceTypeTV         DeviceType = "TV"
	DeviceTypeThermostat DeviceType = "THERMOSTAT"
	DeviceTypeDoor       DeviceType = "DOOR"
)

// AllDeviceTypes returns all valid device type values.
func AllDeviceTypes() []DeviceType {
	return []DeviceType{
		DeviceTypeLight, DeviceTypeTV, DeviceTypeThermostat, DeviceTypeDoor,
	}
}

// ParseDeviceType maps a string onto a DeviceType.
// Unknown values are rejected rather than passed through.
func ParseDeviceType(s string) (DeviceType, error) {
	switch DeviceType(s) {
	case DeviceTypeLight, DeviceTypeTV, DeviceTypeThermostat, DeviceTypeDoor:
		return DeviceType(s), nil
	default:
		return "", ErrInvalidDeviceType
	}
}

// Integration represents how a device is addressed on the broker.
type Integration string

// Integration constants.
const (
	// IntegrationBoard is firmware following the default topic scheme.
	IntegrationBoard Integration = "BOARD"

	// IntegrationCustomTopic is user-supplied hardware with its own base.
	IntegrationCustomTopic Integration = "CUSTOM_TOPIC"
)

// ParseIntegration maps a string onto an Integration.
func ParseIntegration(s string) (Integration, error) {
	switch Integration(s) {
	case IntegrationBoard, IntegrationCustomTopic:
		return Integration(s), nil
	default:
		return "", ErrInvalidIntegration
	}
}

// PowerState represents a device's power state.
type PowerState string

// PowerState constants.
const (
	PowerOn  PowerState = "ON"
	PowerOff PowerState = "OFF"
)

// ParsePowerState maps a string onto a PowerState, case-insensitively.
// Anything other than ON or OFF is rejected.
func ParsePowerState(s string) (PowerState, error) {
	switch PowerState(strings.ToUpper(strings.TrimSpace(s))) {
	case PowerOn:
		return PowerOn, nil
	case PowerOff:
		return PowerOff, nil
	default:
		return "", ErrInvalidPowerState
	}
}

// CommandValue returns the lowercase wire form used in command payloads.
func (p PowerState) CommandValue() string {
	return strings.ToLower(string(p))
}
