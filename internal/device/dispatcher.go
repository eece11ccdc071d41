package device

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/homelinklabs/homelink-core/internal/infrastructure/metrics"
	"github.com/homelinklabs/homelink-core/internal/topic"
)

// commandQoS is the delivery guarantee for device commands.
// At-least-once: the broker must acknowledge before state is persisted.
const commandQoS byte = 1

// Publisher is the broker-facing surface the dispatcher needs.
// *mqtt.Client satisfies it.
type Publisher interface {
	IsConnected() bool
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Command is the ephemeral record of a published device command.
// It is returned to callers for logging and testing; it is never stored.
type Command struct {
	Topic   string `json:"topic"`
	Payload []byte `json:"payload"`
	QoS     byte   `json:"qos"`
}

// powerCommand is the wire format published on command topics.
type powerCommand struct {
	Type  string `json:"type"`
	State string `json:"state"`
}

// Dispatcher turns power intents into MQTT command publishes.
//
// Ordering is publish-first: the registry's power state moves only
// after the broker has acknowledged the command, so a failed or timed
// out publish leaves the stored state untouched. One attempt per call;
// retry policy belongs to callers.
type Dispatcher struct {
	registry  *Registry
	transport Publisher
	logger    Logger
}

// NewDispatcher creates a command dispatcher.
func NewDispatcher(registry *Registry, transport Publisher) *Dispatcher {
	return &Dispatcher{
		registry:  registry,
		transport: transport,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// SendPower publishes a power command for one of the user's devices and,
// once the broker has acknowledged it, records the new state.
//
// Returns ErrDeviceNotFound if the device is missing or not owned by
// the user, ErrTransportUnavailable if the broker connection is down,
// and ErrTransportError if the publish was attempted but not
// acknowledged.
func (d *Dispatcher) SendPower(ctx context.Context, userID, deviceID string, state PowerState) (*Device, Command, error) {
	dev, err := d.registry.FindOwned(ctx, userID, deviceID)
	if err != nil {
		return nil, Command{}, err
	}

	if !d.transport.IsConnected() {
		metrics.IncCommandDispatched(metrics.OutcomeUnavailable)
		return nil, Command{}, ErrTransportUnavailable
	}

	payload, err := json.Marshal(powerCommand{
		Type:  "power",
		State: state.CommandValue(),
	})
	if err != nil {
		return nil, Command{}, fmt.Errorf("encoding power command: %w", err)
	}

	cmd := Command{
		Topic:   topic.Command(dev.TopicBase),
		Payload: payload,
		QoS:     commandQoS,
	}

	if err := d.transport.Publish(cmd.Topic, cmd.Payload, cmd.QoS, false); err != nil {
		metrics.IncCommandDispatched(metrics.OutcomeError)
		d.logger.Warn("command publish failed",
			"device_id", dev.ID,
			"topic", cmd.Topic,
			"error", err,
		)
		return nil, Command{}, fmt.Errorf("%w: %w", ErrTransportError, err)
	}

	if err := d.registry.SetPowerState(ctx, userID, deviceID, state); err != nil {
		// The command is already on the wire; surface the persistence
		// failure rather than pretending the state moved.
		return nil, cmd, err
	}

	metrics.IncCommandDispatched(metrics.OutcomeOK)
	d.logger.Debug("power command dispatched",
		"device_id", dev.ID,
		"topic", cmd.Topic,
		"state", state,
	)

	dev.PowerState = state
	return dev, cmd, nil
}
