package device

import (
	"context"
	"encoding/json"

	"github.com/homelinklabs/homelink-core/internal/infrastructure/metrics"
	"github.com/homelinklabs/homelink-core/internal/infrastructure/mqtt"
	"github.com/homelinklabs/homelink-core/internal/topic"
)

// stateQoS is the delivery guarantee requested for state reports.
const stateQoS byte = 1

// Subscriber is the broker-facing surface the reconciler needs.
// *mqtt.Client satisfies it.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// stateReport is the structured wire format accepted on state topics.
// Devices may alternatively publish a bare string literal.
type stateReport struct {
	Power string `json:"power"`
}

// Reconciler folds device state reports back into the registry.
//
// It holds one subscription to the shared state filter for the life of
// the process. Handler failures are terminal per message: they are
// logged and counted, never returned to the MQTT client, so a single
// bad report cannot stall the subscription.
type Reconciler struct {
	registry   *Registry
	transport  Subscriber
	logger     Logger
	subscribed bool
}

// NewReconciler creates a state reconciler.
func NewReconciler(registry *Registry, transport Subscriber) *Reconciler {
	return &Reconciler{
		registry:  registry,
		transport: transport,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the reconciler.
func (r *Reconciler) SetLogger(logger Logger) {
	r.logger = logger
}

// Start subscribes to the shared state topic filter.
// Returns an error only if the subscription itself cannot be
// established; the teardown of a lost connection is handled by the
// MQTT client's reconnect logic, which restores the subscription.
func (r *Reconciler) Start(ctx context.Context) error {
	handler := func(t string, payload []byte) error {
		r.handleMessage(ctx, t, payload)
		return nil
	}

	if err := r.transport.Subscribe(topic.StateFilter(), stateQoS, handler); err != nil {
		return err
	}

	r.subscribed = true
	r.logger.Info("state reconciler started", "filter", topic.StateFilter())
	return nil
}

// Stop removes the state subscription. Safe to call when never started.
func (r *Reconciler) Stop() {
	if !r.subscribed {
		return
	}
	if err := r.transport.Unsubscribe(topic.StateFilter()); err != nil {
		r.logger.Warn("state unsubscribe failed", "error", err)
	}
	r.subscribed = false
}

// handleMessage processes a single state report. Every early return is
// a deliberate discard; nothing here is allowed to fail the subscription.
func (r *Reconciler) handleMessage(ctx context.Context, t string, payload []byte) {
	userID, endpointID, ok := topic.ParseStateTopic(t)
	if !ok {
		// Custom-topic devices report on bases outside the default
		// scheme; those reports are not attributable and are skipped.
		metrics.IncStateReport(metrics.OutcomeSkipped)
		return
	}

	state, err := parseStatePayload(payload)
	if err != nil {
		metrics.IncStateReport(metrics.OutcomeDiscarded)
		r.logger.Debug("discarding malformed state report",
			"topic", t,
			"payload_bytes", len(payload),
		)
		return
	}

	dev, err := r.registry.FindByEndpoint(ctx, userID, endpointID)
	if err != nil {
		metrics.IncStateReport(metrics.OutcomeUnknown)
		r.logger.Debug("state report for unknown device",
			"user_id", userID,
			"endpoint_id", endpointID,
		)
		return
	}

	// Last write wins; no sequencing between competing reporters.
	if err := r.registry.SetPowerState(ctx, userID, dev.ID, state); err != nil {
		metrics.IncStateReport(metrics.OutcomeError)
		r.logger.Error("persisting reconciled state failed",
			"device_id", dev.ID,
			"state", state,
			"error", err,
		)
		return
	}

	metrics.IncStateReport(metrics.OutcomeOK)
	r.logger.Debug("device state reconciled",
		"device_id", dev.ID,
		"state", state,
	)
}

// parseStatePayload decodes a state report payload.
//
// Accepted forms, in order of preference:
//
//	{"power": "ON"}    structured report
//	"ON"               JSON string literal
//	ON                 bare literal
//
// The extracted value is matched case-insensitively against ON/OFF;
// anything else is rejected.
func parseStatePayload(payload []byte) (PowerState, error) {
	var report stateReport
	if err := json.Unmarshal(payload, &report); err == nil && report.Power != "" {
		return ParsePowerState(report.Power)
	}

	var literal string
	if err := json.Unmarshal(payload, &literal); err == nil {
		return ParsePowerState(literal)
	}

	return ParsePowerState(string(payload))
}
