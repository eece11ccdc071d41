package device

import (
	"encoding/json"

	"github.com/homelinklabs/homelink-core/internal/topic"
)

// telemetryQoS is the delivery guarantee requested for telemetry.
// At-most-once is fine here; readings are periodic and lossy by nature.
const telemetryQoS byte = 0

// telemetryMeasurement is the time-series measurement name for device
// telemetry points.
const telemetryMeasurement = "device_telemetry"

// MetricWriter is the time-series surface the telemetry sink needs.
// *influxdb.Client satisfies it.
type MetricWriter interface {
	WritePoint(measurement string, tags map[string]string, fields map[string]interface{})
}

// TelemetrySink records device telemetry readings into a time-series
// store. It mirrors the reconciler's tolerance: payloads that are not
// JSON objects with at least one numeric field are dropped quietly.
type TelemetrySink struct {
	transport  Subscriber
	writer     MetricWriter
	logger     Logger
	subscribed bool
}

// NewTelemetrySink creates a telemetry sink.
func NewTelemetrySink(transport Subscriber, writer MetricWriter) *TelemetrySink {
	return &TelemetrySink{
		transport: transport,
		writer:    writer,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the sink.
func (s *TelemetrySink) SetLogger(logger Logger) {
	s.logger = logger
}

// Start subscribes to the shared telemetry topic filter.
func (s *TelemetrySink) Start() error {
	if err := s.transport.Subscribe(topic.TelemetryFilter(), telemetryQoS, s.handleMessage); err != nil {
		return err
	}
	s.subscribed = true
	s.logger.Info("telemetry sink started", "filter", topic.TelemetryFilter())
	return nil
}

// Stop removes the telemetry subscription. Safe to call when never started.
func (s *TelemetrySink) Stop() {
	if !s.subscribed {
		return
	}
	if err := s.transport.Unsubscribe(topic.TelemetryFilter()); err != nil {
		s.logger.Warn("telemetry unsubscribe failed", "error", err)
	}
	s.subscribed = false
}

func (s *TelemetrySink) handleMessage(t string, payload []byte) error {
	userID, endpointID, ok := topic.ParseTelemetryTopic(t)
	if !ok {
		return nil
	}

	var readings map[string]any
	if err := json.Unmarshal(payload, &readings); err != nil {
		s.logger.Debug("discarding malformed telemetry",
			"topic", t,
			"payload_bytes", len(payload),
		)
		return nil
	}

	fields := make(map[string]interface{}, len(readings))
	for name, v := range readings {
		switch val := v.(type) {
		case float64:
			fields[name] = val
		case bool:
			fields[name] = boolToFloat(val)
		}
	}
	if len(fields) == 0 {
		return nil
	}

	s.writer.WritePoint(telemetryMeasurement,
		map[string]string{
			"user_id":     userID,
			"endpoint_id": endpointID,
		},
		fields,
	)
	return nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
