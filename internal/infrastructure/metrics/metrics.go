// Package metrics registers Prometheus collectors for the control
// plane and exposes small helpers so callers never touch collector
// handles directly. Init is a no-op after the first call; helpers are
// safe to call before Init and simply do nothing.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "homelink_"

// Outcome labels shared across counters.
const (
	OutcomeOK          = "ok"
	OutcomeError       = "error"
	OutcomeSkipped     = "skipped"
	OutcomeDiscarded   = "discarded"
	OutcomeUnknown     = "unknown_device"
	OutcomeUnavailable = "unavailable"
)

var (
	registerOnce sync.Once

	commandsDispatched *prometheus.CounterVec
	stateReports       *prometheus.CounterVec
	directivesHandled  *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
)

// Init registers all collectors with the default registry.
func Init() {
	registerOnce.Do(func() {
		commandsDispatched = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "commands_dispatched_total",
				Help: "Device power commands by outcome",
			},
			[]string{"outcome"},
		)
		stateReports = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "state_reports_total",
				Help: "MQTT state reports by outcome",
			},
			[]string{"outcome"},
		)
		directivesHandled = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "directives_total",
				Help: "Voice assistant directives by namespace and outcome",
			},
			[]string{"namespace", "outcome"},
		)
		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "HTTP requests by method and status class",
			},
			[]string{"method", "class"},
		)

		prometheus.MustRegister(
			commandsDispatched,
			stateReports,
			directivesHandled,
			httpRequests,
		)
	})
}

// IncCommandDispatched counts a dispatched power command by outcome.
func IncCommandDispatched(outcome string) {
	if commandsDispatched != nil {
		commandsDispatched.WithLabelValues(outcome).Inc()
	}
}

// IncStateReport counts a processed state report by outcome.
func IncStateReport(outcome string) {
	if stateReports != nil {
		stateReports.WithLabelValues(outcome).Inc()
	}
}

// IncDirective counts a handled directive by namespace and outcome.
func IncDirective(namespace, outcome string) {
	if namespace == "" {
		namespace = "unknown"
	}
	if directivesHandled != nil {
		directivesHandled.WithLabelValues(namespace, outcome).Inc()
	}
}

// IncHTTPRequest counts an HTTP request by method and status class
// (e.g. "2xx").
func IncHTTPRequest(method, class string) {
	if httpRequests != nil {
		httpRequests.WithLabelValues(method, class).Inc()
	}
}
