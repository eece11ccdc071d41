package alexa

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/homelinklabs/homelink-core/internal/auth"
	"github.com/homelinklabs/homelink-core/internal/device"
	"github.com/homelinklabs/homelink-core/internal/infrastructure/metrics"
)

const manufacturerName = "HomeLink"

// powerStateUncertaintyMs is the uncertainty bound reported with a
// power control confirmation. The actual device applies the command
// asynchronously over MQTT.
const powerStateUncertaintyMs = 500

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Identity resolves bearer credentials to accounts.
type Identity interface {
	ValidateAccessToken(ctx context.Context, raw string) (*auth.User, error)
}

// Adapter routes Smart Home directives to the device registry and
// command dispatcher.
type Adapter struct {
	registry   *device.Registry
	dispatcher *device.Dispatcher
	identity   Identity
	logger     Logger
	now        func() time.Time
}

// NewAdapter wires an Adapter from its collaborators.
func NewAdapter(registry *device.Registry, dispatcher *device.Dispatcher, identity Identity) *Adapter {
	return &Adapter{
		registry:   registry,
		dispatcher: dispatcher,
		identity:   identity,
		logger:     noopLogger{},
		now:        time.Now,
	}
}

// SetLogger sets the logger for the adapter.
func (a *Adapter) SetLogger(logger Logger) {
	a.logger = logger
}

// HandleDirective processes one directive and always returns a
// response envelope. Failures become ErrorResponse events, never
// transport-level errors.
func (a *Adapter) HandleDirective(ctx context.Context, req Request) Response {
	directive := req.Directive
	header := directive.Header

	token := bearerToken(directive)
	if token == "" {
		metrics.IncDirective(header.Namespace, metrics.OutcomeError)
		return errorResponse(header, ErrTypeInvalidCredential, "missing bearer token")
	}

	user, err := a.identity.ValidateAccessToken(ctx, token)
	if err != nil {
		metrics.IncDirective(header.Namespace, metrics.OutcomeError)
		return errorResponse(header, ErrTypeInvalidCredential, "invalid bearer token")
	}

	var resp Response
	switch header.Namespace {
	case namespaceDiscovery:
		resp = a.handleDiscovery(ctx, header, user.ID)
	case namespacePowerController:
		resp = a.handlePowerControl(ctx, directive, user.ID)
	case namespaceAlexa:
		if header.Name == "ChangeReport" {
			resp = a.handleRename(ctx, directive, user.ID)
		} else {
			resp = errorResponse(header, ErrTypeInvalidDirective, "unsupported Alexa directive")
		}
	default:
		resp = errorResponse(header, ErrTypeInvalidDirective, "directive not implemented")
	}

	outcome := metrics.OutcomeOK
	if resp.Event.Header.Name == "ErrorResponse" {
		outcome = metrics.OutcomeError
	}
	metrics.IncDirective(header.Namespace, outcome)
	return resp
}

// handleDiscovery projects the caller's devices into endpoint
// descriptors with a fixed PowerController capability advertisement.
func (a *Adapter) handleDiscovery(ctx context.Context, header Header, userID string) Response {
	devices, err := a.registry.List(ctx, userID)
	if err != nil {
		a.logger.Error("discovery listing failed", "user_id", userID, "error", err)
		return errorResponse(header, ErrTypeInternalError, "device listing failed")
	}

	endpoints := make([]DiscoveryEndpoint, 0, len(devices))
	for i := range devices {
		endpoints = append(endpoints, discoveryEndpoint(&devices[i]))
	}

	a.logger.Debug("discovery handled", "user_id", userID, "endpoints", len(endpoints))
	return Response{
		Event: Event{
			Header: Header{
				Namespace:      namespaceDiscovery,
				Name:           "Discover.Response",
				PayloadVersion: payloadVersion,
				MessageID:      header.MessageID,
			},
			Payload: DiscoveryPayload{Endpoints: endpoints},
		},
	}
}

// handlePowerControl maps TurnOn/TurnOff onto a dispatched power
// command. The confirmation is only synthesized after the MQTT
// publish was acknowledged.
func (a *Adapter) handlePowerControl(ctx context.Context, directive Directive, userID string) Response {
	header := directive.Header
	if directive.Endpoint == nil || directive.Endpoint.EndpointID == "" {
		return errorResponse(header, ErrTypeInvalidValue, "missing endpointId")
	}

	var state device.PowerState
	switch header.Name {
	case "TurnOn":
		state = device.PowerOn
	case "TurnOff":
		state = device.PowerOff
	default:
		return errorResponse(header, ErrTypeInvalidDirective, "unsupported power directive")
	}

	deviceID := directive.Endpoint.EndpointID
	_, _, err := a.dispatcher.SendPower(ctx, userID, deviceID, state)
	if err != nil {
		return errorResponse(header, powerErrorType(err), "power command failed")
	}

	return Response{
		Context: &Context{
			Properties: []Property{{
				Namespace:                 namespacePowerController,
				Name:                      "powerState",
				Value:                     string(state),
				TimeOfSample:              a.now().UTC().Format(time.RFC3339),
				UncertaintyInMilliseconds: powerStateUncertaintyMs,
			}},
		},
		Event: Event{
			Header: Header{
				Namespace:        namespaceAlexa,
				Name:             "Response",
				PayloadVersion:   payloadVersion,
				MessageID:        header.MessageID,
				CorrelationToken: header.CorrelationToken,
			},
			Endpoint: &ResponseEndpoint{EndpointID: deviceID},
			Payload:  struct{}{},
		},
	}
}

// handleRename applies a friendlyName property change as a device
// rename and echoes it back as a ChangeReport.
func (a *Adapter) handleRename(ctx context.Context, directive Directive, userID string) Response {
	header := directive.Header
	if directive.Endpoint == nil || directive.Endpoint.EndpointID == "" {
		return errorResponse(header, ErrTypeInvalidValue, "missing endpointId")
	}

	newName, ok := friendlyNameFrom(directive.Payload)
	if !ok {
		return errorResponse(header, ErrTypeInvalidValue, "friendlyName not found in change properties")
	}

	deviceID := directive.Endpoint.EndpointID
	renamed, err := a.registry.Rename(ctx, userID, deviceID, newName)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			return errorResponse(header, ErrTypeNoSuchEndpoint, "no such endpoint")
		}
		if errors.Is(err, device.ErrInvalidName) {
			return errorResponse(header, ErrTypeInvalidValue, "invalid name")
		}
		a.logger.Error("rename failed", "user_id", userID, "device_id", deviceID, "error", err)
		return errorResponse(header, ErrTypeInternalError, "rename failed")
	}

	sample := Property{
		Namespace:                 namespaceAlexa,
		Name:                      "friendlyName",
		Value:                     renamed.Name,
		TimeOfSample:              a.now().UTC().Format(time.RFC3339),
		UncertaintyInMilliseconds: 0,
	}

	return Response{
		Context: &Context{Properties: []Property{sample}},
		Event: Event{
			Header: Header{
				Namespace:        namespaceAlexa,
				Name:             "ChangeReport",
				PayloadVersion:   payloadVersion,
				MessageID:        header.MessageID,
				CorrelationToken: header.CorrelationToken,
			},
			Endpoint: &ResponseEndpoint{EndpointID: deviceID},
			Payload: map[string]any{
				"change": map[string]any{
					"cause":      map[string]any{"type": "APP_INTERACTION"},
					"properties": []Property{sample},
				},
			},
		},
	}
}

// discoveryEndpoint projects a device record into its capability
// descriptor.
func discoveryEndpoint(d *device.Device) DiscoveryEndpoint {
	description := d.Description
	if description == "" {
		description = "Device"
	}
	return DiscoveryEndpoint{
		EndpointID:        d.ID,
		ManufacturerName:  manufacturerName,
		FriendlyName:      d.Name,
		Description:       description,
		DisplayCategories: []string{string(d.Type)},
		Cookie:            map[string]string{},
		Capabilities: []Capability{
			{
				Type:      "AlexaInterface",
				Interface: namespaceAlexa,
				Version:   payloadVersion,
			},
			{
				Type:      "AlexaInterface",
				Interface: namespacePowerController,
				Version:   payloadVersion,
				Properties: &CapabilityProperty{
					Supported:           []SupportedProperty{{Name: "powerState"}},
					Retrievable:         true,
					ProactivelyReported: false,
				},
			},
		},
	}
}

// bearerToken extracts the credential from the payload scope or,
// failing that, the endpoint scope.
func bearerToken(directive Directive) string {
	if len(directive.Payload) > 0 {
		var scoped scopedPayload
		if err := json.Unmarshal(directive.Payload, &scoped); err == nil &&
			scoped.Scope != nil && scoped.Scope.Token != "" {
			return scoped.Scope.Token
		}
	}
	if directive.Endpoint != nil && directive.Endpoint.Scope != nil {
		return directive.Endpoint.Scope.Token
	}
	return ""
}

// friendlyNameFrom digs the new display name out of a ChangeReport
// payload.
func friendlyNameFrom(payload json.RawMessage) (string, bool) {
	if len(payload) == 0 {
		return "", false
	}
	var change changePayload
	if err := json.Unmarshal(payload, &change); err != nil || change.Change == nil {
		return "", false
	}
	for _, prop := range change.Change.Properties {
		if prop.Name != "friendlyName" {
			continue
		}
		var name string
		if err := json.Unmarshal(prop.Value, &name); err != nil || name == "" {
			return "", false
		}
		return name, true
	}
	return "", false
}

// powerErrorType classifies a dispatch failure.
func powerErrorType(err error) string {
	switch {
	case errors.Is(err, device.ErrDeviceNotFound):
		return ErrTypeNoSuchEndpoint
	case errors.Is(err, device.ErrTransportUnavailable), errors.Is(err, device.ErrTransportError):
		return ErrTypeUnreachable
	default:
		return ErrTypeInternalError
	}
}

// errorResponse builds an ErrorResponse envelope echoing the request's
// message id.
func errorResponse(header Header, errType, message string) Response {
	messageID := header.MessageID
	if messageID == "" {
		messageID = "err"
	}
	return Response{
		Event: Event{
			Header: Header{
				Namespace:      namespaceAlexa,
				Name:           "ErrorResponse",
				PayloadVersion: payloadVersion,
				MessageID:      messageID,
			},
			Payload: ErrorPayload{Type: errType, Message: message},
		},
	}
}
