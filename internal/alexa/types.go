package alexa

import "encoding/json"

// Protocol constants for the Smart Home API (payload version 3).
const (
	payloadVersion = "3"

	namespaceAlexa           = "Alexa"
	namespaceDiscovery       = "Alexa.Discovery"
	namespacePowerController = "Alexa.PowerController"
)

// Error classifications returned in ErrorResponse payloads.
const (
	ErrTypeInvalidCredential = "INVALID_AUTHORIZATION_CREDENTIAL"
	ErrTypeInvalidDirective  = "INVALID_DIRECTIVE"
	ErrTypeInvalidValue      = "INVALID_VALUE"
	ErrTypeNoSuchEndpoint    = "NO_SUCH_ENDPOINT"
	ErrTypeUnreachable       = "ENDPOINT_UNREACHABLE"
	ErrTypeInternalError     = "INTERNAL_ERROR"
)

// Request is the top-level envelope Alexa posts to the directive endpoint.
type Request struct {
	Directive Directive `json:"directive"`
}

// Directive carries one routed instruction.
type Directive struct {
	Header   Header          `json:"header"`
	Endpoint *Endpoint       `json:"endpoint,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// Header identifies the directive and correlates the response.
type Header struct {
	Namespace        string `json:"namespace"`
	Name             string `json:"name"`
	PayloadVersion   string `json:"payloadVersion"`
	MessageID        string `json:"messageId"`
	CorrelationToken string `json:"correlationToken,omitempty"`
}

// Scope carries the bearer credential.
type Scope struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// Endpoint addresses a single device in a directive.
type Endpoint struct {
	EndpointID string `json:"endpointId"`
	Scope      *Scope `json:"scope,omitempty"`
}

// scopedPayload is the fragment of a directive payload that may carry
// the credential (Discovery puts the scope in the payload, controller
// directives put it on the endpoint).
type scopedPayload struct {
	Scope *Scope `json:"scope"`
}

// changePayload is the ChangeReport payload fragment the rename
// directive reads.
type changePayload struct {
	Change *struct {
		Properties []changeProperty `json:"properties"`
	} `json:"change"`
}

type changeProperty struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

// Response is the envelope returned for every directive, success or
// failure.
type Response struct {
	Context *Context `json:"context,omitempty"`
	Event   Event    `json:"event"`
}

// Event is the response body routed by namespace/name.
type Event struct {
	Header   Header            `json:"header"`
	Endpoint *ResponseEndpoint `json:"endpoint,omitempty"`
	Payload  any               `json:"payload"`
}

// ResponseEndpoint echoes the addressed device.
type ResponseEndpoint struct {
	EndpointID string `json:"endpointId"`
}

// Context carries reported property values alongside an event.
type Context struct {
	Properties []Property `json:"properties"`
}

// Property is a single reported property sample.
type Property struct {
	Namespace                 string `json:"namespace"`
	Name                      string `json:"name"`
	Value                     any    `json:"value"`
	TimeOfSample              string `json:"timeOfSample"`
	UncertaintyInMilliseconds int    `json:"uncertaintyInMilliseconds"`
}

// ErrorPayload is the payload of an ErrorResponse event.
type ErrorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// DiscoveryEndpoint describes one device in a Discover.Response.
type DiscoveryEndpoint struct {
	EndpointID        string            `json:"endpointId"`
	ManufacturerName  string            `json:"manufacturerName"`
	FriendlyName      string            `json:"friendlyName"`
	Description       string            `json:"description"`
	DisplayCategories []string          `json:"displayCategories"`
	Cookie            map[string]string `json:"cookie"`
	Capabilities      []Capability      `json:"capabilities"`
}

// Capability advertises one supported interface on an endpoint.
type Capability struct {
	Type       string              `json:"type"`
	Interface  string              `json:"interface"`
	Version    string              `json:"version"`
	Properties *CapabilityProperty `json:"properties,omitempty"`
}

// CapabilityProperty describes how an interface's properties behave.
type CapabilityProperty struct {
	Supported           []SupportedProperty `json:"supported"`
	Retrievable         bool                `json:"retrievable"`
	ProactivelyReported bool                `json:"proactivelyReported"`
}

// SupportedProperty names one reportable property.
type SupportedProperty struct {
	Name string `json:"name"`
}

// DiscoveryPayload is the payload of a Discover.Response event.
type DiscoveryPayload struct {
	Endpoints []DiscoveryEndpoint `json:"endpoints"`
}
