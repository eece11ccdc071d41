// Package alexa translates Alexa Smart Home directives into device
// registry and dispatcher calls.
//
// The adapter speaks payload version 3 of the Smart Home protocol and
// implements three directive families:
//
//   - Alexa.Discovery: enumerate the caller's devices as endpoints
//     advertising the PowerController capability.
//   - Alexa.PowerController: TurnOn/TurnOff, routed through the
//     command dispatcher so the MQTT publish happens before the state
//     is persisted.
//   - Alexa ChangeReport: a friendlyName property change, applied as a
//     device rename.
//
// Every failure produces a well-formed ErrorResponse envelope. The
// HTTP layer always answers 200; Alexa reads the error classification
// from the payload, not the status code.
package alexa
