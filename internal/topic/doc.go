// Package topic implements the MQTT addressing scheme shared by the
// dispatcher, reconciler, and telemetry sink.
//
// Every device is anchored by a topic base such as:
//
//	users/42/devices/lamp-1
//
// Channel topics hang off the base with fixed suffixes:
//
//	users/42/devices/lamp-1/command    commands to the device
//	users/42/devices/lamp-1/state      state reports from the device
//	users/42/devices/lamp-1/telemetry  sensor readings from the device
//
// Normalize is the single entry point for validating topic bases. Both
// caller-supplied custom topics and internally derived defaults pass
// through it, so every base stored in the registry satisfies the same
// grammar: at least four non-empty segments, no MQTT wildcards, each
// segment limited to [A-Za-z0-9._:-].
//
// All functions are pure; the package holds no state.
package topic
