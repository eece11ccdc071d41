package topic

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Channel suffixes appended to a device's topic base.
const (
	suffixCommand   = "command"
	suffixState     = "state"
	suffixTelemetry = "telemetry"
)

// minSegments is the minimum number of segments in a valid topic base.
// The default scheme (users/{user}/devices/{endpoint}) sets the floor.
const minSegments = 4

// ErrInvalidTopic is returned when a topic base fails validation.
var ErrInvalidTopic = errors.New("topic: invalid")

// segmentPattern matches a single valid topic segment.
var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]+$`)

// Normalize validates and canonicalises a topic base.
//
// Leading and trailing whitespace is trimmed, and a single trailing
// channel suffix (/command, /state, or /telemetry) is stripped so that
// callers may paste a full channel topic where a base is expected.
// After stripping, the base must have at least four segments, contain
// no MQTT wildcards (+ or #) and no empty segments, and every segment
// must match [A-Za-z0-9._:-]+.
//
// Normalize is idempotent: normalizing an already-normal base returns
// it unchanged.
func Normalize(raw string) (string, error) {
	base := strings.TrimSpace(raw)

	for _, suffix := range []string{suffixState, suffixTelemetry, suffixCommand} {
		if rest, ok := strings.CutSuffix(base, "/"+suffix); ok {
			base = rest
			break
		}
	}

	if base == "" {
		return "", fmt.Errorf("%w: empty topic", ErrInvalidTopic)
	}
	if strings.ContainsAny(base, "+#") {
		return "", fmt.Errorf("%w: wildcards not allowed in %q", ErrInvalidTopic, base)
	}

	segments := strings.Split(base, "/")
	if len(segments) < minSegments {
		return "", fmt.Errorf("%w: need at least %d segments, got %d", ErrInvalidTopic, minSegments, len(segments))
	}
	for _, seg := range segments {
		if seg == "" {
			return "", fmt.Errorf("%w: empty segment in %q", ErrInvalidTopic, base)
		}
		if !segmentPattern.MatchString(seg) {
			return "", fmt.Errorf("%w: bad segment %q", ErrInvalidTopic, seg)
		}
	}

	return strings.Join(segments, "/"), nil
}

// DeriveDefault builds the default topic base for a board-managed
// device: users/{userID}/devices/{endpointID}. The result passes
// through Normalize, so an endpoint ID containing slashes, wildcards,
// or other invalid characters is rejected rather than silently
// producing a malformed base.
func DeriveDefault(userID, endpointID string) (string, error) {
	return Normalize(fmt.Sprintf("users/%s/devices/%s", userID, endpointID))
}

// Command returns the command channel topic for a base.
func Command(base string) string {
	return base + "/" + suffixCommand
}

// State returns the state channel topic for a base.
func State(base string) string {
	return base + "/" + suffixState
}

// Telemetry returns the telemetry channel topic for a base.
func Telemetry(base string) string {
	return base + "/" + suffixTelemetry
}

// StateFilter returns the wildcard subscription filter matching every
// default-scheme state topic.
//
// Pattern: users/+/devices/+/state
func StateFilter() string {
	return "users/+/devices/+/" + suffixState
}

// TelemetryFilter returns the wildcard subscription filter matching
// every default-scheme telemetry topic.
//
// Pattern: users/+/devices/+/telemetry
func TelemetryFilter() string {
	return "users/+/devices/+/" + suffixTelemetry
}

// ParseStateTopic extracts the user and endpoint IDs from a
// default-scheme state topic (users/{user}/devices/{endpoint}/state).
// Topics of any other shape, including custom-topic bases, return
// ok=false. A non-match is an expected outcome on a wildcard
// subscription, not an error.
func ParseStateTopic(t string) (userID, endpointID string, ok bool) {
	return parseChannelTopic(t, suffixState)
}

// ParseTelemetryTopic extracts the user and endpoint IDs from a
// default-scheme telemetry topic. Semantics mirror ParseStateTopic.
func ParseTelemetryTopic(t string) (userID, endpointID string, ok bool) {
	return parseChannelTopic(t, suffixTelemetry)
}

func parseChannelTopic(t, suffix string) (string, string, bool) {
	parts := strings.Split(t, "/")
	if len(parts) != 5 {
		return "", "", false
	}
	if parts[0] != "users" || parts[2] != "devices" || parts[4] != suffix {
		return "", "", false
	}
	if parts[1] == "" || parts[3] == "" {
		return "", "", false
	}
	return parts[1], parts[3], true
}
