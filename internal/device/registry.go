package device

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/homelinklabs/homelink-core/internal/topic"
)

// Logger defines the logging interface used by this package.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry provides owner-scoped device management on top of a
// Repository. It owns registration validation and topic base
// derivation; everything stored through it satisfies the topic grammar.
//
// All public methods are safe for concurrent use.
type Registry struct {
	repo   Repository
	logger Logger
}

// NewRegistry creates a new device registry backed by the given repository.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Create registers a new device for a user.
//
// Board devices always receive the derived default topic base; any
// caller-supplied topic is ignored for them. Custom-topic devices must
// supply a topic, which is normalized before storage. Both the topic
// base and the (user, endpoint) pair must be unused, otherwise
// ErrTopicConflict is returned.
func (r *Registry) Create(ctx context.Context, userID string, spec CreateSpec) (*Device, error) {
	if err := validateSpec(&spec); err != nil {
		return nil, err
	}

	base, err := resolveTopicBase(userID, spec)
	if err != nil {
		return nil, err
	}

	device := &Device{
		ID:          uuid.NewString(),
		UserID:      userID,
		EndpointID:  spec.EndpointID,
		Name:        spec.Name,
		Description: spec.Description,
		Type:        spec.Type,
		Integration: spec.Integration,
		TopicBase:   base,
		Channels:    spec.Channels,
		PowerState:  PowerOff,
	}

	if err := r.repo.Insert(ctx, device); err != nil {
		return nil, err
	}

	r.logger.Info("device registered",
		"device_id", device.ID,
		"user_id", userID,
		"endpoint_id", device.EndpointID,
		"integration", device.Integration,
		"topic_base", device.TopicBase,
	)

	return device, nil
}

// FindOwned retrieves a device by ID for the given user.
func (r *Registry) FindOwned(ctx context.Context, userID, deviceID string) (*Device, error) {
	return r.repo.GetOwned(ctx, userID, deviceID)
}

// FindByEndpoint retrieves a device by endpoint ID for the given user.
func (r *Registry) FindByEndpoint(ctx context.Context, userID, endpointID string) (*Device, error) {
	return r.repo.GetByEndpoint(ctx, userID, endpointID)
}

// List retrieves all of a user's devices, oldest first.
func (r *Registry) List(ctx context.Context, userID string) ([]Device, error) {
	return r.repo.ListByUser(ctx, userID)
}

// Rename updates a device's display name and returns the updated record.
func (r *Registry) Rename(ctx context.Context, userID, deviceID, name string) (*Device, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLength {
		return nil, ErrInvalidName
	}

	if err := r.repo.UpdateName(ctx, userID, deviceID, name); err != nil {
		return nil, err
	}

	return r.repo.GetOwned(ctx, userID, deviceID)
}

// SetPowerState records a device's power state without touching the
// transport. The dispatcher calls this after a broker-acknowledged
// publish; the reconciler calls it for observed state reports.
func (r *Registry) SetPowerState(ctx context.Context, userID, deviceID string, state PowerState) error {
	return r.repo.UpdatePowerState(ctx, userID, deviceID, state)
}

// validateSpec checks a CreateSpec and applies defaults in place.
func validateSpec(spec *CreateSpec) error {
	spec.EndpointID = strings.TrimSpace(spec.EndpointID)
	if spec.EndpointID == "" || len(spec.EndpointID) > maxNameLength {
		return ErrInvalidEndpointID
	}

	spec.Name = strings.TrimSpace(spec.Name)
	if spec.Name == "" || len(spec.Name) > maxNameLength {
		return ErrInvalidName
	}

	if _, err := ParseDeviceType(string(spec.Type)); err != nil {
		return err
	}
	if _, err := ParseIntegration(string(spec.Integration)); err != nil {
		return err
	}

	if spec.Channels == 0 {
		spec.Channels = MinChannels
	}
	if spec.Channels < MinChannels || spec.Channels > MaxChannels {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidChannels, spec.Channels, MinChannels, MaxChannels)
	}

	return nil
}

// resolveTopicBase derives the stored topic base for a registration.
func resolveTopicBase(userID string, spec CreateSpec) (string, error) {
	switch spec.Integration {
	case IntegrationBoard:
		return topic.DeriveDefault(userID, spec.EndpointID)
	case IntegrationCustomTopic:
		return topic.Normalize(spec.Topic)
	default:
		return "", ErrInvalidIntegration
	}
}
