package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
//
// Every read and write is scoped to an owning user. Implementations must
// not leak whether an ID exists under a different owner.
type Repository interface {
	// Insert stores a new device.
	// Returns ErrTopicConflict if the topic base or (user, endpoint)
	// pair is already registered.
	Insert(ctx context.Context, device *Device) error

	// GetOwned retrieves a device by ID for the given user.
	// Returns ErrDeviceNotFound if no such device exists for that user.
	GetOwned(ctx context.Context, userID, deviceID string) (*Device, error)

	// GetByEndpoint retrieves a device by its endpoint ID for the given user.
	// Returns ErrDeviceNotFound if no such device exists for that user.
	GetByEndpoint(ctx context.Context, userID, endpointID string) (*Device, error)

	// ListByUser retrieves all devices belonging to a user, oldest first.
	ListByUser(ctx context.Context, userID string) ([]Device, error)

	// UpdatePowerState records a device's power state.
	// Returns ErrDeviceNotFound if no such device exists for that user.
	UpdatePowerState(ctx context.Context, userID, deviceID string, state PowerState) error

	// UpdateName renames a device.
	// Returns ErrDeviceNotFound if no such device exists for that user.
	UpdateName(ctx context.Context, userID, deviceID, name string) error
}

// deviceColumns is the SELECT column list shared by all queries.
const deviceColumns = `id, user_id, endpoint_id, name, description, type,
	integration, topic_base, channels, power_state, created_at, updated_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Insert stores a new device.
func (r *SQLiteRepository) Insert(ctx context.Context, device *Device) error {
	now := time.Now().UTC()
	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	device.UpdatedAt = now

	query := `
		INSERT INTO devices (
			id, user_id, endpoint_id, name, description, type,
			integration, topic_base, channels, power_state, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		device.ID,
		device.UserID,
		device.EndpointID,
		device.Name,
		device.Description,
		string(device.Type),
		string(device.Integration),
		device.TopicBase,
		device.Channels,
		string(device.PowerState),
		device.CreatedAt.Format(time.RFC3339),
		device.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrTopicConflict
		}
		return fmt.Errorf("inserting device: %w", err)
	}

	return nil
}

// GetOwned retrieves a device by ID for the given user.
func (r *SQLiteRepository) GetOwned(ctx context.Context, userID, deviceID string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE user_id = ? AND id = ?`

	row := r.db.QueryRowContext(ctx, query, userID, deviceID)
	device, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return device, nil
}

// GetByEndpoint retrieves a device by endpoint ID for the given user.
func (r *SQLiteRepository) GetByEndpoint(ctx context.Context, userID, endpointID string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE user_id = ? AND endpoint_id = ?`

	row := r.db.QueryRowContext(ctx, query, userID, endpointID)
	device, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by endpoint: %w", err)
	}
	return device, nil
}

// ListByUser retrieves all devices belonging to a user, oldest first.
func (r *SQLiteRepository) ListByUser(ctx context.Context, userID string) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices
		WHERE user_id = ?
		ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}

	return devices, nil
}

// UpdatePowerState records a device's power state.
func (r *SQLiteRepository) UpdatePowerState(ctx context.Context, userID, deviceID string, state PowerState) error {
	query := `
		UPDATE devices
		SET power_state = ?, updated_at = ?
		WHERE user_id = ? AND id = ?`

	return r.execOwned(ctx, query,
		string(state),
		time.Now().UTC().Format(time.RFC3339),
		userID,
		deviceID,
	)
}

// UpdateName renames a device.
func (r *SQLiteRepository) UpdateName(ctx context.Context, userID, deviceID, name string) error {
	query := `
		UPDATE devices
		SET name = ?, updated_at = ?
		WHERE user_id = ? AND id = ?`

	return r.execOwned(ctx, query,
		name,
		time.Now().UTC().Format(time.RFC3339),
		userID,
		deviceID,
	)
}

// execOwned runs an owner-scoped UPDATE and maps zero affected rows to
// ErrDeviceNotFound.
func (r *SQLiteRepository) execOwned(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDevice scans a row or rows result into a Device.
func scanDevice(scanner rowScanner) (*Device, error) {
	var d Device
	var deviceType, integration, powerState string
	var createdAt, updatedAt string

	err := scanner.Scan(
		&d.ID,
		&d.UserID,
		&d.EndpointID,
		&d.Name,
		&d.Description,
		&deviceType,
		&integration,
		&d.TopicBase,
		&d.Channels,
		&powerState,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Type = DeviceType(deviceType)
	d.Integration = Integration(integration)
	d.PowerState = PowerState(powerState)

	var parseErr error
	d.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	d.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	return &d, nil
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
