package device

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the devices table.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// Create devices table matching the schema
	schema := `
		CREATE TABLE devices (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			endpoint_id TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL,
			integration TEXT NOT NULL,
			topic_base TEXT NOT NULL UNIQUE,
			channels INTEGER NOT NULL DEFAULT 1,
			power_state TEXT NOT NULL DEFAULT 'OFF',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE (user_id, endpoint_id)
		);
		CREATE INDEX idx_devices_user ON devices(user_id);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// testDevice creates a device for testing.
func testDevice(id, userID, endpointID string) *Device {
	return &Device{
		ID:          id,
		UserID:      userID,
		EndpointID:  endpointID,
		Name:        "Test Lamp",
		Type:        DeviceTypeLight,
		Integration: IntegrationBoard,
		TopicBase:   "users/" + userID + "/devices/" + endpointID,
		Channels:    1,
		PowerState:  PowerOff,
	}
}

func TestSQLiteRepository_Insert(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	t.Run("inserts device successfully", func(t *testing.T) {
		dev := testDevice("dev-001", "user-1", "lamp-1")

		if err := repo.Insert(ctx, dev); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}

		got, err := repo.GetOwned(ctx, "user-1", "dev-001")
		if err != nil {
			t.Fatalf("GetOwned() error = %v", err)
		}
		if got.Name != "Test Lamp" {
			t.Errorf("Name = %q, want %q", got.Name, "Test Lamp")
		}
		if got.TopicBase != "users/user-1/devices/lamp-1" {
			t.Errorf("TopicBase = %q", got.TopicBase)
		}
		if got.PowerState != PowerOff {
			t.Errorf("PowerState = %q, want OFF", got.PowerState)
		}
		if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
			t.Error("timestamps not set")
		}
	})

	t.Run("returns ErrTopicConflict for duplicate topic base", func(t *testing.T) {
		first := testDevice("dev-a", "user-2", "bulb-1")
		if err := repo.Insert(ctx, first); err != nil {
			t.Fatalf("first Insert() error = %v", err)
		}

		dup := testDevice("dev-b", "user-2", "bulb-2")
		dup.TopicBase = first.TopicBase

		if err := repo.Insert(ctx, dup); !errors.Is(err, ErrTopicConflict) {
			t.Errorf("Insert() error = %v, want ErrTopicConflict", err)
		}
	})

	t.Run("returns ErrTopicConflict for duplicate endpoint per user", func(t *testing.T) {
		first := testDevice("dev-c", "user-3", "tv-1")
		if err := repo.Insert(ctx, first); err != nil {
			t.Fatalf("first Insert() error = %v", err)
		}

		dup := testDevice("dev-d", "user-3", "tv-1")
		dup.TopicBase = "home/floor1/lounge/tv"

		if err := repo.Insert(ctx, dup); !errors.Is(err, ErrTopicConflict) {
			t.Errorf("Insert() error = %v, want ErrTopicConflict", err)
		}
	})

	t.Run("same endpoint under different users is allowed with distinct bases", func(t *testing.T) {
		a := testDevice("dev-e", "user-4", "lamp-1")
		b := testDevice("dev-f", "user-5", "lamp-1")

		if err := repo.Insert(ctx, a); err != nil {
			t.Fatalf("Insert(a) error = %v", err)
		}
		if err := repo.Insert(ctx, b); err != nil {
			t.Fatalf("Insert(b) error = %v", err)
		}
	})
}

func TestSQLiteRepository_OwnerScoping(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	dev := testDevice("dev-owned", "alice", "lamp-1")
	if err := repo.Insert(ctx, dev); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	t.Run("foreign device is indistinguishable from missing", func(t *testing.T) {
		if _, err := repo.GetOwned(ctx, "bob", "dev-owned"); !errors.Is(err, ErrDeviceNotFound) {
			t.Errorf("GetOwned() error = %v, want ErrDeviceNotFound", err)
		}
		if _, err := repo.GetByEndpoint(ctx, "bob", "lamp-1"); !errors.Is(err, ErrDeviceNotFound) {
			t.Errorf("GetByEndpoint() error = %v, want ErrDeviceNotFound", err)
		}
		if err := repo.UpdatePowerState(ctx, "bob", "dev-owned", PowerOn); !errors.Is(err, ErrDeviceNotFound) {
			t.Errorf("UpdatePowerState() error = %v, want ErrDeviceNotFound", err)
		}
		if err := repo.UpdateName(ctx, "bob", "dev-owned", "Hijacked"); !errors.Is(err, ErrDeviceNotFound) {
			t.Errorf("UpdateName() error = %v, want ErrDeviceNotFound", err)
		}
	})

	t.Run("owner operations succeed", func(t *testing.T) {
		if err := repo.UpdatePowerState(ctx, "alice", "dev-owned", PowerOn); err != nil {
			t.Fatalf("UpdatePowerState() error = %v", err)
		}
		if err := repo.UpdateName(ctx, "alice", "dev-owned", "Reading Lamp"); err != nil {
			t.Fatalf("UpdateName() error = %v", err)
		}

		got, err := repo.GetOwned(ctx, "alice", "dev-owned")
		if err != nil {
			t.Fatalf("GetOwned() error = %v", err)
		}
		if got.PowerState != PowerOn {
			t.Errorf("PowerState = %q, want ON", got.PowerState)
		}
		if got.Name != "Reading Lamp" {
			t.Errorf("Name = %q, want %q", got.Name, "Reading Lamp")
		}
	})
}

func TestSQLiteRepository_ListByUser(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	// Insert out of registration order with explicit timestamps to pin
	// the expected ordering.
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"dev-2", "dev-1", "dev-3"} {
		dev := testDevice(id, "carol", "ep-"+id)
		offsets := map[string]time.Duration{"dev-1": 0, "dev-2": time.Minute, "dev-3": 2 * time.Minute}
		dev.CreatedAt = base.Add(offsets[id])
		if err := repo.Insert(ctx, dev); err != nil {
			t.Fatalf("Insert(%d) error = %v", i, err)
		}
	}
	other := testDevice("dev-other", "dave", "ep-1")
	if err := repo.Insert(ctx, other); err != nil {
		t.Fatalf("Insert(other) error = %v", err)
	}

	devices, err := repo.ListByUser(ctx, "carol")
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}

	if len(devices) != 3 {
		t.Fatalf("ListByUser() returned %d devices, want 3", len(devices))
	}
	for i, want := range []string{"dev-1", "dev-2", "dev-3"} {
		if devices[i].ID != want {
			t.Errorf("devices[%d].ID = %q, want %q", i, devices[i].ID, want)
		}
	}

	empty, err := repo.ListByUser(ctx, "nobody")
	if err != nil {
		t.Fatalf("ListByUser(nobody) error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("ListByUser(nobody) returned %d devices, want 0", len(empty))
	}
}
