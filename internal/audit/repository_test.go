package audit

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
	CREATE TABLE audit_entries (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		action     TEXT NOT NULL,
		target_id  TEXT,
		source     TEXT NOT NULL,
		details    TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX idx_audit_entries_user ON audit_entries(user_id, created_at);`

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("failed to create test schema: %v", err)
	}
	return db
}

func insertEntry(t *testing.T, repo *SQLiteRepository, entry Entry) Entry {
	t.Helper()
	if err := repo.Insert(context.Background(), &entry); err != nil {
		t.Fatalf("inserting entry: %v", err)
	}
	return entry
}

func TestInsert(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	t.Run("generates id and timestamp", func(t *testing.T) {
		entry := insertEntry(t, repo, Entry{
			UserID: "u1",
			Action: ActionLogin,
			Source: SourceAPI,
		})
		if entry.ID == "" {
			t.Error("entry ID was not generated")
		}
		if entry.CreatedAt.IsZero() {
			t.Error("entry timestamp was not generated")
		}
	})

	t.Run("requires a user", func(t *testing.T) {
		err := repo.Insert(context.Background(), &Entry{Action: ActionLogin, Source: SourceAPI})
		if err == nil {
			t.Fatal("expected error for entry without user")
		}
	})

	t.Run("round-trips details", func(t *testing.T) {
		insertEntry(t, repo, Entry{
			UserID:   "u2",
			Action:   ActionPowerCommand,
			TargetID: "dev-1",
			Source:   SourceAlexa,
			Details:  map[string]any{"state": "ON"},
		})

		result, err := repo.List(context.Background(), "u2", Filter{})
		if err != nil {
			t.Fatalf("listing entries: %v", err)
		}
		if len(result.Entries) != 1 {
			t.Fatalf("listed %d entries, want 1", len(result.Entries))
		}
		got := result.Entries[0]
		if got.TargetID != "dev-1" || got.Details["state"] != "ON" {
			t.Errorf("entry = %+v", got)
		}
	})
}

func TestList(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	base := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		insertEntry(t, repo, Entry{
			UserID:    "u1",
			Action:    ActionPowerCommand,
			TargetID:  "dev-1",
			Source:    SourceAPI,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	insertEntry(t, repo, Entry{
		UserID:    "u1",
		Action:    ActionDeviceCreate,
		TargetID:  "dev-2",
		Source:    SourceAPI,
		CreatedAt: base.Add(time.Hour),
	})
	insertEntry(t, repo, Entry{UserID: "u2", Action: ActionLogin, Source: SourceAPI})

	t.Run("scopes to the account", func(t *testing.T) {
		result, err := repo.List(context.Background(), "u1", Filter{})
		if err != nil {
			t.Fatalf("listing entries: %v", err)
		}
		if result.Total != 4 {
			t.Errorf("total = %d, want 4", result.Total)
		}
		for _, entry := range result.Entries {
			if entry.UserID != "u1" {
				t.Errorf("entry %s belongs to %s", entry.ID, entry.UserID)
			}
		}
	})

	t.Run("most recent first", func(t *testing.T) {
		result, err := repo.List(context.Background(), "u1", Filter{})
		if err != nil {
			t.Fatalf("listing entries: %v", err)
		}
		if result.Entries[0].Action != ActionDeviceCreate {
			t.Errorf("first entry = %s, want newest", result.Entries[0].Action)
		}
	})

	t.Run("filters by action", func(t *testing.T) {
		result, err := repo.List(context.Background(), "u1", Filter{Action: ActionPowerCommand})
		if err != nil {
			t.Fatalf("listing entries: %v", err)
		}
		if result.Total != 3 {
			t.Errorf("total = %d, want 3", result.Total)
		}
	})

	t.Run("filters by target", func(t *testing.T) {
		result, err := repo.List(context.Background(), "u1", Filter{TargetID: "dev-2"})
		if err != nil {
			t.Fatalf("listing entries: %v", err)
		}
		if result.Total != 1 {
			t.Errorf("total = %d, want 1", result.Total)
		}
	})

	t.Run("paginates", func(t *testing.T) {
		result, err := repo.List(context.Background(), "u1", Filter{Limit: 2, Offset: 2})
		if err != nil {
			t.Fatalf("listing entries: %v", err)
		}
		if result.Total != 4 || len(result.Entries) != 2 {
			t.Errorf("total = %d, page = %d, want 4 and 2", result.Total, len(result.Entries))
		}
	})

	t.Run("empty trail is an empty slice", func(t *testing.T) {
		result, err := repo.List(context.Background(), "nobody", Filter{})
		if err != nil {
			t.Fatalf("listing entries: %v", err)
		}
		if result.Entries == nil || len(result.Entries) != 0 {
			t.Errorf("entries = %v, want empty slice", result.Entries)
		}
	})
}

type failingRepository struct{}

func (failingRepository) Insert(context.Context, *Entry) error {
	return errors.New("disk full")
}

func (failingRepository) List(context.Context, string, Filter) (*ListResult, error) {
	return nil, errors.New("disk full")
}

type warnRecorder struct {
	warnings int
}

func (w *warnRecorder) Warn(string, ...any) { w.warnings++ }

func TestRecorderNeverFails(t *testing.T) {
	logger := &warnRecorder{}
	rec := NewRecorder(failingRepository{})
	rec.SetLogger(logger)

	rec.Record(context.Background(), Entry{UserID: "u1", Action: ActionLogin, Source: SourceAPI})

	if logger.warnings != 1 {
		t.Errorf("warnings = %d, want 1", logger.warnings)
	}
}
