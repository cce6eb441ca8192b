package db

import (
	"path/filepath"
	"testing"
)

func TestMigrateIsIdempotent(t *testing.T) {
	database, err := Open(filepath.Join(t.TempDir(), "local.sqlite3"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer database.Close()

	if err := Migrate(database); err != nil {
		t.Fatalf("first Migrate: %v", err)
	}
	if err := Migrate(database); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}

	version, dirty, err := Version(database)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if version != 2 || dirty {
		t.Errorf("expected clean version 2, got %d dirty=%v", version, dirty)
	}
}

func TestAvailableQuantityConstraint(t *testing.T) {
	database := NewTestDB(t)

	_, err := database.Exec(
		`INSERT INTO items (id, name, total_quantity, available_quantity) VALUES ('a', 'Drill', 2, 3)`,
	)
	if err == nil {
		t.Error("expected constraint failure for available > total")
	}

	_, err = database.Exec(
		`INSERT INTO items (id, name, total_quantity, available_quantity) VALUES ('b', 'Drill', 2, -1)`,
	)
	if err == nil {
		t.Error("expected constraint failure for negative available")
	}
}
