package database

import (
	"path/filepath"
	"testing"

	config "github.com/monorkin/home-network-monitor/internal/config"
	"github.com/monorkin/home-network-monitor/internal/models"
)

func TestOpenMemoryAppliesMigrations(t *testing.T) {
	db, err := Open(config.MEMORY_DB_PATH)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if got := CurrentSchemaVersion(db); got != 1 {
		t.Fatalf("schema version=%d want 1", got)
	}
	for _, table := range []string{"devices", "hosts", "host_changes", "network_events", "scans", "scan_hosts", "vpn_nodes", "settings"} {
		if !db.Migrator().HasTable(table) {
			t.Fatalf("table %s missing after migration", table)
		}
	}

	device := models.Device{PublicID: "d1", Name: "nas", IPAddress: "10.0.0.2"}
	if err := db.Create(&device).Error; err != nil {
		t.Fatalf("insert device: %v", err)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "db", "sandbox.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}

	var count int64
	db.Model(&SchemaMigration{}).Count(&count)
	if count != 1 {
		t.Fatalf("schema_migrations rows=%d want 1", count)
	}
}

func TestRollback(t *testing.T) {
	db, err := Open(config.MEMORY_DB_PATH)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := Rollback(db); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if db.Migrator().HasTable("devices") {
		t.Fatalf("devices table survived rollback")
	}
	if got := CurrentSchemaVersion(db); got != 0 {
		t.Fatalf("schema version=%d after rollback want 0", got)
	}

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate after rollback: %v", err)
	}
	if !db.Migrator().HasTable("devices") {
		t.Fatalf("devices table not recreated")
	}
}

func TestMigrationsNewerThanSorted(t *testing.T) {
	migrations, err := MigrationsNewerThan(0)
	if err != nil {
		t.Fatalf("MigrationsNewerThan: %v", err)
	}
	if len(migrations) == 0 || migrations[0].Version != 1 {
		t.Fatalf("unexpected migrations %+v", migrations)
	}
	for i := 1; i < len(migrations); i++ {
		if migrations[i-1].Version >= migrations[i].Version {
			t.Fatalf("migrations out of order")
		}
	}
}
