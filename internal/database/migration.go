package database

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"

	"gorm.io/gorm"
)

//go:embed migrations/*/up.sql migrations/*/down.sql
var migrationsFS embed.FS

// Migration directories are named <version>_<description>.
var migrationDirPattern = regexp.MustCompile(`^(\d+)_`)

type SchemaVersion uint64

// SchemaMigration is one applied migration.
type SchemaMigration struct {
	Version SchemaVersion `gorm:"primaryKey"`
}

// CurrentSchemaVersion is the highest applied version, 0 for a fresh database.
func CurrentSchemaVersion(db *gorm.DB) SchemaVersion {
	var applied SchemaMigration
	db.Model(&SchemaMigration{}).Order("version desc").Limit(1).Scan(&applied)
	return applied.Version
}

type Migration struct {
	Version SchemaVersion
	Name    string
}

func (migration Migration) sql(direction string) (string, error) {
	file := path.Join("migrations", migration.Name, direction+".sql")
	contents, err := fs.ReadFile(migrationsFS, file)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", file, err)
	}
	return string(contents), nil
}

func (migration Migration) run(db *gorm.DB, direction string) error {
	statements, err := migration.sql(direction)
	if err != nil {
		return err
	}
	return db.Exec(statements).Error
}

// Migrate applies every embedded migration newer than the current schema version,
// each in its own transaction.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&SchemaMigration{}); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	pending, err := MigrationsNewerThan(CurrentSchemaVersion(db))
	if err != nil {
		return err
	}

	for _, migration := range pending {
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := migration.run(tx, "up"); err != nil {
				return err
			}
			return tx.Create(&SchemaMigration{Version: migration.Version}).Error
		})
		if err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Name, err)
		}
	}

	return nil
}

// Rollback reverts the most recently applied migration. With nothing applied it does
// nothing.
func Rollback(db *gorm.DB) error {
	current := CurrentSchemaVersion(db)
	if current == 0 {
		return nil
	}

	migrations, err := loadMigrations()
	if err != nil {
		return err
	}
	index := sort.Search(len(migrations), func(i int) bool {
		return migrations[i].Version >= current
	})
	if index == len(migrations) || migrations[index].Version != current {
		return fmt.Errorf("no migration found for schema version %d", current)
	}
	migration := migrations[index]

	return db.Transaction(func(tx *gorm.DB) error {
		if err := migration.run(tx, "down"); err != nil {
			return fmt.Errorf("failed to revert migration %s: %w", migration.Name, err)
		}
		return tx.Delete(&SchemaMigration{Version: current}).Error
	})
}

// MigrationsNewerThan lists embedded migrations above version in version order.
func MigrationsNewerThan(version SchemaVersion) ([]Migration, error) {
	migrations, err := loadMigrations()
	if err != nil {
		return nil, err
	}

	var newer []Migration
	for _, migration := range migrations {
		if migration.Version > version {
			newer = append(newer, migration)
		}
	}
	return newer, nil
}

func loadMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, err
	}

	migrations := make([]Migration, 0, len(entries))
	seen := make(map[SchemaVersion]string, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		match := migrationDirPattern.FindStringSubmatch(entry.Name())
		if match == nil {
			return nil, fmt.Errorf("invalid migration directory name %q, expected <version>_<description>", entry.Name())
		}
		number, err := strconv.ParseUint(match[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid migration version in %q: %w", entry.Name(), err)
		}

		version := SchemaVersion(number)
		if other, ok := seen[version]; ok {
			return nil, fmt.Errorf("migrations %q and %q share version %d", other, entry.Name(), version)
		}
		seen[version] = entry.Name()

		migrations = append(migrations, Migration{Version: version, Name: entry.Name()})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}
