package migrate

import (
	"database/sql"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// FSProvider loads migrations from an fs.FS, typically an embed.FS carrying
// the schema inside the binary so callers never depend on an on-disk
// migrations directory.
type FSProvider struct {
	fsys           fs.FS
	migrationTable string
	dbDriver       string // "sqlite" or "postgres"
}

// NewFSProvider creates a migration provider backed by the given filesystem
func NewFSProvider(fsys fs.FS, migrationTable string, dbDriver string) *FSProvider {
	if migrationTable == "" {
		migrationTable = "schema_migrations"
	}
	if dbDriver == "" {
		dbDriver = "sqlite"
	}
	return &FSProvider{
		fsys:           fsys,
		migrationTable: migrationTable,
		dbDriver:       dbDriver,
	}
}

// GetMigrations loads all migrations from the filesystem
func (fp *FSProvider) GetMigrations() ([]Migration, error) {
	return parseMigrations(fp.fsys)
}

// CreateMigrationTable creates the migration tracking table
func (fp *FSProvider) CreateMigrationTable(db *sql.DB) error {
	return createMigrationTable(db, fp.migrationTable, fp.dbDriver)
}

// GetCurrentVersion returns the highest applied migration version
func (fp *FSProvider) GetCurrentVersion(db *sql.DB) (int, error) {
	return currentVersion(db, fp.migrationTable)
}

// SetVersion sets the migration version
func (fp *FSProvider) SetVersion(db DB, version int) error {
	return setVersion(db, fp.migrationTable, fp.dbDriver, version)
}

// Migration files are named 001_migration_name.up.sql / 001_migration_name.down.sql
var (
	upMigrationRegex   = regexp.MustCompile(`^(\d+)_(.+)\.up\.sql$`)
	downMigrationRegex = regexp.MustCompile(`^(\d+)_(.+)\.down\.sql$`)
)

// parseMigrations walks a filesystem and pairs up/down SQL files by version
func parseMigrations(fsys fs.FS) ([]Migration, error) {
	migrationFiles := make(map[int]*Migration)

	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		filename := d.Name()

		if matches := upMigrationRegex.FindStringSubmatch(filename); matches != nil {
			version, err := strconv.Atoi(matches[1])
			if err != nil {
				return fmt.Errorf("invalid version number in file %s: %w", filename, err)
			}

			content, err := fs.ReadFile(fsys, path)
			if err != nil {
				return fmt.Errorf("failed to read migration file %s: %w", path, err)
			}

			if migrationFiles[version] == nil {
				migrationFiles[version] = &Migration{
					Version: version,
					Name:    strings.ReplaceAll(matches[2], "_", " "),
				}
			}
			migrationFiles[version].Up = string(content)
		}

		if matches := downMigrationRegex.FindStringSubmatch(filename); matches != nil {
			version, err := strconv.Atoi(matches[1])
			if err != nil {
				return fmt.Errorf("invalid version number in file %s: %w", filename, err)
			}

			content, err := fs.ReadFile(fsys, path)
			if err != nil {
				return fmt.Errorf("failed to read migration file %s: %w", path, err)
			}

			if migrationFiles[version] == nil {
				migrationFiles[version] = &Migration{
					Version: version,
					Name:    strings.ReplaceAll(matches[2], "_", " "),
				}
			}
			migrationFiles[version].Down = string(content)
		}

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	var migrations []Migration
	for _, migration := range migrationFiles {
		migrations = append(migrations, *migration)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// createMigrationTable creates the migration tracking table for the driver
func createMigrationTable(db *sql.DB, table, driver string) error {
	var query string

	if driver == "postgres" {
		query = fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				version INTEGER PRIMARY KEY,
				applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			)
		`, table)
	} else {
		// SQLite
		query = fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				version INTEGER PRIMARY KEY,
				applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)
		`, table)
	}

	_, err := db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}

	return nil
}

// currentVersion returns the highest applied migration version
func currentVersion(db *sql.DB, table string) (int, error) {
	query := fmt.Sprintf("SELECT COALESCE(MAX(version), 0) FROM %s", table)

	var version int
	err := db.QueryRow(query).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}

	return version, nil
}

// setVersion records the migration version
func setVersion(db DB, table, driver string, version int) error {
	var query string
	var err error

	if version == 0 {
		// Delete all version records when rolling back to 0
		query = fmt.Sprintf("DELETE FROM %s", table)
		_, err = db.Exec(query)
	} else {
		if driver == "postgres" {
			// PostgreSQL uses ON CONFLICT for upsert
			query = fmt.Sprintf(`
				INSERT INTO %s (version, applied_at)
				VALUES ($1, CURRENT_TIMESTAMP)
				ON CONFLICT (version) DO UPDATE SET applied_at = CURRENT_TIMESTAMP
			`, table)
		} else {
			// SQLite uses INSERT OR REPLACE
			query = fmt.Sprintf(`
				INSERT OR REPLACE INTO %s (version, applied_at)
				VALUES (?, CURRENT_TIMESTAMP)
			`, table)
		}
		_, err = db.Exec(query, version)
	}

	if err != nil {
		return fmt.Errorf("failed to set version: %w", err)
	}

	return nil
}
