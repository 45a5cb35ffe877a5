package migrate

import (
	"database/sql"
	"os"
)

// FileProvider loads migrations from a directory on disk
type FileProvider struct {
	dir            string
	migrationTable string
	dbDriver       string // "sqlite" or "postgres"
}

// NewFileProvider creates a new file-based migration provider
func NewFileProvider(dir string, migrationTable string) *FileProvider {
	return NewFileProviderWithDriver(dir, migrationTable, "sqlite")
}

// NewFileProviderWithDriver creates a new file-based migration provider with specific driver
func NewFileProviderWithDriver(dir string, migrationTable string, dbDriver string) *FileProvider {
	if migrationTable == "" {
		migrationTable = "schema_migrations"
	}
	return &FileProvider{
		dir:            dir,
		migrationTable: migrationTable,
		dbDriver:       dbDriver,
	}
}

// GetMigrations loads all migrations from the filesystem
func (fp *FileProvider) GetMigrations() ([]Migration, error) {
	return parseMigrations(os.DirFS(fp.dir))
}

// CreateMigrationTable creates the migration tracking table
func (fp *FileProvider) CreateMigrationTable(db *sql.DB) error {
	return createMigrationTable(db, fp.migrationTable, fp.dbDriver)
}

// GetCurrentVersion returns the highest applied migration version
func (fp *FileProvider) GetCurrentVersion(db *sql.DB) (int, error) {
	return currentVersion(db, fp.migrationTable)
}

// SetVersion sets the migration version
func (fp *FileProvider) SetVersion(db DB, version int) error {
	return setVersion(db, fp.migrationTable, fp.dbDriver, version)
}
