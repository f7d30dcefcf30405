package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const migrationsTable = "complaint_api_schema_migrations"

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate applies every pending versioned migration embedded in the binary.
func Migrate(db *sqlx.DB, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := postgres.WithInstance(db.DB, &postgres.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read schema version: %w", err)
	}
	logger.Info("database schema ready", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

// MigrationVersions lists the versions of the embedded up migrations in order.
func MigrationVersions() ([]uint, error) {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, err
	}
	defer source.Close()

	version, err := source.First()
	if err != nil {
		return nil, err
	}
	versions := []uint{version}
	for {
		next, err := source.Next(version)
		if err != nil {
			break
		}
		versions = append(versions, next)
		version = next
	}
	return versions, nil
}
