package postgres

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
)

func openMigrator(databaseURL, migrationsPath string) (*migrate.Migrate, error) {
	m, err := migrate.New("file://"+migrationsPath, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open migrations at %q: %w", migrationsPath, err)
	}
	return m, nil
}

// closeMigrator releases the source and database handles of m.
func closeMigrator(m *migrate.Migrate, logger zerolog.Logger) {
	srcErr, dbErr := m.Close()
	if err := errors.Join(srcErr, dbErr); err != nil {
		logger.Warn().Err(err).Msg("failed to close migrator")
	}
}

// schemaVersion logs the version the ledger schema is at after a migration run.
func schemaVersion(m *migrate.Migrate, logger zerolog.Logger, msg string) {
	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		logger.Info().Msg(msg + " (empty schema)")
	case err != nil:
		logger.Warn().Err(err).Msg(msg)
	default:
		logger.Info().Uint("version", version).Bool("dirty", dirty).Msg(msg)
	}
}

// RunMigrations brings the ledger schema up to the newest migration.
func RunMigrations(databaseURL, migrationsPath string, logger zerolog.Logger) error {
	m, err := openMigrator(databaseURL, migrationsPath)
	if err != nil {
		return err
	}
	defer closeMigrator(m, logger)

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		schemaVersion(m, logger, "ledger schema already up to date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	schemaVersion(m, logger, "ledger schema migrated")
	return nil
}

// RunMigrationsDown drops the ledger schema by rolling back every migration.
func RunMigrationsDown(databaseURL, migrationsPath string, logger zerolog.Logger) error {
	m, err := openMigrator(databaseURL, migrationsPath)
	if err != nil {
		return err
	}
	defer closeMigrator(m, logger)

	err = m.Down()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info().Msg("ledger schema already empty")
		return nil
	}
	if err != nil {
		return fmt.Errorf("roll back migrations: %w", err)
	}

	schemaVersion(m, logger, "ledger schema rolled back")
	return nil
}
