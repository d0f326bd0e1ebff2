package database

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/pkg/errors"
)

// MigrationLogger adapts ectologger to the migrate logger interface
type MigrationLogger struct {
	ectologger.Logger
}

func (l MigrationLogger) Verbose() bool {
	return true
}

func (l MigrationLogger) Printf(format string, v ...any) {
	l.Infof(format, v...)
}

type MigrationConfig struct {
	MigrationFolderPath string
	Version             uint
	Force               int
	AutoRollback        bool // revert a dirty database to the previous version on failure
}

// MigrationService applies SQL migrations from the configured folder
type MigrationService struct {
	config *MigrationConfig
	logger ectologger.Logger
}

func NewMigrationService(logger ectologger.Logger, config *MigrationConfig) *MigrationService {
	return &MigrationService{
		config: config,
		logger: logger,
	}
}

func (ms *MigrationService) resolveMigrationFolder() string {
	folder := ms.config.MigrationFolderPath
	if _, err := os.Stat(folder); err == nil {
		return folder
	}
	wd, _ := os.Getwd()
	return strings.TrimSuffix(wd, "/") + "/" + folder
}

// Migrate runs migrations up to the configured version, or to the latest
// when no version is set.
func (ms *MigrationService) Migrate(databaseName string, databaseInstance migratedb.Driver) error {
	folder := ms.resolveMigrationFolder()
	if _, err := os.Stat(folder); err != nil {
		return errors.Wrap(err, fmt.Sprintf("migration folder %s does not exist", folder))
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+folder, databaseName, databaseInstance)
	if err != nil {
		ms.logger.WithError(err).Error("Failed to create migrate instance")
		return err
	}

	m.Log = MigrationLogger{Logger: ms.logger}

	if ms.config.Force != 0 {
		if err := m.Force(ms.config.Force); err != nil {
			ms.logger.WithError(err).Errorf("Failed to force database to version %d", ms.config.Force)
			return err
		}
	}

	previousVersion, _, versionErr := m.Version()
	if versionErr != nil && versionErr != migrate.ErrNilVersion {
		ms.logger.WithError(versionErr).Error("Failed to get current migration version")
	}

	start := time.Now()

	var migrationErr error
	if ms.config.Version != 0 {
		migrationErr = m.Migrate(ms.config.Version)
	} else {
		migrationErr = m.Up()
	}

	if migrationErr == migrate.ErrNoChange {
		ms.logger.Info("No new migrations to apply")
		return nil
	}
	if migrationErr != nil {
		return ms.handleMigrationError(m, migrationErr, previousVersion)
	}

	ms.logger.Infof("Database migrations completed in %v", time.Since(start))
	return nil
}

// handleMigrationError reports a failed migration and, when auto rollback
// is enabled, forces a dirty database back to the version that was current
// before the run. The original error is always returned so the application
// does not start on a half-migrated schema.
func (ms *MigrationService) handleMigrationError(m *migrate.Migrate, migrationErr error, previousVersion uint) error {
	version, dirty, versionErr := m.Version()
	if versionErr != nil && versionErr != migrate.ErrNilVersion {
		ms.logger.WithError(versionErr).Error("Failed to get current migration version")
		return migrationErr
	}

	if ms.config.AutoRollback && dirty {
		target := previousVersion
		if target == 0 {
			target = version - 1
		}

		ms.logger.Warnf("Database is dirty at version %d. Reverting to version %d", version, target)
		ms.logger.WithError(migrationErr).Errorf("Original migration error (before rollback): %v", migrationErr)

		if err := m.Force(int(target)); err != nil {
			ms.logger.WithError(err).Errorf("Failed to force database to version %d", target)
			return err
		}

		return migrationErr
	}

	ms.logger.WithError(migrationErr).Errorf("Failed to apply migrations. Database version is dirty=%t at version %d", dirty, version)
	return migrationErr
}
