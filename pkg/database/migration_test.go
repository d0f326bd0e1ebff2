package database

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Gobusters/ectologger"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

// fakeDriver records versions the way a real database driver would. Any
// migration body containing failOn fails, leaving the driver dirty.
type fakeDriver struct {
	version int
	dirty   bool
	failOn  string
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{version: migratedb.NilVersion}
}

func (d *fakeDriver) Open(string) (migratedb.Driver, error) { return d, nil }
func (d *fakeDriver) Close() error                          { return nil }
func (d *fakeDriver) Lock() error                           { return nil }
func (d *fakeDriver) Unlock() error                         { return nil }
func (d *fakeDriver) Drop() error                           { return nil }

func (d *fakeDriver) Run(migration io.Reader) error {
	body, err := io.ReadAll(migration)
	if err != nil {
		return err
	}
	if d.failOn != "" && strings.Contains(string(body), d.failOn) {
		return errors.New("syntax error")
	}
	return nil
}

func (d *fakeDriver) SetVersion(version int, dirty bool) error {
	d.version = version
	d.dirty = dirty
	return nil
}

func (d *fakeDriver) Version() (int, bool, error) {
	return d.version, d.dirty, nil
}

func writeMigrations(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"000001_create_players.up.sql":   "CREATE TABLE canonical_players (id UUID PRIMARY KEY);",
		"000001_create_players.down.sql": "DROP TABLE canonical_players;",
		"000002_create_bundles.up.sql":   "CREATE TABLE value_bundles (player_id UUID);",
		"000002_create_bundles.down.sql": "DROP TABLE value_bundles;",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestMigrateAppliesAll(t *testing.T) {
	driver := newFakeDriver()
	ms := NewMigrationService(testLogger(), &MigrationConfig{
		MigrationFolderPath: writeMigrations(t),
	})

	require.NoError(t, ms.Migrate("clover", driver))
	assert.Equal(t, 2, driver.version)
	assert.False(t, driver.dirty)
}

func TestMigrateAutoRollbackRevertsDirtyDatabase(t *testing.T) {
	driver := newFakeDriver()
	driver.failOn = "value_bundles"
	ms := NewMigrationService(testLogger(), &MigrationConfig{
		MigrationFolderPath: writeMigrations(t),
		AutoRollback:        true,
	})

	err := ms.Migrate("clover", driver)
	require.Error(t, err, "rollback must not hide the migration failure")
	assert.Equal(t, 1, driver.version, "dirty database reverts to the last good version")
	assert.False(t, driver.dirty)
}

func TestMigrateWithoutAutoRollbackLeavesDirty(t *testing.T) {
	driver := newFakeDriver()
	driver.failOn = "value_bundles"
	ms := NewMigrationService(testLogger(), &MigrationConfig{
		MigrationFolderPath: writeMigrations(t),
	})

	err := ms.Migrate("clover", driver)
	require.Error(t, err)
	assert.Equal(t, 2, driver.version)
	assert.True(t, driver.dirty)
}
