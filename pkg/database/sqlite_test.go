package database

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-committee/pkg/config"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	cfg := &config.Config{Database: config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "nested", "test.db")}}
	db, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNew_CreatesFileInWALMode(t *testing.T) {
	db := openTemp(t)

	status, err := db.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
	assert.Equal(t, "wal", status.JournalMode)
	assert.FileExists(t, db.Path)
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTemp(t)

	fsys := fstest.MapFS{
		"migrations/000001_init.up.sql":   {Data: []byte("CREATE TABLE t (date TEXT PRIMARY KEY, v REAL);")},
		"migrations/000001_init.down.sql": {Data: []byte("DROP TABLE t;")},
	}

	version, err := db.Migrate(fsys, "migrations")
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	// Second run is a no-op
	version, err = db.Migrate(fsys, "migrations")
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	_, err = db.SQL.Exec("INSERT INTO t (date, v) VALUES ('2026-10-19', NULL)")
	assert.NoError(t, err)
}
