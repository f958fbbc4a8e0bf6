package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSQLiteDSNDefaultsToSharedMemory(t *testing.T) {
	for _, path := range []string{"", ":memory:", ":MEMORY:"} {
		dsn, err := sqliteDSN(Config{Path: path})
		require.NoError(t, err)
		require.Equal(t, memoryDSN, dsn)
	}
}

func TestSQLiteDSNCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "authcore.sqlite")

	dsn, err := sqliteDSN(Config{Path: path})
	require.NoError(t, err)
	require.Contains(t, dsn, "_foreign_keys=1")
	require.Contains(t, dsn, "_journal_mode=WAL")
	require.DirExists(t, filepath.Dir(path))
}

func TestSQLiteDSNHonoursOverride(t *testing.T) {
	dsn, err := sqliteDSN(Config{DSN: "file:custom.db?_foreign_keys=1"})
	require.NoError(t, err)
	require.Equal(t, "file:custom.db?_foreign_keys=1", dsn)
}

func TestBuildPostgresDSN(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{User: "auth", Password: "secret", Name: "authcore"})
	require.NoError(t, err)
	require.Equal(t, "host=localhost port=5432 user=auth dbname=authcore sslmode=disable password=secret", dsn)

	_, err = buildPostgresDSN(Config{Host: "db.internal"})
	require.Error(t, err)
}

func TestBuildMySQLDSN(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{User: "auth", Password: "secret", Name: "authcore", Host: "db.internal", Port: 3307})
	require.NoError(t, err)
	require.Equal(t, "auth:secret@tcp(db.internal:3307)/authcore?charset=utf8mb4&parseTime=True&loc=Local", dsn)

	_, err = buildMySQLDSN(Config{User: "auth"})
	require.Error(t, err)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported database driver")
}
