package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("CONDUIT_DB", "")
	t.Chdir(t.TempDir())

	cfg, err := Load(New())
	require.NoError(t, err)

	assert.Equal(t, "", cfg.DatabaseURL)
	assert.Equal(t, "./migrations", cfg.MigrationsDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, FormatConsole, cfg.LogFormat)
	assert.Equal(t, int32(10), cfg.MaxConns)

	_, err = cfg.Database()
	assert.Error(t, err)
}

func TestLoad_Environment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATABASE_URL", "postgres://fallback/db")
	t.Setenv("CONDUIT_LOG_LEVEL", "debug")
	t.Setenv("CONDUIT_LOG_FORMAT", "json")
	t.Setenv("CONDUIT_MAX_CONNS", "4")
	t.Setenv("CONDUIT_MIN_CONNS", "1")

	cfg, err := Load(New())
	require.NoError(t, err)
	assert.Equal(t, "postgres://fallback/db", cfg.DatabaseURL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, FormatJSON, cfg.LogFormat)
	assert.Equal(t, int32(4), cfg.MaxConns)
	assert.Equal(t, int32(1), cfg.MinConns)

	db, err := cfg.Database()
	require.NoError(t, err)
	assert.Equal(t, "postgres://fallback/db", db.ConnString())
	assert.Equal(t, int32(4), db.MaxConns)
}

func TestLoad_PrefixedURLWins(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATABASE_URL", "postgres://fallback/db")
	t.Setenv("CONDUIT_DB", "postgres://primary/db")

	cfg, err := Load(New())
	require.NoError(t, err)
	assert.Equal(t, "postgres://primary/db", cfg.DatabaseURL)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("CONDUIT_DB", "")
	t.Setenv("DATABASE_URL", "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "conduit.yaml"),
		[]byte("db: postgres://file/db\nmigrations_dir: db/migrations\n"), 0o644))

	cfg, err := Load(New())
	require.NoError(t, err)
	assert.Equal(t, "postgres://file/db", cfg.DatabaseURL)
	assert.Equal(t, "db/migrations", cfg.MigrationsDir)
}

func TestLoad_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"level", "CONDUIT_LOG_LEVEL", "loud"},
		{"format", "CONDUIT_LOG_FORMAT", "xml"},
		{"limits", "CONDUIT_MIN_CONNS", "50"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load(New())
			assert.Error(t, err)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("CONDUIT_MIGRATIONS_DIR=from-dotenv\nCONDUIT_LOG_LEVEL=warn\n"), 0o644))

	// Set before loading so godotenv leaves it alone; cleared by t.Setenv.
	t.Setenv("CONDUIT_LOG_LEVEL", "error")
	t.Setenv("CONDUIT_MIGRATIONS_DIR", "")
	require.NoError(t, os.Unsetenv("CONDUIT_MIGRATIONS_DIR"))

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "from-dotenv", os.Getenv("CONDUIT_MIGRATIONS_DIR"))
	assert.Equal(t, "error", os.Getenv("CONDUIT_LOG_LEVEL"))
}
