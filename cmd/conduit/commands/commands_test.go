package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("CONDUIT_DB", "")
	t.Setenv("DATABASE_URL", "")

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestSchemaCommand(t *testing.T) {
	schemaDown = false
	out, err := run(t, "schema")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, `CREATE TABLE IF NOT EXISTS "users" (`), out)
	assert.Contains(t, out, `CONSTRAINT "follows_pkey" PRIMARY KEY ("follower", "followed")`)

	out, err = run(t, "schema", "--down")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, `DROP TABLE IF EXISTS "tags";`), out)
	schemaDown = false
}

func TestGenerateOffline(t *testing.T) {
	empty, offline = false, false
	dir := filepath.Join(t.TempDir(), "migrations")

	out, err := run(t, "generate", "initial_schema", "--offline", "--migrations-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Tables to add: 6")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, strings.HasSuffix(entries[0].Name(), "_initial_schema.down.sql"))
	assert.True(t, strings.HasSuffix(entries[1].Name(), "_initial_schema.up.sql"))
	offline = false
}

func TestGenerateRequiresDatabase(t *testing.T) {
	empty, offline = false, false
	_, err := run(t, "generate", "initial_schema", "--migrations-dir", t.TempDir())
	assert.ErrorContains(t, err, "no database configured")
}

func TestMigrateUpRequiresMode(t *testing.T) {
	all, upSteps, interactive = false, 0, false
	_, err := run(t, "migrate", "up")
	assert.ErrorContains(t, err, "must specify --all or --steps")
}

func TestInvalidLogFormat(t *testing.T) {
	schemaDown = false
	_, err := run(t, "schema", "--log-format", "xml")
	assert.ErrorContains(t, err, "invalid log_format")
	require.NoError(t, rootCmd.PersistentFlags().Set("log-format", "console"))
}
