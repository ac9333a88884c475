package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
[app]
name = "backoffice-test"

[log]
level = "error"
format = "console"
output = "stderr"
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd_Tree(t *testing.T) {
	root := newRootCmd()

	for _, path := range [][]string{
		{"reconcile"},
		{"overdue"},
		{"cash"},
		{"migrate", "up"},
		{"migrate", "down"},
		{"migrate", "steps"},
		{"migrate", "status"},
		{"migrate", "force"},
		{"migrate", "create"},
		{"migrate", "list"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}

	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
	reconcile, _, _ := root.Find([]string{"reconcile"})
	for _, name := range []string{"agency", "client", "supplier", "xlsx", "strict"} {
		assert.NotNil(t, reconcile.Flags().Lookup(name), name)
	}
}

func TestRootCmd_ValidatesIDsBeforeConnecting(t *testing.T) {
	cfg := writeTestConfig(t)

	_, err := execute(t, "reconcile", "--config", cfg, "--agency", "not-a-uuid")
	assert.ErrorContains(t, err, `invalid --agency "not-a-uuid"`)

	_, err = execute(t, "cash", "--config", cfg, "--agency", uuid.NewString(), "--as-of", "10/03/2026")
	assert.ErrorContains(t, err, "want YYYY-MM-DD")

	_, err = execute(t, "overdue", "--config", cfg, "--agency", uuid.NewString())
	assert.ErrorContains(t, err, `"actor"`)

	_, err = execute(t, "reconcile", "--config", cfg, "--agency", uuid.NewString(),
		"--client", uuid.NewString(), "--supplier", uuid.NewString())
	assert.Error(t, err)
}

func TestRootCmd_MissingConfigFile(t *testing.T) {
	_, err := execute(t, "migrate", "list", "--config", filepath.Join(t.TempDir(), "absent.toml"))
	assert.ErrorContains(t, err, "load configuration")
}

func TestMigrateCmd_CreateAndList(t *testing.T) {
	cfg := writeTestConfig(t)
	dir := filepath.Join(t.TempDir(), "migrations")

	out, err := execute(t, "migrate", "list", "--config", cfg, "--path", dir)
	require.NoError(t, err)
	assert.Equal(t, "No migrations found\n", out)

	out, err = execute(t, "migrate", "create", "add refund reasons", "--config", cfg, "--path", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "_add_refund_reasons.up.sql")
	assert.Contains(t, out, "_add_refund_reasons.down.sql")

	out, err = execute(t, "migrate", "list", "--config", cfg, "--path", dir)
	require.NoError(t, err)
	assert.Regexp(t, `^\d{14}_add_refund_reasons\n$`, out)
}

func TestMigrateCmd_StepsRejectsZero(t *testing.T) {
	cfg := writeTestConfig(t)
	_, err := execute(t, "migrate", "steps", "0", "--config", cfg)
	assert.ErrorContains(t, err, "non-zero integer")
}

func TestResolveMigrationsPath(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "migrations")
	assert.Equal(t, abs, resolveMigrationsPath(abs))

	// The repository migrations are found from this package directory
	found := resolveMigrationsPath("migrations")
	assert.True(t, filepath.IsAbs(found))
	info, err := os.Stat(found)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	assert.Equal(t, "nested/missing", resolveMigrationsPath("nested/missing"))
}
