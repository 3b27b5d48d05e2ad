package cmd

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCmd(t *testing.T, args ...string) string {
	t.Helper()
	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

// persistentArgs points every invocation in a test at the same bbolt
// database file, since each CLI subcommand opens and closes its own
// server.Server: the mem KVS backend would forget everything between
// invocations, but a shared bbolt file lets "fs create" and a later
// "fs list" see the same namespace.
func persistentArgs(t *testing.T) []string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "kvsfs.db")
	exportPath := filepath.Join(t.TempDir(), "exports.json")
	return []string{
		"--kvs.backend=bbolt", fmt.Sprintf("--kvs.path=%s", dbPath),
		"--dsal.backend=mem",
		fmt.Sprintf("--export.path=%s", exportPath),
	}
}

func TestFsCreateListDelete(t *testing.T) {
	common := persistentArgs(t)

	runCmd(t, append([]string{"fs", "create", "tank"}, common...)...)

	out := runCmd(t, append([]string{"fs", "list"}, common...)...)
	assert.Contains(t, out, "tank")

	runCmd(t, append([]string{"fs", "delete", "tank"}, common...)...)

	out = runCmd(t, append([]string{"fs", "list"}, common...)...)
	assert.NotContains(t, out, "tank")
}

func TestFsBindUnbindAndExports(t *testing.T) {
	common := persistentArgs(t)

	runCmd(t, append([]string{"fs", "create", "lake"}, common...)...)
	runCmd(t, append([]string{"fs", "bind", "lake", "--client=*", "--filesystem-id=1.2"}, common...)...)

	out := runCmd(t, append([]string{"fs", "exports"}, common...)...)
	assert.Contains(t, out, "lake")
	assert.Contains(t, out, "1.2")

	runCmd(t, append([]string{"fs", "unbind", "lake"}, common...)...)
	out = runCmd(t, append([]string{"fs", "exports"}, common...)...)
	assert.NotContains(t, out, "lake")
}

func TestConfigDumpIsValidYAML(t *testing.T) {
	out := runCmd(t, append([]string{"config-dump"}, persistentArgs(t)...)...)
	assert.Contains(t, out, "app-name: kvsfsd")
	assert.Contains(t, out, "dsal:")
}
