package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uirecorder/teststore/pkg/telemetry"
	"github.com/uirecorder/teststore/pkg/testmodel"
)

type cli struct {
	t      *testing.T
	dir    string
	dbPath string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	for _, key := range []string{"TESTSTORE_DB", "TESTSTORE_OWNER", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}
	dir := t.TempDir()
	return &cli{t: t, dir: dir, dbPath: filepath.Join(dir, "cli.db")}
}

// run executes the root command against the test database.
func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()

	cmd := newRootCommand("test", "none", "today")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--db", c.dbPath}, args...))

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (c *cli) file(name, content string) string {
	c.t.Helper()
	path := filepath.Join(c.dir, name)
	require.NoError(c.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(c.t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestInitCommand(t *testing.T) {
	c := newCLI(t)
	cfgPath := filepath.Join(c.dir, "conf", "teststore.yaml")

	out, err := c.run("init", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Created config file")
	assert.FileExists(t, cfgPath)
	assert.FileExists(t, c.dbPath)

	out, err = c.run("init", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	out, err = c.run("migrate", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Schema is up to date")
}

func TestTestsCommands(t *testing.T) {
	c := newCLI(t)
	single := c.file("login.json", `{"name":"login","active":true,"steps":[{"id":"tap","image":"aW1n"}]}`)
	suite := c.file("suite.json", `[{"name":"checkout"},{"name":"search"}]`)

	out, err := c.run("tests", "write", single)
	require.NoError(t, err)
	assert.Contains(t, out, "login stored at version 1")

	out, err = c.run("tests", "write", single)
	require.NoError(t, err)
	assert.Contains(t, out, "login stored at version 2")

	_, err = c.run("tests", "write", suite, "--owner", "pixel-7")
	require.NoError(t, err)

	out, err = c.run("tests", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "login")
	assert.NotContains(t, out, "checkout")

	out, err = c.run("tests", "list", "--owner", "pixel-7", "--json")
	require.NoError(t, err)
	var pending []testmodel.PendingTest
	require.NoError(t, json.Unmarshal([]byte(out), &pending))
	require.Len(t, pending, 2)
	assert.Equal(t, "checkout", pending[0].Name())
	assert.Equal(t, "pixel-7", pending[0].Owner)

	out, err = c.run("tests", "show", "login")
	require.NoError(t, err)
	var test testmodel.Test
	require.NoError(t, json.Unmarshal([]byte(out), &test))
	assert.Equal(t, 2, test.Version)
	assert.Empty(t, test.Steps[0].Image)

	_, err = c.run("tests", "show", "missing")
	assert.Error(t, err)

	out, err = c.run("owners", "list", "--json")
	require.NoError(t, err)
	var owners []string
	require.NoError(t, json.Unmarshal([]byte(out), &owners))
	assert.Equal(t, []string{"default", "pixel-7"}, owners)
}

func TestReportsCommands(t *testing.T) {
	c := newCLI(t)
	older := c.file("older.json", `{
		"name": "login",
		"version": 1,
		"startTime": "2024-05-01T09:00:00Z",
		"endTime": "2024-05-01T09:00:05Z",
		"steps": [{"id": "tap"}, {"id": "assert", "error": "missing"}],
		"success": false
	}`)
	newer := c.file("newer.json", `{
		"name": "login",
		"version": 2,
		"startTime": "2024-05-02T09:00:00Z",
		"endTime": "2024-05-02T09:00:03Z",
		"steps": [{"id": "tap"}],
		"success": true
	}`)

	out, err := c.run("reports", "submit", older)
	require.NoError(t, err)
	assert.Contains(t, out, "Report 1 stored")

	_, err = c.run("reports", "submit", newer)
	require.NoError(t, err)

	out, err = c.run("reports", "list", "--json")
	require.NoError(t, err)
	var reports []testmodel.Report
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 2)
	assert.Equal(t, 2, reports[0].Version)
	assert.True(t, reports[0].Success)
	assert.Equal(t, 1, reports[1].ErrorSteps())

	out, err = c.run("reports", "list", "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "2024-05-02")
	assert.NotContains(t, out, "2024-05-01")

	bad := c.file("bad.json", `{"name": ""}`)
	_, err = c.run("reports", "submit", bad)
	assert.Error(t, err)
}

func TestImportCommand(t *testing.T) {
	c := newCLI(t)
	c.file(filepath.Join("recordings", "login.json"), `{"name":"login"}`)
	c.file(filepath.Join("recordings", "pixel-7", "checkout.json"), `{"name":"checkout"}`)

	out, err := c.run("import", filepath.Join(c.dir, "recordings"))
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 tests from 2 files")

	c.file(filepath.Join("recordings", "broken.json"), `{`)
	out, err = c.run("import", filepath.Join(c.dir, "recordings"))
	assert.Error(t, err)
	assert.Contains(t, out, "broken.json")

	_, err = c.run("import")
	assert.Error(t, err)
}

func TestOpenRuntimeAttachesTelemetry(t *testing.T) {
	c := newCLI(t)
	configPath, dbPath, ownerName, verbose = "", c.dbPath, "", false
	t.Cleanup(func() { dbPath = "" })

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())

	rt, err := openRuntime(cmd)
	require.NoError(t, err)
	defer rt.Close()

	assert.Same(t, rt.tel, telemetry.FromTelemetryContext(cmd.Context()))
	assert.Same(t, rt.tel.Logger, telemetry.FromContext(cmd.Context()))
}
