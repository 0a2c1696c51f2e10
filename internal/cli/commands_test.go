package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/revstore/internal/store"
)

type cliRun struct {
	out    string
	errOut string
	err    error
}

// execute runs the root command with args and stdin.
func execute(t *testing.T, stdin string, args ...string) cliRun {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetIn(strings.NewReader(stdin))
	err := cmd.ExecuteContext(context.Background())
	return cliRun{out: out.String(), errOut: errOut.String(), err: err}
}

// executeJSON runs a command with --format json and decodes the response.
func executeJSON(t *testing.T, args ...string) (map[string]any, CLIResponse, error) {
	t.Helper()
	r := execute(t, "", append([]string{"--format", "json"}, args...)...)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(r.out), &resp), "output: %q stderr: %q", r.out, r.errOut)
	data, _ := resp.Data.(map[string]any)
	return data, resp, r.err
}

func requireOK(t *testing.T, args ...string) map[string]any {
	t.Helper()
	data, resp, err := executeJSON(t, args...)
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Status, "error: %+v", resp.Error)
	return data
}

func requireFail(t *testing.T, code string, exitCode int, args ...string) CLIResponse {
	t.Helper()
	_, resp, err := executeJSON(t, args...)
	require.Error(t, err)
	assert.Equal(t, exitCode, GetExitCode(err))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, code, resp.Error.Code, resp.Error.Message)
	return resp
}

func field(t *testing.T, v any, path string) any {
	t.Helper()
	for _, key := range strings.Split(path, ".") {
		m, ok := v.(map[string]any)
		require.True(t, ok, "%s: %T is not an object", path, v)
		v = m[key]
	}
	return v
}

func tempDB(t *testing.T) string {
	return filepath.Join(t.TempDir(), "revstore.db")
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const zoneConfig = `
database: revstore.db
actor: keeper
models:
  - name: Zone
    schema_version: "1"
    indexed:
      - {path: name, type: string}
      - {path: level, type: int}
    cue:
      file: zone.cue
      definition: "#Zone"
`

func writeZoneConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeTestFile(t, dir, "zone.cue", `#Zone: {name: string & !="", level: int & >=1}`)
	return writeTestFile(t, dir, "revstore.yaml", zoneConfig)
}

func TestResourceLifecycle(t *testing.T) {
	db := tempDB(t)

	created := requireOK(t, "--db", db, "--actor", "alice", "create", "Zone", "--id", "forest", "--data", `{"name":"Forest","level":1}`)
	r1 := field(t, created, "info.revision_id").(string)
	assert.NotEmpty(t, r1)
	assert.Equal(t, "forest", field(t, created, "info.resource_id"))
	assert.Equal(t, "alice", field(t, created, "info.created_by"))
	assert.Equal(t, "stable", field(t, created, "info.status"))
	assert.Equal(t, "Forest", field(t, created, "data.name"))

	updated := requireOK(t, "--db", db, "update", "Zone", "forest", "--expect", r1, "--data", `{"name":"Deep Forest","level":2}`)
	r2 := field(t, updated, "info.revision_id").(string)
	assert.Equal(t, r1, field(t, updated, "info.parent_revision_id"))
	assert.Equal(t, "revstore", field(t, updated, "info.updated_by"), "default actor")

	requireFail(t, "CONFLICT", ExitFailure, "--db", db, "update", "Zone", "forest", "--expect", r1, "--data", `{"name":"Lost","level":3}`)

	_, resp, err := executeJSON(t, "--db", db, "history", "Zone", "forest")
	require.NoError(t, err)
	history, ok := resp.Data.([]any)
	require.True(t, ok)
	require.Len(t, history, 2)
	assert.Equal(t, r1, field(t, history[0], "revision_id"))
	assert.Equal(t, r2, field(t, history[1], "revision_id"))

	old := requireOK(t, "--db", db, "get", "Zone", "forest", "--revision", r1)
	assert.Equal(t, "Forest", field(t, old, "data.name"))

	meta := requireOK(t, "--db", db, "get", "Zone", "forest", "--meta")
	assert.Equal(t, float64(2), field(t, meta, "total_revision_count"))
	assert.Equal(t, r2, field(t, meta, "current_revision_id"))

	requireOK(t, "--db", db, "switch", "Zone", "forest", r1)
	current := requireOK(t, "--db", db, "get", "Zone", "forest")
	assert.Equal(t, "Forest", field(t, current, "data.name"))

	requireFail(t, "INVALID_STATE", ExitFailure, "--db", db, "switch", "Zone", "forest", r1)
}

func TestDraftAndModify(t *testing.T) {
	db := tempDB(t)
	requireOK(t, "--db", db, "create", "Note", "--id", "n1", "--draft", "--data", `{"text":"first"}`)

	amended := requireOK(t, "--db", db, "update", "Note", "n1", "--modify", "--data", `{"text":"second"}`)
	assert.Equal(t, "draft", field(t, amended, "info.status"))

	final := requireOK(t, "--db", db, "update", "Note", "n1", "--modify", "--stable", "--data", `{"text":"final"}`)
	assert.Equal(t, "stable", field(t, final, "info.status"))

	requireFail(t, "INVALID_STATE", ExitFailure, "--db", db, "update", "Note", "n1", "--modify", "--data", `{"text":"again"}`)

	meta := requireOK(t, "--db", db, "get", "Note", "n1", "--meta")
	assert.Equal(t, float64(1), field(t, meta, "total_revision_count"))
}

func TestCreatePayloadSources(t *testing.T) {
	db := tempDB(t)
	dir := t.TempDir()

	yamlFile := writeTestFile(t, dir, "zone.yaml", "name: Cave\nlevel: 4\ntags: [dark, damp]\n")
	fromYAML := requireOK(t, "--db", db, "create", "Zone", "-f", yamlFile)
	assert.Equal(t, "Cave", field(t, fromYAML, "data.name"))
	assert.Equal(t, float64(4), field(t, fromYAML, "data.level"))
	assert.Equal(t, []any{"dark", "damp"}, field(t, fromYAML, "data.tags"))

	jsonFile := writeTestFile(t, dir, "zone.json", `{"name":"Hill","level":2}`)
	fromJSON := requireOK(t, "--db", db, "create", "Zone", "--file", jsonFile)
	assert.Equal(t, "Hill", field(t, fromJSON, "data.name"))

	r := execute(t, `{"name":"Marsh","level":3}`, "--format", "json", "--db", db, "create", "Zone", "--id", "marsh", "-f", "-")
	require.NoError(t, r.err, r.out)
	assert.Contains(t, r.out, `"Marsh"`)

	requireFail(t, ErrCodeInput, ExitCommandError, "--db", db, "create", "Zone")
	requireFail(t, ErrCodeInput, ExitCommandError, "--db", db, "create", "Zone", "--data", "{}", "-f", jsonFile)
	requireFail(t, ErrCodeInput, ExitCommandError, "--db", db, "create", "Zone", "-f", filepath.Join(dir, "missing.json"))
	requireFail(t, "VALIDATION", ExitFailure, "--db", db, "create", "Zone", "--data", `[1,2]`)
	requireFail(t, "CONFLICT", ExitFailure, "--db", db, "create", "Zone", "--id", "marsh", "--data", `{"name":"Again"}`)
}

func TestPatchDeleteRestore(t *testing.T) {
	db := tempDB(t)
	requireOK(t, "--db", db, "create", "Zone", "--id", "z1", "--data", `{"name":"Forest","level":1}`)

	patched := requireOK(t, "--db", db, "patch", "Zone", "z1", "--data", `[{"op":"replace","path":"/level","value":5}]`)
	assert.Equal(t, float64(5), field(t, patched, "data.level"))
	assert.Equal(t, "Forest", field(t, patched, "data.name"))

	requireFail(t, ErrCodeInput, ExitCommandError, "--db", db, "patch", "Zone", "z1")
	requireFail(t, "VALIDATION", ExitFailure, "--db", db, "patch", "Zone", "z1", "--data", `[{"op":"remove","path":"/missing"}]`)

	deleted := requireOK(t, "--db", db, "delete", "Zone", "z1")
	assert.Equal(t, true, field(t, deleted, "is_deleted"))

	requireFail(t, "RESOURCE_IS_DELETED", ExitFailure, "--db", db, "get", "Zone", "z1")
	got := requireOK(t, "--db", db, "get", "Zone", "z1", "--include-deleted")
	assert.Equal(t, float64(5), field(t, got, "data.level"))

	restored := requireOK(t, "--db", db, "restore", "Zone", "z1")
	assert.Equal(t, false, field(t, restored, "is_deleted"))

	requireFail(t, "NOT_FOUND", ExitFailure, "--db", db, "get", "Zone", "nope")
	requireFail(t, "NOT_FOUND", ExitFailure, "--db", db, "delete", "Zone", "nope")
}

func TestSearchWithConfig(t *testing.T) {
	cfg := writeZoneConfig(t)
	for _, z := range []string{
		`{"name":"Forest","level":1}`,
		`{"name":"Cave","level":3}`,
		`{"name":"Peak","level":5}`,
	} {
		requireOK(t, "-c", cfg, "create", "Zone", "--data", z)
	}
	requireFail(t, "VALIDATION", ExitFailure, "-c", cfg, "create", "Zone", "--data", `{"name":"Pit","level":0}`)

	query := writeTestFile(t, t.TempDir(), "query.yaml", `
filter:
  field: level
  op: gte
  value: 2
sort:
  - {field: level, desc: true}
`)
	_, resp, err := executeJSON(t, "-c", cfg, "search", "Zone", query)
	require.NoError(t, err)
	hits, ok := resp.Data.([]any)
	require.True(t, ok)
	require.Len(t, hits, 2)
	assert.Equal(t, "Peak", field(t, hits[0], "indexed_data.name"))
	assert.Equal(t, "Cave", field(t, hits[1], "indexed_data.name"))
	assert.Equal(t, "keeper", field(t, hits[0], "created_by"), "actor from config")
	assert.Equal(t, "1", field(t, hits[0], "schema_version"))

	count := requireOK(t, "-c", cfg, "search", "Zone", query, "--count")
	assert.Equal(t, float64(2), count["count"])

	_, resp, err = executeJSON(t, "-c", cfg, "search", "Zone", query, "--limit", "1", "--offset", "1")
	require.NoError(t, err)
	hits = resp.Data.([]any)
	require.Len(t, hits, 1)
	assert.Equal(t, "Cave", field(t, hits[0], "indexed_data.name"))

	all := requireOK(t, "-c", cfg, "search", "Zone", "--count")
	assert.Equal(t, float64(3), all["count"])

	bad := writeTestFile(t, t.TempDir(), "bad.yaml", "filter: {field: level, op: between, value: 1}\n")
	requireFail(t, ErrCodeInput, ExitCommandError, "-c", cfg, "search", "Zone", bad)
	requireFail(t, ErrCodeInput, ExitCommandError, "-c", cfg, "search", "Zone", "--deleted", "sometimes")
	requireFail(t, ErrCodeInput, ExitCommandError, "-c", cfg, "search", "Zone", "--limit", "-1")
}

func TestSearchTextOutput(t *testing.T) {
	db := tempDB(t)
	requireOK(t, "--db", db, "create", "Zone", "--id", "z1", "--data", `{"name":"Forest"}`)
	requireOK(t, "--db", db, "create", "Zone", "--id", "z2", "--data", `{"name":"Cave"}`)

	r := execute(t, "", "--db", db, "search", "Zone", "--count")
	require.NoError(t, r.err)
	assert.Equal(t, "count: 2\n", r.out)
}

func TestModelsAndValidate(t *testing.T) {
	cfg := writeZoneConfig(t)

	data := requireOK(t, "-c", cfg, "models")
	models, ok := data["models"].([]any)
	require.True(t, ok)
	require.Len(t, models, 1)
	assert.Equal(t, "Zone", field(t, models[0], "name"))
	assert.Equal(t, "1", field(t, models[0], "schema_version"))
	assert.Len(t, field(t, models[0], "indexed"), 2)

	valid := requireOK(t, "validate", cfg)
	assert.Equal(t, true, valid["valid"])
	assert.Equal(t, []any{"Zone"}, valid["models"])

	r := execute(t, "", "validate", cfg)
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "is valid (1 models)")

	dir := filepath.Dir(cfg)
	writeTestFile(t, dir, "broken.cue", `#Zone: {name: string`)
	broken := writeTestFile(t, dir, "broken.yaml", strings.ReplaceAll(zoneConfig, "zone.cue", "broken.cue"))
	requireFail(t, ErrCodeConfig, ExitFailure, "validate", broken)

	unknown := writeTestFile(t, dir, "unknown.yaml", "models:\n  - name: Zone\n    index: []\n")
	requireFail(t, ErrCodeConfig, ExitFailure, "validate", unknown)
	requireFail(t, ErrCodeConfig, ExitCommandError, "-c", unknown, "models")
}

func TestVerifyCommand(t *testing.T) {
	cfg := writeZoneConfig(t)
	requireOK(t, "-c", cfg, "create", "Zone", "--id", "z1", "--data", `{"name":"Forest","level":1}`)

	ok := requireOK(t, "-c", cfg, "verify")
	assert.Equal(t, float64(0), ok["inconsistencies"])
	assert.Equal(t, []any{"Zone"}, ok["models"])

	st, err := store.Open(filepath.Join(filepath.Dir(cfg), "revstore.db"))
	require.NoError(t, err)
	_, err = st.DB().Exec(`UPDATE resource_meta SET total_revision_count = 7 WHERE resource_id = 'z1'`)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	r := execute(t, "", "-c", cfg, "verify")
	require.Error(t, r.err)
	assert.Equal(t, ExitFailure, GetExitCode(r.err))
	assert.Contains(t, r.out, "Error [E006]: found 1 inconsistencies")
	assert.Contains(t, r.errOut, "resource_id=z1")
}

func TestBlobCommand(t *testing.T) {
	db := tempDB(t)
	st, err := store.Open(db)
	require.NoError(t, err)
	id, err := st.BlobStore().Put(context.Background(), []byte("portrait bytes"))
	require.NoError(t, err)
	require.NoError(t, st.Close())

	r := execute(t, "", "--db", db, "blob", "Portrait", id)
	require.NoError(t, r.err)
	assert.Equal(t, "portrait bytes", r.out)

	out := filepath.Join(t.TempDir(), "portrait.bin")
	r = execute(t, "", "--db", db, "blob", "Portrait", id, "-o", out)
	require.NoError(t, r.err)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "portrait bytes", string(data))

	requireFail(t, "NOT_FOUND", ExitFailure, "--db", db, "blob", "Portrait", "missing")
}

func TestMigrateCommand(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "revstore.db")
	requireOK(t, "--db", db, "create", "Zone", "--id", "z1", "--data", `{"name":"Forest"}`)

	cfg := writeTestFile(t, dir, "revstore.yaml", "models:\n  - name: Zone\n    schema_version: \"2\"\n")
	// Unversioned data has no migration path to version 2.
	requireFail(t, "MIGRATION_PATH", ExitFailure, "-c", cfg, "migrate", "Zone", "z1")
}

func TestTestCommand(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "zones.yaml", `
name: zones
description: "create and delete a zone"
models:
  - name: Zone
flow:
  - {op: create, model: Zone, id: z1, payload: {name: Forest}}
  - {op: delete, model: Zone, id: z1}
assertions:
  - type: meta
    model: Zone
    id: z1
    expect: {is_deleted: true}
`)

	r := execute(t, "", "test", dir)
	require.NoError(t, r.err, r.out)
	assert.Contains(t, r.out, "✓ zones")
	assert.Contains(t, r.out, "All scenarios passed")

	r = execute(t, "", "test", dir, "--update")
	require.NoError(t, r.err, r.out)
	golden, err := os.ReadFile(filepath.Join(dir, "golden", "zones.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"scenario_name":"zones"`)

	// The golden trace now has to match.
	r = execute(t, "", "test", dir)
	require.NoError(t, r.err, r.out)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "zones.golden"), []byte("{}"), 0o644))
	r = execute(t, "", "test", dir)
	require.Error(t, r.err)
	assert.Equal(t, ExitFailure, GetExitCode(r.err))
	assert.Contains(t, r.out, "trace does not match golden file")

	r = execute(t, "", "--format", "json", "test", dir, "--filter", "other-*")
	require.NoError(t, r.err)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(r.out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, float64(0), field(t, resp.Data, "total"))

	r = execute(t, "", "test", filepath.Join(dir, "missing"))
	require.Error(t, r.err)
	assert.Equal(t, ExitCommandError, GetExitCode(r.err))
}
