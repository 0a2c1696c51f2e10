package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/revstore/internal/resource"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "zone.cue", `#Zone: {name: string, level: int}`)
	path := writeFile(t, dir, "revstore.yaml", `
database: game.db
codec: cbor
log_level: debug
models:
  - name: Zone
    schema_version: "1"
    indexed:
      - {path: name, type: string}
      - {path: level}
    cue:
      file: zone.cue
      definition: "#Zone"
  - name: Note
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "game.db"), cfg.Database)
	assert.Equal(t, "cbor", cfg.Codec)
	assert.Equal(t, DefaultActor, cfg.Actor)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	zone, ok := cfg.Model("Zone")
	require.True(t, ok)
	assert.Equal(t, "1", zone.SchemaVersion)
	assert.Equal(t, []resource.IndexableField{
		{Path: "name", Type: resource.TypeString},
		{Path: "level", Type: resource.TypeAny},
	}, zone.Indexed)
	require.NotNil(t, zone.CUE)
	assert.Equal(t, filepath.Join(dir, "zone.cue"), zone.CUE.File)
	assert.Equal(t, "#Zone", zone.CUE.Definition)

	_, ok = cfg.Model("Missing")
	assert.False(t, ok)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DefaultDatabase, cfg.Database)
	assert.Equal(t, "json", cfg.Codec)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.NoError(t, cfg.Validate())
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("databse: typo.db\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown codec", "codec: xml", `unknown codec "xml"`},
		{"bad level", "log_level: loud", "log_level"},
		{"missing name", "models: [{schema_version: '1'}]", "models[0]: name is required"},
		{"duplicate model", "models: [{name: A}, {name: A}]", `duplicate model "A"`},
		{"meta field", "models: [{name: A, indexed: [{path: resource_id}]}]", "shadows a meta field"},
		{"bad type", "models: [{name: A, indexed: [{path: x, type: blob}]}]", "unknown type"},
		{"cue without file", "models: [{name: A, cue: {definition: '#A'}}]", "file is required"},
		{"cue file missing", "models: [{name: A, cue: {file: /nonexistent/a.cue}}]", "models[0].cue"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yaml))
			require.NoError(t, err)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}
