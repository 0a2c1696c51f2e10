// Package config loads the revstore YAML configuration.
//
// A configuration names the database, the payload codec and the models the
// CLI may operate on:
//
//	database: game.db
//	codec: json
//	log_level: info
//	actor: admin
//	models:
//	  - name: Zone
//	    schema_version: "1"
//	    indexed:
//	      - {path: name, type: string}
//	      - {path: level, type: int}
//	    cue:
//	      file: zone.cue
//	      definition: "#Zone"
package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/revstore/internal/codec"
	"github.com/roach88/revstore/internal/resource"
)

// Defaults applied by Load and Default.
const (
	DefaultDatabase = "revstore.db"
	DefaultLogLevel = "info"
	DefaultActor    = "revstore"
)

// Config is the top-level configuration file.
type Config struct {
	// Database is the SQLite file path. Relative paths are resolved against
	// the directory of the configuration file.
	Database string `yaml:"database"`

	// Codec encodes stored payloads: "json" or "cbor".
	Codec string `yaml:"codec"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// Actor is recorded as created_by/updated_by for CLI writes.
	Actor string `yaml:"actor"`

	Models []Model `yaml:"models"`
}

// Model declares one schemaless model.
type Model struct {
	Name          string                    `yaml:"name"`
	SchemaVersion string                    `yaml:"schema_version,omitempty"`
	Indexed       []resource.IndexableField `yaml:"indexed,omitempty"`
	CUE           *CUESchema                `yaml:"cue,omitempty"`
}

// CUESchema points at the CUE definition payloads are validated against.
type CUESchema struct {
	File       string `yaml:"file"`
	Definition string `yaml:"definition,omitempty"`
}

// Default returns a configuration with no models.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads and validates a configuration file. Unknown fields are
// rejected so typos surface early.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.resolve(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML and applies defaults without validating or resolving
// paths.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	if c.Codec == "" {
		c.Codec = codec.NameJSON
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Actor == "" {
		c.Actor = DefaultActor
	}
	for i := range c.Models {
		for j := range c.Models[i].Indexed {
			if c.Models[i].Indexed[j].Type == "" {
				c.Models[i].Indexed[j].Type = resource.TypeAny
			}
		}
	}
}

// resolve makes relative file paths relative to base.
func (c *Config) resolve(base string) {
	if base == "" {
		return
	}
	if !filepath.IsAbs(c.Database) && c.Database != ":memory:" {
		c.Database = filepath.Join(base, c.Database)
	}
	for _, m := range c.Models {
		if m.CUE != nil && m.CUE.File != "" && !filepath.IsAbs(m.CUE.File) {
			m.CUE.File = filepath.Join(base, m.CUE.File)
		}
	}
}

// Validate checks required fields and known values.
func (c *Config) Validate() error {
	if _, err := codec.ByName(c.Codec); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}

	seen := map[string]bool{}
	for i, m := range c.Models {
		if m.Name == "" {
			return fmt.Errorf("models[%d]: name is required", i)
		}
		if seen[m.Name] {
			return fmt.Errorf("models[%d]: duplicate model %q", i, m.Name)
		}
		seen[m.Name] = true

		for j, f := range m.Indexed {
			if err := f.Validate(); err != nil {
				return fmt.Errorf("models[%d].indexed[%d]: %w", i, j, err)
			}
		}
		if m.CUE != nil {
			if m.CUE.File == "" {
				return fmt.Errorf("models[%d].cue: file is required", i)
			}
			if _, err := os.Stat(m.CUE.File); err != nil {
				return fmt.Errorf("models[%d].cue: %w", i, err)
			}
		}
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

// Model returns the declaration of name.
func (c *Config) Model(name string) (Model, bool) {
	for _, m := range c.Models {
		if m.Name == name {
			return m, true
		}
	}
	return Model{}, false
}
