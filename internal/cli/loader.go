package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/revstore/internal/codec"
	"github.com/roach88/revstore/internal/config"
	"github.com/roach88/revstore/internal/manager"
	"github.com/roach88/revstore/internal/metrics"
	"github.com/roach88/revstore/internal/store"
)

// session is one CLI invocation's view of the store: the loaded
// configuration, the open database and the registered models.
type session struct {
	cfg       *config.Config
	store     *store.Store
	engine    *manager.Engine
	managers  config.Managers
	logger    *slog.Logger
	formatter *OutputFormatter
	actor     string
}

// openSession loads the configuration, opens the database and registers
// the configured models. Failures are reported through the formatter.
func openSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	formatter := newFormatter(opts, cmd)

	cfg := config.Default()
	if opts.Config != "" {
		var err error
		if cfg, err = config.Load(opts.Config); err != nil {
			return nil, formatter.Fail(ErrCodeConfig, ExitCommandError, err)
		}
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}

	level, err := cfg.Level()
	if err != nil {
		return nil, formatter.Fail(ErrCodeConfig, ExitCommandError, err)
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	// Collectors are created unregistered: a CLI run has no scrape
	// endpoint.
	m := metrics.New(nil)

	formatter.VerboseLog("Opening database %s", cfg.Database)
	st, err := store.Open(cfg.Database, store.WithLogger(logger), store.WithMetrics(m))
	if err != nil {
		return nil, formatter.Fail(ErrCodeDatabase, ExitCommandError, err)
	}

	e := manager.New(st, manager.WithLogger(logger), manager.WithMetrics(m))
	managers, err := cfg.Register(e)
	if err != nil {
		st.Close()
		return nil, formatter.Fail(ErrCodeConfig, ExitCommandError, err)
	}

	actor := cfg.Actor
	if opts.Actor != "" {
		actor = opts.Actor
	}
	return &session{
		cfg:       cfg,
		store:     st,
		engine:    e,
		managers:  managers,
		logger:    logger,
		formatter: formatter,
		actor:     actor,
	}, nil
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// Close closes the database, logging failures.
func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing database", "error", err)
	}
}

// model returns the manager of a configured model. Models missing from
// the configuration are registered on first use without indexed fields or
// schema.
func (s *session) model(name string) (*manager.ResourceManager[config.Document], error) {
	if rm, ok := s.managers[name]; ok {
		return rm, nil
	}
	if name == "" {
		return nil, s.formatter.Fail(ErrCodeUnknownModel, ExitCommandError, fmt.Errorf("model name is required"))
	}
	cd, err := codec.ByName(s.cfg.Codec)
	if err != nil {
		return nil, s.formatter.Fail(ErrCodeConfig, ExitCommandError, err)
	}
	rm, err := manager.Register[config.Document](s.engine, manager.WithName(name), manager.WithCodec(cd))
	if err != nil {
		return nil, s.formatter.Fail(ErrCodeUnknownModel, ExitCommandError, err)
	}
	s.logger.Debug("model not declared in config, using schemaless defaults", "model", name)
	s.managers[name] = rm
	return rm, nil
}

// write runs fn as the session actor.
func (s *session) write(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.engine.Using(ctx, s.actor, fn)
}

// fail reports an operation error.
func (s *session) fail(err error) error {
	return s.formatter.Fail(ErrCodeGeneric, ExitFailure, err)
}

// PayloadInput holds the flags that supply a payload.
type PayloadInput struct {
	Data string // inline JSON
	File string // JSON or YAML file, "-" for stdin
}

func (p *PayloadInput) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.Data, "data", "", "payload as inline JSON")
	cmd.Flags().StringVarP(&p.File, "file", "f", "", "payload file (JSON or YAML, - for stdin)")
}

// read returns the payload in a shape ResourceManager accepts: JSON bytes,
// or a decoded document for YAML files.
func (p *PayloadInput) read(cmd *cobra.Command) (any, error) {
	switch {
	case p.Data != "" && p.File != "":
		return nil, fmt.Errorf("--data and --file are mutually exclusive")
	case p.Data != "":
		return []byte(p.Data), nil
	case p.File == "":
		return nil, fmt.Errorf("a payload is required (--data or --file)")
	}

	data, err := readInput(cmd, p.File)
	if err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(p.File))
	if ext != ".yaml" && ext != ".yml" {
		return data, nil
	}
	var doc config.Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", p.File, err)
	}
	return doc, nil
}

// readInput reads a file, or stdin for "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
