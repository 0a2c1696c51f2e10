package manager

import (
	"context"
	"log/slog"
	"reflect"

	"github.com/roach88/revstore/internal/backend"
	"github.com/roach88/revstore/internal/binary"
	"github.com/roach88/revstore/internal/codec"
	"github.com/roach88/revstore/internal/refint"
	"github.com/roach88/revstore/internal/resource"
	"github.com/roach88/revstore/internal/schema"
)

// model is the type-independent part of a registration.
type model struct {
	name      string
	typ       reflect.Type
	codec     codec.Codec
	schema    *schema.Schema
	validator schema.Validator
	indexed   []resource.IndexableField
	refs      []refint.Ref
	binaries  bool
	metas     backend.MetaStore
	revs      backend.RevisionStore
	logger    *slog.Logger
}

// version is the schema version stamped on new revisions.
func (m *model) version() string {
	if m.schema == nil {
		return ""
	}
	return m.schema.Target()
}

// managed is implemented by every ResourceManager regardless of T.
type managed interface {
	info() *model
	deleteVisited(ctx context.Context, resourceID string, visited refint.Visited) error
	clearReference(ctx context.Context, rel resource.Relationship, resourceID, targetID string) error
}

type modelConfig struct {
	name      string
	codec     codec.Codec
	schema    *schema.Schema
	validator schema.Validator
	indexed   []resource.IndexableField
	logger    *slog.Logger
}

// ModelOption configures a registration.
type ModelOption func(*modelConfig)

// WithName sets the model name. Default: the Go type name.
func WithName(name string) ModelOption {
	return func(c *modelConfig) {
		c.name = name
	}
}

// WithIndexed declares payload paths projected into indexed data.
// Reference fields are indexed automatically.
func WithIndexed(fields ...resource.IndexableField) ModelOption {
	return func(c *modelConfig) {
		c.indexed = append(c.indexed, fields...)
	}
}

// WithSchema sets the schema version and migration graph. Its validator is
// used unless WithValidator is also given.
func WithSchema(s *schema.Schema) ModelOption {
	return func(c *modelConfig) {
		c.schema = s
	}
}

// WithValidator sets the validator run on every write and after migration.
func WithValidator(v schema.Validator) ModelOption {
	return func(c *modelConfig) {
		c.validator = v
	}
}

// WithCodec sets the payload encoding. Default: codec.JSON.
func WithCodec(c codec.Codec) ModelOption {
	return func(cfg *modelConfig) {
		cfg.codec = c
	}
}

// WithModelLogger sets the logger of this model.
func WithModelLogger(l *slog.Logger) ModelOption {
	return func(c *modelConfig) {
		c.logger = l
	}
}

// Register binds T to a model of e and returns its manager.
//
// T must be a struct, or a map with string keys for schemaless models.
// Reference fields and binary fields of struct types are discovered here;
// any declaration error is a CONFIGURATION error.
func Register[T any](e *Engine, opts ...ModelOption) (*ResourceManager[T], error) {
	typ := reflect.TypeFor[T]()
	cfg := modelConfig{
		name:   typ.Name(),
		codec:  codec.JSON,
		logger: e.logger,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	isMap := typ.Kind() == reflect.Map && typ.Key().Kind() == reflect.String
	if typ.Kind() != reflect.Struct && !isMap {
		return nil, resource.Configuration("payload type %s must be a struct or a map with string keys", typ)
	}
	if cfg.name == "" {
		return nil, resource.Configuration("payload type %s needs a model name", typ)
	}
	if cfg.codec == nil {
		return nil, resource.Configuration("model %q: codec is nil", cfg.name)
	}
	if cfg.validator == nil && cfg.schema != nil {
		cfg.validator = cfg.schema.Validator()
	}

	seen := map[string]bool{}
	for _, f := range cfg.indexed {
		if err := f.Validate(); err != nil {
			return nil, err
		}
		if seen[f.Path] {
			return nil, resource.Configuration("model %q: field %q is indexed twice", cfg.name, f.Path)
		}
		seen[f.Path] = true
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.models[cfg.name]; exists {
		return nil, resource.Configuration("model %q is already registered", cfg.name)
	}

	var refs []refint.Ref
	if !isMap {
		var err error
		if refs, err = e.registry.Register(cfg.name, typ); err != nil {
			return nil, err
		}
	}

	indexed := append([]resource.IndexableField(nil), cfg.indexed...)
	for _, ref := range refs {
		if seen[ref.Path] {
			continue
		}
		ft := resource.TypeString
		if ref.IsList {
			ft = resource.TypeList
		}
		indexed = append(indexed, resource.IndexableField{Path: ref.Path, Type: ft})
		seen[ref.Path] = true
	}

	metas, err := e.backend.MetaStore(cfg.name)
	if err != nil {
		return nil, err
	}
	revs, err := e.backend.RevisionStore(cfg.name)
	if err != nil {
		return nil, err
	}

	m := &model{
		name:      cfg.name,
		typ:       typ,
		codec:     cfg.codec,
		schema:    cfg.schema,
		validator: cfg.validator,
		indexed:   indexed,
		refs:      refs,
		binaries:  binary.HasBinaries(typ),
		metas:     metas,
		revs:      revs,
		logger:    cfg.logger.With("model", cfg.name),
	}
	rm := &ResourceManager[T]{e: e, m: m}
	e.models[cfg.name] = rm

	m.logger.Debug("model registered",
		"codec", m.codec.Name(),
		"schema_version", m.version(),
		"indexed", len(m.indexed),
		"references", len(refs),
		"binaries", m.binaries,
	)
	return rm, nil
}
