package manager

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/roach88/revstore/internal/backend"
	"github.com/roach88/revstore/internal/metrics"
	"github.com/roach88/revstore/internal/queryir"
	"github.com/roach88/revstore/internal/refint"
	"github.com/roach88/revstore/internal/resource"
)

// Operation names a manager operation. It labels metrics and is passed to
// the Authorizer.
type Operation string

const (
	OpCreate      Operation = "create"
	OpGet         Operation = "get"
	OpUpdate      Operation = "update"
	OpPatch       Operation = "patch"
	OpSwitch      Operation = "switch"
	OpDelete      Operation = "delete"
	OpRestore     Operation = "restore"
	OpSearch      Operation = "search"
	OpMigrate     Operation = "migrate"
	OpPropagation Operation = "propagation"
)

// Authorizer is consulted before every mutation. A non-nil error rejects
// the operation.
type Authorizer interface {
	Authorize(ctx context.Context, actor Actor, model string, op Operation, resourceID string) error
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, actor Actor, model string, op Operation, resourceID string) error

func (f AuthorizerFunc) Authorize(ctx context.Context, actor Actor, model string, op Operation, resourceID string) error {
	return f(ctx, actor, model, op, resourceID)
}

// Engine holds the backend and the registered models.
//
// Thread-safety: an Engine and its ResourceManagers are safe for concurrent
// use. Writes to one resource are linearised by compare-and-swap.
type Engine struct {
	backend  backend.Backend
	registry *refint.Registry
	ids      resource.IDGenerator
	now      func() time.Time
	logger   *slog.Logger
	metrics  *metrics.Metrics
	auth     Authorizer

	mu     sync.RWMutex
	models map[string]managed
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. Models inherit it unless registered
// with their own.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithIDGenerator sets the generator for resource, revision and write ids.
// Default: UUIDv7.
func WithIDGenerator(g resource.IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithClock sets the time source used by Using. Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithMetrics records operations on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithAuthorizer sets the capability check run before mutations.
func WithAuthorizer(a Authorizer) Option {
	return func(e *Engine) {
		e.auth = a
	}
}

// New creates an Engine over b.
func New(b backend.Backend, opts ...Option) *Engine {
	e := &Engine{
		backend: b,
		ids:     resource.UUIDv7Generator{},
		now:     time.Now,
		logger:  slog.Default(),
		models:  map[string]managed{},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.registry = refint.NewRegistry(e.logger)
	return e
}

// Backend returns the engine backend.
func (e *Engine) Backend() backend.Backend {
	return e.backend
}

// Models returns the registered model names in sorted order.
func (e *Engine) Models() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.models))
	for name := range e.models {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Relationships returns every relationship between registered models.
func (e *Engine) Relationships() []resource.Relationship {
	return e.registry.Relationships()
}

// CascadeCycles reports cycles in the cascade graph.
func (e *Engine) CascadeCycles() []refint.CycleWarning {
	return e.registry.CascadeCycles()
}

func (e *Engine) lookup(model string) (managed, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	m, ok := e.models[model]
	if !ok {
		return nil, resource.Configuration("model %q is not registered", model)
	}
	return m, nil
}

// propagator gives refint access to every registered model.
type propagator struct {
	e *Engine
}

var _ refint.Store = propagator{}

func (p propagator) Search(ctx context.Context, model string, q queryir.SearchQuery) ([]string, error) {
	m, err := p.e.lookup(model)
	if err != nil {
		return nil, err
	}
	metas, err := backend.Collect(m.info().metas.IterSearch(ctx, q))
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", model, err)
	}
	ids := make([]string, len(metas))
	for i, meta := range metas {
		ids[i] = meta.ResourceID
	}
	return ids, nil
}

func (p propagator) Delete(ctx context.Context, model, resourceID string, visited refint.Visited) error {
	m, err := p.e.lookup(model)
	if err != nil {
		return err
	}
	return m.deleteVisited(ctx, resourceID, visited)
}

func (p propagator) ClearReference(ctx context.Context, rel resource.Relationship, resourceID, targetID string) error {
	m, err := p.e.lookup(rel.SourceType)
	if err != nil {
		return err
	}
	return m.clearReference(ctx, rel, resourceID, targetID)
}
