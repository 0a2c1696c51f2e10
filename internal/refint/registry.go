package refint

import (
	"log/slog"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/revstore/internal/resource"
)

// Registry records the reference fields of every registered model.
//
// Thread-safety: all methods are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	models map[string][]Ref
	names  map[reflect.Type]string
	warned map[string]bool
	cycles map[string]bool
	logger *slog.Logger
}

// NewRegistry creates an empty registry. A nil logger uses slog.Default().
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		models: map[string][]Ref{},
		names:  map[reflect.Type]string{},
		warned: map[string]bool{},
		cycles: map[string]bool{},
		logger: logger,
	}
}

// Register discovers the references of t and records them under name.
// References to types that are not registered yet are logged once; cascade
// cycles formed by the new model are logged as warnings.
func (r *Registry) Register(name string, t reflect.Type) ([]Ref, error) {
	refs, err := Discover(t)
	if err != nil {
		return nil, err
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.models[name]; exists {
		return nil, resource.Configuration("model %q is already registered", name)
	}
	if other, exists := r.names[t]; exists {
		return nil, resource.Configuration("type %s is already registered as %q", t, other)
	}
	r.models[name] = refs
	r.names[t] = name

	for _, ref := range refs {
		if _, known := r.names[ref.Target]; known {
			continue
		}
		key := name + "." + ref.Path
		if r.warned[key] {
			continue
		}
		r.warned[key] = true
		r.logger.Warn("reference to unregistered type",
			"model", name,
			"field", ref.Path,
			"target", ref.Target.String(),
		)
	}

	for _, w := range AnalyzeCascades(r.relationshipsLocked()) {
		key := strings.Join(w.Path, "/")
		if r.cycles[key] {
			continue
		}
		r.cycles[key] = true
		r.logger.Warn("cascade cycle between models", "path", w.Path, "message", w.Message)
	}

	return slices.Clone(refs), nil
}

// ModelOf returns the model name t was registered under.
func (r *Registry) ModelOf(t reflect.Type) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.names[t]
	return name, ok
}

// Refs returns the reference fields of model.
func (r *Registry) Refs(model string) []Ref {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.models[model])
}

// Outgoing returns the relationships declared by model whose target is
// registered.
func (r *Registry) Outgoing(model string) []resource.Relationship {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []resource.Relationship
	for _, rel := range r.relationshipsLocked() {
		if rel.SourceType == model {
			out = append(out, rel)
		}
	}
	return out
}

// Dependents returns the relationships targeting model, ordered by source
// model and then field declaration order.
func (r *Registry) Dependents(model string) []resource.Relationship {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []resource.Relationship
	for _, rel := range r.relationshipsLocked() {
		if rel.TargetType == model {
			out = append(out, rel)
		}
	}
	return out
}

// Relationships returns every relationship whose target is registered,
// ordered like Dependents.
func (r *Registry) Relationships() []resource.Relationship {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.relationshipsLocked()
}

// CascadeCycles analyses the current cascade graph.
func (r *Registry) CascadeCycles() []CycleWarning {
	return AnalyzeCascades(r.Relationships())
}

func (r *Registry) relationshipsLocked() []resource.Relationship {
	models := make([]string, 0, len(r.models))
	for m := range r.models {
		models = append(models, m)
	}
	slices.Sort(models)

	var out []resource.Relationship
	for _, m := range models {
		for _, ref := range r.models[m] {
			target, ok := r.names[ref.Target]
			if !ok {
				continue
			}
			out = append(out, resource.Relationship{
				SourceType:  m,
				SourceField: ref.Path,
				TargetType:  target,
				Kind:        ref.Kind,
				OnDelete:    ref.OnDelete,
				Nullable:    ref.Nullable,
				IsList:      ref.IsList,
			})
		}
	}
	return out
}
