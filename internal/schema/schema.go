// Package schema holds the version graph used to bring stored payloads up
// to a model's current schema version, and the validators run on every
// write and after every migration.
//
// Versions are opaque strings. Steps are edges from one version to another;
// AddChain and Legacy only add edges, so several chains merge into a single
// graph. On read, the shortest path (fewest steps) from the stored version
// to the target is applied in order.
package schema

import (
	"fmt"

	"github.com/roach88/revstore/internal/codec"
	"github.com/roach88/revstore/internal/resource"
)

// MigrateFunc transforms one encoded payload into the next version.
// Returning []byte hands back encoded bytes as they are; any other value is
// encoded with the model's codec before the next step runs.
type MigrateFunc func(data []byte) (any, error)

// Step is one edge of the version graph.
type Step struct {
	From string
	To   string
	Fn   MigrateFunc
}

// Schema is the version graph of one model.
//
// Thread-safety: a Schema is built at registration and read-only after;
// concurrent Resolve and Migrate calls are safe once building is done.
type Schema struct {
	target    string
	edges     map[string][]Step
	validator Validator
}

// New creates an empty graph converging on target.
func New(target string) *Schema {
	return &Schema{target: target, edges: map[string][]Step{}}
}

// Target returns the version every payload is migrated to.
func (s *Schema) Target() string {
	return s.target
}

// WithValidator sets the validator run by Validate.
func (s *Schema) WithValidator(v Validator) *Schema {
	s.validator = v
	return s
}

// Validator returns the configured validator, or nil.
func (s *Schema) Validator() Validator {
	return s.validator
}

// AddChain adds a sequence of steps. A step without To leads to the next
// step's From; the last step leads to the target.
func (s *Schema) AddChain(steps ...Step) error {
	resolved := make([]Step, len(steps))
	for i, step := range steps {
		if step.From == "" {
			return resource.Configuration("schema %s: chain step %d has no source version", s.target, i)
		}
		if step.Fn == nil {
			return resource.Configuration("schema %s: step from %q has no function", s.target, step.From)
		}
		if step.To == "" {
			if i+1 < len(steps) {
				step.To = steps[i+1].From
			} else {
				step.To = s.target
			}
		}
		resolved[i] = step
	}
	for _, step := range resolved {
		if err := s.addEdge(step); err != nil {
			return err
		}
	}
	return nil
}

// Legacy adds a single step from an old version straight to the target.
// An empty from matches payloads stored without a schema version.
func (s *Schema) Legacy(from string, fn MigrateFunc) error {
	if fn == nil {
		return resource.Configuration("schema %s: legacy step from %q has no function", s.target, from)
	}
	return s.addEdge(Step{From: from, To: s.target, Fn: fn})
}

func (s *Schema) addEdge(step Step) error {
	if step.From == step.To {
		return resource.Configuration("schema %s: step from %q leads to itself", s.target, step.From)
	}
	for _, e := range s.edges[step.From] {
		if e.To == step.To {
			return resource.Configuration("schema %s: duplicate step %q -> %q", s.target, step.From, step.To)
		}
	}
	s.edges[step.From] = append(s.edges[step.From], step)
	return nil
}

// Resolve returns the shortest chain of steps from version from to the
// target. Equal versions need no steps. Ties between equally short paths
// go to the edge added first.
func (s *Schema) Resolve(from string) ([]Step, error) {
	if from == s.target {
		return nil, nil
	}

	prev := map[string]Step{}
	visited := map[string]bool{from: true}
	queue := []string{from}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for _, e := range s.edges[v] {
			if visited[e.To] {
				continue
			}
			visited[e.To] = true
			prev[e.To] = e
			if e.To == s.target {
				return path(prev, from, s.target), nil
			}
			queue = append(queue, e.To)
		}
	}
	return nil, resource.MigrationPath(from, s.target)
}

func path(prev map[string]Step, from, to string) []Step {
	var out []Step
	for v := to; v != from; v = prev[v].From {
		out = append(out, prev[v])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// NeedsMigration reports whether a payload stored at version must be
// migrated before it can be decoded.
func (s *Schema) NeedsMigration(version string) bool {
	return version != s.target
}

// Migrate brings data from version from up to the target.
func (s *Schema) Migrate(c codec.Codec, from string, data []byte) ([]byte, error) {
	steps, err := s.Resolve(from)
	if err != nil {
		return nil, err
	}
	for _, step := range steps {
		out, err := step.Fn(data)
		if err != nil {
			return nil, fmt.Errorf("migrate %q -> %q: %w", step.From, step.To, err)
		}
		switch v := out.(type) {
		case []byte:
			data = v
		default:
			if data, err = c.Marshal(v); err != nil {
				return nil, fmt.Errorf("migrate %q -> %q: encode: %w", step.From, step.To, err)
			}
		}
	}
	return data, nil
}

// Validate decodes data generically and runs the validator, if any.
func (s *Schema) Validate(c codec.Codec, data []byte) error {
	if s.validator == nil {
		return nil
	}
	doc, err := codec.Document(c, data)
	if err != nil {
		return err
	}
	return s.validator.Validate(doc)
}

// Doc adapts a function over decoded documents into a MigrateFunc.
//
//	schema.Doc(codec.JSON, func(doc map[string]any) (any, error) {
//		doc["hp"] = doc["health"]
//		delete(doc, "health")
//		return doc, nil
//	})
func Doc(c codec.Codec, fn func(doc map[string]any) (any, error)) MigrateFunc {
	return func(data []byte) (any, error) {
		var doc map[string]any
		if err := c.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode %s document: %w", c.Name(), err)
		}
		return fn(doc)
	}
}
