package conformance

import (
	"context"
	_ "embed"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/revstore/internal/backend"
	"github.com/roach88/revstore/internal/queryeval"
	"github.com/roach88/revstore/internal/queryir"
	"github.com/roach88/revstore/internal/resource"
)

//go:embed cases.yaml
var builtinCases []byte

// Case is one query of the corpus.
type Case struct {
	Name  string
	Query queryir.SearchQuery
}

type caseFile struct {
	Cases []struct {
		Name  string    `yaml:"name"`
		Query yaml.Node `yaml:"query"`
	} `yaml:"cases"`
}

// LoadCases parses a YAML case file.
func LoadCases(data []byte) ([]Case, error) {
	var file caseFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse cases: %w", err)
	}

	out := make([]Case, 0, len(file.Cases))
	for i, c := range file.Cases {
		raw, err := yaml.Marshal(&c.Query)
		if err != nil {
			return nil, fmt.Errorf("case %d (%s): %w", i, c.Name, err)
		}
		q, err := queryir.ParseYAML(raw)
		if err != nil {
			return nil, fmt.Errorf("case %d (%s): %w", i, c.Name, err)
		}
		out = append(out, Case{Name: c.Name, Query: q})
	}
	return out, nil
}

// Cases returns the built-in corpus.
//
// Panics if the embedded file is invalid.
func Cases() []Case {
	cases, err := LoadCases(builtinCases)
	if err != nil {
		panic(fmt.Sprintf("conformance: builtin cases: %v", err))
	}
	return cases
}

// Result is the outcome of a conformance run.
type Result struct {
	// Pass is true when every case matched the evaluator.
	Pass bool

	// Errors lists one message per mismatch.
	Errors []string

	// Checked is the number of cases executed.
	Checked int
}

func (r *Result) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// Seed stores every meta of dataset in store as a new resource.
func Seed(ctx context.Context, store backend.MetaStore, dataset []*resource.ResourceMeta) error {
	for _, meta := range dataset {
		if err := store.CompareAndSwap(ctx, meta.Clone(), 0); err != nil {
			return fmt.Errorf("seed %s: %w", meta.ResourceID, err)
		}
	}
	return nil
}

// Run seeds store with dataset and checks every case. Store errors abort
// the run; mismatches are collected in the result.
func Run(ctx context.Context, store backend.MetaStore, dataset []*resource.ResourceMeta, cases []Case) (*Result, error) {
	if err := Seed(ctx, store, dataset); err != nil {
		return nil, err
	}

	result := &Result{Pass: true}
	for _, c := range cases {
		if err := check(ctx, store, dataset, c, result); err != nil {
			return nil, fmt.Errorf("case %q: %w", c.Name, err)
		}
		result.Checked++
	}
	return result, nil
}

func check(ctx context.Context, store backend.MetaStore, dataset []*resource.ResourceMeta, c Case, result *Result) error {
	m, err := queryeval.Compile(c.Query)
	if err != nil {
		return err
	}
	want := ids(m.Apply(dataset))

	got, err := backend.Collect(store.IterSearch(ctx, c.Query))
	if err != nil {
		return err
	}
	gotIDs := ids(got)

	if !sameSet(want, gotIDs) {
		result.addError("%s: got %v, want %v", c.Name, gotIDs, want)
	}
	if len(c.Query.Sort) > 0 {
		for i := 1; i < len(got); i++ {
			if sortedBefore(got[i], got[i-1], c.Query.Sort) {
				result.addError("%s: %s returned after %s breaks sort order", c.Name, got[i].ResourceID, got[i-1].ResourceID)
				break
			}
		}
	}

	unpaged := c.Query
	unpaged.Limit, unpaged.Offset = 0, 0
	um, err := queryeval.Compile(unpaged)
	if err != nil {
		return err
	}
	wantCount := len(um.Apply(dataset))
	count, err := store.Count(ctx, c.Query)
	if err != nil {
		return err
	}
	if count != wantCount {
		result.addError("%s: count %d, want %d", c.Name, count, wantCount)
	}
	return nil
}

// sortedBefore reports whether a strictly precedes b under keys, ignoring
// the resource id tie breaker.
func sortedBefore(a, b *resource.ResourceMeta, keys []queryir.SortKey) bool {
	for _, key := range keys {
		av, aok := a.Field(key.Field)
		bv, bok := b.Field(key.Field)
		c := queryeval.CompareValues(av, aok, bv, bok)
		if key.Desc {
			c = -c
		}
		if c != 0 {
			return c < 0
		}
	}
	return false
}

func ids(metas []*resource.ResourceMeta) []string {
	out := make([]string, len(metas))
	for i, m := range metas {
		out[i] = m.ResourceID
	}
	return out
}

func sameSet(a, b []string) bool {
	a, b = slices.Clone(a), slices.Clone(b)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}
