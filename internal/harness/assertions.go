package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/roach88/revstore/internal/config"
	"github.com/roach88/revstore/internal/ir"
	"github.com/roach88/revstore/internal/manager"
	"github.com/roach88/revstore/internal/queryir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %s %s/%s -> %s\n", i+1, ev.Phase, ev.Op, ev.Model, ev.ResourceID, ev.Outcome)
	}

	return buf.String()
}

// AssertionContext gives assertions access to the final state.
type AssertionContext struct {
	Ctx      context.Context
	Engine   *manager.Engine
	Managers config.Managers
}

// EvaluateAssertions runs every assertion and returns the failure
// messages. An empty result means all assertions passed.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result.Trace, a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %s", i, err.Error()))
		}
	}
	return errs
}

func evaluate(trace []TraceEvent, a Assertion, actx *AssertionContext) error {
	fail := func(expected, actual string) error {
		return &AssertionError{Type: a.Type, Expected: expected, Actual: actual, Trace: trace}
	}

	if a.Type == AssertConsistent {
		found, err := actx.Engine.Verify(actx.Ctx)
		if err != nil {
			return fail("no inconsistencies", err.Error())
		}
		if len(found) > 0 {
			problems := make([]string, len(found))
			for i, inc := range found {
				problems[i] = fmt.Sprintf("%s/%s: %s", inc.Model, inc.ResourceID, inc.Problem)
			}
			return fail("no inconsistencies", strings.Join(problems, "; "))
		}
		return nil
	}

	rm, ok := actx.Managers[a.Model]
	if !ok {
		return fail(fmt.Sprintf("model %s", a.Model), "model is not registered")
	}

	switch a.Type {
	case AssertMeta:
		meta, err := rm.GetMeta(actx.Ctx, a.ID, manager.IncludeDeleted())
		if err != nil {
			return fail(fmt.Sprintf("meta of %s/%s", a.Model, a.ID), err.Error())
		}
		actual, err := toDocument(meta)
		if err != nil {
			return err
		}
		if diff := matchSubset(a.Expect, actual); diff != "" {
			return fail(fmt.Sprintf("meta of %s/%s matching %v", a.Model, a.ID, a.Expect), diff)
		}

	case AssertPayload:
		res, err := rm.Get(actx.Ctx, a.ID, manager.IncludeDeleted())
		if err != nil {
			return fail(fmt.Sprintf("payload of %s/%s", a.Model, a.ID), err.Error())
		}
		if diff := matchSubset(a.Expect, res.Data); diff != "" {
			return fail(fmt.Sprintf("payload of %s/%s matching %v", a.Model, a.ID, a.Expect), diff)
		}

	case AssertRevisions:
		infos, err := rm.ListRevisions(actx.Ctx, a.ID, manager.IncludeDeleted())
		if err != nil {
			return fail(fmt.Sprintf("%d revisions of %s/%s", *a.Count, a.Model, a.ID), err.Error())
		}
		if len(infos) != *a.Count {
			return fail(fmt.Sprintf("%d revisions of %s/%s", *a.Count, a.Model, a.ID), fmt.Sprintf("%d revisions", len(infos)))
		}

	case AssertCount:
		q, err := parseQuery(a.Query)
		if err != nil {
			return err
		}
		n, err := rm.Count(actx.Ctx, q)
		if err != nil {
			return fail(fmt.Sprintf("%d matches in %s", *a.Count, a.Model), err.Error())
		}
		if n != *a.Count {
			return fail(fmt.Sprintf("%d matches in %s", *a.Count, a.Model), fmt.Sprintf("%d matches", n))
		}

	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// parseQuery re-encodes a scenario query map and parses it like a query
// file.
func parseQuery(query map[string]any) (queryir.SearchQuery, error) {
	if len(query) == 0 {
		return queryir.SearchQuery{}, nil
	}
	data, err := yaml.Marshal(query)
	if err != nil {
		return queryir.SearchQuery{}, fmt.Errorf("encode query: %w", err)
	}
	return queryir.ParseYAML(data)
}

// toDocument converts v to its generic JSON form.
func toDocument(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// matchSubset checks that every key of expected is present in actual with
// an equal value. Nested objects are matched as subsets too; everything
// else, lists included, must be equal. Numbers compare by value. It
// returns a description of the first mismatch, or "" on success.
func matchSubset(expected, actual map[string]any) string {
	return matchSubsetAt("", expected, actual)
}

func matchSubsetAt(prefix string, expected, actual map[string]any) string {
	keys := make([]string, 0, len(expected))
	for k := range expected {
		keys = append(keys, k)
	}
	sort.Strings(keys) // deterministic error messages

	for _, k := range keys {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		want := expected[k]
		got, ok := actual[k]
		if !ok {
			return fmt.Sprintf("%s: missing", path)
		}

		if wantObj, ok := want.(map[string]any); ok {
			gotObj, ok := got.(map[string]any)
			if !ok {
				return fmt.Sprintf("%s: expected an object, got %T", path, got)
			}
			if diff := matchSubsetAt(path, wantObj, gotObj); diff != "" {
				return diff
			}
			continue
		}

		wantIR, err := ir.FromGo(want)
		if err != nil {
			return fmt.Sprintf("%s: %v", path, err)
		}
		gotIR, err := ir.FromGo(got)
		if err != nil {
			return fmt.Sprintf("%s: %v", path, err)
		}
		if !ir.Equal(wantIR, gotIR) {
			return fmt.Sprintf("%s: expected %s, got %s", path, ir.Stringify(wantIR), ir.Stringify(gotIR))
		}
	}
	return ""
}
