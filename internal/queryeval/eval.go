package queryeval

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/roach88/revstore/internal/ir"
	"github.com/roach88/revstore/internal/queryir"
	"github.com/roach88/revstore/internal/resource"
)

// Matcher evaluates one validated query. Regular expressions are compiled
// once, so a Matcher is cheap to apply across a full scan.
//
// Thread-safety: a Matcher is immutable after Compile and safe for
// concurrent use.
type Matcher struct {
	query   queryir.SearchQuery
	regexes map[string]*regexp.Regexp
}

// Compile validates q and prepares it for evaluation.
func Compile(q queryir.SearchQuery) (*Matcher, error) {
	if err := queryir.Validate(q); err != nil {
		return nil, err
	}
	m := &Matcher{query: q, regexes: map[string]*regexp.Regexp{}}
	if err := m.compileRegexes(q.Filter); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Matcher) compileRegexes(p queryir.Predicate) error {
	switch pred := queryir.Unwrap(p).(type) {
	case queryir.Condition:
		if pred.Op != queryir.OpRegex {
			return nil
		}
		pattern := string(pred.Value.(ir.IRString))
		if _, ok := m.regexes[pattern]; ok {
			return nil
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("compile regex %q: %w", pattern, err)
		}
		m.regexes[pattern] = re
	case queryir.Group:
		for _, child := range pred.Children {
			if err := m.compileRegexes(child); err != nil {
				return err
			}
		}
	}
	return nil
}

// Query returns the query the matcher was compiled from.
func (m *Matcher) Query() queryir.SearchQuery {
	return m.query
}

// Match reports whether meta satisfies the base filters and the predicate.
func (m *Matcher) Match(meta *resource.ResourceMeta) bool {
	return m.MatchBase(meta) && (m.query.Filter == nil || m.eval(meta, m.query.Filter))
}

// MatchBase applies only the base filters: deletion state, time ranges and
// actor lists.
func (m *Matcher) MatchBase(meta *resource.ResourceMeta) bool {
	q := m.query
	switch q.DeletionState() {
	case queryir.Live:
		if meta.IsDeleted {
			return false
		}
	case queryir.Deleted:
		if !meta.IsDeleted {
			return false
		}
	}
	if !q.CreatedTime.Contains(meta.CreatedTime) || !q.UpdatedTime.Contains(meta.UpdatedTime) {
		return false
	}
	if len(q.CreatedBy) > 0 && !slices.Contains(q.CreatedBy, meta.CreatedBy) {
		return false
	}
	if len(q.UpdatedBy) > 0 && !slices.Contains(q.UpdatedBy, meta.UpdatedBy) {
		return false
	}
	return true
}

func (m *Matcher) eval(meta *resource.ResourceMeta, p queryir.Predicate) bool {
	switch pred := queryir.Unwrap(p).(type) {
	case queryir.Condition:
		return m.evalCondition(meta, pred)
	case queryir.Group:
		switch pred.Op {
		case queryir.GroupOr:
			for _, child := range pred.Children {
				if m.eval(meta, child) {
					return true
				}
			}
			return false
		case queryir.GroupNot:
			return !m.all(meta, pred.Children)
		default:
			return m.all(meta, pred.Children)
		}
	default:
		return false
	}
}

func (m *Matcher) all(meta *resource.ResourceMeta, children []queryir.Predicate) bool {
	for _, child := range children {
		if !m.eval(meta, child) {
			return false
		}
	}
	return true
}

func (m *Matcher) evalCondition(meta *resource.ResourceMeta, c queryir.Condition) bool {
	v, present := Resolve(meta, c.Field, c.Transform)

	switch c.Op {
	case queryir.OpNe:
		return !(present && ir.Equal(v, c.Value))
	case queryir.OpNotInList:
		return !(present && inList(v, c.Value))
	case queryir.OpExists:
		return present == bool(c.Value.(ir.IRBool))
	}

	if !present {
		return false
	}

	switch c.Op {
	case queryir.OpEq:
		return ir.Equal(v, c.Value)
	case queryir.OpGt:
		cmp, ok := compareOrdered(v, c.Value)
		return ok && cmp > 0
	case queryir.OpGte:
		cmp, ok := compareOrdered(v, c.Value)
		return ok && cmp >= 0
	case queryir.OpLt:
		cmp, ok := compareOrdered(v, c.Value)
		return ok && cmp < 0
	case queryir.OpLte:
		cmp, ok := compareOrdered(v, c.Value)
		return ok && cmp <= 0
	case queryir.OpContains:
		return contains(v, c.Value)
	case queryir.OpStartsWith:
		s, ok := v.(ir.IRString)
		return ok && strings.HasPrefix(string(s), string(c.Value.(ir.IRString)))
	case queryir.OpEndsWith:
		s, ok := v.(ir.IRString)
		return ok && strings.HasSuffix(string(s), string(c.Value.(ir.IRString)))
	case queryir.OpInList:
		return inList(v, c.Value)
	case queryir.OpRegex:
		if _, isNull := v.(ir.IRNull); isNull {
			return false
		}
		re := m.regexes[string(c.Value.(ir.IRString))]
		return re != nil && re.MatchString(ir.Stringify(v))
	case queryir.OpIsNull:
		_, isNull := v.(ir.IRNull)
		return isNull == bool(c.Value.(ir.IRBool))
	default:
		return false
	}
}

// Resolve returns the value of a field path for meta after applying the
// transform. The boolean is false when the field is absent, including
// when the transform does not apply to the value's type.
func Resolve(meta *resource.ResourceMeta, path string, t queryir.Transform) (ir.IRValue, bool) {
	v, ok := meta.Field(path)
	if !ok {
		return nil, false
	}
	if t != queryir.Length {
		return v, true
	}
	switch val := v.(type) {
	case ir.IRString:
		return ir.IRInt(utf8.RuneCountInString(string(val))), true
	case ir.IRArray:
		return ir.IRInt(len(val)), true
	case ir.IRObject:
		return ir.IRInt(len(val)), true
	default:
		return nil, false
	}
}

// compareOrdered compares two numbers or two strings. ok is false for any
// other combination.
func compareOrdered(a, b ir.IRValue) (int, bool) {
	if as, ok := a.(ir.IRString); ok {
		bs, ok := b.(ir.IRString)
		if !ok {
			return 0, false
		}
		return strings.Compare(string(as), string(bs)), true
	}
	return compareNumbers(a, b)
}

func compareNumbers(a, b ir.IRValue) (int, bool) {
	return ir.CompareNumbers(a, b)
}

func contains(v, lit ir.IRValue) bool {
	switch val := v.(type) {
	case ir.IRString:
		s, ok := lit.(ir.IRString)
		return ok && strings.Contains(string(val), string(s))
	case ir.IRArray:
		for _, elem := range val {
			if ir.Equal(elem, lit) {
				return true
			}
		}
	}
	return false
}

func inList(v, list ir.IRValue) bool {
	items, _ := list.(ir.IRArray)
	for _, item := range items {
		if ir.Equal(v, item) {
			return true
		}
	}
	return false
}
