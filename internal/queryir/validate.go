package queryir

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/revstore/internal/ir"
	"github.com/roach88/revstore/internal/resource"
)

// fieldPathPattern restricts field paths to characters that are safe to
// embed in backend path expressions.
var fieldPathPattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)

// ValidField reports whether path is an acceptable field path.
func ValidField(path string) bool {
	return fieldPathPattern.MatchString(path) &&
		!strings.HasPrefix(path, ".") && !strings.HasSuffix(path, ".") &&
		!strings.Contains(path, "..")
}

// Validate checks a query for structural errors: unknown operators,
// malformed field paths, operands of the wrong type and regular
// expressions that do not compile.
//
// Validate is a pure function with no side effects. The returned error is a
// VALIDATION *resource.Error listing every problem found.
func Validate(q SearchQuery) error {
	v := &validator{}

	switch q.Deleted {
	case "", Live, Deleted, All:
	default:
		v.addError("unknown deletion state %q", q.Deleted)
	}
	if q.Limit < 0 {
		v.addError("limit must not be negative")
	}
	if q.Offset < 0 {
		v.addError("offset must not be negative")
	}
	for i, key := range q.Sort {
		if !ValidField(key.Field) {
			v.addError("sort[%d]: invalid field path %q", i, key.Field)
		}
	}
	if q.Filter != nil {
		v.validatePredicate("filter", q.Filter)
	}

	if len(v.errs) == 0 {
		return nil
	}
	return &resource.Error{
		Code:    resource.CodeValidation,
		Message: "invalid search query",
		Err:     errors.Join(v.errs...),
	}
}

// validator accumulates errors during traversal.
type validator struct {
	errs []error
}

func (v *validator) addError(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf(format, args...))
}

func (v *validator) validatePredicate(at string, p Predicate) {
	switch pred := Unwrap(p).(type) {
	case Condition:
		v.validateCondition(at, pred)
	case Group:
		v.validateGroup(at, pred)
	case nil:
		v.addError("%s: nil predicate", at)
	default:
		v.addError("%s: unknown predicate type %T", at, p)
	}
}

func (v *validator) validateGroup(at string, g Group) {
	switch g.Op {
	case GroupAnd, GroupOr, GroupNot:
	default:
		v.addError("%s: unknown group operator %q", at, g.Op)
	}
	for i, child := range g.Children {
		v.validatePredicate(fmt.Sprintf("%s.%s[%d]", at, g.Op, i), child)
	}
}

func (v *validator) validateCondition(at string, c Condition) {
	at = fmt.Sprintf("%s(%s %s)", at, c.Field, c.Op)

	if !ValidField(c.Field) {
		v.addError("%s: invalid field path %q", at, c.Field)
	}
	switch c.Transform {
	case NoTransform, Length:
	default:
		v.addError("%s: unknown transform %q", at, c.Transform)
	}
	if !c.Op.Valid() {
		v.addError("%s: unknown operator", at)
		return
	}
	if c.Value == nil {
		v.addError("%s: missing value", at)
		return
	}

	switch c.Op {
	case OpGt, OpGte, OpLt, OpLte:
		if _, ok := ir.Number(c.Value); !ok {
			if _, ok := c.Value.(ir.IRString); !ok {
				v.addError("%s: operand must be a number or string, got %s", at, ir.TypeName(c.Value))
			}
		}
	case OpStartsWith, OpEndsWith:
		if _, ok := c.Value.(ir.IRString); !ok {
			v.addError("%s: operand must be a string, got %s", at, ir.TypeName(c.Value))
		}
	case OpRegex:
		s, ok := c.Value.(ir.IRString)
		if !ok {
			v.addError("%s: operand must be a string, got %s", at, ir.TypeName(c.Value))
			return
		}
		if _, err := regexp.Compile(string(s)); err != nil {
			v.addError("%s: %v", at, err)
		}
	case OpInList, OpNotInList:
		if _, ok := c.Value.(ir.IRArray); !ok {
			v.addError("%s: operand must be a list, got %s", at, ir.TypeName(c.Value))
		}
	case OpIsNull, OpExists:
		if _, ok := c.Value.(ir.IRBool); !ok {
			v.addError("%s: operand must be a boolean, got %s", at, ir.TypeName(c.Value))
		}
		if c.Transform != NoTransform {
			v.addError("%s: transform is not allowed", at)
		}
	}
}
