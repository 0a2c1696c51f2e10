package queryir

import (
	"time"

	"github.com/roach88/revstore/internal/ir"
)

// Predicate is a node of the filter tree.
//
// This is a sealed interface - only Condition and Group implement it.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Op is a leaf comparison operator.
type Op string

const (
	OpEq         Op = "eq"
	OpNe         Op = "ne"
	OpGt         Op = "gt"
	OpGte        Op = "gte"
	OpLt         Op = "lt"
	OpLte        Op = "lte"
	OpContains   Op = "contains"
	OpStartsWith Op = "starts_with"
	OpEndsWith   Op = "ends_with"
	OpInList     Op = "in_list"
	OpNotInList  Op = "not_in_list"
	OpRegex      Op = "regex"
	OpIsNull     Op = "is_null"
	OpExists     Op = "exists"
)

// Ops lists every operator in declaration order.
var Ops = []Op{
	OpEq, OpNe, OpGt, OpGte, OpLt, OpLte,
	OpContains, OpStartsWith, OpEndsWith,
	OpInList, OpNotInList, OpRegex, OpIsNull, OpExists,
}

// Valid reports whether op is a known operator.
func (op Op) Valid() bool {
	for _, known := range Ops {
		if op == known {
			return true
		}
	}
	return false
}

// Transform is applied to the resolved field value before the operator.
type Transform string

const (
	// NoTransform compares the field value as stored.
	NoTransform Transform = ""

	// Length replaces strings by their rune count, lists by their item
	// count and maps by their key count. Other values become absent.
	Length Transform = "length"
)

// Condition compares one field against a literal.
//
// Semantics:
//
//	<transform>(<field>) <op> <value>
//
// An absent field never satisfies a positive comparison. ne and not_in_list
// are the exact negations of eq and in_list, so they match absent fields.
// is_null and exists take a boolean literal:
//
//	Condition{Field: "guild_id", Op: OpIsNull, Value: ir.IRBool(true)}
//
// matches resources whose guild_id is present and null.
type Condition struct {
	Field     string     // meta field name or indexed path
	Op        Op         // comparison operator
	Value     ir.IRValue // literal operand
	Transform Transform  // optional transform (default none)
}

func (Condition) predicateNode() {}

// GroupOp combines the children of a Group.
type GroupOp string

const (
	GroupAnd GroupOp = "and"
	GroupOr  GroupOp = "or"
	GroupNot GroupOp = "not"
)

// Group composes child predicates.
//
// and is true when every child is true (vacuously true when empty), or is
// true when any child is true (false when empty), not negates the
// conjunction of its children.
type Group struct {
	Op       GroupOp
	Children []Predicate
}

func (Group) predicateNode() {}

// DeletionState selects resources by soft-delete status.
type DeletionState string

const (
	// Live selects resources that are not deleted. It is the default.
	Live DeletionState = "live"

	// Deleted selects only soft-deleted resources.
	Deleted DeletionState = "deleted"

	// All disables the deletion filter.
	All DeletionState = "all"
)

// TimeRange bounds a timestamp. From is inclusive, To is exclusive and a
// zero bound is open.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// IsZero reports whether the range is unbounded on both sides.
func (r TimeRange) IsZero() bool {
	return r.From.IsZero() && r.To.IsZero()
}

// Contains reports whether t falls inside the range.
func (r TimeRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && !t.Before(r.To) {
		return false
	}
	return true
}

// SortKey orders results by one field.
type SortKey struct {
	Field string
	Desc  bool
}

// SearchQuery is the complete search request for one resource type.
type SearchQuery struct {
	CreatedTime TimeRange
	UpdatedTime TimeRange
	CreatedBy   []string
	UpdatedBy   []string
	Deleted     DeletionState // empty means Live

	Filter Predicate // nil matches everything
	Sort   []SortKey

	// Limit and Offset apply after filtering and sorting. Zero Limit means
	// no limit.
	Limit  int
	Offset int
}

// DeletionState returns the effective deletion filter.
func (q SearchQuery) DeletionState() DeletionState {
	if q.Deleted == "" {
		return Live
	}
	return q.Deleted
}

// Condition constructors. Values are converted with ir.MustFromGo, so they
// accept plain Go literals and panic on unsupported types.

func Eq(field string, v any) Condition       { return cond(field, OpEq, v) }
func Ne(field string, v any) Condition       { return cond(field, OpNe, v) }
func Gt(field string, v any) Condition       { return cond(field, OpGt, v) }
func Gte(field string, v any) Condition      { return cond(field, OpGte, v) }
func Lt(field string, v any) Condition       { return cond(field, OpLt, v) }
func Lte(field string, v any) Condition      { return cond(field, OpLte, v) }
func Contains(field string, v any) Condition { return cond(field, OpContains, v) }

func StartsWith(field, prefix string) Condition { return cond(field, OpStartsWith, prefix) }
func EndsWith(field, suffix string) Condition   { return cond(field, OpEndsWith, suffix) }
func Regex(field, pattern string) Condition     { return cond(field, OpRegex, pattern) }
func IsNull(field string, want bool) Condition  { return cond(field, OpIsNull, want) }
func Exists(field string, want bool) Condition  { return cond(field, OpExists, want) }

func InList(field string, values ...any) Condition    { return cond(field, OpInList, values) }
func NotInList(field string, values ...any) Condition { return cond(field, OpNotInList, values) }

func cond(field string, op Op, v any) Condition {
	return Condition{Field: field, Op: op, Value: ir.MustFromGo(v)}
}

// WithTransform returns a copy of c with the transform set.
func (c Condition) WithTransform(t Transform) Condition {
	c.Transform = t
	return c
}

// And returns a conjunction.
func And(children ...Predicate) Group { return Group{Op: GroupAnd, Children: children} }

// Or returns a disjunction.
func Or(children ...Predicate) Group { return Group{Op: GroupOr, Children: children} }

// Not returns the negated conjunction of children.
func Not(children ...Predicate) Group { return Group{Op: GroupNot, Children: children} }

// Unwrap dereferences *Condition and *Group so callers can switch over value
// types only. A nil pointer yields nil.
func Unwrap(p Predicate) Predicate {
	switch pred := p.(type) {
	case *Condition:
		if pred == nil {
			return nil
		}
		return *pred
	case *Group:
		if pred == nil {
			return nil
		}
		return *pred
	default:
		return p
	}
}
