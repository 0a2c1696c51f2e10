package binary

import (
	"reflect"
	"sync"
)

type kind int

const (
	kindNone kind = iota
	kindBinary
	kindPointer
	kindStruct
	kindSlice
	kindArray
	kindMap
)

// plan is the compiled traversal of one type. Subtrees that cannot contain
// a Binary are pruned to kindNone.
type plan struct {
	kind      kind
	elem      *plan
	fields    []fieldPlan
	hasBinary bool
}

type fieldPlan struct {
	index int
	plan  *plan
}

var (
	binaryType = reflect.TypeFor[Binary]()

	// plans caches compiled plans by type. Plans are immutable once
	// stored.
	plans sync.Map
)

// planFor returns the memoised plan of t, compiling it on first use.
func planFor(t reflect.Type) *plan {
	if p, ok := plans.Load(t); ok {
		return p.(*plan)
	}
	p := compile(t)
	actual, _ := plans.LoadOrStore(t, p)
	return actual.(*plan)
}

// HasBinaries reports whether values of t can hold a Binary.
func HasBinaries(t reflect.Type) bool {
	return planFor(t).hasBinary
}

// compile builds the plan in two passes. The first walks the type graph,
// registering a placeholder before descending so recursive types link back
// to it. The second computes hasBinary to a fixed point and prunes.
func compile(t reflect.Type) *plan {
	c := compiler{seen: map[reflect.Type]*plan{}}
	root := c.build(t)

	for changed := true; changed; {
		changed = false
		for _, p := range c.order {
			if !p.hasBinary && p.containsBinary() {
				p.hasBinary = true
				changed = true
			}
		}
	}
	for _, p := range c.order {
		p.prune()
	}
	return root
}

type compiler struct {
	seen  map[reflect.Type]*plan
	order []*plan
}

func (c *compiler) build(t reflect.Type) *plan {
	if p, ok := c.seen[t]; ok {
		return p
	}
	p := &plan{}
	c.seen[t] = p
	c.order = append(c.order, p)

	switch {
	case t == binaryType:
		p.kind = kindBinary
		p.hasBinary = true
	case t.Kind() == reflect.Pointer:
		p.kind = kindPointer
		p.elem = c.build(t.Elem())
	case t.Kind() == reflect.Struct:
		p.kind = kindStruct
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			p.fields = append(p.fields, fieldPlan{index: i, plan: c.build(f.Type)})
		}
	case t.Kind() == reflect.Slice:
		p.kind = kindSlice
		p.elem = c.build(t.Elem())
	case t.Kind() == reflect.Array:
		p.kind = kindArray
		p.elem = c.build(t.Elem())
	case t.Kind() == reflect.Map:
		p.kind = kindMap
		p.elem = c.build(t.Elem())
	}
	return p
}

func (p *plan) containsBinary() bool {
	switch p.kind {
	case kindPointer, kindSlice, kindArray, kindMap:
		return p.elem.hasBinary
	case kindStruct:
		for _, f := range p.fields {
			if f.plan.hasBinary {
				return true
			}
		}
	}
	return false
}

func (p *plan) prune() {
	if !p.hasBinary {
		p.kind = kindNone
		p.elem = nil
		p.fields = nil
		return
	}
	if p.kind != kindStruct {
		return
	}
	kept := p.fields[:0]
	for _, f := range p.fields {
		if f.plan.hasBinary {
			kept = append(kept, f)
		}
	}
	p.fields = kept
}
