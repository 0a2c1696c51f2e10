// Package refint discovers references between resource types and applies
// their delete policies.
//
// A payload references another resource with a resource.ResourceRef[T] or
// resource.RevisionRef[T] field, held directly, through a pointer or in a
// slice. The delete policy comes from the struct tag:
//
//	type Character struct {
//		Guild *resource.ResourceRef[Guild] `json:"guild" revstore:"on_delete=set_null"`
//		Zone  resource.ResourceRef[Zone]   `json:"zone" revstore:"on_delete=cascade"`
//	}
//
// Reference paths are dotted JSON names, the same paths used for indexed
// fields, so every reference is searchable.
package refint

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/revstore/internal/resource"
)

// TagName is the struct tag holding reference options.
const TagName = "revstore"

// Ref is a reference field discovered on a payload type.
type Ref struct {
	Path     string
	Target   reflect.Type
	Kind     resource.RefKind
	OnDelete resource.OnDelete
	Nullable bool
	IsList   bool
}

// Discover returns the reference fields of t, which must be a struct or a
// pointer to one. Nested structs are followed; slices of structs and maps
// are not, since their elements have no single indexed path.
func Discover(t reflect.Type) ([]Ref, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, resource.Configuration("payload type %s is not a struct", t)
	}
	d := discoverer{active: map[reflect.Type]bool{}}
	if err := d.walk(t, ""); err != nil {
		return nil, err
	}
	return d.refs, nil
}

type discoverer struct {
	refs   []Ref
	active map[reflect.Type]bool
}

func (d *discoverer) walk(t reflect.Type, prefix string) error {
	if d.active[t] {
		// Recursive struct: its references were already found at the
		// shallowest path.
		return nil
	}
	d.active[t] = true
	defer delete(d.active, t)

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, ok := jsonName(f)
		if !ok {
			continue
		}
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}

		ref, found, err := classify(f.Type)
		if err != nil {
			return resource.Configuration("field %s: %v", path, err)
		}
		if found {
			ref.Path = path
			if err := applyTag(&ref, f.Tag.Get(TagName)); err != nil {
				return resource.Configuration("field %s: %v", path, err)
			}
			d.refs = append(d.refs, ref)
			continue
		}
		if f.Tag.Get(TagName) != "" {
			return resource.Configuration("field %s: %s tag on a field that is not a reference", path, TagName)
		}

		inner := f.Type
		if inner.Kind() == reflect.Pointer {
			inner = inner.Elem()
		}
		if inner.Kind() != reflect.Struct {
			continue
		}
		next := path
		if f.Anonymous && f.Tag.Get("json") == "" {
			// Embedded structs are flattened, as encoding/json does.
			next = prefix
		}
		if err := d.walk(inner, next); err != nil {
			return err
		}
	}
	return nil
}

// classify recognises Ref, *Ref and []Ref.
func classify(t reflect.Type) (Ref, bool, error) {
	switch t.Kind() {
	case reflect.String:
		if r, ok := resource.AsReference(t); ok {
			return Ref{Target: r.TargetType(), Kind: r.RefKind()}, true, nil
		}
	case reflect.Pointer, reflect.Slice:
		elem := t.Elem()
		r, ok := resource.AsReference(elem)
		if !ok || elem.Kind() != reflect.String {
			if _, nested := resource.AsReference(deref(t.Elem())); nested {
				return Ref{}, false, fmt.Errorf("unsupported reference shape %s", t)
			}
			return Ref{}, false, nil
		}
		return Ref{
			Target:   r.TargetType(),
			Kind:     r.RefKind(),
			Nullable: true,
			IsList:   t.Kind() == reflect.Slice,
		}, true, nil
	}
	return Ref{}, false, nil
}

func deref(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice {
		t = t.Elem()
	}
	return t
}

// applyTag parses `revstore:"on_delete=cascade"`.
func applyTag(ref *Ref, tag string) error {
	ref.OnDelete = resource.Dangling
	if tag == "" {
		return nil
	}
	for _, opt := range strings.Split(tag, ",") {
		key, value, _ := strings.Cut(strings.TrimSpace(opt), "=")
		switch key {
		case "on_delete":
			policy, err := resource.ParseOnDelete(value)
			if err != nil {
				return err
			}
			ref.OnDelete = policy
		default:
			return fmt.Errorf("unknown %s tag option %q", TagName, key)
		}
	}

	if ref.Kind == resource.RefRevision && ref.OnDelete != resource.Dangling {
		return fmt.Errorf("revision references are always dangling, got on_delete=%s", ref.OnDelete)
	}
	if ref.OnDelete == resource.SetNull && !ref.Nullable {
		return fmt.Errorf("on_delete=set_null requires a pointer or slice field")
	}
	return nil
}

// jsonName returns the JSON key of f, or false when encoding/json would
// skip the field.
func jsonName(f reflect.StructField) (string, bool) {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", false
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		name = f.Name
	}
	return name, true
}
