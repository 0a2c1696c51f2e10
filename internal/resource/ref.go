package resource

import "reflect"

// ResourceRef is a payload field holding the resource id of a T.
// It encodes as a plain string.
type ResourceRef[T any] string

// RevisionRef is a payload field holding a revision id of a T.
// Revision references are point-in-time links and never propagate deletes.
type RevisionRef[T any] string

// Reference is implemented by ResourceRef and RevisionRef and lets
// reflection discover reference fields and their target type.
type Reference interface {
	RefKind() RefKind
	TargetType() reflect.Type
}

func (ResourceRef[T]) RefKind() RefKind         { return RefResource }
func (ResourceRef[T]) TargetType() reflect.Type { return reflect.TypeFor[T]() }
func (r ResourceRef[T]) String() string         { return string(r) }

func (RevisionRef[T]) RefKind() RefKind         { return RefRevision }
func (RevisionRef[T]) TargetType() reflect.Type { return reflect.TypeFor[T]() }
func (r RevisionRef[T]) String() string         { return string(r) }

var referenceType = reflect.TypeFor[Reference]()

// AsReference returns the Reference implementation of t, if any.
func AsReference(t reflect.Type) (Reference, bool) {
	if !t.Implements(referenceType) {
		return nil, false
	}
	ref, ok := reflect.Zero(t).Interface().(Reference)
	return ref, ok
}
