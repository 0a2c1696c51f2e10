// Package binary offloads inline byte payloads from resource payloads into
// a content-addressed BlobStore.
//
// A payload type declares binary content with a Binary (or *Binary) field
// anywhere in its value graph: nested structs, pointers, slices, arrays and
// map values are followed; interfaces are not. On write the inline Data is
// stored under its content id and cleared, leaving ID, Size and
// ContentType. Stored revisions therefore never carry the bytes; they are
// fetched by id.
package binary

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"

	"github.com/roach88/revstore/internal/backend"
)

// Binary is a reference to binary content, inline until offloaded.
type Binary struct {
	ID          string `json:"id,omitempty"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type,omitempty"`
	Data        []byte `json:"data,omitempty"`
}

// FromBytes wraps data for upload. An empty contentType is sniffed when
// the value is offloaded.
func FromBytes(data []byte, contentType string) Binary {
	return Binary{Data: data, ContentType: contentType}
}

// Inline reports whether b still carries bytes to upload.
func (b *Binary) Inline() bool {
	return b.Data != nil
}

// ErrUnknownBlob is returned when a payload references a blob id that is
// not stored.
var ErrUnknownBlob = errors.New("unknown blob")

// Offload stores every inline Binary reachable from v and replaces its
// bytes with the content id. v must be a non-nil pointer. References that
// carry only an id must point at a stored blob. Returns the number of
// blobs uploaded.
func Offload(ctx context.Context, blobs backend.BlobStore, v any) (int, error) {
	uploaded := 0
	err := Visit(v, func(b *Binary) error {
		if !b.Inline() {
			if b.ID == "" {
				return nil
			}
			ok, err := blobs.Exists(ctx, b.ID)
			if err != nil {
				return fmt.Errorf("check blob %s: %w", b.ID, err)
			}
			if !ok {
				return fmt.Errorf("%w: %s", ErrUnknownBlob, b.ID)
			}
			return nil
		}

		if b.ContentType == "" {
			b.ContentType = http.DetectContentType(b.Data)
		}
		id, err := blobs.Put(ctx, b.Data)
		if err != nil {
			return fmt.Errorf("store blob: %w", err)
		}
		b.ID = id
		b.Size = int64(len(b.Data))
		b.Data = nil
		uploaded++
		return nil
	})
	return uploaded, err
}

// Strip clears inline bytes without storing them.
func Strip(v any) error {
	return Visit(v, func(b *Binary) error {
		b.Data = nil
		return nil
	})
}

// Collect returns copies of every Binary reachable from v, in traversal
// order.
func Collect(v any) ([]Binary, error) {
	var out []Binary
	err := Visit(v, func(b *Binary) error {
		out = append(out, *b)
		return nil
	})
	return out, err
}

// Visit calls fn for every Binary reachable from v. v must be a non-nil
// pointer; fn may modify the Binary in place, including ones held as map
// values. Shared pointers are visited once.
func Visit(v any, fn func(*Binary) error) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("binary: visit requires a non-nil pointer, got %T", v)
	}
	p := planFor(rv.Type())
	if !p.hasBinary {
		return nil
	}
	w := walker{fn: fn, seen: map[uintptr]bool{}}
	return w.walk(rv, p)
}

// Detach gives the value v points to its own copy of every pointer, slice
// and map on a path to a Binary, so Offload can rewrite it without touching
// memory shared with another value. The pointed-to value itself is not
// copied. Shared pointers stay shared within the copy.
func Detach(v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("binary: detach requires a non-nil pointer, got %T", v)
	}
	p := planFor(rv.Type())
	if !p.hasBinary {
		return nil
	}
	c := copier{copies: map[uintptr]reflect.Value{}}
	c.detach(rv.Elem(), p.elem)
	return nil
}

type copier struct {
	copies map[uintptr]reflect.Value
}

func (c *copier) detach(v reflect.Value, p *plan) {
	switch p.kind {
	case kindPointer:
		if v.IsNil() {
			return
		}
		ptr := v.Pointer()
		if cp, ok := c.copies[ptr]; ok {
			v.Set(cp)
			return
		}
		cp := reflect.New(v.Type().Elem())
		cp.Elem().Set(v.Elem())
		c.copies[ptr] = cp
		v.Set(cp)
		c.detach(cp.Elem(), p.elem)

	case kindStruct:
		for _, f := range p.fields {
			c.detach(v.Field(f.index), f.plan)
		}

	case kindSlice:
		if v.IsNil() {
			return
		}
		cp := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		reflect.Copy(cp, v)
		v.Set(cp)
		for i := 0; i < cp.Len(); i++ {
			c.detach(cp.Index(i), p.elem)
		}

	case kindArray:
		for i := 0; i < v.Len(); i++ {
			c.detach(v.Index(i), p.elem)
		}

	case kindMap:
		if v.IsNil() {
			return
		}
		cp := reflect.MakeMapWithSize(v.Type(), v.Len())
		for _, key := range v.MapKeys() {
			elem := reflect.New(v.Type().Elem()).Elem()
			elem.Set(v.MapIndex(key))
			c.detach(elem, p.elem)
			cp.SetMapIndex(key, elem)
		}
		v.Set(cp)
	}
}

type walker struct {
	fn   func(*Binary) error
	seen map[uintptr]bool
}

func (w *walker) walk(v reflect.Value, p *plan) error {
	switch p.kind {
	case kindBinary:
		return w.fn(v.Addr().Interface().(*Binary))

	case kindPointer:
		if v.IsNil() {
			return nil
		}
		ptr := v.Pointer()
		if w.seen[ptr] {
			return nil
		}
		w.seen[ptr] = true
		return w.walk(v.Elem(), p.elem)

	case kindStruct:
		for _, f := range p.fields {
			if err := w.walk(v.Field(f.index), f.plan); err != nil {
				return err
			}
		}

	case kindSlice, kindArray:
		for i := 0; i < v.Len(); i++ {
			if err := w.walk(v.Index(i), p.elem); err != nil {
				return err
			}
		}

	case kindMap:
		// Map values are not addressable: walk a copy and write it back.
		for _, key := range v.MapKeys() {
			cp := reflect.New(v.Type().Elem()).Elem()
			cp.Set(v.MapIndex(key))
			if err := w.walk(cp, p.elem); err != nil {
				return err
			}
			v.SetMapIndex(key, cp)
		}
	}
	return nil
}
