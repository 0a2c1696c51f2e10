package schema

import (
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/revstore/internal/ir"
)

// Validator checks a decoded payload document.
type Validator interface {
	Validate(doc any) error
}

// ValidatorFunc adapts a function into a Validator.
type ValidatorFunc func(doc any) error

func (f ValidatorFunc) Validate(doc any) error {
	return f(doc)
}

// CUEValidator validates documents against a CUE schema.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// A cue.Context is not safe for concurrent use, so Validate serialises on a
// mutex.
type CUEValidator struct {
	mu     sync.Mutex
	ctx    *cue.Context
	schema cue.Value
}

// NewCUEValidator compiles src and selects the value at path; an empty path
// uses the whole file. Selecting a definition such as "#Zone" makes the
// schema closed, so unknown fields are rejected.
//
//	v, err := schema.NewCUEValidator(`#Zone: {name: string & !="", level: int & >=0}`, "#Zone")
func NewCUEValidator(src, path string) (*CUEValidator, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if path != "" {
		v = v.LookupPath(cue.ParsePath(path))
		if !v.Exists() {
			return nil, &CUEError{Field: path, Message: "not found in schema"}
		}
	}
	return &CUEValidator{ctx: ctx, schema: v}, nil
}

// Validate unifies doc with the schema and requires a concrete result.
func (v *CUEValidator) Validate(doc any) error {
	// Normalise decoder output (json.Number, uint64, ...) to plain Go
	// values CUE encodes predictably.
	norm, err := ir.FromGo(doc)
	if err != nil {
		return fmt.Errorf("cue: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	val := v.ctx.Encode(ir.ToGo(norm))
	if err := val.Err(); err != nil {
		return formatCUEError(err)
	}
	if err := v.schema.Unify(val).Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// CUEError is a schema failure with the position it was reported at.
type CUEError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CUEError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts the first error and its position from a CUE
// error list.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	field := "cue"
	if p := first.Path(); len(p) > 0 {
		field = strings.Join(p, ".")
	}
	var pos token.Pos
	if positions := errors.Positions(first); len(positions) > 0 {
		pos = positions[0]
	}
	return &CUEError{Field: field, Message: first.Error(), Pos: pos}
}
