package manager

import "github.com/roach88/revstore/internal/resource"

// Mode selects how Update and Patch store the new payload.
type Mode string

const (
	// ModeAppend stores a new revision whose parent is the current one.
	ModeAppend Mode = "append"

	// ModeModify amends the current revision in place. The current
	// revision must be a draft.
	ModeModify Mode = "modify"
)

type writeOptions struct {
	resourceID       string
	expectedRevision string
	mode             Mode
	status           resource.RevisionStatus
}

// WriteOption configures Create, Update and Patch.
type WriteOption func(*writeOptions)

// WithResourceID makes Create use id instead of generating one.
func WithResourceID(id string) WriteOption {
	return func(o *writeOptions) {
		o.resourceID = id
	}
}

// AsDraft stores the new revision as a draft.
func AsDraft() WriteOption {
	return WithStatus(resource.StatusDraft)
}

// WithStatus sets the status of the written revision. In modify mode,
// WithStatus(resource.StatusStable) finalises the draft.
func WithStatus(s resource.RevisionStatus) WriteOption {
	return func(o *writeOptions) {
		o.status = s
	}
}

// WithExpectedRevision fails the write with CONFLICT unless the current
// revision is rev. Without it the revision observed at the start of the
// call is expected.
func WithExpectedRevision(rev string) WriteOption {
	return func(o *writeOptions) {
		o.expectedRevision = rev
	}
}

// WithMode selects append or modify. Default: ModeAppend.
func WithMode(m Mode) WriteOption {
	return func(o *writeOptions) {
		o.mode = m
	}
}

func newWriteOptions(opts []WriteOption) writeOptions {
	o := writeOptions{mode: ModeAppend}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// statusOr returns the requested status, or def when none was given.
func (o writeOptions) statusOr(def resource.RevisionStatus) resource.RevisionStatus {
	if o.status == "" {
		return def
	}
	return o.status
}

type readOptions struct {
	includeDeleted bool
}

// ReadOption configures reads.
type ReadOption func(*readOptions)

// IncludeDeleted lets reads return soft-deleted resources.
func IncludeDeleted() ReadOption {
	return func(o *readOptions) {
		o.includeDeleted = true
	}
}

func newReadOptions(opts []ReadOption) readOptions {
	var o readOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
