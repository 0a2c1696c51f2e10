// Package backend defines the storage contracts the resource manager
// requires from a backend.
//
// A backend stores three things per resource type (model): the mutable
// ResourceMeta records, the immutable encoded revisions and, shared across
// models, content-addressed binary blobs. The manager is the only writer;
// backends implement storage and search, never domain rules.
package backend

import (
	"context"
	"errors"
	"iter"

	"github.com/roach88/revstore/internal/queryir"
	"github.com/roach88/revstore/internal/resource"
)

// Sentinel errors returned by stores. The manager maps them onto
// *resource.Error values carrying model and id context.
var (
	// ErrNotFound is returned when a key does not exist.
	ErrNotFound = errors.New("not found")

	// ErrSeqMismatch is returned by CompareAndSwap when the stored
	// sequence differs from the expected one.
	ErrSeqMismatch = errors.New("sequence mismatch")
)

// MetaStore is a keyed mapping from resource id to ResourceMeta.
type MetaStore interface {
	// Get returns a copy of the stored meta or ErrNotFound.
	Get(ctx context.Context, resourceID string) (*resource.ResourceMeta, error)

	// CompareAndSwap stores meta if the stored sequence equals expectedSeq.
	// An expectedSeq of zero means the meta must not exist yet. On success
	// meta.Seq is set to expectedSeq+1; on mismatch ErrSeqMismatch is
	// returned and nothing changes.
	CompareAndSwap(ctx context.Context, meta *resource.ResourceMeta, expectedSeq int64) error

	// Delete removes the meta. Deleting a missing key is not an error.
	Delete(ctx context.Context, resourceID string) error

	// Iter yields every meta in resource id order.
	Iter(ctx context.Context) iter.Seq2[*resource.ResourceMeta, error]

	// Len returns the number of stored metas.
	Len(ctx context.Context) (int, error)

	// IterSearch yields the metas matching q, sorted and paginated as
	// package queryeval defines. The sequence is lazy, finite and
	// single-use.
	IterSearch(ctx context.Context, q queryir.SearchQuery) iter.Seq2[*resource.ResourceMeta, error]

	// Count returns the number of metas matching q, ignoring pagination.
	Count(ctx context.Context, q queryir.SearchQuery) (int, error)
}

// RevisionStore persists encoded revisions keyed by (resource id,
// revision id).
type RevisionStore interface {
	// Put stores rev, replacing any revision with the same key. Replacement
	// is only used to amend drafts.
	Put(ctx context.Context, rev resource.Revision) error

	// Get returns the revision or ErrNotFound.
	Get(ctx context.Context, resourceID, revisionID string) (resource.Revision, error)

	// List returns the revision ids of a resource in the order they were
	// first stored.
	List(ctx context.Context, resourceID string) ([]string, error)

	// Delete removes a revision. Deleting a missing key is not an error.
	Delete(ctx context.Context, resourceID, revisionID string) error
}

// BlobStore stores binary payloads by content id.
type BlobStore interface {
	// Put stores data and returns its content id. Storing bytes that are
	// already present is a no-op returning the same id.
	Put(ctx context.Context, data []byte) (string, error)

	// Get returns the bytes for id or ErrNotFound.
	Get(ctx context.Context, id string) ([]byte, error)

	// Exists reports whether id is stored.
	Exists(ctx context.Context, id string) (bool, error)

	// Len returns the number of stored blobs.
	Len(ctx context.Context) (int, error)
}

// Backend hands out stores per model.
type Backend interface {
	MetaStore(model string) (MetaStore, error)
	RevisionStore(model string) (RevisionStore, error)
	BlobStore() BlobStore
	Close() error
}

// Collect drains a search sequence into a slice.
func Collect(seq iter.Seq2[*resource.ResourceMeta, error]) ([]*resource.ResourceMeta, error) {
	var out []*resource.ResourceMeta
	for meta, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, meta)
	}
	return out, nil
}
