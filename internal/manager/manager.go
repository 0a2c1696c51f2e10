package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/revstore/internal/backend"
	"github.com/roach88/revstore/internal/queryir"
	"github.com/roach88/revstore/internal/resource"
)

// ResourceManager stores and retrieves resources of one model with payload
// type T.
type ResourceManager[T any] struct {
	e *Engine
	m *model
}

var _ managed = (*ResourceManager[struct{}])(nil)

func (r *ResourceManager[T]) info() *model { return r.m }

// Name returns the model name.
func (r *ResourceManager[T]) Name() string { return r.m.name }

// Indexed returns the indexed fields, declared ones first, then the
// reference fields indexed automatically.
func (r *ResourceManager[T]) Indexed() []resource.IndexableField {
	return append([]resource.IndexableField(nil), r.m.indexed...)
}

// Relationships returns the relationships declared by this model.
func (r *ResourceManager[T]) Relationships() []resource.Relationship {
	return r.e.registry.Outgoing(r.m.name)
}

func (r *ResourceManager[T]) observe(op Operation, start time.Time, err *error) {
	r.e.metrics.RecordOperation(r.m.name, string(op), *err, time.Since(start))
}

// authorize returns the actor of ctx after the capability check.
func (r *ResourceManager[T]) authorize(ctx context.Context, op Operation, resourceID string) (Actor, error) {
	actor, ok := ActorFrom(ctx)
	if !ok {
		return Actor{}, resource.InvalidState(r.m.name, resourceID, "%s requires an actor in the context", op)
	}
	if r.e.auth != nil {
		if err := r.e.auth.Authorize(ctx, actor, r.m.name, op, resourceID); err != nil {
			e := resource.InvalidState(r.m.name, resourceID, "actor %q may not %s", actor.Name, op)
			e.Err = err
			return Actor{}, e
		}
	}
	return actor, nil
}

// meta loads the meta of id, mapping a missing key to NOT_FOUND.
func (r *ResourceManager[T]) meta(ctx context.Context, id string) (*resource.ResourceMeta, error) {
	meta, err := r.m.metas.Get(ctx, id)
	if errors.Is(err, backend.ErrNotFound) {
		return nil, resource.NotFound(r.m.name, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get meta %s/%s: %w", r.m.name, id, err)
	}
	return meta, nil
}

// liveMeta is meta that also rejects soft-deleted resources.
func (r *ResourceManager[T]) liveMeta(ctx context.Context, id string) (*resource.ResourceMeta, error) {
	meta, err := r.meta(ctx, id)
	if err != nil {
		return nil, err
	}
	if meta.IsDeleted {
		return nil, resource.Deleted(r.m.name, id)
	}
	return meta, nil
}

func (r *ResourceManager[T]) readMeta(ctx context.Context, id string, o readOptions) (*resource.ResourceMeta, error) {
	if o.includeDeleted {
		return r.meta(ctx, id)
	}
	return r.liveMeta(ctx, id)
}

func (r *ResourceManager[T]) revision(ctx context.Context, id, revisionID string) (resource.Revision, error) {
	rev, err := r.m.revs.Get(ctx, id, revisionID)
	if errors.Is(err, backend.ErrNotFound) {
		return resource.Revision{}, resource.RevisionNotFound(r.m.name, id, revisionID)
	}
	if err != nil {
		return resource.Revision{}, fmt.Errorf("get revision %s/%s/%s: %w", r.m.name, id, revisionID, err)
	}
	return rev, nil
}

// cas stores meta against expectedSeq, mapping a lost race to CONFLICT.
func (r *ResourceManager[T]) cas(ctx context.Context, meta *resource.ResourceMeta, expectedSeq int64) error {
	err := r.m.metas.CompareAndSwap(ctx, meta, expectedSeq)
	if errors.Is(err, backend.ErrSeqMismatch) {
		return resource.Conflict(r.m.name, meta.ResourceID, "resource was modified concurrently")
	}
	if err != nil {
		return fmt.Errorf("store meta %s/%s: %w", r.m.name, meta.ResourceID, err)
	}
	return nil
}

// Get returns the current revision of id.
func (r *ResourceManager[T]) Get(ctx context.Context, id string, opts ...ReadOption) (res *resource.Resource[T], err error) {
	defer r.observe(OpGet, time.Now(), &err)

	meta, err := r.readMeta(ctx, id, newReadOptions(opts))
	if err != nil {
		return nil, err
	}
	return r.load(ctx, id, meta.CurrentRevisionID)
}

// GetMeta returns the meta record of id.
func (r *ResourceManager[T]) GetMeta(ctx context.Context, id string, opts ...ReadOption) (*resource.ResourceMeta, error) {
	return r.readMeta(ctx, id, newReadOptions(opts))
}

// GetRevision returns one revision of id, current or not.
func (r *ResourceManager[T]) GetRevision(ctx context.Context, id, revisionID string, opts ...ReadOption) (*resource.Resource[T], error) {
	if _, err := r.readMeta(ctx, id, newReadOptions(opts)); err != nil {
		return nil, err
	}
	return r.load(ctx, id, revisionID)
}

func (r *ResourceManager[T]) load(ctx context.Context, id, revisionID string) (*resource.Resource[T], error) {
	rev, err := r.revision(ctx, id, revisionID)
	if err != nil {
		return nil, err
	}
	data, err := r.decode(rev)
	if err != nil {
		return nil, err
	}
	return &resource.Resource[T]{Info: rev.Info, Data: data}, nil
}

// ListRevisions returns the revisions of id in the order they were first
// written, so every parent precedes its children.
func (r *ResourceManager[T]) ListRevisions(ctx context.Context, id string, opts ...ReadOption) ([]resource.RevisionInfo, error) {
	if _, err := r.readMeta(ctx, id, newReadOptions(opts)); err != nil {
		return nil, err
	}
	ids, err := r.m.revs.List(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list revisions %s/%s: %w", r.m.name, id, err)
	}
	infos := make([]resource.RevisionInfo, 0, len(ids))
	for _, revID := range ids {
		rev, err := r.revision(ctx, id, revID)
		if err != nil {
			return nil, err
		}
		infos = append(infos, rev.Info)
	}
	return infos, nil
}

// Search returns the metas matching q. Backends either translate q
// faithfully or evaluate it in process; results are never partially
// filtered.
func (r *ResourceManager[T]) Search(ctx context.Context, q queryir.SearchQuery) (metas []*resource.ResourceMeta, err error) {
	defer r.observe(OpSearch, time.Now(), &err)

	if err := queryir.Validate(q); err != nil {
		return nil, resource.Validation(r.m.name, err)
	}
	metas, err = backend.Collect(r.m.metas.IterSearch(ctx, q))
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", r.m.name, err)
	}
	if metas == nil {
		metas = []*resource.ResourceMeta{}
	}
	return metas, nil
}

// Count returns the number of matches of q, ignoring pagination.
func (r *ResourceManager[T]) Count(ctx context.Context, q queryir.SearchQuery) (int, error) {
	if err := queryir.Validate(q); err != nil {
		return 0, resource.Validation(r.m.name, err)
	}
	n, err := r.m.metas.Count(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", r.m.name, err)
	}
	return n, nil
}

// GetBlob returns the bytes of an offloaded binary value.
func (r *ResourceManager[T]) GetBlob(ctx context.Context, id string) ([]byte, error) {
	data, err := r.e.backend.BlobStore().Get(ctx, id)
	if errors.Is(err, backend.ErrNotFound) {
		return nil, resource.BlobNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get blob %s: %w", id, err)
	}
	return data, nil
}
