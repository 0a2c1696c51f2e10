package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/revstore/internal/codec"
	"github.com/roach88/revstore/internal/refint"
	"github.com/roach88/revstore/internal/resource"
)

// Delete soft-deletes id and applies the delete policies of every
// relationship targeting this model. Deleting a deleted resource runs the
// propagation again.
//
// Dependent failures are logged and do not fail the delete.
func (r *ResourceManager[T]) Delete(ctx context.Context, id string) (err error) {
	defer r.observe(OpDelete, time.Now(), &err)

	if _, err := r.authorize(ctx, OpDelete, id); err != nil {
		return err
	}
	visited := refint.Visited{}
	visited.Mark(r.m.name, id)
	return r.deleteVisited(ctx, id, visited)
}

func (r *ResourceManager[T]) deleteVisited(ctx context.Context, id string, visited refint.Visited) error {
	actor, ok := ActorFrom(ctx)
	if !ok {
		return resource.InvalidState(r.m.name, id, "delete requires an actor in the context")
	}
	meta, err := r.meta(ctx, id)
	if err != nil {
		return err
	}

	if meta.IsDeleted {
		r.m.logger.Debug("resource already deleted, propagating again", "id", id)
	} else {
		next := meta.Clone()
		next.IsDeleted = true
		next.UpdatedTime = actor.Time
		next.UpdatedBy = actor.Name
		if err := r.cas(ctx, next, meta.Seq); err != nil {
			return err
		}
	}

	report := refint.Propagate(ctx, r.e.registry, propagator{r.e}, r.m.logger, r.m.name, id, visited)
	r.e.metrics.RecordPropagation(r.m.name, report.Cascaded, report.Nulled, report.Failed)
	if report != (refint.Report{}) {
		r.m.logger.Info("delete propagated",
			"id", id,
			"cascaded", report.Cascaded,
			"nulled", report.Nulled,
			"failed", report.Failed,
		)
	}
	return nil
}

// Restore clears the deleted flag of id. Dependents deleted or nulled when
// id was deleted are left as they are. Restoring a live resource does
// nothing.
func (r *ResourceManager[T]) Restore(ctx context.Context, id string) (err error) {
	defer r.observe(OpRestore, time.Now(), &err)

	actor, err := r.authorize(ctx, OpRestore, id)
	if err != nil {
		return err
	}
	meta, err := r.meta(ctx, id)
	if err != nil {
		return err
	}
	if !meta.IsDeleted {
		return nil
	}

	next := meta.Clone()
	next.IsDeleted = false
	next.UpdatedTime = actor.Time
	next.UpdatedBy = actor.Name
	return r.cas(ctx, next, meta.Seq)
}

// clearReference removes targetID from rel.SourceField of id with an
// ordinary appended revision. The new revision keeps the status of the
// current one, and a deleted dependent stays deleted.
func (r *ResourceManager[T]) clearReference(ctx context.Context, rel resource.Relationship, id, targetID string) error {
	actor, ok := ActorFrom(ctx)
	if !ok {
		return resource.InvalidState(r.m.name, id, "set_null requires an actor in the context")
	}
	meta, err := r.meta(ctx, id)
	if err != nil {
		return err
	}
	current, err := r.load(ctx, id, meta.CurrentRevisionID)
	if err != nil {
		return err
	}

	raw, err := codec.JSON.Marshal(current.Data)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", r.m.name, id, err)
	}
	var doc map[string]any
	if err := codec.JSON.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode %s/%s: %w", r.m.name, id, err)
	}
	changed, err := refint.ClearRef(doc, rel.SourceField, targetID, rel.IsList)
	if err != nil || !changed {
		return err
	}
	if raw, err = codec.JSON.Marshal(doc); err != nil {
		return fmt.Errorf("encode %s/%s: %w", r.m.name, id, err)
	}
	payload, err := r.normalize(raw)
	if err != nil {
		return err
	}

	_, err = r.appendRevision(ctx, actor, meta, payload, current.Info.Status, false)
	return err
}
