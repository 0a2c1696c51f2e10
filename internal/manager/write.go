package manager

import (
	"context"
	"fmt"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/roach88/revstore/internal/codec"
	"github.com/roach88/revstore/internal/resource"
)

// Create stores payload as the root revision of a new resource. The
// revision is stable unless AsDraft is given.
func (r *ResourceManager[T]) Create(ctx context.Context, payload any, opts ...WriteOption) (res *resource.Resource[T], err error) {
	defer r.observe(OpCreate, time.Now(), &err)

	o := newWriteOptions(opts)
	actor, err := r.authorize(ctx, OpCreate, o.resourceID)
	if err != nil {
		return nil, err
	}
	p, err := r.normalize(payload)
	if err != nil {
		return nil, err
	}

	id := o.resourceID
	if id == "" {
		id = r.e.ids.Generate()
	} else if _, err := r.meta(ctx, id); err == nil {
		return nil, resource.Conflict(r.m.name, id, "resource id already exists")
	} else if !resource.IsNotFound(err) {
		return nil, err
	}

	prep, err := r.prepare(ctx, p, true)
	if err != nil {
		return nil, err
	}

	info := r.newInfo(actor, id, "", prep, o.statusOr(resource.StatusStable))
	meta := &resource.ResourceMeta{
		ResourceID:         id,
		CurrentRevisionID:  info.RevisionID,
		SchemaVersion:      info.SchemaVersion,
		TotalRevisionCount: 1,
		CreatedTime:        actor.Time,
		CreatedBy:          actor.Name,
		UpdatedTime:        actor.Time,
		UpdatedBy:          actor.Name,
		IndexedData:        prep.indexed,
	}
	if err := r.commit(ctx, info, prep.data, meta, 0); err != nil {
		if resource.IsConflict(err) {
			return nil, resource.Conflict(r.m.name, id, "resource id already exists")
		}
		return nil, err
	}

	r.m.logger.Debug("resource created", "id", id, "revision", info.RevisionID, "status", info.Status)
	return &resource.Resource[T]{Info: info, Data: prep.payload}, nil
}

// Update stores payload for id. In ModeAppend a new revision is added whose
// parent is the current one; ModeModify amends the current draft.
func (r *ResourceManager[T]) Update(ctx context.Context, id string, payload any, opts ...WriteOption) (res *resource.Resource[T], err error) {
	defer r.observe(OpUpdate, time.Now(), &err)

	actor, err := r.authorize(ctx, OpUpdate, id)
	if err != nil {
		return nil, err
	}
	p, err := r.normalize(payload)
	if err != nil {
		return nil, err
	}
	meta, err := r.liveMeta(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.update(ctx, actor, meta, p, newWriteOptions(opts))
}

// Patch applies RFC 6902 operations to the JSON form of the current payload
// and stores the result as Update does.
func (r *ResourceManager[T]) Patch(ctx context.Context, id string, ops []byte, opts ...WriteOption) (res *resource.Resource[T], err error) {
	defer r.observe(OpPatch, time.Now(), &err)

	actor, err := r.authorize(ctx, OpPatch, id)
	if err != nil {
		return nil, err
	}
	patch, err := jsonpatch.DecodePatch(ops)
	if err != nil {
		return nil, resource.Validation(r.m.name, fmt.Errorf("decode patch: %w", err))
	}

	meta, err := r.liveMeta(ctx, id)
	if err != nil {
		return nil, err
	}
	current, err := r.load(ctx, id, meta.CurrentRevisionID)
	if err != nil {
		return nil, err
	}
	doc, err := codec.JSON.Marshal(current.Data)
	if err != nil {
		return nil, fmt.Errorf("encode %s/%s for patch: %w", r.m.name, id, err)
	}
	patched, err := patch.Apply(doc)
	if err != nil {
		return nil, resource.Validation(r.m.name, fmt.Errorf("apply patch: %w", err))
	}
	p, err := r.normalize(patched)
	if err != nil {
		return nil, err
	}
	return r.update(ctx, actor, meta, p, newWriteOptions(opts))
}

func (r *ResourceManager[T]) update(ctx context.Context, actor Actor, meta *resource.ResourceMeta, payload T, o writeOptions) (*resource.Resource[T], error) {
	if o.expectedRevision != "" && o.expectedRevision != meta.CurrentRevisionID {
		return nil, resource.Conflict(r.m.name, meta.ResourceID,
			"expected revision %s, current is %s", o.expectedRevision, meta.CurrentRevisionID)
	}
	switch o.mode {
	case ModeAppend:
		return r.appendRevision(ctx, actor, meta, payload, o.statusOr(resource.StatusStable), true)
	case ModeModify:
		return r.amend(ctx, actor, meta, payload, o.statusOr(resource.StatusDraft))
	default:
		return nil, resource.InvalidState(r.m.name, meta.ResourceID, "unknown update mode %q", o.mode)
	}
}

func (r *ResourceManager[T]) newInfo(actor Actor, id, parent string, prep *prepared[T], status resource.RevisionStatus) resource.RevisionInfo {
	return resource.RevisionInfo{
		UID:              r.e.ids.Generate(),
		ResourceID:       id,
		RevisionID:       r.e.ids.Generate(),
		ParentRevisionID: parent,
		SchemaVersion:    r.m.version(),
		DataHash:         prep.hash,
		Status:           status,
		CreatedTime:      actor.Time,
		CreatedBy:        actor.Name,
		UpdatedTime:      actor.Time,
		UpdatedBy:        actor.Name,
	}
}

// appendRevision adds a child of the current revision.
func (r *ResourceManager[T]) appendRevision(ctx context.Context, actor Actor, meta *resource.ResourceMeta, payload T, status resource.RevisionStatus, checkRefs bool) (*resource.Resource[T], error) {
	prep, err := r.prepare(ctx, payload, checkRefs)
	if err != nil {
		return nil, err
	}

	info := r.newInfo(actor, meta.ResourceID, meta.CurrentRevisionID, prep, status)
	next := meta.Clone()
	next.CurrentRevisionID = info.RevisionID
	next.SchemaVersion = info.SchemaVersion
	next.TotalRevisionCount++
	next.UpdatedTime = actor.Time
	next.UpdatedBy = actor.Name
	next.IndexedData = prep.indexed

	if err := r.commit(ctx, info, prep.data, next, meta.Seq); err != nil {
		return nil, err
	}
	r.m.logger.Debug("revision appended", "id", meta.ResourceID, "revision", info.RevisionID, "parent", info.ParentRevisionID)
	return &resource.Resource[T]{Info: info, Data: prep.payload}, nil
}

// commit stores the revision, then the meta. A lost compare-and-swap
// deletes the revision again.
func (r *ResourceManager[T]) commit(ctx context.Context, info resource.RevisionInfo, data []byte, meta *resource.ResourceMeta, expectedSeq int64) error {
	rev := resource.Revision{Info: info, Data: data}
	if err := r.m.revs.Put(ctx, rev); err != nil {
		return fmt.Errorf("put revision %s/%s/%s: %w", r.m.name, info.ResourceID, info.RevisionID, err)
	}
	if err := r.cas(ctx, meta, expectedSeq); err != nil {
		if delErr := r.m.revs.Delete(ctx, info.ResourceID, info.RevisionID); delErr != nil {
			r.m.logger.Error("remove orphaned revision failed",
				"id", info.ResourceID,
				"revision", info.RevisionID,
				"error", delErr,
			)
		}
		return err
	}
	return nil
}

// amend replaces the current draft revision. The meta is claimed first so
// a concurrent writer loses before any bytes change.
func (r *ResourceManager[T]) amend(ctx context.Context, actor Actor, meta *resource.ResourceMeta, payload T, status resource.RevisionStatus) (*resource.Resource[T], error) {
	current, err := r.revision(ctx, meta.ResourceID, meta.CurrentRevisionID)
	if err != nil {
		return nil, err
	}
	if current.Info.Status != resource.StatusDraft {
		return nil, resource.InvalidState(r.m.name, meta.ResourceID,
			"revision %s is %s; modify requires a draft", meta.CurrentRevisionID, current.Info.Status)
	}
	prep, err := r.prepare(ctx, payload, true)
	if err != nil {
		return nil, err
	}

	info := current.Info
	info.UID = r.e.ids.Generate()
	info.SchemaVersion = r.m.version()
	info.DataHash = prep.hash
	info.Status = status
	info.UpdatedTime = actor.Time
	info.UpdatedBy = actor.Name

	next := meta.Clone()
	next.SchemaVersion = info.SchemaVersion
	next.UpdatedTime = actor.Time
	next.UpdatedBy = actor.Name
	next.IndexedData = prep.indexed
	if err := r.cas(ctx, next, meta.Seq); err != nil {
		return nil, err
	}

	if err := r.m.revs.Put(ctx, resource.Revision{Info: info, Data: prep.data}); err != nil {
		// Hand the meta back so indexed data keeps matching the stored
		// revision.
		prev := meta.Clone()
		if rbErr := r.m.metas.CompareAndSwap(ctx, prev, next.Seq); rbErr != nil {
			r.m.logger.Error("restore meta after failed amend", "id", meta.ResourceID, "error", rbErr)
		}
		return nil, fmt.Errorf("amend revision %s/%s/%s: %w", r.m.name, info.ResourceID, info.RevisionID, err)
	}

	r.m.logger.Debug("revision amended", "id", meta.ResourceID, "revision", info.RevisionID, "status", info.Status)
	return &resource.Resource[T]{Info: info, Data: prep.payload}, nil
}

// Switch makes an existing revision current without writing a new one.
// Indexed data and schema version are taken from that revision.
func (r *ResourceManager[T]) Switch(ctx context.Context, id, revisionID string) (res *resource.Resource[T], err error) {
	defer r.observe(OpSwitch, time.Now(), &err)

	actor, err := r.authorize(ctx, OpSwitch, id)
	if err != nil {
		return nil, err
	}
	meta, err := r.liveMeta(ctx, id)
	if err != nil {
		return nil, err
	}
	if meta.CurrentRevisionID == revisionID {
		return nil, resource.InvalidState(r.m.name, id, "revision %s is already current", revisionID)
	}
	target, err := r.load(ctx, id, revisionID)
	if err != nil {
		return nil, err
	}
	indexed, err := r.project(target.Data)
	if err != nil {
		return nil, err
	}

	next := meta.Clone()
	next.CurrentRevisionID = revisionID
	next.SchemaVersion = target.Info.SchemaVersion
	next.UpdatedTime = actor.Time
	next.UpdatedBy = actor.Name
	next.IndexedData = indexed
	if err := r.cas(ctx, next, meta.Seq); err != nil {
		return nil, err
	}

	r.m.logger.Debug("revision switched", "id", id, "from", meta.CurrentRevisionID, "to", revisionID)
	return target, nil
}

// Migrate rewrites the current revision of id at the target schema version
// as a new revision. A resource already at the target is returned as is.
func (r *ResourceManager[T]) Migrate(ctx context.Context, id string) (res *resource.Resource[T], err error) {
	defer r.observe(OpMigrate, time.Now(), &err)

	actor, err := r.authorize(ctx, OpMigrate, id)
	if err != nil {
		return nil, err
	}
	meta, err := r.liveMeta(ctx, id)
	if err != nil {
		return nil, err
	}
	current, err := r.load(ctx, id, meta.CurrentRevisionID)
	if err != nil {
		return nil, err
	}
	if r.m.schema == nil || !r.m.schema.NeedsMigration(current.Info.SchemaVersion) {
		return current, nil
	}
	return r.appendRevision(ctx, actor, meta, current.Data, resource.StatusStable, false)
}
