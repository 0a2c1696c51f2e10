package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/revstore/internal/backend"
	"github.com/roach88/revstore/internal/resource"
)

// RevisionStore is the revisions table scoped to one model.
type RevisionStore struct {
	s     *Store
	model string
}

var _ backend.RevisionStore = (*RevisionStore)(nil)

// Put inserts rev or replaces the stored revision with the same key.
// The upsert keeps the original rowid, so List order is unaffected by
// amendments.
func (r *RevisionStore) Put(ctx context.Context, rev resource.Revision) error {
	info := rev.Info
	if !info.Status.Valid() {
		return fmt.Errorf("put revision %s/%s: invalid status %q", info.ResourceID, info.RevisionID, info.Status)
	}
	data := rev.Data
	if data == nil {
		data = []byte{}
	}

	_, err := r.s.db.ExecContext(ctx, `
		INSERT INTO revisions
		(model, resource_id, revision_id, uid, parent_revision_id, schema_version, data_hash,
		 status, created_time, created_by, updated_time, updated_by, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(model, resource_id, revision_id) DO UPDATE SET
			uid = excluded.uid,
			parent_revision_id = excluded.parent_revision_id,
			schema_version = excluded.schema_version,
			data_hash = excluded.data_hash,
			status = excluded.status,
			created_time = excluded.created_time,
			created_by = excluded.created_by,
			updated_time = excluded.updated_time,
			updated_by = excluded.updated_by,
			data = excluded.data
	`,
		r.model,
		info.ResourceID,
		info.RevisionID,
		info.UID,
		nullString(info.ParentRevisionID),
		nullString(info.SchemaVersion),
		nullString(info.DataHash),
		string(info.Status),
		formatTime(info.CreatedTime),
		info.CreatedBy,
		formatTime(info.UpdatedTime),
		info.UpdatedBy,
		data,
	)
	if err != nil {
		return fmt.Errorf("put revision %s/%s: %w", info.ResourceID, info.RevisionID, err)
	}
	return nil
}

func (r *RevisionStore) Get(ctx context.Context, resourceID, revisionID string) (resource.Revision, error) {
	row := r.s.db.QueryRowContext(ctx, `
		SELECT uid, parent_revision_id, schema_version, data_hash, status,
		       created_time, created_by, updated_time, updated_by, data
		FROM revisions
		WHERE model = ? AND resource_id = ? AND revision_id = ?
	`, r.model, resourceID, revisionID)

	var (
		rev                      resource.Revision
		parent, version, hash    sql.NullString
		status, created, updated string
	)
	err := row.Scan(
		&rev.Info.UID,
		&parent,
		&version,
		&hash,
		&status,
		&created,
		&rev.Info.CreatedBy,
		&updated,
		&rev.Info.UpdatedBy,
		&rev.Data,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return resource.Revision{}, backend.ErrNotFound
	}
	if err != nil {
		return resource.Revision{}, fmt.Errorf("get revision %s/%s: %w", resourceID, revisionID, err)
	}

	rev.Info.ResourceID = resourceID
	rev.Info.RevisionID = revisionID
	rev.Info.ParentRevisionID = parent.String
	rev.Info.SchemaVersion = version.String
	rev.Info.DataHash = hash.String
	rev.Info.Status = resource.RevisionStatus(status)
	if rev.Info.CreatedTime, err = parseTime("created_time", created); err != nil {
		return resource.Revision{}, err
	}
	if rev.Info.UpdatedTime, err = parseTime("updated_time", updated); err != nil {
		return resource.Revision{}, err
	}
	return rev, nil
}

// List returns revision ids in insertion order.
func (r *RevisionStore) List(ctx context.Context, resourceID string) ([]string, error) {
	rows, err := r.s.db.QueryContext(ctx, `
		SELECT revision_id FROM revisions
		WHERE model = ? AND resource_id = ?
		ORDER BY id ASC
	`, r.model, resourceID)
	if err != nil {
		return nil, fmt.Errorf("list revisions %s: %w", resourceID, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan revision id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revisions: %w", err)
	}
	return ids, nil
}

func (r *RevisionStore) Delete(ctx context.Context, resourceID, revisionID string) error {
	_, err := r.s.db.ExecContext(ctx, `
		DELETE FROM revisions
		WHERE model = ? AND resource_id = ? AND revision_id = ?
	`, r.model, resourceID, revisionID)
	if err != nil {
		return fmt.Errorf("delete revision %s/%s: %w", resourceID, revisionID, err)
	}
	return nil
}
