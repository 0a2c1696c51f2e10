package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"

	"github.com/roach88/revstore/internal/backend"
	"github.com/roach88/revstore/internal/querysql"
	"github.com/roach88/revstore/internal/resource"
)

// MetaStore is the resource_meta table scoped to one model.
type MetaStore struct {
	s     *Store
	model string
}

var _ backend.MetaStore = (*MetaStore)(nil)

func (m *MetaStore) Get(ctx context.Context, resourceID string) (*resource.ResourceMeta, error) {
	row := m.s.db.QueryRowContext(ctx, `
		SELECT `+querysql.MetaColumns+`
		FROM resource_meta
		WHERE model = ? AND resource_id = ?
	`, m.model, resourceID)

	meta, err := scanMeta(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, backend.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get meta %s/%s: %w", m.model, resourceID, err)
	}
	return meta, nil
}

// CompareAndSwap writes meta in one statement. The first write inserts and
// relies on the primary key; later writes update only when seq still holds
// the expected value.
func (m *MetaStore) CompareAndSwap(ctx context.Context, meta *resource.ResourceMeta, expectedSeq int64) error {
	indexed, err := marshalIndexed(meta.IndexedData)
	if err != nil {
		return fmt.Errorf("compare and swap %s/%s: %w", m.model, meta.ResourceID, err)
	}
	next := expectedSeq + 1

	var res sql.Result
	if expectedSeq == 0 {
		res, err = m.s.db.ExecContext(ctx, `
			INSERT INTO resource_meta
			(model, resource_id, current_revision_id, schema_version, total_revision_count,
			 created_time, created_by, updated_time, updated_by, is_deleted, indexed_data, seq)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(model, resource_id) DO NOTHING
		`,
			m.model,
			meta.ResourceID,
			meta.CurrentRevisionID,
			nullString(meta.SchemaVersion),
			meta.TotalRevisionCount,
			formatTime(meta.CreatedTime),
			meta.CreatedBy,
			formatTime(meta.UpdatedTime),
			meta.UpdatedBy,
			meta.IsDeleted,
			indexed,
			next,
		)
	} else {
		res, err = m.s.db.ExecContext(ctx, `
			UPDATE resource_meta SET
				current_revision_id = ?,
				schema_version = ?,
				total_revision_count = ?,
				created_time = ?,
				created_by = ?,
				updated_time = ?,
				updated_by = ?,
				is_deleted = ?,
				indexed_data = ?,
				seq = ?
			WHERE model = ? AND resource_id = ? AND seq = ?
		`,
			meta.CurrentRevisionID,
			nullString(meta.SchemaVersion),
			meta.TotalRevisionCount,
			formatTime(meta.CreatedTime),
			meta.CreatedBy,
			formatTime(meta.UpdatedTime),
			meta.UpdatedBy,
			meta.IsDeleted,
			indexed,
			next,
			m.model,
			meta.ResourceID,
			expectedSeq,
		)
	}
	if err != nil {
		return fmt.Errorf("compare and swap %s/%s: %w", m.model, meta.ResourceID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("compare and swap %s/%s: %w", m.model, meta.ResourceID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%s expected seq %d", backend.ErrSeqMismatch, m.model, meta.ResourceID, expectedSeq)
	}
	meta.Seq = next
	return nil
}

func (m *MetaStore) Delete(ctx context.Context, resourceID string) error {
	_, err := m.s.db.ExecContext(ctx, `
		DELETE FROM resource_meta WHERE model = ? AND resource_id = ?
	`, m.model, resourceID)
	if err != nil {
		return fmt.Errorf("delete meta %s/%s: %w", m.model, resourceID, err)
	}
	return nil
}

// Iter yields every meta of the model in resource id order.
func (m *MetaStore) Iter(ctx context.Context) iter.Seq2[*resource.ResourceMeta, error] {
	return m.s.yieldQuery(ctx, `
		SELECT `+querysql.MetaColumns+`
		FROM resource_meta
		WHERE model = ?
		ORDER BY resource_id COLLATE BINARY ASC
	`, m.model)
}

func (m *MetaStore) Len(ctx context.Context) (int, error) {
	var n int
	err := m.s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM resource_meta WHERE model = ?
	`, m.model).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count metas %s: %w", m.model, err)
	}
	return n, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanMeta reads one row selected with querysql.MetaColumns.
func scanMeta(row rowScanner) (*resource.ResourceMeta, error) {
	var (
		meta          resource.ResourceMeta
		schemaVersion sql.NullString
		createdTime   string
		updatedTime   string
		indexed       string
	)
	err := row.Scan(
		&meta.ResourceID,
		&meta.CurrentRevisionID,
		&schemaVersion,
		&meta.TotalRevisionCount,
		&createdTime,
		&meta.CreatedBy,
		&updatedTime,
		&meta.UpdatedBy,
		&meta.IsDeleted,
		&indexed,
		&meta.Seq,
	)
	if err != nil {
		return nil, err
	}

	meta.SchemaVersion = schemaVersion.String
	if meta.CreatedTime, err = parseTime("created_time", createdTime); err != nil {
		return nil, err
	}
	if meta.UpdatedTime, err = parseTime("updated_time", updatedTime); err != nil {
		return nil, err
	}
	if meta.IndexedData, err = unmarshalIndexed(indexed); err != nil {
		return nil, err
	}
	return &meta, nil
}

// queryMetas runs query and scans every row. Rows are read to the end
// before anything is yielded, so the single pooled connection is free again
// when callers write while iterating.
func (s *Store) queryMetas(ctx context.Context, query string, args ...any) ([]*resource.ResourceMeta, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query metas: %w", err)
	}
	defer rows.Close()

	metas := []*resource.ResourceMeta{}
	for rows.Next() {
		meta, err := scanMeta(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meta: %w", err)
		}
		metas = append(metas, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metas: %w", err)
	}
	return metas, nil
}

// yieldQuery defers the query until the sequence is ranged over.
func (s *Store) yieldQuery(ctx context.Context, query string, args ...any) iter.Seq2[*resource.ResourceMeta, error] {
	return func(yield func(*resource.ResourceMeta, error) bool) {
		metas, err := s.queryMetas(ctx, query, args...)
		if err != nil {
			yield(nil, err)
			return
		}
		yieldMetas(ctx, metas, yield)
	}
}

func yieldMetas(ctx context.Context, metas []*resource.ResourceMeta, yield func(*resource.ResourceMeta, error) bool) {
	for _, meta := range metas {
		if err := ctx.Err(); err != nil {
			yield(nil, err)
			return
		}
		if !yield(meta, nil) {
			return
		}
	}
}
