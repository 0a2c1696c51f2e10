package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/revstore/internal/backend"
	"github.com/roach88/revstore/internal/ir"
)

// BlobStore is the content-addressed blobs table.
type BlobStore struct {
	s *Store
}

var _ backend.BlobStore = (*BlobStore)(nil)

// Put stores data under its content id.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - identical bytes are
// stored once.
func (b *BlobStore) Put(ctx context.Context, data []byte) (string, error) {
	if data == nil {
		data = []byte{}
	}
	id := ir.BlobID(data)
	_, err := b.s.db.ExecContext(ctx, `
		INSERT INTO blobs (id, size, data)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, len(data), data)
	if err != nil {
		return "", fmt.Errorf("put blob: %w", err)
	}
	return id, nil
}

func (b *BlobStore) Get(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := b.s.db.QueryRowContext(ctx, `SELECT data FROM blobs WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, backend.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get blob %s: %w", id, err)
	}
	return data, nil
}

func (b *BlobStore) Exists(ctx context.Context, id string) (bool, error) {
	var n int
	err := b.s.db.QueryRowContext(ctx, `SELECT count(*) FROM blobs WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("blob exists %s: %w", id, err)
	}
	return n > 0, nil
}

func (b *BlobStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := b.s.db.QueryRowContext(ctx, `SELECT count(*) FROM blobs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count blobs: %w", err)
	}
	return n, nil
}
