// Package memory is an in-process Backend. Search is a full scan evaluated
// by package queryeval, which makes this backend the reference the SQLite
// backend is checked against.
package memory

import (
	"context"
	"fmt"
	"iter"
	"maps"
	"slices"
	"sync"

	"github.com/roach88/revstore/internal/backend"
	"github.com/roach88/revstore/internal/ir"
	"github.com/roach88/revstore/internal/queryeval"
	"github.com/roach88/revstore/internal/queryir"
	"github.com/roach88/revstore/internal/resource"
)

// Backend keeps every model in maps guarded by one mutex per store.
//
// Thread-safety: all stores are safe for concurrent use.
type Backend struct {
	mu        sync.Mutex
	metas     map[string]*MetaStore
	revisions map[string]*RevisionStore
	blobs     *BlobStore
}

// New creates an empty backend.
func New() *Backend {
	return &Backend{
		metas:     map[string]*MetaStore{},
		revisions: map[string]*RevisionStore{},
		blobs:     &BlobStore{data: map[string][]byte{}},
	}
}

var _ backend.Backend = (*Backend)(nil)

// MetaStore returns the meta store of model, creating it on first use.
func (b *Backend) MetaStore(model string) (backend.MetaStore, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.metas[model]
	if !ok {
		s = &MetaStore{metas: map[string]*resource.ResourceMeta{}}
		b.metas[model] = s
	}
	return s, nil
}

// RevisionStore returns the revision store of model, creating it on first
// use.
func (b *Backend) RevisionStore(model string) (backend.RevisionStore, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.revisions[model]
	if !ok {
		s = &RevisionStore{revisions: map[string]map[string]resource.Revision{}, order: map[string][]string{}}
		b.revisions[model] = s
	}
	return s, nil
}

// BlobStore returns the shared blob store.
func (b *Backend) BlobStore() backend.BlobStore {
	return b.blobs
}

// Close is a no-op.
func (b *Backend) Close() error {
	return nil
}

// MetaStore is the in-memory backend.MetaStore.
type MetaStore struct {
	mu    sync.RWMutex
	metas map[string]*resource.ResourceMeta
}

func (s *MetaStore) Get(ctx context.Context, resourceID string) (*resource.ResourceMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.metas[resourceID]
	if !ok {
		return nil, backend.ErrNotFound
	}
	return meta.Clone(), nil
}

func (s *MetaStore) CompareAndSwap(ctx context.Context, meta *resource.ResourceMeta, expectedSeq int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	if stored, ok := s.metas[meta.ResourceID]; ok {
		current = stored.Seq
	}
	if current != expectedSeq {
		return fmt.Errorf("%w: stored %d, expected %d", backend.ErrSeqMismatch, current, expectedSeq)
	}
	meta.Seq = expectedSeq + 1
	s.metas[meta.ResourceID] = meta.Clone()
	return nil
}

func (s *MetaStore) Delete(ctx context.Context, resourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.metas, resourceID)
	return nil
}

// snapshot copies every meta in resource id order.
func (s *MetaStore) snapshot() []*resource.ResourceMeta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*resource.ResourceMeta, 0, len(s.metas))
	for _, id := range slices.Sorted(maps.Keys(s.metas)) {
		out = append(out, s.metas[id].Clone())
	}
	return out
}

func (s *MetaStore) Iter(ctx context.Context) iter.Seq2[*resource.ResourceMeta, error] {
	return yieldAll(ctx, s.snapshot())
}

func (s *MetaStore) Len(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.metas), nil
}

func (s *MetaStore) IterSearch(ctx context.Context, q queryir.SearchQuery) iter.Seq2[*resource.ResourceMeta, error] {
	m, err := queryeval.Compile(q)
	if err != nil {
		return func(yield func(*resource.ResourceMeta, error) bool) {
			yield(nil, err)
		}
	}
	return yieldAll(ctx, m.Apply(s.snapshot()))
}

func (s *MetaStore) Count(ctx context.Context, q queryir.SearchQuery) (int, error) {
	m, err := queryeval.Compile(q)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, meta := range s.snapshot() {
		if m.Match(meta) {
			n++
		}
	}
	return n, nil
}

func yieldAll(ctx context.Context, metas []*resource.ResourceMeta) iter.Seq2[*resource.ResourceMeta, error] {
	return func(yield func(*resource.ResourceMeta, error) bool) {
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
}

// RevisionStore is the in-memory backend.RevisionStore.
type RevisionStore struct {
	mu        sync.RWMutex
	revisions map[string]map[string]resource.Revision
	order     map[string][]string
}

func (s *RevisionStore) Put(ctx context.Context, rev resource.Revision) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.revisions[rev.Info.ResourceID]
	if !ok {
		byID = map[string]resource.Revision{}
		s.revisions[rev.Info.ResourceID] = byID
	}
	if _, exists := byID[rev.Info.RevisionID]; !exists {
		s.order[rev.Info.ResourceID] = append(s.order[rev.Info.ResourceID], rev.Info.RevisionID)
	}
	rev.Data = slices.Clone(rev.Data)
	byID[rev.Info.RevisionID] = rev
	return nil
}

func (s *RevisionStore) Get(ctx context.Context, resourceID, revisionID string) (resource.Revision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rev, ok := s.revisions[resourceID][revisionID]
	if !ok {
		return resource.Revision{}, backend.ErrNotFound
	}
	rev.Data = slices.Clone(rev.Data)
	return rev, nil
}

func (s *RevisionStore) List(ctx context.Context, resourceID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order[resourceID]), nil
}

func (s *RevisionStore) Delete(ctx context.Context, resourceID, revisionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID := s.revisions[resourceID]
	if _, ok := byID[revisionID]; !ok {
		return nil
	}
	delete(byID, revisionID)
	s.order[resourceID] = slices.DeleteFunc(s.order[resourceID], func(id string) bool {
		return id == revisionID
	})
	return nil
}

// BlobStore is the in-memory backend.BlobStore.
type BlobStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func (s *BlobStore) Put(ctx context.Context, data []byte) (string, error) {
	id := ir.BlobID(data)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[id]; !ok {
		s.data[id] = slices.Clone(data)
	}
	return id, nil
}

func (s *BlobStore) Get(ctx context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[id]
	if !ok {
		return nil, backend.ErrNotFound
	}
	return slices.Clone(data), nil
}

func (s *BlobStore) Exists(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[id]
	return ok, nil
}

func (s *BlobStore) Len(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data), nil
}
