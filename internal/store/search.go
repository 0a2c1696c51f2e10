package store

import (
	"context"
	"fmt"
	"iter"

	"github.com/roach88/revstore/internal/queryeval"
	"github.com/roach88/revstore/internal/queryir"
	"github.com/roach88/revstore/internal/resource"
)

// IterSearch compiles q to SQL. When part of the predicate has no SQL form
// the statement selects a superset and the full query is evaluated over it
// with queryeval, so results never depend on what the translator supports.
func (m *MetaStore) IterSearch(ctx context.Context, q queryir.SearchQuery) iter.Seq2[*resource.ResourceMeta, error] {
	return func(yield func(*resource.ResourceMeta, error) bool) {
		metas, err := m.search(ctx, q)
		if err != nil {
			yield(nil, err)
			return
		}
		yieldMetas(ctx, metas, yield)
	}
}

func (m *MetaStore) search(ctx context.Context, q queryir.SearchQuery) ([]*resource.ResourceMeta, error) {
	stmt, err := m.s.compiler.Compile(m.model, q)
	if err != nil {
		return nil, err
	}

	metas, err := m.s.queryMetas(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", m.model, err)
	}
	if !stmt.Residual {
		return metas, nil
	}

	m.s.metrics.RecordSearchFallback(m.model)
	m.s.logger.Debug("search evaluated in memory",
		"model", m.model,
		"reason", stmt.Reason,
		"candidates", len(metas),
	)
	matcher, err := queryeval.Compile(q)
	if err != nil {
		return nil, err
	}
	return matcher.Apply(metas), nil
}

func (m *MetaStore) Count(ctx context.Context, q queryir.SearchQuery) (int, error) {
	stmt, err := m.s.compiler.Compile(m.model, q)
	if err != nil {
		return 0, err
	}

	if !stmt.Residual {
		var n int
		if err := m.s.db.QueryRowContext(ctx, stmt.CountSQL, stmt.CountArgs...).Scan(&n); err != nil {
			return 0, fmt.Errorf("count %s: %w", m.model, err)
		}
		return n, nil
	}

	metas, err := m.s.queryMetas(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", m.model, err)
	}
	m.s.metrics.RecordSearchFallback(m.model)
	m.s.logger.Debug("count evaluated in memory",
		"model", m.model,
		"reason", stmt.Reason,
		"candidates", len(metas),
	)
	matcher, err := queryeval.Compile(q)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, meta := range metas {
		if matcher.Match(meta) {
			n++
		}
	}
	return n, nil
}
