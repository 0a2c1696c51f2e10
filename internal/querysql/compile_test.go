package querysql

import (
	"fmt"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/revstore/internal/ir"
	"github.com/roach88/revstore/internal/queryir"
	"github.com/roach88/revstore/internal/resource"
)

func render(t *testing.T, stmt *Statement) []byte {
	t.Helper()
	args, err := json.Marshal(stmt.Args)
	require.NoError(t, err)
	return []byte(fmt.Sprintf("%s\n-- residual: %t\n-- args: %s\n", stmt.SQL, stmt.Residual, args))
}

func TestCompileGolden(t *testing.T) {
	tests := []struct {
		name  string
		model string
		query queryir.SearchQuery
	}{
		{
			name:  "eq_string",
			model: "Zone",
			query: queryir.SearchQuery{Filter: queryir.Eq("name", "Forest")},
		},
		{
			name:  "groups",
			model: "Monster",
			query: queryir.SearchQuery{Filter: queryir.And(
				queryir.Not(queryir.Eq("level", 5)),
				queryir.Or(queryir.IsNull("guild", true), queryir.Exists("guild", false)),
			)},
		},
		{
			name:  "sort_paginate",
			model: "Monster",
			query: queryir.SearchQuery{
				CreatedBy: []string{"alice", "bob"},
				Sort:      []queryir.SortKey{{Field: "level", Desc: true}, {Field: "created_time"}},
				Limit:     10,
				Offset:    20,
			},
		},
		{
			name:  "contains_length",
			model: "Monster",
			query: queryir.SearchQuery{Filter: queryir.And(
				queryir.Contains("tags", "wet"),
				queryir.Gte("name", 3).WithTransform(queryir.Length),
				queryir.NotInList("rank", "a", nil),
			)},
		},
		{
			name:  "residual_pushdown",
			model: "Monster",
			query: queryir.SearchQuery{
				Filter: queryir.And(queryir.Regex("name", "^D"), queryir.Eq("level", 5)),
				Sort:   []queryir.SortKey{{Field: "name"}},
				Limit:  5,
			},
		},
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
	)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := NewCompiler().Compile(tt.model, tt.query)
			require.NoError(t, err)
			g.Assert(t, tt.name, render(t, stmt))
		})
	}
}

func TestCompileNeverInterpolatesValues(t *testing.T) {
	q := queryir.SearchQuery{Filter: queryir.Or(
		queryir.Eq("name", "x' OR 1=1 --"),
		queryir.StartsWith("name", "secret-prefix"),
		queryir.InList("code", "listed-value"),
	)}

	stmt, err := NewCompiler().Compile("Zone", q)
	require.NoError(t, err)

	assert.NotContains(t, stmt.SQL, "OR 1=1")
	assert.NotContains(t, stmt.SQL, "secret-prefix")
	assert.NotContains(t, stmt.SQL, "listed-value")
	assert.Contains(t, stmt.Args, "x' OR 1=1 --")
}

func TestCompileRejectsInvalidFieldPath(t *testing.T) {
	_, err := NewCompiler().Compile("Zone", queryir.SearchQuery{Filter: queryir.Eq(`name"') --`, 1)})
	require.Error(t, err)
	assert.True(t, resource.IsValidation(err))
}

func TestCompileUntranslatable(t *testing.T) {
	tests := map[string]queryir.Predicate{
		"regex":            queryir.Regex("name", "^D"),
		"eq array":         queryir.Eq("tags", []string{"a"}),
		"contains object":  queryir.Contains("tags", map[string]any{"a": 1}),
		"in_list of lists": queryir.InList("tags", []any{"a"}),
		"nested in or":     queryir.Or(queryir.Eq("name", "a"), queryir.Regex("name", "b")),
	}

	for name, pred := range tests {
		t.Run(name, func(t *testing.T) {
			stmt, err := NewCompiler().Compile("Zone", queryir.SearchQuery{
				Filter: pred,
				Sort:   []queryir.SortKey{{Field: "name"}},
				Limit:  1,
			})
			require.NoError(t, err)
			assert.True(t, stmt.Residual)
			assert.NotEmpty(t, stmt.Reason)
			assert.NotContains(t, stmt.SQL, "ORDER BY", "residual statements leave sorting to the caller")
			assert.NotContains(t, stmt.SQL, "LIMIT")
			assert.Equal(t, []any{"Zone"}, stmt.Args, "nothing outside a top-level and is pushed down")
		})
	}
}

func TestCompileBaseFilters(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	stmt, err := NewCompiler().Compile("Zone", queryir.SearchQuery{
		Deleted:     queryir.All,
		UpdatedTime: queryir.TimeRange{From: from, To: from.Add(time.Hour)},
		UpdatedBy:   []string{"alice"},
	})
	require.NoError(t, err)

	assert.NotContains(t, stmt.SQL, "is_deleted =")
	assert.Contains(t, stmt.SQL, "updated_time >= ? AND updated_time < ? AND updated_by IN (?)")
	assert.Equal(t, []any{"Zone", string(ir.Time(from)), string(ir.Time(from.Add(time.Hour))), "alice"}, stmt.Args)

	stmt, err = NewCompiler().Compile("Zone", queryir.SearchQuery{Deleted: queryir.Deleted})
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, "is_deleted = 1")
}

func TestCompileEmptyGroups(t *testing.T) {
	c := NewCompiler()

	sql, _, err := c.compilePredicate(queryir.And())
	require.NoError(t, err)
	assert.Equal(t, "1", sql)

	sql, _, err = c.compilePredicate(queryir.Or())
	require.NoError(t, err)
	assert.Equal(t, "0", sql)

	sql, _, err = c.compilePredicate(queryir.Not())
	require.NoError(t, err)
	assert.Equal(t, "0", sql)
}

func TestCompileOffsetWithoutLimit(t *testing.T) {
	stmt, err := NewCompiler().Compile("Zone", queryir.SearchQuery{Offset: 3})
	require.NoError(t, err)

	assert.Contains(t, stmt.SQL, "LIMIT -1 OFFSET ?")
	assert.Equal(t, []any{"Zone", int64(3)}, stmt.Args)
	assert.Equal(t, []any{"Zone"}, stmt.CountArgs)
}

func TestCompileMetaOperands(t *testing.T) {
	c := NewCompiler()

	sql, args, err := c.compileCondition(queryir.Eq("is_deleted", true))
	require.NoError(t, err)
	assert.Equal(t, "CASE WHEN (CASE WHEN is_deleted THEN 'true' ELSE 'false' END) = 'true' THEN 1 ELSE 0 END", sql)
	assert.Empty(t, args)

	sql, args, err = c.compileCondition(queryir.Gte("total_revision_count", 2))
	require.NoError(t, err)
	assert.Equal(t, "CASE WHEN 'integer' IN ('integer', 'real') AND total_revision_count >= ? THEN 1 ELSE 0 END", sql)
	assert.Equal(t, []any{int64(2)}, args)

	sql, _, err = c.compileCondition(queryir.Contains("created_by", "ali"))
	require.NoError(t, err)
	assert.NotContains(t, sql, "json_each", "meta fields are never arrays")
}
