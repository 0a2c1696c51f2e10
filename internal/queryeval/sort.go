package queryeval

import (
	"cmp"
	"slices"
	"strings"

	"github.com/roach88/revstore/internal/ir"
	"github.com/roach88/revstore/internal/queryir"
	"github.com/roach88/revstore/internal/resource"
)

// Rank values by type group for sorting.
const (
	rankNull = iota
	rankBool
	rankNumber
	rankString
	rankArray
	rankObject
)

func rank(v ir.IRValue, present bool) int {
	if !present {
		return rankNull
	}
	switch v.(type) {
	case ir.IRBool:
		return rankBool
	case ir.IRInt, ir.IRFloat:
		return rankNumber
	case ir.IRString:
		return rankString
	case ir.IRArray:
		return rankArray
	case ir.IRObject:
		return rankObject
	default:
		return rankNull
	}
}

// CompareValues orders two resolved field values. Absent and null values
// sort first, then booleans, numbers, strings, arrays and objects.
// Composite values compare by their canonical JSON form.
func CompareValues(a ir.IRValue, aPresent bool, b ir.IRValue, bPresent bool) int {
	ra, rb := rank(a, aPresent), rank(b, bPresent)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch ra {
	case rankBool:
		return cmp.Compare(boolInt(a.(ir.IRBool)), boolInt(b.(ir.IRBool)))
	case rankNumber:
		c, _ := compareNumbers(a, b)
		return c
	case rankString:
		return strings.Compare(string(a.(ir.IRString)), string(b.(ir.IRString)))
	case rankArray, rankObject:
		return strings.Compare(ir.Stringify(a), ir.Stringify(b))
	default:
		return 0
	}
}

func boolInt(b ir.IRBool) int {
	if b {
		return 1
	}
	return 0
}

// Compare orders two metas by the sort keys, then by resource_id.
func Compare(a, b *resource.ResourceMeta, keys []queryir.SortKey) int {
	for _, key := range keys {
		av, aok := a.Field(key.Field)
		bv, bok := b.Field(key.Field)
		c := CompareValues(av, aok, bv, bok)
		if key.Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return strings.Compare(a.ResourceID, b.ResourceID)
}

// Sort orders metas in place.
func Sort(metas []*resource.ResourceMeta, keys []queryir.SortKey) {
	slices.SortStableFunc(metas, func(a, b *resource.ResourceMeta) int {
		return Compare(a, b, keys)
	})
}

// Paginate applies offset then limit. A zero limit means no limit.
func Paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// Apply runs the full pipeline over a dataset: filter, sort, paginate.
// The input slice is not modified.
func Apply(metas []*resource.ResourceMeta, q queryir.SearchQuery) ([]*resource.ResourceMeta, error) {
	m, err := Compile(q)
	if err != nil {
		return nil, err
	}
	return m.Apply(metas), nil
}

// Apply filters, sorts and paginates metas with a compiled matcher.
func (m *Matcher) Apply(metas []*resource.ResourceMeta) []*resource.ResourceMeta {
	var out []*resource.ResourceMeta
	for _, meta := range metas {
		if m.Match(meta) {
			out = append(out, meta)
		}
	}
	Sort(out, m.query.Sort)
	return Paginate(out, m.query.Limit, m.query.Offset)
}
