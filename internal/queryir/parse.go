package queryir

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/revstore/internal/ir"
)

// queryDoc is the YAML form of a SearchQuery:
//
//	filter:
//	  and:
//	    - {field: name, op: contains, value: Deep}
//	    - not:
//	        - {field: level, op: gt, value: 10}
//	sort:
//	  - {field: name, desc: true}
//	limit: 20
type queryDoc struct {
	Filter        *predicateDoc `yaml:"filter"`
	Sort          []sortDoc     `yaml:"sort"`
	Limit         int           `yaml:"limit"`
	Offset        int           `yaml:"offset"`
	Deleted       string        `yaml:"deleted"`
	CreatedBy     []string      `yaml:"created_by"`
	UpdatedBy     []string      `yaml:"updated_by"`
	CreatedAfter  time.Time     `yaml:"created_after"`
	CreatedBefore time.Time     `yaml:"created_before"`
	UpdatedAfter  time.Time     `yaml:"updated_after"`
	UpdatedBefore time.Time     `yaml:"updated_before"`
}

type sortDoc struct {
	Field string `yaml:"field"`
	Desc  bool   `yaml:"desc"`
}

type predicateDoc struct {
	Field     string         `yaml:"field"`
	Op        string         `yaml:"op"`
	Value     any            `yaml:"value"`
	Transform string         `yaml:"transform"`
	And       []predicateDoc `yaml:"and"`
	Or        []predicateDoc `yaml:"or"`
	Not       []predicateDoc `yaml:"not"`
}

// ParseYAML decodes and validates a YAML search query.
func ParseYAML(data []byte) (SearchQuery, error) {
	var doc queryDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return SearchQuery{}, fmt.Errorf("parse query: %w", err)
	}

	q := SearchQuery{
		CreatedTime: TimeRange{From: doc.CreatedAfter, To: doc.CreatedBefore},
		UpdatedTime: TimeRange{From: doc.UpdatedAfter, To: doc.UpdatedBefore},
		CreatedBy:   doc.CreatedBy,
		UpdatedBy:   doc.UpdatedBy,
		Deleted:     DeletionState(doc.Deleted),
		Limit:       doc.Limit,
		Offset:      doc.Offset,
	}
	for _, s := range doc.Sort {
		q.Sort = append(q.Sort, SortKey{Field: s.Field, Desc: s.Desc})
	}
	if doc.Filter != nil {
		pred, err := doc.Filter.predicate()
		if err != nil {
			return SearchQuery{}, fmt.Errorf("parse query: %w", err)
		}
		q.Filter = pred
	}

	if err := Validate(q); err != nil {
		return SearchQuery{}, err
	}
	return q, nil
}

func (d predicateDoc) predicate() (Predicate, error) {
	groups := 0
	var g Group
	if d.And != nil {
		groups++
		g.Op = GroupAnd
	}
	if d.Or != nil {
		groups++
		g.Op = GroupOr
	}
	if d.Not != nil {
		groups++
		g.Op = GroupNot
	}

	switch {
	case groups > 1:
		return nil, fmt.Errorf("predicate mixes group operators")
	case groups == 1 && d.Field != "":
		return nil, fmt.Errorf("predicate mixes a group with field %q", d.Field)
	case groups == 1:
		var children []predicateDoc
		switch g.Op {
		case GroupAnd:
			children = d.And
		case GroupOr:
			children = d.Or
		default:
			children = d.Not
		}
		for i, child := range children {
			p, err := child.predicate()
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", g.Op, i, err)
			}
			g.Children = append(g.Children, p)
		}
		return g, nil
	}

	value, err := ir.FromGo(d.Value)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", d.Field, err)
	}
	return Condition{
		Field:     d.Field,
		Op:        Op(d.Op),
		Value:     value,
		Transform: Transform(d.Transform),
	}, nil
}
