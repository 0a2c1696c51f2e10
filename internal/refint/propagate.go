package refint

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/revstore/internal/ir"
	"github.com/roach88/revstore/internal/queryir"
	"github.com/roach88/revstore/internal/resource"
)

// Store is what propagation needs from the resource manager.
type Store interface {
	// Search returns the ids of the resources of model matching q.
	Search(ctx context.Context, model string, q queryir.SearchQuery) ([]string, error)

	// Delete soft-deletes a resource and propagates its own dependents
	// with the same visited set.
	Delete(ctx context.Context, model, resourceID string, visited Visited) error

	// ClearReference removes targetID from rel.SourceField of the
	// resource through an ordinary update.
	ClearReference(ctx context.Context, rel resource.Relationship, resourceID, targetID string) error
}

// Visited tracks the resources one delete operation has reached.
type Visited map[string]bool

// Mark records model/id and reports whether it was new.
func (v Visited) Mark(model, id string) bool {
	key := model + "/" + id
	if v[key] {
		return false
	}
	v[key] = true
	return true
}

// Report summarises one propagation step.
type Report struct {
	Cascaded int
	Nulled   int
	Failed   int
}

// Propagate applies the delete policies of every relationship targeting
// model to the dependents of resourceID, deleted ones included, so a delete
// interrupted part way can be finished by deleting the root again.
// Dependents are handled in resource id order. A failing dependent is logged and skipped; the
// remaining dependents are still processed.
func Propagate(ctx context.Context, reg *Registry, store Store, logger *slog.Logger, model, resourceID string, visited Visited) Report {
	var report Report
	for _, rel := range reg.Dependents(model) {
		if rel.Kind != resource.RefResource || rel.OnDelete == resource.Dangling {
			continue
		}

		ids, err := store.Search(ctx, rel.SourceType, DependentsQuery(rel, resourceID))
		if err != nil {
			report.Failed++
			logger.Error("find dependents failed",
				"relationship", rel.String(),
				"target", resourceID,
				"error", err,
			)
			continue
		}

		for _, id := range ids {
			switch rel.OnDelete {
			case resource.Cascade:
				if !visited.Mark(rel.SourceType, id) {
					continue
				}
				err = store.Delete(ctx, rel.SourceType, id, visited)
				if err == nil {
					report.Cascaded++
				}
			case resource.SetNull:
				err = store.ClearReference(ctx, rel, id, resourceID)
				if err == nil {
					report.Nulled++
				}
			}
			if err != nil {
				report.Failed++
				logger.Error("propagate delete failed",
					"relationship", rel.String(),
					"dependent", id,
					"target", resourceID,
					"error", err,
				)
			}
		}
	}
	return report
}

// DependentsQuery selects the resources, live or deleted, whose rel field
// references targetID.
func DependentsQuery(rel resource.Relationship, targetID string) queryir.SearchQuery {
	var filter queryir.Condition
	if rel.IsList {
		filter = queryir.Contains(rel.SourceField, targetID)
	} else {
		filter = queryir.Eq(rel.SourceField, targetID)
	}
	return queryir.SearchQuery{
		Filter:  filter,
		Deleted: queryir.All,
		Sort:    []queryir.SortKey{{Field: resource.FieldResourceID}},
	}
}

// ClearRef removes targetID from the reference at path in a decoded
// payload document: a single reference becomes null, a list loses the
// matching entries. It reports whether the document changed.
func ClearRef(doc map[string]any, path, targetID string, isList bool) (bool, error) {
	segments := strings.Split(path, ".")
	parent := doc
	for _, seg := range segments[:len(segments)-1] {
		next, ok := parent[seg].(map[string]any)
		if !ok {
			return false, nil
		}
		parent = next
	}
	key := segments[len(segments)-1]

	current, ok := parent[key]
	if !ok || current == nil {
		return false, nil
	}
	if !isList {
		if s, ok := current.(string); ok && s == targetID {
			parent[key] = nil
			return true, nil
		}
		return false, nil
	}

	items, ok := current.([]any)
	if !ok {
		return false, fmt.Errorf("reference list %s is %T, not a list", path, current)
	}
	kept := make([]any, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && s == targetID {
			continue
		}
		kept = append(kept, item)
	}
	if len(kept) == len(items) {
		return false, nil
	}
	parent[key] = kept
	return true, nil
}

// RefIDs returns the resource ids held by an indexed reference value: a
// string, or a list of strings. Nulls and other values hold none.
func RefIDs(v ir.IRValue) []string {
	switch val := v.(type) {
	case ir.IRString:
		if val == "" {
			return nil
		}
		return []string{string(val)}
	case ir.IRArray:
		var out []string
		for _, item := range val {
			if s, ok := item.(ir.IRString); ok && s != "" {
				out = append(out, string(s))
			}
		}
		return out
	}
	return nil
}
