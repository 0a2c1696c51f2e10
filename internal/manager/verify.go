package manager

import (
	"context"
	"fmt"

	"github.com/roach88/revstore/internal/ir"
)

// Inconsistency is one storage invariant violation found by Verify.
type Inconsistency struct {
	Model      string `json:"model"`
	ResourceID string `json:"resource_id"`
	Problem    string `json:"problem"`
}

// Verify checks every registered model: the revision count of each meta
// must equal the number of stored revisions, the current revision must
// exist, and every revision must match its data hash.
func (e *Engine) Verify(ctx context.Context) ([]Inconsistency, error) {
	found := []Inconsistency{}
	for _, name := range e.Models() {
		m, err := e.lookup(name)
		if err != nil {
			return nil, err
		}
		info := m.info()
		for meta, err := range info.metas.Iter(ctx) {
			if err != nil {
				return nil, fmt.Errorf("verify %s: %w", name, err)
			}
			report := func(format string, args ...any) {
				found = append(found, Inconsistency{Model: name, ResourceID: meta.ResourceID, Problem: fmt.Sprintf(format, args...)})
			}

			ids, err := info.revs.List(ctx, meta.ResourceID)
			if err != nil {
				return nil, fmt.Errorf("verify %s/%s: %w", name, meta.ResourceID, err)
			}
			if len(ids) != meta.TotalRevisionCount {
				report("total_revision_count is %d, %d revisions stored", meta.TotalRevisionCount, len(ids))
			}

			current := false
			for _, revID := range ids {
				rev, err := info.revs.Get(ctx, meta.ResourceID, revID)
				if err != nil {
					return nil, fmt.Errorf("verify %s/%s/%s: %w", name, meta.ResourceID, revID, err)
				}
				if rev.Info.DataHash != "" && ir.PayloadHash(rev.Data) != rev.Info.DataHash {
					report("revision %s does not match its data hash", revID)
				}
				if revID == meta.CurrentRevisionID {
					current = true
				}
			}
			if !current {
				report("current revision %s is not stored", meta.CurrentRevisionID)
			}
		}
	}
	return found, nil
}
