package manager

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/revstore/internal/backend"
	"github.com/roach88/revstore/internal/backend/memory"
	"github.com/roach88/revstore/internal/resource"
)

func TestUpdate_ConcurrentWritersOneWins(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend.Backend) {
		ctx := actorCtx()
		e := newTestEngine(b)
		zones := registerZones(t, e)

		res, err := zones.Create(ctx, Zone{Name: "Forest"})
		require.NoError(t, err)
		id, r1 := res.Info.ResourceID, res.Info.RevisionID

		const writers = 8
		errs := make([]error, writers)
		var wg sync.WaitGroup
		for i := range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = zones.Update(ctx, id, Zone{Name: fmt.Sprintf("Forest %d", i)}, WithExpectedRevision(r1))
			}()
		}
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
				continue
			}
			assert.True(t, resource.IsConflict(err), "unexpected error: %v", err)
		}
		assert.Equal(t, 1, wins)

		meta, err := zones.GetMeta(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 2, meta.TotalRevisionCount)
		requireCountInvariant(t, e)
	})
}

func TestUpdate_ConcurrentAppendsKeepCount(t *testing.T) {
	ctx := actorCtx()
	e := newTestEngine(memory.New())
	zones := registerZones(t, e)

	res, err := zones.Create(ctx, Zone{Name: "Forest"})
	require.NoError(t, err)
	id := res.Info.ResourceID

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := zones.Update(ctx, id, Zone{Name: "Forest", Level: i})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			assert.True(t, resource.IsConflict(err), "unexpected error: %v", err)
		}()
	}
	wg.Wait()

	meta, err := zones.GetMeta(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1+wins, meta.TotalRevisionCount)
	requireCountInvariant(t, e)
}
