package manager

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/revstore/internal/backend"
	"github.com/roach88/revstore/internal/backend/memory"
	"github.com/roach88/revstore/internal/resource"
	"github.com/roach88/revstore/internal/store"
	"github.com/roach88/revstore/internal/testutil"
)

var testTime = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

type Zone struct {
	Name  string `json:"name"`
	Level int    `json:"level"`
}

type Guild struct {
	Name string `json:"name"`
}

type Character struct {
	Name string `json:"name"`
}

type Monster struct {
	Name    string                          `json:"name"`
	OwnerID resource.ResourceRef[Character] `json:"owner_id" revstore:"on_delete=cascade"`
	GuildID *resource.ResourceRef[Guild]    `json:"guild_id" revstore:"on_delete=set_null"`
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// forEachBackend runs fn against the in-memory and the SQLite backend.
func forEachBackend(t *testing.T, fn func(t *testing.T, b backend.Backend)) {
	t.Helper()
	t.Run("memory", func(t *testing.T) {
		fn(t, memory.New())
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := store.Open(filepath.Join(t.TempDir(), "revstore.db"), store.WithLogger(discardLogger()))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		fn(t, s)
	})
}

func newTestEngine(b backend.Backend, opts ...Option) *Engine {
	base := []Option{
		WithLogger(discardLogger()),
		WithIDGenerator(testutil.NewIDs("")),
		WithClock(testutil.NewClock(testTime, time.Second).Now),
	}
	return New(b, append(base, opts...)...)
}

func actorCtx() context.Context {
	return WithActor(context.Background(), "alice", testTime)
}

func registerZones(t *testing.T, e *Engine, opts ...ModelOption) *ResourceManager[Zone] {
	t.Helper()
	opts = append([]ModelOption{WithIndexed(
		resource.IndexableField{Path: "name", Type: resource.TypeString},
		resource.IndexableField{Path: "level", Type: resource.TypeInt},
	)}, opts...)
	zones, err := Register[Zone](e, opts...)
	require.NoError(t, err)
	return zones
}

// requireCountInvariant checks that every meta counts exactly the revisions
// its backend stores.
func requireCountInvariant(t *testing.T, e *Engine) {
	t.Helper()
	problems, err := e.Verify(context.Background())
	require.NoError(t, err)
	require.Empty(t, problems)
}
