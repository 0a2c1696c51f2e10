package store

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/revstore/internal/ir"
	"github.com/roach88/revstore/internal/resource"
)

var testTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// createTestStore creates a new file-backed store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestMeta creates a meta with minimal required fields.
func createTestMeta(id string, data ir.IRObject) *resource.ResourceMeta {
	return &resource.ResourceMeta{
		ResourceID:         id,
		CurrentRevisionID:  "rev-" + id,
		TotalRevisionCount: 1,
		CreatedTime:        testTime,
		CreatedBy:          "alice",
		UpdatedTime:        testTime,
		UpdatedBy:          "alice",
		IndexedData:        data,
	}
}

// createTestRevision creates a stable revision with the given payload.
func createTestRevision(resourceID, revisionID, parent string, data []byte) resource.Revision {
	return resource.Revision{
		Info: resource.RevisionInfo{
			UID:              "uid-" + revisionID,
			ResourceID:       resourceID,
			RevisionID:       revisionID,
			ParentRevisionID: parent,
			DataHash:         ir.PayloadHash(data),
			Status:           resource.StatusStable,
			CreatedTime:      testTime,
			CreatedBy:        "alice",
			UpdatedTime:      testTime,
			UpdatedBy:        "alice",
		},
		Data: data,
	}
}
