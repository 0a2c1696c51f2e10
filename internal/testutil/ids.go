package testutil

import (
	"fmt"
	"sync"
)

// IDs generates readable sequential ids: "<prefix>-1", "<prefix>-2", ...
//
// Implements resource.IDGenerator. Unlike resource.SequenceGenerator it
// never runs out, so tests do not need to know how many ids an operation
// consumes.
//
// Thread-safety: safe for concurrent use via internal mutex.
type IDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewIDs creates a generator. An empty prefix means "id".
func NewIDs(prefix string) *IDs {
	if prefix == "" {
		prefix = "id"
	}
	return &IDs{prefix: prefix}
}

// Generate returns the next id.
func (g *IDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
