// Package sequence issues prefix-scoped, monotonically increasing entity
// identifiers such as "APT-42" or "PAT-7". Sequences are gap-tolerant: a
// value handed out but never persisted by the caller is simply lost.
package sequence

import (
	"context"
	"fmt"
	"sync"
)

// Generator hands out the next identifier for an entity-type prefix.
// Implementations must be safe for concurrent use.
type Generator interface {
	Next(ctx context.Context, prefix string) (string, error)
}

// InMemoryGenerator is a process-local Generator backed by a counter map.
type InMemoryGenerator struct {
	mu       sync.Mutex
	counters map[string]int64
}

func NewInMemoryGenerator() *InMemoryGenerator {
	return &InMemoryGenerator{counters: make(map[string]int64)}
}

func (g *InMemoryGenerator) Next(_ context.Context, prefix string) (string, error) {
	if prefix == "" {
		return "", fmt.Errorf("sequence prefix is required")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counters[prefix]++
	return fmt.Sprintf("%s-%d", prefix, g.counters[prefix]), nil
}

// Seed advances a prefix counter to at least n. Used when loading existing
// records at startup so new ids never collide with persisted ones.
func (g *InMemoryGenerator) Seed(prefix string, n int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.counters[prefix] < n {
		g.counters[prefix] = n
	}
}
