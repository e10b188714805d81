// Package cache owns the process-wide mapping from (repoId, branch) to the
// loaded graph, indexer and retriever for that pair, per the Graph Cache
// component. It is the single owner of that lifecycle: callers never hold a
// graph reference across a cache miss.
package cache

import (
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/sevigo/graphwarden/internal/graph"
	"github.com/sevigo/graphwarden/internal/storage"
)

// Indexer is the subset of the indexing pipeline the cache needs to know
// about to serialise writers per (repoId, branch). The concrete
// implementation lives in internal/indexer.
type Indexer interface {
	SyncIncremental(changedPaths []string) error
}

// Retriever is the subset of context assembly the cache exposes per entry.
// The concrete implementation lives in internal/retriever.
type Retriever interface {
	BuildContext(diff string) (any, error)
}

// Entry bundles everything scoped to a single (repoId, branch) pair. Graph
// reads (BFS, blast radius) may run concurrently; graph mutation
// (incremental indexing, snapshot rewrite) and the entry's Indexer/Retriever
// fields themselves are protected by Lock, matching the spec's "one
// exclusive writer, many readers" rule.
type Entry struct {
	mu sync.RWMutex

	Graph     *graph.Graph
	Indexer   Indexer
	Retriever Retriever
	Store     storage.Store
}

// RLock/RUnlock guard a read-only traversal of the graph (BFS, blast radius,
// retriever context assembly). Lock/Unlock guard indexing writes and
// snapshot rewrites.
func (e *Entry) RLock()   { e.mu.RLock() }
func (e *Entry) RUnlock() { e.mu.RUnlock() }
func (e *Entry) Lock()    { e.mu.Lock() }
func (e *Entry) Unlock()  { e.mu.Unlock() }

// Cache is the per-process (repoId, branch) -> *Entry registry.
type Cache struct {
	mu    sync.Mutex // serialises first-load races per key
	store *gocache.Cache
}

// New creates an empty Graph Cache. Entries never expire on their own; they
// are evicted explicitly on repository deletion via Evict.
func New() *Cache {
	return &Cache{store: gocache.New(gocache.NoExpiration, 10*time.Minute)}
}

func key(repoID int64, branch string) string {
	return fmt.Sprintf("%d/%s", repoID, branch)
}

// Get returns the existing entry for (repoID, branch), or nil if none is
// loaded. It never triggers a load; use GetOrLoad for that.
func (c *Cache) Get(repoID int64, branch string) (*Entry, bool) {
	v, ok := c.store.Get(key(repoID, branch))
	if !ok {
		return nil, false
	}
	return v.(*Entry), true
}

// GetOrLoad returns the cached entry for (repoID, branch), loading it via
// load on first access. Concurrent callers for the same pair collapse onto
// a single load.
func (c *Cache) GetOrLoad(repoID int64, branch string, load func() (*Entry, error)) (*Entry, error) {
	k := key(repoID, branch)
	if v, ok := c.store.Get(k); ok {
		return v.(*Entry), nil
	}

	// Serialise the load itself: two webhook deliveries racing for the
	// same (repoId, branch) on first access must not clone/parse twice.
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.store.Get(k); ok {
		return v.(*Entry), nil
	}
	entry, err := load()
	if err != nil {
		return nil, err
	}
	c.store.Set(k, entry, gocache.NoExpiration)
	return entry, nil
}

// Evict drops the entry for (repoID, branch), e.g. on repository deletion.
func (c *Cache) Evict(repoID int64, branch string) {
	c.store.Delete(key(repoID, branch))
}

// Len reports the number of currently loaded entries, for metrics/debugging.
func (c *Cache) Len() int {
	return c.store.ItemCount()
}
