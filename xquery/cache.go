package xquery

import (
	"sync"

	"go.uber.org/zap"

	"github.com/ipvc/tabx/logger"
)

// LoadFunc supplies the serialized XML for a dataset when the cache
// has no usable parse.
type LoadFunc func() ([]byte, error)

// Cache holds one parsed tree per dataset, keyed by dataset id and
// versioned by artifact generation. Entries move Uncached -> Parsed on
// first use and Parsed -> Stale on invalidation; a stale entry is
// dropped and re-parsed on the next read. Entries live for the process
// lifetime.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	log     *zap.SugaredLogger
}

type cacheEntry struct {
	mu         sync.RWMutex
	tree       *Tree
	generation int64
	stale      bool
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]*cacheEntry),
		log:     logger.Named("xquery-cache"),
	}
}

// Tree returns the parsed tree for a dataset at the given generation,
// loading and parsing via load only when no fresh parse exists.
// Concurrent readers of a fresh entry proceed without blocking each
// other; a re-parse holds the entry exclusively for the swap.
func (c *Cache) Tree(datasetID string, generation int64, load LoadFunc) (*Tree, error) {
	c.mu.Lock()
	e, ok := c.entries[datasetID]
	if !ok {
		e = &cacheEntry{}
		c.entries[datasetID] = e
	}
	c.mu.Unlock()

	e.mu.RLock()
	if e.tree != nil && !e.stale && e.generation == generation {
		t := e.tree
		e.mu.RUnlock()
		return t, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tree != nil && !e.stale && e.generation == generation {
		return e.tree, nil
	}

	doc, err := load()
	if err != nil {
		return nil, err
	}
	tree, err := ParseTree(doc)
	if err != nil {
		return nil, err
	}
	e.tree = tree
	e.generation = generation
	e.stale = false
	c.log.Debugw("parsed XML tree", "dataset_id", datasetID, "generation", generation)
	return tree, nil
}

// Invalidate marks the dataset's cached parse stale. The next Tree
// call re-parses.
func (c *Cache) Invalidate(datasetID string) {
	c.mu.Lock()
	e, ok := c.entries[datasetID]
	c.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	e.stale = true
	e.mu.Unlock()
	c.log.Debugw("invalidated cached parse", "dataset_id", datasetID)
}

// Drop removes a dataset's cache entry entirely, for dataset deletion.
func (c *Cache) Drop(datasetID string) {
	c.mu.Lock()
	delete(c.entries, datasetID)
	c.mu.Unlock()
}
