package dictionary

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/langbuddy/langbuddy/pkg/db"
	"github.com/langbuddy/langbuddy/pkg/segment"
	"github.com/langbuddy/langbuddy/pkg/vocab"
)

const defaultCacheSize = 256

// Snapshot is the matching state for one user: the shared reference
// dictionary plus the user's own words. Snapshots are read-only once built.
type Snapshot struct {
	Primary   []vocab.Word
	Secondary []vocab.Word
	Analyzer  *vocab.Analyzer
	// Lookup highlights reference dictionary words only.
	Lookup segment.Lookup
}

type primarySnapshot struct {
	words  []vocab.Word
	lookup segment.Lookup
}

// Cache keeps recently used snapshots in an LRU keyed by user id.
type Cache struct {
	conn  *sql.DB
	users *lru.Cache[string, *Snapshot]
	group singleflight.Group

	mu      sync.Mutex
	gen     uint64
	primary *primarySnapshot
}

// NewCache creates a cache holding up to size user snapshots.
func NewCache(conn *sql.DB, size int) (*Cache, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	users, err := lru.New[string, *Snapshot](size)
	if err != nil {
		return nil, err
	}
	return &Cache{conn: conn, users: users}, nil
}

// loadTimeout bounds a shared load. Loads run detached from the caller
// that started them, since other callers may be waiting on the result.
const loadTimeout = 30 * time.Second

// Get returns the user's snapshot, loading it on a miss. Concurrent misses
// for the same user share one load; each caller stops waiting when its own
// ctx is done without failing the others.
func (c *Cache) Get(ctx context.Context, userID string) (*Snapshot, error) {
	if snap, ok := c.users.Get(userID); ok {
		return snap, nil
	}
	gen := c.generation()
	v, err := c.do(ctx, fmt.Sprintf("user:%s:%d", userID, gen), func(ctx context.Context) (any, error) {
		primary, err := c.loadPrimary(ctx)
		if err != nil {
			return nil, err
		}
		secondary, err := db.LoadCustomWords(ctx, c.conn, userID)
		if err != nil {
			return nil, fmt.Errorf("load custom words for %s: %w", userID, err)
		}
		snap := &Snapshot{
			Primary:   primary.words,
			Secondary: secondary,
			Analyzer:  vocab.NewAnalyzer(primary.words, secondary),
			Lookup:    primary.lookup,
		}
		c.mu.Lock()
		if c.gen == gen {
			c.users.Add(userID, snap)
		}
		c.mu.Unlock()
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// do runs load once per key under a context that outlives any single
// caller, and waits for it until ctx is done.
func (c *Cache) do(ctx context.Context, key string, load func(ctx context.Context) (any, error)) (any, error) {
	ch := c.group.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return load(loadCtx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.Val, r.Err
	}
}

func (c *Cache) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

func (c *Cache) loadPrimary(ctx context.Context) (*primarySnapshot, error) {
	c.mu.Lock()
	p, gen := c.primary, c.gen
	c.mu.Unlock()
	if p != nil {
		return p, nil
	}
	v, err := c.do(ctx, fmt.Sprintf("primary:%d", gen), func(ctx context.Context) (any, error) {
		words, err := db.LoadDictionary(ctx, c.conn)
		if err != nil {
			return nil, fmt.Errorf("load dictionary: %w", err)
		}
		p := &primarySnapshot{words: words, lookup: segment.NewLookup(words)}
		c.mu.Lock()
		if c.gen == gen {
			c.primary = p
		}
		c.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*primarySnapshot), nil
}

// Invalidate drops the user's snapshot after their custom words change.
// Loads already in flight are not cached, and later callers start a fresh
// load instead of joining them.
func (c *Cache) Invalidate(userID string) {
	c.mu.Lock()
	c.gen++
	c.mu.Unlock()
	c.users.Remove(userID)
}

// InvalidateAll drops every snapshot, including the reference dictionary.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.gen++
	c.primary = nil
	c.mu.Unlock()
	c.users.Purge()
}

// Len reports the number of cached user snapshots.
func (c *Cache) Len() int {
	return c.users.Len()
}
