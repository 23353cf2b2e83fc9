// Package cache contains caching primitives used by the format parsers
package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// Intern deduplicates strings so that repeated occurrences of the same
// bytes share a single backing allocation. Index pages repeat the same
// key prefixes and values over and over, and keeping one instance per
// distinct string is a large memory win on big trees.
//
// Callers may only rely on equality of the returned strings, never on
// identity. The table is bounded, so a string may be handed out fresh
// again after enough distinct values went through.
type Intern struct {
	cache *lru.Cache
	mu    sync.Mutex
}

// NewIntern creates a new interning table keeping at most maxEntries
// distinct strings.
func NewIntern(maxEntries int) (*Intern, error) {
	cache, err := lru.New(maxEntries)
	if err != nil {
		return nil, err
	}
	return &Intern{
		cache: cache,
	}, nil
}

// Str returns a string equal to s, shared with every previous caller that
// passed in the same bytes.
func (c *Intern) Str(s string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.cache.Get(s); ok {
		return v.(string)
	}
	c.cache.Add(s, s)
	return s
}

// Bytes is like Str but takes the bytes to intern, converting them only
// when the table doesn't hold them yet.
func (c *Intern) Bytes(b []byte) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.cache.Get(string(b)); ok {
		return v.(string)
	}
	s := string(b)
	c.cache.Add(s, s)
	return s
}

// Len returns the number of strings currently held.
func (c *Intern) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.cache.Len()
}
