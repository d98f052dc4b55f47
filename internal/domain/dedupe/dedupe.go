// Package dedupe remembers which game versions have already been analysed.
package dedupe

import (
	"context"
	"sync"

	"github.com/golang/groupcache/lru"
)

const defaultMaxSize = 50_000

// Deduper records seen keys so an unchanged game version is analysed once.
type Deduper interface {
	// SeenAndRecord reports whether key was already recorded, recording it if not.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord forgets key so it can be processed again, e.g. after the
	// enqueue that followed SeenAndRecord was rejected.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

// lruDeduper evicts the least recently seen key once full.
type lruDeduper struct {
	mu      sync.Mutex
	cache   *lru.Cache
	maxSize int
}

// NewInMemoryDeduper creates an LRU-bounded deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &lruDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	if d.maxSize < 0 {
		d.maxSize = 0
	}
	d.cache = lru.New(d.maxSize)
	return d
}

func (d *lruDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.cache.Get(key); ok {
		return true
	}
	d.cache.Add(key, struct{}{})
	return false
}

func (d *lruDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache.Remove(key)
}

func (d *lruDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(d.cache.Len())
}
