package ssr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	json "github.com/goccy/go-json"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/slinkity/slinkity/store"
)

const cachePrefix = "slinkity:ssr:"

// CacheEntry is one memoized server render.
type CacheEntry struct {
	HTML string `msgpack:"h"`
	CSS  string `msgpack:"c,omitempty"`
}

// Cache memoizes island renders by component URL, props and slot content.
type Cache struct {
	storage store.Storage
	ttl     time.Duration
}

// NewCache creates a cache on storage. ttl of zero keeps entries until they
// are invalidated.
func NewCache(storage store.Storage, ttl time.Duration) *Cache {
	return &Cache{storage: storage, ttl: ttl}
}

// Key derives the cache key. ok is false when props cannot be encoded, in
// which case the render is not cacheable.
func (c *Cache) Key(url string, props map[string]any, slot string) (key string, ok bool) {
	d := xxhash.New()
	if err := json.NewEncoder(d).Encode(props); err != nil {
		return "", false
	}
	_, _ = d.WriteString(slot)
	return urlPrefix(url) + fmt.Sprintf("%016x", d.Sum64()), true
}

// Get returns the entry under key. A miss returns store.ErrNotFound.
func (c *Cache) Get(ctx context.Context, key string) (CacheEntry, error) {
	raw, err := c.storage.Get(ctx, key)
	if err != nil {
		return CacheEntry{}, err
	}
	var entry CacheEntry
	if err := msgpack.Unmarshal(raw, &entry); err != nil {
		return CacheEntry{}, fmt.Errorf("decode render cache entry: %w", err)
	}
	return entry, nil
}

// Set stores entry under key.
func (c *Cache) Set(ctx context.Context, key string, entry CacheEntry) error {
	raw, err := msgpack.Marshal(&entry)
	if err != nil {
		return err
	}
	return c.storage.Set(ctx, key, raw, c.ttl)
}

// Invalidate drops every entry rendered from the component at url.
func (c *Cache) Invalidate(ctx context.Context, url string) error {
	return c.storage.DeletePrefix(ctx, urlPrefix(url))
}

// Purge drops every entry.
func (c *Cache) Purge(ctx context.Context) error {
	return c.storage.DeletePrefix(ctx, cachePrefix)
}

func urlPrefix(url string) string {
	return cachePrefix + fmt.Sprintf("%016x", xxhash.Sum64String(url)) + ":"
}

func isMiss(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
