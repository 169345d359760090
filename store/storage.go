// Package store holds the key-value and publish-subscribe backends shared by
// the dev server: the SSR render cache and live-reload broadcasts.
package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned when a key is not found in the storage.
var ErrNotFound = errors.New("key not found")

// Storage is a key-value store with optional expiry.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, exp time.Duration) error
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}

type memoryEntry struct {
	val []byte
	exp time.Time
}

// MemoryStorage is an in-process Storage.
type MemoryStorage struct {
	store map[string]memoryEntry
	mu    sync.RWMutex
	stop  chan struct{}
	once  sync.Once
}

// NewMemoryStorage creates a new in-memory storage. Expired entries are
// pruned every pruneEvery; zero disables the background loop.
func NewMemoryStorage(pruneEvery time.Duration) *MemoryStorage {
	s := &MemoryStorage{
		store: make(map[string]memoryEntry),
		stop:  make(chan struct{}),
	}
	if pruneEvery > 0 {
		go s.pruneLoop(pruneEvery)
	}
	return s
}

// Get retrieves a copy of the value stored under key.
func (s *MemoryStorage) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	entry, ok := s.store[key]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if !entry.exp.IsZero() && time.Now().After(entry.exp) {
		_ = s.Delete(ctx, key)
		return nil, ErrNotFound
	}

	valCopy := make([]byte, len(entry.val))
	copy(valCopy, entry.val)
	return valCopy, nil
}

// Set stores a copy of val. If exp is > 0 the entry expires after exp.
func (s *MemoryStorage) Set(_ context.Context, key string, val []byte, exp time.Duration) error {
	var expiresAt time.Time
	if exp > 0 {
		expiresAt = time.Now().Add(exp)
	}

	valCopy := make([]byte, len(val))
	copy(valCopy, val)

	s.mu.Lock()
	s.store[key] = memoryEntry{val: valCopy, exp: expiresAt}
	s.mu.Unlock()
	return nil
}

// Delete removes key.
func (s *MemoryStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.store, key)
	s.mu.Unlock()
	return nil
}

// DeletePrefix removes every key starting with prefix.
func (s *MemoryStorage) DeletePrefix(_ context.Context, prefix string) error {
	s.mu.Lock()
	for key := range s.store {
		if strings.HasPrefix(key, prefix) {
			delete(s.store, key)
		}
	}
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired or not.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.store)
}

// Close stops the prune loop.
func (s *MemoryStorage) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}

func (s *MemoryStorage) pruneLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			now := time.Now()
			for key, entry := range s.store {
				if !entry.exp.IsZero() && now.After(entry.exp) {
					delete(s.store, key)
				}
			}
			s.mu.Unlock()
		}
	}
}
