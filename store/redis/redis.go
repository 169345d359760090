// Package redis implements the store interfaces on Redis so several dev
// servers or build workers can share one render cache.
package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/slinkity/slinkity/store"
)

// Store is a Redis-backed store.Storage.
type Store struct {
	client *goredis.Client
}

var _ store.Storage = (*Store)(nil)

// NewStore creates a new Redis storage.
func NewStore(client *goredis.Client) *Store {
	return &Store{client: client}
}

// Get retrieves a key from Redis.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, store.ErrNotFound
	}
	return val, err
}

// Set stores a key in Redis with an optional expiration time.
func (s *Store) Set(ctx context.Context, key string, val []byte, exp time.Duration) error {
	return s.client.Set(ctx, key, val, exp).Err()
}

// Delete removes a key from Redis.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// DeletePrefix scans for keys starting with prefix and deletes them in batches.
func (s *Store) DeletePrefix(ctx context.Context, prefix string) error {
	iter := s.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	batch := make([]string, 0, 100)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := s.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return s.client.Del(ctx, batch...).Err()
	}
	return nil
}

// PubSub is a Redis-backed store.PubSub.
type PubSub struct {
	client *goredis.Client
}

var _ store.PubSub = (*PubSub)(nil)

// NewPubSub creates a new Redis PubSub.
func NewPubSub(client *goredis.Client) *PubSub {
	return &PubSub{client: client}
}

// Publish publishes a message to a Redis channel.
func (p *PubSub) Publish(ctx context.Context, channel string, message []byte) error {
	return p.client.Publish(ctx, channel, message).Err()
}

// Subscribe subscribes to a Redis channel and invokes handler for each
// message until the returned cancel func is called.
func (p *PubSub) Subscribe(ctx context.Context, channel string, handler func(message []byte)) (func(), error) {
	sub := p.client.Subscribe(ctx, channel)

	// Wait for confirmation that subscription is created
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range sub.Channel() {
			handler([]byte(msg.Payload))
		}
	}()

	return func() {
		_ = sub.Close()
		<-done
	}, nil
}
