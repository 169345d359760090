package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/slinkity/slinkity/store"
)

func newClient(t *testing.T) (*goredis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	client, mr := newClient(t)
	s := NewStore(client)

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	if err := s.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Errorf("Expected v, got %s (%v)", got, err)
	}
	if ttl := mr.TTL("k"); ttl != time.Minute {
		t.Errorf("Expected TTL 1m, got %v", ttl)
	}

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if mr.Exists("k") {
		t.Error("Expected key to be deleted")
	}
}

func TestStoreDeletePrefix(t *testing.T) {
	ctx := context.Background()
	client, mr := newClient(t)
	s := NewStore(client)

	for i := 0; i < 150; i++ {
		_ = s.Set(ctx, "ssr:a:"+string(rune('a'+i%26))+string(rune('a'+i/26)), []byte("x"), 0)
	}
	_ = s.Set(ctx, "ssr:b:1", []byte("y"), 0)

	if err := s.DeletePrefix(ctx, "ssr:a:"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	keys := mr.Keys()
	if len(keys) != 1 || keys[0] != "ssr:b:1" {
		t.Errorf("Expected only ssr:b:1 left, got %v", keys)
	}
}

func TestPubSub(t *testing.T) {
	ctx := context.Background()
	client, _ := newClient(t)
	p := NewPubSub(client)

	got := make(chan string, 1)
	cancel, err := p.Subscribe(ctx, "slinkity:reload", func(msg []byte) { got <- string(msg) })
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	defer cancel()

	if err := p.Publish(ctx, "slinkity:reload", []byte("/index.html")); err != nil {
		t.Fatal(err)
	}
	select {
	case msg := <-got:
		if msg != "/index.html" {
			t.Errorf("Expected /index.html, got %s", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected message from redis")
	}
}
