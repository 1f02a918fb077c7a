package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestLRU(t *testing.T) {
	ctx := context.Background()
	c, err := NewLRU(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = c.Set(ctx, "a", 1)
	_ = c.Set(ctx, "b", 2)
	_ = c.Set(ctx, "c", 3)

	if _, ok := c.Get(ctx, "a"); ok {
		t.Fatal("expected oldest entry to be evicted")
	}
	if v, ok := c.Get(ctx, "c"); !ok || v != 3 {
		t.Fatalf("expected c=3, got %f (%v)", v, ok)
	}
	if err := c.Purge(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("expected empty cache, got %d", c.Len())
	}
}

func TestNewLRURejectsSize(t *testing.T) {
	if _, err := NewLRU(0); err == nil {
		t.Fatal("expected error for zero size")
	}
}

func TestRedisKeys(t *testing.T) {
	r := NewRedis(RedisOptions{Addr: "localhost:0"})
	defer r.Close()
	if got := r.key(3, "Retail|5000|1|5000"); got != "xente:3:Retail|5000|1|5000" {
		t.Fatalf("unexpected key %q", got)
	}
	if r.genKey() != "xente:gen" {
		t.Fatalf("unexpected generation key %q", r.genKey())
	}
}

func newMiniRedis(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	r := NewRedisWithClient(client, "xente-test", ttl)
	t.Cleanup(func() { _ = r.Close() })
	return r, mr
}

func TestRedisRoundTrip(t *testing.T) {
	ctx := context.Background()
	r, mr := newMiniRedis(t, time.Minute)
	if err := r.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	if _, ok := r.Get(ctx, "k"); ok {
		t.Fatal("expected a miss on an empty server")
	}
	if err := r.Set(ctx, "k", 12.5); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, ok := r.Get(ctx, "k"); !ok || v != 12.5 {
		t.Fatalf("expected 12.5, got %f (%v)", v, ok)
	}
	if !mr.Exists("xente-test:0:k") {
		t.Fatalf("expected key under generation 0, have %v", mr.Keys())
	}
}

func TestRedisSetAppliesTTL(t *testing.T) {
	ctx := context.Background()
	r, mr := newMiniRedis(t, 30*time.Second)
	if err := r.Set(ctx, "k", 1); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := mr.TTL("xente-test:0:k"); got != 30*time.Second {
		t.Fatalf("expected ttl 30s, got %v", got)
	}
	mr.FastForward(31 * time.Second)
	if _, ok := r.Get(ctx, "k"); ok {
		t.Fatal("expected key to expire")
	}
}

func TestRedisPurgeHidesOldKeys(t *testing.T) {
	ctx := context.Background()
	r, mr := newMiniRedis(t, time.Minute)
	if err := r.Set(ctx, "k", 7); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := r.Purge(ctx); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if got, err := mr.Get("xente-test:gen"); err != nil || got != "1" {
		t.Fatalf("expected generation 1, got %q (%v)", got, err)
	}
	if _, ok := r.Get(ctx, "k"); ok {
		t.Fatal("expected key to be hidden after purge")
	}
	// the old entry is left for its ttl
	if !mr.Exists("xente-test:0:k") {
		t.Fatal("expected the generation 0 entry to remain until it expires")
	}

	if err := r.Set(ctx, "k", 8); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, ok := r.Get(ctx, "k"); !ok || v != 8 {
		t.Fatalf("expected 8, got %f (%v)", v, ok)
	}
	if !mr.Exists("xente-test:1:k") {
		t.Fatalf("expected key under generation 1, have %v", mr.Keys())
	}
}

func TestRedisGetMissesWhenServerDown(t *testing.T) {
	ctx := context.Background()
	r, mr := newMiniRedis(t, time.Minute)
	if err := r.Set(ctx, "k", 1); err != nil {
		t.Fatalf("set: %v", err)
	}
	mr.Close()
	if _, ok := r.Get(ctx, "k"); ok {
		t.Fatal("expected a miss when redis is unreachable")
	}
	if err := r.Set(ctx, "k", 2); err == nil {
		t.Fatal("expected set to fail when redis is unreachable")
	}
}
