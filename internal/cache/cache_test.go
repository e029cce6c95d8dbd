package cache

import (
	"context"
	"reflect"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/starford/hashnote/internal/models"
)

func newTestCache(t *testing.T, ttl time.Duration) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, ttl), mr
}

func TestTagCounts_MissThenHit(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	if _, ok := c.TagCounts(ctx, "u1"); ok {
		t.Fatal("hit on empty cache")
	}

	want := []models.TagCount{{Tag: "go", Count: 3}, {Tag: "打卡", Count: 1}}
	c.StoreTagCounts(ctx, "u1", want)

	got, ok := c.TagCounts(ctx, "u1")
	if !ok {
		t.Fatal("miss after store")
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}

	if _, ok := c.TagCounts(ctx, "u2"); ok {
		t.Error("entry leaked to another user")
	}
}

func TestEvict(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	ctx := context.Background()
	c.StoreTagCounts(ctx, "u1", []models.TagCount{{Tag: "x", Count: 1}})

	c.Evict(ctx, "u1")
	if _, ok := c.TagCounts(ctx, "u1"); ok {
		t.Error("hit after evict")
	}
}

func TestTTLExpiry(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()
	c.StoreTagCounts(ctx, "u1", []models.TagCount{{Tag: "x", Count: 1}})

	mr.FastForward(2 * time.Minute)
	if _, ok := c.TagCounts(ctx, "u1"); ok {
		t.Error("hit after ttl")
	}
}

func TestCorruptEntryDropped(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	if err := mr.Set(tagsKey("u1"), "{not json"); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.TagCounts(context.Background(), "u1"); ok {
		t.Error("corrupt entry returned as hit")
	}
	if mr.Exists(tagsKey("u1")) {
		t.Error("corrupt entry not deleted")
	}
}

func TestNilCacheIsNoop(t *testing.T) {
	var c *Cache
	ctx := context.Background()
	c.StoreTagCounts(ctx, "u1", nil)
	c.Evict(ctx, "u1")
	if _, ok := c.TagCounts(ctx, "u1"); ok {
		t.Error("nil cache hit")
	}
	if err := c.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}
