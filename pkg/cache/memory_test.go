package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type rosterItem struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

func TestMemoryCacheRoundTripsStructs(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	in := []rosterItem{{Key: "MC.PA", Name: "LVMH"}, {Key: "AI.PA", Name: "Air Liquide"}}
	if err := mc.Set(ctx, "roster:CAC40", in, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	var out []rosterItem
	if err := mc.Get(ctx, "roster:CAC40", &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(out) != 2 || out[1].Name != "Air Liquide" {
		t.Fatalf("unexpected value %+v", out)
	}
}

func TestMemoryCacheMissAndExpiry(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	var s string
	if err := mc.Get(ctx, "absent", &s); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
	_ = mc.Set(ctx, "short", "v", time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	if err := mc.Get(ctx, "short", &s); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected expired miss, got %v", err)
	}
}

func TestMemoryCacheTryLock(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	ok, err := mc.TryLock(ctx, "sync:metrics", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first lock: ok=%v err=%v", ok, err)
	}
	ok, _ = mc.TryLock(ctx, "sync:metrics", time.Minute)
	if ok {
		t.Fatalf("second lock should fail while held")
	}
	if err := mc.Unlock(ctx, "sync:metrics"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	ok, _ = mc.TryLock(ctx, "sync:metrics", time.Minute)
	if !ok {
		t.Fatalf("lock should be free after unlock")
	}
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	_ = mc.Set(ctx, "roster:CAC40", "a", 0)
	_ = mc.Set(ctx, "roster:SP500", "b", 0)
	var s string
	_ = mc.Get(ctx, "roster:CAC40", &s) // CAC40 is now the most recent
	_ = mc.Set(ctx, "lookup:AAPL", "c", 0)

	if mc.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", mc.Len())
	}
	if err := mc.Get(ctx, "roster:SP500", &s); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("least recently used key should be evicted, got %v", err)
	}
	if err := mc.Get(ctx, "roster:CAC40", &s); err != nil || s != "a" {
		t.Fatalf("recent key should remain, got %q %v", s, err)
	}
}

func TestMemoryCacheLocksSurviveEviction(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(1))
	defer mc.Close()
	ctx := context.Background()

	if ok, _ := mc.TryLock(ctx, "sync:metrics", time.Minute); !ok {
		t.Fatalf("lock")
	}
	_ = mc.Set(ctx, "a", "1", 0)
	_ = mc.Set(ctx, "b", "2", 0)
	if ok, _ := mc.TryLock(ctx, "sync:metrics", time.Minute); ok {
		t.Fatalf("lock must still be held after value evictions")
	}
}

func TestMemoryCacheExpiredLockIsFree(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	now := time.Now()
	mc.now = func() time.Time { return now }
	_, _ = mc.TryLock(ctx, "sync:metrics", time.Second)
	now = now.Add(2 * time.Second)
	if ok, _ := mc.TryLock(ctx, "sync:metrics", time.Second); !ok {
		t.Fatalf("expired lock should be taken again")
	}
}
