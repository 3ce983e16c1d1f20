package revocation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemoryAddContains(t *testing.T) {
	now := time.Unix(1700000000, 0)
	cache := NewMemory(10, time.Minute, func() time.Time { return now })
	ctx := context.Background()

	if ok, _ := cache.Contains(ctx, "tok"); ok {
		t.Fatal("fresh cache must be empty")
	}
	if err := cache.Add(ctx, "tok"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if ok, _ := cache.Contains(ctx, "tok"); !ok {
		t.Fatal("added token must be present")
	}
}

func TestMemoryTTLEviction(t *testing.T) {
	now := time.Unix(1700000000, 0)
	cache := NewMemory(10, time.Minute, func() time.Time { return now })
	ctx := context.Background()

	_ = cache.Add(ctx, "tok")
	now = now.Add(61 * time.Second)
	if ok, _ := cache.Contains(ctx, "tok"); ok {
		t.Fatal("expired entry must be shed")
	}
	if cache.Len() != 0 {
		t.Fatalf("Len = %d after expiry, want 0", cache.Len())
	}
}

func TestMemoryCapacityEvictsOldest(t *testing.T) {
	now := time.Unix(1700000000, 0)
	cache := NewMemory(3, time.Hour, func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_ = cache.Add(ctx, fmt.Sprintf("tok-%d", i))
	}

	if ok, _ := cache.Contains(ctx, "tok-0"); ok {
		t.Fatal("oldest entry must be evicted beyond capacity")
	}
	for i := 1; i < 4; i++ {
		if ok, _ := cache.Contains(ctx, fmt.Sprintf("tok-%d", i)); !ok {
			t.Fatalf("tok-%d missing", i)
		}
	}
	if cache.Len() != 3 {
		t.Fatalf("Len = %d, want 3", cache.Len())
	}
}

func TestMemoryDuplicateAddRefreshes(t *testing.T) {
	now := time.Unix(1700000000, 0)
	cache := NewMemory(2, time.Minute, func() time.Time { return now })
	ctx := context.Background()

	_ = cache.Add(ctx, "a")
	now = now.Add(30 * time.Second)
	_ = cache.Add(ctx, "a")
	now = now.Add(45 * time.Second)

	// 75s after the first insert, 45s after the refresh.
	if ok, _ := cache.Contains(ctx, "a"); !ok {
		t.Fatal("refreshed entry expired too early")
	}
}

func TestMemoryConcurrentAccess(t *testing.T) {
	cache := NewMemory(64, time.Minute, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("tok-%d-%d", n, j)
				_ = cache.Add(ctx, key)
				_, _ = cache.Contains(ctx, key)
			}
		}(i)
	}
	wg.Wait()

	if got := cache.Len(); got > 64 {
		t.Fatalf("Len = %d exceeds capacity", got)
	}
}
