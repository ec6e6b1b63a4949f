package cache

import (
	"context"
	"reflect"
	"testing"
	"time"
)

func TestMemoryRoundTrip(t *testing.T) {
	cache := NewMemory(4)
	ctx := context.Background()

	want := testAnswer()
	if err := cache.Put(ctx, "sig-1", want, time.Minute); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, hit, err := cache.Get(ctx, "sig-1")
	if err != nil || !hit {
		t.Fatalf("Get() = hit %v, err %v; want hit", hit, err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("cached answer mismatch: got %+v", got)
	}

	if _, hit, _ := cache.Get(ctx, "sig-unknown"); hit {
		t.Fatal("expected miss for unknown signature")
	}
}

func TestMemoryEvictsLeastRecentlyUsed(t *testing.T) {
	cache := NewMemory(2)
	ctx := context.Background()

	answer := testAnswer()
	_ = cache.Put(ctx, "sig-a", answer, time.Minute)
	_ = cache.Put(ctx, "sig-b", answer, time.Minute)

	// Touch sig-a so sig-b is the eviction candidate.
	if _, hit, _ := cache.Get(ctx, "sig-a"); !hit {
		t.Fatal("expected sig-a hit")
	}

	_ = cache.Put(ctx, "sig-c", answer, time.Minute)

	if _, hit, _ := cache.Get(ctx, "sig-b"); hit {
		t.Fatal("sig-b should have been evicted")
	}
	if _, hit, _ := cache.Get(ctx, "sig-a"); !hit {
		t.Fatal("sig-a should survive eviction")
	}
	if _, hit, _ := cache.Get(ctx, "sig-c"); !hit {
		t.Fatal("sig-c should be present")
	}
}

func TestMemoryEntryExpires(t *testing.T) {
	cache := NewMemory(4)
	ctx := context.Background()

	current := time.Unix(1700000000, 0)
	cache.now = func() time.Time { return current }

	_ = cache.Put(ctx, "sig-ttl", testAnswer(), time.Minute)

	if _, hit, _ := cache.Get(ctx, "sig-ttl"); !hit {
		t.Fatal("entry should be live before the deadline")
	}

	current = current.Add(2 * time.Minute)
	if _, hit, _ := cache.Get(ctx, "sig-ttl"); hit {
		t.Fatal("entry should expire after its ttl")
	}

	// Expired entries leave the map entirely.
	if len(cache.items) != 0 {
		t.Fatalf("expected expired entry to be dropped, have %d items", len(cache.items))
	}
}

func TestMemoryPutOverwritesAndRefreshes(t *testing.T) {
	cache := NewMemory(2)
	ctx := context.Background()

	first := testAnswer()
	second := first
	second.Text = "updated answer"

	_ = cache.Put(ctx, "sig-a", first, time.Minute)
	_ = cache.Put(ctx, "sig-b", first, time.Minute)
	_ = cache.Put(ctx, "sig-a", second, time.Minute)

	// sig-a was refreshed, so adding a third entry evicts sig-b.
	_ = cache.Put(ctx, "sig-c", first, time.Minute)

	got, hit, _ := cache.Get(ctx, "sig-a")
	if !hit || got.Text != "updated answer" {
		t.Fatalf("expected refreshed sig-a, got hit=%v text=%q", hit, got.Text)
	}
	if _, hit, _ := cache.Get(ctx, "sig-b"); hit {
		t.Fatal("sig-b should have been evicted")
	}
}
