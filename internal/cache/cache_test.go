package cache

import (
	"context"
	"testing"
	"time"

	"github.com/opensource-finance/shopcore/internal/domain"
)

func TestLRUCache(t *testing.T) {
	cache := NewLRUCache(100)
	ctx := context.Background()
	channel := "sc-001"

	t.Run("SetAndGet", func(t *testing.T) {
		err := cache.Set(ctx, channel, "key1", []byte("value1"), time.Minute)
		if err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		val, err := cache.Get(ctx, channel, "key1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}

		if string(val) != "value1" {
			t.Errorf("expected 'value1', got '%s'", string(val))
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		val, err := cache.Get(ctx, channel, "nonexistent")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if val != nil {
			t.Errorf("expected nil for cache miss, got: %v", val)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = cache.Set(ctx, channel, "key2", []byte("value2"), time.Minute)

		err := cache.Delete(ctx, channel, "key2")
		if err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		val, _ := cache.Get(ctx, channel, "key2")
		if val != nil {
			t.Error("expected nil after delete")
		}
	})

	t.Run("TTLExpiration", func(t *testing.T) {
		_ = cache.Set(ctx, channel, "expiring", []byte("temp"), 10*time.Millisecond)

		val, _ := cache.Get(ctx, channel, "expiring")
		if val == nil {
			t.Error("expected value before expiration")
		}

		time.Sleep(20 * time.Millisecond)

		val, _ = cache.Get(ctx, channel, "expiring")
		if val != nil {
			t.Error("expected nil after expiration")
		}
	})

	t.Run("ZeroTTLNeverExpires", func(t *testing.T) {
		_ = cache.Set(ctx, channel, "forever", []byte("x"), 0)
		time.Sleep(5 * time.Millisecond)

		val, _ := cache.Get(ctx, channel, "forever")
		if string(val) != "x" {
			t.Errorf("expected 'x', got '%s'", string(val))
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		_ = cache.Set(ctx, channel, "over", []byte("old"), 10*time.Millisecond)
		_ = cache.Set(ctx, channel, "over", []byte("new"), 0)
		time.Sleep(20 * time.Millisecond)

		val, _ := cache.Get(ctx, channel, "over")
		if string(val) != "new" {
			t.Errorf("expected 'new', got '%s'", string(val))
		}
	})

	t.Run("LRUEviction", func(t *testing.T) {
		smallCache := NewLRUCache(3)

		_ = smallCache.Set(ctx, channel, "a", []byte("1"), time.Minute)
		_ = smallCache.Set(ctx, channel, "b", []byte("2"), time.Minute)
		_ = smallCache.Set(ctx, channel, "c", []byte("3"), time.Minute)

		// Access 'a' to make it recently used
		_, _ = smallCache.Get(ctx, channel, "a")

		// Add 'd' - should evict 'b'
		_ = smallCache.Set(ctx, channel, "d", []byte("4"), time.Minute)

		val, _ := smallCache.Get(ctx, channel, "b")
		if val != nil {
			t.Error("expected 'b' to be evicted")
		}

		val, _ = smallCache.Get(ctx, channel, "a")
		if val == nil {
			t.Error("expected 'a' to still exist")
		}
	})

	t.Run("NamespaceIsolation", func(t *testing.T) {
		_ = cache.Set(ctx, "sc-001", "shared-key", []byte("one"), time.Minute)
		_ = cache.Set(ctx, "sc-002", "shared-key", []byte("two"), time.Minute)

		val1, _ := cache.Get(ctx, "sc-001", "shared-key")
		val2, _ := cache.Get(ctx, "sc-002", "shared-key")

		if string(val1) != "one" {
			t.Errorf("expected 'one', got '%s'", string(val1))
		}
		if string(val2) != "two" {
			t.Errorf("expected 'two', got '%s'", string(val2))
		}
	})

	t.Run("RequiresNamespace", func(t *testing.T) {
		err := cache.Set(ctx, "", "key", []byte("value"), time.Minute)
		if err == nil {
			t.Error("expected error for empty namespace")
		}

		_, err = cache.Get(ctx, "", "key")
		if err == nil {
			t.Error("expected error for empty namespace")
		}

		if err := cache.Delete(ctx, "", "key"); err == nil {
			t.Error("expected error for empty namespace")
		}
	})

	t.Run("Stats", func(t *testing.T) {
		statsCache := NewLRUCache(50)
		_ = statsCache.Set(ctx, channel, "k1", []byte("v1"), time.Minute)
		_ = statsCache.Set(ctx, channel, "k2", []byte("v2"), time.Minute)

		size, capacity := statsCache.Stats()
		if size != 2 {
			t.Errorf("expected size 2, got %d", size)
		}
		if capacity != 50 {
			t.Errorf("expected capacity 50, got %d", capacity)
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := cache.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("Close", func(t *testing.T) {
		testCache := NewLRUCache(10)
		_ = testCache.Set(ctx, channel, "k", []byte("v"), time.Minute)

		if err := testCache.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}

		val, _ := testCache.Get(ctx, channel, "k")
		if val != nil {
			t.Error("expected cache to be cleared after close")
		}
	})
}

func TestTwoPhaseCache(t *testing.T) {
	ctx := context.Background()
	remote := NewLRUCache(100)
	cache := newTwoPhase(NewLRUCache(100), remote, time.Minute)

	t.Run("WritesBothLayers", func(t *testing.T) {
		if err := cache.Set(ctx, "sc", "k", []byte("v"), 0); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		val, _ := remote.Get(ctx, "sc", "k")
		if string(val) != "v" {
			t.Errorf("expected remote value 'v', got '%s'", string(val))
		}
	})

	t.Run("PopulatesLocalOnRemoteHit", func(t *testing.T) {
		_ = remote.Set(ctx, "sc", "only-remote", []byte("r"), 0)

		val, err := cache.Get(ctx, "sc", "only-remote")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(val) != "r" {
			t.Errorf("expected 'r', got '%s'", string(val))
		}

		local, _ := cache.local.Get(ctx, "sc", "only-remote")
		if string(local) != "r" {
			t.Error("expected L1 to be populated")
		}
	})

	t.Run("DeleteBothLayers", func(t *testing.T) {
		_ = cache.Set(ctx, "sc", "gone", []byte("v"), 0)
		if err := cache.Delete(ctx, "sc", "gone"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if val, _ := cache.Get(ctx, "sc", "gone"); val != nil {
			t.Error("expected nil after delete")
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := cache.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})
}

func TestNewCache(t *testing.T) {
	t.Run("MemoryType", func(t *testing.T) {
		cfg := domain.CacheConfig{
			Type:         "memory",
			LocalMaxSize: 100,
		}

		cache, err := New(cfg)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer cache.Close()

		_, ok := cache.(*LRUCache)
		if !ok {
			t.Error("expected LRUCache for memory type")
		}
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		cfg := domain.CacheConfig{
			Type: "memcached",
		}

		_, err := New(cfg)
		if err == nil {
			t.Error("expected error for unsupported type")
		}
	})
}
