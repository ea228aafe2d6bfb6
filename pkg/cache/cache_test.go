package cache

import (
	"context"
	"testing"
	"time"
)

func TestLocalCache(t *testing.T) {
	config := LocalConfig{
		DefaultExpiration: 5 * time.Minute,
		CleanupInterval:   10 * time.Minute,
	}

	cache := NewLocalCache(config)
	defer cache.Close()

	ctx := context.Background()

	t.Run("Set and Get", func(t *testing.T) {
		key := "recording_list:user-1"
		value := "test_value"

		if err := cache.Set(ctx, key, value, time.Minute); err != nil {
			t.Errorf("Failed to set cache: %v", err)
		}

		if retrieved, exists := cache.Get(ctx, key); !exists {
			t.Error("Cache value not found")
		} else if retrieved != value {
			t.Errorf("Expected %v, got %v", value, retrieved)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		key := "recording_list:user-2"
		if err := cache.Set(ctx, key, 1, time.Minute); err != nil {
			t.Fatalf("Failed to set cache: %v", err)
		}
		if err := cache.Delete(ctx, key); err != nil {
			t.Errorf("Failed to delete cache: %v", err)
		}
		if cache.Exists(ctx, key) {
			t.Error("key still exists after delete")
		}
	})

	t.Run("Expiration", func(t *testing.T) {
		key := "expiring"
		if err := cache.Set(ctx, key, 1, 10*time.Millisecond); err != nil {
			t.Fatalf("Failed to set cache: %v", err)
		}
		time.Sleep(30 * time.Millisecond)
		if _, exists := cache.Get(ctx, key); exists {
			t.Error("expected key to expire")
		}
	})
}

func TestNewUnsupportedType(t *testing.T) {
	if _, err := New(Config{Type: "memcached"}); err == nil {
		t.Error("expected error for unsupported cache type")
	}
}
