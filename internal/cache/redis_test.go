package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	c, err := NewRedisCache("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	return c, s
}

type snapshot struct {
	Tenant string   `json:"tenant"`
	IDs    []string `json:"ids"`
}

func TestSetAndGet(t *testing.T) {
	c, s := setupTestCache(t)
	defer c.Close()
	defer s.Close()

	ctx := context.Background()
	in := snapshot{Tenant: "optimism", IDs: []string{"1", "2"}}
	if err := c.Set(ctx, "optimism/proposals", in); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var out snapshot
	if err := c.Get(ctx, "optimism/proposals", &out); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if out.Tenant != "optimism" || len(out.IDs) != 2 {
		t.Errorf("unexpected value: %+v", out)
	}
}

func TestGetMiss(t *testing.T) {
	c, s := setupTestCache(t)
	defer c.Close()
	defer s.Close()

	var out snapshot
	if err := c.Get(context.Background(), "absent", &out); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss, got %v", err)
	}
}

func TestGetExpired(t *testing.T) {
	c, s := setupTestCache(t)
	defer c.Close()
	defer s.Close()

	ctx := context.Background()
	if err := c.Set(ctx, "ens/proposals", snapshot{Tenant: "ens"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	s.FastForward(DefaultTTL + time.Second)

	var out snapshot
	if err := c.Get(ctx, "ens/proposals", &out); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss after TTL, got %v", err)
	}
}

func TestInvalidate(t *testing.T) {
	c, s := setupTestCache(t)
	defer c.Close()
	defer s.Close()

	ctx := context.Background()
	if err := c.Set(ctx, "scroll/proposals", snapshot{Tenant: "scroll"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := c.Invalidate(ctx, "scroll/proposals"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	var out snapshot
	if err := c.Get(ctx, "scroll/proposals", &out); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss after invalidate, got %v", err)
	}
	// Invalidating again is a no-op.
	if err := c.Invalidate(ctx, "scroll/proposals"); err != nil {
		t.Errorf("repeat invalidate failed: %v", err)
	}
}

func TestTenantKeysIsolated(t *testing.T) {
	c, s := setupTestCache(t)
	defer c.Close()
	defer s.Close()

	ctx := context.Background()
	if err := c.Set(ctx, "optimism/proposals", snapshot{Tenant: "optimism"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := c.Set(ctx, "uniswap/proposals", snapshot{Tenant: "uniswap"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := c.Invalidate(ctx, "optimism/proposals"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	var out snapshot
	if err := c.Get(ctx, "uniswap/proposals", &out); err != nil {
		t.Fatalf("uniswap snapshot must survive optimism invalidation: %v", err)
	}
}
