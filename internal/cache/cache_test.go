package cache

import (
	"testing"
	"time"
)

func TestCacheGetSet(t *testing.T) {
	c := New(time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss for absent key")
	}

	c.Set("a", 42)
	v, ok := c.Get("a")
	if !ok {
		t.Fatal("expected hit for key a")
	}
	if v.(int) != 42 {
		t.Errorf("expected 42, got %v", v)
	}
}

func TestCacheExpiry(t *testing.T) {
	c := New(10 * time.Millisecond)

	c.Set("a", "value")
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected hit before expiry")
	}

	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("a"); ok {
		t.Error("expected miss after expiry")
	}
}

func TestCacheInvalidate(t *testing.T) {
	c := New(time.Minute)

	c.Set("a", 1)
	c.Invalidate("a")

	if _, ok := c.Get("a"); ok {
		t.Error("expected miss after invalidation")
	}
}

func TestCacheInvalidatePrefix(t *testing.T) {
	c := New(time.Minute)

	c.Set("owner-1:overview", 1)
	c.Set("owner-1:claims", 2)
	c.Set("owner-2:overview", 3)

	c.InvalidatePrefix("owner-1:")

	if _, ok := c.Get("owner-1:overview"); ok {
		t.Error("expected owner-1 overview to be invalidated")
	}
	if _, ok := c.Get("owner-1:claims"); ok {
		t.Error("expected owner-1 claims to be invalidated")
	}
	if _, ok := c.Get("owner-2:overview"); !ok {
		t.Error("expected owner-2 entry to survive")
	}
}

func TestCacheSweepOnSet(t *testing.T) {
	c := New(10 * time.Millisecond)

	c.Set("a", 1)
	c.Set("b", 2)
	time.Sleep(20 * time.Millisecond)

	c.Set("c", 3)

	if got := c.Len(); got != 1 {
		t.Errorf("expected 1 entry after sweep, got %d", got)
	}
}
