package cache

import (
	"testing"
	"time"
)

func TestLRUCacheGetSet(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)

	if _, found := c.Get("a"); found {
		t.Fatal("empty cache should miss")
	}

	c.Set("a", 1)
	c.Set("b", 2)
	if v, found := c.Get("a"); !found || v != 1 {
		t.Fatalf("Get(a) = %d %v, want 1 true", v, found)
	}

	// "a" was just used, so inserting "c" evicts "b".
	c.Set("c", 3)
	if _, found := c.Get("b"); found {
		t.Fatal("expected least recently used entry evicted")
	}
	if v, found := c.Get("a"); !found || v != 1 {
		t.Fatalf("Get(a) = %d %v, want 1 true", v, found)
	}
	if c.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", c.Size())
	}
}

func TestLRUCacheTTL(t *testing.T) {
	c := NewLRUCache[string](10, 10*time.Millisecond)

	c.Set("k", "v")
	time.Sleep(20 * time.Millisecond)

	if _, found := c.Get("k"); found {
		t.Fatal("expired entry should miss")
	}
	c.Set("x", "y")
	time.Sleep(20 * time.Millisecond)
	if cleaned := c.CleanExpired(); cleaned != 1 {
		t.Fatalf("CleanExpired() = %d, want 1", cleaned)
	}
}

func TestLRUCacheDelete(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)

	c.Set("k", 1)
	c.Delete("k")
	if _, found := c.Get("k"); found {
		t.Fatal("deleted entry should miss")
	}
	c.Delete("missing") // no-op
}

func TestManagerSweepsRegisteredCaches(t *testing.T) {
	c := NewLRUCache[int](10, time.Millisecond)
	m := NewManager()
	m.Register(c)
	m.StartCleanup(5 * time.Millisecond)

	c.Set("k", 1)
	deadline := time.Now().Add(2 * time.Second)
	for c.Size() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if c.Size() != 0 {
		t.Fatal("expected the sweep to drop the expired entry")
	}

	m.Stop()
	m.Stop() // second call must not panic or block
}
