package cache

import (
	"testing"
	"time"
)

type fakeNow struct{ t time.Time }

func (f *fakeNow) now() time.Time { return f.t }

func TestLRUCacheExpiry(t *testing.T) {
	clk := &fakeNow{t: time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string, int](10, time.Minute).WithClock(clk.now)

	c.Set("a", 1)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected hit, got %v %v", v, ok)
	}

	clk.t = clk.t.Add(2 * time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected expired entry to miss")
	}
	if c.Size() != 0 {
		t.Fatalf("expired entry should be removed on read, size %d", c.Size())
	}
}

func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache[int, string](2, time.Hour)
	c.Set(1, "one")
	c.Set(2, "two")
	c.Get(1) // 2 becomes least recently used
	c.Set(3, "three")

	if _, ok := c.Get(2); ok {
		t.Fatal("expected least recently used entry to be evicted")
	}
	if _, ok := c.Get(1); !ok {
		t.Fatal("expected recently used entry to survive")
	}
	if c.Size() != 2 {
		t.Fatalf("expected size 2, got %d", c.Size())
	}
}

func TestCleanExpiredAndManager(t *testing.T) {
	clk := &fakeNow{t: time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)}
	short := NewLRUCache[string, int](10, time.Second).WithClock(clk.now)
	long := NewLRUCache[string, int](10, time.Hour).WithClock(clk.now)
	short.Set("a", 1)
	short.Set("b", 2)
	long.Set("c", 3)

	m := NewManager()
	m.Register(short)
	m.Register(long)

	clk.t = clk.t.Add(time.Minute)
	if got := m.CleanAll(); got != 2 {
		t.Fatalf("expected 2 cleaned entries, got %d", got)
	}
	if long.Size() != 1 {
		t.Fatalf("unexpired entries must stay")
	}

	c := NewLRUCache[string, int](10, time.Hour)
	c.Set("x", 1)
	c.Delete("x")
	c.Set("y", 2)
	c.Purge()
	if c.Size() != 0 {
		t.Fatalf("expected empty cache, got %d", c.Size())
	}
}
