package cache

import (
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestCache(ttl time.Duration) (*Cache[string], *clock) {
	clk := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New[string](ttl)
	c.now = clk.now
	return c, clk
}

func TestGetExpires(t *testing.T) {
	c, clk := newTestCache(time.Minute)

	c.Set("a", "1")
	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Fatalf("expected fresh entry, got %q %v", v, ok)
	}

	clk.t = clk.t.Add(2 * time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected entry to expire")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry must be removed on access")
	}
}

func TestUpdateKeepsTTL(t *testing.T) {
	c, clk := newTestCache(time.Minute)
	c.Set("a", "1")

	clk.t = clk.t.Add(50 * time.Second)
	if !c.Update("a", func(string) string { return "2" }) {
		t.Fatalf("expected update on live entry")
	}

	clk.t = clk.t.Add(20 * time.Second)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("update must not extend the ttl")
	}

	if c.Update("missing", func(v string) string { return v }) {
		t.Fatalf("update on a missing key must report false")
	}
}

func TestSweep(t *testing.T) {
	c, clk := newTestCache(time.Minute)
	c.Set("old", "x")
	clk.t = clk.t.Add(45 * time.Second)
	c.Set("new", "y")
	clk.t = clk.t.Add(30 * time.Second)

	if n := c.Sweep(); n != 1 {
		t.Fatalf("expected 1 swept entry, got %d", n)
	}
	if _, ok := c.Get("new"); !ok {
		t.Fatalf("live entry must survive sweep")
	}
}

func TestDefaultTTL(t *testing.T) {
	c := New[int](0)
	if c.ttl != 5*time.Second {
		t.Fatalf("expected default ttl, got %v", c.ttl)
	}
}
