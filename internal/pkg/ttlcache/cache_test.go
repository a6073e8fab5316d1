package ttlcache

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"
)

func TestCacheExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := New[string, int](time.Minute)
	c.now = func() time.Time { return now }

	c.Set("a", 1)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %d, %v; want 1, true", v, ok)
	}

	now = now.Add(59 * time.Second)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("entry expired before its ttl")
	}

	now = now.Add(time.Second)
	if _, ok := c.Get("a"); ok {
		t.Fatal("entry served after its ttl")
	}
	if removed := c.Purge(); removed != 1 {
		t.Errorf("Purge() removed %d entries, want 1", removed)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after purge, want 0", c.Len())
	}
}

func TestCacheDelete(t *testing.T) {
	c := New[string, string](time.Hour)
	c.Set("a", "x")
	c.Set("b", "y")

	c.Delete("a", "missing")

	if _, ok := c.Get("a"); ok {
		t.Error("deleted key still present")
	}
	if v, ok := c.Get("b"); !ok || v != "y" {
		t.Error("unrelated key was evicted")
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := New[string, int](time.Hour)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := strconv.Itoa(i % 4)
			for j := 0; j < 200; j++ {
				c.Set(key, j)
				c.Get(key)
				if j%50 == 0 {
					c.Delete(key)
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestRunJanitorStopsOnCancel(t *testing.T) {
	c := New[string, int](time.Nanosecond)
	c.Set("a", 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.RunJanitor(ctx, time.Millisecond)
		close(done)
	}()

	deadline := time.After(time.Second)
	for c.Len() != 0 {
		select {
		case <-deadline:
			t.Fatal("janitor did not purge the expired entry")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop after cancel")
	}
}

func TestSetIfGenerationDropsLoadsThatRacedDelete(t *testing.T) {
	c := New[string, string](time.Hour)

	gen := c.Generation("a")
	c.Delete("a")
	if c.SetIfGeneration("a", "stale", gen) {
		t.Fatal("stored a value loaded before the key was deleted")
	}
	if _, ok := c.Get("a"); ok {
		t.Fatal("stale value is cached")
	}

	gen = c.Generation("a")
	if !c.SetIfGeneration("a", "fresh", gen) {
		t.Fatal("store with the current generation was rejected")
	}
	if v, ok := c.Get("a"); !ok || v != "fresh" {
		t.Fatalf("Get(a) = %q, %v; want fresh, true", v, ok)
	}

	// Deleting one key leaves the generation of others untouched.
	genB := c.Generation("b")
	c.Delete("a")
	if !c.SetIfGeneration("b", "y", genB) {
		t.Error("unrelated key rejected after deleting a")
	}
}
