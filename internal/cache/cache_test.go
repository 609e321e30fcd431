package cache

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemoryGetSet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10, time.Minute)

	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Fatal("Expected a miss on an empty cache")
	}

	if err := m.Set(ctx, "k", "Low_Downtime", time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	label, ok, err := m.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Expected a hit, got ok=%v err=%v", ok, err)
	}
	if label != "Low_Downtime" {
		t.Errorf("Expected Low_Downtime, got %q", label)
	}
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10, 20*time.Millisecond)

	m.Set(ctx, "k", "High_Downtime", 0)
	if _, ok, _ := m.Get(ctx, "k"); !ok {
		t.Fatal("Expected entry to be live before its TTL")
	}

	time.Sleep(40 * time.Millisecond)
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Error("Expected entry to expire after its TTL")
	}
}

func TestMemorySweepsUnreadEntries(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(100000, 20*time.Millisecond)

	for i := 0; i < 5000; i++ {
		m.Set(ctx, fmt.Sprintf("row-%d", i), "Low_Downtime", 0)
	}
	if m.Len() == 0 {
		t.Fatal("Expected entries before the TTL")
	}

	deadline := time.Now().Add(3 * time.Second)
	for m.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := m.Len(); n != 0 {
		t.Errorf("Expected expired entries to be swept without being read, %d left", n)
	}
}

func TestMemoryBounded(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(3, time.Minute)

	for _, k := range []string{"a", "b", "c", "d", "e"} {
		m.Set(ctx, k, "x", 0)
	}
	if m.Len() != 3 {
		t.Errorf("Expected the cache to hold 3 entries, got %d", m.Len())
	}
	if _, ok, _ := m.Get(ctx, "a"); ok {
		t.Error("Expected the oldest entry to be evicted")
	}
	if _, ok, _ := m.Get(ctx, "e"); !ok {
		t.Error("Expected the newest entry to be kept")
	}
}

func TestMemoryClose(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0, time.Minute)
	m.Set(ctx, "a", "x", 0)
	m.Set(ctx, "b", "y", 0)
	m.Close()
	if m.Len() != 0 {
		t.Errorf("Expected Close to drop entries, %d left", m.Len())
	}
}

func TestNew(t *testing.T) {
	if _, ok := New(Options{TTL: 0, RedisAddr: "localhost:6379"}).(Nop); !ok {
		t.Error("Expected Nop when TTL is zero")
	}
	if _, ok := New(Options{TTL: time.Minute}).(*Memory); !ok {
		t.Error("Expected Memory without a Redis address")
	}
	c := New(Options{TTL: time.Minute, RedisAddr: "localhost:6379"})
	defer c.Close()
	if _, ok := c.(*Redis); !ok {
		t.Error("Expected Redis with an address")
	}
}

func TestNop(t *testing.T) {
	ctx := context.Background()
	var c Cache = Nop{}
	c.Set(ctx, "k", "v", time.Minute)
	if _, ok, err := c.Get(ctx, "k"); ok || err != nil {
		t.Errorf("Nop should never hit, got ok=%v err=%v", ok, err)
	}
}
