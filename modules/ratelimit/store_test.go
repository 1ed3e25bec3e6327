package ratelimit

import (
	"testing"
	"time"
)

func TestWindowStore_GetPutDelete(t *testing.T) {
	s := NewWindowStore(4)

	if _, ok := s.Get("k"); ok {
		t.Fatalf("expected absent key")
	}
	s.Put("k", Window{Count: 2, ResetAt: epoch})
	w, ok := s.Get("k")
	if !ok || w.Count != 2 || !w.ResetAt.Equal(epoch) {
		t.Fatalf("unexpected window %+v (found=%v)", w, ok)
	}

	// Get hands out copies
	w.Count = 99
	if again, _ := s.Get("k"); again.Count != 2 {
		t.Fatalf("store mutated through a copy")
	}

	s.Delete("k")
	if _, ok := s.Get("k"); ok {
		t.Fatalf("expected key to be deleted")
	}
}

func TestWindowStore_DefaultShards(t *testing.T) {
	if got := NewWindowStore(0).ShardCount(); got != DefaultShardCount {
		t.Fatalf("want %d shards, got %d", DefaultShardCount, got)
	}
}

func TestWindowStore_ForEachAndLen(t *testing.T) {
	s := NewWindowStore(8)
	for _, k := range []string{"a", "b", "c", "d"} {
		s.Put(k, Window{Count: 1, ResetAt: epoch})
	}
	if s.Len() != 4 {
		t.Fatalf("want 4, got %d", s.Len())
	}

	seen := map[string]bool{}
	s.ForEach(func(k string, _ Window) bool {
		seen[k] = true
		return true
	})
	if len(seen) != 4 {
		t.Fatalf("ForEach visited %d keys", len(seen))
	}

	visits := 0
	s.ForEach(func(string, Window) bool {
		visits++
		return false
	})
	if visits != 1 {
		t.Fatalf("ForEach must stop when fn returns false, visited %d", visits)
	}
}

func TestWindowStore_EvictShard(t *testing.T) {
	s := NewWindowStore(8)
	s.Put("expired", Window{Count: 3, ResetAt: epoch.Add(-time.Millisecond)})
	s.Put("boundary", Window{Count: 3, ResetAt: epoch})
	s.Put("live", Window{Count: 3, ResetAt: epoch.Add(time.Millisecond)})

	n := 0
	for i := range s.ShardCount() {
		n += s.EvictShard(i, epoch)
	}
	if n != 2 {
		t.Fatalf("want 2 evicted, got %d", n)
	}
	if _, ok := s.Get("live"); !ok {
		t.Fatalf("live window evicted")
	}
	if s.Len() != 1 {
		t.Fatalf("want 1 left, got %d", s.Len())
	}
}
