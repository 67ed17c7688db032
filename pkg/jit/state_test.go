package jit

import (
	"testing"

	"github.com/washdc/sh4jit/pkg/il"
)

// TestEntryCompilesAndChains dispatches pc 0x1000, whose block jumps to
// 0x1004, then dispatches 0x1000 again, exercising the slow-path
// compile and the hash-table fast path on repeat (S6-style), end to
// end through State.
func TestEntryCompilesAndChains(t *testing.T) {
	compiles := 0
	s, err := New(Config{
		OnCompile: func(bd *il.Builder, pc uint32) {
			compiles++
			bd.Jump(pc + 4)
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	pc, err := s.Entry(0x1000)
	if err != nil {
		t.Fatalf("Entry: %v", err)
	}
	if pc != 0x1004 {
		t.Fatalf("expected chained pc 0x1004, got %#x", pc)
	}
	if compiles != 1 {
		t.Fatalf("expected one compile, got %d", compiles)
	}

	if _, err := s.Entry(0x1000); err != nil {
		t.Fatalf("second Entry: %v", err)
	}
	if compiles != 1 {
		t.Fatalf("expected cache hit on repeat dispatch, got %d compiles", compiles)
	}

	st := s.CacheStats()
	if st.LiveEntries == 0 {
		t.Fatal("expected at least one live cache entry")
	}
}

func TestInvalidateAllThenGCReleasesEntries(t *testing.T) {
	s, err := New(Config{
		OnCompile: func(bd *il.Builder, pc uint32) { bd.Jump(pc + 4) },
	})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if _, err := s.Entry(0x2000); err != nil {
		t.Fatal(err)
	}
	s.InvalidateAll()
	if s.CacheStats().OldRootCount != 1 {
		t.Fatal("expected one old root after invalidate")
	}
	s.GC()
	if s.CacheStats().OldRootCount != 0 {
		t.Fatal("expected GC to drain the old-root list")
	}
}
