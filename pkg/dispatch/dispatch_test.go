package dispatch

import (
	"testing"

	"github.com/washdc/sh4jit/pkg/il"
	"github.com/washdc/sh4jit/pkg/memmap"
	"github.com/washdc/sh4jit/pkg/native"
)

// TestScenarioS6 builds a block ending in JUMP 0xA0000000; the first
// execution misses the cache (hits the trampoline sentinel) and takes
// the slow path; a second lookup at the same fingerprint hits the
// hash-table fast path without recompiling.
func TestScenarioS6(t *testing.T) {
	compiles := 0
	meta := Meta{
		OnCompile: func(bd *il.Builder, pc uint32) {
			compiles++
			bd.Jump(0xA0000000)
		},
	}
	lp := New(nil, &memmap.Map{}, meta, native.SysV, native.Clock{})

	pc, err := lp.Entry(0x8C010000)
	if err != nil {
		t.Fatalf("first Entry: %v", err)
	}
	if pc != 0xA0000000 {
		t.Fatalf("expected jump target 0xA0000000, got %#x", pc)
	}
	if compiles != 1 {
		t.Fatalf("expected exactly one compile on the slow path, got %d", compiles)
	}

	pc, err = lp.Entry(0x8C010000)
	if err != nil {
		t.Fatalf("second Entry: %v", err)
	}
	if pc != 0xA0000000 {
		t.Fatalf("expected repeat jump target 0xA0000000, got %#x", pc)
	}
	if compiles != 1 {
		t.Fatalf("expected the second dispatch to hit cache without recompiling, got %d compiles", compiles)
	}
}

func TestInvalidateAllThenGC(t *testing.T) {
	meta := Meta{OnCompile: func(bd *il.Builder, pc uint32) { bd.Jump(pc + 4) }}
	lp := New(nil, &memmap.Map{}, meta, native.SysV, native.Clock{})

	if _, err := lp.Entry(0x1000); err != nil {
		t.Fatal(err)
	}
	lp.InvalidateAll()
	if lp.Cache.Snapshot().OldRootCount != 1 {
		t.Fatal("expected one old root after invalidate")
	}
	lp.GC()
	if lp.Cache.Snapshot().OldRootCount != 0 {
		t.Fatal("expected GC to drain the old-root list")
	}
}
