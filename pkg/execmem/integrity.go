package execmem

import "fmt"

// Stats is a point-in-time snapshot used by tests asserting P2/P3 and
// by the CLI.
type Stats struct {
	OutstandingAlloc int
	FreeChunkCount   int
	LargestFree      int
}

// Snapshot walks the free list once (debug-weight work; not on any hot
// path) and reports pool occupancy.
func (p *Pool) Snapshot() Stats {
	st := Stats{OutstandingAlloc: p.allocSize}
	for c := p.freeList; c != nil; c = c.next {
		st.FreeChunkCount++
		if int(c.size) > st.LargestFree {
			st.LargestFree = int(c.size)
		}
	}
	return st
}

// CheckIntegrity walks the free list and asserts P3: free chunks are
// pairwise disjoint, sorted by ascending address, and fully coalesced
// (no two adjacent free chunks that should have been merged). Intended
// for debug builds and tests only.
func (p *Pool) CheckIntegrity() error {
	var prevEnd uintptr
	var prev *freeChunk
	for c := p.freeList; c != nil; c = c.next {
		if c.magic != magicFree {
			return fmt.Errorf("execmem: integrity error: corrupt free-chunk magic %#x", c.magic)
		}
		addr := ptrOf(c)
		if prev != nil {
			if addr < prevEnd {
				return fmt.Errorf("execmem: integrity error: free list not sorted or chunks overlap at %#x", addr)
			}
			if addr == prevEnd {
				return fmt.Errorf("execmem: integrity error: adjacent free chunks at %#x were not merged", addr)
			}
		}
		prevEnd = addr + uintptr(c.size)
		prev = c
	}
	return nil
}
