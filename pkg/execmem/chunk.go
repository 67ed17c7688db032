package execmem

import (
	"fmt"
	"unsafe"
)

// Alloc hands out a read/write/execute region at least n bytes long.
// The free list is scanned for the largest chunk that fits (best-
// growable, not first-fit) — motivated so the most recent allocation
// has the greatest chance of a later successful grow-in-place. If the
// chosen chunk has enough leftover to host a free-chunk header, it is
// split; otherwise the whole chunk is absorbed.
func (p *Pool) Alloc(n int) ([]byte, error) {
	need := uint32(roundUp(n, align) + headerSize)

	var best, bestPrev *freeChunk
	for c, prev := p.freeList, (*freeChunk)(nil); c != nil; prev, c = c, c.next {
		if c.size >= need && (best == nil || c.size > best.size) {
			best, bestPrev = c, prev
		}
	}
	if best == nil {
		return nil, fmt.Errorf("execmem: failed allocation: no chunk ≥ %d bytes available", need)
	}

	if best.size-need >= headerSize {
		// Split: carve `need` bytes off the front, leave the remainder
		// as a smaller free chunk in the same list position.
		remainderAddr := ptrOf(best) + uintptr(need)
		remainder := (*freeChunk)(unsafe.Pointer(remainderAddr))
		*remainder = freeChunk{magic: magicFree, size: best.size - need, prev: best.prev, next: best.next}
		p.linkIn(remainder, bestPrev, best.next)

		hdr := (*allocChunk)(unsafe.Pointer(best))
		*hdr = allocChunk{magic: magicAlloc, trueSize: need, requestSize: uint32(n)}
	} else {
		need = best.size
		p.unlink(best, bestPrev)
		hdr := (*allocChunk)(unsafe.Pointer(best))
		*hdr = allocChunk{magic: magicAlloc, trueSize: need, requestSize: uint32(n)}
	}

	p.allocSize += int(need)
	dataAddr := ptrOf(best) + headerSize
	off := dataAddr - p.base
	return p.mem[off : off+uintptr(n) : off+uintptr(need)-headerSize], nil
}

func (p *Pool) linkIn(c, prev, next *freeChunk) {
	c.prev, c.next = prev, next
	if prev != nil {
		prev.next = c
	} else {
		p.freeList = c
	}
	if next != nil {
		next.prev = c
	}
}

func (p *Pool) unlink(c, prev *freeChunk) {
	if prev != nil {
		prev.next = c.next
	} else {
		p.freeList = c.next
	}
	if c.next != nil {
		c.next.prev = prev
	}
}

func (p *Pool) headerOf(data []byte) *allocChunk {
	off := uintptr(unsafe.Pointer(&data[0])) - p.base - headerSize
	return (*allocChunk)(unsafe.Pointer(&p.mem[off]))
}

// Free recovers the header by backing up from the caller's slice,
// inserts the chunk into the sorted free list, and merges with the
// immediate predecessor and/or successor when their boundaries touch.
// The free list is always left coalesced and sorted.
func (p *Pool) Free(data []byte) error {
	hdr := p.headerOf(data)
	if hdr.magic != magicAlloc {
		return fmt.Errorf("execmem: integrity error: corrupt chunk magic %#x at free", hdr.magic)
	}
	size := hdr.trueSize
	p.allocSize -= int(size)

	addr := uintptr(unsafe.Pointer(hdr))
	fc := (*freeChunk)(unsafe.Pointer(hdr))
	*fc = freeChunk{magic: magicFree, size: size}

	var prev, next *freeChunk
	for c := p.freeList; c != nil; c = c.next {
		if ptrOf(c) > addr {
			next = c
			break
		}
		prev = c
	}
	p.linkIn(fc, prev, next)

	p.mergeWithNext(fc)
	if prev != nil {
		p.mergeWithNext(prev)
	}
	return nil
}

// mergeWithNext merges c with its immediate successor in the free list
// if their byte ranges are adjacent.
func (p *Pool) mergeWithNext(c *freeChunk) {
	n := c.next
	if n == nil {
		return
	}
	if ptrOf(c)+uintptr(c.size) == ptrOf(n) {
		c.size += n.size
		p.unlink(n, c)
	}
}

// Grow attempts to extend an existing allocation in place to hold
// newSize total bytes. It inspects the free chunk immediately
// following the allocation; if large enough, it is absorbed (wholly or
// partially, splitting off a remainder). If the following bytes are not
// free, Grow fails — callers hold raw pointers into this memory, so
// relocating would corrupt them (P4).
func (p *Pool) Grow(data []byte, newSize int) ([]byte, error) {
	hdr := p.headerOf(data)
	if hdr.magic != magicAlloc {
		return nil, fmt.Errorf("execmem: integrity error: corrupt chunk magic %#x at grow", hdr.magic)
	}
	need := uint32(roundUp(newSize, align) + headerSize)
	if need <= hdr.trueSize {
		hdr.requestSize = uint32(newSize)
		return data[:newSize], nil
	}
	extra := need - hdr.trueSize

	addr := uintptr(unsafe.Pointer(hdr))
	following := addr + uintptr(hdr.trueSize)

	var prev *freeChunk
	var next *freeChunk
	for c := p.freeList; c != nil; c = c.next {
		if ptrOf(c) == following {
			next = c
			break
		}
		prev = c
	}
	if next == nil || next.size < extra {
		return nil, fmt.Errorf("execmem: grow-in-place failed: need %d more bytes, none available", extra)
	}

	if next.size-extra >= headerSize {
		remainderAddr := following + uintptr(extra)
		remainder := (*freeChunk)(unsafe.Pointer(remainderAddr))
		*remainder = freeChunk{magic: magicFree, size: next.size - extra}
		p.linkIn(remainder, prev, next.next)
		hdr.trueSize = need
		p.allocSize += int(extra)
	} else {
		hdr.trueSize += next.size
		p.allocSize += int(next.size)
		p.unlink(next, prev)
	}

	off := (addr + headerSize) - p.base
	hdr.requestSize = uint32(newSize)
	return p.mem[off : off+uintptr(newSize) : off+uintptr(hdr.trueSize)-headerSize], nil
}
