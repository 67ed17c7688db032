// Package execmem implements the executable-memory allocator: a custom
// largest-fit allocator over a single large PROT_EXEC region,
// supporting grow-in-place and coalescing free.
package execmem

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// PoolSize is the single reserved region size obtained from the host OS
// at startup.
const PoolSize = 512 << 20

// align is the byte alignment every chunk's address and size round up
// to.
const align = 8

// headerSize is the size of alloc_chunk/free_chunk bookkeeping that
// precedes every chunk, large enough to host either header shape.
const headerSize = 32

// Pool is a single PROT_EXEC reservation managed by a sorted,
// coalescing free list. The pool is process-global in the source; here
// it is an explicit value so tests can construct independent pools.
type Pool struct {
	mem       []byte
	base      uintptr
	freeList  *freeChunk // sorted by ascending address
	allocSize int        // bytes handed out, for diagnostics
}

type chunkMagic uint32

const (
	magicFree  chunkMagic = 0xF4EE0000
	magicAlloc chunkMagic = 0xA110C000
)

type allocChunk struct {
	magic        chunkMagic
	trueSize     uint32 // size including header and padding
	requestSize  uint32 // size the caller originally asked for
}

type freeChunk struct {
	magic chunkMagic
	size  uint32 // size including this header
	prev  *freeChunk
	next  *freeChunk
}

// New reserves PoolSize bytes of anonymous, PROT_EXEC-capable memory
// from the host OS. This is the entire OS dependence of the JIT core.
func New() (*Pool, error) {
	mem, err := unix.Mmap(-1, 0, PoolSize,
		unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC,
		unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("execmem: failed allocation: mmap %d bytes: %w", PoolSize, err)
	}
	p := &Pool{mem: mem, base: uintptr(unsafe.Pointer(&mem[0]))}
	root := (*freeChunk)(unsafe.Pointer(&mem[0]))
	*root = freeChunk{magic: magicFree, size: uint32(len(mem))}
	p.freeList = root
	return p, nil
}

// Close releases the reservation back to the host OS.
func (p *Pool) Close() error {
	return unix.Munmap(p.mem)
}

func roundUp(n, to int) int {
	return (n + to - 1) / to * to
}

func ptrOf(c *freeChunk) uintptr { return uintptr(unsafe.Pointer(c)) }

func (p *Pool) chunkBytes(c *freeChunk, size uint32) []byte {
	off := ptrOf(c) - p.base
	return p.mem[off : off+uintptr(size)]
}
