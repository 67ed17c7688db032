// Package dispatch implements the native dispatch loop: the trampoline
// cache entry, the dispatch tail (hash lookup, full-key compare,
// tail-jump or slow path), and inter-block chaining without returning
// to the host language runtime.
package dispatch

import (
	"fmt"
	"unsafe"

	"github.com/washdc/sh4jit/pkg/cache"
	"github.com/washdc/sh4jit/pkg/execmem"
	"github.com/washdc/sh4jit/pkg/il"
	"github.com/washdc/sh4jit/pkg/interp"
	"github.com/washdc/sh4jit/pkg/memmap"
	"github.com/washdc/sh4jit/pkg/native"
)

// trampolineKey is the sentinel fingerprint that fills every hash-table
// slot so generated code never needs a null check on its hot path.
const trampolineKey uint32 = 0xa0000000

// NativeFunc is the shape of a compiled block's callable entry:
// (guest PC, hash) -> new guest PC. Mirrors the C-level entry(pc, hash)
// function pointer contract.
type NativeFunc func(pc, hash uint32) uint32

// asFunc turns a raw code pointer into a callable NativeFunc. This is
// the one unsafe boundary invoking generated code requires: the byte
// slice is interpreted directly as executable machine code reachable
// through a function value built over its base address.
func asFunc(code []byte, entry int) NativeFunc {
	codePtr := uintptr(unsafe.Pointer(&code[entry]))
	fv := &codePtr // a Go func value points at a word holding the code address
	return *(*NativeFunc)(unsafe.Pointer(&fv))
}

// Meta collects the embedder-supplied callbacks named in the external
// interfaces: hash derivation, IL population on a cache miss, and an
// optional profile-hit notification.
type Meta struct {
	HashFunc func(pc uint32) uint32
	OnCompile func(b *il.Builder, pc uint32)
	ProfileNotify func(h *il.ProfileHandle)
}

// DefaultHashFunc returns pc unchanged: the source computes the
// hash-table index by addr & mask with an identity hash function,
// deliberately, because guest PCs are aligned and already give good
// distribution. Preserved here as the zero-value default.
func DefaultHashFunc(pc uint32) uint32 { return pc }

// Loop ties the cache, exec-memory pool, native backend, and
// interpreter together behind the dispatch entry point described in
// §4.7 and §6.
type Loop struct {
	Cache  *cache.Cache
	Pool   *execmem.Pool
	Mem    *memmap.Map
	Meta   Meta
	ABI    native.ABI
	Clock  native.Clock
	Debug  bool

	returnLabel *native.Label
}

// New wires a Loop with a freshly initialized cache (pre-filled with
// the trampoline sentinel) and the given exec-memory pool.
func New(pool *execmem.Pool, mem *memmap.Map, meta Meta, abi native.ABI, clock native.Clock) *Loop {
	if meta.HashFunc == nil {
		meta.HashFunc = DefaultHashFunc
	}
	return &Loop{
		Cache: cache.New(trampolineBlock{}),
		Pool:  pool,
		Mem:   mem,
		Meta:  meta,
		ABI:   abi,
		Clock: clock,
	}
}

// trampolineBlock is the fake block installed as the trampoline entry's
// payload; its presence, not its content, is what matters — the hot
// path only checks Entry.Key.
type trampolineBlock struct{}

// Entry is the dispatch entry point: given a guest PC, it derives the
// fingerprint, consults the two-level cache, and either tail-jumps into
// native code, interprets a fallback block, or takes the slow path to
// compile a fresh one. It runs until the cycle-check tail (modeled here
// as CycleCheck) diverts to the return function.
func (lp *Loop) Entry(pc uint32) (uint32, error) {
	hash := lp.Meta.HashFunc(pc)
	entry := lp.Cache.Lookup(hash)

	if entry == nil || entry.Key == trampolineKey {
		return lp.slowPath(pc, hash)
	}

	switch blk := entry.Block.(type) {
	case *interp.Block:
		return interp.Run(blk, lp.Mem)
	case *native.CompiledBlock:
		fn := asFunc(blk.Code, blk.Entry)
		return fn(pc, hash), nil
	default:
		return 0, fmt.Errorf("dispatch: integrity error: unrecognized compiled block type %T", blk)
	}
}

// slowPath performs the AVL lookup/compile/install sequence: build IL
// from the decoder callback, run the optimizer, lower to the
// interpreter backend (the native backend, native.Compile, is not used
// on this path), and install the result into the cache.
func (lp *Loop) slowPath(pc, hash uint32) (uint32, error) {
	bd := il.NewBuilder()
	if lp.Meta.OnCompile == nil {
		return 0, fmt.Errorf("dispatch: unimplemented: no OnCompile callback registered to fill IL for pc=%#x", pc)
	}
	lp.Meta.OnCompile(bd, pc)
	blk, err := bd.Finish(lp.Debug)
	if err != nil {
		return 0, err
	}
	il.Optimize(blk)

	interpBlk := interp.Compile(blk)
	if _, err := lp.Cache.Install(hash, interpBlk); err != nil {
		return 0, err
	}
	return interp.Run(interpBlk, lp.Mem)
}

// InvalidateAll is the CPU-side entry reachable from inside a running
// block (e.g. a guest write to the cache-control register); it defers
// to the cache's own invalidation semantics (P8).
func (lp *Loop) InvalidateAll() {
	lp.Cache.InvalidateAll()
}

// GC must only be called from quiescent context; it releases every
// exec-memory allocation and heap block owned by entries in the
// old-root list.
func (lp *Loop) GC() {
	lp.Cache.GC(func(b cache.Block) {
		if cb, ok := b.(*native.CompiledBlock); ok {
			_ = lp.Pool.Free(cb.Code)
		}
	})
}
