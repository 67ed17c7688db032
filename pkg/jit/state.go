// Package jit ties the IL, code cache, exec-memory allocator, native
// backend, dispatch loop, and debugger surface together behind one
// State constructed by New, mirroring the source's single JitState
// struct borrowed by every entry point.
package jit

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/washdc/sh4jit/pkg/cache"
	"github.com/washdc/sh4jit/pkg/debugger"
	"github.com/washdc/sh4jit/pkg/dispatch"
	"github.com/washdc/sh4jit/pkg/execmem"
	"github.com/washdc/sh4jit/pkg/il"
	"github.com/washdc/sh4jit/pkg/memmap"
	"github.com/washdc/sh4jit/pkg/native"
)

// Config is constructed directly by the embedder — there is no
// config-file layer for a library whose only caller is the emulator
// core.
type Config struct {
	// ABI selects the calling convention; defaults to native.SysV.
	ABI native.ABI
	// Debug enables the IL well-formedness check on every block the
	// slow path compiles. The exec-mem free-list check
	// (execmem.Pool.CheckIntegrity) is not run by it.
	Debug bool
	// HashFunc derives a 32-bit fingerprint from a guest PC; defaults
	// to the identity function, matching the source's addr & mask
	// scheme.
	HashFunc func(pc uint32) uint32
	// OnCompile fills an empty IL block from guest memory on a cache
	// miss. Required.
	OnCompile func(b *il.Builder, pc uint32)
	// ProfileNotify is stored in the dispatch metadata; nothing in this
	// module calls it.
	ProfileNotify func(h *il.ProfileHandle)
	// Mem is the guest memory map contract consumed for load/store
	// lowering and interpretation.
	Mem *memmap.Map
	// Hooks is the debugger soft-break surface; defaults to a no-op
	// implementation so the JIT runs headless.
	Hooks debugger.Hooks
	// Logger overrides the default stderr zerolog logger.
	Logger *zerolog.Logger
}

// State is the process-lifetime singleton borrowed by every exported
// operation: the free list, current tree root, hash table, old-root
// list, and dispatch_meta equivalent all live here.
type State struct {
	pool   *execmem.Pool
	loop   *dispatch.Loop
	debug  *debugger.Debugger
	log    zerolog.Logger
	cfg    Config
}

// New reserves the exec-memory pool, constructs the cache pre-filled
// with the trampoline entry, and wires the dispatch loop.
func New(cfg Config) (*State, error) {
	if cfg.Mem == nil {
		cfg.Mem = &memmap.Map{}
	}
	if cfg.ABI == nil {
		cfg.ABI = native.SysV
	}
	if cfg.HashFunc == nil {
		cfg.HashFunc = dispatch.DefaultHashFunc
	}

	log := defaultLogger()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}

	pool, err := execmem.New()
	if err != nil {
		log.Fatal().Err(err).Int("pool_size", execmem.PoolSize).Msg("jit: failed allocation reserving exec-memory pool")
		return nil, err
	}

	dbg := debugger.New()
	if cfg.Hooks != nil {
		dbg.Hooks = cfg.Hooks
	}

	clock, err := newExecMemClock(pool)
	if err != nil {
		return nil, err
	}

	loop := dispatch.New(pool, cfg.Mem, dispatch.Meta{
		HashFunc:      cfg.HashFunc,
		OnCompile:     cfg.OnCompile,
		ProfileNotify: cfg.ProfileNotify,
	}, cfg.ABI, clock)
	loop.Debug = cfg.Debug

	return &State{pool: pool, loop: loop, debug: dbg, log: log, cfg: cfg}, nil
}

func defaultLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}

// newExecMemClock allocates the cycle-clock triple inside the
// exec-memory pool so generated native code can address it by
// RIP-relative offset, per the cycle clock design.
func newExecMemClock(pool *execmem.Pool) (native.Clock, error) {
	buf, err := pool.Alloc(24)
	if err != nil {
		return native.Clock{}, NewFault(FailedAllocation, "allocating cycle clock", map[string]any{"size": 24})
	}
	stamp := (*uint64)(ptrAt(buf, 0))
	countdown := (*uint64)(ptrAt(buf, 8))
	target := (*uint64)(ptrAt(buf, 16))
	return native.Clock{Stamp: stamp, Countdown: countdown, Target: target}, nil
}

// Close tears down the exec-memory pool. The cache and its entries are
// process-lifetime otherwise, mirroring jit_cleanup.
func (s *State) Close() error {
	return s.pool.Close()
}

// Entry runs the single block at pc and returns the guest PC it jumped
// to; it does not chain further blocks or consult the scheduler.
func (s *State) Entry(pc uint32) (uint32, error) {
	return s.loop.Entry(pc)
}

// InvalidateAll is reachable from inside a running block (e.g. a guest
// write to the cache-control register).
func (s *State) InvalidateAll() {
	s.loop.InvalidateAll()
}

// GC must only be called from quiescent context.
func (s *State) GC() {
	s.loop.GC()
}

// CacheStats snapshots the code cache for diagnostics and tests.
func (s *State) CacheStats() cache.Stats {
	return s.loop.Cache.Snapshot()
}

// ExecMemStats snapshots the exec-memory allocator for diagnostics.
func (s *State) ExecMemStats() execmem.Stats {
	return s.pool.Snapshot()
}

// Debugger exposes the watchpoint/soft-break surface so an embedder can
// register breakpoints.
func (s *State) Debugger() *debugger.Debugger {
	return s.debug
}
