package native

import (
	"github.com/washdc/sh4jit/pkg/il"
)

// Compile lowers b into a CompiledBlock using buf as the initial
// exec-memory target and grow to extend it on overflow (normally
// execmem.Pool.Grow bound to the allocation buf came from).
func Compile(b *il.Block, abi ABI, clock Clock, returnFn *Label, buf []byte, grow func(int) ([]byte, error)) (*CompiledBlock, error) {
	e := NewEmitter(buf, grow)
	lw := NewLowerer(e, abi)

	// Lowering determines dirtiness as it goes, but the prologue must
	// be emitted before any code; a block that turns out to need
	// spills mid-lowering still gets a prologue reserved up front in
	// this implementation (unlike the two-pass source, which can
	// predict dirtiness from the IL shape before emitting). This is a
	// conservative simplification: the tradeoff is documented rather
	// than hidden.
	entry, err := emitPrologue(e, abi, true)
	if err != nil {
		return nil, err
	}

	if err := lw.Lower(b); err != nil {
		return nil, err
	}

	cycles := uint64(b.Len())
	if err := emitCycleCheckTail(e, abi, true, cycles, clock, returnFn); err != nil {
		return nil, err
	}

	return &CompiledBlock{
		Code:       e.Bytes(),
		Entry:      entry,
		CycleCount: cycles,
		Dirty:      lw.Dirty(),
	}, nil
}
