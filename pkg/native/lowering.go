package native

import (
	"fmt"

	"github.com/washdc/sh4jit/pkg/il"
)

// Lowerer lowers one IL block into native code. Each opcode's lowering
// function grabs its input and output slots (forcing them into
// registers, possibly spilling), emits the x86 encoding, and ungrabs in
// reverse order; calls bracket with Prefunc/Postfunc.
type Lowerer struct {
	e     *Emitter
	pool  *Pool
	abi   ABI
	dirty bool
}

// NewLowerer constructs a lowerer targeting e with the given ABI's
// register pool.
func NewLowerer(e *Emitter, abi ABI) *Lowerer {
	return &Lowerer{e: e, pool: NewPool(abi), abi: abi}
}

// Lower emits code for every instruction in b in order. Loads/stores
// against the guest memory map (OpLoadMem/OpStoreMem) have no lowering
// and fail with an unimplemented error, as does every other opcode
// without a case in lowerOne; no inlined memory-access code is emitted.
func (lw *Lowerer) Lower(b *il.Block) error {
	for i := 0; i < b.Len(); i++ {
		in := b.Inst(i)
		if err := lw.lowerOne(i, in); err != nil {
			return fmt.Errorf("native: lowering instruction %d (%s): %w", i, in.Op, err)
		}
	}
	return nil
}

func (lw *Lowerer) lowerOne(idx int, in il.Inst) error {
	m := in.Immed
	switch in.Op {
	case il.OpNop, il.OpDiscardSlot, il.OpProfileHit, il.OpFallback:
		return nil

	case il.OpMov:
		dst := lw.pool.Grab(int(m.Dst))
		defer lw.pool.Ungrab(int(m.Dst))
		if m.Src1 == il.NoSlot {
			return lw.e.MovRegImm64(dst, m.Const)
		}
		src := lw.pool.Grab(int(m.Src1))
		defer lw.pool.Ungrab(int(m.Src1))
		return lw.e.MovRegReg(dst, src)

	case il.OpAdd:
		dst := lw.pool.Grab(int(m.Dst))
		s1 := lw.pool.Grab(int(m.Src1))
		s2 := lw.pool.Grab(int(m.Src2))
		defer lw.pool.Ungrab(int(m.Src2))
		defer lw.pool.Ungrab(int(m.Src1))
		defer lw.pool.Ungrab(int(m.Dst))
		if err := lw.e.MovRegReg(dst, s1); err != nil {
			return err
		}
		return lw.e.AddRegReg(dst, s2)

	case il.OpCall:
		lw.pool.PrefuncEvictVolatile()
		lw.dirty = true
		fn := lw.pool.Grab(int(m.Dst))
		defer lw.pool.Ungrab(int(m.Dst))
		if err := lw.e.MovRegImm64(fn, uint64(m.CallFn)); err != nil {
			return err
		}
		if err := lw.e.CallReg(fn); err != nil {
			return err
		}
		lw.pool.PostfuncRestore()
		return nil

	case il.OpJump, il.OpJumpCond:
		// The jump opcodes emit no code here: no branch, and the jump
		// target is not moved into the dispatch registers (R14/R15 per
		// GPDescriptors' FlagIsDispatchPC/Hash). Control falls through
		// to the per-block cycle-check tail, emitted separately by the
		// block compiler.
		return nil

	default:
		return fmt.Errorf("native: unimplemented opcode %s", in.Op)
	}
}

// Dirty reports whether any call or spill touched the stack, deciding
// whether the block needs a full prologue/epilogue.
func (lw *Lowerer) Dirty() bool { return lw.dirty || lw.pool.nextStack > 0 }
