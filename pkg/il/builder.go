package il

import "fmt"

// Builder offers a strongly-typed API, one method per opcode, that
// appends an instruction to an open block. Every method validates slot
// indices in range and checks each slot's declared type against the
// opcode's expectation before copying the immediate into the
// instruction record.
type Builder struct {
	b   *Block
	err error
}

// NewBuilder wraps a fresh block for construction.
func NewBuilder() *Builder {
	return &Builder{b: NewBlock()}
}

// Block returns the block under construction. Callers should check Err
// first.
func (bd *Builder) Block() *Block { return bd.b }

// Err reports the first validation error encountered, if any. Once set,
// further builder calls are no-ops.
func (bd *Builder) Err() error { return bd.err }

func (bd *Builder) fail(err error) {
	if bd.err == nil {
		bd.err = err
	}
}

func (bd *Builder) check(s Slot, want SlotType) bool {
	if bd.err != nil {
		return false
	}
	if err := bd.b.checkSlot(s, want); err != nil {
		bd.fail(err)
		return false
	}
	return true
}

// AllocGeneral allocates a new general-purpose slot.
func (bd *Builder) AllocGeneral() Slot {
	if bd.err != nil {
		return NoSlot
	}
	s, err := bd.b.AllocSlot(General)
	if err != nil {
		bd.fail(err)
		return NoSlot
	}
	return s
}

// AllocFloat allocates a new floating-point slot.
func (bd *Builder) AllocFloat() Slot {
	if bd.err != nil {
		return NoSlot
	}
	s, err := bd.b.AllocSlot(Float)
	if err != nil {
		bd.fail(err)
		return NoSlot
	}
	return s
}

// AllocHostPtr allocates a new host-pointer slot.
func (bd *Builder) AllocHostPtr() Slot {
	if bd.err != nil {
		return NoSlot
	}
	s, err := bd.b.AllocSlot(HostPtr)
	if err != nil {
		bd.fail(err)
		return NoSlot
	}
	return s
}

func (bd *Builder) binary(op Opcode, dst, src1, src2 Slot) {
	if !bd.check(dst, General) || !bd.check(src1, General) || !bd.check(src2, General) {
		return
	}
	bd.b.Push(Inst{Op: op, Immed: Immed{Dst: dst, Src1: src1, Src2: src2}})
}

func (bd *Builder) Add(dst, src1, src2 Slot) { bd.binary(OpAdd, dst, src1, src2) }
func (bd *Builder) Sub(dst, src1, src2 Slot) { bd.binary(OpSub, dst, src1, src2) }
func (bd *Builder) Mul(dst, src1, src2 Slot) { bd.binary(OpMul, dst, src1, src2) }
func (bd *Builder) And(dst, src1, src2 Slot) { bd.binary(OpAnd, dst, src1, src2) }
func (bd *Builder) Or(dst, src1, src2 Slot)  { bd.binary(OpOr, dst, src1, src2) }
func (bd *Builder) Xor(dst, src1, src2 Slot) { bd.binary(OpXor, dst, src1, src2) }

func (bd *Builder) Neg(dst, src Slot) { bd.unary(OpNeg, dst, src) }
func (bd *Builder) Not(dst, src Slot) { bd.unary(OpNot, dst, src) }
func (bd *Builder) Mov(dst, src Slot) { bd.unary(OpMov, dst, src) }

func (bd *Builder) unary(op Opcode, dst, src Slot) {
	if !bd.check(dst, General) || !bd.check(src, General) {
		return
	}
	bd.b.Push(Inst{Op: op, Immed: Immed{Dst: dst, Src1: src}})
}

// SetConst allocates nothing; it builds a MOV from a synthetic constant
// by folding the constant into the immediate and reading no slot. Used
// for SET_SLOT-style "slot = constant" initialization.
func (bd *Builder) SetConst(dst Slot, value uint64) {
	if !bd.check(dst, General) {
		return
	}
	bd.b.Push(Inst{Op: OpMov, Immed: Immed{Dst: dst, Src1: NoSlot, Const: value}})
}

// Shll, Shlr, Shar, Shad lower SH-4 shift families. Shad chooses
// direction from the sign of amount at interpretation/lowering time,
// not at build time.
func (bd *Builder) Shll(dst, src, amount Slot) { bd.binary(OpShll, dst, src, amount) }
func (bd *Builder) Shlr(dst, src, amount Slot) { bd.binary(OpShlr, dst, src, amount) }
func (bd *Builder) Shar(dst, src, amount Slot) { bd.binary(OpShar, dst, src, amount) }
func (bd *Builder) Shad(dst, src, amount Slot) { bd.binary(OpShad, dst, src, amount) }

func (bd *Builder) CmpEq(dst, src1, src2 Slot)         { bd.binary(OpCmpEq, dst, src1, src2) }
func (bd *Builder) CmpGtSigned(dst, src1, src2 Slot)   { bd.binary(OpCmpGtSigned, dst, src1, src2) }
func (bd *Builder) CmpGtUnsigned(dst, src1, src2 Slot) { bd.binary(OpCmpGtUnsigned, dst, src1, src2) }
func (bd *Builder) CmpGeSigned(dst, src1, src2 Slot)   { bd.binary(OpCmpGeSigned, dst, src1, src2) }
func (bd *Builder) CmpGeUnsigned(dst, src1, src2 Slot) { bd.binary(OpCmpGeUnsigned, dst, src1, src2) }

// LoadHost reads *(ptr) into dst, where ptr is the host address of a
// guest register/flag captured at IL-build time.
func (bd *Builder) LoadHost(dst Slot, ptr uintptr, width uint8) {
	if !bd.check(dst, General) {
		return
	}
	bd.b.Push(Inst{Op: OpLoadHost, Immed: Immed{Dst: dst, HostPtr: ptr, Width: width}})
}

// StoreHost writes src to *(ptr).
func (bd *Builder) StoreHost(ptr uintptr, src Slot, width uint8) {
	if !bd.check(src, General) {
		return
	}
	bd.b.Push(Inst{Op: OpStoreHost, Immed: Immed{Src1: src, HostPtr: ptr, Width: width}})
}

// LoadMemConstAddr reads from the guest memory map at a compile-time
// constant address.
func (bd *Builder) LoadMemConstAddr(dst Slot, addr uint32, width uint8) {
	if !bd.check(dst, General) {
		return
	}
	bd.b.Push(Inst{Op: OpLoadMem, Immed: Immed{Dst: dst, Src1: NoSlot, MemAddr: addr, Width: width}})
}

// LoadMem reads from the guest memory map at an address held in a slot.
func (bd *Builder) LoadMem(dst, addrSlot Slot, width uint8) {
	if !bd.check(dst, General) || !bd.check(addrSlot, General) {
		return
	}
	bd.b.Push(Inst{Op: OpLoadMem, Immed: Immed{Dst: dst, Src1: addrSlot, Width: width}})
}

// StoreMem writes src to the guest memory map at an address held in a
// slot.
func (bd *Builder) StoreMem(addrSlot, src Slot, width uint8) {
	if !bd.check(addrSlot, General) || !bd.check(src, General) {
		return
	}
	bd.b.Push(Inst{Op: OpStoreMem, Immed: Immed{Src1: addrSlot, Src2: src, Width: width}})
}

// SetCond writes 1 or 0 to dst depending on whether flagSlot's low bit
// matches polarity.
func (bd *Builder) SetCond(dst, flagSlot Slot, polarity uint8) {
	if !bd.check(dst, General) || !bd.check(flagSlot, General) {
		return
	}
	bd.b.Push(Inst{Op: OpSetCond, Immed: Immed{Dst: dst, Src1: flagSlot, Polarity: polarity}})
}

// Jump ends the block unconditionally at a compile-time-constant guest
// PC.
func (bd *Builder) Jump(pc uint32) {
	if bd.err != nil {
		return
	}
	bd.b.Push(Inst{Op: OpJump, Immed: Immed{JumpPC: pc, JumpSlot: NoSlot}})
}

// JumpSlot ends the block unconditionally at a PC held in a slot.
func (bd *Builder) JumpSlot(pcSlot Slot) {
	if !bd.check(pcSlot, General) {
		return
	}
	bd.b.Push(Inst{Op: OpJump, Immed: Immed{JumpSlot: pcSlot}})
}

// JumpCond ends the block at one of two precomputed PC-carrying slots,
// chosen by the low bit of flagSlot against polarity.
func (bd *Builder) JumpCond(flagSlot, pcTrue, pcFalse Slot, polarity uint8) {
	if !bd.check(flagSlot, General) || !bd.check(pcTrue, General) || !bd.check(pcFalse, General) {
		return
	}
	bd.b.Push(Inst{Op: OpJumpCond, Immed: Immed{
		Src1: flagSlot, Src2: pcTrue, Dst: pcFalse, Polarity: polarity,
	}})
}

// Fallback hands control back to the decoder/interpreter for an
// unimplemented instruction.
func (bd *Builder) Fallback() {
	if bd.err != nil {
		return
	}
	bd.b.Push(Inst{Op: OpFallback})
}

// Call invokes a host function pointer with up to two argument slots,
// writing its return value to dst.
func (bd *Builder) Call(dst Slot, fn uintptr, arg1, arg2 Slot) {
	if !bd.check(dst, General) {
		return
	}
	if arg1 != NoSlot && !bd.check(arg1, General) {
		return
	}
	if arg2 != NoSlot && !bd.check(arg2, General) {
		return
	}
	bd.b.Push(Inst{Op: OpCall, Immed: Immed{Dst: dst, Src1: arg1, Src2: arg2, CallFn: fn}})
}

// DiscardSlot marks a slot as dead; inserted automatically by the
// optimizer's discard-insertion pass, but exposed for direct use too.
func (bd *Builder) DiscardSlot(s Slot) {
	if !bd.check(s, clampSlot(s, bd.b)) {
		return
	}
	bd.b.Push(Inst{Op: OpDiscardSlot, Immed: Immed{Src1: s}})
}

func clampSlot(s Slot, b *Block) SlotType {
	if int(s) < 0 || int(s) >= b.NumSlots() {
		return General
	}
	return b.SlotType(s)
}

// ProfileHit records a hit against the block's profile handle, if any.
func (bd *Builder) ProfileHit() {
	if bd.err != nil {
		return
	}
	bd.b.Push(Inst{Op: OpProfileHit})
}

// Finish validates the completed block's well-formedness (P5) under
// debug and returns it, or the first error encountered either during
// construction or well-formedness checking.
func (bd *Builder) Finish(debug bool) (*Block, error) {
	if bd.err != nil {
		return nil, bd.err
	}
	if n := bd.b.Len(); n == 0 {
		return nil, fmt.Errorf("il: empty block has no terminating jump")
	}
	last := bd.b.Inst(bd.b.Len() - 1).Op
	if last != OpJump && last != OpJumpCond && last != OpFallback {
		return nil, fmt.Errorf("il: block does not end in a jump (integrity error)")
	}
	if debug {
		if err := CheckWellFormed(bd.b); err != nil {
			return nil, err
		}
	}
	return bd.b, nil
}
