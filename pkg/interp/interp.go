// Package interp implements the IL interpreter backend: the portable
// fallback and the equivalence oracle (P7) the native backend is
// checked against.
package interp

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"github.com/washdc/sh4jit/pkg/il"
	"github.com/washdc/sh4jit/pkg/memmap"
)

// Block is the interpreted form of an il.Block: a flat copy of its
// instruction list plus a heap-allocated slot array. Building one
// simply copies; no lowering is needed since the dispatch loop
// interprets il.Inst directly.
type Block struct {
	insts []il.Inst
	slots []uint64
}

// Compile copies b's instructions into an interpreted Block.
func Compile(b *il.Block) *Block {
	return &Block{
		insts: append([]il.Inst(nil), b.Insts()...),
		slots: make([]uint64, b.NumSlots()),
	}
}

// Run executes the block's dispatch loop to completion and returns the
// guest PC the block jumped to. Every opcode reads its operand slots,
// performs the operation against host-native arithmetic, writes its
// result slots, and advances; a JUMP or JUMP_COND ends the loop. Ending
// without hitting one is an integrity error — the builder already
// rejects it at construction time, but a corrupted interpreted copy is
// still checked here.
func Run(blk *Block, mem *memmap.Map) (uint32, error) {
	s := blk.slots
	for i := 0; i < len(blk.insts); i++ {
		in := blk.insts[i]
		m := in.Immed
		switch in.Op {
		case il.OpNop, il.OpDiscardSlot, il.OpProfileHit:
			if in.Profile != nil {
				in.Profile.HitCount++
			}

		case il.OpMov:
			if m.Src1 == il.NoSlot {
				s[m.Dst] = m.Const
			} else {
				s[m.Dst] = s[m.Src1]
			}
		case il.OpAdd:
			s[m.Dst] = s[m.Src1] + s[m.Src2]
		case il.OpSub:
			s[m.Dst] = s[m.Src1] - s[m.Src2]
		case il.OpMul:
			s[m.Dst] = s[m.Src1] * s[m.Src2]
		case il.OpNeg:
			s[m.Dst] = uint64(-int64(s[m.Src1]))
		case il.OpAnd:
			s[m.Dst] = s[m.Src1] & s[m.Src2]
		case il.OpOr:
			s[m.Dst] = s[m.Src1] | s[m.Src2]
		case il.OpXor:
			s[m.Dst] = s[m.Src1] ^ s[m.Src2]
		case il.OpNot:
			s[m.Dst] = ^s[m.Src1]

		case il.OpShll:
			s[m.Dst] = s[m.Src1] << (s[m.Src2] & 63)
		case il.OpShlr:
			s[m.Dst] = s[m.Src1] >> (s[m.Src2] & 63)
		case il.OpShar:
			s[m.Dst] = uint64(int64(s[m.Src1]) >> (s[m.Src2] & 63))
		case il.OpShad:
			// SHAD chooses direction by the sign of the amount slot:
			// positive shifts left, negative shifts right arithmetically
			// by the absolute value.
			amt := int64(s[m.Src2])
			if amt >= 0 {
				s[m.Dst] = s[m.Src1] << (uint64(amt) & 63)
			} else {
				s[m.Dst] = uint64(int64(s[m.Src1]) >> (uint64(-amt) & 63))
			}

		case il.OpCmpEq:
			s[m.Dst] = boolU64(s[m.Src1] == s[m.Src2])
		case il.OpCmpGtSigned:
			s[m.Dst] = boolU64(int64(s[m.Src1]) > int64(s[m.Src2]))
		case il.OpCmpGtUnsigned:
			s[m.Dst] = boolU64(s[m.Src1] > s[m.Src2])
		case il.OpCmpGeSigned:
			// The source's signed branch writes the unsigned comparison's
			// destination field. Both comparisons share the single Dst
			// field here, so writing m.Dst reproduces that; the
			// comparison itself is signed.
			s[m.Dst] = boolU64(int64(s[m.Src1]) >= int64(s[m.Src2]))
		case il.OpCmpGeUnsigned:
			s[m.Dst] = boolU64(s[m.Src1] >= s[m.Src2])

		case il.OpLoadHost:
			s[m.Dst] = loadHost(m.HostPtr, m.Width)
		case il.OpStoreHost:
			storeHost(m.HostPtr, m.Width, s[m.Src1])

		case il.OpLoadMem:
			addr := m.MemAddr
			if m.Src1 != il.NoSlot {
				addr = uint32(s[m.Src1])
			}
			v, err := mem.ReadWidth(addr, m.Width)
			if err != nil {
				return 0, err
			}
			s[m.Dst] = v
		case il.OpStoreMem:
			if err := mem.WriteWidth(uint32(s[m.Src1]), m.Width, s[m.Src2]); err != nil {
				return 0, err
			}

		case il.OpSetCond:
			bit := s[m.Src1] & 1
			if uint8(bit) == m.Polarity {
				s[m.Dst] = 1
			} else {
				s[m.Dst] = 0
			}

		case il.OpCall:
			return 0, fmt.Errorf("interp: unimplemented: host function calls are not interpretable")

		case il.OpFallback:
			return 0, fmt.Errorf("interp: unimplemented opcode reached the interpreter fallback")

		case il.OpJump:
			if m.JumpSlot != il.NoSlot {
				return uint32(s[m.JumpSlot]), nil
			}
			return m.JumpPC, nil

		case il.OpJumpCond:
			bit := s[m.Src1] & 1
			if uint8(bit) == m.Polarity {
				return uint32(s[m.Src2]), nil
			}
			return uint32(s[m.Dst]), nil

		default:
			return 0, fmt.Errorf("interp: integrity error: unknown opcode %s at instruction %d", in.Op, i)
		}
	}
	return 0, fmt.Errorf("interp: integrity error: fell off the end of the block without a jump")
}

func boolU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func loadHost(ptr uintptr, width uint8) uint64 {
	switch width {
	case 8:
		return uint64(*(*byte)(unsafe.Pointer(ptr)))
	case 16:
		return uint64(binary.LittleEndian.Uint16(unsafe.Slice((*byte)(unsafe.Pointer(ptr)), 2)))
	case 32:
		return uint64(binary.LittleEndian.Uint32(unsafe.Slice((*byte)(unsafe.Pointer(ptr)), 4)))
	default:
		return binary.LittleEndian.Uint64(unsafe.Slice((*byte)(unsafe.Pointer(ptr)), 8))
	}
}

func storeHost(ptr uintptr, width uint8, v uint64) {
	switch width {
	case 8:
		*(*byte)(unsafe.Pointer(ptr)) = byte(v)
	case 16:
		binary.LittleEndian.PutUint16(unsafe.Slice((*byte)(unsafe.Pointer(ptr)), 2), uint16(v))
	case 32:
		binary.LittleEndian.PutUint32(unsafe.Slice((*byte)(unsafe.Pointer(ptr)), 4), uint32(v))
	default:
		binary.LittleEndian.PutUint64(unsafe.Slice((*byte)(unsafe.Pointer(ptr)), 8), v)
	}
}
