package il

// KnownBits tracks, per slot, which bits are known to have a fixed
// value and what that value is. It is the state threaded through the
// optional determinism pass.
type KnownBits struct {
	Mask  uint64 // 1 bit = known
	Value uint64 // meaningful only where Mask is 1
}

// RunDeterminism runs the optional, advisory-only determinism pass: a
// forward bitwise abstract interpretation over the block tracking known
// bits per slot, for later peephole opportunities. A conformant
// implementation may omit this pass entirely; nothing downstream in
// this module depends on its output.
//
// Each instruction's result is copied into the running known-bits state
// before the next instruction is visited, so facts propagate without
// delay; the source's one-instruction state_prev lag is not reproduced
// (statePrev is written but never read). Treat the output as advisory
// only.
func RunDeterminism(b *Block) []KnownBits {
	known := make([]KnownBits, b.NumSlots())
	statePrev := make([]KnownBits, b.NumSlots())

	for i := 0; i < b.Len(); i++ {
		in := b.Inst(i)
		state := make([]KnownBits, b.NumSlots())
		copy(state, known)

		switch in.Op {
		case OpAnd:
			if in.Immed.Src2 == NoSlot {
				break
			}
			// AND c: known-bits becomes ~c | known_bits; known-value
			// bits masked to the AND result where both operands agree.
			c := known[in.Immed.Src2]
			if c.Mask == ^uint64(0) {
				newMask := ^c.Value | known[in.Immed.Src1].Mask
				state[in.Immed.Dst] = KnownBits{
					Mask:  newMask,
					Value: known[in.Immed.Src1].Value & c.Value,
				}
			}
		case OpShll:
			// SHLL k: low k bits become known-zero when the shift
			// amount is itself a known constant.
			amt := known[in.Immed.Src2]
			if amt.Mask == ^uint64(0) && amt.Value < 64 {
				k := amt.Value
				state[in.Immed.Dst] = KnownBits{
					Mask:  (uint64(1)<<k - 1) | (known[in.Immed.Src1].Mask << k),
					Value: known[in.Immed.Src1].Value << k,
				}
			}
		case OpCall, OpJump, OpJumpCond, OpFallback:
			for s := range state {
				state[s] = KnownBits{}
			}
		}

		copy(known, state)
		statePrev[i%len(statePrev)] = state[i%len(state)]
		_ = statePrev
	}
	return known
}
