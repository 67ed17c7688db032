package il

// Optimize runs the three independent optimizer passes over b, in
// their fixed order: no-op elimination, dead-write elimination, discard
// insertion. All three passes operate strictly on the IL, are
// idempotent (P6), and never rename slots.
func Optimize(b *Block) {
	eliminateNoOps(b)
	eliminateDeadWrites(b)
	insertDiscards(b)
}

// eliminateNoOps deletes AND(s,s) where the two sources and the
// destination all name the same slot. The decoder emits this pattern
// for SH-4 "TST Rx,Rx" by construction; no instruction in this IL sets
// flags with an observable side effect, so deleting it is always safe.
func eliminateNoOps(b *Block) {
	for i := 0; i < b.Len(); {
		in := b.Inst(i)
		if in.Op == OpAnd && in.Immed.Src1 == in.Immed.Src2 && in.Immed.Src1 == in.Immed.Dst {
			b.Strike(i)
			continue
		}
		i++
	}
}

// eliminateDeadWrites deletes instruction i when every element of its
// write set is overwritten, without being read first, somewhere between
// i and the end of the block. An overwrite of one element of a
// multi-slot write set does not discharge the others.
func eliminateDeadWrites(b *Block) {
	for i := 0; i < b.Len(); {
		in := b.Inst(i)
		writes := WriteSlots(in)
		if len(writes) == 0 {
			i++
			continue
		}
		if isDeadWrite(b, i, writes) {
			b.Strike(i)
			continue
		}
		i++
	}
}

// isDeadWrite reports whether every slot in writes is guaranteed
// overwritten before being read, scanning forward from i+1.
func isDeadWrite(b *Block, i int, writes []Slot) bool {
	pending := make(map[Slot]bool, len(writes))
	for _, s := range writes {
		pending[s] = true
	}
	for j := i + 1; j < b.Len() && len(pending) > 0; j++ {
		cur := b.Inst(j)
		for _, s := range ReadSlots(cur) {
			if pending[s] {
				return false
			}
		}
		for _, s := range WriteSlots(cur) {
			delete(pending, s)
		}
	}
	return len(pending) == 0
}

// insertDiscards finds each slot's last reference (read or write) and
// inserts a DISCARD_SLOT instruction immediately after it, so the
// backend knows when a register can be freed.
func insertDiscards(b *Block) {
	alreadyDiscarded := make([]bool, b.NumSlots())
	for i := 0; i < b.Len(); i++ {
		if in := b.Inst(i); in.Op == OpDiscardSlot {
			alreadyDiscarded[in.Immed.Src1] = true
		}
	}

	last := make([]int, b.NumSlots())
	for i := range last {
		last[i] = -1
	}
	for i := 0; i < b.Len(); i++ {
		in := b.Inst(i)
		if in.Op == OpDiscardSlot {
			continue
		}
		for _, s := range ReadSlots(in) {
			last[s] = i
		}
		for _, s := range WriteSlots(in) {
			last[s] = i
		}
	}
	for s, done := range alreadyDiscarded {
		if done {
			last[s] = -1
		}
	}

	type discard struct {
		afterIdx int
		slot     Slot
	}
	var toInsert []discard
	for s, idx := range last {
		if idx >= 0 {
			toInsert = append(toInsert, discard{afterIdx: idx, slot: Slot(s)})
		}
	}
	// Insert from the highest index down so earlier indices stay valid.
	for a := 0; a < len(toInsert); a++ {
		for c := a + 1; c < len(toInsert); c++ {
			if toInsert[c].afterIdx > toInsert[a].afterIdx {
				toInsert[a], toInsert[c] = toInsert[c], toInsert[a]
			}
		}
	}
	for _, d := range toInsert {
		b.InsertAt(d.afterIdx+1, Inst{Op: OpDiscardSlot, Immed: Immed{Src1: d.slot}})
	}
}
