package il

import "fmt"

// Block is an ordered sequence of IL instructions plus the bookkeeping
// the backends need: allocated-slot count, per-slot type, and an
// optional profile hook.
type Block struct {
	insts     []Inst
	slotTypes []SlotType
	Profile   *ProfileHandle
}

// NewBlock returns an empty block ready for building.
func NewBlock() *Block {
	return &Block{}
}

// Len reports the current instruction count.
func (b *Block) Len() int { return len(b.insts) }

// Inst returns the instruction at i.
func (b *Block) Inst(i int) Inst { return b.insts[i] }

// Insts returns the block's instructions. The slice is shared; callers
// must not mutate it directly — use Push/Strike/InsertAt.
func (b *Block) Insts() []Inst { return b.insts }

// NumSlots reports how many slots have been allocated so far.
func (b *Block) NumSlots() int { return len(b.slotTypes) }

// SlotType reports the declared type of slot s.
func (b *Block) SlotType(s Slot) SlotType { return b.slotTypes[s] }

// AllocSlot stamps out a new virtual register of the given type. There
// is no free-list: slot numbers only increase within a block.
func (b *Block) AllocSlot(t SlotType) (Slot, error) {
	if len(b.slotTypes) >= MaxSlots {
		return NoSlot, fmt.Errorf("il: slot budget exhausted (max %d)", MaxSlots)
	}
	b.slotTypes = append(b.slotTypes, t)
	return Slot(len(b.slotTypes) - 1), nil
}

// Push appends an instruction to the end of the block. Capacity grows
// by Go's ordinary amortized-doubling append; the exact growth factor
// is not load-bearing, only that appends succeed until memory runs out.
func (b *Block) Push(in Inst) {
	b.insts = append(b.insts, in)
}

// Strike deletes the instruction at index i, shifting the tail down.
func (b *Block) Strike(i int) {
	b.insts = append(b.insts[:i], b.insts[i+1:]...)
}

// InsertAt inserts in before index i, shifting the tail up.
func (b *Block) InsertAt(i int, in Inst) {
	b.insts = append(b.insts, Inst{})
	copy(b.insts[i+1:], b.insts[i:])
	b.insts[i] = in
}

func (b *Block) checkSlot(s Slot, want SlotType) error {
	if s == NoSlot {
		return nil
	}
	if int(s) < 0 || int(s) >= len(b.slotTypes) {
		return fmt.Errorf("il: slot %d out of range (have %d)", s, len(b.slotTypes))
	}
	if b.slotTypes[s] != want {
		return fmt.Errorf("il: slot %d has type %s, expected %s", s, b.slotTypes[s], want)
	}
	return nil
}
