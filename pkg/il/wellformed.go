package il

import "fmt"

// CheckWellFormed walks a completed block once and verifies P5: every
// slot is written before it is read, and no slot is written twice. It
// is the debug-only integrity check described for the builder; release
// builds skip it entirely.
func CheckWellFormed(b *Block) error {
	written := make([]bool, b.NumSlots())
	for i := 0; i < b.Len(); i++ {
		in := b.Inst(i)
		for _, s := range ReadSlots(in) {
			if !written[s] {
				return fmt.Errorf("il: integrity error: slot %d read before write at instruction %d (%s)", s, i, in.Op)
			}
		}
		for _, s := range WriteSlots(in) {
			if written[s] {
				return fmt.Errorf("il: integrity error: slot %d written twice, last at instruction %d (%s)", s, i, in.Op)
			}
			written[s] = true
		}
	}
	return nil
}
