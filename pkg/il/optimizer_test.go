package il

import "testing"

func TestEliminateNoOps(t *testing.T) {
	bd := NewBuilder()
	s0 := bd.AllocGeneral()
	bd.SetConst(s0, 1)
	bd.And(s0, s0, s0) // TST Rx,Rx idiom; must be deleted
	bd.Jump(0x1000)
	blk, err := bd.Finish(false)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	before := blk.Len()
	eliminateNoOps(blk)
	for i := 0; i < blk.Len(); i++ {
		if blk.Inst(i).Op == OpAnd {
			t.Fatalf("AND(s,s) survived no-op elimination")
		}
	}
	if blk.Len() >= before {
		t.Fatalf("expected optimizer to shrink the block, got %d -> %d", before, blk.Len())
	}
}

func TestDeadWriteElimination(t *testing.T) {
	bd := NewBuilder()
	s0 := bd.AllocGeneral()
	bd.SetConst(s0, 1) // dead: immediately overwritten, never read between
	bd.SetConst(s0, 2)
	bd.Jump(0x2000)
	blk, err := bd.Finish(false)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	eliminateDeadWrites(blk)
	count := 0
	for i := 0; i < blk.Len(); i++ {
		if blk.Inst(i).Op == OpMov {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one surviving MOV, got %d", count)
	}
}

func TestOptimizerIdempotent(t *testing.T) {
	bd := NewBuilder()
	s0 := bd.AllocGeneral()
	s1 := bd.AllocGeneral()
	bd.SetConst(s0, 5)
	bd.SetConst(s1, 7)
	bd.Add(s0, s0, s1)
	bd.Jump(0x3000)
	blk, err := bd.Finish(false)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	Optimize(blk)
	first := append([]Inst(nil), blk.Insts()...)
	Optimize(blk)
	second := blk.Insts()
	if len(first) != len(second) {
		t.Fatalf("optimizer not idempotent: length %d -> %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Op != second[i].Op {
			t.Fatalf("optimizer not idempotent at instruction %d: %s -> %s", i, first[i].Op, second[i].Op)
		}
	}
}
