package interp

import (
	"testing"
	"unsafe"

	"github.com/washdc/sh4jit/pkg/il"
	"github.com/washdc/sh4jit/pkg/memmap"
)

// TestScenarioS1 builds and interprets the exact block from scenario
// S1: R must equal 0x2A, and the returned PC must equal 0x8C010000.
func TestScenarioS1(t *testing.T) {
	bd := il.NewBuilder()
	s0 := bd.AllocGeneral()
	bd.SetConst(s0, 0x2A)
	bd.StoreHost(uintptr(unsafe.Pointer(&s1R)), s0, 32)
	bd.DiscardSlot(s0)
	bd.Jump(0x8C010000)
	blk, err := bd.Finish(true)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}

	pc, err := Run(Compile(blk), &memmap.Map{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if pc != 0x8C010000 {
		t.Fatalf("expected PC 0x8C010000, got %#x", pc)
	}
	if s1R != 0x2A {
		t.Fatalf("expected R == 0x2A, got %#x", s1R)
	}
}

// s1R is the guest register R of scenario S1. It is a package-level
// variable so that the address captured as a uintptr at IL-build time
// stays valid; a stack variable's address can go stale when the stack
// moves.
var s1R uint64

func TestShadDirectionBySign(t *testing.T) {
	bd := il.NewBuilder()
	val := bd.AllocGeneral()
	amtPos := bd.AllocGeneral()
	dst := bd.AllocGeneral()
	bd.SetConst(val, 1)
	bd.SetConst(amtPos, 2)
	bd.Shad(dst, val, amtPos)
	bd.Jump(0)
	blk, err := bd.Finish(true)
	if err != nil {
		t.Fatal(err)
	}
	c := Compile(blk)
	if _, err := Run(c, &memmap.Map{}); err != nil {
		t.Fatal(err)
	}
	if c.slots[dst] != 4 {
		t.Fatalf("expected SHAD with positive amount to shift left: got %d", c.slots[dst])
	}
}

func TestFallsOffEndIsIntegrityError(t *testing.T) {
	blk := &Block{
		insts: []il.Inst{{Op: il.OpNop}},
		slots: nil,
	}
	if _, err := Run(blk, &memmap.Map{}); err == nil {
		t.Fatal("expected an integrity error for a block that never jumps")
	}
}

func TestLoadMemRAMRegion(t *testing.T) {
	ram := make([]byte, 16)
	ram[0], ram[1], ram[2], ram[3] = 0x2A, 0, 0, 0
	m := &memmap.Map{Regions: []memmap.Region{
		{ID: memmap.RegionRAM, FirstAddr: 0x8C000000, LastAddr: 0x8CFFFFFF, Mask: 0x0000000F, Base: ram},
	}}

	bd := il.NewBuilder()
	dst := bd.AllocGeneral()
	bd.LoadMemConstAddr(dst, 0x8C010000, 32)
	bd.Jump(0)
	blk, err := bd.Finish(true)
	if err != nil {
		t.Fatal(err)
	}
	c := Compile(blk)
	if _, err := Run(c, m); err != nil {
		t.Fatal(err)
	}
	if c.slots[dst] != 0x2A {
		t.Fatalf("expected loaded value 0x2A, got %#x", c.slots[dst])
	}
}
