package native

import "testing"

func TestLabelBackpatchesForwardJump(t *testing.T) {
	buf := make([]byte, 64)
	e := NewEmitter(buf, func(n int) ([]byte, error) {
		grown := make([]byte, n)
		copy(grown, buf)
		return grown, nil
	})

	target := e.NewLabel("target")
	if err := e.Jump8(0xEB, target); err != nil {
		t.Fatalf("Jump8: %v", err)
	}
	if err := e.Nop(); err != nil {
		t.Fatal(err)
	}
	if err := e.Define(target); err != nil {
		t.Fatalf("Define: %v", err)
	}

	disp := int8(e.Bytes()[1])
	if int(disp) != 1 {
		t.Fatalf("expected displacement 1 (skip the NOP), got %d", disp)
	}
}

func TestJump8OutOfRangeOverflows(t *testing.T) {
	buf := make([]byte, 8192)
	e := NewEmitter(buf, func(n int) ([]byte, error) { return make([]byte, n), nil })
	far := e.NewLabel("far")
	if err := e.Jump8(0xEB, far); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 200; i++ {
		if err := e.Nop(); err != nil {
			t.Fatal(err)
		}
	}
	if err := e.Define(far); err == nil {
		t.Fatal("expected an overflow error for an out-of-range 8-bit displacement")
	}
}

func TestModRMRSPForcesSIB(t *testing.T) {
	buf := make([]byte, 16)
	e := NewEmitter(buf, func(n int) ([]byte, error) { return make([]byte, n), nil })
	if err := e.ModRM(0, RAX, RSP); err != nil {
		t.Fatal(err)
	}
	if e.Len() != 2 {
		t.Fatalf("expected ModRM+SIB to emit 2 bytes when rm=RSP, got %d", e.Len())
	}
}

func TestMovRegRegEncodesPlainMov(t *testing.T) {
	buf := make([]byte, 16)
	e := NewEmitter(buf, func(n int) ([]byte, error) { return make([]byte, n), nil })
	if err := e.MovRegReg(RCX, RAX); err != nil {
		t.Fatalf("MovRegReg: %v", err)
	}
	got := e.Bytes()
	// REX.W (0x48), opcode 0x89 (MOV r/m64, r64), ModRM with reg=RAX (src), rm=RCX (dst).
	want := []byte{0x48, 0x89, modRMByte(3, RAX, RCX)}
	if len(got) != len(want) {
		t.Fatalf("expected %d bytes, got %d (% x)", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: expected %#x, got %#x", i, want[i], got[i])
		}
	}
}

func TestEmitterGrowsOnOverflow(t *testing.T) {
	buf := make([]byte, 1)
	grown := false
	e := NewEmitter(buf, func(n int) ([]byte, error) {
		grown = true
		return make([]byte, n), nil
	})
	if err := e.MovRegImm64(RAX, 0x1234); err != nil {
		t.Fatalf("MovRegImm64: %v", err)
	}
	if !grown {
		t.Fatal("expected the emitter to call grow when the buffer overflowed")
	}
}
