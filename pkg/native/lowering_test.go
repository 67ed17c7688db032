package native

import (
	"bytes"
	"testing"

	"github.com/washdc/sh4jit/pkg/il"
)

// TestLowerMovEmitsPlainMov guards against OpMov's slot-to-slot form
// regressing into an ADD (P7: interpreter and native must agree, and
// pkg/interp.Run treats OpMov as a pure copy).
func TestLowerMovEmitsPlainMov(t *testing.T) {
	bd := il.NewBuilder()
	a := bd.AllocGeneral()
	b := bd.AllocGeneral()
	bd.SetConst(a, 7)
	bd.Mov(b, a)
	bd.Jump(0x1000)
	blk, err := bd.Finish(true)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}

	buf := make([]byte, 64)
	e := NewEmitter(buf, func(n int) ([]byte, error) { return make([]byte, n), nil })
	lw := NewLowerer(e, SysV)
	if err := lw.Lower(blk); err != nil {
		t.Fatalf("Lower: %v", err)
	}

	// The Mov must encode as opcode 0x89 (MOV r/m64, r64); it must never
	// contain 0x01 (ADD r/m64, r64), which would silently turn the copy
	// into dst += src.
	if bytes.Contains(e.Bytes(), []byte{0x01}) {
		t.Fatalf("expected no ADD opcode (0x01) in lowered Mov, got % x", e.Bytes())
	}
	if !bytes.Contains(e.Bytes(), []byte{0x89}) {
		t.Fatalf("expected a MOV opcode (0x89) in lowered output, got % x", e.Bytes())
	}
}
