package native

import "fmt"

// Emitter is a streaming assembler: it writes bytes into an
// exec-memory buffer, tracking remaining capacity and growing the
// underlying allocation on overflow via the Grow callback.
type Emitter struct {
	buf  []byte
	pos  int
	grow func(newSize int) ([]byte, error)

	pending map[string][]pendingJump
}

type pendingJump struct {
	dispPos int // position of the branch displacement byte
	afterPos int // address one past the branch, for relative computation
}

// NewEmitter wraps a pre-allocated buffer. grow is called when a Write*
// call would overflow buf; it must return a larger buffer (typically
// backed by execmem.Pool.Grow) or an error.
func NewEmitter(buf []byte, grow func(int) ([]byte, error)) *Emitter {
	return &Emitter{buf: buf, grow: grow, pending: make(map[string][]pendingJump)}
}

// Len reports the number of bytes emitted so far.
func (e *Emitter) Len() int { return e.pos }

// Bytes returns the emitted prefix.
func (e *Emitter) Bytes() []byte { return e.buf[:e.pos] }

func (e *Emitter) ensure(n int) error {
	if e.pos+n <= len(e.buf) {
		return nil
	}
	grown, err := e.grow(e.pos + n + 64)
	if err != nil {
		return fmt.Errorf("native: failed allocation: exec_mem_grow: %w", err)
	}
	e.buf = grown
	return nil
}

func (e *Emitter) byte(b byte) error {
	if err := e.ensure(1); err != nil {
		return err
	}
	e.buf[e.pos] = b
	e.pos++
	return nil
}

func (e *Emitter) bytes(bs ...byte) error {
	if err := e.ensure(len(bs)); err != nil {
		return err
	}
	copy(e.buf[e.pos:], bs)
	e.pos += len(bs)
	return nil
}

// rex builds a REX prefix: W (64-bit operand), R (reg field extension),
// X (index field extension), B (rm/base field extension).
func rex(w, r, x, b bool) byte {
	v := byte(0x40)
	if w {
		v |= 1 << 3
	}
	if r {
		v |= 1 << 2
	}
	if x {
		v |= 1 << 1
	}
	if b {
		v |= 1
	}
	return v
}

func needsRex(regs ...Reg) bool {
	for _, r := range regs {
		if r >= 8 {
			return true
		}
	}
	return false
}

// ModRM encodes a (mod, reg, rm) triple, folding in REX bits for high
// registers and handling the RSP/RBP special cases: RSP in the rm field
// requires a SIB byte (rm=100); RBP in the rm field with mod=00
// requires a forced disp8 of 0 instead (mod promoted to 01).
func (e *Emitter) ModRM(mod uint8, reg, rm Reg) error {
	if rm == RSP {
		if err := e.byte(modRMByte(mod, reg, 4)); err != nil {
			return err
		}
		return e.byte(sibByte(0, RSP, RSP)) // scale=0, index=none, base=RSP
	}
	if rm == RBP && mod == 0 {
		// force disp8 of 0
		if err := e.byte(modRMByte(1, reg, rm)); err != nil {
			return err
		}
		return e.byte(0x00)
	}
	return e.byte(modRMByte(mod, reg, rm))
}

func modRMByte(mod uint8, reg, rm Reg) byte {
	return mod<<6 | (byte(reg)&7)<<3 | byte(rm)&7
}

// SIB encodes a scale/index/base byte. A base of RBP with mod=00 forces
// a disp32 in the caller (handled by the caller emitting that
// displacement), matching the hardware's addressing-mode quirks.
func sibByte(scale uint8, index, base Reg) byte {
	return scale<<6 | (byte(index)&7)<<3 | byte(base)&7
}

// Label names one jump target and records its address once defined.
// Its pending forward-jump sites live in the Emitter's pending map,
// keyed by label name, as a slice rather than the source's
// fixed-capacity array.
type Label struct {
	name     string
	resolved bool
	addr     int
}

// NewLabel creates an unresolved label.
func (e *Emitter) NewLabel(name string) *Label {
	return &Label{name: name, addr: -1}
}

// Jump8 emits a short (8-bit relative) jump/call opcode followed by a
// placeholder displacement byte, registering the site as pending if the
// label isn't defined yet (forward jump), or back-patching immediately
// if it is (backward jump).
func (e *Emitter) Jump8(opcode byte, lbl *Label) error {
	if err := e.byte(opcode); err != nil {
		return err
	}
	dispPos := e.pos
	if err := e.byte(0x00); err != nil {
		return err
	}
	if lbl.resolved {
		disp := lbl.addr - (dispPos + 1)
		if disp < -128 || disp > 127 {
			return fmt.Errorf("native: overflow: backward jump to %q out of 8-bit range (%d)", lbl.name, disp)
		}
		e.buf[dispPos] = byte(int8(disp))
		return nil
	}
	e.pending[lbl.name] = append(e.pending[lbl.name], pendingJump{dispPos: dispPos, afterPos: dispPos + 1})
	return nil
}

// Define assigns lbl its current program counter and back-patches every
// pending forward-jump site registered against it. Fails if any
// required displacement exceeds an 8-bit signed range.
func (e *Emitter) Define(lbl *Label) error {
	lbl.addr = e.pos
	lbl.resolved = true
	for _, pj := range e.pending[lbl.name] {
		disp := lbl.addr - pj.afterPos
		if disp < -128 || disp > 127 {
			return fmt.Errorf("native: overflow: jump to %q out of 8-bit range (%d)", lbl.name, disp)
		}
		e.buf[pj.dispPos] = byte(int8(disp))
	}
	delete(e.pending, lbl.name)
	return nil
}

// MovRegImm64 emits `mov reg, imm64` (opcode B8+rd with a REX.W
// prefix), the standard way to materialize a 64-bit host pointer or
// constant into a register.
func (e *Emitter) MovRegImm64(dst Reg, imm uint64) error {
	if err := e.byte(rex(true, false, false, dst >= 8)); err != nil {
		return err
	}
	if err := e.byte(0xB8 + byte(dst&7)); err != nil {
		return err
	}
	var b [8]byte
	for i := range b {
		b[i] = byte(imm >> (8 * i))
	}
	return e.bytes(b[:]...)
}

// MovRegReg emits `mov dst, src` (REX.W + opcode 0x89, MOV r/m64, r64),
// a plain 64-bit register-to-register copy with no arithmetic effect.
func (e *Emitter) MovRegReg(dst, src Reg) error {
	if err := e.byte(rex(true, src >= 8, false, dst >= 8)); err != nil {
		return err
	}
	if err := e.byte(0x89); err != nil {
		return err
	}
	return e.ModRM(3, src, dst)
}

// AddRegReg emits `add dst, src` (32-bit operand size, no REX.W).
func (e *Emitter) AddRegReg(dst, src Reg) error {
	if needsRex(dst, src) {
		if err := e.byte(rex(false, src >= 8, false, dst >= 8)); err != nil {
			return err
		}
	}
	if err := e.byte(0x01); err != nil {
		return err
	}
	return e.ModRM(3, src, dst)
}

// Ret emits a bare `ret`.
func (e *Emitter) Ret() error { return e.byte(0xC3) }

// Nop emits a single-byte `nop`.
func (e *Emitter) Nop() error { return e.byte(0x90) }

// CallReg emits `call reg` (FF /2).
func (e *Emitter) CallReg(r Reg) error {
	if r >= 8 {
		if err := e.byte(rex(false, false, false, true)); err != nil {
			return err
		}
	}
	if err := e.byte(0xFF); err != nil {
		return err
	}
	return e.ModRM(3, 2, r)
}
