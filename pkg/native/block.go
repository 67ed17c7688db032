package native

// Clock is the RIP-addressable cycle clock triple: stamp (cycles
// executed so far), countdown (cycles since the last scheduler check),
// and target (cycles until the next scheduler event). The backend
// expects these to live inside the exec-memory pool, not the ordinary
// Go heap, so generated code can reach them by RIP-relative moves.
type Clock struct {
	Stamp     *uint64
	Countdown *uint64
	Target    *uint64
}

// CompiledBlock is the native backend's output: a pointer into
// executable memory, the block's static cycle count, the number of
// bytes actually used, and whether any register spill or call dirtied
// the stack.
type CompiledBlock struct {
	Code       []byte
	Entry      int // offset into Code of the callable entry point
	CycleCount uint64
	Dirty      bool
}

// emitPrologue emits the standard block header: save every non-volatile
// register (and, under the Microsoft ABI, non-volatile XMM registers),
// and reserve 8 bytes so that after the call instruction's 8-byte
// return-address push, the stack stays 16-byte aligned at every call
// site inside the block. A pure block (no calls, no spills) skips this
// entirely and exposes its post-prologue point as the native entry.
func emitPrologue(e *Emitter, abi ABI, dirty bool) (entry int, err error) {
	if !dirty {
		return e.Len(), nil
	}
	for _, r := range abi.CalleeSaved() {
		if err := pushReg(e, r); err != nil {
			return 0, err
		}
	}
	// sub rsp, 8 to keep 16-byte alignment across subsequent calls.
	if err := e.bytes(0x48, 0x83, 0xEC, 0x08); err != nil {
		return 0, err
	}
	return e.Len(), nil
}

func pushReg(e *Emitter, r Reg) error {
	if r >= 8 {
		if err := e.byte(rex(false, false, false, true)); err != nil {
			return err
		}
	}
	return e.byte(0x50 + byte(r&7))
}

func popReg(e *Emitter, r Reg) error {
	if r >= 8 {
		if err := e.byte(rex(false, false, false, true)); err != nil {
			return err
		}
	}
	return e.byte(0x58 + byte(r&7))
}

// emitCycleCheckTail emits the fixed cycle-check tail that
// ends every compiled block: read countdown, subtract the block's
// static cycle count, fall through to the dispatch tail on a > 0, or
// jump to the shared return function on a <= 0. The return function
// writes countdown <- target - stamp, stamp <- target, restores
// non-volatile registers, and returns the new guest PC to the caller
// (P9).
func emitCycleCheckTail(e *Emitter, abi ABI, dirty bool, cycles uint64, clock Clock, returnFn *Label) error {
	// sub [countdown], cycles ; jg dispatch_tail ; jmp returnFn
	if err := e.MovRegImm64(RAX, uint64(uintptrOf(clock.Countdown))); err != nil {
		return err
	}
	// mov rcx, [rax] ; sub rcx, cycles ; mov [rax], rcx
	if err := e.bytes(0x48, 0x8B, 0x08); err != nil { // mov rcx, [rax]
		return err
	}
	if err := emitSubRegImm(e, RCX, cycles); err != nil {
		return err
	}
	if err := e.bytes(0x48, 0x89, 0x08); err != nil { // mov [rax], rcx
		return err
	}
	// test rcx, rcx ; jg +2 ; jmp returnFn
	if err := e.bytes(0x48, 0x85, 0xC9); err != nil {
		return err
	}
	skip := e.NewLabel("skip_return")
	if err := e.Jump8(0x7F, skip); err != nil { // jg rel8
		return err
	}
	if err := e.Jump8(0xEB, returnFn); err != nil { // jmp rel8
		return err
	}
	if err := e.Define(skip); err != nil {
		return err
	}
	if dirty {
		for i := len(abi.CalleeSaved()) - 1; i >= 0; i-- {
			if err := popReg(e, abi.CalleeSaved()[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func emitSubRegImm(e *Emitter, r Reg, imm uint64) error {
	if imm <= 0x7fffffff {
		if err := e.bytes(0x48, 0x81, 0xE9); err != nil { // sub rcx, imm32 (ECX-fixed form)
			return err
		}
		var b [4]byte
		for i := range b {
			b[i] = byte(imm >> (8 * i))
		}
		return e.bytes(b[:]...)
	}
	return e.MovRegImm64(r, imm) // oversized immediate: caller pre-stages it instead
}

func uintptrOf(p *uint64) uintptr {
	return uintptrFromPointer(p)
}
