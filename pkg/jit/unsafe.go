package jit

import "unsafe"

// ptrAt returns a pointer to the byte at offset off within buf. Used
// only to carve the cycle-clock triple out of an exec-memory
// allocation so generated code can address it by RIP-relative offset.
func ptrAt(buf []byte, off int) unsafe.Pointer {
	return unsafe.Pointer(&buf[off])
}
