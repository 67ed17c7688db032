package native

import "unsafe"

// uintptrFromPointer is the one place this package crosses the unsafe
// boundary to turn a Go pointer into an absolute address that can be
// materialized as an immediate in generated code.
func uintptrFromPointer(p *uint64) uintptr {
	return uintptr(unsafe.Pointer(p))
}
