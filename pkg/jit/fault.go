package jit

import "fmt"

// Kind distinguishes the four error categories the core raises.
// Nothing is recovered locally: a Fault is returned to the caller as an
// error with attached diagnostic context; this package neither panics
// nor aborts the process on one.
type Kind uint8

const (
	Integrity Kind = iota
	FailedAllocation
	Overflow
	Unimplemented
)

func (k Kind) String() string {
	switch k {
	case Integrity:
		return "integrity"
	case FailedAllocation:
		return "failed_allocation"
	case Overflow:
		return "overflow"
	case Unimplemented:
		return "unimplemented"
	default:
		return "unknown"
	}
}

// Fault is the JIT's one error type. Attrs carries free-form diagnostic
// fields (slot index, instruction index, attempted size, ...) for the
// caller; this package does not log them.
type Fault struct {
	Kind  Kind
	Msg   string
	Attrs map[string]any
}

func (f *Fault) Error() string {
	return fmt.Sprintf("jit: %s: %s", f.Kind, f.Msg)
}

// NewFault constructs a Fault with the given kind and message.
func NewFault(kind Kind, msg string, attrs map[string]any) *Fault {
	return &Fault{Kind: kind, Msg: msg, Attrs: attrs}
}
