// Package debugger implements the watchpoint and soft-break surface
// polled from the interpreter fallback path: fixed-size breakpoint and
// watchpoint tables plus a small step state machine.
package debugger

// MaxWatchpoints bounds each of the three fixed arrays (breakpoints,
// read-watchpoints, write-watchpoints).
const MaxWatchpoints = 16

// State is the debugger's step state machine.
type State uint8

const (
	Normal State = iota
	PreStep
	PostStep
	Break
)

// Point is one {address, length, enabled} entry shared by all three
// watchpoint/breakpoint arrays.
type Point struct {
	Addr    uint32
	Length  uint32
	Enabled bool
}

// Hooks is the embedder-visible soft-break surface, modeled as an
// interface rather than C function pointers with an opaque arg.
type Hooks interface {
	OnBreak(pc uint32)
	OnReadWatchpoint(addr uint32, length uint32)
	OnWriteWatchpoint(addr uint32, length uint32)
	OnSoftBreak()
}

// NoOpHooks is the default Hooks implementation so the JIT runs
// headless in tests and in embedders that don't attach a debugger.
type NoOpHooks struct{}

func (NoOpHooks) OnBreak(uint32)                {}
func (NoOpHooks) OnReadWatchpoint(uint32, uint32)  {}
func (NoOpHooks) OnWriteWatchpoint(uint32, uint32) {}
func (NoOpHooks) OnSoftBreak()                     {}

// Debugger holds the fixed-size tables and step state machine.
type Debugger struct {
	Breakpoints      [MaxWatchpoints]Point
	ReadWatchpoints  [MaxWatchpoints]Point
	WriteWatchpoints [MaxWatchpoints]Point

	state        State
	atWatchpoint bool

	Hooks Hooks
}

// New returns a Debugger with no-op hooks; callers may replace Hooks.
func New() *Debugger {
	return &Debugger{Hooks: NoOpHooks{}}
}

// ShouldBreak transitions the step state machine and consults the
// breakpoint array for pc.
func (d *Debugger) ShouldBreak(pc uint32) bool {
	switch d.state {
	case PreStep:
		d.state = PostStep
		return true
	case PostStep:
		d.state = Normal
	}
	for _, bp := range d.Breakpoints {
		if bp.Enabled && bp.Addr == pc {
			d.state = Break
			d.Hooks.OnBreak(pc)
			return true
		}
	}
	return false
}

// overlaps is the symmetric-range-intersection test shared by read and
// write watchpoint checks.
func overlaps(p Point, addr, length uint32) bool {
	if !p.Enabled {
		return false
	}
	aEnd := addr + length
	pEnd := p.Addr + p.Length
	return addr < pEnd && p.Addr < aEnd
}

// IsReadWatch checks whether an access range overlaps any enabled
// read-watchpoint, latching the hit into at_watchpoint for the next
// break check.
func (d *Debugger) IsReadWatch(addr, length uint32) bool {
	for _, wp := range d.ReadWatchpoints {
		if overlaps(wp, addr, length) {
			d.atWatchpoint = true
			d.Hooks.OnReadWatchpoint(addr, length)
			return true
		}
	}
	return false
}

// IsWriteWatch is the write-side equivalent of IsReadWatch.
func (d *Debugger) IsWriteWatch(addr, length uint32) bool {
	for _, wp := range d.WriteWatchpoints {
		if overlaps(wp, addr, length) {
			d.atWatchpoint = true
			d.Hooks.OnWriteWatchpoint(addr, length)
			return true
		}
	}
	return false
}

// AtWatchpoint reports and clears the latched watchpoint hit.
func (d *Debugger) AtWatchpoint() bool {
	hit := d.atWatchpoint
	d.atWatchpoint = false
	return hit
}
