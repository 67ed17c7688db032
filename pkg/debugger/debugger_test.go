package debugger

import "testing"

func TestWatchpointOverlapIsSymmetric(t *testing.T) {
	d := New()
	d.WriteWatchpoints[0] = Point{Addr: 0x1000, Length: 4, Enabled: true}

	if !d.IsWriteWatch(0x1002, 4) {
		t.Fatal("expected an overlapping write to be caught")
	}
	if d.IsWriteWatch(0x2000, 4) {
		t.Fatal("did not expect a disjoint write to be caught")
	}
	if !d.AtWatchpoint() {
		t.Fatal("expected the earlier hit to be latched")
	}
	if d.AtWatchpoint() {
		t.Fatal("expected AtWatchpoint to clear after being read once")
	}
}

func TestShouldBreakOnBreakpoint(t *testing.T) {
	d := New()
	d.Breakpoints[0] = Point{Addr: 0x8C010000, Enabled: true}
	if !d.ShouldBreak(0x8C010000) {
		t.Fatal("expected a hit on a matching enabled breakpoint")
	}
	if d.ShouldBreak(0x8C010004) {
		t.Fatal("did not expect a hit on a non-matching address")
	}
}

type recordingHooks struct {
	breaks int
}

func (r *recordingHooks) OnBreak(uint32)                  { r.breaks++ }
func (r *recordingHooks) OnReadWatchpoint(uint32, uint32)  {}
func (r *recordingHooks) OnWriteWatchpoint(uint32, uint32) {}
func (r *recordingHooks) OnSoftBreak()                     {}

func TestBreakInvokesHooks(t *testing.T) {
	d := New()
	h := &recordingHooks{}
	d.Hooks = h
	d.Breakpoints[0] = Point{Addr: 0x100, Enabled: true}
	d.ShouldBreak(0x100)
	if h.breaks != 1 {
		t.Fatalf("expected OnBreak to fire once, got %d", h.breaks)
	}
}
