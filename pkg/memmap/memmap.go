// Package memmap defines the guest memory map contract consumed by
// both backends: a flat array of regions, each either a RAM region
// eligible for inlined native access or an opaque accessor reached
// through a vtable. The decoder, the region implementations themselves,
// and the scheduler are external collaborators; this package only
// describes the shape they must conform to.
package memmap

import "fmt"

// RegionID distinguishes RAM (eligible for inlined access) from every
// other kind of region, which is always reached through its Accessor.
type RegionID uint8

const (
	RegionOther RegionID = iota
	RegionRAM
)

// Accessor is the per-region interface consumed for every width. Read
// and Write are the ordinary, possibly-faulting variants; the Try*
// variants must never fault or panic — they're used by the debugger's
// watchpoint surface to peek at memory without disturbing guest state.
type Accessor interface {
	Read8(addr uint32) (uint8, error)
	Read16(addr uint32) (uint16, error)
	Read32(addr uint32) (uint32, error)
	Write8(addr uint32, v uint8) error
	Write16(addr uint32, v uint16) error
	Write32(addr uint32, v uint32) error

	TryRead8(addr uint32) (uint8, bool)
	TryRead16(addr uint32) (uint16, bool)
	TryRead32(addr uint32) (uint32, bool)
}

// Region describes one entry of the memory map: an inclusive address
// range tested against the raw address, the mask applied only when
// indexing into RAM (mirrors the guest's aliased RAM mapping), and the
// accessor backing non-RAM regions.
type Region struct {
	ID        RegionID
	FirstAddr uint32
	LastAddr  uint32
	Mask      uint32 // applied to addr before indexing into RAM
	Base      []byte // backing store for RegionRAM; nil otherwise
	Accessor  Accessor
}

func (r *Region) contains(addr uint32) bool {
	return addr >= r.FirstAddr && addr <= r.LastAddr
}

// Map is the ordered list of regions an address is tested against, in
// order, exactly as the inlined-access decision tree does.
type Map struct {
	Regions    []Region
	Unmapped   Accessor // consulted when no region matches, if registered
}

func (m *Map) find(addr uint32) *Region {
	for i := range m.Regions {
		if m.Regions[i].contains(addr) {
			return &m.Regions[i]
		}
	}
	return nil
}

var errUnmapped = fmt.Errorf("memmap: address not mapped and no unmapped accessor registered")

func (m *Map) Read32(addr uint32) (uint32, error) {
	r := m.find(addr)
	if r == nil {
		if m.Unmapped != nil {
			return m.Unmapped.Read32(addr)
		}
		return 0, errUnmapped
	}
	if r.ID == RegionRAM {
		idx := addr & r.Mask
		return uint32(r.Base[idx]) | uint32(r.Base[idx+1])<<8 | uint32(r.Base[idx+2])<<16 | uint32(r.Base[idx+3])<<24, nil
	}
	return r.Accessor.Read32(addr)
}

func (m *Map) Write32(addr uint32, v uint32) error {
	r := m.find(addr)
	if r == nil {
		if m.Unmapped != nil {
			return m.Unmapped.Write32(addr, v)
		}
		return errUnmapped
	}
	if r.ID == RegionRAM {
		idx := addr & r.Mask
		r.Base[idx] = byte(v)
		r.Base[idx+1] = byte(v >> 8)
		r.Base[idx+2] = byte(v >> 16)
		r.Base[idx+3] = byte(v >> 24)
		return nil
	}
	return r.Accessor.Write32(addr, v)
}

func (m *Map) Read16(addr uint32) (uint16, error) {
	r := m.find(addr)
	if r == nil {
		if m.Unmapped != nil {
			return m.Unmapped.Read16(addr)
		}
		return 0, errUnmapped
	}
	if r.ID == RegionRAM {
		idx := addr & r.Mask
		return uint16(r.Base[idx]) | uint16(r.Base[idx+1])<<8, nil
	}
	return r.Accessor.Read16(addr)
}

func (m *Map) Write16(addr uint32, v uint16) error {
	r := m.find(addr)
	if r == nil {
		if m.Unmapped != nil {
			return m.Unmapped.Write16(addr, v)
		}
		return errUnmapped
	}
	if r.ID == RegionRAM {
		idx := addr & r.Mask
		r.Base[idx] = byte(v)
		r.Base[idx+1] = byte(v >> 8)
		return nil
	}
	return r.Accessor.Write16(addr, v)
}

func (m *Map) Read8(addr uint32) (uint8, error) {
	r := m.find(addr)
	if r == nil {
		if m.Unmapped != nil {
			return m.Unmapped.Read8(addr)
		}
		return 0, errUnmapped
	}
	if r.ID == RegionRAM {
		return r.Base[addr&r.Mask], nil
	}
	return r.Accessor.Read8(addr)
}

func (m *Map) Write8(addr uint32, v uint8) error {
	r := m.find(addr)
	if r == nil {
		if m.Unmapped != nil {
			return m.Unmapped.Write8(addr, v)
		}
		return errUnmapped
	}
	if r.ID == RegionRAM {
		r.Base[addr&r.Mask] = v
		return nil
	}
	return r.Accessor.Write8(addr, v)
}

// ReadWidth and WriteWidth dispatch on a runtime width value (8/16/32),
// as used by IL memory ops whose Width immediate is only known at
// lowering/interpretation time.
func (m *Map) ReadWidth(addr uint32, width uint8) (uint64, error) {
	switch width {
	case 8:
		v, err := m.Read8(addr)
		return uint64(v), err
	case 16:
		v, err := m.Read16(addr)
		return uint64(v), err
	default:
		v, err := m.Read32(addr)
		return uint64(v), err
	}
}

func (m *Map) WriteWidth(addr uint32, width uint8, v uint64) error {
	switch width {
	case 8:
		return m.Write8(addr, uint8(v))
	case 16:
		return m.Write16(addr, uint16(v))
	default:
		return m.Write32(addr, uint32(v))
	}
}
