package memmap

import "testing"

// TestScenarioS5Region checks that a 0x8C010000 access against a RAM
// region with mask 0x00FFFFFF indexes exactly where the inlined native
// code would: and 0x00FFFFFF against the address.
func TestScenarioS5Region(t *testing.T) {
	ram := make([]byte, 0x01000000)
	ram[0x010000] = 0x99
	m := &Map{Regions: []Region{
		{ID: RegionRAM, FirstAddr: 0x8C000000, LastAddr: 0x8CFFFFFF, Mask: 0x00FFFFFF, Base: ram},
	}}
	v, err := m.Read8(0x8C010000)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0x99 {
		t.Fatalf("expected 0x99, got %#x", v)
	}
}

func TestUnmappedWithoutAccessor(t *testing.T) {
	m := &Map{}
	if _, err := m.Read32(0x1000); err == nil {
		t.Fatal("expected an error reading an unmapped address with no unmapped accessor")
	}
}
