package vgic

import (
	"encoding/binary"
	"testing"
)

func TestRegion(t *testing.T) {
	g, _ := newTestVGIC(t, 1)
	region := g.Region()
	if region.Address != DefaultDistributorBase || region.Size != DefaultDistributorSize {
		t.Fatalf("region = %+v", region)
	}
}

func TestMMIOWordAccess(t *testing.T) {
	g, _ := newTestVGIC(t, 1)
	base := g.Config().DistributorBase

	var data [4]byte
	binary.LittleEndian.PutUint32(data[:], 0xA5A5A5A5)
	if err := g.WriteMMIO(0, base+gicdIgroupr1, data[:]); err != nil {
		t.Fatalf("WriteMMIO: %v", err)
	}

	var out [4]byte
	if err := g.ReadMMIO(0, base+gicdIgroupr1, out[:]); err != nil {
		t.Fatalf("ReadMMIO: %v", err)
	}
	if got := binary.LittleEndian.Uint32(out[:]); got != 0xA5A5A5A5 {
		t.Fatalf("read back %#x, want 0xA5A5A5A5", got)
	}
}

func TestMMIOByteAccess(t *testing.T) {
	g, _ := newTestVGIC(t, 1)
	base := g.Config().DistributorBase

	// A byte write inside IGROUPR1 merges into the word.
	if err := g.WriteMMIO(0, base+gicdIgroupr1+1, []byte{0xAB}); err != nil {
		t.Fatalf("WriteMMIO: %v", err)
	}
	if got := readWord(t, g, 0, gicdIgroupr1); got != 0x0000AB00 {
		t.Fatalf("IGROUPR1 = %#x, want 0x0000AB00", got)
	}

	var b [1]byte
	if err := g.ReadMMIO(0, base+gicdIgroupr1+1, b[:]); err != nil {
		t.Fatalf("ReadMMIO: %v", err)
	}
	if b[0] != 0xAB {
		t.Fatalf("byte read = %#x, want 0xAB", b[0])
	}
}

func TestMMIOReadIdentification(t *testing.T) {
	g, _ := newTestVGIC(t, 1)
	base := g.Config().DistributorBase

	var out [4]byte
	if err := g.ReadMMIO(0, base+gicdIidr, out[:]); err != nil {
		t.Fatalf("ReadMMIO: %v", err)
	}
	if got := binary.LittleEndian.Uint32(out[:]); got != distIIDR {
		t.Fatalf("IIDR over MMIO = %#x, want %#x", got, distIIDR)
	}
}
