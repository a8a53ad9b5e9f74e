package vgic

import (
	"encoding/binary"
	"fmt"
)

// MMIORegion describes one guest-physical window, in the shape VMM
// address-space code expects.
type MMIORegion struct {
	Address uint64
	Size    uint64
}

// Region returns the distributor's MMIO window for registration with
// the VMM's address space.
func (g *VGIC) Region() MMIORegion {
	return MMIORegion{Address: g.cfg.DistributorBase, Size: g.cfg.DistributorSize}
}

// ReadMMIO services a guest read of len(data) bytes at addr on behalf of
// vcpuID. Accesses are clamped to the 32-bit register containing addr.
func (g *VGIC) ReadMMIO(vcpuID int, addr uint64, data []byte) error {
	size := clampAccess(addr, len(data))
	f := Fault{Addr: addr, Mask: AccessMask(addr, size)}
	if res := g.HandleFault(vcpuID, &f); res != FaultHandled {
		return fmt.Errorf("vgic: read of %#x failed", addr)
	}
	lane := f.Data >> (8 * (addr & 3))
	putLE(data[:size], lane)
	return nil
}

// WriteMMIO services a guest write of len(data) bytes at addr on behalf
// of vcpuID. Accesses are clamped to the 32-bit register containing addr.
func (g *VGIC) WriteMMIO(vcpuID int, addr uint64, data []byte) error {
	size := clampAccess(addr, len(data))
	f := Fault{
		Addr:  addr,
		Write: true,
		Data:  getLE(data[:size]) << (8 * (addr & 3)),
		Mask:  AccessMask(addr, size),
	}
	if res := g.HandleFault(vcpuID, &f); res != FaultHandled {
		return fmt.Errorf("vgic: write of %#x failed", addr)
	}
	return nil
}

// clampAccess limits an access so it does not cross the register's
// 32-bit boundary.
func clampAccess(addr uint64, size int) int {
	if max := 4 - int(addr&3); size > max {
		return max
	}
	return size
}

func getLE(data []byte) uint32 {
	var tmp [4]byte
	copy(tmp[:], data)
	return binary.LittleEndian.Uint32(tmp[:])
}

func putLE(data []byte, value uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], value)
	copy(data, tmp[:])
}
