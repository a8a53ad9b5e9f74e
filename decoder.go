package vgic

import (
	"log/slog"
	"math/bits"
)

// inRange matches offset against the inclusive [lo, hi+3] window so
// byte and half-word accesses anywhere inside a register block hit the
// block's case.
func inRange(off, lo, hi uint64) bool {
	return off >= lo && off <= hi+3
}

// HandleFault dispatches one trapped guest access to the distributor
// window on behalf of vcpuID. Read faults place the masked register
// value in f.Data; write faults consume f.Data under f.Mask. The fault
// is considered advanced on FaultHandled.
func (g *VGIC) HandleFault(vcpuID int, f *Fault) FaultResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkVCPU(vcpuID); err != nil {
		slog.Error("vgic: fault from unattached vcpu", "vcpu", vcpuID, "addr", f.Addr)
		return FaultError
	}
	if f.Addr < g.cfg.DistributorBase || f.Addr >= g.cfg.DistributorBase+g.cfg.DistributorSize {
		slog.Error("vgic: fault outside distributor window", "addr", f.Addr)
		return FaultError
	}

	offset := f.Addr - g.cfg.DistributorBase
	if f.Write {
		return g.handleWrite(g.vcpus[vcpuID], offset, f)
	}
	return g.handleRead(g.vcpus[vcpuID], offset, f)
}

func (g *VGIC) handleRead(vcpu *vcpuState, offset uint64, f *Fault) FaultResult {
	d := g.dist
	id := vcpu.vcpu.ID()
	var reg uint32

	switch {
	case inRange(offset, gicdCtlr, gicdCtlr):
		if d.enabled() {
			reg = gicEnabled
		}
	case inRange(offset, gicdTyper, gicdTyper):
		reg = d.icType
	case inRange(offset, gicdIidr, gicdIidr):
		reg = d.distIdent
	case inRange(offset, 0x00C, 0x01C):
		// Reserved
	case inRange(offset, 0x020, 0x03C):
		// Implementation defined
	case inRange(offset, 0x040, 0x07C):
		// Reserved
	case inRange(offset, gicdIgroupr0, gicdIgroupr0):
		reg = d.group0[id]
	case inRange(offset, gicdIgroupr1, gicdIgrouprN):
		reg = d.groupG[(offset-gicdIgroupr0)/4]
	case inRange(offset, gicdIsenabler0, gicdIsenabler0):
		reg = d.enable0[id]
	case inRange(offset, gicdIsenabler1, gicdIsenablerN):
		reg = d.enableG[(offset-gicdIsenabler0)/4]
	case inRange(offset, gicdIcenabler0, gicdIcenabler0):
		reg = d.enable0[id]
	case inRange(offset, gicdIcenabler1, gicdIcenablerN):
		reg = d.enableG[(offset-gicdIcenabler0)/4]
	case inRange(offset, gicdIspendr0, gicdIspendr0):
		reg = d.pending0[id]
	case inRange(offset, gicdIspendr1, gicdIspendrN):
		reg = d.pendingG[(offset-gicdIspendr0)/4]
	case inRange(offset, gicdIcpendr0, gicdIcpendr0):
		reg = d.pending0[id]
	case inRange(offset, gicdIcpendr1, gicdIcpendrN):
		reg = d.pendingG[(offset-gicdIcpendr0)/4]
	case inRange(offset, gicdIsactiver0, gicdIsactiver0):
		reg = d.active0[id]
	case inRange(offset, gicdIsactiver1, gicdIsactiverN):
		reg = d.activeG[(offset-gicdIsactiver0)/4]
	case inRange(offset, gicdIcactiver0, gicdIcactiver0):
		reg = d.active0[id]
	case inRange(offset, gicdIcactiver1, gicdIcactiverN):
		reg = d.activeG[(offset-gicdIcactiver0)/4]
	case inRange(offset, gicdIpriorityr0, gicdIpriorityr7):
		reg = d.priority0[id][(offset-gicdIpriorityr0)/4]
	case inRange(offset, gicdIpriorityr8, gicdIpriorityrN):
		reg = d.priority[(offset-gicdIpriorityr8)/4]
	case inRange(offset, 0x7FC, 0x7FC):
		// Reserved
	case inRange(offset, gicdItargetsr0, gicdItargetsr7):
		reg = d.targets0[id][(offset-gicdItargetsr0)/4]
	case inRange(offset, gicdItargetsr8, gicdItargetsrN):
		reg = d.targets[(offset-gicdItargetsr8)/4]
	case inRange(offset, 0xBFC, 0xBFC):
		// Reserved
	case inRange(offset, gicdIcfgr0, gicdIcfgrN):
		reg = d.config[(offset-gicdIcfgr0)/4]
	case inRange(offset, gicdSpiStatus0, gicdSpiStatusN):
		reg = d.spiStatus[(offset-gicdSpiStatus0)/4]
	case inRange(offset, 0xDE8, 0xEFC):
		// Reserved [0xDE8, 0xE00); NSACR [0xE00, 0xF00) not supported
	case inRange(offset, gicdSgir, gicdSgir):
		reg = d.sgiControl
	case inRange(offset, 0xF04, 0xF0C):
		// Implementation defined
	case inRange(offset, gicdCpendsgir0, gicdCpendsgirN):
		reg = d.sgiPendingClr[id][(offset-gicdCpendsgir0)/4]
	case inRange(offset, gicdSpendsgir0, gicdSpendsgirN):
		reg = d.sgiPendingSet[id][(offset-gicdSpendsgir0)/4]
	case inRange(offset, 0xF30, 0xFBC):
		// Reserved
	case inRange(offset, gicdPeriphID0, gicdPeriphIDN):
		reg = d.periphID[(offset-gicdPeriphID0)/4]
	default:
		slog.Error("vgic: read of unknown distributor register", "offset", offset)
		f.Data = 0
		return FaultHandled
	}

	f.Data = reg & f.Mask
	return FaultHandled
}

func (g *VGIC) handleWrite(vcpu *vcpuState, offset uint64, f *Fault) FaultResult {
	d := g.dist
	id := vcpu.vcpu.ID()

	switch {
	case inRange(offset, gicdCtlr, gicdCtlr):
		switch f.Data {
		case gicEnabled:
			slog.Debug("vgic: enabling distributor")
			d.enable = true
		case 0:
			slog.Debug("vgic: disabling distributor")
			d.enable = false
		default:
			slog.Error("vgic: unknown distributor control value", "value", f.Data)
		}
	case inRange(offset, gicdTyper, gicdTyper):
		// Read-only
	case inRange(offset, gicdIidr, gicdIidr):
		// Read-only
	case inRange(offset, 0x00C, 0x01C):
		// Reserved
	case inRange(offset, 0x020, 0x03C):
		// Implementation defined
	case inRange(offset, 0x040, 0x07C):
		// Reserved
	case inRange(offset, gicdIgroupr0, gicdIgroupr0):
		d.group0[id] = f.Emulate(d.group0[id])
	case inRange(offset, gicdIgroupr1, gicdIgrouprN):
		idx := (offset - gicdIgroupr0) / 4
		d.groupG[idx] = f.Emulate(d.groupG[idx])
	case inRange(offset, gicdIsenabler0, gicdIsenablerN):
		for data := f.Data & f.Mask; data != 0; {
			bit := uint32(bits.TrailingZeros32(data))
			data &^= 1 << bit
			g.enableIRQ(vcpu, regIRQ(offset, gicdIsenabler0, bit))
		}
	case inRange(offset, gicdIcenabler0, gicdIcenablerN):
		for data := f.Data & f.Mask; data != 0; {
			bit := uint32(bits.TrailingZeros32(data))
			data &^= 1 << bit
			g.disableIRQ(vcpu, regIRQ(offset, gicdIcenabler0, bit))
		}
	case inRange(offset, gicdIspendr0, gicdIspendrN):
		for data := f.Data & f.Mask; data != 0; {
			bit := uint32(bits.TrailingZeros32(data))
			data &^= 1 << bit
			irq := regIRQ(offset, gicdIspendr0, bit)
			if err := g.inject(vcpu, irq); err != nil {
				if !injectRejected(err) {
					return FaultError
				}
				slog.Debug("vgic: pending set rejected", "vcpu", id, "irq", irq, "err", err)
			}
		}
	case inRange(offset, gicdIcpendr0, gicdIcpendrN):
		for data := f.Data & f.Mask; data != 0; {
			bit := uint32(bits.TrailingZeros32(data))
			data &^= 1 << bit
			g.clearPending(vcpu, regIRQ(offset, gicdIcpendr0, bit))
		}
	case inRange(offset, gicdIsactiver0, gicdIsactiver0):
		d.active0[id] = f.Emulate(d.active0[id])
	case inRange(offset, gicdIsactiver1, gicdIsactiverN):
		idx := (offset - gicdIsactiver0) / 4
		d.activeG[idx] = f.Emulate(d.activeG[idx])
	case inRange(offset, gicdIcactiver0, gicdIcactiver0):
		d.active0[id] = f.Emulate(d.active0[id])
	case inRange(offset, gicdIcactiver1, gicdIcactiverN):
		idx := (offset - gicdIcactiver0) / 4
		d.activeG[idx] = f.Emulate(d.activeG[idx])
	case inRange(offset, gicdIpriorityr0, gicdIpriorityrN):
		// Stored priorities are not guest-writable here
	case inRange(offset, 0x7FC, 0x7FC):
		// Reserved
	case inRange(offset, gicdItargetsr0, gicdItargetsrN):
		// Stored targets are not guest-writable here
	case inRange(offset, 0xBFC, 0xBFC):
		// Reserved
	case inRange(offset, gicdIcfgr0, gicdIcfgrN):
		// Not supported
	case inRange(offset, gicdSpiStatus0, gicdSpiStatusN):
		// Read-only
	case inRange(offset, 0xDE8, 0xEFC):
		// Reserved [0xDE8, 0xE00); NSACR [0xE00, 0xF00) not supported
	case inRange(offset, gicdSgir, gicdSgir):
		return g.generateSGI(vcpu, f.Data)
	case inRange(offset, 0xF04, 0xF0C):
		// Implementation defined
	case inRange(offset, gicdCpendsgir0, gicdSpendsgirN):
		slog.Error("vgic: SGI pending register writes not implemented", "offset", offset)
	case inRange(offset, 0xF30, 0xFBC):
		// Reserved
	case inRange(offset, gicdPeriphID0, gicdPeriphIDN):
		// Read-only
	default:
		slog.Error("vgic: write to unknown distributor register",
			"offset", offset, "value", f.Data)
	}

	return FaultHandled
}

// regIRQ converts a bit position in the word register at offset into an
// interrupt number, relative to the block starting at base.
func regIRQ(offset, base uint64, bit uint32) uint32 {
	return uint32((offset&^3)-base)*8 + bit
}

// generateSGI decodes a GICD_SGIR write and fans the interrupt out to
// the targeted vCPUs. Offline and unattached targets are skipped.
func (g *VGIC) generateSGI(vcpu *vcpuState, data uint32) FaultResult {
	virq := data & sgirIntIDMask

	var targets uint32
	switch (data & sgirFilterMask) >> sgirFilterShift {
	case sgirFilterList:
		targets = (data & sgirTargetMask) >> sgirTargetShift
	case sgirFilterOthers:
		targets = (1 << len(g.vcpus)) - 1
		targets &^= 1 << vcpu.vcpu.ID()
	case sgirFilterSelf:
		targets = 1 << vcpu.vcpu.ID()
	default:
		slog.Error("vgic: unknown SGIR target list filter",
			"value", data, "vcpu", vcpu.vcpu.ID())
		return FaultHandled
	}

	for i, target := range g.vcpus {
		if targets&(1<<i) == 0 || target == nil || !target.vcpu.Online() {
			continue
		}
		if err := g.inject(target, virq); err != nil {
			if !injectRejected(err) {
				return FaultError
			}
			slog.Debug("vgic: sgi not delivered", "target", i, "virq", virq, "err", err)
		}
	}
	return FaultHandled
}
