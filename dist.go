package vgic

// distState is the logical distributor register file. One bitmap word is
// stored per enable/pending/active concern; the hardware's set/clr
// register pairs are read aliases of the same image, so ISENABLER and
// ICENABLER (and friends) always observe identical state.
//
// Word 0 of the global bitmaps (enableG, pendingG, activeG, groupG)
// aliases the banked SGI/PPI range and is never used; those arrays are
// indexed directly by irq/32. priority and targets start at IRQ 32
// (IPRIORITYR8/ITARGETSR8), and config starts at ICFGR0.
type distState struct {
	enable    bool
	icType    uint32
	distIdent uint32

	// Banked per-vCPU words for vIRQ 0..31.
	enable0   []uint32
	pending0  []uint32
	active0   []uint32
	group0    []uint32
	priority0 [][8]uint32
	targets0  [][8]uint32

	// Banked SGI pending images (CPENDSGIR/SPENDSGIR reads).
	sgiPendingClr [][4]uint32
	sgiPendingSet [][4]uint32

	// Global state for SPIs (vIRQ 32..1023).
	enableG  [32]uint32
	pendingG [32]uint32
	activeG  [32]uint32
	groupG   [32]uint32
	priority [247]uint32
	targets  [247]uint32
	config   [64]uint32

	spiStatus  [58]uint32
	sgiControl uint32
	periphID   [16]uint32
}

func newDistState(vcpus int) *distState {
	d := &distState{
		enable0:       make([]uint32, vcpus),
		pending0:      make([]uint32, vcpus),
		active0:       make([]uint32, vcpus),
		group0:        make([]uint32, vcpus),
		priority0:     make([][8]uint32, vcpus),
		targets0:      make([][8]uint32, vcpus),
		sgiPendingClr: make([][4]uint32, vcpus),
		sgiPendingSet: make([][4]uint32, vcpus),
	}
	d.reset()
	return d
}

// reset returns the distributor to its power-on state: everything zeroed
// except the identification registers and the SGI enable bits, which are
// read-as-one.
func (d *distState) reset() {
	d.enable = false
	d.icType = distICType
	d.distIdent = distIIDR
	d.periphID = distPeriphID

	for i := range d.enable0 {
		d.enable0[i] = (1 << NumSGI) - 1
		d.pending0[i] = 0
		d.active0[i] = 0
		d.group0[i] = 0
		d.priority0[i] = [8]uint32{}
		d.targets0[i] = [8]uint32{}
		d.sgiPendingClr[i] = [4]uint32{}
		d.sgiPendingSet[i] = [4]uint32{}
	}
	d.enableG = [32]uint32{}
	d.pendingG = [32]uint32{}
	d.activeG = [32]uint32{}
	d.groupG = [32]uint32{}
	d.priority = [247]uint32{}
	d.targets = [247]uint32{}
	d.config = [64]uint32{}
	d.spiStatus = [58]uint32{}
	d.sgiControl = 0
}

func (d *distState) enabled() bool { return d.enable }

func (d *distState) setPending(irq uint32, pending bool, vcpu int) {
	if irq < SPIBase {
		setBit(&d.pending0[vcpu], irq, pending)
		return
	}
	setBit(&d.pendingG[irqIdx(irq)], irq, pending)
}

func (d *distState) isPending(irq uint32, vcpu int) bool {
	if irq < SPIBase {
		return d.pending0[vcpu]&irqBit(irq) != 0
	}
	return d.pendingG[irqIdx(irq)]&irqBit(irq) != 0
}

// setEnable records the enable state for an interrupt. SGI enable bits
// are read-as-one; attempts to clear them are ignored.
func (d *distState) setEnable(irq uint32, enable bool, vcpu int) {
	if irq < NumSGI && !enable {
		return
	}
	if irq < SPIBase {
		setBit(&d.enable0[vcpu], irq, enable)
		return
	}
	setBit(&d.enableG[irqIdx(irq)], irq, enable)
}

func (d *distState) isEnabled(irq uint32, vcpu int) bool {
	if irq < SPIBase {
		return d.enable0[vcpu]&irqBit(irq) != 0
	}
	return d.enableG[irqIdx(irq)]&irqBit(irq) != 0
}

func (d *distState) setActive(irq uint32, active bool, vcpu int) {
	if irq < SPIBase {
		setBit(&d.active0[vcpu], irq, active)
		return
	}
	setBit(&d.activeG[irqIdx(irq)], irq, active)
}

func (d *distState) isActive(irq uint32, vcpu int) bool {
	if irq < SPIBase {
		return d.active0[vcpu]&irqBit(irq) != 0
	}
	return d.activeG[irqIdx(irq)]&irqBit(irq) != 0
}

func setBit(word *uint32, irq uint32, set bool) {
	if set {
		*word |= irqBit(irq)
	} else {
		*word &^= irqBit(irq)
	}
}
