package vgic

// GICv2 distributor register offsets
// (ARM IHI 0048B.b, table 4-1). Multi-register blocks are named by their
// first and last word; byte and half-word accesses inside a word are
// matched by the inclusive [reg, reg+3] window in the decoder.
const (
	gicdCtlr  = 0x000 // Distributor Control Register
	gicdTyper = 0x004 // Interrupt Controller Type Register
	gicdIidr  = 0x008 // Distributor Implementer Identification Register

	gicdIgroupr0 = 0x080 // Interrupt Group Register 0 (banked)
	gicdIgroupr1 = 0x084
	gicdIgrouprN = 0x0FC

	gicdIsenabler0 = 0x100 // Interrupt Set-Enable Register 0 (banked)
	gicdIsenabler1 = 0x104
	gicdIsenablerN = 0x17C

	gicdIcenabler0 = 0x180 // Interrupt Clear-Enable Register 0 (banked)
	gicdIcenabler1 = 0x184
	gicdIcenablerN = 0x1FC

	gicdIspendr0 = 0x200 // Interrupt Set-Pending Register 0 (banked)
	gicdIspendr1 = 0x204
	gicdIspendrN = 0x27C

	gicdIcpendr0 = 0x280 // Interrupt Clear-Pending Register 0 (banked)
	gicdIcpendr1 = 0x284
	gicdIcpendrN = 0x2FC

	gicdIsactiver0 = 0x300 // Interrupt Set-Active Register 0 (banked)
	gicdIsactiver1 = 0x304
	gicdIsactiverN = 0x37C

	gicdIcactiver0 = 0x380 // Interrupt Clear-Active Register 0 (banked)
	gicdIcactiver1 = 0x384
	gicdIcactiverN = 0x3FC

	gicdIpriorityr0 = 0x400 // Interrupt Priority Registers (first 8 banked)
	gicdIpriorityr7 = 0x41C
	gicdIpriorityr8 = 0x420
	gicdIpriorityrN = 0x7F8

	gicdItargetsr0 = 0x800 // Interrupt Processor Targets Registers (first 8 banked)
	gicdItargetsr7 = 0x81C
	gicdItargetsr8 = 0x820
	gicdItargetsrN = 0xBF8

	gicdIcfgr0 = 0xC00 // Interrupt Configuration Registers
	gicdIcfgrN = 0xCFC

	gicdSpiStatus0 = 0xD00 // implementation-defined SPI status block
	gicdSpiStatusN = 0xDE4

	gicdSgir = 0xF00 // Software Generated Interrupt Register (write-only)

	gicdCpendsgir0 = 0xF10 // SGI Clear-Pending Registers (banked)
	gicdCpendsgirN = 0xF1C
	gicdSpendsgir0 = 0xF20 // SGI Set-Pending Registers (banked)
	gicdSpendsgirN = 0xF2C

	gicdPeriphID0 = 0xFC0 // Peripheral and Component Identification block
	gicdPeriphIDN = 0xFFB
)

// GICD_SGIR field encoding.
const (
	sgirFilterShift = 24
	sgirFilterMask  = 0x3 << sgirFilterShift
	sgirTargetShift = 16
	sgirTargetMask  = 0xFF << sgirTargetShift
	sgirIntIDMask   = 0xF

	sgirFilterList   = 0 // forward to CPUTargetList
	sgirFilterOthers = 1 // forward to all but the requesting vCPU
	sgirFilterSelf   = 2 // forward to the requesting vCPU only
)

// GICD_CTLR encoding understood by this distributor. Any other written
// value is ignored.
const gicEnabled = 1

// Virtual interrupt number space. SGIs and PPIs are banked per vCPU,
// SPIs are global.
const (
	NumSGI  = 16
	NumPPI  = 16
	SPIBase = NumSGI + NumPPI
)

// Pipeline sizing. The queue length must stay a power of two; it is
// sized generously because overflow is treated as fatal.
const (
	maxVIRQs    = 200
	irqQueueLen = 64
)

// Distributor reset identification: GICv2 TYPER/IIDR as reported by the
// modelled hardware, plus the GIC-400 peripheral and component ID bytes
// backing the 16 words at 0xFC0..0xFFC.
const (
	distICType = 0x0000fce7
	distIIDR   = 0x0200043b
)

var distPeriphID = [16]uint32{
	4: 0x04, // PIDR4: 4KB region, JEP106 continuation
	8: 0x90, 9: 0xB4, 10: 0x2B, 11: 0x00, // PIDR0-3: GIC-400 r0p0, ArchRev 2
	12: 0x0D, 13: 0xF0, 14: 0x05, 15: 0xB1, // CIDR0-3
}

func irqIdx(irq uint32) int {
	return int(irq / 32)
}

func irqBit(irq uint32) uint32 {
	return 1 << (irq % 32)
}
