package vgic

import (
	"fmt"

	"github.com/tinyrange/vgic/internal/fdt"
)

// GICPhandle is the phandle GICNode assigns to the interrupt controller
// so peripheral nodes can reference it as their interrupt-parent.
const GICPhandle = 1

// GICNode returns the device-tree node describing this distributor and
// its CPU interface to the guest, per the arm,gic-400 binding.
func (g *VGIC) GICNode() fdt.Node {
	cfg := g.cfg

	node := fdt.Node{Name: fmt.Sprintf("intc@%x", cfg.DistributorBase)}
	node.AddString("compatible", "arm,gic-400", "arm,cortex-a15-gic")
	node.AddU32("#interrupt-cells", 3)
	node.AddFlag("interrupt-controller")
	node.AddU32("reg",
		uint32(cfg.DistributorBase>>32), uint32(cfg.DistributorBase),
		uint32(cfg.DistributorSize>>32), uint32(cfg.DistributorSize),
		uint32(cfg.CPUInterfaceBase>>32), uint32(cfg.CPUInterfaceBase),
		uint32(cfg.CPUInterfaceSize>>32), uint32(cfg.CPUInterfaceSize),
	)
	node.AddU32("phandle", GICPhandle)
	return node
}
