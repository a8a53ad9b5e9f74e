package vgic

import (
	"bytes"
	"testing"

	"github.com/tinyrange/vgic/internal/fdt"
)

func TestGICNode(t *testing.T) {
	g, _ := newTestVGIC(t, 2)

	node := g.GICNode()
	if node.Name != "intc@8000000" {
		t.Fatalf("node name = %q", node.Name)
	}

	blob := fdt.Build(node)
	if !bytes.Contains(blob, []byte("arm,gic-400")) {
		t.Fatalf("compatible string missing")
	}
	if !bytes.Contains(blob, []byte("interrupt-controller\x00")) {
		t.Fatalf("interrupt-controller flag missing")
	}

	// reg holds <dist base, dist size, cpuif base, cpuif size> as 64-bit
	// address/size pairs.
	wantReg := []byte{
		0, 0, 0, 0, 0x08, 0, 0, 0, // distributor base
		0, 0, 0, 0, 0, 0, 0x10, 0, // distributor size
	}
	if !bytes.Contains(blob, wantReg) {
		t.Fatalf("distributor reg cells missing")
	}
}
