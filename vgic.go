// Package vgic emulates an ARM GICv2 distributor for hypervisors hosting
// guests on virtualization-extension hardware.
//
// The distributor presents the memory-mapped register file of a hardware
// GICv2 distributor (ARM IHI 0048B.b) to the guest. Trapped accesses are
// fed in as Faults (or through the ReadMMIO/WriteMMIO adapter), the
// logical register state is maintained here, and virtual interrupts are
// injected into guest vCPUs through the hypervisor's list registers,
// with a per-vCPU FIFO absorbing overflow until maintenance notifications
// free a slot.
//
// The hypervisor side is deliberately an interface: the VMM supplies
// VCPU handles that know how to load a list register and report online
// state, and forwards list-register maintenance to Maintenance.
package vgic

import (
	"fmt"
	"sync"
)

// VCPU is the hypervisor-side handle for one guest vCPU.
type VCPU interface {
	// ID returns the vCPU index, dense from zero.
	ID() int

	// Online reports whether the vCPU has been started. SGIs targeting
	// offline vCPUs are dropped.
	Online() bool

	// LoadListRegister asks the hypervisor to load virq into list
	// register index for this vCPU.
	LoadListRegister(index int, virq uint32) error
}

// AckFunc acknowledges the source of a virtual interrupt, typically by
// re-arming the underlying physical IRQ at the host. It is invoked with
// the vGIC lock held and must not call back into the VGIC synchronously.
type AckFunc func(vcpu VCPU, virq uint32, token any)

// virqHandle is one registered virtual interrupt. Handles are immutable
// after registration; the list-register shadow and the overflow queue
// hold non-owning references into the registry.
type virqHandle struct {
	virq  uint32
	ack   AckFunc
	token any
}

func (h *virqHandle) doAck(vcpu VCPU) {
	if h.ack != nil {
		h.ack(vcpu, h.virq, h.token)
	}
}

// vcpuState is the per-vCPU injection state, created when the vCPU
// attaches.
type vcpuState struct {
	vcpu     VCPU
	lrShadow []*virqHandle
	queue    irqQueue
}

// VGIC is one virtual distributor instance.
//
// All entry points are serialized by a single mutex covering the
// register file, the registry and every per-vCPU pipeline, so the vGIC
// may be driven from any trap context. Callbacks (AckFunc,
// VCPU.LoadListRegister) run under that lock.
type VGIC struct {
	cfg Config

	mu    sync.Mutex
	dist  *distState
	vcpus []*vcpuState

	// Registered virtual IRQs: fixed per-vCPU slots for SGI/PPI, a
	// bounded linear table for SPIs.
	sgiPPI [][]*virqHandle
	spis   [maxVIRQs]*virqHandle
}

// New creates a distributor for cfg.VCPUs vCPUs in the power-on state.
func New(cfg Config) (*VGIC, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("vgic: %w", err)
	}

	g := &VGIC{
		cfg:    cfg,
		dist:   newDistState(cfg.VCPUs),
		vcpus:  make([]*vcpuState, cfg.VCPUs),
		sgiPPI: make([][]*virqHandle, cfg.VCPUs),
	}
	for i := range g.sgiPPI {
		g.sgiPPI[i] = make([]*virqHandle, SPIBase)
	}
	return g, nil
}

// Config returns the configuration the distributor was created with,
// with defaults applied.
func (g *VGIC) Config() Config { return g.cfg }

// AttachVCPU registers a vCPU with the distributor and allocates its
// list-register shadow and overflow queue. vCPUs must attach before
// interrupts can be registered for or injected into them.
func (g *VGIC) AttachVCPU(v VCPU) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := v.ID()
	if id < 0 || id >= len(g.vcpus) {
		return fmt.Errorf("vgic: attaching vcpu %d: %w", id, ErrBadVCPU)
	}
	if g.vcpus[id] != nil {
		return fmt.Errorf("vgic: vcpu %d already attached", id)
	}
	g.vcpus[id] = &vcpuState{
		vcpu:     v,
		lrShadow: make([]*virqHandle, g.cfg.ListRegisters),
	}
	return nil
}

// RegisterIRQ registers a virtual interrupt with its acknowledge
// callback. SGIs and PPIs are registered per vCPU; registering an SPI
// ignores vcpuID. Duplicate SPI registrations are not rejected — callers
// must not double-register.
func (g *VGIC) RegisterIRQ(vcpuID int, virq uint32, ack AckFunc, token any) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if virq >= 1020 {
		// 1020..1023 are reserved interrupt IDs.
		return fmt.Errorf("vgic: registering virq %d: %w", virq, ErrBadVIRQ)
	}
	h := &virqHandle{virq: virq, ack: ack, token: token}
	if virq < SPIBase {
		if err := g.checkVCPU(vcpuID); err != nil {
			return fmt.Errorf("vgic: registering virq %d: %w", virq, err)
		}
		if g.sgiPPI[vcpuID][virq] != nil {
			return fmt.Errorf("vgic: virq %d on vcpu %d: %w", virq, vcpuID, ErrAlreadyRegistered)
		}
		g.sgiPPI[vcpuID][virq] = h
		return nil
	}
	for i := range g.spis {
		if g.spis[i] == nil {
			g.spis[i] = h
			return nil
		}
	}
	return fmt.Errorf("vgic: registering virq %d: %w", virq, ErrRegistryFull)
}

// InjectIRQ marks a virtual interrupt pending for a vCPU and delivers it
// through a list register, or queues it when all list registers are
// occupied. It is the entry point for external IRQ sources and for SGI
// fanout. Preconditions (not registered, distributor disabled, interrupt
// masked) surface as sentinel errors without mutating state.
func (g *VGIC) InjectIRQ(vcpuID int, virq uint32) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkVCPU(vcpuID); err != nil {
		return fmt.Errorf("vgic: injecting virq %d: %w", virq, err)
	}
	return g.inject(g.vcpus[vcpuID], virq)
}

// Maintenance notifies the distributor that the hypervisor freed list
// register lrIndex on a vCPU. The next queued interrupt, if any, is
// loaded into the freed slot in FIFO order.
func (g *VGIC) Maintenance(vcpuID, lrIndex int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkVCPU(vcpuID); err != nil {
		return fmt.Errorf("vgic: maintenance: %w", err)
	}
	vcpu := g.vcpus[vcpuID]
	if lrIndex < 0 || lrIndex >= len(vcpu.lrShadow) {
		return fmt.Errorf("vgic: maintenance: list register %d out of range", lrIndex)
	}

	vcpu.lrShadow[lrIndex] = nil
	next := vcpu.queue.dequeue()
	if next == nil {
		return nil
	}
	return g.loadListRegister(vcpu, lrIndex, next)
}

// Reset returns the distributor registers to their power-on values. The
// registry and per-vCPU pipelines are untouched.
func (g *VGIC) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dist.reset()
}

func (g *VGIC) checkVCPU(id int) error {
	if id < 0 || id >= len(g.vcpus) || g.vcpus[id] == nil {
		return fmt.Errorf("vcpu %d: %w", id, ErrBadVCPU)
	}
	return nil
}

// findHandle locates the registered handle for a virq as seen by one
// vCPU: O(1) for the banked range, a bounded linear scan for SPIs.
func (g *VGIC) findHandle(vcpuID int, virq uint32) *virqHandle {
	if virq < SPIBase {
		return g.sgiPPI[vcpuID][virq]
	}
	for _, h := range g.spis {
		if h != nil && h.virq == virq {
			return h
		}
	}
	return nil
}
