package vgic

import (
	"fmt"
	"log/slog"
)

// irqQueue buffers interrupts that did not fit in the vCPU's list
// registers. One slot is kept free so empty (head == tail) and full are
// distinguishable.
type irqQueue struct {
	irqs       [irqQueueLen]*virqHandle
	head, tail int
}

func queueNext(i int) int {
	return (i + 1) & (irqQueueLen - 1)
}

func (q *irqQueue) enqueue(h *virqHandle) bool {
	if queueNext(q.tail) == q.head {
		return false
	}
	q.irqs[q.tail] = h
	q.tail = queueNext(q.tail)
	return true
}

func (q *irqQueue) dequeue() *virqHandle {
	if q.head == q.tail {
		return nil
	}
	h := q.irqs[q.head]
	q.irqs[q.head] = nil
	q.head = queueNext(q.head)
	return h
}

func (q *irqQueue) empty() bool {
	return q.head == q.tail
}

// emptyListRegister returns the lowest free list register index, or -1
// when all are occupied.
func (v *vcpuState) emptyListRegister() int {
	for i, h := range v.lrShadow {
		if h == nil {
			return i
		}
	}
	return -1
}

// inject marks virq pending and delivers it. Callers hold the lock.
//
// The enqueue-then-immediately-dequeue when a list register is free
// looks redundant; the queue is the single ordering point so that a
// later priority scheme only has to change the dequeue side.
func (g *VGIC) inject(vcpu *vcpuState, virq uint32) error {
	id := vcpu.vcpu.ID()
	h := g.findHandle(id, virq)
	if h == nil {
		return fmt.Errorf("vgic: virq %d on vcpu %d: %w", virq, id, ErrNotRegistered)
	}
	if !g.dist.enabled() {
		return fmt.Errorf("vgic: virq %d: %w", virq, ErrDistributorDisabled)
	}
	if !g.dist.isEnabled(virq, id) {
		return fmt.Errorf("vgic: virq %d on vcpu %d: %w", virq, id, ErrMasked)
	}

	if g.dist.isPending(h.virq, id) {
		return nil
	}
	g.dist.setPending(h.virq, true, id)

	if !vcpu.queue.enqueue(h) {
		// The queue is sized well past the list-register count; filling
		// it means the maintenance path is stuck.
		slog.Error("vgic: irq queue overflow, increase the queue length",
			"vcpu", id, "virq", virq)
		return fmt.Errorf("vgic: virq %d on vcpu %d: %w", virq, id, ErrQueueOverflow)
	}

	idx := vcpu.emptyListRegister()
	if idx < 0 {
		// No list register free; the maintenance path will drain the
		// queue as registers empty.
		return nil
	}
	next := vcpu.queue.dequeue()
	return g.loadListRegister(vcpu, idx, next)
}

// enableIRQ handles a guest write of an ISENABLER bit. When the source
// was quiescent (not pending) its host-side IRQ is acknowledged so it
// can fire again.
func (g *VGIC) enableIRQ(vcpu *vcpuState, irq uint32) {
	id := vcpu.vcpu.ID()
	h := g.findHandle(id, irq)
	g.dist.setEnable(irq, true, id)
	if h == nil {
		slog.Debug("vgic: enabled irq has no handle", "vcpu", id, "irq", irq)
		return
	}
	if !g.dist.isPending(h.virq, id) {
		h.doAck(vcpu.vcpu)
	}
}

// disableIRQ handles a guest write of an ICENABLER bit. Whether a GIC
// allows disabling SGIs is implementation defined; this one does not,
// and such requests are ignored without logging since guests commonly
// issue them during platform bring-up.
func (g *VGIC) disableIRQ(vcpu *vcpuState, irq uint32) {
	if irq >= NumSGI {
		g.dist.setEnable(irq, false, vcpu.vcpu.ID())
	}
}

// clearPending handles a guest write of an ICPENDR bit. Only the
// distributor state is cleared: an interrupt already queued or loaded in
// a list register still delivers, matching the modelled hardware stack.
func (g *VGIC) clearPending(vcpu *vcpuState, irq uint32) {
	g.dist.setPending(irq, false, vcpu.vcpu.ID())
}

func (g *VGIC) loadListRegister(vcpu *vcpuState, idx int, h *virqHandle) error {
	if err := vcpu.vcpu.LoadListRegister(idx, h.virq); err != nil {
		return fmt.Errorf("vgic: loading list register %d on vcpu %d: %w",
			idx, vcpu.vcpu.ID(), err)
	}
	vcpu.lrShadow[idx] = h
	return nil
}
