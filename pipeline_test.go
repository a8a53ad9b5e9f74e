package vgic

import (
	"errors"
	"testing"
)

func registerSPIRange(t *testing.T, g *VGIC, first, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		if err := g.RegisterIRQ(0, uint32(first+i), nil, nil); err != nil {
			t.Fatalf("RegisterIRQ(%d): %v", first+i, err)
		}
	}
	for i := 0; i < count; i += 32 {
		writeWord(t, g, 0, gicdIsenabler1+uint64((first+i-SPIBase)/32*4), 0xFFFFFFFF)
	}
}

func TestQueueRing(t *testing.T) {
	var q irqQueue
	handles := make([]*virqHandle, irqQueueLen-1)
	for i := range handles {
		handles[i] = &virqHandle{virq: uint32(i)}
		if !q.enqueue(handles[i]) {
			t.Fatalf("enqueue %d failed", i)
		}
	}
	// One slot stays reserved.
	if q.enqueue(&virqHandle{}) {
		t.Fatalf("enqueue into full queue succeeded")
	}
	for i := range handles {
		if got := q.dequeue(); got != handles[i] {
			t.Fatalf("dequeue %d = %v, want %v", i, got, handles[i])
		}
	}
	if !q.empty() || q.dequeue() != nil {
		t.Fatalf("queue should be empty")
	}
}

// B1: injection while the distributor is disabled fails without side
// effects.
func TestInjectDistributorDisabled(t *testing.T) {
	g, cpus := newTestVGIC(t, 1)
	registerSPIRange(t, g, 42, 1)

	err := g.InjectIRQ(0, 42)
	if !errors.Is(err, ErrDistributorDisabled) {
		t.Fatalf("got %v, want ErrDistributorDisabled", err)
	}
	if len(cpus[0].loads) != 0 || !g.vcpus[0].queue.empty() {
		t.Fatalf("state mutated by rejected injection")
	}
}

// B2: injection of a masked IRQ fails.
func TestInjectMasked(t *testing.T) {
	g, _ := newTestVGIC(t, 1)
	enableDistributor(t, g)
	if err := g.RegisterIRQ(0, 42, nil, nil); err != nil {
		t.Fatalf("RegisterIRQ: %v", err)
	}

	if err := g.InjectIRQ(0, 42); !errors.Is(err, ErrMasked) {
		t.Fatalf("got %v, want ErrMasked", err)
	}
}

func TestInjectUnregistered(t *testing.T) {
	g, _ := newTestVGIC(t, 1)
	enableDistributor(t, g)

	if err := g.InjectIRQ(0, 99); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("got %v, want ErrNotRegistered", err)
	}
	if err := g.InjectIRQ(3, 99); !errors.Is(err, ErrBadVCPU) {
		t.Fatalf("got %v, want ErrBadVCPU", err)
	}
}

func TestInjectIdempotentWhilePending(t *testing.T) {
	g, cpus := newTestVGIC(t, 1)
	enableDistributor(t, g)
	registerSPIRange(t, g, 42, 1)

	if err := g.InjectIRQ(0, 42); err != nil {
		t.Fatalf("first inject: %v", err)
	}
	if err := g.InjectIRQ(0, 42); err != nil {
		t.Fatalf("second inject: %v", err)
	}
	if len(cpus[0].loads) != 1 {
		t.Fatalf("loads = %v, want exactly one", cpus[0].loads)
	}
}

// S4/B3: list registers fill in ascending order, overflow queues, and
// maintenance drains the queue in FIFO order.
func TestListRegisterFillAndMaintenance(t *testing.T) {
	g, cpus := newTestVGIC(t, 1)
	enableDistributor(t, g)
	registerSPIRange(t, g, 32, 8)

	for irq := uint32(32); irq < 36; irq++ {
		if err := g.InjectIRQ(0, irq); err != nil {
			t.Fatalf("inject %d: %v", irq, err)
		}
	}
	want := []lrLoad{{0, 32}, {1, 33}, {2, 34}, {3, 35}}
	if len(cpus[0].loads) != len(want) {
		t.Fatalf("loads = %v, want %v", cpus[0].loads, want)
	}
	for i, w := range want {
		if cpus[0].loads[i] != w {
			t.Fatalf("loads[%d] = %v, want %v", i, cpus[0].loads[i], w)
		}
	}
	if !g.vcpus[0].queue.empty() {
		t.Fatalf("queue should be empty with free list registers")
	}

	// Fifth interrupt overflows into the queue.
	if err := g.InjectIRQ(0, 36); err != nil {
		t.Fatalf("inject 36: %v", err)
	}
	if len(cpus[0].loads) != 4 {
		t.Fatalf("overflow interrupt loaded a list register: %v", cpus[0].loads)
	}
	if g.vcpus[0].queue.empty() {
		t.Fatalf("queue should hold the overflow interrupt")
	}

	// Maintenance on LR 0 pulls it in.
	if err := g.Maintenance(0, 0); err != nil {
		t.Fatalf("Maintenance: %v", err)
	}
	last := cpus[0].loads[len(cpus[0].loads)-1]
	if last != (lrLoad{index: 0, virq: 36}) {
		t.Fatalf("maintenance load = %v, want {0 36}", last)
	}
	if !g.vcpus[0].queue.empty() {
		t.Fatalf("queue should be drained")
	}
}

func TestMaintenanceOrderIsFIFO(t *testing.T) {
	g, cpus := newTestVGIC(t, 1)
	enableDistributor(t, g)
	registerSPIRange(t, g, 32, 8)

	for irq := uint32(32); irq < 39; irq++ {
		if err := g.InjectIRQ(0, irq); err != nil {
			t.Fatalf("inject %d: %v", irq, err)
		}
	}
	// 32..35 occupy the list registers; 36..38 wait in the queue.
	for i, want := range []uint32{36, 37, 38} {
		if err := g.Maintenance(0, i); err != nil {
			t.Fatalf("Maintenance(%d): %v", i, err)
		}
		last := cpus[0].loads[len(cpus[0].loads)-1]
		if last != (lrLoad{index: i, virq: want}) {
			t.Fatalf("maintenance %d loaded %v, want {%d %d}", i, last, i, want)
		}
	}
}

func TestMaintenanceEmptyQueue(t *testing.T) {
	g, cpus := newTestVGIC(t, 1)
	enableDistributor(t, g)
	registerSPIRange(t, g, 32, 1)

	if err := g.InjectIRQ(0, 32); err != nil {
		t.Fatalf("inject: %v", err)
	}
	if err := g.Maintenance(0, 0); err != nil {
		t.Fatalf("Maintenance: %v", err)
	}
	if len(cpus[0].loads) != 1 {
		t.Fatalf("maintenance with empty queue loaded: %v", cpus[0].loads)
	}
	if err := g.Maintenance(0, 9); err == nil {
		t.Fatalf("out-of-range list register should fail")
	}
}

// B4: queue exhaustion is a hard error.
func TestQueueOverflowFatal(t *testing.T) {
	g, _ := newTestVGIC(t, 1)
	enableDistributor(t, g)
	registerSPIRange(t, g, 32, 96)

	limit := DefaultListRegisters + irqQueueLen - 1
	for i := 0; i < limit; i++ {
		if err := g.InjectIRQ(0, uint32(32+i)); err != nil {
			t.Fatalf("inject %d: %v", 32+i, err)
		}
	}
	err := g.InjectIRQ(0, uint32(32+limit))
	if !errors.Is(err, ErrQueueOverflow) {
		t.Fatalf("got %v, want ErrQueueOverflow", err)
	}
}

func TestListRegisterLoadErrorPropagates(t *testing.T) {
	g, cpus := newTestVGIC(t, 1)
	enableDistributor(t, g)
	registerSPIRange(t, g, 42, 1)

	loadErr := errors.New("hypervisor rejected load")
	cpus[0].loadErr = loadErr
	if err := g.InjectIRQ(0, 42); !errors.Is(err, loadErr) {
		t.Fatalf("got %v, want wrapped load error", err)
	}

	// Through the MMIO path the same failure is a vCPU stop condition.
	g2, cpus2 := newTestVGIC(t, 1)
	enableDistributor(t, g2)
	if err := g2.RegisterIRQ(0, 42, nil, nil); err != nil {
		t.Fatalf("RegisterIRQ: %v", err)
	}
	writeWord(t, g2, 0, gicdIsenabler1, 1<<10)
	cpus2[0].loadErr = loadErr
	f := Fault{
		Addr:  g2.Config().DistributorBase + gicdIspendr1,
		Write: true,
		Data:  1 << 10,
		Mask:  0xFFFFFFFF,
	}
	if res := g2.HandleFault(0, &f); res != FaultError {
		t.Fatalf("pending write with failing load: got %v, want FaultError", res)
	}
}

// O1 behavior: clearing pending does not purge the queue or the list
// register shadow.
func TestClearPendingLeavesPipeline(t *testing.T) {
	g, _ := newTestVGIC(t, 1)
	enableDistributor(t, g)
	registerSPIRange(t, g, 32, 8)

	for irq := uint32(32); irq < 37; irq++ {
		if err := g.InjectIRQ(0, irq); err != nil {
			t.Fatalf("inject %d: %v", irq, err)
		}
	}
	writeWord(t, g, 0, gicdIcpendr1, 1<<(36-32))

	if got := readWord(t, g, 0, gicdIspendr1); got&(1<<4) != 0 {
		t.Fatalf("irq 36 still pending in distributor state")
	}
	if g.vcpus[0].queue.empty() {
		t.Fatalf("queued interrupt should survive clear-pending")
	}
}
