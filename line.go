package vgic

import (
	"sync"
)

// Line is an interrupt-line handle for one registered virtual interrupt.
// Emulated devices hold a Line and drive its level; the line performs
// simple edge bookkeeping so a level-triggered source only injects on a
// rising edge (level asserted when it was previously deasserted).
type Line struct {
	g     *VGIC
	vcpu  int
	virq  uint32
	mu    sync.Mutex
	level bool
}

// AllocateLine returns a line handle that injects virq into vcpuID on
// each rising edge. The virq must be registered before the line fires.
func (g *VGIC) AllocateLine(vcpuID int, virq uint32) *Line {
	return &Line{g: g, vcpu: vcpuID, virq: virq}
}

// SetLevel drives the line. A rising edge injects the interrupt;
// deassertion only updates state so a later assertion can fire again.
func (l *Line) SetLevel(level bool) error {
	l.mu.Lock()
	prev := l.level
	l.level = level
	l.mu.Unlock()

	if !level || prev {
		return nil
	}
	return l.g.InjectIRQ(l.vcpu, l.virq)
}

// Raise asserts the line.
func (l *Line) Raise() error { return l.SetLevel(true) }

// Lower deasserts the line.
func (l *Line) Lower() error { return l.SetLevel(false) }
