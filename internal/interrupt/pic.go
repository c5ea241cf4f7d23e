// Package interrupt implements the PIC remap and the vector-to-handler
// dispatch policy described in spec.md §4.1: EOI-before-handler for IRQs,
// cascaded EOI to both controllers for IRQ >= 8, and halt-and-dump for any
// exception vector with no registered handler.
package interrupt

import (
	"sync"

	"github.com/y4ku-os/kernel/internal/cpu"
	"github.com/y4ku-os/kernel/internal/ioport"
)

const (
	masterCommandPort = 0x20
	masterDataPort    = 0x21
	slaveCommandPort  = 0xA0
	slaveDataPort     = 0xA1

	// MasterOffset/SlaveOffset are the remapped base vectors, fixed by
	// spec.md §8 ("PIC remap post-condition: master offset = 0x20, slave
	// offset = 0x28").
	MasterOffset = cpu.IRQBase
	SlaveOffset  = 0x28

	icw1Init       = 0x10
	icw1ICW4Needed = 0x01
	icw4_8086      = 0x01

	ocw3ReadIRR = 0x0A
	ocw3ReadISR = 0x0B
	ocw2EOI     = 0x20
)

type ocw3Mode uint8

const (
	ocw3ModeNone ocw3Mode = iota
	ocw3ModeIRR
	ocw3ModeISR
)

// singlePIC is one 8259A: an 8-bit mask register (IMR), a pending-request
// register (IRR), and an in-service register (ISR) bit per line.
type singlePIC struct {
	offset     uint8
	imr        byte // 1 = masked
	irr        byte
	isr        byte
	readMode   ocw3Mode
	initStage  int // 0 = uninitialized, 1 = expecting ICW2, 2 = expecting ICW4, 3 = ready
}

func newSinglePIC() *singlePIC {
	return &singlePIC{imr: 0xff}
}

func (p *singlePIC) writeCommand(val byte) {
	switch {
	case val&icw1Init != 0:
		p.initStage = 1
		p.irr = 0
		p.isr = 0
	case p.initStage == 2:
		// ICW4, ignored beyond requiring 8086 mode.
		p.initStage = 3
	case val == ocw3ReadIRR:
		p.readMode = ocw3ModeIRR
	case val == ocw3ReadISR:
		p.readMode = ocw3ModeISR
	case val&0xE0 == ocw2EOI:
		p.endOfInterruptHighestPriority()
	}
}

func (p *singlePIC) writeData(val byte) {
	switch p.initStage {
	case 1:
		p.offset = val
		p.initStage = 2
	case 2:
		p.initStage = 3
	default:
		p.imr = val
	}
}

func (p *singlePIC) readData() byte { return p.imr }

func (p *singlePIC) readCommand() byte {
	switch p.readMode {
	case ocw3ModeISR:
		return p.isr
	default:
		return p.irr
	}
}

func (p *singlePIC) endOfInterruptHighestPriority() {
	for bit := byte(0); bit < 8; bit++ {
		mask := byte(1) << bit
		if p.isr&mask != 0 {
			p.isr &^= mask
			return
		}
	}
}

// raise marks line as pending. Returns true if the line is unmasked.
func (p *singlePIC) raise(line uint8) bool {
	mask := byte(1) << line
	p.irr |= mask
	return p.imr&mask == 0
}

// acknowledge picks the lowest pending, unmasked line, moves it from IRR to
// ISR, and returns its vector.
func (p *singlePIC) acknowledge() (uint8, bool) {
	pending := p.irr &^ p.imr
	if pending == 0 {
		return 0, false
	}
	for bit := uint8(0); bit < 8; bit++ {
		mask := byte(1) << bit
		if pending&mask != 0 {
			p.irr &^= mask
			p.isr |= mask
			return p.offset + bit, true
		}
	}
	return 0, false
}

// PIC models the cascaded master/slave 8259A pair behind ports
// 0x20/0x21 (master) and 0xA0/0xA1 (slave). NewPIC remaps IRQs 0-7 to
// MasterOffset and IRQs 8-15 to SlaveOffset and masks every line, matching
// spec.md §4.1's "PIC programming" paragraph.
type PIC struct {
	mu     sync.Mutex
	master *singlePIC
	slave  *singlePIC
}

// NewPIC constructs and remaps the controller pair. Unmasking happens
// later, during L4 driver bring-up, per spec.md §4.1.
func NewPIC() *PIC {
	p := &PIC{master: newSinglePIC(), slave: newSinglePIC()}
	p.remap()
	return p
}

func (p *PIC) remap() {
	for _, cmd := range []byte{icw1Init | icw1ICW4Needed} {
		p.master.writeCommand(cmd)
		p.slave.writeCommand(cmd)
	}
	p.master.writeData(MasterOffset)
	p.slave.writeData(SlaveOffset)
	p.master.writeData(1 << 2) // slave attached on IRQ2
	p.slave.writeData(2)       // cascade identity
	p.master.writeData(icw4_8086)
	p.slave.writeData(icw4_8086)
	p.master.imr = 0xff
	p.slave.imr = 0xff
}

// Attach registers the controller pair on bus at the legacy port pair.
func (p *PIC) Attach(bus *ioport.Bus) error {
	return bus.Register(picPortAdapter{p})
}

type picPortAdapter struct{ p *PIC }

func (a picPortAdapter) Ports() []uint16 {
	return []uint16{masterCommandPort, masterDataPort, slaveCommandPort, slaveDataPort}
}

func (a picPortAdapter) ReadPort(port uint16, data []byte) error {
	a.p.mu.Lock()
	defer a.p.mu.Unlock()
	switch port {
	case masterCommandPort:
		data[0] = a.p.master.readCommand()
	case masterDataPort:
		data[0] = a.p.master.readData()
	case slaveCommandPort:
		data[0] = a.p.slave.readCommand()
	case slaveDataPort:
		data[0] = a.p.slave.readData()
	}
	return nil
}

func (a picPortAdapter) WritePort(port uint16, data []byte) error {
	a.p.mu.Lock()
	defer a.p.mu.Unlock()
	switch port {
	case masterCommandPort:
		a.p.master.writeCommand(data[0])
	case masterDataPort:
		a.p.master.writeData(data[0])
	case slaveCommandPort:
		a.p.slave.writeCommand(data[0])
	case slaveDataPort:
		a.p.slave.writeData(data[0])
	}
	return nil
}

// Mask/Unmask control whether line is allowed to raise an interrupt. line is
// the IRQ number (0-15), not a vector. Unmasking a slave line (>=8) also
// unmasks the master's cascade line (IRQ2): a slave interrupt can never
// reach the CPU while the master has the cascade line masked, matching
// real 8259A wiring.
func (p *PIC) Mask(line uint8, masked bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	target, bit := p.controllerFor(line)
	if masked {
		target.imr |= 1 << bit
	} else {
		target.imr &^= 1 << bit
		if line >= 8 {
			p.master.imr &^= 1 << 2
		}
	}
}

func (p *PIC) controllerFor(line uint8) (*singlePIC, uint8) {
	if line >= 8 {
		return p.slave, line - 8
	}
	return p.master, line
}

// Raise signals that IRQ line has fired. The slave's cascade line (IRQ2 on
// the master) is raised automatically when the slave has a pending,
// unmasked request.
func (p *PIC) Raise(line uint8) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if line >= 16 {
		return
	}
	target, bit := p.controllerFor(line)
	target.raise(bit)
	if line >= 8 {
		p.master.raise(2)
	}
}

// Acknowledge returns the vector to dispatch for the highest-priority
// pending, unmasked interrupt, or ok=false if nothing is pending. For a
// cascaded IRQ (>=8) it acknowledges both controllers.
func (p *PIC) Acknowledge() (vector uint8, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	vec, ok := p.master.acknowledge()
	if !ok {
		return 0, false
	}
	if vec == MasterOffset+2 {
		slaveVec, slaveOK := p.slave.acknowledge()
		if slaveOK {
			return slaveVec, true
		}
	}
	return vec, true
}

// EndOfInterrupt sends EOI for line. Cascaded lines (>=8) send EOI to both
// the slave and the master, per spec.md §4.1.
func (p *PIC) EndOfInterrupt(line uint8) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if line >= 8 {
		p.slave.writeCommand(ocw2EOI)
	}
	p.master.writeCommand(ocw2EOI)
}

// Offsets returns the configured master/slave base vectors, for tests.
func (p *PIC) Offsets() (master, slave uint8) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.master.offset, p.slave.offset
}
