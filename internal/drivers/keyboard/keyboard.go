// Package keyboard implements the PS/2 keyboard driver of spec.md §4.4:
// controller programming over ports 0x60/0x64, an ISR that feeds a ring
// buffer, and the has_char/get_char/get_modifiers consumer API. Controller
// command handling is grounded on the teacher's i8042/ps2keyboard port
// layout (internal/devices/amd64/input); the scancode-set-1 ASCII tables
// and ring buffer are new, since the teacher leaves scancode translation
// to the guest OS rather than the host.
package keyboard

import (
	"sync"

	"github.com/y4ku-os/kernel/internal/interrupt"
	"github.com/y4ku-os/kernel/internal/ioport"
)

const (
	dataPort    uint16 = 0x60
	commandPort uint16 = 0x64

	statusOutputFull = 1 << 0

	cmdDisableAux      = 0xA7
	cmdDisableKeyboard = 0xAD
	cmdEnableKeyboard  = 0xAE
	cmdWriteOutputPort = 0xD1

	kbdSetLEDs = 0xED
	kbdSetScancodeSet1 = 0xF0

	ringSize = 256

	irqLine = 1

	extendedPrefix = 0xE0

	scShiftLeft  = 0x2A
	scShiftRight = 0x36
	scCtrl       = 0x1D
	scAlt        = 0x38
	scCapsLock   = 0x3A
	scNumLock    = 0x45
	scScrollLock = 0x46

	releaseBit = 0x80
)

// Modifiers is a bitmask of currently-held modifier keys and active locks.
type Modifiers uint8

const (
	ModShift Modifiers = 1 << iota
	ModCtrl
	ModAlt
	ModCapsLock
	ModNumLock
	ModScrollLock
)

// Keyboard is the process-wide PS/2 keyboard controller and ring buffer.
type Keyboard struct {
	mu sync.Mutex

	buf        [ringSize]byte
	head, tail int

	shift, ctrl, alt          bool
	caps, num, scroll         bool
	extendedPending           bool
	scancodeSet               int
	leds                      byte

	bus *ioport.Bus
}

// New constructs a keyboard driver. Init wires it to bus and registers
// its ISR on IRQ1 through ctl.
func New() *Keyboard {
	return &Keyboard{scancodeSet: 1}
}

// Init performs the controller bring-up sequence of spec.md §4.4: disable
// both ports, drain the output buffer, select scancode set 1, program the
// LEDs from current lock state, re-enable, then register the IRQ1 ISR.
// Idempotent: calling it twice leaves the controller in the same state.
func (k *Keyboard) Init(bus *ioport.Bus, ctl *interrupt.Controller) {
	k.mu.Lock()
	k.bus = bus
	k.mu.Unlock()

	if bus != nil {
		bus.Critical(func() {
			bus.Outb(commandPort, cmdDisableKeyboard)
			bus.Outb(commandPort, cmdDisableAux)
			const maxDrainReads = 16
			for i := 0; i < maxDrainReads && bus.Inb(commandPort)&statusOutputFull != 0; i++ {
				bus.Inb(dataPort)
			}
			k.sendCommand(bus, kbdSetScancodeSet1, 1)
			k.sendCommand(bus, kbdSetLEDs, k.ledByte())
			bus.Outb(commandPort, cmdEnableKeyboard)
		})
	}
	if ctl != nil {
		ctl.RegisterIRQHandler(irqLine, func(uint8) { k.handleIRQ() })
	}
}

func (k *Keyboard) sendCommand(bus *ioport.Bus, cmd, arg byte) {
	bus.Outb(dataPort, cmd)
	bus.Outb(dataPort, arg)
}

func (k *Keyboard) ledByte() byte {
	var v byte
	if k.scroll {
		v |= 1 << 0
	}
	if k.num {
		v |= 1 << 1
	}
	if k.caps {
		v |= 1 << 2
	}
	return v
}

// handleIRQ is the IRQ1 ISR body: reads one scancode from port 0x60 and
// processes it per spec.md §4.4.
func (k *Keyboard) handleIRQ() {
	if k.bus == nil {
		return
	}
	b := k.bus.Inb(dataPort)
	k.HandleScancode(b)
}

// HandleScancode processes a single scancode byte as the ISR would. It is
// exported so tests (and the bus simulation in cmd/y4ku) can inject
// scancodes without a real port write.
func (k *Keyboard) HandleScancode(b byte) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if b == extendedPrefix {
		k.extendedPending = true
		return
	}
	k.extendedPending = false

	release := b&releaseBit != 0
	code := b &^ releaseBit

	switch code {
	case scShiftLeft, scShiftRight:
		k.shift = !release
		return
	case scCtrl:
		k.ctrl = !release
		return
	case scAlt:
		k.alt = !release
		return
	case scCapsLock:
		if release {
			k.caps = !k.caps
			k.resendLEDs()
		}
		return
	case scNumLock:
		if release {
			k.num = !k.num
			k.resendLEDs()
		}
		return
	case scScrollLock:
		if release {
			k.scroll = !k.scroll
			k.resendLEDs()
		}
		return
	}

	if release || isModifierScancode(code) {
		return
	}

	upper := k.shift != k.caps // shift XOR caps
	ch := translate(code, upper)
	if ch != 0 {
		k.pushLocked(ch)
	}
}

func (k *Keyboard) resendLEDs() {
	if k.bus != nil {
		k.sendCommand(k.bus, kbdSetLEDs, k.ledByte())
	}
}

func (k *Keyboard) pushLocked(b byte) {
	next := (k.tail + 1) % ringSize
	if next == k.head {
		return // buffer full: drop silently, per spec.md §8.
	}
	k.buf[k.tail] = b
	k.tail = next
}

// HasChar reports whether the ring buffer has at least one byte pending.
func (k *Keyboard) HasChar() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.head != k.tail
}

// GetChar pops and returns the next buffered byte, or 0 if empty.
func (k *Keyboard) GetChar() byte {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.head == k.tail {
		return 0
	}
	b := k.buf[k.head]
	k.head = (k.head + 1) % ringSize
	return b
}

// GetModifiers returns the current modifier/lock bitmask.
func (k *Keyboard) GetModifiers() Modifiers {
	k.mu.Lock()
	defer k.mu.Unlock()
	var m Modifiers
	if k.shift {
		m |= ModShift
	}
	if k.ctrl {
		m |= ModCtrl
	}
	if k.alt {
		m |= ModAlt
	}
	if k.caps {
		m |= ModCapsLock
	}
	if k.num {
		m |= ModNumLock
	}
	if k.scroll {
		m |= ModScrollLock
	}
	return m
}

// isModifierScancode reports whether code is a modifier/lock key that must
// never itself emit a character. Resolves the open question in spec.md §9:
// the original source's "key_code >= 0x80 || key_code < 128" predicate is
// always true; the correct check is an explicit membership test.
func isModifierScancode(code byte) bool {
	switch code {
	case scShiftLeft, scShiftRight, scCtrl, scAlt, scCapsLock, scNumLock, scScrollLock:
		return true
	default:
		return false
	}
}
