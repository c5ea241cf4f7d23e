package interrupt

import (
	"log/slog"

	"github.com/y4ku-os/kernel/internal/cpu"
)

// HaltFunc disables interrupts and parks the CPU, the effect the
// "exception policy" in spec.md §4.1 requires when no handler is
// registered for a raised exception.
type HaltFunc func()

// Controller wires a PIC and an IDT together and implements the dispatch
// algorithm of spec.md §4.1: IRQ stubs send EOI before invoking the
// handler (cascaded IRQs EOI both controllers); exceptions with no
// registered handler halt the kernel with a console dump.
type Controller struct {
	pic    *PIC
	idt    *cpu.IDT
	log    *slog.Logger
	halt   HaltFunc
}

// NewController builds the interrupt dispatch policy around pic and idt.
// halt is invoked (after logging) for an unhandled exception.
func NewController(pic *PIC, idt *cpu.IDT, log *slog.Logger, halt HaltFunc) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{pic: pic, idt: idt, log: log, halt: halt}
}

// RaiseException simulates CPU vector delivery for a synchronous
// exception (vectors 0-21). If no handler is registered the kernel halts;
// otherwise the handler runs directly (exceptions are not EOI'd, they have
// no PIC involvement).
func (c *Controller) RaiseException(vector uint8, description string) {
	if c.idt.Dispatch(vector) {
		return
	}
	c.log.Error("unhandled CPU exception", "vector", vector, "description", description)
	if c.halt != nil {
		c.halt()
	}
}

// RaiseIRQ simulates a hardware interrupt line firing: it acknowledges
// through the PIC, sends EOI *before* invoking the handler (per spec.md
// §4.1's ordering requirement), and dispatches through the IDT handler
// table. It returns false if the PIC had nothing pending.
func (c *Controller) RaiseIRQ(line uint8) bool {
	c.pic.Raise(line)
	vector, ok := c.pic.Acknowledge()
	if !ok {
		return false
	}
	c.pic.EndOfInterrupt(line)
	c.idt.Dispatch(vector)
	return true
}

// RegisterIRQHandler registers fn for the vector corresponding to line and
// unmasks the line, matching the bring-up pattern drivers use ("register
// the ISR... then re-enable").
func (c *Controller) RegisterIRQHandler(line uint8, fn cpu.Handler) {
	vector := MasterOffset + line
	if line >= 8 {
		vector = SlaveOffset + (line - 8)
	}
	c.idt.RegisterHandler(vector, fn)
	c.pic.Mask(line, false)
}

// PIC exposes the underlying controller pair, e.g. for Mask calls made
// directly by driver bring-up code.
func (c *Controller) PIC() *PIC { return c.pic }

// IDT exposes the underlying interrupt descriptor table.
func (c *Controller) IDT() *cpu.IDT { return c.idt }
