package cpu

import "testing"

func TestGDTFlushIdempotent(t *testing.T) {
	g := NewGDT()
	if g.Flushed() {
		t.Fatalf("GDT flushed before Flush() called")
	}
	g.Flush()
	g.Flush()
	if !g.Flushed() {
		t.Fatalf("GDT not marked flushed after Flush()")
	}
}

func TestGDTSelectors(t *testing.T) {
	g := NewGDT()
	if g.KernelCodeSelector() == g.KernelDataSelector() {
		t.Fatalf("kernel code/data selectors must differ")
	}
	if g.UserCodeSelector()&3 != 3 {
		t.Fatalf("user code selector must carry RPL 3")
	}
	if g.KernelCodeSelector()&3 != 0 {
		t.Fatalf("kernel code selector must carry RPL 0")
	}
}

func TestGDTSetKernelStackPatchesTSS(t *testing.T) {
	g := NewGDT()
	g.SetKernelStack(0xdeadbeef)
	tss := g.TSS()
	if tss.ESP0 != 0xdeadbeef {
		t.Fatalf("ESP0 = 0x%x, want 0xdeadbeef", tss.ESP0)
	}
	if tss.SS0 != g.KernelDataSelector() {
		t.Fatalf("SS0 = 0x%x, want kernel data selector 0x%x", tss.SS0, g.KernelDataSelector())
	}
}

func TestIDTInitIdempotent(t *testing.T) {
	idt := NewIDT(0x08)
	idt.init(0x08)
	if !idt.Loaded() {
		t.Fatalf("IDT not loaded")
	}
}

func TestIDTRegisterUnregisterInvariant(t *testing.T) {
	idt := NewIDT(0x08)
	if idt.Registered(0x21) {
		t.Fatalf("vector 0x21 registered before any RegisterHandler call")
	}

	var called uint8
	if !idt.RegisterHandler(0x21, func(v uint8) { called = v }) {
		t.Fatalf("RegisterHandler returned false for valid handler")
	}
	if !idt.Registered(0x21) {
		t.Fatalf("vector not marked registered")
	}
	if !idt.Dispatch(0x21) {
		t.Fatalf("Dispatch reported no handler for registered vector")
	}
	if called != 0x21 {
		t.Fatalf("handler invoked with vector %d, want 0x21", called)
	}

	idt.UnregisterHandler(0x21)
	if idt.Registered(0x21) {
		t.Fatalf("vector still registered after UnregisterHandler")
	}
	if idt.Dispatch(0x21) {
		t.Fatalf("Dispatch reported a handler after UnregisterHandler")
	}
}

func TestIDTRegisterRejectsNilHandler(t *testing.T) {
	idt := NewIDT(0x08)
	if idt.RegisterHandler(0x21, nil) {
		t.Fatalf("RegisterHandler accepted a nil handler")
	}
}

func TestIDTRegisteringOverwrites(t *testing.T) {
	idt := NewIDT(0x08)
	var first, second bool
	idt.RegisterHandler(0x22, func(uint8) { first = true })
	idt.RegisterHandler(0x22, func(uint8) { second = true })
	idt.Dispatch(0x22)
	if first {
		t.Fatalf("first handler fired; registering should overwrite")
	}
	if !second {
		t.Fatalf("second handler did not fire")
	}
}
