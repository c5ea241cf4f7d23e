package interrupt

import "testing"

func TestPICRemapOffsets(t *testing.T) {
	p := NewPIC()
	master, slave := p.Offsets()
	if master != MasterOffset {
		t.Fatalf("master offset = 0x%02x, want 0x%02x", master, MasterOffset)
	}
	if slave != SlaveOffset {
		t.Fatalf("slave offset = 0x%02x, want 0x%02x", slave, SlaveOffset)
	}
}

func TestPICMaskBlocksAcknowledge(t *testing.T) {
	p := NewPIC()
	p.Raise(1) // masked by default
	if _, ok := p.Acknowledge(); ok {
		t.Fatalf("masked IRQ should not be acknowledged")
	}

	p.Mask(1, false)
	p.Raise(1)
	vector, ok := p.Acknowledge()
	if !ok {
		t.Fatalf("unmasked IRQ should be acknowledged")
	}
	if vector != MasterOffset+1 {
		t.Fatalf("vector = 0x%02x, want 0x%02x", vector, MasterOffset+1)
	}
}

func TestPICCascadedIRQAcknowledgesSlaveVector(t *testing.T) {
	p := NewPIC()
	p.Mask(10, false) // slave line 2
	p.Raise(10)

	vector, ok := p.Acknowledge()
	if !ok {
		t.Fatalf("expected cascaded IRQ to be acknowledged")
	}
	if vector != SlaveOffset+2 {
		t.Fatalf("vector = 0x%02x, want 0x%02x (slave line 2)", vector, SlaveOffset+2)
	}
}

func TestPICEndOfInterruptClearsISR(t *testing.T) {
	p := NewPIC()
	p.Mask(0, false)
	p.Raise(0)
	if _, ok := p.Acknowledge(); !ok {
		t.Fatalf("expected acknowledge to succeed")
	}
	p.EndOfInterrupt(0)
	if p.master.isr != 0 {
		t.Fatalf("ISR not cleared after EOI: 0x%02x", p.master.isr)
	}
}
