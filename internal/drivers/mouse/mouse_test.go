package mouse

import "testing"

func sendPlainPacket(m *Mouse, flags, dx, dy byte) {
	m.HandleByte(flags)
	m.HandleByte(dx)
	m.HandleByte(dy)
}

func TestPlainPacketUpdatesPositionAndButtons(t *testing.T) {
	m := New(false)
	sendPlainPacket(m, flagAlwaysOne|flagLeftButton, 10, 5)
	st := m.State()
	if st.X != 10 || st.Y != 0 {
		t.Fatalf("position = (%d,%d), want (10,0) after Y-axis inversion and clamping", st.X, st.Y)
	}
	if st.Buttons&ButtonLeft == 0 {
		t.Fatalf("left button not reflected in state")
	}
}

func TestPositionClampsAtZero(t *testing.T) {
	m := New(false)
	sendPlainPacket(m, flagAlwaysOne, 5, 5) // moves Y to -5 pre-clamp
	st := m.State()
	if st.Y != 0 {
		t.Fatalf("Y = %d, want clamped to 0", st.Y)
	}
	if st.X != 5 {
		t.Fatalf("X = %d, want 5", st.X)
	}
}

func TestWheelDeltaOnlyPresentWhenHasWheelFlagSet(t *testing.T) {
	plain := New(false)
	sendPlainPacket(plain, flagAlwaysOne, 0, 0)
	if plain.State().WheelDelta != 0 {
		t.Fatalf("non-wheel mouse must never report a wheel delta")
	}

	wheel := New(true)
	wheel.HandleByte(flagAlwaysOne)
	wheel.HandleByte(0)
	wheel.HandleByte(0)
	wheel.HandleByte(3)
	if wheel.State().WheelDelta != 3 {
		t.Fatalf("wheel delta = %d, want 3", wheel.State().WheelDelta)
	}
}

func TestResyncDropsBytesUntilAlwaysOneBitSeen(t *testing.T) {
	m := New(false)
	m.HandleByte(0x00) // garbage, bit 3 clear: must be dropped, not start a packet
	sendPlainPacket(m, flagAlwaysOne|flagRightButton, 1, 1)
	st := m.State()
	if st.Buttons&ButtonRight == 0 {
		t.Fatalf("expected right button after resync and a valid packet")
	}
}

func TestHasWheelReflectsConstructionFlagNotPacketIndex(t *testing.T) {
	if (New(true)).HasWheel() != true {
		t.Fatalf("expected hasWheel true")
	}
	if (New(false)).HasWheel() != false {
		t.Fatalf("expected hasWheel false")
	}
}
