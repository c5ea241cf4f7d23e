package keyboard

import "testing"

func TestHasCharGetCharRoundTrip(t *testing.T) {
	k := New()
	if k.HasChar() {
		t.Fatalf("fresh keyboard reports a pending char")
	}
	k.HandleScancode(0x1E) // 'a' make
	if !k.HasChar() {
		t.Fatalf("expected a pending char after a make code")
	}
	if got := k.GetChar(); got != 'a' {
		t.Fatalf("GetChar = %q, want 'a'", got)
	}
	if k.HasChar() {
		t.Fatalf("buffer should be empty after drain")
	}
}

func TestReleaseScancodeDoesNotEmit(t *testing.T) {
	k := New()
	k.HandleScancode(0x1E | releaseBit)
	if k.HasChar() {
		t.Fatalf("release scancode must not push a character")
	}
}

func TestShiftXorCapsSelectsUpperTable(t *testing.T) {
	k := New()
	k.HandleScancode(scShiftLeft) // shift down
	k.HandleScancode(0x1E)        // 'a' -> 'A'
	if got := k.GetChar(); got != 'A' {
		t.Fatalf("with shift held, got %q, want 'A'", got)
	}
	k.HandleScancode(scShiftLeft | releaseBit) // shift up
	k.HandleScancode(0x1E)
	if got := k.GetChar(); got != 'a' {
		t.Fatalf("with shift released, got %q, want 'a'", got)
	}
}

func TestCapsLockTogglesOnReleaseAndXorsWithShift(t *testing.T) {
	k := New()
	k.HandleScancode(scCapsLock)                // caps make: no toggle yet
	k.HandleScancode(scCapsLock | releaseBit)    // caps release: toggles on
	k.HandleScancode(0x1E)
	if got := k.GetChar(); got != 'A' {
		t.Fatalf("caps on, got %q, want 'A'", got)
	}

	k.HandleScancode(scShiftLeft)
	k.HandleScancode(0x1E) // shift XOR caps (both set) -> lower
	k.HandleScancode(scShiftLeft | releaseBit)
	if got := k.GetChar(); got != 'a' {
		t.Fatalf("caps+shift, got %q, want 'a'", got)
	}
}

func TestModifierKeysNeverEmitCharacters(t *testing.T) {
	k := New()
	for _, code := range []byte{scShiftLeft, scShiftRight, scCtrl, scAlt} {
		k.HandleScancode(code)
		if k.HasChar() {
			t.Fatalf("modifier scancode 0x%02x must not emit a character", code)
		}
		k.HandleScancode(code | releaseBit)
	}
}

func TestExtendedPrefixIsConsumedAndDoesNotEmit(t *testing.T) {
	k := New()
	k.HandleScancode(extendedPrefix)
	if !k.extendedPending {
		t.Fatalf("extended prefix should set extendedPending")
	}
	if k.HasChar() {
		t.Fatalf("extended prefix byte alone must not emit a character")
	}
}

func TestGetModifiersReflectsHeldKeys(t *testing.T) {
	k := New()
	k.HandleScancode(scCtrl)
	k.HandleScancode(scAlt)
	m := k.GetModifiers()
	if m&ModCtrl == 0 || m&ModAlt == 0 {
		t.Fatalf("modifiers = %v, want ctrl+alt set", m)
	}
	if m&ModShift != 0 {
		t.Fatalf("shift should not be set")
	}
}

func TestRingBufferOverflowDropsSilently(t *testing.T) {
	k := New()
	for i := 0; i < ringSize+10; i++ {
		k.HandleScancode(0x1E) // 'a' repeatedly
	}
	count := 0
	for k.HasChar() {
		k.GetChar()
		count++
	}
	if count != ringSize-1 {
		t.Fatalf("drained %d bytes, want %d (one slot reserved to distinguish full/empty)", count, ringSize-1)
	}
}

func TestIsModifierScancodeExplicitMembership(t *testing.T) {
	for _, code := range []byte{scShiftLeft, scShiftRight, scCtrl, scAlt, scCapsLock, scNumLock, scScrollLock} {
		if !isModifierScancode(code) {
			t.Fatalf("0x%02x should be classified as a modifier scancode", code)
		}
	}
	if isModifierScancode(0x1E) {
		t.Fatalf("'a' make code must not be classified as a modifier")
	}
	if isModifierScancode(0x00) {
		t.Fatalf("0x00 must not be classified as a modifier")
	}
}
