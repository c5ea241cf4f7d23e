// Package multiboot is the boot-handoff support library of spec.md §6:
// bootloader magic check and memory-map table parsing. Its contract is
// specified; its internals (how the raw info structure reaches Go memory)
// are a kernel-entry concern handled by cmd/y4ku, not this package.
package multiboot

import "fmt"

// Magic is the only valid bootloader magic value; anything else panics
// the kernel per spec.md §6.
const Magic uint32 = 0x2BADB002

const (
	flagBasicMem  = 1 << 0
	flagMemoryMap = 1 << 6
)

// MemoryRegionType values; only TypeAvailable denotes usable RAM.
type MemoryRegionType uint32

const (
	TypeAvailable MemoryRegionType = 1
)

// MemoryRegion is one memory-map table entry: { size, addr:u64, len:u64,
// type:u32 }, per spec.md §6.
type MemoryRegion struct {
	Size uint32
	Addr uint64
	Len  uint64
	Type MemoryRegionType
}

// MemoryMapEntry is the raw Multiboot mmap tag record, before decoding
// into a MemoryRegion: each entry carries its own size prefix ahead of a
// base/length pair and a region kind, recovered from original_source/
// (see SPEC_FULL.md §3) since the distillation only named the decoded
// MemoryRegion shape.
type MemoryMapEntry struct {
	Size   uint64
	Base   uint64
	Length uint64
	Kind   uint32
}

// DecodeMemoryMap converts raw mmap tag records into the MemoryRegion
// shape the rest of the kernel consumes.
func DecodeMemoryMap(entries []MemoryMapEntry) []MemoryRegion {
	out := make([]MemoryRegion, len(entries))
	for i, e := range entries {
		out[i] = MemoryRegion{
			Size: uint32(e.Size),
			Addr: e.Base,
			Len:  e.Length,
			Type: MemoryRegionType(e.Kind),
		}
	}
	return out
}

// NewInfoWithMemoryMap builds an Info with the memory-map flag set and
// its MemoryMap decoded from the given raw mmap entries.
func NewInfoWithMemoryMap(entries []MemoryMapEntry) Info {
	return Info{
		Flags:     flagMemoryMap,
		MemoryMap: DecodeMemoryMap(entries),
	}
}

// Info is the decoded subset of the Multiboot information structure this
// kernel consumes.
type Info struct {
	Flags       uint32
	LowerMemKB  uint32
	UpperMemKB  uint32
	MemoryMap   []MemoryRegion
}

// HasBasicMem reports whether the basic-memory fields (flags bit 0) are
// valid.
func (i Info) HasBasicMem() bool { return i.Flags&flagBasicMem != 0 }

// HasMemoryMap reports whether the memory-map table (flags bit 6) is
// valid.
func (i Info) HasMemoryMap() bool { return i.Flags&flagMemoryMap != 0 }

// AvailableRegions returns the subset of the memory map with
// Type == TypeAvailable.
func (i Info) AvailableRegions() []MemoryRegion {
	var out []MemoryRegion
	for _, r := range i.MemoryMap {
		if r.Type == TypeAvailable {
			out = append(out, r)
		}
	}
	return out
}

// CheckMagic validates the bootloader-supplied magic value against Magic.
// Any other value is a boot panic per spec.md §6 and §7.
func CheckMagic(magic uint32) error {
	if magic != Magic {
		return fmt.Errorf("multiboot: bad bootloader magic 0x%08X, want 0x%08X", magic, Magic)
	}
	return nil
}
