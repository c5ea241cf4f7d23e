// Command y4ku assembles the kernel-core singletons and drives the boot
// sequence of spec.md §2 against a software-emulated port-I/O bus. It is
// the in-process stand-in for the real kernel entry point: a hosted
// harness, not a bootloader. The flag/slog/run() shape mirrors the
// teacher's cmd/cc entry point (internal/debug, internal/bundle's CLI).
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/y4ku-os/kernel/internal/bootconfig"
	"github.com/y4ku-os/kernel/internal/console"
	"github.com/y4ku-os/kernel/internal/kernel"
	"github.com/y4ku-os/kernel/internal/multiboot"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "y4ku: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a boot descriptor YAML file")
	timerHz := flag.Uint("timer-hz", 0, "override the boot descriptor's timer frequency")
	interactive := flag.Bool("interactive", false, "forward host keystrokes into the PS/2 keyboard ISR path")
	quiet := flag.Bool("quiet", false, "suppress the boot progress indicator")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg := bootconfig.Default()
	if *configPath != "" {
		loaded, err := bootconfig.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *timerHz != 0 {
		cfg.TimerFrequencyHz = uint32(*timerHz)
	}

	con := console.New(os.Stdout)
	k := kernel.New(con, log)

	const bootSteps = 7 // multiboot, cpu tables, interrupts, timer, drivers, syscalls, init process
	var bar *progressbar.ProgressBar
	if !*quiet {
		bar = progressbar.Default(bootSteps, "booting y4ku")
	}

	// Stand-in mmap tag: conventional low memory plus a single extended
	// region above the 1MB mark, since this hosted harness has no real
	// bootloader to hand one in.
	info := multiboot.NewInfoWithMemoryMap([]multiboot.MemoryMapEntry{
		{Size: 20, Base: 0, Length: 0x9FC00, Kind: uint32(multiboot.TypeAvailable)},
		{Size: 20, Base: 0x100000, Length: 0x7EF0000, Kind: uint32(multiboot.TypeAvailable)},
	})
	if err := k.Boot(multiboot.Magic, info, cfg); err != nil {
		return fmt.Errorf("boot failed: %w", err)
	}
	if bar != nil {
		_ = bar.Set(bootSteps)
	}

	if *interactive {
		return runInteractiveConsole(k)
	}
	return nil
}

// runInteractiveConsole puts the host terminal into raw mode and forwards
// each keystroke byte into the keyboard driver's scancode path, letting a
// developer drive the emulated PS/2 keyboard from a real terminal.
func runInteractiveConsole(k *kernel.Kernel) error {
	if k.Keyboard == nil {
		return fmt.Errorf("interactive console requested but the keyboard driver is disabled")
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return fmt.Errorf("interactive console requires a real terminal on stdin")
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("entering raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			if buf[0] == 0x03 { // Ctrl-C exits the interactive session
				return nil
			}
			k.Keyboard.HandleScancode(hostByteToScancode(buf[0]))
		}
		if err != nil {
			return nil
		}
	}
}

// hostByteToScancode is a deliberately coarse mapping from a host ASCII
// keystroke to a scancode-set-1 make code, enough to exercise the
// keyboard driver interactively without a real PS/2 link.
func hostByteToScancode(b byte) byte {
	switch {
	case b >= 'a' && b <= 'z':
		return asciiLowerToScancode[b-'a']
	default:
		return 0
	}
}

var asciiLowerToScancode = [26]byte{
	0x1E, 0x30, 0x2E, 0x20, 0x12, 0x21, 0x22, 0x23, 0x17, 0x24,
	0x25, 0x26, 0x32, 0x31, 0x18, 0x19, 0x10, 0x13, 0x1F, 0x14,
	0x16, 0x2F, 0x11, 0x2D, 0x15, 0x2C,
}
