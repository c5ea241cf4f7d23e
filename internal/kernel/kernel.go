// Package kernel sequences the boot flow of spec.md §2 (L7): console
// init, multiboot magic check, CPU tables, interrupt dispatch, timer,
// drivers, syscall ABI, init process. Boot returns once the init process
// is spawned; there is no scheduler loop. Every
// bring-up step is idempotent-safe, and unrecoverable conditions go
// through Abort: console banner, disable interrupts, halt loop.
package kernel

import (
	"fmt"
	"log/slog"

	"github.com/y4ku-os/kernel/internal/bootconfig"
	"github.com/y4ku-os/kernel/internal/console"
	"github.com/y4ku-os/kernel/internal/cpu"
	"github.com/y4ku-os/kernel/internal/drivers/ata"
	"github.com/y4ku-os/kernel/internal/drivers/keyboard"
	"github.com/y4ku-os/kernel/internal/drivers/mouse"
	"github.com/y4ku-os/kernel/internal/drivers/pci"
	"github.com/y4ku-os/kernel/internal/interrupt"
	"github.com/y4ku-os/kernel/internal/ioport"
	"github.com/y4ku-os/kernel/internal/multiboot"
	"github.com/y4ku-os/kernel/internal/process"
	"github.com/y4ku-os/kernel/internal/syscall"
	"github.com/y4ku-os/kernel/internal/timer"
)

// Kernel owns every process-wide singleton table named in spec.md §3.
type Kernel struct {
	Console *console.Console
	Bus     *ioport.Bus
	GDT     *cpu.GDT
	IDT     *cpu.IDT
	PIC     *interrupt.PIC
	Dispatch *interrupt.Controller
	Timer   *timer.Timer
	RTC     *timer.RTC
	Keyboard *keyboard.Keyboard
	Mouse   *mouse.Mouse
	PCI     *pci.Scanner
	HostBridge *pci.HostBridge
	ATA     *ata.Channel
	Syscalls *syscall.Table
	Processes *process.Table

	log    *slog.Logger
	booted bool
}

// New constructs a Kernel with every table created but not yet brought
// up; tables are process-wide singletons created once and never
// destroyed, per spec.md §3.
func New(con *console.Console, log *slog.Logger) *Kernel {
	if log == nil {
		log = slog.Default()
	}
	return &Kernel{
		Console:   con,
		Bus:       ioport.New(),
		Processes: process.New(),
		log:       log,
	}
}

// Abort implements spec.md §7's panic effect: a console banner, interrupts
// disabled, then a halt loop the caller is expected to enter (modelled
// here by leaving the bus halted; this hosted kernel cannot truly loop
// forever without blocking its caller). reason identifies the panic call
// site; detail carries any call-site-specific text (e.g. the bad magic
// value) appended to reason's fixed banner prefix.
func (k *Kernel) Abort(reason PanicReason, detail, file string, line int) {
	if k.Console != nil {
		fmt.Fprintf(k.Console, "PANIC: %s: %s (%s:%d)\n", reason, detail, file, line)
	}
	k.Bus.Cli()
	k.Bus.Halt()
}

// Boot runs the sequenced bring-up of spec.md §2. It is idempotent: a
// second call returns immediately without side effect.
func (k *Kernel) Boot(magic uint32, info multiboot.Info, cfg bootconfig.Config) error {
	if k.booted {
		return nil
	}

	if err := multiboot.CheckMagic(magic); err != nil {
		k.Abort(PanicBadBootloaderMagic, err.Error(), "kernel.go", 0)
		return err
	}
	k.logf("multiboot magic verified")
	if info.HasMemoryMap() {
		for _, r := range info.AvailableRegions() {
			k.logf("memory region base=0x%x len=0x%x", r.Addr, r.Len)
		}
	}

	k.GDT = cpu.NewGDT()
	k.GDT.Flush()
	k.IDT = cpu.NewIDT(k.GDT.KernelCodeSelector())
	k.logf("cpu tables initialised")

	k.PIC = interrupt.NewPIC()
	if err := k.PIC.Attach(k.Bus); err != nil {
		return fmt.Errorf("kernel: attaching PIC: %w", err)
	}
	k.Dispatch = interrupt.NewController(k.PIC, k.IDT, k.log, func() { k.Bus.Halt() })
	k.logf("interrupt dispatch ready")

	freq := cfg.TimerFrequencyHz
	if freq == 0 {
		freq = 1000
	}
	k.Timer = timer.New(k.Bus, freq)
	k.RTC = timer.NewRTC(k.Bus, nil)
	k.Dispatch.RegisterIRQHandler(0, func(uint8) { k.Timer.Tick() })
	k.logf("timer armed at %d Hz", freq)

	if cfg.Drivers.Keyboard {
		k.Keyboard = keyboard.New()
		k.Keyboard.Init(k.Bus, k.Dispatch)
	}
	if cfg.Drivers.Mouse {
		k.Mouse = mouse.New(cfg.Drivers.WheelMouse)
		k.Mouse.Init(k.Bus, k.Dispatch)
	}
	if cfg.Drivers.PCI {
		k.HostBridge = pci.NewHostBridge()
		if err := k.Bus.Register(k.HostBridge); err != nil {
			return fmt.Errorf("kernel: attaching PCI host bridge: %w", err)
		}
		k.PCI = pci.NewScanner(k.Bus)
		k.PCI.Scan()
	}
	if cfg.Drivers.ATA {
		k.ATA = ata.NewChannel(k.Bus)
	}
	k.logf("drivers initialised")

	k.Syscalls = syscall.New(k.log)
	syscall.RegisterCanonical(k.Syscalls, k.Processes, k.Console, k.Bus)
	k.logf("syscall ABI ready")

	k.Processes.Spawn(0, process.PrivilegeUser)
	k.logf("init process spawned")

	k.booted = true
	return nil
}

// Booted reports whether Boot has completed successfully.
func (k *Kernel) Booted() bool { return k.booted }

func (k *Kernel) logf(format string, args ...any) {
	if k.log != nil {
		k.log.Info(fmt.Sprintf(format, args...))
	}
}
