package syscall

import (
	"github.com/y4ku-os/kernel/internal/console"
	"github.com/y4ku-os/kernel/internal/ioport"
	"github.com/y4ku-os/kernel/internal/process"
)

// Canonical syscall numbers, per spec.md §4.3's stable numbering
// requirement ("a stable name" per number).
const (
	SysExit uint32 = iota
	SysFork
	SysRead
	SysWrite
	SysOpen
	SysClose
	SysWaitpid
	SysExecve
	SysGetpid
	SysGetppid
	SysBrk
	SysGetcwd
	SysChdir
	SysTime
	SysUname
	SysReboot
	SysMmap
	SysMunmap
	SysIoctl
	SysFcntl
	SysSelect
	SysPoll
	SysDLLoadLibrary
	SysDLUnloadLibrary
	SysDLFindSymbol
	SysDLGetError
)

var canonicalNames = map[uint32]string{
	SysExit: "exit", SysFork: "fork", SysRead: "read", SysWrite: "write",
	SysOpen: "open", SysClose: "close", SysWaitpid: "waitpid", SysExecve: "execve",
	SysGetpid: "getpid", SysGetppid: "getppid", SysBrk: "brk", SysGetcwd: "getcwd",
	SysChdir: "chdir", SysTime: "time", SysUname: "uname", SysReboot: "reboot",
	SysMmap: "mmap", SysMunmap: "munmap", SysIoctl: "ioctl", SysFcntl: "fcntl",
	SysSelect: "select", SysPoll: "poll",
	SysDLLoadLibrary: "dl_load_library", SysDLUnloadLibrary: "dl_unload_library",
	SysDLFindSymbol: "dl_find_symbol", SysDLGetError: "dl_get_error",
}

const (
	rebootMagic1 = 0x01234567
	rebootMagic2 = 0x89ABCDEF

	kbdControllerPort = 0x64
	kbdResetCommand   = 0xFE
	qemuResetPort     = 0xFE
)

func unsupported(*Context) uint64 { return uint64(ErrUnsupported) }

// RegisterCanonical installs the canonical syscall set of spec.md §4.3.
// exit, write (fd=1 only), getpid, getppid, and reboot get working
// semantics; the rest return UNSUPPORTED until a process/FS subsystem
// exists, matching the spec's minimum-viable-core requirement.
func RegisterCanonical(t *Table, procs *process.Table, con *console.Console, bus *ioport.Bus) {
	for num, name := range canonicalNames {
		t.Register(num, name, unsupported)
	}

	t.Register(SysExit, canonicalNames[SysExit], func(ctx *Context) uint64 {
		if ctx.Process != nil {
			procs.Exit(ctx.Process.PID)
		}
		return 0
	})

	t.Register(SysWrite, canonicalNames[SysWrite], func(ctx *Context) uint64 {
		fd := ctx.Args[0]
		if fd != 1 || con == nil {
			return uint64(ErrUnsupported)
		}
		// Args[1] is a guest buffer pointer in a real implementation; this
		// hosted model has no guest address space to read from, so it
		// takes the payload directly as up to 8 inline bytes packed into
		// Args[1], written least-significant-byte first, for Args[2] bytes.
		n := ctx.Args[2]
		if n == 0 || n > 8 {
			return 0
		}
		buf := make([]byte, n)
		for i := uint64(0); i < n; i++ {
			buf[i] = byte(ctx.Args[1] >> (8 * i))
		}
		written, err := con.Write(buf)
		if err != nil {
			return uint64(ErrUnsupported)
		}
		return uint64(written)
	})

	t.Register(SysGetpid, canonicalNames[SysGetpid], func(ctx *Context) uint64 {
		if ctx.Process == nil {
			return 0
		}
		return uint64(ctx.Process.PID)
	})

	t.Register(SysGetppid, canonicalNames[SysGetppid], func(ctx *Context) uint64 {
		if ctx.Process == nil {
			return 0
		}
		return uint64(ctx.Process.ParentPID)
	})

	t.Register(SysReboot, canonicalNames[SysReboot], func(ctx *Context) uint64 {
		if ctx.Args[0] != rebootMagic1 || ctx.Args[1] != rebootMagic2 {
			return uint64(ErrUnsupported)
		}
		if bus != nil {
			bus.Outb(qemuResetPort, 0)
			bus.Outb(kbdControllerPort, kbdResetCommand)
		}
		return 0
	})
}
