package syscall

import (
	"bytes"
	"testing"

	"github.com/y4ku-os/kernel/internal/console"
	"github.com/y4ku-os/kernel/internal/process"
)

func TestDispatchBadNumber(t *testing.T) {
	tbl := New(nil)
	ret := tbl.Dispatch(&Context{Num: 300})
	if ret != uint64(ErrBadNumber) {
		t.Fatalf("ret = %x, want ErrBadNumber", ret)
	}
	if tbl.Snapshot().FailedCalls != 1 {
		t.Fatalf("expected FailedCalls incremented")
	}
}

func TestDispatchUnregistered(t *testing.T) {
	tbl := New(nil)
	ret := tbl.Dispatch(&Context{Num: 5})
	if ret != uint64(ErrUnregistered) {
		t.Fatalf("ret = %x, want ErrUnregistered", ret)
	}
}

func TestRegisterRejectsOutOfRangeAndNil(t *testing.T) {
	tbl := New(nil)
	if tbl.Register(300, "bad", func(*Context) uint64 { return 0 }) {
		t.Fatalf("expected rejection of out-of-range syscall number")
	}
	if tbl.Register(1, "nilfn", nil) {
		t.Fatalf("expected rejection of nil handler")
	}
}

func TestPermissionDeniedForUserCallingSystemOnlyEntry(t *testing.T) {
	tbl := New(nil)
	tbl.Register(10, "restricted", func(*Context) uint64 { return 42 })
	tbl.SetPermission(10, process.PrivilegeSystem)

	proc := &process.Handle{PID: 1, Privilege: process.PrivilegeUser}
	ret := tbl.Dispatch(&Context{Num: 10, Process: proc})
	if ret != uint64(ErrPermissionDenied) {
		t.Fatalf("ret = %x, want ErrPermissionDenied", ret)
	}
	if tbl.Snapshot().PermissionDenied != 1 {
		t.Fatalf("expected PermissionDenied incremented")
	}
}

func TestKernelCallerBypassesPermissionCheck(t *testing.T) {
	tbl := New(nil)
	tbl.Register(10, "restricted", func(*Context) uint64 { return 42 })
	tbl.SetPermission(10, process.PrivilegeSystem)

	ret := tbl.Dispatch(&Context{Num: 10, Process: nil})
	if ret != 42 {
		t.Fatalf("ret = %d, want 42 (kernel caller bypasses permission mask)", ret)
	}
}

func TestSuccessfulDispatchIncrementsCallsByType(t *testing.T) {
	tbl := New(nil)
	tbl.Register(7, "seven", func(*Context) uint64 { return 7 })
	tbl.Dispatch(&Context{Num: 7})
	tbl.Dispatch(&Context{Num: 7})
	snap := tbl.Snapshot()
	if snap.CallsByType[7] != 2 {
		t.Fatalf("CallsByType[7] = %d, want 2", snap.CallsByType[7])
	}
	if snap.TotalCalls != 2 {
		t.Fatalf("TotalCalls = %d, want 2", snap.TotalCalls)
	}
}

func TestCanonicalExitGetpidGetppid(t *testing.T) {
	tbl := New(nil)
	procs := process.New()
	var buf bytes.Buffer
	con := console.New(&buf)
	RegisterCanonical(tbl, procs, con, nil)

	proc := procs.Spawn(0, process.PrivilegeUser)
	ret := tbl.Dispatch(&Context{Num: SysGetpid, Process: proc})
	if ret != uint64(proc.PID) {
		t.Fatalf("getpid = %d, want %d", ret, proc.PID)
	}

	ret = tbl.Dispatch(&Context{Num: SysExit, Process: proc})
	if ret != 0 {
		t.Fatalf("exit returned %d, want 0", ret)
	}
	if procs.Current() != nil {
		t.Fatalf("expected current process cleared after exit")
	}
}

func TestCanonicalWriteGoesToConsoleOnlyForFD1(t *testing.T) {
	tbl := New(nil)
	procs := process.New()
	var buf bytes.Buffer
	con := console.New(&buf)
	RegisterCanonical(tbl, procs, con, nil)

	ret := tbl.Dispatch(&Context{Num: SysWrite, Args: [6]uint64{1, uint64('H'), 1}})
	if ret != 1 {
		t.Fatalf("write returned %d, want 1", ret)
	}
	if buf.String() != "H" {
		t.Fatalf("console got %q, want %q", buf.String(), "H")
	}

	ret = tbl.Dispatch(&Context{Num: SysWrite, Args: [6]uint64{2, uint64('X'), 1}})
	if ret != uint64(ErrUnsupported) {
		t.Fatalf("write to fd != 1 should be unsupported, got %x", ret)
	}
}

func TestCanonicalRebootRequiresBothMagicValues(t *testing.T) {
	tbl := New(nil)
	procs := process.New()
	RegisterCanonical(tbl, procs, nil, nil)

	ret := tbl.Dispatch(&Context{Num: SysReboot, Args: [6]uint64{0x01234567, 0}})
	if ret != uint64(ErrUnsupported) {
		t.Fatalf("reboot with one magic value should be unsupported, got %x", ret)
	}

	ret = tbl.Dispatch(&Context{Num: SysReboot, Args: [6]uint64{rebootMagic1, rebootMagic2}})
	if ret != 0 {
		t.Fatalf("reboot with both magic values should succeed, got %x", ret)
	}
}
