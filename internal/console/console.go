// Package console is the kernel's write-only output side channel: spec.md
// treats it as a support library whose contract ("the kernel reports
// success via the console", syscall write() for fd=1) is specified but
// whose internals are not. Modelled as a trimmed single-directional
// relative of the teacher's Serial16550 (internal/devices/amd64/serial):
// an io.Writer sink plus a byte counter, without the full 16550 register
// set this kernel has no guest-visible UART to expose.
package console

import (
	"io"
	"sync"
)

// Console is the process-wide console singleton.
type Console struct {
	mu      sync.Mutex
	out     io.Writer
	txBytes uint64
}

// New wraps out (os.Stdout in cmd/y4ku, a bytes.Buffer in tests) as the
// kernel console.
func New(out io.Writer) *Console {
	return &Console{out: out}
}

// Write implements io.Writer so the console can be handed to slog and the
// write() syscall alike.
func (c *Console) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.out.Write(p)
	c.txBytes += uint64(n)
	return n, err
}

// WriteString is a convenience wrapper for the common case.
func (c *Console) WriteString(s string) (int, error) {
	return c.Write([]byte(s))
}

// BytesWritten returns the total number of bytes sent to the console.
func (c *Console) BytesWritten() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.txBytes
}
