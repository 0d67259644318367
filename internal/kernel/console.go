// Package kernel provides the collaborators a heap bootstrap needs from the
// rest of a hobby kernel: a console to report through, the page-mapper and
// frame-allocator interfaces the bootstrap procedure drives, and the
// bootstrap procedure itself.
package kernel

import (
	"fmt"
	"io"

	"github.com/kestrel-kernel/kestrel/internal/allocator"
)

// Console is anything the kernel can print diagnostics to. A real boot
// target implements it over a VGA buffer or a serial port; cmd/kestrel-kernel
// wraps os.Stdout in a SerialConsole.
type Console interface {
	io.Writer
}

// SerialConsole adapts an io.Writer (a real 16550 UART driver, or in this
// hosted build, os.Stdout) to Console.
type SerialConsole struct {
	out io.Writer
}

// NewSerialConsole wraps w as a Console.
func NewSerialConsole(w io.Writer) *SerialConsole {
	return &SerialConsole{out: w}
}

func (c *SerialConsole) Write(p []byte) (int, error) {
	return c.out.Write(p)
}

// Printf writes a formatted message to c inside WithoutInterrupts. It never
// returns an error: a console write failing is not something the kernel can
// recover from, so callers are not expected to check.
func Printf(c Console, format string, args ...interface{}) {
	WithoutInterrupts(func() {
		fmt.Fprintf(c, format, args...)
	})
}

// globalInterruptLock serializes DisableInterrupts/EnableInterrupts so that
// WithoutInterrupts calls from concurrent goroutines (standing in for
// concurrent interrupt contexts) do not interleave their save and restore of
// the flag. The lock is not reentrant: a WithoutInterrupts call nested inside
// another on the same goroutine spins forever. A real kernel needs no such
// lock because disabling interrupts is inherently single-threaded per core;
// this hosted build needs one because goroutines really do run concurrently.
var globalInterruptLock allocator.Spinlock

// interruptsEnabled stands in for the CPU's IF flag.
var interruptsEnabled = true

// DisableInterrupts is a placeholder for the x86_64 cli instruction.
func DisableInterrupts() {
	interruptsEnabled = false
}

// EnableInterrupts is a placeholder for the x86_64 sti instruction.
func EnableInterrupts() {
	interruptsEnabled = true
}

// InterruptsEnabled reports the simulated interrupt flag.
func InterruptsEnabled() bool {
	return interruptsEnabled
}

// WithoutInterrupts disables interrupts, runs fn, and restores the prior
// interrupt state. Any code that locks the heap from a context that could
// also be entered by an interrupt handler must go through here; the
// allocator itself never disables interrupts on its own.
func WithoutInterrupts(fn func()) {
	globalInterruptLock.Lock()
	defer globalInterruptLock.Unlock()

	wasEnabled := interruptsEnabled
	if wasEnabled {
		DisableInterrupts()
	}

	defer func() {
		if wasEnabled {
			EnableInterrupts()
		}
	}()

	fn()
}
