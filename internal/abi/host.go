// Package abi holds the host-callable bridges of the runtime: a trap that
// aborts with a message and a print channel for textual output. They are
// the only way the runtime talks to its surrounding environment.
package abi

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Host is the environment the runtime is embedded in.
type Host interface {
	// Trap aborts execution with msg. It never returns.
	Trap(msg []byte)
	// Print emits one line of diagnostic text.
	Print(msg []byte)
}

// TrapError is the panic payload raised by PanicHost.Trap.
type TrapError struct {
	Message string
}

// Error implements the error interface.
func (e *TrapError) Error() string {
	return "RTS trap: " + e.Message
}

// PanicHost traps by panicking with *TrapError and prints to Out.
// It is the host used by tests and by tooling that must survive a trap.
type PanicHost struct {
	Out io.Writer
}

// Trap panics with a *TrapError.
func (h PanicHost) Trap(msg []byte) {
	panic(&TrapError{Message: string(msg)})
}

// Print writes msg followed by a newline to Out, if set.
func (h PanicHost) Print(msg []byte) {
	if h.Out == nil {
		return
	}
	// Best-effort write - printing must never fail the runtime
	_, _ = fmt.Fprintf(h.Out, "%s\n", msg) //nolint:errcheck
}

// StdHost is the process host: prints go to Out, traps go to Err and end
// the process through Exit.
type StdHost struct {
	Out  io.Writer
	Err  io.Writer
	Exit func(code int)

	mu sync.Mutex
}

// NewStdHost returns a host bound to the process standard streams.
func NewStdHost() *StdHost {
	return &StdHost{Out: os.Stdout, Err: os.Stderr, Exit: os.Exit}
}

// Print writes "[RTS] msg".
func (h *StdHost) Print(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, _ = fmt.Fprintf(h.Out, "[RTS] %s\n", msg) //nolint:errcheck
}

// Trap writes "RTS trap: msg" and exits with status 1.
func (h *StdHost) Trap(msg []byte) {
	h.mu.Lock()
	_, _ = fmt.Fprintf(h.Err, "RTS trap: %s\n", msg) //nolint:errcheck
	h.mu.Unlock()
	exit := h.Exit
	if exit == nil {
		exit = os.Exit
	}
	exit(1)
	// Exit is injectable; a returning Exit still must not resume the caller.
	panic(&TrapError{Message: string(msg)})
}

// Recorder collects printed lines in memory. Traps panic with *TrapError.
type Recorder struct {
	Lines []string
}

// Print appends msg to Lines.
func (r *Recorder) Print(msg []byte) {
	r.Lines = append(r.Lines, string(msg))
}

// Trap panics with a *TrapError.
func (r *Recorder) Trap(msg []byte) {
	panic(&TrapError{Message: string(msg)})
}
