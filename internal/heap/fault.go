package heap

import (
	"errors"
	"fmt"

	"heapwalk/internal/abi"
)

// FaultCode identifies a heap integrity violation.
type FaultCode int

// Stable fault codes - do not change values.
const (
	FaultUnknownTag  FaultCode = 2001 // RTS2001: unregistered tag
	FaultOutOfBounds FaultCode = 2002 // RTS2002: read outside the arena
	FaultZeroSize    FaultCode = 2003 // RTS2003: object of size zero
	FaultOvershoot   FaultCode = 2004 // RTS2004: scan advanced past heap end
	FaultMisaligned  FaultCode = 2005 // RTS2005: address not word aligned
	FaultScalarDeref FaultCode = 2006 // RTS2006: scalar used as a reference
	FaultHeapFull    FaultCode = 2007 // RTS2007: builder ran out of arena
	FaultBadMutation FaultCode = 2008 // RTS2008: write to an immutable field
	FaultForwardLoop FaultCode = 2009 // RTS2009: forwarding chain does not end
	FaultBadRoots    FaultCode = 2010 // RTS2010: static roots are not an array
	FaultBadForward  FaultCode = 2011 // RTS2011: forwarding to an object of another size
)

// String returns the code as "RTS2001" format.
func (c FaultCode) String() string {
	return fmt.Sprintf("RTS%d", c)
}

// Fault is an unrecoverable heap integrity violation.
type Fault struct {
	Code    FaultCode
	Addr    uint32
	Message string
}

// Error implements the error interface.
func (f *Fault) Error() string {
	return fmt.Sprintf("fault %s at %#x: %s", f.Code, f.Addr, f.Message)
}

// Fault reports an unrecoverable violation: the message goes through the
// host trap, which never returns. Without a host it panics with the *Fault.
func (a *Arena) Fault(code FaultCode, addr uint32, format string, args ...any) {
	a.raise(&Fault{Code: code, Addr: addr, Message: fmt.Sprintf(format, args...)})
}

func (a *Arena) raise(f *Fault) {
	if a != nil && a.host != nil {
		a.host.Trap([]byte(f.Error()))
	}
	panic(f)
}

func (a *Arena) boundsFault(addr, n uint32) *Fault {
	return &Fault{
		Code:    FaultOutOfBounds,
		Addr:    addr,
		Message: fmt.Sprintf("access of %d bytes outside arena [%#x, %#x)", n, a.base, a.End()),
	}
}

// Guard runs fn and converts a fault or trap raised inside it into an
// error. Diagnostic tooling uses it to report a corrupted image instead of
// exiting. Any other panic is re-raised.
func Guard(fn func()) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		var f *Fault
		var te *abi.TrapError
		if e, ok := r.(error); ok && (errors.As(e, &f) || errors.As(e, &te)) {
			err = e
			return
		}
		panic(r)
	}()
	fn()
	return nil
}

// AsFault extracts the *Fault from err, if any.
func AsFault(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
