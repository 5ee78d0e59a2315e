package abi

import "fmt"

// Memory gives the bridges read access to message bytes in the heap.
type Memory interface {
	ReadBytes(addr, n uint32) ([]byte, error)
}

// Bridge adapts address+length calls from generated code to a Host.
type Bridge struct {
	Host Host
	Mem  Memory
}

// RtsTrap aborts with the n-byte message at addr. It never returns.
func (b Bridge) RtsTrap(addr, n uint32) {
	msg, err := b.Mem.ReadBytes(addr, n)
	if err != nil {
		msg = fmt.Appendf(nil, "unreadable trap message at %#x (%d bytes): %v", addr, n, err)
	}
	b.Host.Trap(msg)
	panic(&TrapError{Message: string(msg)})
}

// PrintPtr prints the n-byte message at addr.
func (b Bridge) PrintPtr(addr, n uint32) error {
	msg, err := b.Mem.ReadBytes(addr, n)
	if err != nil {
		return fmt.Errorf("print: %w", err)
	}
	b.Host.Print(msg)
	return nil
}
