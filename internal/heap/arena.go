// Package heap implements the tagged object model of the runtime heap: a
// flat byte arena addressed by absolute 32-bit addresses, the per-tag layout
// registry, and the validated decode step that turns an address into a
// typed object view.
//
// Every read is bounds-checked against the arena. Integrity violations are
// faults (see Fault); they are not recoverable by the runtime itself.
package heap

import (
	"encoding/binary"
	"fmt"
	"math"

	"fortio.org/safecast"

	"heapwalk/internal/abi"
	"heapwalk/internal/ptr"
)

// Arena is a contiguous byte region holding heap objects. Address base
// maps to mem[0].
type Arena struct {
	base uint32
	mem  []byte
	host abi.Host
}

// NewArena allocates a zeroed arena of size bytes starting at base.
func NewArena(base uint32, size int) (*Arena, error) {
	return Load(base, make([]byte, size))
}

// Load wraps data as an arena starting at base. The slice is not copied.
func Load(base uint32, data []byte) (*Arena, error) {
	if !ptr.Aligned(base) {
		return nil, fmt.Errorf("heap: base %#x is not word aligned", base)
	}
	size, err := safecast.Conv[uint32](len(data))
	if err != nil {
		return nil, fmt.Errorf("heap: arena size %d: %w", len(data), err)
	}
	if size%ptr.WordSize != 0 {
		return nil, fmt.Errorf("heap: arena size %d is not a whole number of words", size)
	}
	if uint64(base)+uint64(size) > math.MaxUint32 {
		return nil, fmt.Errorf("heap: arena [%#x, +%d) exceeds the 32-bit address space", base, size)
	}
	return &Arena{base: base, mem: data}, nil
}

// SetHost installs the host whose trap receives fault messages.
func (a *Arena) SetHost(h abi.Host) { a.host = h }

// Host returns the installed host, or nil.
func (a *Arena) Host() abi.Host { return a.host }

// Base returns the first address of the arena.
func (a *Arena) Base() uint32 { return a.base }

// End returns the first address past the arena.
func (a *Arena) End() uint32 { return a.base + uint32(len(a.mem)) }

// Data exposes the raw arena bytes.
func (a *Arena) Data() []byte { return a.mem }

// Contains reports whether [addr, addr+n) lies inside the arena.
func (a *Arena) Contains(addr, n uint32) bool {
	if addr < a.base {
		return false
	}
	return uint64(addr-a.base)+uint64(n) <= uint64(len(a.mem))
}

func (a *Arena) offset(addr, n uint32) uint32 {
	if !a.Contains(addr, n) {
		a.raise(a.boundsFault(addr, n))
	}
	return addr - a.base
}

// Word reads the word at addr.
func (a *Arena) Word(addr uint32) uint32 {
	if !ptr.Aligned(addr) {
		a.Fault(FaultMisaligned, addr, "word read at unaligned address")
	}
	off := a.offset(addr, ptr.WordSize)
	return binary.LittleEndian.Uint32(a.mem[off:])
}

// SetWord writes the word at addr.
func (a *Arena) SetWord(addr, w uint32) {
	if !ptr.Aligned(addr) {
		a.Fault(FaultMisaligned, addr, "word write at unaligned address")
	}
	off := a.offset(addr, ptr.WordSize)
	binary.LittleEndian.PutUint32(a.mem[off:], w)
}

// Value reads the word at addr as a heap Value.
func (a *Arena) Value(addr uint32) ptr.Value {
	return ptr.Value(a.Word(addr))
}

// Bytes returns a view of n bytes at addr. The view aliases the arena.
func (a *Arena) Bytes(addr, n uint32) []byte {
	off := a.offset(addr, n)
	return a.mem[off : off+n : off+n]
}

// ReadBytes is Bytes reporting a range error instead of faulting.
func (a *Arena) ReadBytes(addr, n uint32) ([]byte, error) {
	if !a.Contains(addr, n) {
		return nil, fmt.Errorf("heap: range %#x+%d outside arena [%#x, %#x)", addr, n, a.base, a.End())
	}
	off := addr - a.base
	return a.mem[off : off+n : off+n], nil
}

// TagAt reads the raw tag word at addr without validating it.
func (a *Arena) TagAt(addr uint32) Tag {
	return Tag(a.Word(addr))
}

// Deref unskews v, faulting when v is a scalar.
func (a *Arena) Deref(v ptr.Value) uint32 {
	if v.IsScalar() {
		a.Fault(FaultScalarDeref, 0, "dereference of scalar %s", v)
	}
	return v.Unskew()
}

func wordAddr(addr, index uint32) uint32 {
	return addr + index*ptr.WordSize
}
