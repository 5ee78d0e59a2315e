package heap

import (
	"fmt"

	"heapwalk/internal/ptr"
)

// LayoutAt validates the tag at addr and returns its layout. An
// unregistered tag is a fault: without a size the heap cannot be walked.
func (a *Arena) LayoutAt(addr uint32) Layout {
	l, _, f := a.measure(addr)
	if f != nil && l.HeaderWords == 0 {
		a.raise(f)
	}
	return l
}

// ObjectWords returns the size in words of the object at addr, header
// included.
func (a *Arena) ObjectWords(addr uint32) uint32 {
	_, words, f := a.measure(addr)
	if f != nil {
		a.raise(f)
	}
	return words
}

// ObjectSize returns the size in bytes of the object at addr.
func (a *Arena) ObjectSize(addr uint32) uint32 {
	return a.ObjectWords(addr) * ptr.WordSize
}

// CheckSize is ObjectSize returning the violation instead of faulting.
// Diagnostic output uses it to stop at a corrupt object.
func (a *Arena) CheckSize(addr uint32) (uint32, error) {
	_, words, f := a.measure(addr)
	if f != nil {
		return 0, f
	}
	return words * ptr.WordSize, nil
}

// measure reads the tag and count word at addr without faulting.
func (a *Arena) measure(addr uint32) (Layout, uint32, *Fault) {
	if !ptr.Aligned(addr) {
		return Layout{}, 0, &Fault{Code: FaultMisaligned, Addr: addr, Message: "object header at unaligned address"}
	}
	if !a.Contains(addr, ptr.WordSize) {
		return Layout{}, 0, a.boundsFault(addr, ptr.WordSize)
	}
	t := Tag(a.Word(addr))
	l, ok := LayoutOf(t)
	if !ok {
		return Layout{}, 0, &Fault{Code: FaultUnknownTag, Addr: addr, Message: fmt.Sprintf("unknown object tag %d", uint32(t))}
	}
	if t == TagFwdPtr {
		return a.forwardedExtent(addr, l)
	}
	if l.Var == VarNone {
		if !a.Contains(addr, l.HeaderWords*ptr.WordSize) {
			return l, 0, a.boundsFault(addr, l.HeaderWords*ptr.WordSize)
		}
		return l, l.HeaderWords, nil
	}
	countAt := wordAddr(addr, l.CountWord)
	if !a.Contains(countAt, ptr.WordSize) {
		return l, 0, a.boundsFault(countAt, ptr.WordSize)
	}
	n := a.Word(countAt)
	var body uint64
	switch l.Var {
	case VarWords:
		body = uint64(n)
	case VarBytes:
		body = (uint64(n) + ptr.WordSize - 1) / ptr.WordSize
	}
	total := uint64(l.HeaderWords) + body
	if total*ptr.WordSize > uint64(a.End()-addr) {
		return l, 0, &Fault{
			Code:    FaultOutOfBounds,
			Addr:    addr,
			Message: fmt.Sprintf("%s of %d words extends past arena end %#x", l.Name, total, a.End()),
		}
	}
	return l, uint32(total), nil
}

// MaxForwardHops bounds a chain of forwarding pointers.
const MaxForwardHops = 64

// forwardedExtent measures a forwarding pointer. Only its header is
// rewritten when an object moves, so the stale body stays in place and the
// old extent equals the size of the relocated copy at the end of the chain.
func (a *Arena) forwardedExtent(addr uint32, l Layout) (Layout, uint32, *Fault) {
	at := addr
	for hop := 0; hop <= MaxForwardHops; hop++ {
		if !a.Contains(at, l.HeaderWords*ptr.WordSize) {
			return l, 0, a.boundsFault(at, l.HeaderWords*ptr.WordSize)
		}
		fwd := ptr.Value(a.Word(wordAddr(at, 1)))
		if fwd.IsScalar() {
			return l, 0, &Fault{Code: FaultScalarDeref, Addr: at, Message: fmt.Sprintf("forwarding pointer holds scalar %s", fwd)}
		}
		at = fwd.Unskew()
		if !ptr.Aligned(at) {
			return l, 0, &Fault{Code: FaultMisaligned, Addr: at, Message: "forwarding target at unaligned address"}
		}
		if !a.Contains(at, ptr.WordSize) {
			return l, 0, a.boundsFault(at, ptr.WordSize)
		}
		if Tag(a.Word(at)) == TagFwdPtr {
			continue
		}
		_, words, f := a.measure(at)
		if f != nil {
			return l, 0, f
		}
		if uint64(words)*ptr.WordSize > uint64(a.End()-addr) {
			return l, 0, &Fault{
				Code:    FaultOutOfBounds,
				Addr:    addr,
				Message: fmt.Sprintf("forwarded extent of %d words extends past arena end %#x", words, a.End()),
			}
		}
		return l, words, nil
	}
	return l, 0, &Fault{Code: FaultForwardLoop, Addr: addr, Message: fmt.Sprintf("forwarding chain longer than %d hops", MaxForwardHops)}
}
