// Package scan iterates a heap region object by object in address order.
//
// The region must be a gap-free sequence of valid objects. A zero size or a
// cursor that passes the region end means a corrupted tag or size word and
// is a fault.
package scan

import (
	"heapwalk/internal/heap"
	"heapwalk/internal/ptr"
)

// Func is called for every object in the region. Returning false stops
// the scan.
type Func func(obj heap.Object) bool

// Scan visits every object in [base, end) and returns how many it visited.
func Scan(a *heap.Arena, base, end uint32, fn Func) int {
	if end < base {
		a.Fault(heap.FaultOvershoot, base, "heap end %#x below heap base", end)
	}
	n := 0
	for p := base; p != end; {
		obj := a.Decode(p)
		size := obj.Words() * ptr.WordSize
		if size == 0 {
			a.Fault(heap.FaultZeroSize, p, "%s of size zero", obj.Tag())
		}
		if uint64(p)+uint64(size) > uint64(end) {
			a.Fault(heap.FaultOvershoot, p, "%s of %d bytes overshoots heap end %#x", obj.Tag(), size, end)
		}
		n++
		if !fn(obj) {
			return n
		}
		p += size
	}
	return n
}

// Bytes sums object sizes over [base, end). For a valid heap the result is
// end - base.
func Bytes(a *heap.Arena, base, end uint32) uint64 {
	var total uint64
	Scan(a, base, end, func(obj heap.Object) bool {
		total += uint64(obj.Words()) * ptr.WordSize
		return true
	})
	return total
}
