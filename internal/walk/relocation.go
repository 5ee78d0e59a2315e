package walk

import (
	"heapwalk/internal/heap"
	"heapwalk/internal/scan"
)

// Relocations maps an object's old address to the address of its
// relocated copy. It is the output of a compaction phase, either recorded
// while moving objects (heap.Builder.Relocations) or recovered afterwards
// with CollectForwarding.
type Relocations map[uint32]uint32

// Resolve returns the relocated address of addr, if it moved.
func (r Relocations) Resolve(addr uint32) (uint32, bool) {
	to, ok := r[addr]
	return to, ok
}

// CollectForwarding builds the relocation map of [base, end) from the
// forwarding pointers left in it. A forwarding pointer spans the extent of
// the object it replaced, so the region stays scannable.
func CollectForwarding(a *heap.Arena, base, end uint32) Relocations {
	rel := make(Relocations)
	scan.Scan(a, base, end, func(obj heap.Object) bool {
		if fwd, ok := obj.(heap.FwdPtr); ok {
			rel[fwd.Addr()] = a.Deref(fwd.Fwd)
		}
		return true
	})
	return rel
}
