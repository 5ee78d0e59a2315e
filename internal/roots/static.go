package roots

import (
	"fmt"
	"iter"

	"heapwalk/internal/heap"
	"heapwalk/internal/ptr"
)

// StaticRoots is a read-only view of the array of always-reachable
// references populated by the generated program at startup.
type StaticRoots struct {
	arr heap.Array
}

// LoadStaticRoots decodes the static roots array v points to. The array is
// validated without faulting, so a corrupt reference never reaches the
// host trap.
func LoadStaticRoots(a *heap.Arena, v ptr.Value) (StaticRoots, error) {
	if v.IsScalar() {
		return StaticRoots{}, fmt.Errorf("static roots: %s is not a reference", v)
	}
	addr := v.Unskew()
	if _, err := a.CheckSize(addr); err != nil {
		return StaticRoots{}, fmt.Errorf("static roots: %w", err)
	}
	if t := a.TagAt(addr); t != heap.TagArray {
		return StaticRoots{}, fmt.Errorf("static roots: expected Array at %#x, found %s", addr, t)
	}
	return StaticRoots{arr: a.Decode(addr).(heap.Array)}, nil
}

// Addr returns the address of the underlying array.
func (s StaticRoots) Addr() uint32 { return s.arr.Addr() }

// Len returns the number of roots.
func (s StaticRoots) Len() uint32 { return s.arr.Len }

// At returns root i.
func (s StaticRoots) At(i uint32) ptr.Value { return s.arr.Elem(i) }

// FieldAddr returns the address of the word holding root i.
func (s StaticRoots) FieldAddr(i uint32) uint32 { return s.arr.ElemAddr(i) }

// All yields every root in order.
func (s StaticRoots) All() iter.Seq2[uint32, ptr.Value] {
	return func(yield func(uint32, ptr.Value) bool) {
		for i := uint32(0); i < s.arr.Len; i++ {
			if !yield(i, s.arr.Elem(i)) {
				return
			}
		}
	}
}
