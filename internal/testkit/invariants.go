package testkit

import (
	"fmt"

	"fortio.org/safecast"

	"heapwalk/internal/heap"
	"heapwalk/internal/ptr"
	"heapwalk/internal/scan"
	"heapwalk/internal/walk"
)

// CheckHeapInvariants verifies [base, end) of a:
// 1) a linear scan tiles the region exactly, objects aligned and non-empty
// 2) every pointer field refers to the start of an object in the region
// 3) a unique walk from every object visits only scanned objects
// Faults are returned as errors.
func CheckHeapInvariants(a *heap.Arena, base, end uint32) error {
	var err error
	if gerr := heap.Guard(func() { err = checkHeap(a, base, end) }); gerr != nil {
		return gerr
	}
	return err
}

func checkHeap(a *heap.Arena, base, end uint32) error {
	starts := make(map[uint32]bool)
	var order []uint32
	next := base
	var bad error
	scan.Scan(a, base, end, func(obj heap.Object) bool {
		addr := obj.Addr()
		switch {
		case addr != next:
			bad = fmt.Errorf("object at %#x, expected %#x", addr, next)
		case !ptr.Aligned(addr):
			bad = fmt.Errorf("object at %#x is not aligned", addr)
		case obj.Words() == 0:
			bad = fmt.Errorf("object at %#x has no words", addr)
		}
		if bad != nil {
			return false
		}
		starts[addr] = true
		order = append(order, addr)
		next = addr + obj.Words()*ptr.WordSize
		return true
	})
	if bad != nil {
		return bad
	}
	if next != end {
		return fmt.Errorf("scan ended at %#x, heap ends at %#x", next, end)
	}

	for _, addr := range order {
		obj := a.Decode(addr)
		for i, v := range obj.Refs() {
			if v.IsScalar() {
				continue
			}
			if !starts[v.Unskew()] {
				return fmt.Errorf("field %d of %s at %#x points to %#x, not an object start", i, obj.Tag(), addr, v.Unskew())
			}
		}
	}

	w := walk.New(a, walk.Options{Unique: true})
	visited := 0
	for _, addr := range order {
		w.WalkAddr(addr, func(v walk.Visit) walk.Action {
			if !starts[v.Object.Addr()] {
				bad = fmt.Errorf("walk reached %#x outside the scanned heap", v.Object.Addr())
				return walk.Stop
			}
			visited++
			return walk.Continue
		})
		if bad != nil {
			return bad
		}
	}
	objects, err := safecast.Conv[int](len(order))
	if err != nil {
		return err
	}
	if visited != objects {
		return fmt.Errorf("unique walk visited %d objects, scan found %d", visited, objects)
	}
	return nil
}
