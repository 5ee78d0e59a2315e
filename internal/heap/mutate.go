package heap

import "heapwalk/internal/ptr"

// SetField overwrites the contents of a MutBox or ObjInd. All other
// shapes are immutable once written.
func (a *Arena) SetField(box ptr.Value, v ptr.Value) {
	addr := a.Deref(box)
	switch t := a.TagAt(addr); t {
	case TagMutBox, TagObjInd:
		a.SetWord(wordAddr(addr, 1), uint32(v))
	default:
		a.Fault(FaultBadMutation, addr, "SetField on %s", t)
	}
}

// SetElem overwrites element i of an Array.
func (a *Arena) SetElem(arr ptr.Value, i uint32, v ptr.Value) {
	addr := a.Deref(arr)
	if t := a.TagAt(addr); t != TagArray {
		a.Fault(FaultBadMutation, addr, "SetElem on %s", t)
	}
	n := a.Word(wordAddr(addr, 1))
	if i >= n {
		a.Fault(FaultOutOfBounds, addr, "array index %d out of bounds for length %d", i, n)
	}
	a.SetWord(wordAddr(addr, 2+i), uint32(v))
}
