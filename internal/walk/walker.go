// Package walk visits every object reachable from a reference.
//
// The walker dispatches on the decoded shape of each object and follows
// its reference-bearing fields in declared order (pre-order, depth first).
// Scalars are leaves. The traversal runs on an explicit work-list owned by
// the Walker, so the depth of an indirection or rope chain is bounded by
// memory rather than by the call stack, and the arena is never written.
//
// The live object graph is acyclic by construction; the walker does not
// detect cycles. Options.Unique suppresses repeat visits of shared nodes.
package walk

import (
	"heapwalk/internal/heap"
	"heapwalk/internal/ptr"
)

// Mode selects how forwarding pointers are treated.
type Mode uint8

const (
	// ModeLive follows forwarding pointers to the relocated copy.
	ModeLive Mode = iota
	// ModeDiagnostic reports a forwarding pointer as a marker and stops.
	ModeDiagnostic
)

// String returns the string representation of Mode.
func (m Mode) String() string {
	switch m {
	case ModeLive:
		return "live"
	case ModeDiagnostic:
		return "diagnostic"
	default:
		return "unknown"
	}
}

// Action tells the walker how to proceed after a visit.
type Action uint8

const (
	// Continue descends into the object's fields.
	Continue Action = iota
	// SkipChildren does not descend into the object's fields.
	SkipChildren
	// Stop ends the walk.
	Stop
)

// Visit describes one visited object.
type Visit struct {
	Object heap.Object
	Depth  int
	// Parent is the address of the referring object, 0 for the root.
	Parent uint32
	// Field is the index of the reference in the parent, -1 for the root.
	Field int
	// Forwarded is set in ModeLive when Object was reached through a
	// forwarding pointer or the relocation map.
	Forwarded bool
}

// VisitFunc is called once per visited object.
type VisitFunc func(Visit) Action

// Options configure a Walker.
type Options struct {
	Mode Mode
	// Unique visits each address at most once until Reset.
	Unique bool
	// Relocations translates old addresses to relocated ones before
	// decoding (post-compaction traversal). Only used in ModeLive.
	Relocations Relocations
}

type frame struct {
	addr   uint32
	depth  int
	parent uint32
	field  int
}

// Walker traverses the object graph of one arena. It is not safe for
// concurrent use; reuse one Walker to keep its work-list warm.
type Walker struct {
	a     *heap.Arena
	opts  Options
	stack []frame
	seen  []uint64
}

// New returns a Walker over a.
func New(a *heap.Arena, opts Options) *Walker {
	w := &Walker{
		a:     a,
		opts:  opts,
		stack: make([]frame, 0, 64),
	}
	if opts.Unique {
		words := (a.End() - a.Base()) / ptr.WordSize
		w.seen = make([]uint64, words/64+1)
	}
	return w
}

// Options returns the walker configuration.
func (w *Walker) Options() Options { return w.opts }

// Arena returns the arena being walked.
func (w *Walker) Arena() *heap.Arena { return w.a }

// Reset forgets which addresses have been visited.
func (w *Walker) Reset() {
	clear(w.seen)
}

// Walk visits root and everything reachable from it. A scalar root visits
// nothing. It returns the number of objects visited.
func (w *Walker) Walk(root ptr.Value, fn VisitFunc) int {
	if root.IsScalar() {
		return 0
	}
	return w.WalkAddr(root.Unskew(), fn)
}

// WalkAddr visits the object at addr and everything reachable from it.
func (w *Walker) WalkAddr(addr uint32, fn VisitFunc) int {
	w.stack = append(w.stack[:0], frame{addr: addr, parent: 0, field: -1})
	visited := 0
	for len(w.stack) > 0 {
		f := w.stack[len(w.stack)-1]
		w.stack = w.stack[:len(w.stack)-1]

		obj, forwarded := w.resolve(f.addr)
		if w.seen != nil && w.markSeen(obj.Addr()) {
			continue
		}
		visited++
		act := fn(Visit{Object: obj, Depth: f.depth, Parent: f.parent, Field: f.field, Forwarded: forwarded})
		switch act {
		case Stop:
			w.stack = w.stack[:0]
			return visited
		case SkipChildren:
			continue
		}
		w.pushChildren(obj, f.depth+1)
	}
	return visited
}

// pushChildren pushes the pointer fields of obj in reverse so that they
// pop in declared order.
func (w *Walker) pushChildren(obj heap.Object, depth int) {
	for i := obj.NumRefs() - 1; i >= 0; i-- {
		v := obj.Ref(i)
		if v.IsScalar() {
			continue
		}
		w.stack = append(w.stack, frame{addr: v.Unskew(), depth: depth, parent: obj.Addr(), field: i})
	}
}

// resolve decodes the object at addr, applying relocation and forwarding
// according to the mode.
func (w *Walker) resolve(addr uint32) (heap.Object, bool) {
	if w.opts.Mode == ModeDiagnostic {
		return w.a.Decode(addr), false
	}
	forwarded := false
	if to, ok := w.opts.Relocations.Resolve(addr); ok {
		addr = to
		forwarded = true
	}
	for hop := 0; ; hop++ {
		obj := w.a.Decode(addr)
		fwd, ok := obj.(heap.FwdPtr)
		if !ok {
			return obj, forwarded
		}
		if hop == heap.MaxForwardHops {
			w.a.Fault(heap.FaultForwardLoop, addr, "forwarding chain longer than %d hops", heap.MaxForwardHops)
		}
		addr = w.a.Deref(fwd.Fwd)
		forwarded = true
	}
}

// markSeen records addr and reports whether it had been seen before.
func (w *Walker) markSeen(addr uint32) bool {
	i := (addr - w.a.Base()) / ptr.WordSize
	word, bit := i/64, uint64(1)<<(i%64)
	if w.seen[word]&bit != 0 {
		return true
	}
	w.seen[word] |= bit
	return false
}
