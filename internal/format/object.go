package format

import (
	"fmt"

	"heapwalk/internal/heap"
	"heapwalk/internal/ptr"
)

// Options tune rendering.
type Options struct {
	// Capacity is the size of each output line buffer.
	Capacity int
	// ArrayPreview is the number of array elements shown before "…".
	// Zero selects the default; a negative value shows none.
	ArrayPreview int
	// InlineDepth bounds how deep Object fields render their indirectee.
	// Zero selects the default; a negative value disables inlining.
	InlineDepth int
}

// DefaultOptions returns the stock rendering limits.
func DefaultOptions() Options {
	return Options{Capacity: DefaultCapacity, ArrayPreview: 10, InlineDepth: 4}
}

func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.Capacity <= 0 {
		o.Capacity = d.Capacity
	}
	switch {
	case o.ArrayPreview == 0:
		o.ArrayPreview = d.ArrayPreview
	case o.ArrayPreview < 0:
		o.ArrayPreview = 0
	}
	switch {
	case o.InlineDepth == 0:
		o.InlineDepth = d.InlineDepth
	case o.InlineDepth < 0:
		o.InlineDepth = 0
	}
	return o
}

// Printer renders objects of one arena. It reads the arena directly and
// never decodes through the faulting path.
type Printer struct {
	a    *heap.Arena
	opts Options
}

// NewPrinter returns a printer over a.
func NewPrinter(a *heap.Arena, opts Options) *Printer {
	return &Printer{a: a, opts: opts.normalized()}
}

// Options returns the printer configuration.
func (p *Printer) Options() Options { return p.opts }

// Value renders a scalar as <Scalar 0x..> and a reference as its object.
func Value(s *Sink, a *heap.Arena, v ptr.Value) {
	NewPrinter(a, DefaultOptions()).Value(s, v)
}

// Object renders the object at addr.
func Object(s *Sink, a *heap.Arena, addr uint32) {
	NewPrinter(a, DefaultOptions()).Object(s, addr)
}

// Value renders v.
func (p *Printer) Value(s *Sink, v ptr.Value) {
	if v.IsScalar() {
		fmt.Fprintf(s, "<Scalar %#x>", uint32(v))
		return
	}
	p.Object(s, v.Unskew())
}

// Object renders "0x<addr>: <Shape ...>".
func (p *Printer) Object(s *Sink, addr uint32) {
	p.object(s, addr, 0)
}

func (p *Printer) word(addr, i uint32) (uint32, bool) {
	at := addr + i*ptr.WordSize
	if !ptr.Aligned(at) || !p.a.Contains(at, ptr.WordSize) {
		return 0, false
	}
	return p.a.Word(at), true
}

// words reads n consecutive header words; ok is false if any is outside
// the arena.
func (p *Printer) words(addr uint32, n int) (w [4]uint32, ok bool) {
	for i := 0; i < n; i++ {
		if w[i], ok = p.word(addr, uint32(i)); !ok {
			return w, false
		}
	}
	return w, true
}

func (p *Printer) object(s *Sink, addr uint32, depth int) {
	fmt.Fprintf(s, "%#x: ", addr)
	tag, ok := p.word(addr, 0)
	if !ok {
		s.WriteString("<unreadable>")
		return
	}
	l, known := heap.LayoutOf(heap.Tag(tag))
	if !known {
		fmt.Fprintf(s, "<??? %d ???>", tag)
		return
	}
	h, ok := p.words(addr, int(min(l.HeaderWords, 4)))
	if !ok {
		fmt.Fprintf(s, "<%s truncated>", l.Name)
		return
	}
	switch l.Tag {
	case heap.TagObject:
		p.record(s, addr, h[1], h[2], depth)
	case heap.TagObjInd:
		fmt.Fprintf(s, "<ObjInd field=%#x>", h[1])
	case heap.TagArray:
		p.array(s, addr, h[1])
	case heap.TagBits64:
		fmt.Fprintf(s, "<Bits64 %#x>", uint64(h[1])|uint64(h[2])<<32)
	case heap.TagMutBox:
		fmt.Fprintf(s, "<MutBox field=%#x>", h[1])
	case heap.TagClosure:
		fmt.Fprintf(s, "<Closure size=%#x>", h[2])
	case heap.TagSome:
		fmt.Fprintf(s, "<Some field=%#x>", h[1])
	case heap.TagVariant:
		fmt.Fprintf(s, "<Variant tag=%#x field=%#x>", h[1], h[2])
	case heap.TagBlob:
		fmt.Fprintf(s, "<Blob len=%#x>", h[1])
	case heap.TagFwdPtr:
		fmt.Fprintf(s, "<Forwarding to %#x>", h[1])
	case heap.TagBits32:
		fmt.Fprintf(s, "<Bits32 %#x>", h[1])
	case heap.TagBigInt:
		fmt.Fprintf(s, "<BigInt used=%#x alloc=%#x sign=%d>", h[2], h[3], h[1])
	case heap.TagConcat:
		fmt.Fprintf(s, "<Concat n_bytes=%#x obj1=%#x obj2=%#x>", h[1], h[2], h[3])
	}
}

func (p *Printer) record(s *Sink, addr, n, hashPtr uint32, depth int) {
	fmt.Fprintf(s, "<Object size=%#x hash_ptr=%#x field=[", n, hashPtr)
	for i := uint32(0); i < n; i++ {
		if s.Overflowed() {
			return
		}
		w, ok := p.word(addr, 3+i)
		if !ok {
			s.WriteString("…")
			break
		}
		fmt.Fprintf(s, "%#x", w)
		if v := ptr.Value(w); v.IsPointer() {
			s.WriteString(" (indirectee=")
			if depth < p.opts.InlineDepth {
				p.object(s, v.Unskew(), depth+1)
			} else {
				s.WriteString("…")
			}
			s.WriteString(")")
		}
		if i != n-1 {
			s.WriteString(",")
		}
	}
	s.WriteString("]>")
}

func (p *Printer) array(s *Sink, addr, n uint32) {
	fmt.Fprintf(s, "<Array len=%#x", n)
	shown := min(uint64(n), uint64(p.opts.ArrayPreview))
	for i := uint64(0); i < shown; i++ {
		w, ok := p.word(addr, 2+uint32(i))
		if !ok {
			break
		}
		fmt.Fprintf(s, " %#x", w)
	}
	if uint64(n) > shown {
		s.WriteString(" …>")
		return
	}
	s.WriteString(">")
}
