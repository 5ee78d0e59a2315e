package format

import (
	"fmt"
	"strings"

	"heapwalk/internal/abi"
	"heapwalk/internal/heap"
	"heapwalk/internal/ptr"
	"heapwalk/internal/roots"
	"heapwalk/internal/walk"
)

// DumpSource supplies the runtime state a heap dump reports on.
type DumpSource interface {
	Arena() *heap.Arena
	// HeapBase is the address of the first dynamic object.
	HeapBase() uint32
	// HeapPointer is the first free address past the last object.
	HeapPointer() uint32
	// StaticRootsValue is the reference to the static roots array.
	StaticRootsValue() ptr.Value
	// ClosureTable is nil until the table has been created.
	ClosureTable() *roots.ClosureTable
}

// Dump prints the closure table, the static roots and every object of the
// dynamic heap, one line per Print call.
func Dump(src DumpSource, host abi.Host, opts Options) {
	d := dumper{p: NewPrinter(src.Arena(), opts), host: host}
	d.s = NewSink(d.p.opts.Capacity)
	d.closureTable(src.ClosureTable())
	d.staticRoots(src.Arena(), src.StaticRootsValue())
	d.heap(src.Arena(), src.HeapBase(), src.HeapPointer())
}

type dumper struct {
	p    *Printer
	host abi.Host
	s    *Sink
}

func (d *dumper) line(format string, args ...any) {
	d.s.Reset()
	fmt.Fprintf(d.s, format, args...)
	d.flush()
}

func (d *dumper) flush() {
	d.host.Print(d.s.Bytes())
	d.s.Reset()
}

func (d *dumper) closureTable(t *roots.ClosureTable) {
	if t == nil {
		d.line("Closure table not initialized")
		return
	}
	if t.Len() == 0 {
		d.line("Closure table empty")
		return
	}
	d.line("Closure table: %d", t.Len())
	for i, v := range t.All() {
		if v.IsScalar() {
			continue
		}
		fmt.Fprintf(d.s, "%d: ", i)
		d.p.Object(d.s, v.Unskew())
		d.flush()
	}
	d.line("End of closure table")
}

func (d *dumper) staticRoots(a *heap.Arena, v ptr.Value) {
	if v.IsScalar() {
		d.line("Static roots not initialized")
		return
	}
	d.line("static roots at %#x", v.Unskew())
	sr, err := roots.LoadStaticRoots(a, v)
	if err != nil {
		d.line("Static roots unreadable: %v", err)
		return
	}
	if sr.Len() == 0 {
		d.line("Static roots empty")
		return
	}
	d.line("Static roots: %d", sr.Len())
	for i, root := range sr.All() {
		fmt.Fprintf(d.s, "%d: %#x --> ", i, sr.FieldAddr(i))
		d.p.Value(d.s, root)
		d.flush()
	}
	d.line("End of static roots")
}

func (d *dumper) heap(a *heap.Arena, begin, end uint32) {
	if end < begin {
		d.line("Heap begin=%#x, heap end=%#x, inverted bounds", begin, end)
		return
	}
	d.line("Heap begin=%#x, heap end=%#x, size=%d bytes", begin, end, end-begin)
	for addr := begin; addr < end; {
		d.p.Object(d.s, addr)
		d.flush()
		size, err := a.CheckSize(addr)
		if err != nil {
			d.line("Heap walk stopped at %#x: %v", addr, err)
			return
		}
		if size == 0 || uint64(addr)+uint64(size) > uint64(end) {
			d.line("Heap walk stopped at %#x: object of %d bytes overruns heap end", addr, size)
			return
		}
		addr += size
	}
}

// Tree prints root and everything reachable from it, one object per line,
// indented by depth. The walker should be in ModeDiagnostic so that
// forwarding pointers show up as markers. Faults stop the tree and are
// reported as the last line.
func Tree(w *walk.Walker, root ptr.Value, host abi.Host, opts Options) int {
	p := NewPrinter(w.Arena(), opts)
	s := NewSink(p.opts.Capacity)
	if root.IsScalar() {
		p.Value(s, root)
		host.Print(s.Bytes())
		return 0
	}
	n := 0
	err := heap.Guard(func() {
		n = w.Walk(root, func(v walk.Visit) walk.Action {
			s.Reset()
			s.WriteString(strings.Repeat("  ", v.Depth))
			if v.Field >= 0 {
				fmt.Fprintf(s, "[%d] ", v.Field)
			}
			p.Object(s, v.Object.Addr())
			host.Print(s.Bytes())
			return walk.Continue
		})
	})
	if err != nil {
		s.Reset()
		fmt.Fprintf(s, "walk stopped: %v", err)
		host.Print(s.Bytes())
	}
	return n
}
