// Package rt ties a heap arena to the runtime state that gives it meaning:
// heap bounds, the closure table, the static roots and the host. Each
// operation takes its inputs from the Context rather than from globals, so
// several images can be inspected side by side.
package rt

import (
	"fmt"

	"heapwalk/internal/abi"
	"heapwalk/internal/format"
	"heapwalk/internal/heap"
	"heapwalk/internal/ptr"
	"heapwalk/internal/roots"
	"heapwalk/internal/scan"
	"heapwalk/internal/trace"
	"heapwalk/internal/walk"
)

// Config describes the runtime state around an arena.
type Config struct {
	// HeapBase is the first address of the dynamic heap. Static data such
	// as the static roots array may sit in the arena below it.
	HeapBase uint32
	// HeapPointer is the first free address.
	HeapPointer uint32
	// StaticRoots references the static roots array; ptr.Null if unset.
	StaticRoots ptr.Value
	// Closures is nil until the program creates its closure table.
	Closures *roots.ClosureTable
	Host     abi.Host
	Tracer   trace.Tracer
	Format   format.Options
}

// Context is the explicit runtime context. It is not safe for concurrent
// use.
type Context struct {
	a   *heap.Arena
	cfg Config
}

// New binds cfg to a. The host is installed on the arena so that faults
// trap through it.
func New(a *heap.Arena, cfg Config) (*Context, error) {
	if cfg.HeapBase < a.Base() || cfg.HeapPointer < cfg.HeapBase || cfg.HeapPointer > a.End() {
		return nil, fmt.Errorf("rt: heap [%#x, %#x) outside arena [%#x, %#x)", cfg.HeapBase, cfg.HeapPointer, a.Base(), a.End())
	}
	if !ptr.Aligned(cfg.HeapBase) || !ptr.Aligned(cfg.HeapPointer) {
		return nil, fmt.Errorf("rt: heap bounds %#x, %#x are not word aligned", cfg.HeapBase, cfg.HeapPointer)
	}
	if cfg.Host == nil {
		cfg.Host = abi.NewStdHost()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = trace.Nop
	}
	a.SetHost(cfg.Host)
	return &Context{a: a, cfg: cfg}, nil
}

func (c *Context) Arena() *heap.Arena                { return c.a }
func (c *Context) HeapBase() uint32                  { return c.cfg.HeapBase }
func (c *Context) HeapPointer() uint32               { return c.cfg.HeapPointer }
func (c *Context) StaticRootsValue() ptr.Value       { return c.cfg.StaticRoots }
func (c *Context) ClosureTable() *roots.ClosureTable { return c.cfg.Closures }
func (c *Context) Host() abi.Host                    { return c.cfg.Host }
func (c *Context) Tracer() trace.Tracer              { return c.cfg.Tracer }

// Bridge returns the trap/print bridge reading messages from the arena.
func (c *Context) Bridge() abi.Bridge {
	return abi.Bridge{Host: c.cfg.Host, Mem: c.a}
}

// ScanHeap visits every object of the dynamic heap in address order.
func (c *Context) ScanHeap(fn scan.Func) int {
	span := trace.Begin(c.cfg.Tracer, trace.ScopePhase, "scan", 0)
	n := scan.Scan(c.a, c.cfg.HeapBase, c.cfg.HeapPointer, fn)
	span.WithExtra("objects", fmt.Sprint(n)).End("")
	return n
}

// Root identifies where a root traversal started.
type Root struct {
	// Static is false for closure table entries.
	Static bool
	Index  uint32
	Value  ptr.Value
}

// WalkRoots walks from every live closure table entry, then from every
// static root, with one reused walker. fn receives the root being walked
// alongside each visit. It returns the total number of visits.
func (c *Context) WalkRoots(opts walk.Options, fn func(Root, walk.Visit) walk.Action) int {
	span := trace.Begin(c.cfg.Tracer, trace.ScopePhase, "walk-roots", 0)
	w := walk.New(c.a, opts)
	total := 0
	stopped := false
	each := func(r Root) bool {
		total += w.Walk(r.Value, func(v walk.Visit) walk.Action {
			act := fn(r, v)
			if act == walk.Stop {
				stopped = true
			}
			return act
		})
		return !stopped
	}
	if c.cfg.Closures != nil {
		for i, v := range c.cfg.Closures.All() {
			if !each(Root{Index: i, Value: v}) {
				break
			}
		}
	}
	if !stopped && c.cfg.StaticRoots.IsPointer() {
		sr, err := roots.LoadStaticRoots(c.a, c.cfg.StaticRoots)
		if err != nil {
			c.a.Fault(heap.FaultBadRoots, c.cfg.StaticRoots.Unskew(), "%v", err)
		}
		for i, v := range sr.All() {
			if !each(Root{Static: true, Index: i, Value: v}) {
				break
			}
		}
	}
	span.WithExtra("visits", fmt.Sprint(total)).End("")
	return total
}

// PrintValue renders v into a fresh line buffer and prints it through the
// host. Scalars print as <Scalar 0x..>.
func (c *Context) PrintValue(v ptr.Value) {
	p := format.NewPrinter(c.a, c.cfg.Format)
	s := format.NewSink(p.Options().Capacity)
	p.Value(s, v)
	c.cfg.Host.Print(s.Bytes())
}

// Dump prints the closure table, static roots and heap through the host.
func (c *Context) Dump() {
	span := trace.Begin(c.cfg.Tracer, trace.ScopePhase, "dump", 0)
	format.Dump(c, c.cfg.Host, c.cfg.Format)
	span.End("")
}

// Tree prints the graph reachable from v, forwarding pointers shown as
// markers.
func (c *Context) Tree(v ptr.Value) int {
	w := walk.New(c.a, walk.Options{Mode: walk.ModeDiagnostic})
	return format.Tree(w, v, c.cfg.Host, c.cfg.Format)
}
