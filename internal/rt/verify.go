package rt

import (
	"fmt"

	"heapwalk/internal/heap"
	"heapwalk/internal/roots"
	"heapwalk/internal/scan"
	"heapwalk/internal/trace"
	"heapwalk/internal/walk"
)

// Report summarizes a successful integrity check.
type Report struct {
	Stats scan.Stats
	// Reachable counts distinct objects reachable from the roots.
	Reachable int
	// ClosureEntries counts live closure table entries.
	ClosureEntries int
	StaticRoots    uint32
}

// DanglingError reports a root path leading outside the allocated heap.
type DanglingError struct {
	Root Root
	Addr uint32
	HP   uint32
}

func (e *DanglingError) Error() string {
	kind := "closure"
	if e.Root.Static {
		kind = "static root"
	}
	return fmt.Sprintf("%s %d reaches %#x at or past heap pointer %#x", kind, e.Root.Index, e.Addr, e.HP)
}

// Verify scans the dynamic heap and walks every root. Faults are returned
// as errors instead of trapping through the host.
func (c *Context) Verify() (Report, error) {
	span := trace.Begin(c.cfg.Tracer, trace.ScopePhase, "verify", 0)
	defer span.End("")

	prev := c.a.Host()
	c.a.SetHost(nil)
	defer c.a.SetHost(prev)

	var rep Report
	var dangling error
	err := heap.Guard(func() {
		rep.Stats = scan.Collect(c.a, c.cfg.HeapBase, c.cfg.HeapPointer)
		if c.cfg.Closures != nil {
			rep.ClosureEntries = c.cfg.Closures.Count()
		}
		rep.Reachable = c.WalkRoots(walk.Options{Unique: true}, func(r Root, v walk.Visit) walk.Action {
			if addr := v.Object.Addr(); addr >= c.cfg.HeapPointer {
				dangling = &DanglingError{Root: r, Addr: addr, HP: c.cfg.HeapPointer}
				return walk.Stop
			}
			return walk.Continue
		})
		if c.cfg.StaticRoots.IsPointer() {
			if sr, err := roots.LoadStaticRoots(c.a, c.cfg.StaticRoots); err == nil {
				rep.StaticRoots = sr.Len()
			}
		}
	})
	if err != nil {
		span.WithExtra("fault", err.Error())
		return rep, fmt.Errorf("verify: %w", err)
	}
	if dangling != nil {
		return rep, fmt.Errorf("verify: %w", dangling)
	}
	return rep, nil
}
