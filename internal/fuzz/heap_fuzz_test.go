package fuzztests

import (
	"testing"

	"heapwalk/internal/format"
	"heapwalk/internal/heap"
	"heapwalk/internal/ptr"
	"heapwalk/internal/scan"
	"heapwalk/internal/walk"
)

func FuzzScanArena(f *testing.F) {
	addHeapSeeds(f)
	f.Fuzz(func(t *testing.T, input []byte) {
		a := loadArena(t, input)
		var st scan.Stats
		err := heap.Guard(func() {
			st = scan.Collect(a, a.Base(), a.End())
		})
		if err != nil {
			if _, ok := heap.AsFault(err); !ok {
				t.Fatalf("non-fault error: %v", err)
			}
			return
		}
		if st.Bytes != uint64(a.End()-a.Base()) {
			t.Fatalf("clean scan covered %d of %d bytes", st.Bytes, a.End()-a.Base())
		}
	})
}

func FuzzWalkArena(f *testing.F) {
	addHeapSeeds(f)
	f.Fuzz(func(t *testing.T, input []byte) {
		a := loadArena(t, input)
		w := walk.New(a, walk.Options{Unique: true})
		for addr := a.Base(); addr < a.End(); addr += ptr.WordSize {
			err := heap.Guard(func() {
				w.WalkAddr(addr, func(walk.Visit) walk.Action { return walk.Continue })
			})
			if err != nil {
				if _, ok := heap.AsFault(err); !ok {
					t.Fatalf("non-fault error at %#x: %v", addr, err)
				}
			}
		}
	})
}

func FuzzFormatNeverFaults(f *testing.F) {
	addHeapSeeds(f)
	f.Fuzz(func(t *testing.T, input []byte) {
		a := loadArena(t, input)
		p := format.NewPrinter(a, format.DefaultOptions())
		s := format.NewSink(256)
		for addr := a.Base(); addr < a.End()+2*ptr.WordSize; addr += ptr.WordSize {
			s.Reset()
			p.Object(s, addr)
			if s.Len() == 0 {
				t.Fatalf("empty render at %#x", addr)
			}
		}
	})
}
