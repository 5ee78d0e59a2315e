package snapshot

import (
	"fmt"

	"fortio.org/safecast"

	"heapwalk/internal/heap"
	"heapwalk/internal/ptr"
	"heapwalk/internal/roots"
)

// SynthBase is the arena base of synthesized images.
const SynthBase uint32 = 0x10000

// Synth lays out a small demonstration heap: a one-element static roots
// array in static memory, then a dynamic Array of elems Bits32 boxes, a
// text blob and a closure capturing both. The closure is entry 0 of the
// closure table and the array is static root 0.
func Synth(elems int) (*Image, error) {
	n, err := safecast.Conv[uint32](elems)
	if err != nil {
		return nil, fmt.Errorf("synth: %d elements: %w", elems, err)
	}
	const label = "heapwalk"
	words := uint64(3) + // static roots
		2 + uint64(n) + 2*uint64(n) + // array and its boxes
		2 + (uint64(len(label))+ptr.WordSize-1)/ptr.WordSize +
		3 + 2 // closure with two fields
	size, err := safecast.Conv[int](words * ptr.WordSize)
	if err != nil {
		return nil, fmt.Errorf("synth: %w", err)
	}
	a, err := heap.NewArena(SynthBase, size)
	if err != nil {
		return nil, fmt.Errorf("synth: %w", err)
	}

	var img *Image
	err = heap.Guard(func() {
		b := heap.NewBuilder(a)
		statics := b.Array(ptr.Null)
		heapBase := b.HP()

		arr := b.Array(make([]ptr.Value, n)...)
		for i := uint32(0); i < n; i++ {
			a.SetElem(arr, i, b.Bits32(100+i))
		}
		text := b.Text(label)
		clo := b.Closure(1, arr, text)
		a.SetElem(statics, 0, arr)

		table := roots.NewClosureTable()
		table.Add(clo)
		img = &Image{
			Schema:      SchemaVersion,
			Base:        a.Base(),
			HeapBase:    heapBase,
			HeapPointer: b.HP(),
			StaticRoots: uint32(statics),
			Data:        a.Data()[:b.HP()-a.Base()],
		}
		for _, s := range table.Slots() {
			img.Closures = append(img.Closures, Slot{Value: uint32(s.Value), Live: s.Live})
		}
	})
	if err != nil {
		return nil, fmt.Errorf("synth: %w", err)
	}
	return img, nil
}
