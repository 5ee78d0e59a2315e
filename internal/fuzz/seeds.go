package fuzztests

import (
	"math/rand/v2"
	"testing"

	"heapwalk/internal/heap"
	"heapwalk/internal/ptr"
	"heapwalk/internal/testkit"
)

const (
	fuzzBase     = 0x8000
	maxFuzzInput = 1 << 14 // 16 KiB
)

// addHeapSeeds adds well-formed random heaps and a few damaged variants.
func addHeapSeeds(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{0xad, 0xde, 0, 0})
	for seed := uint64(1); seed <= 4; seed++ {
		n := int(seed) * 8
		a, err := heap.NewArena(fuzzBase, n*testkit.WordsPerObject*ptr.WordSize)
		if err != nil {
			f.Fatal(err)
		}
		b := heap.NewBuilder(a)
		testkit.RandomHeap(b, rand.New(rand.NewPCG(seed, 0)), n)
		data := append([]byte(nil), a.Data()[:b.HP()-fuzzBase]...)
		f.Add(data)

		// flip one byte in the middle to seed corrupt images
		broken := append([]byte(nil), data...)
		broken[len(broken)/2] ^= 0x5a
		f.Add(broken)
	}
}

// loadArena copies input, trimmed to whole words and maxFuzzInput.
func loadArena(t *testing.T, input []byte) *heap.Arena {
	t.Helper()
	if len(input) > maxFuzzInput {
		input = input[:maxFuzzInput]
	}
	input = input[:len(input)&^(ptr.WordSize-1)]
	a, err := heap.Load(fuzzBase, append([]byte(nil), input...))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return a
}
