// Package testkit builds randomized heaps for tests and checks the
// structural invariants every well-formed heap satisfies.
package testkit

import (
	"math/rand/v2"

	"fortio.org/safecast"

	"heapwalk/internal/heap"
	"heapwalk/internal/ptr"
)

// WordsPerObject bounds the words one RandomHeap object may take, for
// sizing arenas.
const WordsPerObject = 12

// RandomHeap allocates n objects of random shapes through b. Fields refer
// to scalars or to objects allocated earlier, and some MutBoxes are later
// pointed back at newer objects so the graph contains cycles. It returns
// every object in allocation order.
func RandomHeap(b *heap.Builder, r *rand.Rand, n int) []ptr.Value {
	objs := make([]ptr.Value, 0, n)
	var boxes []ptr.Value
	pick := func() ptr.Value {
		if len(objs) == 0 || r.IntN(4) == 0 {
			return ptr.MustScalar(r.Int32N(1000))
		}
		return objs[r.IntN(len(objs))]
	}
	picks := func(k int) []ptr.Value {
		out := make([]ptr.Value, k)
		for i := range out {
			out[i] = pick()
		}
		return out
	}
	for range n {
		var v ptr.Value
		switch r.IntN(11) {
		case 0:
			v = b.Object(r.Uint32(), picks(r.IntN(4))...)
		case 1:
			v = b.Array(picks(r.IntN(6))...)
		case 2:
			v = b.MutBox(pick())
			boxes = append(boxes, v)
		case 3:
			v = b.ObjInd(pick())
		case 4:
			v = b.Some(pick())
		case 5:
			v = b.Variant(r.Uint32N(8), pick())
		case 6:
			v = b.Closure(r.Uint32N(64), picks(r.IntN(4))...)
		case 7:
			payload := make([]byte, r.IntN(17))
			for i := range payload {
				payload[i] = byte('a' + r.IntN(26))
			}
			v = b.Blob(payload)
		case 8:
			v = b.Bits64(r.Uint64())
		case 9:
			limbs := make([]uint32, 1+r.IntN(4))
			for i := range limbs {
				limbs[i] = r.Uint32()
			}
			used, _ := safecast.Conv[uint32](1 + r.IntN(len(limbs)))
			v = b.BigInt(r.Uint32N(2), used, limbs)
		default:
			v = b.Bits32(r.Uint32())
		}
		objs = append(objs, v)
	}
	a := b.Arena()
	for _, box := range boxes {
		if r.IntN(2) == 0 {
			a.SetField(box, objs[r.IntN(len(objs))])
		}
	}
	return objs
}
