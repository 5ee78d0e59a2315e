package heap

import (
	"maps"

	"fortio.org/safecast"

	"heapwalk/internal/ptr"
)

// Builder lays objects out contiguously from the arena base, the way the
// bump allocator of the runtime does. It exists for tests, synthetic images
// and tooling; the production allocation policy lives elsewhere.
type Builder struct {
	a     *Arena
	hp    uint32
	moved map[uint32]uint32
}

// NewBuilder starts allocating at the arena base.
func NewBuilder(a *Arena) *Builder {
	return &Builder{a: a, hp: a.Base()}
}

// Arena returns the arena being filled.
func (b *Builder) Arena() *Arena { return b.a }

// HP returns the allocation pointer: the first free address.
func (b *Builder) HP() uint32 { return b.hp }

func (b *Builder) alloc(tag Tag, words uint64) uint32 {
	size := words * ptr.WordSize
	if !b.a.Contains(b.hp, 0) || uint64(b.a.End()-b.hp) < size {
		b.a.Fault(FaultHeapFull, b.hp, "cannot allocate %d-word %s", words, tag)
	}
	addr := b.hp
	b.hp += uint32(size)
	b.a.SetWord(addr, uint32(tag))
	return addr
}

func (b *Builder) count(n int) uint32 {
	c, err := safecast.Conv[uint32](n)
	if err != nil {
		b.a.Fault(FaultHeapFull, b.hp, "object length %d: %v", n, err)
	}
	return c
}

func (b *Builder) put(addr, index, w uint32) {
	b.a.SetWord(wordAddr(addr, index), w)
}

// Object allocates a record with the given hash table pointer and fields.
func (b *Builder) Object(hashPtr uint32, fields ...ptr.Value) ptr.Value {
	n := b.count(len(fields))
	addr := b.alloc(TagObject, 3+uint64(n))
	b.put(addr, 1, n)
	b.put(addr, 2, hashPtr)
	for i, f := range fields {
		b.put(addr, 3+uint32(i), uint32(f))
	}
	return ptr.Skew(addr)
}

// Array allocates an array holding elems.
func (b *Builder) Array(elems ...ptr.Value) ptr.Value {
	n := b.count(len(elems))
	addr := b.alloc(TagArray, 2+uint64(n))
	b.put(addr, 1, n)
	for i, e := range elems {
		b.put(addr, 2+uint32(i), uint32(e))
	}
	return ptr.Skew(addr)
}

// Blob allocates a blob holding a copy of data.
func (b *Builder) Blob(data []byte) ptr.Value {
	n := b.count(len(data))
	words := (uint64(n) + ptr.WordSize - 1) / ptr.WordSize
	addr := b.alloc(TagBlob, 2+words)
	b.put(addr, 1, n)
	copy(b.a.Bytes(wordAddr(addr, 2), n), data)
	return ptr.Skew(addr)
}

// Text allocates a blob holding s.
func (b *Builder) Text(s string) ptr.Value {
	return b.Blob([]byte(s))
}

// Bits32 allocates a boxed 32-bit scalar.
func (b *Builder) Bits32(bits uint32) ptr.Value {
	addr := b.alloc(TagBits32, 2)
	b.put(addr, 1, bits)
	return ptr.Skew(addr)
}

// Bits64 allocates a boxed 64-bit scalar.
func (b *Builder) Bits64(bits uint64) ptr.Value {
	addr := b.alloc(TagBits64, 3)
	b.put(addr, 1, uint32(bits))
	b.put(addr, 2, uint32(bits>>32))
	return ptr.Skew(addr)
}

func (b *Builder) single(tag Tag, v ptr.Value) ptr.Value {
	addr := b.alloc(tag, 2)
	b.put(addr, 1, uint32(v))
	return ptr.Skew(addr)
}

// MutBox allocates a mutable cell holding v.
func (b *Builder) MutBox(v ptr.Value) ptr.Value { return b.single(TagMutBox, v) }

// ObjInd allocates an indirection to v.
func (b *Builder) ObjInd(v ptr.Value) ptr.Value { return b.single(TagObjInd, v) }

// Some allocates an option wrapper around v.
func (b *Builder) Some(v ptr.Value) ptr.Value { return b.single(TagSome, v) }

// Variant allocates a tagged-union payload.
func (b *Builder) Variant(discriminant uint32, v ptr.Value) ptr.Value {
	addr := b.alloc(TagVariant, 3)
	b.put(addr, 1, discriminant)
	b.put(addr, 2, uint32(v))
	return ptr.Skew(addr)
}

// Closure allocates a closure over the captured fields.
func (b *Builder) Closure(funID uint32, fields ...ptr.Value) ptr.Value {
	n := b.count(len(fields))
	addr := b.alloc(TagClosure, 3+uint64(n))
	b.put(addr, 1, funID)
	b.put(addr, 2, n)
	for i, f := range fields {
		b.put(addr, 3+uint32(i), uint32(f))
	}
	return ptr.Skew(addr)
}

// BigInt allocates an integer whose capacity is len(limbs), of which used
// limbs are significant.
func (b *Builder) BigInt(sign, used uint32, limbs []uint32) ptr.Value {
	n := b.count(len(limbs))
	addr := b.alloc(TagBigInt, 4+uint64(n))
	b.put(addr, 1, sign)
	b.put(addr, 2, used)
	b.put(addr, 3, n)
	for i, l := range limbs {
		b.put(addr, 4+uint32(i), l)
	}
	return ptr.Skew(addr)
}

// Concat allocates a rope node joining two texts of nBytes total length.
func (b *Builder) Concat(nBytes uint32, text1, text2 ptr.Value) ptr.Value {
	addr := b.alloc(TagConcat, 4)
	b.put(addr, 1, nBytes)
	b.put(addr, 2, uint32(text1))
	b.put(addr, 3, uint32(text2))
	return ptr.Skew(addr)
}

// Forward overwrites the header of old with a forwarding pointer to
// relocated, as the compaction phase does, and records the move. The rest
// of old becomes stale. relocated must be a copy of the same size so that
// the old extent can still be stepped over.
func (b *Builder) Forward(old, relocated ptr.Value) {
	from, to := b.a.Deref(old), b.a.Deref(relocated)
	if from == to {
		b.a.Fault(FaultBadForward, from, "object forwarded to itself")
	}
	if b.a.TagAt(from) == TagFwdPtr {
		b.a.Fault(FaultBadForward, from, "object already forwarded")
	}
	words := b.a.ObjectWords(from)
	if got := b.a.ObjectWords(to); got != words {
		b.a.Fault(FaultBadForward, from, "%s of %d words forwarded to %#x of %d words", b.a.TagAt(from), words, to, got)
	}
	b.a.SetWord(from, uint32(TagFwdPtr))
	b.put(from, 1, uint32(relocated))
	if b.moved == nil {
		b.moved = make(map[uint32]uint32)
	}
	b.moved[from] = to
}

// Relocations returns the moves recorded by Forward, from old address to
// relocated address. The map is a copy.
func (b *Builder) Relocations() map[uint32]uint32 {
	return maps.Clone(b.moved)
}
