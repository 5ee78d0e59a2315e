package heap

import (
	"fmt"
	"iter"

	"heapwalk/internal/ptr"
)

// Object is a decoded heap object. The set of implementations is closed:
// Record, ObjInd, Array, Bits64, MutBox, Closure, Some, Variant, Blob,
// FwdPtr, Bits32, BigInt and Concat. Obtain one with Arena.Decode.
type Object interface {
	// Addr is the unskewed address of the tag word.
	Addr() uint32
	Tag() Tag
	// Words is the total object size including the header.
	Words() uint32
	// Refs yields every reference-bearing slot in declared order. Slots may
	// hold scalars; consumers check IsScalar before following them.
	Refs() iter.Seq2[int, ptr.Value]
	// NumRefs and Ref index the same slots as Refs without allocating.
	NumRefs() int
	Ref(i int) ptr.Value

	sealed()
}

type header struct {
	a    *Arena
	addr uint32
}

func (h header) Addr() uint32 { return h.addr }
func (header) sealed()        {}

func (h header) word(i uint32) uint32 { return h.a.Word(wordAddr(h.addr, i)) }

func (h header) value(i uint32) ptr.Value { return ptr.Value(h.word(i)) }

func noRefs(func(int, ptr.Value) bool) {}

func noRef(t Tag, i int) ptr.Value {
	panic(fmt.Sprintf("heap: %s has no reference %d", t, i))
}

func fieldIndex(first uint32, i int) uint32 {
	return first + uint32(i)
}

func oneRef(v ptr.Value) iter.Seq2[int, ptr.Value] {
	return func(yield func(int, ptr.Value) bool) {
		yield(0, v)
	}
}

// fieldRefs yields n consecutive fields starting at header word first.
func (h header) fieldRefs(first, n uint32) iter.Seq2[int, ptr.Value] {
	return func(yield func(int, ptr.Value) bool) {
		for i := uint32(0); i < n; i++ {
			if !yield(int(i), h.value(first+i)) {
				return
			}
		}
	}
}

// Record is an object with tag Object: a generic record of N fields.
type Record struct {
	header
	N       uint32
	HashPtr uint32
}

func (Record) Tag() Tag                          { return TagObject }
func (o Record) Words() uint32                   { return 3 + o.N }
func (o Record) Field(i uint32) ptr.Value        { return o.value(3 + i) }
func (o Record) FieldAddr(i uint32) uint32       { return wordAddr(o.addr, 3+i) }
func (o Record) Refs() iter.Seq2[int, ptr.Value] { return o.fieldRefs(3, o.N) }
func (o Record) NumRefs() int                    { return int(o.N) }
func (o Record) Ref(i int) ptr.Value             { return o.value(fieldIndex(3, i)) }

// ObjInd is a boxed, promoted indirection.
type ObjInd struct {
	header
	Field ptr.Value
}

func (ObjInd) Tag() Tag                          { return TagObjInd }
func (ObjInd) Words() uint32                     { return 2 }
func (o ObjInd) Refs() iter.Seq2[int, ptr.Value] { return oneRef(o.Field) }
func (ObjInd) NumRefs() int                      { return 1 }
func (o ObjInd) Ref(int) ptr.Value               { return o.Field }

// Array is a homogeneous sequence of Len elements.
type Array struct {
	header
	Len uint32
}

func (Array) Tag() Tag                          { return TagArray }
func (o Array) Words() uint32                   { return 2 + o.Len }
func (o Array) Elem(i uint32) ptr.Value         { return o.value(2 + i) }
func (o Array) ElemAddr(i uint32) uint32        { return wordAddr(o.addr, 2+i) }
func (o Array) Refs() iter.Seq2[int, ptr.Value] { return o.fieldRefs(2, o.Len) }
func (o Array) NumRefs() int                    { return int(o.Len) }
func (o Array) Ref(i int) ptr.Value             { return o.value(fieldIndex(2, i)) }

// Bits64 is a boxed 64-bit scalar.
type Bits64 struct {
	header
	Bits uint64
}

func (Bits64) Tag() Tag                        { return TagBits64 }
func (Bits64) Words() uint32                   { return 3 }
func (Bits64) Refs() iter.Seq2[int, ptr.Value] { return noRefs }
func (Bits64) NumRefs() int                    { return 0 }
func (Bits64) Ref(i int) ptr.Value             { return noRef(TagBits64, i) }

// MutBox is a mutable captured-variable cell.
type MutBox struct {
	header
	Field ptr.Value
}

func (MutBox) Tag() Tag                          { return TagMutBox }
func (MutBox) Words() uint32                     { return 2 }
func (o MutBox) Refs() iter.Seq2[int, ptr.Value] { return oneRef(o.Field) }
func (MutBox) NumRefs() int                      { return 1 }
func (o MutBox) Ref(int) ptr.Value               { return o.Field }

// Closure is a callable with N captured fields.
type Closure struct {
	header
	FunID uint32
	N     uint32
}

func (Closure) Tag() Tag                          { return TagClosure }
func (o Closure) Words() uint32                   { return 3 + o.N }
func (o Closure) Field(i uint32) ptr.Value        { return o.value(3 + i) }
func (o Closure) Refs() iter.Seq2[int, ptr.Value] { return o.fieldRefs(3, o.N) }
func (o Closure) NumRefs() int                    { return int(o.N) }
func (o Closure) Ref(i int) ptr.Value             { return o.value(fieldIndex(3, i)) }

// Some is an option wrapper.
type Some struct {
	header
	Field ptr.Value
}

func (Some) Tag() Tag                          { return TagSome }
func (Some) Words() uint32                     { return 2 }
func (o Some) Refs() iter.Seq2[int, ptr.Value] { return oneRef(o.Field) }
func (Some) NumRefs() int                      { return 1 }
func (o Some) Ref(int) ptr.Value               { return o.Field }

// Variant is a tagged-union payload.
type Variant struct {
	header
	Discriminant uint32
	Field        ptr.Value
}

func (Variant) Tag() Tag                          { return TagVariant }
func (Variant) Words() uint32                     { return 3 }
func (o Variant) Refs() iter.Seq2[int, ptr.Value] { return oneRef(o.Field) }
func (Variant) NumRefs() int                      { return 1 }
func (o Variant) Ref(int) ptr.Value               { return o.Field }

// Blob is immutable binary or text data of Len bytes.
type Blob struct {
	header
	Len uint32
}

func (Blob) Tag() Tag                        { return TagBlob }
func (o Blob) Words() uint32                 { return 2 + (o.Len+ptr.WordSize-1)/ptr.WordSize }
func (Blob) Refs() iter.Seq2[int, ptr.Value] { return noRefs }
func (Blob) NumRefs() int                    { return 0 }
func (Blob) Ref(i int) ptr.Value             { return noRef(TagBlob, i) }

// Payload returns the blob bytes. The slice aliases the arena.
func (o Blob) Payload() []byte { return o.a.Bytes(wordAddr(o.addr, 2), o.Len) }

// FwdPtr is the transient header left at an object's old address while
// the object is being relocated. Extent is the size in words of the object
// it replaced; the words after the header are stale.
type FwdPtr struct {
	header
	Fwd    ptr.Value
	Extent uint32
}

func (FwdPtr) Tag() Tag                        { return TagFwdPtr }
func (o FwdPtr) Words() uint32                 { return o.Extent }
func (FwdPtr) Refs() iter.Seq2[int, ptr.Value] { return noRefs }
func (FwdPtr) NumRefs() int                    { return 0 }
func (FwdPtr) Ref(i int) ptr.Value             { return noRef(TagFwdPtr, i) }

// Bits32 is a boxed 32-bit scalar.
type Bits32 struct {
	header
	Bits uint32
}

func (Bits32) Tag() Tag                        { return TagBits32 }
func (Bits32) Words() uint32                   { return 2 }
func (Bits32) Refs() iter.Seq2[int, ptr.Value] { return noRefs }
func (Bits32) NumRefs() int                    { return 0 }
func (Bits32) Ref(i int) ptr.Value             { return noRef(TagBits32, i) }

// BigInt is an arbitrary-precision integer with Alloc inline limbs, Used
// of which are significant.
type BigInt struct {
	header
	Sign  uint32
	Used  uint32
	Alloc uint32
}

func (BigInt) Tag() Tag                        { return TagBigInt }
func (o BigInt) Words() uint32                 { return 4 + o.Alloc }
func (o BigInt) Limb(i uint32) uint32          { return o.word(4 + i) }
func (BigInt) Refs() iter.Seq2[int, ptr.Value] { return noRefs }
func (BigInt) NumRefs() int                    { return 0 }
func (BigInt) Ref(i int) ptr.Value             { return noRef(TagBigInt, i) }

// Concat is a text rope node of NBytes total length.
type Concat struct {
	header
	NBytes uint32
	Text1  ptr.Value
	Text2  ptr.Value
}

func (Concat) Tag() Tag      { return TagConcat }
func (Concat) Words() uint32 { return 4 }
func (Concat) NumRefs() int  { return 2 }

func (o Concat) Ref(i int) ptr.Value {
	if i == 0 {
		return o.Text1
	}
	return o.Text2
}

func (o Concat) Refs() iter.Seq2[int, ptr.Value] {
	return func(yield func(int, ptr.Value) bool) {
		if yield(0, o.Text1) {
			yield(1, o.Text2)
		}
	}
}

// Decode validates the object at addr and returns its typed view.
func (a *Arena) Decode(addr uint32) Object {
	l, words, f := a.measure(addr)
	if f != nil {
		a.raise(f)
	}
	h := header{a: a, addr: addr}
	switch l.Tag {
	case TagObject:
		return Record{header: h, N: h.word(1), HashPtr: h.word(2)}
	case TagObjInd:
		return ObjInd{header: h, Field: h.value(1)}
	case TagArray:
		return Array{header: h, Len: h.word(1)}
	case TagBits64:
		return Bits64{header: h, Bits: uint64(h.word(1)) | uint64(h.word(2))<<32}
	case TagMutBox:
		return MutBox{header: h, Field: h.value(1)}
	case TagClosure:
		return Closure{header: h, FunID: h.word(1), N: h.word(2)}
	case TagSome:
		return Some{header: h, Field: h.value(1)}
	case TagVariant:
		return Variant{header: h, Discriminant: h.word(1), Field: h.value(2)}
	case TagBlob:
		return Blob{header: h, Len: h.word(1)}
	case TagFwdPtr:
		return FwdPtr{header: h, Fwd: h.value(1), Extent: words}
	case TagBits32:
		return Bits32{header: h, Bits: h.word(1)}
	case TagBigInt:
		return BigInt{header: h, Sign: h.word(1), Used: h.word(2), Alloc: h.word(3)}
	case TagConcat:
		return Concat{header: h, NBytes: h.word(1), Text1: h.value(2), Text2: h.value(3)}
	}
	a.Fault(FaultUnknownTag, addr, "no decoder for tag %d", uint32(l.Tag))
	return nil
}

// DecodeValue dereferences v and decodes the object it points to.
func (a *Arena) DecodeValue(v ptr.Value) Object {
	return a.Decode(a.Deref(v))
}
