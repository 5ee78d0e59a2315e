package ptr

import "fmt"

// Value is a reference-sized heap word.
//
// Encoding scheme:
//   - Scalar: the integer shifted left by one, so bit 0 is always clear.
//   - Pointer: a word-aligned address skewed by -1, so bits 0 and 1 are set.
//
// The zero word is the scalar 0. It never aliases address 0, which skews
// to 0xFFFFFFFF.
type Value uint32

// WordSize is the size of a heap word in bytes.
const WordSize = 4

const (
	skew       uint32 = 1
	scalarMask uint32 = 1
	alignMask  uint32 = WordSize - 1
)

// Scalar range (31-bit signed).
const (
	MaxScalar int32 = (1 << 30) - 1
	MinScalar int32 = -(1 << 30)
)

// Null is the scalar 0, used by generated code as an absent reference.
const Null Value = 0

// Aligned reports whether addr is a valid object address for Skew.
func Aligned(addr uint32) bool {
	return addr&alignMask == 0
}

// Skew converts a word-aligned heap address into a pointer Value.
func Skew(addr uint32) Value {
	return Value(addr - skew)
}

// Unskew returns the address a pointer Value refers to.
// Panics if v is a scalar; callers check IsScalar first.
func (v Value) Unskew() uint32 {
	if v.IsScalar() {
		panic(fmt.Sprintf("ptr: unskew of scalar %#x", uint32(v)))
	}
	return uint32(v) + skew
}

// IsScalar reports whether v is a packed scalar rather than a pointer.
func (v Value) IsScalar() bool {
	return uint32(v)&scalarMask == 0
}

// IsPointer reports whether v is a skewed pointer.
func (v Value) IsPointer() bool {
	return !v.IsScalar()
}

// FromScalar packs n into a Value, failing when n does not fit in 31 bits.
func FromScalar(n int32) (Value, error) {
	if n > MaxScalar || n < MinScalar {
		return 0, fmt.Errorf("ptr: scalar %d out of range [%d, %d]", n, MinScalar, MaxScalar)
	}
	return Value(uint32(n) << 1), nil
}

// MustScalar is FromScalar for constants known to be in range.
func MustScalar(n int32) Value {
	v, err := FromScalar(n)
	if err != nil {
		panic(err)
	}
	return v
}

// Scalar returns the integer packed in v.
// Panics if v is a pointer.
func (v Value) Scalar() int32 {
	if !v.IsScalar() {
		panic(fmt.Sprintf("ptr: scalar read of pointer %#x", uint32(v)))
	}
	return int32(v) >> 1
}

// String renders v the way heap dumps show raw words.
func (v Value) String() string {
	return fmt.Sprintf("%#x", uint32(v))
}
