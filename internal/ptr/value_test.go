package ptr

import (
	"math"
	"testing"
)

// alignedSample yields word-aligned addresses covering both ends of the
// address space plus a stride through the middle.
func alignedSample(yield func(uint32) bool) {
	for a := uint32(0); a < 1<<16; a += WordSize {
		if !yield(a) {
			return
		}
	}
	for a := uint64(1 << 16); a < math.MaxUint32; a += 4093 * WordSize {
		if !yield(uint32(a)) {
			return
		}
	}
	for a := uint64(math.MaxUint32 - 1<<16 + 1); a <= math.MaxUint32; a += WordSize {
		if !yield(uint32(a)) {
			return
		}
	}
}

func TestSkewRoundTrip(t *testing.T) {
	for a := range alignedSample {
		if got := Skew(a).Unskew(); got != a {
			t.Fatalf("Unskew(Skew(%#x)) = %#x", a, got)
		}
	}
}

func TestSkewedPointerIsNeverScalar(t *testing.T) {
	for a := range alignedSample {
		if Skew(a).IsScalar() {
			t.Fatalf("Skew(%#x) = %#x reads as scalar", a, uint32(Skew(a)))
		}
	}
}

func TestZeroWordIsNotAddressZero(t *testing.T) {
	if !Null.IsScalar() {
		t.Fatalf("Null must be a scalar")
	}
	if Skew(0) == Null {
		t.Fatalf("Skew(0) aliases the zero word")
	}
	if Skew(0) != 0xFFFFFFFF {
		t.Errorf("Skew(0) = %#x, want 0xffffffff", uint32(Skew(0)))
	}
}

func TestScalarPacking(t *testing.T) {
	tests := []int32{0, 1, -1, 42, -42, MaxScalar, MinScalar}
	for _, n := range tests {
		v, err := FromScalar(n)
		if err != nil {
			t.Fatalf("FromScalar(%d): %v", n, err)
		}
		if !v.IsScalar() {
			t.Errorf("FromScalar(%d) = %#x is not a scalar", n, uint32(v))
		}
		if got := v.Scalar(); got != n {
			t.Errorf("FromScalar(%d).Scalar() = %d", n, got)
		}
	}
}

func TestScalarOutOfRange(t *testing.T) {
	for _, n := range []int32{MaxScalar + 1, MinScalar - 1, math.MaxInt32, math.MinInt32} {
		if _, err := FromScalar(n); err == nil {
			t.Errorf("FromScalar(%d) succeeded, want range error", n)
		}
	}
}

func TestUnskewScalarPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on Unskew of scalar")
		}
	}()
	MustScalar(7).Unskew()
}

func TestAligned(t *testing.T) {
	if !Aligned(0) || !Aligned(8) {
		t.Errorf("word multiples must be aligned")
	}
	if Aligned(2) || Aligned(7) {
		t.Errorf("non word multiples must not be aligned")
	}
}
