package main

import (
	"fmt"
	"strconv"
	"strings"

	"fortio.org/safecast"

	"heapwalk/internal/ptr"
)

// parseValue reads a value argument:
//
//	null        the null reference (scalar 0)
//	int:N       the scalar N
//	@ADDR       a reference to the object at ADDR
//	WORD        a raw value word, decimal or 0x-prefixed
func parseValue(s string) (ptr.Value, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "null":
		return ptr.Null, nil
	case strings.HasPrefix(s, "int:"):
		n, err := strconv.ParseInt(strings.TrimPrefix(s, "int:"), 0, 64)
		if err != nil {
			return 0, fmt.Errorf("value %q: %w", s, err)
		}
		n32, err := safecast.Conv[int32](n)
		if err != nil {
			return 0, fmt.Errorf("value %q: %w", s, err)
		}
		return ptr.FromScalar(n32)
	case strings.HasPrefix(s, "@"):
		addr, err := parseWord(strings.TrimPrefix(s, "@"))
		if err != nil {
			return 0, fmt.Errorf("value %q: %w", s, err)
		}
		if !ptr.Aligned(addr) {
			return 0, fmt.Errorf("value %q: address %#x is not word aligned", s, addr)
		}
		return ptr.Skew(addr), nil
	default:
		w, err := parseWord(s)
		if err != nil {
			return 0, fmt.Errorf("value %q: %w", s, err)
		}
		return ptr.Value(w), nil
	}
}

func parseWord(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, err
	}
	return safecast.Conv[uint32](n)
}
