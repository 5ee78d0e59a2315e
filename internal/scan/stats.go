package scan

import (
	"sort"

	"heapwalk/internal/heap"
	"heapwalk/internal/ptr"
)

// TagStats aggregates the objects of one tag.
type TagStats struct {
	Tag   heap.Tag
	Count int
	Bytes uint64
	// Refs counts pointer-valued fields, scalars excluded.
	Refs int
}

// Stats summarizes a heap region.
type Stats struct {
	Objects int
	Bytes   uint64
	ByTag   []TagStats
}

// Collect scans [base, end) and aggregates per-tag counts and sizes.
func Collect(a *heap.Arena, base, end uint32) Stats {
	byTag := make(map[heap.Tag]*TagStats)
	var st Stats
	st.Objects = Scan(a, base, end, func(obj heap.Object) bool {
		ts := byTag[obj.Tag()]
		if ts == nil {
			ts = &TagStats{Tag: obj.Tag()}
			byTag[obj.Tag()] = ts
		}
		size := uint64(obj.Words()) * ptr.WordSize
		ts.Count++
		ts.Bytes += size
		for i := range obj.NumRefs() {
			if !obj.Ref(i).IsScalar() {
				ts.Refs++
			}
		}
		st.Bytes += size
		return true
	})
	st.ByTag = make([]TagStats, 0, len(byTag))
	for _, ts := range byTag {
		st.ByTag = append(st.ByTag, *ts)
	}
	sort.Slice(st.ByTag, func(i, j int) bool {
		return st.ByTag[i].Tag < st.ByTag[j].Tag
	})
	return st
}
