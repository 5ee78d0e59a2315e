// Package snapshot persists heap images: the arena bytes together with the
// heap bounds, the static roots reference and the closure table. Images
// are encoded with msgpack or canonical CBOR and can be kept in a bbolt
// archive.
package snapshot

import (
	"fmt"

	"heapwalk/internal/heap"
	"heapwalk/internal/ptr"
	"heapwalk/internal/roots"
	"heapwalk/internal/rt"
)

// SchemaVersion is bumped whenever the Image layout changes.
const SchemaVersion uint16 = 1

// Image is a self-contained copy of a runtime heap.
type Image struct {
	Schema      uint16 `msgpack:"schema" cbor:"1,keyasint"`
	Base        uint32 `msgpack:"base" cbor:"2,keyasint"`
	HeapBase    uint32 `msgpack:"heap_base" cbor:"3,keyasint"`
	HeapPointer uint32 `msgpack:"hp" cbor:"4,keyasint"`
	StaticRoots uint32 `msgpack:"static_roots" cbor:"5,keyasint"`
	// Closures is nil when the closure table was never created.
	Closures []Slot `msgpack:"closures" cbor:"6,keyasint"`
	Data     []byte `msgpack:"data" cbor:"7,keyasint"`
}

// Slot is one persisted closure table slot.
type Slot struct {
	Value uint32 `msgpack:"v" cbor:"1,keyasint"`
	Live  bool   `msgpack:"l" cbor:"2,keyasint"`
}

// Capture copies the state of c into a new Image.
func Capture(c *rt.Context) *Image {
	a := c.Arena()
	img := &Image{
		Schema:      SchemaVersion,
		Base:        a.Base(),
		HeapBase:    c.HeapBase(),
		HeapPointer: c.HeapPointer(),
		StaticRoots: uint32(c.StaticRootsValue()),
		Data:        append([]byte(nil), a.Data()...),
	}
	if t := c.ClosureTable(); t != nil {
		img.Closures = make([]Slot, 0, t.Len())
		for _, s := range t.Slots() {
			img.Closures = append(img.Closures, Slot{Value: uint32(s.Value), Live: s.Live})
		}
	}
	return img
}

// Open rebuilds a runtime context over a private copy of the image data.
// cfg supplies the host, tracer and format options; its heap fields are
// replaced by the image's.
func (img *Image) Open(cfg rt.Config) (*rt.Context, error) {
	if img.Schema != SchemaVersion {
		return nil, fmt.Errorf("snapshot: schema %d, want %d", img.Schema, SchemaVersion)
	}
	a, err := heap.Load(img.Base, append([]byte(nil), img.Data...))
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	cfg.HeapBase = img.HeapBase
	cfg.HeapPointer = img.HeapPointer
	cfg.StaticRoots = ptr.Value(img.StaticRoots)
	cfg.Closures = nil
	if img.Closures != nil {
		slots := make([]roots.Slot, len(img.Closures))
		for i, s := range img.Closures {
			slots[i] = roots.Slot{Value: ptr.Value(s.Value), Live: s.Live}
		}
		if cfg.Closures, err = roots.RestoreClosureTable(slots); err != nil {
			return nil, fmt.Errorf("snapshot: %w", err)
		}
	}
	return rt.New(a, cfg)
}
