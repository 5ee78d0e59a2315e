// Package roots holds the entry points of a heap traversal: the closure
// table, which hands stable numeric handles to objects referenced from
// outside the heap, and the static roots written once at startup.
package roots

import (
	minheap "container/heap"
	"errors"
	"fmt"
	"iter"

	"fortio.org/safecast"

	"heapwalk/internal/ptr"
)

var (
	// ErrIndexOutOfRange is returned for an index the table never handed out.
	ErrIndexOutOfRange = errors.New("closure table index out of range")
	// ErrSlotFree is returned for an index whose entry was removed.
	ErrSlotFree = errors.New("closure table slot is free")
)

// SlotError reports misuse of a closure table index.
type SlotError struct {
	Op    string
	Index uint32
	Len   int
	Err   error
}

func (e *SlotError) Error() string {
	return fmt.Sprintf("closure table %s(%d) with %d slots: %v", e.Op, e.Index, e.Len, e.Err)
}

func (e *SlotError) Unwrap() error { return e.Err }

// Slot is one closure table entry as stored in snapshots.
type Slot struct {
	Value ptr.Value
	Live  bool
}

// ClosureTable is an ordered sequence of slots. The index of a live entry
// is a stable handle: it never changes while the entry is live and is only
// reused after Remove.
type ClosureTable struct {
	slots []Slot
	free  freeList
	count int
}

// NewClosureTable returns an empty table.
func NewClosureTable() *ClosureTable {
	return &ClosureTable{}
}

// Add stores v in the lowest free slot, or in a new slot, and returns its
// index.
func (t *ClosureTable) Add(v ptr.Value) uint32 {
	t.count++
	if t.free.Len() > 0 {
		i := minheap.Pop(&t.free).(uint32)
		t.slots[i] = Slot{Value: v, Live: true}
		return i
	}
	i, err := safecast.Conv[uint32](len(t.slots))
	if err != nil {
		panic(fmt.Sprintf("closure table full: %v", err))
	}
	t.slots = append(t.slots, Slot{Value: v, Live: true})
	return i
}

// Get returns the value stored at index i.
func (t *ClosureTable) Get(i uint32) (ptr.Value, error) {
	if err := t.check("get", i); err != nil {
		return 0, err
	}
	return t.slots[i].Value, nil
}

// Remove frees slot i and returns the value it held.
func (t *ClosureTable) Remove(i uint32) (ptr.Value, error) {
	if err := t.check("remove", i); err != nil {
		return 0, err
	}
	v := t.slots[i].Value
	t.slots[i] = Slot{}
	minheap.Push(&t.free, i)
	t.count--
	return v, nil
}

// Recall is Get followed by Remove.
func (t *ClosureTable) Recall(i uint32) (ptr.Value, error) {
	return t.Remove(i)
}

func (t *ClosureTable) check(op string, i uint32) error {
	if uint64(i) >= uint64(len(t.slots)) {
		return &SlotError{Op: op, Index: i, Len: len(t.slots), Err: ErrIndexOutOfRange}
	}
	if !t.slots[i].Live {
		return &SlotError{Op: op, Index: i, Len: len(t.slots), Err: ErrSlotFree}
	}
	return nil
}

// Len returns the number of slots, free ones included.
func (t *ClosureTable) Len() int { return len(t.slots) }

// Count returns the number of live entries.
func (t *ClosureTable) Count() int { return t.count }

// All yields the live entries in index order.
func (t *ClosureTable) All() iter.Seq2[uint32, ptr.Value] {
	return func(yield func(uint32, ptr.Value) bool) {
		for i, s := range t.slots {
			if s.Live && !yield(uint32(i), s.Value) {
				return
			}
		}
	}
}

// Slots returns a copy of every slot for persistence.
func (t *ClosureTable) Slots() []Slot {
	return append([]Slot(nil), t.slots...)
}

// RestoreClosureTable rebuilds a table from persisted slots.
func RestoreClosureTable(slots []Slot) (*ClosureTable, error) {
	if _, err := safecast.Conv[uint32](len(slots)); err != nil {
		return nil, fmt.Errorf("closure table: %d slots: %w", len(slots), err)
	}
	t := &ClosureTable{slots: append([]Slot(nil), slots...)}
	for i, s := range t.slots {
		if s.Live {
			t.count++
			continue
		}
		t.slots[i] = Slot{}
		t.free = append(t.free, uint32(i))
	}
	minheap.Init(&t.free)
	return t, nil
}

// freeList is a min-heap of free slot indices.
type freeList []uint32

func (f freeList) Len() int           { return len(f) }
func (f freeList) Less(i, j int) bool { return f[i] < f[j] }
func (f freeList) Swap(i, j int)      { f[i], f[j] = f[j], f[i] }

func (f *freeList) Push(x any) { *f = append(*f, x.(uint32)) }

func (f *freeList) Pop() any {
	old := *f
	n := len(old)
	x := old[n-1]
	*f = old[:n-1]
	return x
}
