package walk_test

import (
	"testing"

	"heapwalk/internal/heap"
	"heapwalk/internal/ptr"
	"heapwalk/internal/scan"
	"heapwalk/internal/walk"
)

const base = 0x4000

func newBuilder(t *testing.T) *heap.Builder {
	t.Helper()
	a, err := heap.NewArena(base, 4096)
	if err != nil {
		t.Fatalf("NewArena: %v", err)
	}
	return heap.NewBuilder(a)
}

func collect(w *walk.Walker, root ptr.Value) []walk.Visit {
	var out []walk.Visit
	w.Walk(root, func(v walk.Visit) walk.Action {
		out = append(out, v)
		return walk.Continue
	})
	return out
}

func tagsOf(visits []walk.Visit) []heap.Tag {
	tags := make([]heap.Tag, len(visits))
	for i, v := range visits {
		tags[i] = v.Object.Tag()
	}
	return tags
}

func sameTags(t *testing.T, got, want []heap.Tag) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("visited %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("visited %v, want %v", got, want)
		}
	}
}

func TestWalkObjectArrayBlob(t *testing.T) {
	b := newBuilder(t)
	blob := b.Text("leaf")
	arr := b.Array(blob)
	obj := b.Object(0, arr)

	visits := collect(walk.New(b.Arena(), walk.Options{}), obj)
	sameTags(t, tagsOf(visits), []heap.Tag{heap.TagObject, heap.TagArray, heap.TagBlob})

	wantAddr := []uint32{obj.Unskew(), arr.Unskew(), blob.Unskew()}
	for i, v := range visits {
		if v.Object.Addr() != wantAddr[i] {
			t.Errorf("visit %d at %#x, want %#x", i, v.Object.Addr(), wantAddr[i])
		}
		if v.Depth != i {
			t.Errorf("visit %d depth = %d", i, v.Depth)
		}
	}
	if visits[0].Field != -1 || visits[0].Parent != 0 {
		t.Errorf("root visit = %+v", visits[0])
	}
	if visits[2].Parent != arr.Unskew() || visits[2].Field != 0 {
		t.Errorf("blob visit parent=%#x field=%d", visits[2].Parent, visits[2].Field)
	}
}

func TestWalkDeclaredOrder(t *testing.T) {
	b := newBuilder(t)
	x, y := b.Bits32(1), b.Bits64(2)
	clo := b.Closure(7, x, ptr.MustScalar(5), y)
	rec := b.Object(0, clo, b.Text("z"))

	visits := collect(walk.New(b.Arena(), walk.Options{}), rec)
	sameTags(t, tagsOf(visits), []heap.Tag{
		heap.TagObject, heap.TagClosure, heap.TagBits32, heap.TagBits64, heap.TagBlob,
	})
	if visits[3].Field != 2 {
		t.Errorf("bits64 reached through field %d, want 2", visits[3].Field)
	}
}

func TestWalkIndirectionsAndRopes(t *testing.T) {
	b := newBuilder(t)
	left := b.Text("ab")
	right := b.Text("cd")
	rope := b.Concat(4, left, right)
	outer := b.Concat(6, rope, b.Text("ef"))
	v := b.Variant(2, b.Some(b.ObjInd(b.MutBox(outer))))

	visits := collect(walk.New(b.Arena(), walk.Options{}), v)
	sameTags(t, tagsOf(visits), []heap.Tag{
		heap.TagVariant, heap.TagSome, heap.TagObjInd, heap.TagMutBox,
		heap.TagConcat, heap.TagConcat, heap.TagBlob, heap.TagBlob, heap.TagBlob,
	})
	if visits[6].Object.Addr() != left.Unskew() || visits[7].Object.Addr() != right.Unskew() {
		t.Errorf("rope children out of order")
	}
}

func TestWalkLeavesDoNotRecurse(t *testing.T) {
	b := newBuilder(t)
	// Limb and payload words that look like pointers must not be followed.
	target := b.Bits32(1)
	big := b.BigInt(0, 1, []uint32{uint32(target)})
	arr := b.Array(big)

	visits := collect(walk.New(b.Arena(), walk.Options{}), arr)
	sameTags(t, tagsOf(visits), []heap.Tag{heap.TagArray, heap.TagBigInt})
}

func TestWalkAllArrayElements(t *testing.T) {
	b := newBuilder(t)
	elems := make([]ptr.Value, 25)
	for i := range elems {
		elems[i] = b.Bits32(uint32(i))
	}
	arr := b.Array(elems...)
	if n := walk.New(b.Arena(), walk.Options{}).Walk(arr, func(walk.Visit) walk.Action { return walk.Continue }); n != 26 {
		t.Errorf("visited %d, want 26", n)
	}
}

func TestWalkScalarRoot(t *testing.T) {
	b := newBuilder(t)
	if n := walk.New(b.Arena(), walk.Options{}).Walk(ptr.MustScalar(9), func(walk.Visit) walk.Action {
		t.Fatalf("scalar root must not visit")
		return walk.Stop
	}); n != 0 {
		t.Errorf("visited %d", n)
	}
}

func TestWalkSkipAndStop(t *testing.T) {
	b := newBuilder(t)
	inner := b.Array(b.Bits32(1), b.Bits32(2))
	root := b.Array(inner, b.Bits32(3))
	w := walk.New(b.Arena(), walk.Options{})

	var skipped []heap.Tag
	w.Walk(root, func(v walk.Visit) walk.Action {
		skipped = append(skipped, v.Object.Tag())
		if v.Depth == 1 {
			return walk.SkipChildren
		}
		return walk.Continue
	})
	sameTags(t, skipped, []heap.Tag{heap.TagArray, heap.TagArray, heap.TagBits32})

	n := w.Walk(root, func(v walk.Visit) walk.Action {
		if v.Depth == 1 {
			return walk.Stop
		}
		return walk.Continue
	})
	if n != 2 {
		t.Errorf("stop visited %d, want 2", n)
	}
}

func TestWalkUniqueSharedNode(t *testing.T) {
	b := newBuilder(t)
	shared := b.Text("shared")
	root := b.Array(shared, b.Some(shared))

	all := collect(walk.New(b.Arena(), walk.Options{}), root)
	if len(all) != 4 {
		t.Fatalf("default walk visited %d, want 4", len(all))
	}
	w := walk.New(b.Arena(), walk.Options{Unique: true})
	if got := len(collect(w, root)); got != 3 {
		t.Fatalf("unique walk visited %d, want 3", got)
	}
	if got := len(collect(w, root)); got != 0 {
		t.Errorf("second unique walk without Reset visited %d", got)
	}
	w.Reset()
	if got := len(collect(w, root)); got != 3 {
		t.Errorf("after Reset visited %d, want 3", got)
	}
}

func TestWalkDeepChainUsesWorkList(t *testing.T) {
	a, err := heap.NewArena(base, 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	b := heap.NewBuilder(a)
	v := b.Bits32(0)
	const depth = 50000
	for i := 0; i < depth; i++ {
		v = b.MutBox(v)
	}
	maxDepth := 0
	n := walk.New(a, walk.Options{}).Walk(v, func(vis walk.Visit) walk.Action {
		maxDepth = max(maxDepth, vis.Depth)
		return walk.Continue
	})
	if n != depth+1 || maxDepth != depth {
		t.Errorf("visited %d (max depth %d), want %d", n, maxDepth, depth+1)
	}
}

func TestWalkForwardingModes(t *testing.T) {
	b := newBuilder(t)
	old := b.MutBox(ptr.Null)
	leaf := b.Text("moved")
	relocated := b.MutBox(leaf)
	b.Forward(old, relocated)
	root := b.Array(old)

	live := collect(walk.New(b.Arena(), walk.Options{Mode: walk.ModeLive}), root)
	sameTags(t, tagsOf(live), []heap.Tag{heap.TagArray, heap.TagMutBox, heap.TagBlob})
	if !live[1].Forwarded || live[1].Object.Addr() != relocated.Unskew() {
		t.Errorf("live walk did not follow forwarding: %+v", live[1])
	}

	diag := collect(walk.New(b.Arena(), walk.Options{Mode: walk.ModeDiagnostic}), root)
	sameTags(t, tagsOf(diag), []heap.Tag{heap.TagArray, heap.TagFwdPtr})
	if diag[1].Forwarded {
		t.Errorf("diagnostic visit must report the marker itself")
	}
}

func TestWalkWithRelocationMap(t *testing.T) {
	b := newBuilder(t)
	a := b.Arena()
	old := b.Bits32(1)
	moved := b.Bits32(1)
	b.Forward(old, moved)
	root := b.Some(old)

	rel := walk.CollectForwarding(a, base, b.HP())
	if got, ok := rel.Resolve(old.Unskew()); !ok || got != moved.Unskew() {
		t.Fatalf("relocation of %#x = %#x, %v", old.Unskew(), got, ok)
	}
	if len(rel) != 1 {
		t.Fatalf("relocations = %v", rel)
	}

	// Clobber the old header: post-compaction traversal must not read it.
	a.SetWord(old.Unskew(), uint32(heap.TagBits32))
	a.SetWord(old.Unskew()+4, 0xBAD)

	visits := collect(walk.New(a, walk.Options{Relocations: rel}), root)
	if len(visits) != 2 || visits[1].Object.Addr() != moved.Unskew() || !visits[1].Forwarded {
		t.Fatalf("relocated walk = %+v", visits)
	}
}

func TestWalkForwardLoopFaults(t *testing.T) {
	b := newBuilder(t)
	x := b.MutBox(ptr.Null)
	y := b.MutBox(ptr.Null)
	b.Forward(x, y)
	b.Forward(y, x)
	err := heap.Guard(func() {
		walk.New(b.Arena(), walk.Options{}).Walk(x, func(walk.Visit) walk.Action { return walk.Continue })
	})
	f, ok := heap.AsFault(err)
	if !ok || f.Code != heap.FaultForwardLoop {
		t.Fatalf("expected forward loop fault, got %v", err)
	}
}

func TestCollectForwardingOverMultiWordShapes(t *testing.T) {
	b := newBuilder(t)
	a := b.Arena()
	elems := []ptr.Value{ptr.MustScalar(100), ptr.MustScalar(200), ptr.MustScalar(300)}
	oldArr := b.Array(elems...)
	oldRec := b.Object(0x99, ptr.MustScalar(7), ptr.MustScalar(8))
	tail := b.Bits32(5)
	newArr := b.Array(elems...)
	newRec := b.Object(0x99, ptr.MustScalar(7), ptr.MustScalar(8))
	b.Forward(oldArr, newArr)
	b.Forward(oldRec, newRec)

	var tags []heap.Tag
	var addrs []uint32
	scan.Scan(a, base, b.HP(), func(obj heap.Object) bool {
		tags = append(tags, obj.Tag())
		addrs = append(addrs, obj.Addr())
		return true
	})
	sameTags(t, tags, []heap.Tag{heap.TagFwdPtr, heap.TagFwdPtr, heap.TagBits32, heap.TagArray, heap.TagObject})
	if addrs[1] != oldRec.Unskew() || addrs[2] != tail.Unskew() {
		t.Errorf("scan addresses = %#x", addrs)
	}

	rel := walk.CollectForwarding(a, base, b.HP())
	recorded := walk.Relocations(b.Relocations())
	if len(rel) != 2 || len(recorded) != 2 {
		t.Fatalf("collected %v, recorded %v", rel, recorded)
	}
	for from, to := range recorded {
		if got, ok := rel.Resolve(from); !ok || got != to {
			t.Errorf("relocation of %#x = %#x, %v; recorded %#x", from, got, ok, to)
		}
	}
}

func TestWalkWithRecordedRelocations(t *testing.T) {
	b := newBuilder(t)
	a := b.Arena()
	leaf := b.Text("leaf")
	old := b.Array(leaf, ptr.MustScalar(1), leaf)
	moved := b.Array(leaf, ptr.MustScalar(1), leaf)
	b.Forward(old, moved)
	root := b.Some(old)

	// Post-compaction traversal never reads the old header.
	a.SetWord(old.Unskew(), 0xBAD)

	visits := collect(walk.New(a, walk.Options{Relocations: walk.Relocations(b.Relocations())}), root)
	sameTags(t, tagsOf(visits), []heap.Tag{heap.TagSome, heap.TagArray, heap.TagBlob, heap.TagBlob})
	if visits[1].Object.Addr() != moved.Unskew() || !visits[1].Forwarded {
		t.Fatalf("array visit = %+v", visits[1])
	}
}
