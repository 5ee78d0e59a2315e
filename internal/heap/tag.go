package heap

import "fmt"

// Tag is the first word of every heap object. Numeric values are a fixed
// agreement with the code generator.
type Tag uint32

const (
	TagObject  Tag = 1
	TagObjInd  Tag = 2
	TagArray   Tag = 3
	TagBits64  Tag = 5
	TagMutBox  Tag = 6
	TagClosure Tag = 7
	TagSome    Tag = 8
	TagVariant Tag = 9
	TagBlob    Tag = 10
	TagFwdPtr  Tag = 11
	TagBits32  Tag = 12
	TagBigInt  Tag = 13
	TagConcat  Tag = 14
)

// VarKind says how the variable-length body of a shape is measured.
type VarKind uint8

const (
	// VarNone marks fixed-size shapes.
	VarNone VarKind = iota
	// VarWords means the count word holds a number of words.
	VarWords
	// VarBytes means the count word holds a number of bytes, padded to words.
	VarBytes
)

// Layout is the registry entry of one tag.
type Layout struct {
	Tag  Tag
	Name string
	// HeaderWords includes the tag word.
	HeaderWords uint32
	Var         VarKind
	// CountWord is the header word index holding the variable length.
	CountWord uint32
}

var layouts = [...]Layout{
	TagObject:  {Tag: TagObject, Name: "Object", HeaderWords: 3, Var: VarWords, CountWord: 1},
	TagObjInd:  {Tag: TagObjInd, Name: "ObjInd", HeaderWords: 2},
	TagArray:   {Tag: TagArray, Name: "Array", HeaderWords: 2, Var: VarWords, CountWord: 1},
	TagBits64:  {Tag: TagBits64, Name: "Bits64", HeaderWords: 3},
	TagMutBox:  {Tag: TagMutBox, Name: "MutBox", HeaderWords: 2},
	TagClosure: {Tag: TagClosure, Name: "Closure", HeaderWords: 3, Var: VarWords, CountWord: 2},
	TagSome:    {Tag: TagSome, Name: "Some", HeaderWords: 2},
	TagVariant: {Tag: TagVariant, Name: "Variant", HeaderWords: 3},
	TagBlob:    {Tag: TagBlob, Name: "Blob", HeaderWords: 2, Var: VarBytes, CountWord: 1},
	TagFwdPtr:  {Tag: TagFwdPtr, Name: "FwdPtr", HeaderWords: 2},
	TagBits32:  {Tag: TagBits32, Name: "Bits32", HeaderWords: 2},
	TagBigInt:  {Tag: TagBigInt, Name: "BigInt", HeaderWords: 4, Var: VarWords, CountWord: 3},
	TagConcat:  {Tag: TagConcat, Name: "Concat", HeaderWords: 4},
}

// LayoutOf returns the registered layout for t.
func LayoutOf(t Tag) (Layout, bool) {
	if int(t) >= len(layouts) {
		return Layout{}, false
	}
	l := layouts[t]
	if l.HeaderWords == 0 {
		return Layout{}, false
	}
	return l, true
}

// Tags returns every registered tag in numeric order.
func Tags() []Tag {
	out := make([]Tag, 0, len(layouts))
	for i := range layouts {
		if layouts[i].HeaderWords != 0 {
			out = append(out, layouts[i].Tag)
		}
	}
	return out
}

// String returns the shape name, or "tag#N" for unregistered values.
func (t Tag) String() string {
	if l, ok := LayoutOf(t); ok {
		return l.Name
	}
	return fmt.Sprintf("tag#%d", uint32(t))
}
