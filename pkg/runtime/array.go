// Package runtime models the emitted runtime artifacts: the growable
// tagged array and the ARC helpers. The Go TaggedArray here is the
// executable reference for the C code in the prelude; the evaluator uses
// it to run fixture programs.
package runtime

// ValueType tags one element of a tagged array.
type ValueType int32

const (
	TagInt ValueType = iota
	TagString
	TagStruct
)

func (t ValueType) String() string {
	names := []string{"AHOY_TYPE_INT", "AHOY_TYPE_STRING", "AHOY_TYPE_STRUCT"}
	if int(t) < len(names) {
		return names[t]
	}
	return "?"
}

// Element is one (opaque word, type tag) pair.
type Element struct {
	Word int64
	Tag  ValueType
}

// TaggedArray is an ordered, index-addressed sequence of tagged words.
// It is a container of references, never an owner: removing or dropping
// an element performs no release; element lifetime is ARC's concern.
type TaggedArray struct {
	elems []Element
	cap   int
}

// NewTaggedArray returns an empty array with zero capacity.
func NewTaggedArray() *TaggedArray {
	return &TaggedArray{}
}

// Len returns the number of elements pushed so far.
func (a *TaggedArray) Len() int {
	return len(a.elems)
}

// Cap returns the current capacity. Capacity grows empty -> 4 -> double
// on exhaustion and is never shrunk.
func (a *TaggedArray) Cap() int {
	return a.cap
}

// Push appends a tagged word, growing the backing storage when full.
func (a *TaggedArray) Push(word int64, tag ValueType) {
	if len(a.elems) >= a.cap {
		if a.cap == 0 {
			a.cap = 4
		} else {
			a.cap *= 2
		}
		grown := make([]Element, len(a.elems), a.cap)
		copy(grown, a.elems)
		a.elems = grown
	}
	a.elems = append(a.elems, Element{Word: word, Tag: tag})
}

// Get returns the element at index i in push order.
func (a *TaggedArray) Get(i int) (Element, bool) {
	if i < 0 || i >= len(a.elems) {
		return Element{}, false
	}
	return a.elems[i], true
}
