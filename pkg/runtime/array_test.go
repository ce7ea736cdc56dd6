package runtime

import "testing"

func TestTaggedArrayGrowth(t *testing.T) {
	a := NewTaggedArray()
	if a.Cap() != 0 || a.Len() != 0 {
		t.Fatalf("new array: len=%d cap=%d, want 0/0", a.Len(), a.Cap())
	}

	a.Push(10, TagInt)
	if a.Cap() != 4 {
		t.Errorf("cap after first push = %d, want 4", a.Cap())
	}

	for i := int64(1); i < 4; i++ {
		a.Push(10+i, TagInt)
	}
	if a.Cap() != 4 || a.Len() != 4 {
		t.Errorf("after 4 pushes: len=%d cap=%d, want 4/4", a.Len(), a.Cap())
	}

	a.Push(99, TagString)
	if a.Cap() != 8 {
		t.Errorf("cap after fifth push = %d, want 8", a.Cap())
	}
	if a.Len() != 5 {
		t.Errorf("len after fifth push = %d, want 5", a.Len())
	}
}

func TestTaggedArrayOrder(t *testing.T) {
	a := NewTaggedArray()
	words := []int64{7, 3, 9}
	tags := []ValueType{TagInt, TagStruct, TagString}
	for i := range words {
		a.Push(words[i], tags[i])
	}

	for i := range words {
		el, ok := a.Get(i)
		if !ok {
			t.Fatalf("Get(%d) reported out of range", i)
		}
		if el.Word != words[i] || el.Tag != tags[i] {
			t.Errorf("Get(%d) = {%d %v}, want {%d %v}", i, el.Word, el.Tag, words[i], tags[i])
		}
	}
}

func TestTaggedArrayGetOutOfRange(t *testing.T) {
	a := NewTaggedArray()
	a.Push(1, TagInt)

	for _, i := range []int{-1, 1, 100} {
		if _, ok := a.Get(i); ok {
			t.Errorf("Get(%d) should be out of range", i)
		}
	}
}

func TestValueTypeString(t *testing.T) {
	if TagStruct.String() != "AHOY_TYPE_STRUCT" {
		t.Errorf("TagStruct = %q", TagStruct.String())
	}
	if ValueType(42).String() != "?" {
		t.Errorf("unknown tag = %q", ValueType(42).String())
	}
}
