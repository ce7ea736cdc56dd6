package seatypes

import "testing"

func TestComputeLayoutPoint(t *testing.T) {
	fields := []Field{
		{Name: "x", Type: Int()},
		{Name: "y", Type: Int()},
	}
	lay := ComputeLayout(fields, false)

	if lay.Offsets[0] != 0 || lay.Offsets[1] != 4 {
		t.Errorf("offsets = %v, want [0 4]", lay.Offsets)
	}
	if lay.Size != 8 {
		t.Errorf("size = %d, want 8", lay.Size)
	}
	if lay.Align != 4 {
		t.Errorf("align = %d, want 4", lay.Align)
	}
}

func TestComputeLayoutPadding(t *testing.T) {
	fields := []Field{
		{Name: "tag", Type: Char()},
		{Name: "value", Type: Long()},
		{Name: "flag", Type: Bool()},
	}
	lay := ComputeLayout(fields, false)

	want := []int64{0, 8, 16}
	for i, off := range want {
		if lay.Offsets[i] != off {
			t.Errorf("offset[%d] = %d, want %d", i, lay.Offsets[i], off)
		}
	}
	// Trailing padding keeps the size a multiple of the max alignment.
	if lay.Size != 24 {
		t.Errorf("size = %d, want 24", lay.Size)
	}
	if lay.Align != 8 {
		t.Errorf("align = %d, want 8", lay.Align)
	}
}

func TestLayoutInvariants(t *testing.T) {
	fields := []Field{
		{Name: "a", Type: Int()},
		{Name: "b", Type: Char()},
		{Name: "c", Type: Short()},
		{Name: "d", Type: Pointer(Int())},
		{Name: "e", Type: Bool()},
	}
	lay := ComputeLayout(fields, false)

	if lay.Offsets[0] != 0 {
		t.Errorf("first field at %d, want 0", lay.Offsets[0])
	}
	for i := 1; i < len(fields); i++ {
		if lay.Offsets[i] < lay.Offsets[i-1] {
			t.Errorf("offsets decrease at field %d: %v", i, lay.Offsets)
		}
	}
	for i, f := range fields {
		if lay.Offsets[i]%AlignOf(f.Type) != 0 {
			t.Errorf("field %d at %d violates alignment %d", i, lay.Offsets[i], AlignOf(f.Type))
		}
	}
	if lay.Size%lay.Align != 0 {
		t.Errorf("size %d not a multiple of align %d", lay.Size, lay.Align)
	}
}

func TestComputeLayoutUnion(t *testing.T) {
	fields := []Field{
		{Name: "i", Type: Int()},
		{Name: "l", Type: Long()},
		{Name: "c", Type: Char()},
	}
	lay := ComputeLayout(fields, true)

	for i, off := range lay.Offsets {
		if off != 0 {
			t.Errorf("union offset[%d] = %d, want 0", i, off)
		}
	}
	if lay.Size != 8 {
		t.Errorf("union size = %d, want 8", lay.Size)
	}
}

func TestCardDataLayout(t *testing.T) {
	card := Tstruct{Name: "CardData", Fields: []Field{
		{Name: RefcountField, Type: Int()},
		{Name: "health", Type: Int()},
		{Name: "attack", Type: Int()},
		{Name: "range", Type: Int()},
		{Name: "can_move", Type: Bool()},
	}}
	env := NewEnv()

	if off := env.FieldOffset(card, RefcountField); off != 0 {
		t.Errorf("refcount offset = %d, want 0", off)
	}
	if off := env.FieldOffset(card, "can_move"); off != 16 {
		t.Errorf("can_move offset = %d, want 16", off)
	}
	if size := SizeOf(card); size != 20 {
		t.Errorf("size = %d, want 20", size)
	}
}

func TestEnvCachesLayouts(t *testing.T) {
	s := Tstruct{Name: "S", Fields: []Field{{Name: "x", Type: Int()}}}
	env := NewEnv()

	first := env.LayoutOf(s)
	second := env.LayoutOf(s)
	if first != second {
		t.Error("layout recomputed instead of cached")
	}
}

func TestIsARCEligible(t *testing.T) {
	tests := []struct {
		name   string
		fields []Field
		want   bool
	}{
		{"refcount first", []Field{{Name: RefcountField, Type: Int()}, {Name: "x", Type: Int()}}, true},
		{"refcount long", []Field{{Name: RefcountField, Type: Long()}}, true},
		{"no refcount", []Field{{Name: "x", Type: Int()}}, false},
		{"empty struct", nil, false},
		{"refcount pointer type", []Field{{Name: RefcountField, Type: Pointer(Int())}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsARCEligible(Tstruct{Name: "T", Fields: tt.fields})
			if got != tt.want {
				t.Errorf("IsARCEligible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSizeOfScalars(t *testing.T) {
	tests := []struct {
		typ  Type
		want int64
	}{
		{Char(), 1},
		{Bool(), 1},
		{Short(), 2},
		{Int(), 4},
		{Long(), 8},
		{Intptr(), 8},
		{Pointer(Void()), 8},
		{Tenum{Name: "E"}, 4},
		{Array(Int(), 10), 40},
	}
	for _, tt := range tests {
		if got := SizeOf(tt.typ); got != tt.want {
			t.Errorf("SizeOf(%s) = %d, want %d", tt.typ, got, tt.want)
		}
	}
}
