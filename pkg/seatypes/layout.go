package seatypes

// The layout rules here must reproduce what a standard C compiler produces
// for the same declarations: fixture programs read field offsets directly
// and do pointer arithmetic across fields.

// RefcountField is the reserved first field that makes a struct ARC-eligible.
const RefcountField = "__arc_refcount"

// Layout is the computed ABI layout of an aggregate: one byte offset per
// field in declaration order, plus the padded total size and alignment.
type Layout struct {
	Offsets []int64
	Size    int64
	Align   int64
}

// AlignTo rounds n up to the nearest multiple of align.
func AlignTo(n, align int64) int64 {
	if align <= 0 {
		return n
	}
	return (n + align - 1) / align * align
}

// SizeOf returns the byte size of a type under the LP64 ABI.
func SizeOf(t Type) int64 {
	switch tt := t.(type) {
	case Tvoid:
		return 1
	case Tint:
		switch tt.Size {
		case I8, IBool:
			return 1
		case I16:
			return 2
		case I32:
			return 4
		default: // I64, IPtr
			return 8
		}
	case Tenum:
		return 4
	case Tpointer, Tfunction:
		return 8
	case Tarray:
		if tt.Len < 0 {
			return 0
		}
		return tt.Len * SizeOf(tt.Elem)
	case Tstruct:
		return ComputeLayout(tt.Fields, false).Size
	case Tunion:
		return ComputeLayout(tt.Fields, true).Size
	}
	return 0
}

// AlignOf returns the alignment of a type under the LP64 ABI.
func AlignOf(t Type) int64 {
	switch tt := t.(type) {
	case Tarray:
		return AlignOf(tt.Elem)
	case Tstruct:
		return ComputeLayout(tt.Fields, false).Align
	case Tunion:
		return ComputeLayout(tt.Fields, true).Align
	}
	return SizeOf(t)
}

// ComputeLayout lays out fields in declaration order. For structs, each
// field sits at the smallest multiple of its alignment not before the end
// of the previous field; for unions every field sits at offset 0. Total
// size is padded to a multiple of the max field alignment.
func ComputeLayout(fields []Field, union bool) Layout {
	lay := Layout{Offsets: make([]int64, len(fields)), Align: 1}
	var offset int64
	for i, f := range fields {
		size := SizeOf(f.Type)
		align := AlignOf(f.Type)
		if align > lay.Align {
			lay.Align = align
		}
		if union {
			lay.Offsets[i] = 0
			if size > lay.Size {
				lay.Size = size
			}
			continue
		}
		offset = AlignTo(offset, align)
		lay.Offsets[i] = offset
		offset += size
	}
	if !union {
		lay.Size = offset
	}
	lay.Size = AlignTo(lay.Size, lay.Align)
	return lay
}

// Env caches one Layout per named aggregate for a compilation unit.
// Layouts are computed lazily and written once; the cache is unit-scoped,
// never shared across units.
type Env struct {
	layouts map[string]*Layout
}

// NewEnv creates an empty layout cache.
func NewEnv() *Env {
	return &Env{layouts: make(map[string]*Layout)}
}

// LayoutOf returns the cached layout of a struct or union, computing it on
// first use. Anonymous aggregates are computed fresh each call.
func (e *Env) LayoutOf(t Type) *Layout {
	var name string
	var fields []Field
	var union bool
	switch tt := t.(type) {
	case Tstruct:
		name, fields = tt.Name, tt.Fields
	case Tunion:
		name, fields, union = tt.Name, tt.Fields, true
	default:
		return nil
	}
	if name != "" {
		if lay, ok := e.layouts[name]; ok {
			return lay
		}
	}
	lay := ComputeLayout(fields, union)
	if name != "" {
		e.layouts[name] = &lay
	}
	return &lay
}

// FieldOffset returns the byte offset of the named field, or -1 when the
// aggregate has no such field.
func (e *Env) FieldOffset(t Type, name string) int64 {
	lay := e.LayoutOf(t)
	if lay == nil {
		return -1
	}
	var fields []Field
	switch tt := t.(type) {
	case Tstruct:
		fields = tt.Fields
	case Tunion:
		fields = tt.Fields
	}
	for i, f := range fields {
		if f.Name == name {
			return lay.Offsets[i]
		}
	}
	return -1
}

// IsARCEligible reports whether s participates in automatic reference
// counting: its first declared field is the reserved refcount field with
// integer type. The resolver rejects declarations where the reserved name
// appears anywhere else, so position and name agree by the time layouts
// are consulted.
func IsARCEligible(s Tstruct) bool {
	if len(s.Fields) == 0 {
		return false
	}
	first := s.Fields[0]
	return first.Name == RefcountField && IsInteger(first.Type)
}
