// Package seatypes defines the sea dialect's type system and the fixed
// LP64 layout rules the emitted C must agree with.
package seatypes

// Type is the interface for all types
type Type interface {
	implType()
	String() string
}

// Signedness represents signed/unsigned for integer types
type Signedness int

const (
	Signed Signedness = iota
	Unsigned
)

func (s Signedness) String() string {
	if s == Signed {
		return "signed"
	}
	return "unsigned"
}

// IntSize represents the rank of integer types
type IntSize int

const (
	I8  IntSize = iota // char
	I16                // short
	I32                // int
	I64                // long, long long
	IBool
	IPtr // intptr_t: pointer-sized integer, kept distinct for emission
)

func (s IntSize) String() string {
	names := []string{"i8", "i16", "i32", "i64", "ibool", "iptr"}
	if int(s) < len(names) {
		return names[s]
	}
	return "?"
}

// Tvoid represents the void type
type Tvoid struct{}

// Tint represents integer types (char, short, int, long, bool, intptr_t)
type Tint struct {
	Size IntSize
	Sign Signedness
}

// Tpointer represents pointer types
type Tpointer struct {
	Elem Type
}

// Tarray represents array types
type Tarray struct {
	Elem Type
	Len  int64 // -1 for incomplete array
}

// Tfunction represents function types
type Tfunction struct {
	Params   []Type
	Return   Type
	Variadic bool
}

// Tstruct represents struct types with resolved fields
type Tstruct struct {
	Name   string
	Fields []Field
}

// Tunion represents union types with resolved fields
type Tunion struct {
	Name   string
	Fields []Field
}

// Tenum represents enum types; enumerator values live in the resolver unit
type Tenum struct {
	Name string
}

// Field is a struct or union field
type Field struct {
	Name string
	Type Type
}

// Marker methods for Type interface
func (Tvoid) implType()     {}
func (Tint) implType()      {}
func (Tpointer) implType()  {}
func (Tarray) implType()    {}
func (Tfunction) implType() {}
func (Tstruct) implType()   {}
func (Tunion) implType()    {}
func (Tenum) implType()     {}

func (Tvoid) String() string { return "void" }

func (t Tint) String() string {
	switch t.Size {
	case IBool:
		return "bool"
	case IPtr:
		return "intptr_t"
	}
	sign := ""
	if t.Sign == Unsigned {
		sign = "unsigned "
	}
	switch t.Size {
	case I8:
		return sign + "char"
	case I16:
		return sign + "short"
	case I64:
		return sign + "long"
	}
	return sign + "int"
}

func (t Tpointer) String() string {
	if t.Elem == nil {
		return "void*"
	}
	return t.Elem.String() + "*"
}

func (t Tarray) String() string {
	if t.Elem == nil {
		return "?[]"
	}
	if t.Len < 0 {
		return t.Elem.String() + "[]"
	}
	return t.Elem.String() + "[...]"
}

func (t Tfunction) String() string {
	return "function"
}

func (t Tstruct) String() string {
	if t.Name == "" {
		return "struct <anonymous>"
	}
	return t.Name
}

func (t Tunion) String() string {
	if t.Name == "" {
		return "union <anonymous>"
	}
	return t.Name
}

func (t Tenum) String() string {
	if t.Name == "" {
		return "enum <anonymous>"
	}
	return t.Name
}

// Common type constructors

// Int returns the signed 32-bit int type
func Int() Type {
	return Tint{Size: I32, Sign: Signed}
}

// Char returns the signed char type
func Char() Type {
	return Tint{Size: I8, Sign: Signed}
}

// Short returns the signed short type
func Short() Type {
	return Tint{Size: I16, Sign: Signed}
}

// Long returns the signed long type
func Long() Type {
	return Tint{Size: I64, Sign: Signed}
}

// Bool returns the bool type
func Bool() Type {
	return Tint{Size: IBool, Sign: Unsigned}
}

// Intptr returns the intptr_t type
func Intptr() Type {
	return Tint{Size: IPtr, Sign: Signed}
}

// Void returns the void type
func Void() Type {
	return Tvoid{}
}

// Pointer returns a pointer to the given type
func Pointer(elem Type) Type {
	return Tpointer{Elem: elem}
}

// Array returns an array type
func Array(elem Type, n int64) Type {
	return Tarray{Elem: elem, Len: n}
}

// IsInteger reports whether t is an integer type (including bool, enum,
// and intptr_t).
func IsInteger(t Type) bool {
	switch t.(type) {
	case Tint, Tenum:
		return true
	}
	return false
}

// IsAggregate reports whether t is a struct or union.
func IsAggregate(t Type) bool {
	switch t.(type) {
	case Tstruct, Tunion:
		return true
	}
	return false
}

// Equal checks if two types are equal
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	switch ta := a.(type) {
	case Tvoid:
		_, ok := b.(Tvoid)
		return ok
	case Tint:
		tb, ok := b.(Tint)
		return ok && ta.Size == tb.Size && ta.Sign == tb.Sign
	case Tpointer:
		tb, ok := b.(Tpointer)
		return ok && Equal(ta.Elem, tb.Elem)
	case Tarray:
		tb, ok := b.(Tarray)
		return ok && ta.Len == tb.Len && Equal(ta.Elem, tb.Elem)
	case Tstruct:
		tb, ok := b.(Tstruct)
		return ok && ta.Name == tb.Name
	case Tunion:
		tb, ok := b.(Tunion)
		return ok && ta.Name == tb.Name
	case Tenum:
		tb, ok := b.(Tenum)
		return ok && ta.Name == tb.Name
	case Tfunction:
		tb, ok := b.(Tfunction)
		if !ok || ta.Variadic != tb.Variadic || len(ta.Params) != len(tb.Params) {
			return false
		}
		if !Equal(ta.Return, tb.Return) {
			return false
		}
		for i, p := range ta.Params {
			if !Equal(p, tb.Params[i]) {
				return false
			}
		}
		return true
	}
	return false
}
