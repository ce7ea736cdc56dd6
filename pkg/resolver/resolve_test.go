package resolver

import (
	"testing"

	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/diag"
	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/lexer"
	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/parser"
	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/seatypes"
)

func resolveSource(t *testing.T, src string) (*Unit, *diag.Diagnostic) {
	t.Helper()
	p := parser.New(lexer.New(src))
	program, err := p.ParseProgram()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return Resolve(program)
}

func mustResolve(t *testing.T, src string) *Unit {
	t.Helper()
	u, err := resolveSource(t, src)
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	return u
}

func wantKind(t *testing.T, err *diag.Diagnostic, kind diag.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v diagnostic, got none", kind)
	}
	if err.Kind != kind {
		t.Fatalf("expected %v, got %v: %s", kind, err.Kind, err.Message)
	}
}

func TestResolveStruct(t *testing.T) {
	u := mustResolve(t, `typedef struct { int x; int y; } Point;`)

	s, ok := u.Structs["Point"]
	if !ok {
		t.Fatal("Point not registered")
	}
	if len(s.Fields) != 2 || s.Fields[0].Name != "x" || s.Fields[1].Name != "y" {
		t.Errorf("unexpected fields %v", s.Fields)
	}
	if len(u.AggOrder) != 1 || u.AggOrder[0] != "Point" {
		t.Errorf("AggOrder = %v", u.AggOrder)
	}
	// Registration populates the layout cache eagerly.
	if off := u.Layouts.FieldOffset(s, "y"); off != 4 {
		t.Errorf("y offset = %d, want 4", off)
	}
}

func TestResolveDuplicateField(t *testing.T) {
	_, err := resolveSource(t, `typedef struct { int x; int x; } P;`)
	wantKind(t, err, diag.DuplicateField)
}

func TestResolveUnknownType(t *testing.T) {
	_, err := resolveSource(t, `typedef struct { Widget w; } P;`)
	wantKind(t, err, diag.UnknownType)

	_, err = resolveSource(t, `int f(void) { Widget w; return 0; }`)
	wantKind(t, err, diag.UnknownType)
}

func TestResolveModifierCombos(t *testing.T) {
	bad := []string{
		`signed unsigned int f(void) { return 0; }`,
		`short long int f(void) { return 0; }`,
		`short short int f(void) { return 0; }`,
		`long long long int f(void) { return 0; }`,
		`signed signed int f(void) { return 0; }`,
		`short char f(void) { return 'a'; }`,
		`unsigned bool f(void) { return true; }`,
	}
	for _, src := range bad {
		_, err := resolveSource(t, src)
		if err == nil {
			t.Errorf("%q: expected InvalidModifierCombo, got none", src)
			continue
		}
		if err.Kind != diag.InvalidModifierCombo {
			t.Errorf("%q: expected InvalidModifierCombo, got %v", src, err.Kind)
		}
	}

	good := []string{
		`unsigned long f(void) { return 0; }`,
		`long long f(void) { return 0; }`,
		`signed char f(void) { return 'a'; }`,
		`unsigned short f(void) { return 0; }`,
	}
	for _, src := range good {
		if _, err := resolveSource(t, src); err != nil {
			t.Errorf("%q: unexpected error %v", src, err)
		}
	}
}

func TestResolveRefcountField(t *testing.T) {
	u := mustResolve(t, `typedef struct { int __arc_refcount; int health; } CardData;`)
	if !seatypes.IsARCEligible(u.Structs["CardData"]) {
		t.Error("CardData should be ARC eligible")
	}

	_, err := resolveSource(t, `typedef struct { int health; int __arc_refcount; } C;`)
	wantKind(t, err, diag.InvalidRefcountField)

	_, err = resolveSource(t, `typedef struct { int* __arc_refcount; } C;`)
	wantKind(t, err, diag.InvalidRefcountField)
}

func TestResolveEnum(t *testing.T) {
	u := mustResolve(t, `typedef enum { RED, GREEN = 5, BLUE } Color;`)

	want := map[string]int64{"RED": 0, "GREEN": 5, "BLUE": 6}
	for name, value := range want {
		if got := u.EnumConsts[name]; got != value {
			t.Errorf("%s = %d, want %d", name, got, value)
		}
	}
	if _, ok := u.Typedefs["Color"]; !ok {
		t.Error("Color not usable as a type name")
	}
}

func TestResolveBuiltins(t *testing.T) {
	u := mustResolve(t, ``)

	for _, name := range []string{"printf", "malloc", "free", "ahoy_array_new", "ahoy_array_push", "ahoy_retain"} {
		if _, ok := u.Funcs[name]; !ok {
			t.Errorf("builtin %s not registered", name)
		}
		if !u.Externs[name] {
			t.Errorf("builtin %s not marked extern", name)
		}
	}
	arr, ok := u.Typedefs["AhoyArray"].(seatypes.Tstruct)
	if !ok {
		t.Fatal("AhoyArray not registered as a struct type")
	}
	if off := u.Layouts.FieldOffset(arr, "capacity"); off != 20 {
		t.Errorf("AhoyArray.capacity offset = %d, want 20", off)
	}
	if u.EnumConsts["AHOY_TYPE_STRUCT"] != 2 {
		t.Error("AHOY_TYPE_STRUCT should be 2")
	}
}

func TestResolveFunctionSignatures(t *testing.T) {
	u := mustResolve(t, `
extern int fib(int n);
int add(int a, int b) { return a + b; }
`)

	sig, ok := u.Funcs["add"]
	if !ok {
		t.Fatal("add not registered")
	}
	if len(sig.Params) != 2 {
		t.Fatalf("add has %d params, want 2", len(sig.Params))
	}
	if !seatypes.Equal(sig.Return, seatypes.Int()) {
		t.Errorf("add returns %s, want int", sig.Return)
	}
	if !u.Externs["fib"] {
		t.Error("fib should be extern")
	}
	if u.Externs["add"] {
		t.Error("add should not be extern")
	}
}

func TestResolveInlineUnion(t *testing.T) {
	u := mustResolve(t, `
typedef struct {
	int tag;
	union { int i; char* s; } payload;
} Value;
`)

	s := u.Structs["Value"]
	if len(s.Fields) != 2 {
		t.Fatalf("Value has %d fields, want 2", len(s.Fields))
	}
	inner, ok := s.Fields[1].Type.(seatypes.Tunion)
	if !ok {
		t.Fatalf("payload is %T, want union", s.Fields[1].Type)
	}
	if len(inner.Fields) != 2 {
		t.Errorf("payload has %d fields, want 2", len(inner.Fields))
	}
	// char* forces 8-byte alignment, so payload sits at offset 8.
	if off := u.Layouts.FieldOffset(s, "payload"); off != 8 {
		t.Errorf("payload offset = %d, want 8", off)
	}
}
