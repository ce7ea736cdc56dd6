package lower

import (
	"testing"

	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/diag"
	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/lexer"
	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/parser"
	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/resolver"
	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/sea"
)

func lowerSource(t *testing.T, src string) (*sea.Program, *diag.Diagnostic) {
	t.Helper()
	p := parser.New(lexer.New(src))
	program, err := p.ParseProgram()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	u, err := resolver.Resolve(program)
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	return Lower(u)
}

func mustLower(t *testing.T, src string) *sea.Program {
	t.Helper()
	prog, err := lowerSource(t, src)
	if err != nil {
		t.Fatalf("lowering error: %v", err)
	}
	return prog
}

func onlyFunc(t *testing.T, prog *sea.Program, name string) sea.Function {
	t.Helper()
	for _, fn := range prog.Funcs {
		if fn.Name == name {
			return fn
		}
	}
	t.Fatalf("no function %q in lowered program", name)
	return sea.Function{}
}

func TestLowerStatementExpression(t *testing.T) {
	prog := mustLower(t, `
int f(void) {
	int x = ({ int a = 5; a + 3; });
	return x;
}`)
	body := onlyFunc(t, prog, "f").Body

	if len(body) != 3 {
		t.Fatalf("body has %d statements, want 3", len(body))
	}
	inner, ok := body[0].(sea.Decl)
	if !ok {
		t.Fatalf("first statement is %T, want the hoisted decl", body[0])
	}
	if v, ok := inner.Init.(sea.ConstInt); !ok || v.Value != 5 {
		t.Fatalf("hoisted decl initializer is %+v, want 5", inner.Init)
	}
	outer, ok := body[1].(sea.Decl)
	if !ok || outer.Name != "x" {
		t.Fatalf("second statement is %T, want decl of x", body[1])
	}
	sum, ok := outer.Init.(sea.Binop)
	if !ok || sum.Op != sea.Oadd {
		t.Fatalf("x initializer is %T, want a + 3", outer.Init)
	}
	if v, ok := sum.L.(sea.Var); !ok || v.Name != inner.Name {
		t.Errorf("left operand is %+v, want the hoisted local %s", sum.L, inner.Name)
	}
	if _, ok := body[2].(sea.Return); !ok {
		t.Errorf("last statement is %T, want return", body[2])
	}
}

func TestLowerCapturesLeftOperandBeforeSiblingEffects(t *testing.T) {
	prog := mustLower(t, `
int f(void) {
	int x = 1;
	int y = x + ({ x = 10; 5; });
	return y;
}`)
	body := onlyFunc(t, prog, "f").Body

	if len(body) != 5 {
		t.Fatalf("body has %d statements, want 5", len(body))
	}
	// x is read into a temporary before the hoisted x = 10 runs.
	pin, ok := body[1].(sea.Decl)
	if !ok {
		t.Fatalf("statement 1 is %T, want capture decl", body[1])
	}
	if src, ok := pin.Init.(sea.Var); !ok || src.Name != "x" {
		t.Fatalf("capture reads %+v, want x", pin.Init)
	}
	store, ok := body[2].(sea.Assign)
	if !ok {
		t.Fatalf("statement 2 is %T, want the hoisted store", body[2])
	}
	if lv, ok := store.LHS.(sea.Var); !ok || lv.Name != "x" {
		t.Errorf("hoisted store targets %+v, want x", store.LHS)
	}
	y := body[3].(sea.Decl)
	sum, ok := y.Init.(sea.Binop)
	if !ok || sum.Op != sea.Oadd {
		t.Fatalf("y initializer is %+v, want temp + 5", y.Init)
	}
	if l, ok := sum.L.(sea.Var); !ok || l.Name != pin.Name {
		t.Errorf("left operand is %+v, want the captured temp %s", sum.L, pin.Name)
	}
}

func TestLowerStatementExpressionShadowing(t *testing.T) {
	prog := mustLower(t, `
int f(void) {
	int a = 1;
	int b = ({ int a = 5; a + 3; });
	return a + b;
}`)
	body := onlyFunc(t, prog, "f").Body

	outer, ok := body[0].(sea.Decl)
	if !ok || outer.Name != "a" {
		t.Fatalf("first statement is %+v, want decl of a", body[0])
	}
	inner, ok := body[1].(sea.Decl)
	if !ok {
		t.Fatalf("second statement is %T, want the inner decl", body[1])
	}
	// The dissolved scope's a gets a fresh name; the list would
	// otherwise redeclare a in the same block.
	if inner.Name == "a" {
		t.Fatal("inner declaration kept the outer name")
	}
	sum := body[2].(sea.Decl).Init.(sea.Binop)
	if l, ok := sum.L.(sea.Var); !ok || l.Name != inner.Name {
		t.Errorf("inner reference is %+v, want the renamed %s", sum.L, inner.Name)
	}
	ret := body[3].(sea.Return).E.(sea.Binop)
	if l, ok := ret.L.(sea.Var); !ok || l.Name != "a" {
		t.Errorf("outer reference after the form is %+v, want a", ret.L)
	}
}

func TestLowerMissingTrailingExpression(t *testing.T) {
	_, err := lowerSource(t, `
int f(void) {
	int x = ({ int a = 5; });
	return x;
}`)
	if err == nil {
		t.Fatal("expected a diagnostic")
	}
	if err.Kind != diag.MissingTrailingExpression {
		t.Errorf("expected MissingTrailingExpression, got %v", err.Kind)
	}
}

func TestLowerCompoundLiteralStores(t *testing.T) {
	prog := mustLower(t, `
typedef struct {
	int __arc_refcount;
	int health;
	int attack;
	int range;
	bool can_move;
} CardData;
void f(void) {
	CardData c = (CardData){.health = 3, .range = 1};
}`)
	body := onlyFunc(t, prog, "f").Body

	if len(body) != 6 {
		t.Fatalf("body has %d statements, want decl + 5 stores", len(body))
	}
	if d, ok := body[0].(sea.Decl); !ok || d.Name != "c" {
		t.Fatalf("first statement is %T, want decl of c", body[0])
	}

	wantFields := []string{"__arc_refcount", "health", "attack", "range", "can_move"}
	for i, name := range wantFields {
		st, ok := body[i+1].(sea.Assign)
		if !ok {
			t.Fatalf("statement %d is %T, want assign", i+1, body[i+1])
		}
		mem, ok := st.LHS.(sea.Member)
		if !ok || mem.Name != name {
			t.Fatalf("store %d targets %+v, want field %s", i, st.LHS, name)
		}
	}

	// Omitted fields fill with zeros of their own type.
	if v := body[1].(sea.Assign).RHS.(sea.ConstInt); v.Value != 0 {
		t.Errorf("__arc_refcount store = %d, want 0", v.Value)
	}
	if v := body[2].(sea.Assign).RHS.(sea.ConstInt); v.Value != 3 {
		t.Errorf("health store = %d, want 3", v.Value)
	}
	if v, ok := body[5].(sea.Assign).RHS.(sea.ConstBool); !ok || v.Value {
		t.Errorf("can_move store = %+v, want false", body[5].(sea.Assign).RHS)
	}

	if !prog.UsesRuntime {
		t.Error("refcounted struct should pull in the runtime prelude")
	}
}

func TestLowerCompoundLiteralDiagnostics(t *testing.T) {
	const point = `typedef struct { int x; int y; } Point;` + "\n"
	tests := []struct {
		name string
		src  string
		kind diag.Kind
	}{
		{"mixed designated and positional", point + `void f(void) { Point p = (Point){.x = 1, 2}; }`, diag.MalformedInitializer},
		{"duplicate designator", point + `void f(void) { Point p = (Point){.x = 1, .x = 2}; }`, diag.MalformedInitializer},
		{"too many positional", point + `void f(void) { Point p = (Point){1, 2, 3}; }`, diag.MalformedInitializer},
		{"unknown designator", point + `void f(void) { Point p = (Point){.z = 1}; }`, diag.UnknownField},
		{"union with two values", `typedef union { int i; int j; } U;
void f(void) { U u = (U){.i = 1, .j = 2}; }`, diag.MalformedInitializer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := lowerSource(t, tt.src)
			if err == nil {
				t.Fatal("expected a diagnostic")
			}
			if err.Kind != tt.kind {
				t.Errorf("expected %v, got %v: %s", tt.kind, err.Kind, err.Message)
			}
		})
	}
}

func TestLowerAssignThroughPointer(t *testing.T) {
	prog := mustLower(t, `
typedef struct { int x; int y; } Point;
void f(Point* p) {
	*p = (Point){.x = 70, .y = 80};
}`)
	body := onlyFunc(t, prog, "f").Body

	if len(body) != 2 {
		t.Fatalf("body has %d statements, want 2 field stores", len(body))
	}
	wantValues := map[string]int64{"x": 70, "y": 80}
	for i, st := range body {
		as, ok := st.(sea.Assign)
		if !ok {
			t.Fatalf("statement %d is %T, want assign", i, st)
		}
		mem, ok := as.LHS.(sea.Member)
		if !ok || !mem.Arrow {
			t.Fatalf("store %d targets %+v, want arrow member of p", i, as.LHS)
		}
		if base, ok := mem.X.(sea.Var); !ok || base.Name != "p" {
			t.Errorf("store %d base is %+v, want p", i, mem.X)
		}
		if v := as.RHS.(sea.ConstInt).Value; v != wantValues[mem.Name] {
			t.Errorf("store to %s = %d, want %d", mem.Name, v, wantValues[mem.Name])
		}
	}
}

func TestLowerDerefMemberNormalizes(t *testing.T) {
	prog := mustLower(t, `
typedef struct { int x; int y; } Point;
int f(Point* p) {
	return (*p).x;
}`)
	body := onlyFunc(t, prog, "f").Body

	ret, ok := body[len(body)-1].(sea.Return)
	if !ok {
		t.Fatalf("last statement is %T, want return", body[len(body)-1])
	}
	mem, ok := ret.E.(sea.Member)
	if !ok || !mem.Arrow || mem.Name != "x" {
		t.Fatalf("return value is %+v, want p->x", ret.E)
	}
	if base, ok := mem.X.(sea.Var); !ok || base.Name != "p" {
		t.Errorf("member base is %+v, want p", mem.X)
	}
}

func TestLowerCallInitKeepsDestination(t *testing.T) {
	prog := mustLower(t, `
typedef struct { int __arc_refcount; int health; } CardData;
void f(void) {
	CardData* card = malloc(sizeof(CardData));
}`)
	body := onlyFunc(t, prog, "f").Body

	if len(body) != 2 {
		t.Fatalf("body has %d statements, want decl + call", len(body))
	}
	if d, ok := body[0].(sea.Decl); !ok || d.Name != "card" || d.Init != nil {
		t.Fatalf("first statement is %+v, want uninitialized decl of card", body[0])
	}
	call, ok := body[1].(sea.Call)
	if !ok || call.Fn != "malloc" {
		t.Fatalf("second statement is %+v, want malloc call", body[1])
	}
	if dst, ok := call.Dst.(sea.Var); !ok || dst.Name != "card" {
		t.Errorf("call destination is %+v, want card", call.Dst)
	}
}

func TestLowerEffectfulWhileCondition(t *testing.T) {
	prog := mustLower(t, `
int next(void) { return 1; }
int f(void) {
	while (next() < 3) {
	}
	return 0;
}`)
	body := onlyFunc(t, prog, "f").Body

	loop, ok := body[0].(sea.While)
	if !ok {
		t.Fatalf("first statement is %T, want while", body[0])
	}
	cond, ok := loop.Cond.(sea.ConstInt)
	if !ok || cond.Value != 1 {
		t.Fatalf("loop condition is %+v, want constant 1", loop.Cond)
	}
	// The effectful condition re-runs inside the loop and breaks when false.
	sawBreak := false
	for _, st := range loop.Body {
		if branch, ok := st.(sea.If); ok {
			for _, inner := range branch.Then {
				if _, ok := inner.(sea.Break); ok {
					sawBreak = true
				}
			}
		}
	}
	if !sawBreak {
		t.Error("desugared loop has no guarded break")
	}
}

func TestLowerForLoop(t *testing.T) {
	prog := mustLower(t, `
int f(void) {
	int sum = 0;
	for (int i = 0; i < 5; i++) {
		sum += i;
	}
	return sum;
}`)
	body := onlyFunc(t, prog, "f").Body

	loop, ok := body[1].(sea.For)
	if !ok {
		t.Fatalf("second statement is %T, want for", body[1])
	}
	if d, ok := loop.Init.(sea.Decl); !ok || d.Name != "i" {
		t.Errorf("loop init is %+v, want decl of i", loop.Init)
	}
	if c, ok := loop.Cond.(sea.Binop); !ok || c.Op != sea.Olt {
		t.Errorf("loop condition is %+v, want i < 5", loop.Cond)
	}
	if _, ok := loop.Post.(sea.Assign); !ok {
		t.Errorf("loop post is %T, want increment assign", loop.Post)
	}
}

func TestLowerRuntimeCallMarksPrelude(t *testing.T) {
	prog := mustLower(t, `
void f(void) {
	void* a = ahoy_array_new();
	ahoy_array_push(a, 10, AHOY_TYPE_INT);
}`)
	if !prog.UsesRuntime {
		t.Error("ahoy_ calls should pull in the runtime prelude")
	}

	body := onlyFunc(t, prog, "f").Body
	push, ok := body[len(body)-1].(sea.Call)
	if !ok || push.Fn != "ahoy_array_push" {
		t.Fatalf("last statement is %+v, want push call", body[len(body)-1])
	}
	// The enum constant folds to its value during lowering.
	if tag, ok := push.Args[2].(sea.ConstInt); !ok || tag.Value != 0 {
		t.Errorf("push tag argument is %+v, want constant 0", push.Args[2])
	}
}

func TestLowerExternsAndEnums(t *testing.T) {
	prog := mustLower(t, `
extern int fib(int n);
typedef enum { RED, GREEN = 5 } Color;
`)
	found := false
	for _, ext := range prog.Externs {
		if ext.Name == "fib" {
			found = true
			if len(ext.Sig.Params) != 1 {
				t.Errorf("fib carries %d params, want 1", len(ext.Sig.Params))
			}
		}
	}
	if !found {
		t.Error("extern prototype fib not carried through")
	}

	if len(prog.Enums) != 1 || prog.Enums[0].Name != "Color" {
		t.Fatalf("enums = %+v, want Color", prog.Enums)
	}
	members := prog.Enums[0].Members
	if len(members) != 2 || members[1].Name != "GREEN" || !members[1].HasValue || members[1].Value != 5 {
		t.Errorf("enum members = %+v", members)
	}
}
