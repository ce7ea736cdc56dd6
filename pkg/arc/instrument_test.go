package arc

import (
	"testing"

	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/sea"
	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/seatypes"
)

func cardStruct() seatypes.Tstruct {
	return seatypes.Tstruct{Name: "CardData", Fields: []seatypes.Field{
		{Name: seatypes.RefcountField, Type: seatypes.Int()},
		{Name: "health", Type: seatypes.Int()},
		{Name: "can_move", Type: seatypes.Bool()},
	}}
}

func cardPtr() seatypes.Type {
	return seatypes.Pointer(cardStruct())
}

func cardProgram(fns ...sea.Function) *sea.Program {
	s := cardStruct()
	return &sea.Program{
		Aggregates: []sea.AggDecl{{Name: s.Name, Fields: s.Fields}},
		Funcs:      fns,
	}
}

func mustInstrument(t *testing.T, prog *sea.Program) {
	t.Helper()
	if err := Instrument(prog); err != nil {
		t.Fatalf("instrument error: %v", err)
	}
}

func fieldStore(base, field string, value int64) sea.Assign {
	return sea.Assign{
		LHS: sea.Member{X: sea.Var{Name: base, Typ: cardPtr()}, Name: field, Arrow: true, Typ: seatypes.Int()},
		RHS: sea.ConstInt{Value: value, Typ: seatypes.Int()},
	}
}

func TestRefInitAfterInitializingStores(t *testing.T) {
	prog := cardProgram(sea.Function{
		Name:   "make",
		Return: seatypes.Int(),
		Body: []sea.Stmt{
			sea.Decl{Name: "tmp", Typ: cardPtr()},
			sea.Call{Dst: sea.Var{Name: "tmp", Typ: cardPtr()}, Fn: "malloc", Args: []sea.Expr{sea.SizeofT{T: cardStruct()}}},
			fieldStore("tmp", "health", 3),
			fieldStore("tmp", "can_move", 0),
			sea.Return{E: sea.ConstInt{Value: 0, Typ: seatypes.Int()}},
		},
	})
	mustInstrument(t, prog)
	body := prog.Funcs[0].Body

	// The refcount stamp lands after the whole initializing store run.
	var initIdx, lastStoreIdx int = -1, -1
	for i, st := range body {
		switch st.(type) {
		case sea.RefInit:
			initIdx = i
		case sea.Assign:
			lastStoreIdx = i
		}
	}
	if initIdx == -1 {
		t.Fatal("no RefInit emitted for the malloc result")
	}
	if initIdx < lastStoreIdx {
		t.Errorf("RefInit at %d precedes a field store at %d", initIdx, lastStoreIdx)
	}

	// tmp is still owned at function exit, so it releases before return.
	if _, ok := body[len(body)-1].(sea.Return); !ok {
		t.Fatalf("last statement is %T, want return", body[len(body)-1])
	}
	if rel, ok := body[len(body)-2].(sea.Release); !ok {
		t.Errorf("statement before return is %T, want release", body[len(body)-2])
	} else if rel.Ptr.(sea.Var).Name != "tmp" {
		t.Errorf("release targets %+v, want tmp", rel.Ptr)
	}

	if !prog.UsesRuntime {
		t.Error("instrumented program should require the runtime prelude")
	}
}

func TestFreshTransferSkipsRetain(t *testing.T) {
	prog := cardProgram(sea.Function{
		Name:   "make",
		Return: cardPtr(),
		Body: []sea.Stmt{
			sea.Decl{Name: "tmp", Typ: cardPtr()},
			sea.Call{Dst: sea.Var{Name: "tmp", Typ: cardPtr()}, Fn: "malloc", Args: []sea.Expr{sea.SizeofT{T: cardStruct()}}},
			fieldStore("tmp", "health", 3),
			sea.Decl{Name: "card", Typ: cardPtr(), Init: sea.Var{Name: "tmp", Typ: cardPtr()}},
			sea.Return{E: sea.Var{Name: "card", Typ: cardPtr()}},
		},
	})
	mustInstrument(t, prog)
	body := prog.Funcs[0].Body

	for _, st := range body {
		switch st.(type) {
		case sea.Retain:
			t.Error("first binding of a fresh allocation must not retain")
		case sea.Release:
			t.Error("the returned reference must survive function exit")
		}
	}
}

func TestCopyRetainsAndScopeReleases(t *testing.T) {
	prog := cardProgram(sea.Function{
		Name:   "inspect",
		Return: seatypes.Void(),
		Params: []sea.ParamDecl{{Name: "card", Typ: cardPtr()}},
		Body: []sea.Stmt{
			sea.Decl{Name: "alias", Typ: cardPtr(), Init: sea.Var{Name: "card", Typ: cardPtr()}},
		},
	})
	mustInstrument(t, prog)
	body := prog.Funcs[0].Body

	if len(body) != 3 {
		t.Fatalf("body has %d statements, want decl + retain + release", len(body))
	}
	ret, ok := body[1].(sea.Retain)
	if !ok {
		t.Fatalf("statement 1 is %T, want retain", body[1])
	}
	if ret.Ptr.(sea.Var).Name != "alias" {
		t.Errorf("retain targets %+v, want alias", ret.Ptr)
	}
	rel, ok := body[2].(sea.Release)
	if !ok {
		t.Fatalf("statement 2 is %T, want scope-exit release", body[2])
	}
	if rel.Ptr.(sea.Var).Name != "alias" {
		t.Errorf("release targets %+v, want alias", rel.Ptr)
	}
}

func TestOverwriteReleasesOldReference(t *testing.T) {
	prog := cardProgram(sea.Function{
		Name:   "swap",
		Return: seatypes.Void(),
		Params: []sea.ParamDecl{{Name: "other", Typ: cardPtr()}},
		Body: []sea.Stmt{
			sea.Decl{Name: "held", Typ: cardPtr()},
			sea.Call{Dst: sea.Var{Name: "held", Typ: cardPtr()}, Fn: "malloc", Args: []sea.Expr{sea.SizeofT{T: cardStruct()}}},
			sea.Assign{LHS: sea.Var{Name: "held", Typ: cardPtr()}, RHS: sea.Var{Name: "other", Typ: cardPtr()}},
		},
	})
	mustInstrument(t, prog)
	body := prog.Funcs[0].Body

	var kinds []string
	for _, st := range body {
		switch s := st.(type) {
		case sea.Release:
			kinds = append(kinds, "release "+s.Ptr.(sea.Var).Name)
		case sea.Retain:
			kinds = append(kinds, "retain "+s.Ptr.(sea.Var).Name)
		case sea.Assign:
			kinds = append(kinds, "assign")
		case sea.RefInit:
			kinds = append(kinds, "refinit")
		}
	}
	want := []string{"refinit", "release held", "assign", "retain held", "release held"}
	if len(kinds) != len(want) {
		t.Fatalf("refcount traffic %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("refcount traffic %v, want %v", kinds, want)
		}
	}
}

func TestReturnValueHoistedPastReleases(t *testing.T) {
	prog := cardProgram(sea.Function{
		Name:   "health_of",
		Return: seatypes.Int(),
		Body: []sea.Stmt{
			sea.Decl{Name: "card", Typ: cardPtr()},
			sea.Call{Dst: sea.Var{Name: "card", Typ: cardPtr()}, Fn: "malloc", Args: []sea.Expr{sea.SizeofT{T: cardStruct()}}},
			fieldStore("card", "health", 3),
			sea.Return{E: sea.Member{X: sea.Var{Name: "card", Typ: cardPtr()}, Name: "health", Arrow: true, Typ: seatypes.Int()}},
		},
	})
	mustInstrument(t, prog)
	body := prog.Funcs[0].Body

	// The field read happens before the release can free the object.
	n := len(body)
	if n < 3 {
		t.Fatalf("instrumented body too short: %d statements", n)
	}
	hoist, ok := body[n-3].(sea.Decl)
	if !ok || hoist.Init == nil {
		t.Fatalf("statement %d is %+v, want hoisted result decl", n-3, body[n-3])
	}
	if _, ok := hoist.Init.(sea.Member); !ok {
		t.Errorf("hoisted initializer is %T, want the field read", hoist.Init)
	}
	if _, ok := body[n-2].(sea.Release); !ok {
		t.Fatalf("statement %d is %T, want release", n-2, body[n-2])
	}
	ret, ok := body[n-1].(sea.Return)
	if !ok {
		t.Fatalf("last statement is %T, want return", body[n-1])
	}
	if v, ok := ret.E.(sea.Var); !ok || v.Name != hoist.Name {
		t.Errorf("return reads %+v, want the hoisted temp %s", ret.E, hoist.Name)
	}
}

func TestReleasesInReverseDeclarationOrder(t *testing.T) {
	alloc := func(name string) []sea.Stmt {
		return []sea.Stmt{
			sea.Decl{Name: name, Typ: cardPtr()},
			sea.Call{Dst: sea.Var{Name: name, Typ: cardPtr()}, Fn: "malloc", Args: []sea.Expr{sea.SizeofT{T: cardStruct()}}},
		}
	}
	body := append(alloc("first"), alloc("second")...)
	prog := cardProgram(sea.Function{Name: "pair", Return: seatypes.Void(), Body: body})
	mustInstrument(t, prog)

	var released []string
	for _, st := range prog.Funcs[0].Body {
		if rel, ok := st.(sea.Release); ok {
			released = append(released, rel.Ptr.(sea.Var).Name)
		}
	}
	if len(released) != 2 || released[0] != "second" || released[1] != "first" {
		t.Errorf("release order %v, want [second first]", released)
	}
}

func TestBreakReleasesLoopLocalsOnly(t *testing.T) {
	loopBody := []sea.Stmt{
		sea.Decl{Name: "inner", Typ: cardPtr()},
		sea.Call{Dst: sea.Var{Name: "inner", Typ: cardPtr()}, Fn: "malloc", Args: []sea.Expr{sea.SizeofT{T: cardStruct()}}},
		sea.Break{},
	}
	prog := cardProgram(sea.Function{
		Name:   "scan",
		Return: seatypes.Void(),
		Body: []sea.Stmt{
			sea.Decl{Name: "outer", Typ: cardPtr()},
			sea.Call{Dst: sea.Var{Name: "outer", Typ: cardPtr()}, Fn: "malloc", Args: []sea.Expr{sea.SizeofT{T: cardStruct()}}},
			sea.While{Cond: sea.ConstInt{Value: 1, Typ: seatypes.Int()}, Body: loopBody},
		},
	})
	mustInstrument(t, prog)

	loop := prog.Funcs[0].Body[3].(sea.While)
	var beforeBreak []string
	for _, st := range loop.Body {
		if _, ok := st.(sea.Break); ok {
			break
		}
		if rel, ok := st.(sea.Release); ok {
			beforeBreak = append(beforeBreak, rel.Ptr.(sea.Var).Name)
		}
	}
	if len(beforeBreak) != 1 || beforeBreak[0] != "inner" {
		t.Errorf("break releases %v, want only the loop-scoped inner", beforeBreak)
	}
}

func TestNoEligibleTypesLeavesProgramAlone(t *testing.T) {
	plain := seatypes.Tstruct{Name: "Point", Fields: []seatypes.Field{
		{Name: "x", Type: seatypes.Int()},
		{Name: "y", Type: seatypes.Int()},
	}}
	prog := &sea.Program{
		Aggregates: []sea.AggDecl{{Name: plain.Name, Fields: plain.Fields}},
		Funcs: []sea.Function{{
			Name:   "id",
			Return: seatypes.Int(),
			Body:   []sea.Stmt{sea.Return{E: sea.ConstInt{Value: 1, Typ: seatypes.Int()}}},
		}},
	}
	mustInstrument(t, prog)

	if len(prog.Funcs[0].Body) != 1 {
		t.Errorf("body grew to %d statements", len(prog.Funcs[0].Body))
	}
	if prog.UsesRuntime {
		t.Error("program without refcounted types should not require the prelude")
	}
}
