// Package lower translates the surface AST into the sea IR. The pass
// extracts every side effect into an explicit statement: statement
// expressions and compound literals disappear here, and the expressions
// that remain are pure. Nested constructs lower innermost first so the
// emitted statements preserve source evaluation order.
package lower

import (
	"fmt"
	"strings"

	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/ast"
	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/diag"
	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/resolver"
	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/sea"
	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/seatypes"
)

// Result pairs the statements an expression expands into with the pure
// expression standing for its value.
type Result struct {
	Stmts []sea.Stmt
	Expr  sea.Expr
}

// Transformer carries the per-function lowering state
type Transformer struct {
	unit     *resolver.Unit
	nTemp    int
	scopes   []map[string]binding
	renaming int

	usesRuntime bool
}

// binding records a local's type and the name it is emitted under. The
// two differ for locals declared inside a statement expression, which
// dissolve into the enclosing statement list and must not collide with
// a binding already there.
type binding struct {
	typ  seatypes.Type
	name string
}

// Lower translates a resolved unit into a sea program.
func Lower(u *resolver.Unit) (*sea.Program, *diag.Diagnostic) {
	t := &Transformer{unit: u}
	prog := &sea.Program{}

	for _, name := range u.AggOrder {
		if s, ok := u.Structs[name]; ok {
			prog.Aggregates = append(prog.Aggregates, sea.AggDecl{Name: name, Fields: s.Fields})
			if seatypes.IsARCEligible(s) {
				t.usesRuntime = true
			}
			continue
		}
		un := u.Unions[name]
		prog.Aggregates = append(prog.Aggregates, sea.AggDecl{Name: name, Union: true, Fields: un.Fields})
	}

	for _, decl := range u.Program.Decls {
		switch d := decl.(type) {
		case ast.EnumDecl:
			prog.Enums = append(prog.Enums, lowerEnum(d))
		case ast.Typedef:
			if d.Enum != nil {
				e := *d.Enum
				e.Name = d.Name
				prog.Enums = append(prog.Enums, lowerEnum(e))
			}
		case ast.ExternFun:
			prog.Externs = append(prog.Externs, sea.ExternDecl{Name: d.Name, Sig: u.Funcs[d.Name]})
		}
	}

	for _, decl := range u.Program.Decls {
		fd, ok := decl.(ast.FunDef)
		if !ok {
			continue
		}
		fn, err := t.lowerFunction(fd)
		if err != nil {
			return nil, err
		}
		prog.Funcs = append(prog.Funcs, fn)
	}

	prog.UsesRuntime = t.usesRuntime
	return prog, nil
}

func lowerEnum(d ast.EnumDecl) sea.EnumDef {
	def := sea.EnumDef{Name: d.Name}
	for _, m := range d.Members {
		def.Members = append(def.Members, sea.EnumMember{Name: m.Name, HasValue: m.HasValue, Value: m.Value})
	}
	return def
}

func (t *Transformer) lowerFunction(fd ast.FunDef) (sea.Function, *diag.Diagnostic) {
	sig := t.unit.Funcs[fd.Name]
	fn := sea.Function{Name: fd.Name, Return: sig.Return}

	t.nTemp = 0
	t.renaming = 0
	t.pushScope()
	defer t.popScope()
	for i, p := range fd.Params {
		fn.Params = append(fn.Params, sea.ParamDecl{Name: p.Name, Typ: sig.Params[i]})
		t.declare(p.Name, sig.Params[i])
	}

	body, err := t.lowerBlockItems(fd.Body)
	if err != nil {
		return sea.Function{}, err
	}
	fn.Body = body
	return fn, nil
}

// --- scope handling ---

func (t *Transformer) pushScope() {
	t.scopes = append(t.scopes, make(map[string]binding))
}

func (t *Transformer) popScope() {
	t.scopes = t.scopes[:len(t.scopes)-1]
}

// declare binds a source name and returns the name it is emitted under.
// Inside a statement expression every declaration is renamed, since its
// scope dissolves into the enclosing statement list.
func (t *Transformer) declare(name string, typ seatypes.Type) string {
	emit := name
	if t.renaming > 0 {
		emit = t.freshNamed(name)
	}
	t.scopes[len(t.scopes)-1][name] = binding{typ: typ, name: emit}
	return emit
}

func (t *Transformer) lookup(name string) (binding, bool) {
	for i := len(t.scopes) - 1; i >= 0; i-- {
		if b, ok := t.scopes[i][name]; ok {
			return b, true
		}
	}
	if typ, ok := t.unit.Globals[name]; ok {
		return binding{typ: typ, name: name}, true
	}
	return binding{}, false
}

func (t *Transformer) fresh() string {
	name := fmt.Sprintf("__t%d", t.nTemp)
	t.nTemp++
	return name
}

func (t *Transformer) freshNamed(name string) string {
	emit := fmt.Sprintf("__%s%d", name, t.nTemp)
	t.nTemp++
	return emit
}

// --- statements ---

func (t *Transformer) lowerBlockItems(b *ast.Block) ([]sea.Stmt, *diag.Diagnostic) {
	var out []sea.Stmt
	for _, item := range b.Items {
		stmts, err := t.lowerStmt(item)
		if err != nil {
			return nil, err
		}
		out = append(out, stmts...)
	}
	return out, nil
}

func (t *Transformer) lowerStmt(s ast.Stmt) ([]sea.Stmt, *diag.Diagnostic) {
	switch st := s.(type) {
	case ast.ExprStmt:
		return t.lowerExprStmt(st.Expr)

	case ast.DeclStmt:
		return t.lowerDeclStmt(st)

	case ast.Return:
		if st.Expr == nil {
			return []sea.Stmt{sea.Return{}}, nil
		}
		r, err := t.lowerExpr(st.Expr)
		if err != nil {
			return nil, err
		}
		return append(r.Stmts, sea.Return{E: r.Expr}), nil

	case ast.If:
		return t.lowerIf(st)

	case ast.While:
		return t.lowerWhile(st)

	case ast.For:
		return t.lowerFor(st)

	case ast.Break:
		return []sea.Stmt{sea.Break{}}, nil

	case ast.Continue:
		return []sea.Stmt{sea.Continue{}}, nil

	case *ast.Block:
		t.pushScope()
		body, err := t.lowerBlockItems(st)
		t.popScope()
		if err != nil {
			return nil, err
		}
		return []sea.Stmt{sea.Block{Body: body}}, nil

	case ast.Block:
		b := st
		return t.lowerStmt(&b)
	}
	return nil, diag.New(diag.Internal, diag.Pos{}, "unhandled statement %T in lowering", s)
}

// lowerExprStmt lowers an expression evaluated for effect only. Plain
// assignments, calls, and increments avoid a result temporary.
func (t *Transformer) lowerExprStmt(e ast.Expr) ([]sea.Stmt, *diag.Diagnostic) {
	switch ex := unparen(e).(type) {
	case nil:
		return nil, nil

	case ast.Binary:
		if ex.Op == ast.OpAssign || isCompoundAssign(ex.Op) {
			stmts, _, err := t.lowerAssign(ex)
			return stmts, err
		}

	case ast.Unary:
		switch ex.Op {
		case ast.OpPreInc, ast.OpPostInc, ast.OpPreDec, ast.OpPostDec:
			lv, err := t.lowerExpr(ex.Expr)
			if err != nil {
				return nil, err
			}
			return append(lv.Stmts, incDecAssign(ex.Op, lv.Expr)), nil
		}

	case ast.Call:
		stmts, _, err := t.lowerCall(ex, nil)
		return stmts, err
	}

	r, err := t.lowerExpr(e)
	if err != nil {
		return nil, err
	}
	// The value is pure at this point; dropping it drops nothing.
	return r.Stmts, nil
}

func (t *Transformer) lowerDeclStmt(st ast.DeclStmt) ([]sea.Stmt, *diag.Diagnostic) {
	typ, err := t.unit.ResolveSpec(st.Type)
	if err != nil {
		return nil, err
	}
	emit := t.declare(st.Name, typ)
	v := sea.Var{Name: emit, Typ: typ}

	switch init := unparen(st.Init).(type) {
	case nil:
		return []sea.Stmt{sea.Decl{Name: emit, Typ: typ}}, nil

	case ast.CompoundLiteral:
		if _, derr := t.unit.ResolveSpec(init.Type); derr != nil {
			return nil, derr
		}
		if seatypes.IsAggregate(typ) {
			stores, derr := t.lowerCompoundStores(v, false, typ, init)
			if derr != nil {
				return nil, derr
			}
			return append([]sea.Stmt{sea.Decl{Name: emit, Typ: typ}}, stores...), nil
		}
		if len(init.Inits) != 1 || init.Inits[0].Name != "" {
			return nil, diag.New(diag.MalformedInitializer, init.Pos,
				"scalar initializer for %s must hold exactly one positional value", st.Name)
		}
		r, derr := t.lowerExpr(init.Inits[0].Value)
		if derr != nil {
			return nil, derr
		}
		return append(r.Stmts, sea.Decl{Name: emit, Typ: typ, Init: r.Expr}), nil

	case ast.Call:
		// Direct call initializer keeps the destination visible, which
		// is what allocation tracking keys on.
		stmts, _, derr := t.lowerCall(init, &v)
		if derr != nil {
			return nil, derr
		}
		return append([]sea.Stmt{sea.Decl{Name: emit, Typ: typ}}, stmts...), nil
	}

	r, err := t.lowerExpr(st.Init)
	if err != nil {
		return nil, err
	}
	return append(r.Stmts, sea.Decl{Name: emit, Typ: typ, Init: r.Expr}), nil
}

func (t *Transformer) lowerIf(st ast.If) ([]sea.Stmt, *diag.Diagnostic) {
	cond, err := t.lowerExpr(st.Cond)
	if err != nil {
		return nil, err
	}

	t.pushScope()
	then, err := t.lowerBlockItems(st.Then)
	t.popScope()
	if err != nil {
		return nil, err
	}

	var els []sea.Stmt
	if st.Else != nil {
		t.pushScope()
		els, err = t.lowerStmt(st.Else)
		t.popScope()
		if err != nil {
			return nil, err
		}
		// A lone else-block keeps its statements flat under the else arm.
		if len(els) == 1 {
			if blk, ok := els[0].(sea.Block); ok {
				els = blk.Body
			}
		}
	}
	return append(cond.Stmts, sea.If{Cond: cond.Expr, Then: then, Else: els}), nil
}

func (t *Transformer) lowerWhile(st ast.While) ([]sea.Stmt, *diag.Diagnostic) {
	cond, err := t.lowerExpr(st.Cond)
	if err != nil {
		return nil, err
	}
	t.pushScope()
	body, err := t.lowerBlockItems(st.Body)
	t.popScope()
	if err != nil {
		return nil, err
	}

	if len(cond.Stmts) == 0 {
		return []sea.Stmt{sea.While{Cond: cond.Expr, Body: body}}, nil
	}
	// The condition carries effects, so it re-runs at the top of every
	// iteration behind an unconditional loop.
	head := append(cond.Stmts, sea.If{
		Cond: sea.Unop{Op: sea.Onot, X: cond.Expr, Typ: seatypes.Int()},
		Then: []sea.Stmt{sea.Break{}},
	})
	return []sea.Stmt{sea.While{Cond: sea.ConstInt{Value: 1, Typ: seatypes.Int()}, Body: append(head, body...)}}, nil
}

func (t *Transformer) lowerFor(st ast.For) ([]sea.Stmt, *diag.Diagnostic) {
	t.pushScope()
	defer t.popScope()

	var initStmts []sea.Stmt
	if st.Init != nil {
		var err *diag.Diagnostic
		initStmts, err = t.lowerStmt(st.Init)
		if err != nil {
			return nil, err
		}
	}

	cond := Result{}
	if st.Cond != nil {
		var err *diag.Diagnostic
		cond, err = t.lowerExpr(st.Cond)
		if err != nil {
			return nil, err
		}
	}

	var postStmts []sea.Stmt
	if st.Post != nil {
		var err *diag.Diagnostic
		postStmts, err = t.lowerExprStmt(st.Post)
		if err != nil {
			return nil, err
		}
	}

	body, err := t.lowerBlockItems(st.Body)
	if err != nil {
		return nil, err
	}

	if len(initStmts) <= 1 && len(cond.Stmts) == 0 && len(postStmts) <= 1 {
		f := sea.For{Cond: cond.Expr, Body: body}
		if len(initStmts) == 1 {
			f.Init = initStmts[0]
		}
		if len(postStmts) == 1 {
			f.Post = postStmts[0]
		}
		return []sea.Stmt{f}, nil
	}

	// The header does not fit the three-slot form; desugar to a while.
	head := cond.Stmts
	if cond.Expr != nil {
		head = append(head, sea.If{
			Cond: sea.Unop{Op: sea.Onot, X: cond.Expr, Typ: seatypes.Int()},
			Then: []sea.Stmt{sea.Break{}},
		})
	}
	loop := sea.While{
		Cond: sea.ConstInt{Value: 1, Typ: seatypes.Int()},
		Body: append(append(head, body...), postStmts...),
	}
	return []sea.Stmt{sea.Block{Body: append(initStmts, loop)}}, nil
}

// --- expressions ---

func unparen(e ast.Expr) ast.Expr {
	for {
		p, ok := e.(ast.Paren)
		if !ok {
			return e
		}
		e = p.Expr
	}
}

func isCompoundAssign(op ast.BinaryOp) bool {
	switch op {
	case ast.OpAddAssign, ast.OpSubAssign, ast.OpMulAssign, ast.OpDivAssign:
		return true
	}
	return false
}

var compoundOps = map[ast.BinaryOp]sea.BinaryOp{
	ast.OpAddAssign: sea.Oadd,
	ast.OpSubAssign: sea.Osub,
	ast.OpMulAssign: sea.Omul,
	ast.OpDivAssign: sea.Odiv,
}

var pureOps = map[ast.BinaryOp]sea.BinaryOp{
	ast.OpAdd:    sea.Oadd,
	ast.OpSub:    sea.Osub,
	ast.OpMul:    sea.Omul,
	ast.OpDiv:    sea.Odiv,
	ast.OpMod:    sea.Omod,
	ast.OpEq:     sea.Oeq,
	ast.OpNe:     sea.One,
	ast.OpLt:     sea.Olt,
	ast.OpGt:     sea.Ogt,
	ast.OpLe:     sea.Ole,
	ast.OpGe:     sea.Oge,
	ast.OpBitAnd: sea.Obitand,
	ast.OpBitOr:  sea.Obitor,
	ast.OpBitXor: sea.Oxor,
	ast.OpShl:    sea.Oshl,
	ast.OpShr:    sea.Oshr,
}

func incDecAssign(op ast.UnaryOp, lv sea.Expr) sea.Stmt {
	binop := sea.Oadd
	if op == ast.OpPreDec || op == ast.OpPostDec {
		binop = sea.Osub
	}
	one := sea.ConstInt{Value: 1, Typ: seatypes.Int()}
	return sea.Assign{LHS: lv, RHS: sea.Binop{Op: binop, L: lv, R: one, Typ: lv.ExprType()}}
}

func (t *Transformer) lowerExpr(e ast.Expr) (Result, *diag.Diagnostic) {
	switch ex := e.(type) {
	case nil:
		return Result{}, nil

	case ast.IntLit:
		return Result{Expr: sea.ConstInt{Value: ex.Value, Typ: seatypes.Int()}}, nil

	case ast.CharLit:
		return Result{Expr: sea.ConstChar{Value: ex.Value}}, nil

	case ast.StringLit:
		return Result{Expr: sea.ConstStr{Value: ex.Value}}, nil

	case ast.BoolLit:
		return Result{Expr: sea.ConstBool{Value: ex.Value}}, nil

	case ast.Ident:
		return t.lowerIdent(ex)

	case ast.Paren:
		return t.lowerExpr(ex.Expr)

	case ast.Unary:
		return t.lowerUnary(ex)

	case ast.Binary:
		return t.lowerBinary(ex)

	case ast.Conditional:
		return t.lowerConditional(ex)

	case ast.Call:
		return t.lowerCallExpr(ex)

	case ast.Index:
		return t.lowerIndex(ex)

	case ast.Member:
		return t.lowerMember(ex)

	case ast.Cast:
		typ, err := t.unit.ResolveSpec(ex.Type)
		if err != nil {
			return Result{}, err
		}
		inner, err := t.lowerExpr(ex.Expr)
		if err != nil {
			return Result{}, err
		}
		return Result{Stmts: inner.Stmts, Expr: sea.Cast{X: inner.Expr, Typ: typ}}, nil

	case ast.SizeofType:
		typ, err := t.unit.ResolveSpec(ex.Type)
		if err != nil {
			return Result{}, err
		}
		return Result{Expr: sea.SizeofT{T: typ}}, nil

	case ast.SizeofExpr:
		// The operand is not evaluated; only its type survives.
		inner, err := t.lowerExpr(ex.Expr)
		if err != nil {
			return Result{}, err
		}
		return Result{Expr: sea.SizeofT{T: inner.Expr.ExprType()}}, nil

	case ast.StmtExpr:
		return t.lowerStmtExpr(ex)

	case ast.CompoundLiteral:
		return t.lowerCompoundValue(ex)
	}
	return Result{}, diag.New(diag.Internal, diag.Pos{}, "unhandled expression %T in lowering", e)
}

func (t *Transformer) lowerIdent(ex ast.Ident) (Result, *diag.Diagnostic) {
	if b, ok := t.lookup(ex.Name); ok {
		return Result{Expr: sea.Var{Name: b.name, Typ: b.typ}}, nil
	}
	if val, ok := t.unit.EnumConsts[ex.Name]; ok {
		return Result{Expr: sea.ConstInt{Value: val, Typ: seatypes.Int()}}, nil
	}
	// Unbound names pass through with a default type; the emitted C
	// compiler has the final word on them.
	return Result{Expr: sea.Var{Name: ex.Name, Typ: seatypes.Int()}}, nil
}

func (t *Transformer) lowerUnary(ex ast.Unary) (Result, *diag.Diagnostic) {
	switch ex.Op {
	case ast.OpPreInc, ast.OpPreDec:
		lv, err := t.lowerExpr(ex.Expr)
		if err != nil {
			return Result{}, err
		}
		return Result{Stmts: append(lv.Stmts, incDecAssign(ex.Op, lv.Expr)), Expr: lv.Expr}, nil

	case ast.OpPostInc, ast.OpPostDec:
		lv, err := t.lowerExpr(ex.Expr)
		if err != nil {
			return Result{}, err
		}
		tmp := sea.Var{Name: t.fresh(), Typ: lv.Expr.ExprType()}
		stmts := append(lv.Stmts,
			sea.Decl{Name: tmp.Name, Typ: tmp.Typ, Init: lv.Expr},
			incDecAssign(ex.Op, lv.Expr))
		return Result{Stmts: stmts, Expr: tmp}, nil
	}

	inner, err := t.lowerExpr(ex.Expr)
	if err != nil {
		return Result{}, err
	}
	switch ex.Op {
	case ast.OpNeg:
		return Result{Stmts: inner.Stmts, Expr: sea.Unop{Op: sea.Oneg, X: inner.Expr, Typ: inner.Expr.ExprType()}}, nil
	case ast.OpNot:
		return Result{Stmts: inner.Stmts, Expr: sea.Unop{Op: sea.Onot, X: inner.Expr, Typ: seatypes.Int()}}, nil
	case ast.OpBitNot:
		return Result{Stmts: inner.Stmts, Expr: sea.Unop{Op: sea.Onotint, X: inner.Expr, Typ: inner.Expr.ExprType()}}, nil
	case ast.OpAddr:
		return Result{Stmts: inner.Stmts, Expr: sea.Addr{X: inner.Expr, Typ: seatypes.Pointer(inner.Expr.ExprType())}}, nil
	case ast.OpDeref:
		return Result{Stmts: inner.Stmts, Expr: sea.Deref{X: inner.Expr, Typ: pointee(inner.Expr.ExprType())}}, nil
	}
	return Result{}, diag.New(diag.Internal, diag.Pos{}, "unhandled unary operator %s", ex.Op)
}

func (t *Transformer) lowerBinary(ex ast.Binary) (Result, *diag.Diagnostic) {
	if ex.Op == ast.OpAssign || isCompoundAssign(ex.Op) {
		stmts, lv, err := t.lowerAssign(ex)
		if err != nil {
			return Result{}, err
		}
		return Result{Stmts: stmts, Expr: lv}, nil
	}

	if ex.Op == ast.OpComma {
		left, err := t.lowerExprStmt(ex.Left)
		if err != nil {
			return Result{}, err
		}
		right, err2 := t.lowerExpr(ex.Right)
		if err2 != nil {
			return Result{}, err2
		}
		return Result{Stmts: append(left, right.Stmts...), Expr: right.Expr}, nil
	}

	left, err := t.lowerExpr(ex.Left)
	if err != nil {
		return Result{}, err
	}
	right, err := t.lowerExpr(ex.Right)
	if err != nil {
		return Result{}, err
	}

	if ex.Op == ast.OpAnd || ex.Op == ast.OpOr {
		return t.lowerShortCircuit(ex.Op, left, right)
	}

	op, ok := pureOps[ex.Op]
	if !ok {
		return Result{}, diag.New(diag.Internal, diag.Pos{}, "unhandled binary operator %s", ex.Op)
	}
	if len(right.Stmts) > 0 {
		left = t.capture(left)
	}
	return Result{
		Stmts: append(left.Stmts, right.Stmts...),
		Expr:  sea.Binop{Op: op, L: left.Expr, R: right.Expr, Typ: binopType(op, left.Expr, right.Expr)},
	}, nil
}

// capture pins an already-lowered operand in a temporary so a later
// sibling's hoisted statements cannot change its value before it is
// read. Constants need no pinning.
func (t *Transformer) capture(r Result) Result {
	switch r.Expr.(type) {
	case nil, sea.ConstInt, sea.ConstBool, sea.ConstChar, sea.ConstStr, sea.SizeofT:
		return r
	}
	tmp := sea.Var{Name: t.fresh(), Typ: r.Expr.ExprType()}
	r.Stmts = append(r.Stmts, sea.Decl{Name: tmp.Name, Typ: tmp.Typ, Init: r.Expr})
	r.Expr = tmp
	return r
}

// lowerShortCircuit preserves conditional evaluation when the right
// operand expanded into statements.
func (t *Transformer) lowerShortCircuit(op ast.BinaryOp, left, right Result) (Result, *diag.Diagnostic) {
	if len(right.Stmts) == 0 {
		seaOp := sea.Oand
		if op == ast.OpOr {
			seaOp = sea.Oor
		}
		return Result{
			Stmts: left.Stmts,
			Expr:  sea.Binop{Op: seaOp, L: left.Expr, R: right.Expr, Typ: seatypes.Int()},
		}, nil
	}

	tmp := sea.Var{Name: t.fresh(), Typ: seatypes.Int()}
	short, full := int64(0), right
	if op == ast.OpOr {
		short = 1
	}
	branch := sea.If{Cond: left.Expr}
	evaluate := append(full.Stmts, sea.Assign{LHS: tmp, RHS: full.Expr})
	if op == ast.OpAnd {
		branch.Then = evaluate
	} else {
		branch.Then = []sea.Stmt{sea.Assign{LHS: tmp, RHS: sea.ConstInt{Value: 1, Typ: seatypes.Int()}}}
		branch.Else = evaluate
	}
	stmts := append(left.Stmts,
		sea.Decl{Name: tmp.Name, Typ: tmp.Typ, Init: sea.ConstInt{Value: short, Typ: seatypes.Int()}},
		branch)
	return Result{Stmts: stmts, Expr: tmp}, nil
}

func (t *Transformer) lowerConditional(ex ast.Conditional) (Result, *diag.Diagnostic) {
	cond, err := t.lowerExpr(ex.Cond)
	if err != nil {
		return Result{}, err
	}
	then, err := t.lowerExpr(ex.Then)
	if err != nil {
		return Result{}, err
	}
	els, err := t.lowerExpr(ex.Else)
	if err != nil {
		return Result{}, err
	}

	if len(then.Stmts) == 0 && len(els.Stmts) == 0 {
		return Result{
			Stmts: cond.Stmts,
			Expr:  sea.Cond{C: cond.Expr, T: then.Expr, F: els.Expr, Typ: then.Expr.ExprType()},
		}, nil
	}

	tmp := sea.Var{Name: t.fresh(), Typ: then.Expr.ExprType()}
	stmts := append(cond.Stmts,
		sea.Decl{Name: tmp.Name, Typ: tmp.Typ},
		sea.If{
			Cond: cond.Expr,
			Then: append(then.Stmts, sea.Assign{LHS: tmp, RHS: then.Expr}),
			Else: append(els.Stmts, sea.Assign{LHS: tmp, RHS: els.Expr}),
		})
	return Result{Stmts: stmts, Expr: tmp}, nil
}

// lowerCall lowers a call for its effect, storing into dst when non-nil.
func (t *Transformer) lowerCall(ex ast.Call, dst *sea.Var) ([]sea.Stmt, seatypes.Tfunction, *diag.Diagnostic) {
	fn, ok := unparen(ex.Func).(ast.Ident)
	if !ok {
		return nil, seatypes.Tfunction{}, diag.New(diag.Internal, ex.Pos, "call target is not a function name")
	}
	sig, known := t.unit.Funcs[fn.Name]
	if !known {
		sig = seatypes.Tfunction{Return: seatypes.Int(), Variadic: true}
	}
	if strings.HasPrefix(fn.Name, "ahoy_") {
		t.usesRuntime = true
	}

	var stmts []sea.Stmt
	var args []sea.Expr
	for _, arg := range ex.Args {
		r, err := t.lowerExpr(arg)
		if err != nil {
			return nil, seatypes.Tfunction{}, err
		}
		if len(r.Stmts) > 0 {
			// Pin earlier arguments before this one's effects run.
			for i, prev := range args {
				pinned := t.capture(Result{Expr: prev})
				stmts = append(stmts, pinned.Stmts...)
				args[i] = pinned.Expr
			}
		}
		stmts = append(stmts, r.Stmts...)
		args = append(args, r.Expr)
	}

	call := sea.Call{Fn: fn.Name, Args: args}
	if dst != nil {
		call.Dst = *dst
	}
	return append(stmts, call), sig, nil
}

// lowerCallExpr lowers a call in value position through a temporary.
func (t *Transformer) lowerCallExpr(ex ast.Call) (Result, *diag.Diagnostic) {
	fn, _ := unparen(ex.Func).(ast.Ident)
	ret := seatypes.Int()
	if sig, ok := t.unit.Funcs[fn.Name]; ok {
		ret = sig.Return
	}
	if _, isVoid := ret.(seatypes.Tvoid); isVoid {
		stmts, _, err := t.lowerCall(ex, nil)
		return Result{Stmts: stmts, Expr: sea.ConstInt{Value: 0, Typ: seatypes.Int()}}, err
	}

	tmp := sea.Var{Name: t.fresh(), Typ: ret}
	stmts, _, err := t.lowerCall(ex, &tmp)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Stmts: append([]sea.Stmt{sea.Decl{Name: tmp.Name, Typ: tmp.Typ}}, stmts...),
		Expr:  tmp,
	}, nil
}

func (t *Transformer) lowerIndex(ex ast.Index) (Result, *diag.Diagnostic) {
	arr, err := t.lowerExpr(ex.Array)
	if err != nil {
		return Result{}, err
	}
	idx, err := t.lowerExpr(ex.Index)
	if err != nil {
		return Result{}, err
	}
	if len(idx.Stmts) > 0 {
		arr = t.capture(arr)
	}
	return Result{
		Stmts: append(arr.Stmts, idx.Stmts...),
		Expr:  sea.Index{Arr: arr.Expr, Idx: idx.Expr, Typ: elemType(arr.Expr.ExprType())},
	}, nil
}

func (t *Transformer) lowerMember(ex ast.Member) (Result, *diag.Diagnostic) {
	inner, err := t.lowerExpr(ex.Expr)
	if err != nil {
		return Result{}, err
	}

	base := inner.Expr
	arrow := ex.Arrow
	baseType := base.ExprType()
	if arrow {
		baseType = pointee(baseType)
	}
	// (*p).f reads better, and instruments cleaner, as p->f.
	if d, ok := base.(sea.Deref); ok && !arrow {
		base = d.X
		arrow = true
	}

	ft, err := t.fieldType(baseType, ex.Name, ex.Pos)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Stmts: inner.Stmts,
		Expr:  sea.Member{X: base, Name: ex.Name, Arrow: arrow, Typ: ft},
	}, nil
}

func (t *Transformer) fieldType(agg seatypes.Type, name string, pos diag.Pos) (seatypes.Type, *diag.Diagnostic) {
	fields, aggName, ok := aggregateFields(agg)
	if !ok {
		// The base type was not tracked; leave it to the C compiler.
		return seatypes.Int(), nil
	}
	for _, f := range fields {
		if f.Name == name {
			return f.Type, nil
		}
	}
	return nil, diag.New(diag.UnknownField, pos, "no field %q in %s", name, aggName)
}

func aggregateFields(t seatypes.Type) ([]seatypes.Field, string, bool) {
	switch a := t.(type) {
	case seatypes.Tstruct:
		return a.Fields, "struct "+a.Name, true
	case seatypes.Tunion:
		return a.Fields, "union "+a.Name, true
	}
	return nil, "", false
}

// lowerStmtExpr lowers ({ stmts; value; }). The trailing item must be an
// expression statement; its value is the value of the whole form.
func (t *Transformer) lowerStmtExpr(ex ast.StmtExpr) (Result, *diag.Diagnostic) {
	if len(ex.Stmts) == 0 {
		return Result{}, diag.New(diag.MissingTrailingExpression, ex.Pos,
			"statement expression has no trailing expression")
	}
	last, ok := ex.Stmts[len(ex.Stmts)-1].(ast.ExprStmt)
	if !ok {
		return Result{}, diag.New(diag.MissingTrailingExpression, ex.Pos,
			"statement expression must end with an expression")
	}

	t.pushScope()
	t.renaming++
	defer func() {
		t.renaming--
		t.popScope()
	}()

	var stmts []sea.Stmt
	for _, item := range ex.Stmts[:len(ex.Stmts)-1] {
		lowered, err := t.lowerStmt(item)
		if err != nil {
			return Result{}, err
		}
		stmts = append(stmts, lowered...)
	}

	value, err := t.lowerExpr(last.Expr)
	if err != nil {
		return Result{}, err
	}
	// The block dissolves into the enclosing statement list. Locals
	// declared inside were renamed at declaration, so they can neither
	// clobber nor redeclare an enclosing binding of the same name.
	return Result{Stmts: append(stmts, value.Stmts...), Expr: value.Expr}, nil
}

// --- compound literals ---

// lowerAssign handles = and the arithmetic assignment forms. A compound
// literal on the right becomes one store per field.
func (t *Transformer) lowerAssign(ex ast.Binary) ([]sea.Stmt, sea.Expr, *diag.Diagnostic) {
	lhs, err := t.lowerExpr(ex.Left)
	if err != nil {
		return nil, nil, err
	}
	lv := lhs.Expr
	stmts := lhs.Stmts

	if ex.Op == ast.OpAssign {
		if lit, ok := unparen(ex.Right).(ast.CompoundLiteral); ok {
			litType, derr := t.unit.ResolveSpec(lit.Type)
			if derr != nil {
				return nil, nil, derr
			}
			if seatypes.IsAggregate(litType) {
				target, arrow := lv, false
				if d, isDeref := lv.(sea.Deref); isDeref {
					target, arrow = d.X, true
				}
				stores, derr := t.lowerCompoundStores(target, arrow, litType, lit)
				if derr != nil {
					return nil, nil, derr
				}
				return append(stmts, stores...), lv, nil
			}
		}
	}

	rhs, err := t.lowerExpr(ex.Right)
	if err != nil {
		return nil, nil, err
	}
	stmts = append(stmts, rhs.Stmts...)

	value := rhs.Expr
	if op, compound := compoundOps[ex.Op]; compound {
		value = sea.Binop{Op: op, L: lv, R: value, Typ: lv.ExprType()}
	}
	return append(stmts, sea.Assign{LHS: lv, RHS: value}), lv, nil
}

// lowerCompoundValue materializes a compound literal in value position
// through a named temporary.
func (t *Transformer) lowerCompoundValue(ex ast.CompoundLiteral) (Result, *diag.Diagnostic) {
	typ, err := t.unit.ResolveSpec(ex.Type)
	if err != nil {
		return Result{}, err
	}
	if !seatypes.IsAggregate(typ) {
		if len(ex.Inits) != 1 || ex.Inits[0].Name != "" {
			return Result{}, diag.New(diag.MalformedInitializer, ex.Pos,
				"scalar compound literal must hold exactly one positional value")
		}
		inner, derr := t.lowerExpr(ex.Inits[0].Value)
		if derr != nil {
			return Result{}, derr
		}
		return Result{Stmts: inner.Stmts, Expr: sea.Cast{X: inner.Expr, Typ: typ}}, nil
	}

	tmp := sea.Var{Name: t.fresh(), Typ: typ}
	stores, err := t.lowerCompoundStores(tmp, false, typ, ex)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Stmts: append([]sea.Stmt{sea.Decl{Name: tmp.Name, Typ: tmp.Typ}}, stores...),
		Expr:  tmp,
	}, nil
}

// lowerCompoundStores expands an aggregate initializer into per-field
// stores through target, in field declaration order. Omitted fields are
// zeroed so the aggregate is fully defined afterwards.
func (t *Transformer) lowerCompoundStores(target sea.Expr, arrow bool, typ seatypes.Type, lit ast.CompoundLiteral) ([]sea.Stmt, *diag.Diagnostic) {
	fields, aggName, ok := aggregateFields(typ)
	if !ok {
		return nil, diag.New(diag.Internal, lit.Pos, "compound literal for non-aggregate %s", typ)
	}
	_, isUnion := typ.(seatypes.Tunion)

	named, positional := 0, 0
	for _, init := range lit.Inits {
		if init.Name == "" {
			positional++
		} else {
			named++
		}
	}
	if named > 0 && positional > 0 {
		return nil, diag.New(diag.MalformedInitializer, lit.Pos,
			"initializer for %s mixes designated and positional entries", aggName)
	}
	if positional > len(fields) {
		return nil, diag.New(diag.MalformedInitializer, lit.Pos,
			"too many initializers for %s: %d values for %d fields", aggName, positional, len(fields))
	}
	if isUnion && len(lit.Inits) > 1 {
		return nil, diag.New(diag.MalformedInitializer, lit.Pos,
			"initializer for %s holds more than one value", aggName)
	}

	// Map each entry to its field, rejecting unknown and repeated names.
	values := make(map[string]ast.Expr)
	for i, init := range lit.Inits {
		name := init.Name
		if name == "" {
			name = fields[i].Name
		} else {
			found := false
			for _, f := range fields {
				if f.Name == name {
					found = true
					break
				}
			}
			if !found {
				return nil, diag.New(diag.UnknownField, init.Pos, "no field %q in %s", name, aggName)
			}
		}
		if _, dup := values[name]; dup {
			return nil, diag.New(diag.MalformedInitializer, init.Pos,
				"field %q initialized twice in %s", name, aggName)
		}
		values[name] = init.Value
	}

	var out []sea.Stmt
	for _, f := range fields {
		dst := sea.Member{X: target, Name: f.Name, Arrow: arrow, Typ: f.Type}
		value, given := values[f.Name]
		if isUnion && !given {
			continue
		}
		if !given {
			zero := zeroOf(f.Type)
			if zero == nil {
				nested, err := t.zeroAggregate(dst, f.Type, lit.Pos)
				if err != nil {
					return nil, err
				}
				out = append(out, nested...)
				continue
			}
			out = append(out, sea.Assign{LHS: dst, RHS: zero})
			continue
		}

		if nestedLit, ok := unparen(value).(ast.CompoundLiteral); ok && seatypes.IsAggregate(f.Type) {
			nested, err := t.lowerCompoundStores(dst, false, f.Type, nestedLit)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
			continue
		}

		r, err := t.lowerExpr(value)
		if err != nil {
			return nil, err
		}
		out = append(out, r.Stmts...)
		out = append(out, sea.Assign{LHS: dst, RHS: r.Expr})
	}
	return out, nil
}

// zeroAggregate writes zero into every scalar field of a nested aggregate.
func (t *Transformer) zeroAggregate(target sea.Expr, typ seatypes.Type, pos diag.Pos) ([]sea.Stmt, *diag.Diagnostic) {
	fields, _, ok := aggregateFields(typ)
	if !ok {
		return nil, diag.New(diag.Internal, pos, "cannot zero non-aggregate %s", typ)
	}
	if _, isUnion := typ.(seatypes.Tunion); isUnion && len(fields) > 0 {
		fields = fields[:1]
	}
	var out []sea.Stmt
	for _, f := range fields {
		dst := sea.Member{X: target, Name: f.Name, Typ: f.Type}
		if zero := zeroOf(f.Type); zero != nil {
			out = append(out, sea.Assign{LHS: dst, RHS: zero})
			continue
		}
		nested, err := t.zeroAggregate(dst, f.Type, pos)
		if err != nil {
			return nil, err
		}
		out = append(out, nested...)
	}
	return out, nil
}

// zeroOf returns the zero value for a scalar type, or nil for aggregates.
func zeroOf(t seatypes.Type) sea.Expr {
	switch it := t.(type) {
	case seatypes.Tint:
		if it.Size == seatypes.IBool {
			return sea.ConstBool{Value: false}
		}
		return sea.ConstInt{Value: 0, Typ: t}
	case seatypes.Tenum, seatypes.Tpointer:
		return sea.ConstInt{Value: 0, Typ: t}
	}
	return nil
}

// --- typing helpers ---

func pointee(t seatypes.Type) seatypes.Type {
	if p, ok := t.(seatypes.Tpointer); ok {
		return p.Elem
	}
	return seatypes.Int()
}

func elemType(t seatypes.Type) seatypes.Type {
	switch a := t.(type) {
	case seatypes.Tarray:
		return a.Elem
	case seatypes.Tpointer:
		return a.Elem
	}
	return seatypes.Int()
}

func binopType(op sea.BinaryOp, l, r sea.Expr) seatypes.Type {
	switch op {
	case sea.Oeq, sea.One, sea.Olt, sea.Ogt, sea.Ole, sea.Oge, sea.Oand, sea.Oor:
		return seatypes.Int()
	}
	if _, ok := l.ExprType().(seatypes.Tpointer); ok {
		return l.ExprType()
	}
	if _, ok := r.ExprType().(seatypes.Tpointer); ok {
		return r.ExprType()
	}
	return l.ExprType()
}
