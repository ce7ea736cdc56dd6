// Package resolver resolves type references in the surface AST, validates
// aggregate declarations, and populates the per-unit layout cache. This
// cache is the only persistent state the pipeline owns and is write-once
// per type.
package resolver

import (
	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/ast"
	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/diag"
	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/seatypes"
	"github.com/samber/lo"
)

// Unit is a resolved compilation unit: the surface AST plus every table
// later stages read. The AST itself is not mutated.
type Unit struct {
	Program *ast.Program

	Structs    map[string]seatypes.Tstruct
	Unions     map[string]seatypes.Tunion
	Enums      map[string]seatypes.Tenum
	EnumConsts map[string]int64
	Typedefs   map[string]seatypes.Type
	Funcs      map[string]seatypes.Tfunction
	Externs    map[string]bool               // functions declared without a body
	Globals    map[string]seatypes.Type      // external objects (stderr)

	// Declaration order, preserved for emission.
	AggOrder  []string
	EnumOrder []string

	Layouts *seatypes.Env
}

// Resolve checks a parsed program and builds its resolved Unit.
func Resolve(prog *ast.Program) (*Unit, *diag.Diagnostic) {
	u := &Unit{
		Program:    prog,
		Structs:    make(map[string]seatypes.Tstruct),
		Unions:     make(map[string]seatypes.Tunion),
		Enums:      make(map[string]seatypes.Tenum),
		EnumConsts: make(map[string]int64),
		Typedefs:   make(map[string]seatypes.Type),
		Funcs:      make(map[string]seatypes.Tfunction),
		Externs:    make(map[string]bool),
		Globals:    make(map[string]seatypes.Type),
		Layouts:    seatypes.NewEnv(),
	}
	u.registerBuiltins()

	for _, decl := range prog.Decls {
		if err := u.resolveDecl(decl); err != nil {
			return nil, err
		}
	}

	// Second pass: every type reference inside function bodies must
	// resolve, so later stages never see an unknown name.
	for _, decl := range prog.Decls {
		fn, ok := decl.(ast.FunDef)
		if !ok {
			continue
		}
		if err := u.checkBlock(fn.Body); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// registerBuiltins installs the opaque stdlib signatures the dialect links
// against. They are consumed as external symbols, never defined here.
func (u *Unit) registerBuiltins() {
	voidPtr := seatypes.Pointer(seatypes.Void())
	charPtr := seatypes.Pointer(seatypes.Char())
	u.Funcs["printf"] = seatypes.Tfunction{Params: []seatypes.Type{charPtr}, Return: seatypes.Int(), Variadic: true}
	u.Funcs["fprintf"] = seatypes.Tfunction{Params: []seatypes.Type{voidPtr, charPtr}, Return: seatypes.Int(), Variadic: true}
	u.Funcs["malloc"] = seatypes.Tfunction{Params: []seatypes.Type{seatypes.Long()}, Return: voidPtr}
	u.Funcs["realloc"] = seatypes.Tfunction{Params: []seatypes.Type{voidPtr, seatypes.Long()}, Return: voidPtr}
	u.Funcs["free"] = seatypes.Tfunction{Params: []seatypes.Type{voidPtr}, Return: seatypes.Void()}

	// Tagged-array runtime, emitted with the prelude when used.
	u.Funcs["ahoy_array_new"] = seatypes.Tfunction{Return: voidPtr}
	u.Funcs["ahoy_array_push"] = seatypes.Tfunction{
		Params: []seatypes.Type{voidPtr, seatypes.Intptr(), seatypes.Int()},
		Return: voidPtr,
	}
	u.Funcs["ahoy_array_get"] = seatypes.Tfunction{
		Params: []seatypes.Type{voidPtr, seatypes.Int()},
		Return: seatypes.Intptr(),
	}
	u.Funcs["ahoy_retain"] = seatypes.Tfunction{Params: []seatypes.Type{voidPtr}, Return: seatypes.Void()}
	u.Funcs["ahoy_release"] = seatypes.Tfunction{Params: []seatypes.Type{voidPtr}, Return: seatypes.Void()}
	for name := range u.Funcs {
		u.Externs[name] = true
	}

	u.Globals["stderr"] = voidPtr
	u.Globals["stdout"] = voidPtr

	// The tagged-array types come from the prelude, not from Decls, so
	// they never join AggOrder.
	u.Typedefs["AhoyArray"] = seatypes.Tstruct{Name: "AhoyArray", Fields: []seatypes.Field{
		{Name: "data", Type: seatypes.Pointer(seatypes.Intptr())},
		{Name: "types", Type: seatypes.Pointer(seatypes.Int())},
		{Name: "length", Type: seatypes.Int()},
		{Name: "capacity", Type: seatypes.Int()},
	}}
	u.Typedefs["AhoyValueType"] = seatypes.Tenum{Name: "AhoyValueType"}
	u.EnumConsts["AHOY_TYPE_INT"] = 0
	u.EnumConsts["AHOY_TYPE_STRING"] = 1
	u.EnumConsts["AHOY_TYPE_STRUCT"] = 2
}

func (u *Unit) resolveDecl(decl ast.Decl) *diag.Diagnostic {
	switch d := decl.(type) {
	case ast.Typedef:
		switch {
		case d.Aggregate != nil:
			return u.registerAggregate(*d.Aggregate, d.Name)
		case d.Enum != nil:
			return u.registerEnum(*d.Enum, d.Name)
		case d.Spec != nil:
			t, err := u.ResolveSpec(*d.Spec)
			if err != nil {
				return err
			}
			u.Typedefs[d.Name] = t
			return nil
		}
		return diag.New(diag.Internal, d.Pos, "typedef %q has no aliased type", d.Name)

	case ast.AggregateDecl:
		return u.registerAggregate(d, d.Name)

	case ast.EnumDecl:
		return u.registerEnum(d, d.Name)

	case ast.ExternFun:
		sig, err := u.resolveSignature(d.ReturnType, d.Params, d.Variadic)
		if err != nil {
			return err
		}
		u.Funcs[d.Name] = sig
		u.Externs[d.Name] = true
		return nil

	case ast.FunDef:
		sig, err := u.resolveSignature(d.ReturnType, d.Params, false)
		if err != nil {
			return err
		}
		u.Funcs[d.Name] = sig
		return nil
	}
	return nil
}

func (u *Unit) resolveSignature(ret ast.TypeSpec, params []ast.Param, variadic bool) (seatypes.Tfunction, *diag.Diagnostic) {
	retType, err := u.ResolveSpec(ret)
	if err != nil {
		return seatypes.Tfunction{}, err
	}
	sig := seatypes.Tfunction{Return: retType, Variadic: variadic}
	for _, param := range params {
		t, err := u.ResolveSpec(param.Type)
		if err != nil {
			return seatypes.Tfunction{}, err
		}
		sig.Params = append(sig.Params, t)
	}
	return sig, nil
}

// registerAggregate resolves and validates a struct or union declaration,
// then computes its layout into the cache.
func (u *Unit) registerAggregate(d ast.AggregateDecl, name string) *diag.Diagnostic {
	fields, err := u.resolveFields(d)
	if err != nil {
		return err
	}
	if err := validateRefcount(name, fields, d.Pos); err != nil {
		return err
	}
	if d.IsUnion {
		t := seatypes.Tunion{Name: name, Fields: fields}
		u.Unions[name] = t
		u.Typedefs[name] = t
		u.Layouts.LayoutOf(t)
	} else {
		t := seatypes.Tstruct{Name: name, Fields: fields}
		u.Structs[name] = t
		u.Typedefs[name] = t
		u.Layouts.LayoutOf(t)
	}
	u.AggOrder = append(u.AggOrder, name)
	return nil
}

func (u *Unit) resolveFields(d ast.AggregateDecl) ([]seatypes.Field, *diag.Diagnostic) {
	var fields []seatypes.Field
	seen := make(map[string]bool)
	for _, f := range d.Fields {
		if seen[f.Name] {
			kind := "struct"
			if d.IsUnion {
				kind = "union"
			}
			return nil, diag.New(diag.DuplicateField, f.Pos,
				"duplicate field %q in %s %s", f.Name, kind, d.Name)
		}
		seen[f.Name] = true

		var ft seatypes.Type
		if f.Inline != nil {
			inner, err := u.resolveFields(*f.Inline)
			if err != nil {
				return nil, err
			}
			if f.Inline.IsUnion {
				ft = seatypes.Tunion{Name: f.Inline.Name, Fields: inner}
			} else {
				ft = seatypes.Tstruct{Name: f.Inline.Name, Fields: inner}
			}
		} else {
			var err *diag.Diagnostic
			ft, err = u.ResolveSpec(f.Type)
			if err != nil {
				return nil, err
			}
		}
		fields = append(fields, seatypes.Field{Name: f.Name, Type: ft})
	}
	return fields, nil
}

// validateRefcount enforces the ARC recognition rule: the reserved field
// name is legal only as the first field, and only with an integer type.
func validateRefcount(aggName string, fields []seatypes.Field, pos diag.Pos) *diag.Diagnostic {
	for i, f := range fields {
		if f.Name != seatypes.RefcountField {
			continue
		}
		if i != 0 {
			return diag.New(diag.InvalidRefcountField, pos,
				"%s must be the first field of %s, found at position %d", seatypes.RefcountField, aggName, i)
		}
		if !seatypes.IsInteger(f.Type) {
			return diag.New(diag.InvalidRefcountField, pos,
				"%s field of %s must have integer type, got %s", seatypes.RefcountField, aggName, f.Type)
		}
	}
	return nil
}

func (u *Unit) registerEnum(d ast.EnumDecl, name string) *diag.Diagnostic {
	t := seatypes.Tenum{Name: name}
	next := int64(0)
	for _, m := range d.Members {
		if m.HasValue {
			next = m.Value
		}
		u.EnumConsts[m.Name] = next
		next++
	}
	u.Enums[name] = t
	u.Typedefs[name] = t
	u.EnumOrder = append(u.EnumOrder, name)
	return nil
}

// ResolveSpec maps a surface TypeSpec to a concrete type, validating the
// modifier combination.
func (u *Unit) ResolveSpec(ts ast.TypeSpec) (seatypes.Type, *diag.Diagnostic) {
	base, err := u.resolveBase(ts)
	if err != nil {
		return nil, err
	}
	for i := 0; i < ts.PtrDepth; i++ {
		base = seatypes.Pointer(base)
	}
	if ts.ArrayLen >= 0 {
		base = seatypes.Array(base, ts.ArrayLen)
	}
	return base, nil
}

func (u *Unit) resolveBase(ts ast.TypeSpec) (seatypes.Type, *diag.Diagnostic) {
	signed := lo.Count(ts.Mods, ast.ModSigned)
	unsigned := lo.Count(ts.Mods, ast.ModUnsigned)
	short := lo.Count(ts.Mods, ast.ModShort)
	long := lo.Count(ts.Mods, ast.ModLong)

	switch {
	case signed > 0 && unsigned > 0:
		return nil, diag.New(diag.InvalidModifierCombo, ts.Pos, "both signed and unsigned in type")
	case short > 0 && long > 0:
		return nil, diag.New(diag.InvalidModifierCombo, ts.Pos, "both short and long in type")
	case short > 1:
		return nil, diag.New(diag.InvalidModifierCombo, ts.Pos, "repeated short in type")
	case long > 2:
		return nil, diag.New(diag.InvalidModifierCombo, ts.Pos, "too many long in type")
	case signed > 1 || unsigned > 1:
		return nil, diag.New(diag.InvalidModifierCombo, ts.Pos, "repeated signedness modifier in type")
	}

	sign := seatypes.Signed
	if unsigned > 0 {
		sign = seatypes.Unsigned
	}

	switch ts.Base {
	case "int", "":
		if ts.Base == "" && len(ts.Mods) == 0 {
			return nil, diag.New(diag.InvalidModifierCombo, ts.Pos, "type has no base and no modifiers")
		}
		switch {
		case short > 0:
			return seatypes.Tint{Size: seatypes.I16, Sign: sign}, nil
		case long > 0:
			return seatypes.Tint{Size: seatypes.I64, Sign: sign}, nil
		default:
			return seatypes.Tint{Size: seatypes.I32, Sign: sign}, nil
		}
	case "char":
		if short > 0 || long > 0 {
			return nil, diag.New(diag.InvalidModifierCombo, ts.Pos, "short/long cannot modify char")
		}
		return seatypes.Tint{Size: seatypes.I8, Sign: sign}, nil
	case "void", "bool", "intptr_t":
		if len(ts.Mods) > 0 {
			return nil, diag.New(diag.InvalidModifierCombo, ts.Pos, "modifiers cannot apply to %s", ts.Base)
		}
		switch ts.Base {
		case "void":
			return seatypes.Void(), nil
		case "bool":
			return seatypes.Bool(), nil
		default:
			return seatypes.Intptr(), nil
		}
	default:
		if len(ts.Mods) > 0 {
			return nil, diag.New(diag.InvalidModifierCombo, ts.Pos, "modifiers cannot apply to %s", ts.Base)
		}
		if t, ok := u.Typedefs[ts.Base]; ok {
			return t, nil
		}
		return nil, diag.New(diag.UnknownType, ts.Pos, "unknown type name %q", ts.Base)
	}
}

// --- body type-reference checking ---

func (u *Unit) checkBlock(b *ast.Block) *diag.Diagnostic {
	if b == nil {
		return nil
	}
	for _, item := range b.Items {
		if err := u.checkStmt(item); err != nil {
			return err
		}
	}
	return nil
}

func (u *Unit) checkStmt(s ast.Stmt) *diag.Diagnostic {
	switch st := s.(type) {
	case ast.ExprStmt:
		return u.checkExpr(st.Expr)
	case ast.DeclStmt:
		if _, err := u.ResolveSpec(st.Type); err != nil {
			return err
		}
		return u.checkExpr(st.Init)
	case ast.Return:
		return u.checkExpr(st.Expr)
	case ast.If:
		if err := u.checkExpr(st.Cond); err != nil {
			return err
		}
		if err := u.checkBlock(st.Then); err != nil {
			return err
		}
		if st.Else != nil {
			return u.checkStmt(st.Else)
		}
	case ast.While:
		if err := u.checkExpr(st.Cond); err != nil {
			return err
		}
		return u.checkBlock(st.Body)
	case ast.For:
		if st.Init != nil {
			if err := u.checkStmt(st.Init); err != nil {
				return err
			}
		}
		if err := u.checkExpr(st.Cond); err != nil {
			return err
		}
		if err := u.checkExpr(st.Post); err != nil {
			return err
		}
		return u.checkBlock(st.Body)
	case *ast.Block:
		return u.checkBlock(st)
	case ast.Block:
		return u.checkBlock(&st)
	}
	return nil
}

func (u *Unit) checkExpr(e ast.Expr) *diag.Diagnostic {
	switch ex := e.(type) {
	case nil:
		return nil
	case ast.Unary:
		return u.checkExpr(ex.Expr)
	case ast.Binary:
		if err := u.checkExpr(ex.Left); err != nil {
			return err
		}
		return u.checkExpr(ex.Right)
	case ast.Paren:
		return u.checkExpr(ex.Expr)
	case ast.Conditional:
		if err := u.checkExpr(ex.Cond); err != nil {
			return err
		}
		if err := u.checkExpr(ex.Then); err != nil {
			return err
		}
		return u.checkExpr(ex.Else)
	case ast.Call:
		if err := u.checkExpr(ex.Func); err != nil {
			return err
		}
		for _, arg := range ex.Args {
			if err := u.checkExpr(arg); err != nil {
				return err
			}
		}
	case ast.Index:
		if err := u.checkExpr(ex.Array); err != nil {
			return err
		}
		return u.checkExpr(ex.Index)
	case ast.Member:
		return u.checkExpr(ex.Expr)
	case ast.Cast:
		if _, err := u.ResolveSpec(ex.Type); err != nil {
			return err
		}
		return u.checkExpr(ex.Expr)
	case ast.SizeofType:
		_, err := u.ResolveSpec(ex.Type)
		return err
	case ast.SizeofExpr:
		return u.checkExpr(ex.Expr)
	case ast.StmtExpr:
		for _, s := range ex.Stmts {
			if err := u.checkStmt(s); err != nil {
				return err
			}
		}
	case ast.CompoundLiteral:
		if _, err := u.ResolveSpec(ex.Type); err != nil {
			return err
		}
		for _, init := range ex.Inits {
			if err := u.checkExpr(init.Value); err != nil {
				return err
			}
		}
	}
	return nil
}
