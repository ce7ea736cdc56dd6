// Package arc inserts reference-count maintenance into the lowered IR.
// Every refcount adjustment becomes an explicit statement: RefInit when a
// fresh object finishes initializing, Retain when a reference is copied
// into storage that outlives the copy, Release when a binding is
// overwritten or goes out of scope. Call arguments are borrowed and never
// retained; the tagged array is a non-owning container.
package arc

import (
	"fmt"

	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/diag"
	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/sea"
	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/seatypes"
)

type scopeKind int

const (
	scopePlain scopeKind = iota
	scopeFunc
	scopeLoop
)

// varState tracks one managed local between its declaration and the end
// of its scope.
type varState struct {
	typ   seatypes.Type
	owned bool // this scope must release the held reference
	fresh bool // allocation not yet bound to any other storage
	live  bool // currently holds a value
}

type scope struct {
	parent *scope
	kind   scopeKind
	vars   map[string]*varState
	order  []string // managed locals in declaration order
}

func newScope(parent *scope, kind scopeKind) *scope {
	return &scope{parent: parent, kind: kind, vars: make(map[string]*varState)}
}

func (s *scope) declare(name string, typ seatypes.Type) *varState {
	st := &varState{typ: typ}
	s.vars[name] = st
	s.order = append(s.order, name)
	return st
}

func (s *scope) lookup(name string) *varState {
	for sc := s; sc != nil; sc = sc.parent {
		if st, ok := sc.vars[name]; ok {
			return st
		}
	}
	return nil
}

type pass struct {
	eligible map[string]bool
	nRet     int
}

// Instrument rewrites every function body in place, adding refcount
// statements for the ARC-eligible types declared in the program.
func Instrument(prog *sea.Program) *diag.Diagnostic {
	p := &pass{eligible: make(map[string]bool)}
	for _, agg := range prog.Aggregates {
		if agg.Union {
			continue
		}
		s := seatypes.Tstruct{Name: agg.Name, Fields: agg.Fields}
		if seatypes.IsARCEligible(s) {
			p.eligible[agg.Name] = true
			continue
		}
		// The reserved name anywhere but slot zero should never survive
		// resolution; refuse to instrument around it.
		for i, f := range agg.Fields {
			if f.Name == seatypes.RefcountField && i != 0 {
				return diag.New(diag.Internal, diag.Pos{},
					"%s of %s at position %d reached instrumentation", seatypes.RefcountField, agg.Name, i)
			}
		}
	}
	if len(p.eligible) == 0 {
		return nil
	}

	for i := range prog.Funcs {
		fn := &prog.Funcs[i]
		sc := newScope(nil, scopeFunc)
		for _, param := range fn.Params {
			// Parameters are borrowed references.
			if p.isManaged(param.Typ) {
				sc.vars[param.Name] = &varState{typ: param.Typ, live: true}
			}
		}
		fn.Body = p.instrumentList(fn.Body, sc)
	}
	prog.UsesRuntime = true
	return nil
}

// isManaged reports whether typ is a pointer to an ARC-eligible struct.
func (p *pass) isManaged(typ seatypes.Type) bool {
	ptr, ok := typ.(seatypes.Tpointer)
	if !ok {
		return false
	}
	s, ok := ptr.Elem.(seatypes.Tstruct)
	return ok && p.eligible[s.Name]
}

func (p *pass) instrumentList(stmts []sea.Stmt, sc *scope) []sea.Stmt {
	var out []sea.Stmt
	terminated := false

	for i := 0; i < len(stmts); i++ {
		switch st := stmts[i].(type) {
		case sea.Decl:
			out = append(out, st)
			if !p.isManaged(st.Typ) {
				continue
			}
			state := sc.declare(st.Name, st.Typ)
			if st.Init == nil {
				continue
			}
			state.live = true
			if src, ok := st.Init.(sea.Var); ok {
				if from := sc.lookup(src.Name); from != nil && from.fresh && from.owned {
					// First binding of a fresh allocation takes over
					// its implicit reference.
					from.owned, from.fresh = false, false
					state.owned = true
					continue
				}
				out = append(out, sea.Retain{Ptr: sea.Var{Name: st.Name, Typ: st.Typ}})
				state.owned = true
			}

		case sea.Call:
			out = append(out, st)
			dst, ok := st.Dst.(sea.Var)
			if !ok || !p.isManaged(dst.Typ) {
				continue
			}
			state := sc.lookup(dst.Name)
			if state == nil {
				state = sc.declare(dst.Name, dst.Typ)
			}
			state.live, state.owned = true, true
			if st.Fn != "malloc" {
				continue
			}
			state.fresh = true
			// Let the initializing stores land, then stamp the count.
			for i+1 < len(stmts) {
				next, isAssign := stmts[i+1].(sea.Assign)
				if !isAssign || !storesField(next.LHS, dst.Name) {
					break
				}
				out = append(out, next)
				i++
			}
			out = append(out, sea.RefInit{Ptr: sea.Var{Name: dst.Name, Typ: dst.Typ}})

		case sea.Assign:
			out = append(out, p.instrumentAssign(st, sc)...)

		case sea.Return:
			keep := ""
			if v, ok := st.E.(sea.Var); ok {
				if state := sc.lookup(v.Name); state != nil && state.owned {
					// The caller inherits this reference.
					state.owned = false
					keep = v.Name
				}
			}
			rels := releasesUpTo(sc, scopeFunc, keep)
			if len(rels) > 0 && needsHoist(st.E) {
				// Evaluate the result before the releases can free
				// anything it reads through.
				tmp := sea.Var{Name: fmt.Sprintf("__r%d", p.nRet), Typ: st.E.ExprType()}
				p.nRet++
				out = append(out, sea.Decl{Name: tmp.Name, Typ: tmp.Typ, Init: st.E})
				st.E = tmp
			}
			out = append(out, rels...)
			out = append(out, st)
			terminated = true

		case sea.Break:
			out = append(out, releasesUpTo(sc, scopeLoop, "")...)
			out = append(out, st)
			terminated = true

		case sea.Continue:
			out = append(out, releasesUpTo(sc, scopeLoop, "")...)
			out = append(out, st)
			terminated = true

		case sea.If:
			st.Then = p.instrumentList(st.Then, newScope(sc, scopePlain))
			st.Else = p.instrumentList(st.Else, newScope(sc, scopePlain))
			out = append(out, st)

		case sea.While:
			st.Body = p.instrumentList(st.Body, newScope(sc, scopeLoop))
			out = append(out, st)

		case sea.For:
			st.Body = p.instrumentList(st.Body, newScope(sc, scopeLoop))
			out = append(out, st)

		case sea.Block:
			st.Body = p.instrumentList(st.Body, newScope(sc, scopePlain))
			out = append(out, st)

		default:
			out = append(out, stmts[i])
		}
		if terminated {
			// Anything after a terminator in this list is unreachable.
			out = append(out, stmts[i+1:]...)
			return out
		}
	}

	return append(out, releasesIn(sc, "")...)
}

// instrumentAssign handles stores involving managed references. The
// returned slice replaces the single assignment.
func (p *pass) instrumentAssign(st sea.Assign, sc *scope) []sea.Stmt {
	var out []sea.Stmt

	// Overwriting a managed local drops its old reference first.
	if lv, ok := st.LHS.(sea.Var); ok && p.isManaged(lv.Typ) {
		state := sc.lookup(lv.Name)
		if state != nil && state.owned && state.live {
			out = append(out, sea.Release{Ptr: lv})
		}
		out = append(out, st)
		if state == nil {
			return out
		}
		state.live = true
		state.owned, state.fresh = false, false
		if src, isVar := st.RHS.(sea.Var); isVar && p.isManaged(src.Typ) {
			if from := sc.lookup(src.Name); from != nil && from.fresh && from.owned {
				from.owned, from.fresh = false, false
				state.owned = true
				return out
			}
			out = append(out, sea.Retain{Ptr: lv})
			state.owned = true
		}
		return out
	}

	out = append(out, st)

	// A managed reference copied into a field or cell outlives this
	// scope; the destination takes its own reference.
	if !p.isManaged(lhsStoredType(st.LHS)) {
		return out
	}
	src, isVar := st.RHS.(sea.Var)
	if !isVar || !p.isManaged(src.Typ) {
		return out
	}
	if from := sc.lookup(src.Name); from != nil && from.fresh && from.owned {
		from.owned, from.fresh = false, false
		return out
	}
	return append(out, sea.Retain{Ptr: src})
}

func lhsStoredType(lhs sea.Expr) seatypes.Type {
	switch lv := lhs.(type) {
	case sea.Member:
		return lv.Typ
	case sea.Deref:
		return lv.Typ
	case sea.Index:
		return lv.Typ
	}
	return nil
}

// needsHoist reports whether a returned expression could read memory a
// pending release frees.
func needsHoist(e sea.Expr) bool {
	switch e.(type) {
	case nil, sea.Var, sea.ConstInt, sea.ConstBool, sea.ConstChar, sea.ConstStr, sea.SizeofT:
		return false
	}
	return true
}

// storesField reports whether lhs is a field of the named variable,
// through either access form.
func storesField(lhs sea.Expr, name string) bool {
	m, ok := lhs.(sea.Member)
	if !ok {
		return false
	}
	switch x := m.X.(type) {
	case sea.Var:
		return m.Arrow && x.Name == name
	case sea.Deref:
		v, ok := x.X.(sea.Var)
		return ok && v.Name == name
	}
	return false
}

// releasesIn emits releases for this scope's owned locals in reverse
// declaration order, skipping keep.
func releasesIn(sc *scope, keep string) []sea.Stmt {
	var out []sea.Stmt
	for i := len(sc.order) - 1; i >= 0; i-- {
		name := sc.order[i]
		if name == keep {
			continue
		}
		state := sc.vars[name]
		if state.owned && state.live {
			out = append(out, sea.Release{Ptr: sea.Var{Name: name, Typ: state.typ}})
		}
	}
	return out
}

// releasesUpTo emits releases for every scope from sc up to and
// including the nearest scope of the given kind.
func releasesUpTo(sc *scope, stop scopeKind, keep string) []sea.Stmt {
	var out []sea.Stmt
	for s := sc; s != nil; s = s.parent {
		out = append(out, releasesIn(s, keep)...)
		if s.kind == stop {
			break
		}
	}
	return out
}
