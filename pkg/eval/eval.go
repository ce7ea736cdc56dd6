// Package eval executes lowered programs directly. It is the reference
// for what the emitted C must compute: fixture tests run a program here
// and compare observable results against the values the C toolchain
// would print. Execution is single-threaded over a flat heap.
package eval

import (
	"io"

	"github.com/pkg/errors"

	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/runtime"
	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/sea"
	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/seatypes"
)

// Sentinel stream handles for the stdio globals.
const (
	handleStdout = 1
	handleStderr = 2
)

const stepLimit = 10_000_000

// Machine executes one lowered program.
type Machine struct {
	prog    *sea.Program
	funcs   map[string]*sea.Function
	layouts *seatypes.Env
	mem     *memory
	arrays  map[int64]*runtime.TaggedArray
	strs    map[string]int64
	out     io.Writer
	steps   int
}

// New prepares a machine; program output goes to out.
func New(prog *sea.Program, out io.Writer) *Machine {
	m := &Machine{
		prog:    prog,
		funcs:   make(map[string]*sea.Function),
		layouts: seatypes.NewEnv(),
		mem:     newMemory(),
		arrays:  make(map[int64]*runtime.TaggedArray),
		strs:    make(map[string]int64),
		out:     out,
	}
	for i := range prog.Funcs {
		m.funcs[prog.Funcs[i].Name] = &prog.Funcs[i]
	}
	return m
}

// Run executes main and returns its exit value.
func (m *Machine) Run() (int64, error) {
	return m.Call("main")
}

// Call executes a named function with the given argument words.
func (m *Machine) Call(name string, args ...int64) (int64, error) {
	fn, ok := m.funcs[name]
	if !ok {
		return m.native(name, args)
	}
	if len(args) != len(fn.Params) {
		return 0, errors.Errorf("%s called with %d arguments, takes %d", name, len(args), len(fn.Params))
	}

	f := newFrame()
	for i, p := range fn.Params {
		addr := m.mem.alloc(seatypes.SizeOf(p.Typ))
		if err := m.mem.store(addr, scalarSize(p.Typ), args[i]); err != nil {
			return 0, err
		}
		f.bind(p.Name, addr, p.Typ)
	}

	ctl, err := m.execList(f, fn.Body)
	if err != nil {
		return 0, errors.Wrapf(err, "in %s", name)
	}
	if ctl.kind == ctlReturn {
		return ctl.val, nil
	}
	return 0, nil
}

// --- frames and control flow ---

type frame struct {
	addrs map[string]int64
	types map[string]seatypes.Type
}

func newFrame() *frame {
	return &frame{addrs: make(map[string]int64), types: make(map[string]seatypes.Type)}
}

func (f *frame) bind(name string, addr int64, typ seatypes.Type) {
	f.addrs[name] = addr
	f.types[name] = typ
}

const (
	ctlNone = iota
	ctlReturn
	ctlBreak
	ctlContinue
)

type control struct {
	kind int
	val  int64
}

func (m *Machine) execList(f *frame, stmts []sea.Stmt) (control, error) {
	for _, s := range stmts {
		ctl, err := m.exec(f, s)
		if err != nil || ctl.kind != ctlNone {
			return ctl, err
		}
	}
	return control{}, nil
}

func (m *Machine) exec(f *frame, stmt sea.Stmt) (control, error) {
	m.steps++
	if m.steps > stepLimit {
		return control{}, errors.New("step limit exceeded")
	}

	switch s := stmt.(type) {
	case sea.Decl:
		addr := m.mem.alloc(seatypes.SizeOf(s.Typ))
		f.bind(s.Name, addr, s.Typ)
		if s.Init == nil {
			return control{}, nil
		}
		v, err := m.eval(f, s.Init)
		if err != nil {
			return control{}, err
		}
		return control{}, m.storeInto(addr, s.Typ, v)

	case sea.Assign:
		addr, typ, err := m.evalAddr(f, s.LHS)
		if err != nil {
			return control{}, err
		}
		v, err := m.eval(f, s.RHS)
		if err != nil {
			return control{}, err
		}
		return control{}, m.storeInto(addr, typ, v)

	case sea.Call:
		args := make([]int64, len(s.Args))
		for i, a := range s.Args {
			v, err := m.eval(f, a)
			if err != nil {
				return control{}, err
			}
			args[i] = v
		}
		ret, err := m.Call(s.Fn, args...)
		if err != nil {
			return control{}, err
		}
		if s.Dst == nil {
			return control{}, nil
		}
		addr, typ, err := m.evalAddr(f, s.Dst)
		if err != nil {
			return control{}, err
		}
		return control{}, m.storeInto(addr, typ, ret)

	case sea.RefInit:
		return control{}, m.adjustRefcount(f, s.Ptr, refSet)

	case sea.Retain:
		return control{}, m.adjustRefcount(f, s.Ptr, refUp)

	case sea.Release:
		return control{}, m.adjustRefcount(f, s.Ptr, refDown)

	case sea.Return:
		if s.E == nil {
			return control{kind: ctlReturn}, nil
		}
		v, err := m.eval(f, s.E)
		if err != nil {
			return control{}, err
		}
		return control{kind: ctlReturn, val: v}, nil

	case sea.If:
		c, err := m.eval(f, s.Cond)
		if err != nil {
			return control{}, err
		}
		if c != 0 {
			return m.execList(f, s.Then)
		}
		return m.execList(f, s.Else)

	case sea.While:
		for {
			c, err := m.eval(f, s.Cond)
			if err != nil {
				return control{}, err
			}
			if c == 0 {
				return control{}, nil
			}
			ctl, err := m.execList(f, s.Body)
			if err != nil {
				return control{}, err
			}
			switch ctl.kind {
			case ctlReturn:
				return ctl, nil
			case ctlBreak:
				return control{}, nil
			}
		}

	case sea.For:
		if s.Init != nil {
			if ctl, err := m.exec(f, s.Init); err != nil || ctl.kind != ctlNone {
				return ctl, err
			}
		}
		for {
			if s.Cond != nil {
				c, err := m.eval(f, s.Cond)
				if err != nil {
					return control{}, err
				}
				if c == 0 {
					return control{}, nil
				}
			}
			ctl, err := m.execList(f, s.Body)
			if err != nil {
				return control{}, err
			}
			if ctl.kind == ctlReturn {
				return ctl, nil
			}
			if ctl.kind == ctlBreak {
				return control{}, nil
			}
			if s.Post != nil {
				if ctl, err := m.exec(f, s.Post); err != nil || ctl.kind == ctlReturn {
					return ctl, err
				}
			}
		}

	case sea.Block:
		return m.execList(f, s.Body)

	case sea.Break:
		return control{kind: ctlBreak}, nil

	case sea.Continue:
		return control{kind: ctlContinue}, nil
	}
	return control{}, errors.Errorf("unknown statement %T", stmt)
}

// storeInto writes a value at addr; aggregates copy whole objects, v
// being the source address.
func (m *Machine) storeInto(addr int64, typ seatypes.Type, v int64) error {
	if seatypes.IsAggregate(typ) {
		return m.mem.copyBytes(addr, v, seatypes.SizeOf(typ))
	}
	return m.mem.store(addr, scalarSize(typ), castTo(v, typ))
}

// --- refcounting ---

const (
	refSet = iota
	refUp
	refDown
)

// adjustRefcount touches the count at offset zero of the pointed object.
func (m *Machine) adjustRefcount(f *frame, ptr sea.Expr, mode int) error {
	p, err := m.eval(f, ptr)
	if err != nil {
		return err
	}
	if p == 0 {
		return nil
	}
	width := refcountWidth(ptr.ExprType())
	switch mode {
	case refSet:
		return m.mem.store(p, width, 1)
	case refUp:
		n, err := m.mem.load(p, width)
		if err != nil {
			return err
		}
		return m.mem.store(p, width, n+1)
	default:
		n, err := m.mem.load(p, width)
		if err != nil {
			return err
		}
		n--
		if n <= 0 {
			return m.mem.free(p)
		}
		return m.mem.store(p, width, n)
	}
}

func refcountWidth(ptrType seatypes.Type) int64 {
	ptr, ok := ptrType.(seatypes.Tpointer)
	if !ok {
		return 4
	}
	s, ok := ptr.Elem.(seatypes.Tstruct)
	if !ok || len(s.Fields) == 0 {
		return 4
	}
	return seatypes.SizeOf(s.Fields[0].Type)
}

// --- expressions ---

func (m *Machine) eval(f *frame, expr sea.Expr) (int64, error) {
	switch e := expr.(type) {
	case sea.ConstInt:
		return e.Value, nil

	case sea.ConstBool:
		if e.Value {
			return 1, nil
		}
		return 0, nil

	case sea.ConstChar:
		s := unescape(e.Value)
		if len(s) == 0 {
			return 0, nil
		}
		return int64(s[0]), nil

	case sea.ConstStr:
		s := unescape(e.Value)
		if addr, ok := m.strs[s]; ok {
			return addr, nil
		}
		addr := m.mem.internString(s)
		m.strs[s] = addr
		return addr, nil

	case sea.Var:
		switch e.Name {
		case "stdout":
			if _, local := f.addrs[e.Name]; !local {
				return handleStdout, nil
			}
		case "stderr":
			if _, local := f.addrs[e.Name]; !local {
				return handleStderr, nil
			}
		}
		addr, ok := f.addrs[e.Name]
		if !ok {
			return 0, errors.Errorf("unbound variable %q", e.Name)
		}
		typ := f.types[e.Name]
		if seatypes.IsAggregate(typ) || isArray(typ) {
			return addr, nil
		}
		return m.loadTyped(addr, typ)

	case sea.Unop:
		v, err := m.eval(f, e.X)
		if err != nil {
			return 0, err
		}
		switch e.Op {
		case sea.Oneg:
			return castTo(-v, e.Typ), nil
		case sea.Onot:
			if v == 0 {
				return 1, nil
			}
			return 0, nil
		default:
			return castTo(^v, e.Typ), nil
		}

	case sea.Binop:
		return m.evalBinop(f, e)

	case sea.Member, sea.Index, sea.Deref:
		addr, typ, err := m.evalAddr(f, expr)
		if err != nil {
			return 0, err
		}
		if seatypes.IsAggregate(typ) || isArray(typ) {
			return addr, nil
		}
		return m.loadTyped(addr, typ)

	case sea.Addr:
		addr, _, err := m.evalAddr(f, e.X)
		return addr, err

	case sea.Cast:
		v, err := m.eval(f, e.X)
		if err != nil {
			return 0, err
		}
		return castTo(v, e.Typ), nil

	case sea.SizeofT:
		return seatypes.SizeOf(e.T), nil

	case sea.Cond:
		c, err := m.eval(f, e.C)
		if err != nil {
			return 0, err
		}
		if c != 0 {
			return m.eval(f, e.T)
		}
		return m.eval(f, e.F)
	}
	return 0, errors.Errorf("unknown expression %T", expr)
}

func (m *Machine) evalBinop(f *frame, e sea.Binop) (int64, error) {
	l, err := m.eval(f, e.L)
	if err != nil {
		return 0, err
	}

	// Lowering leaves && and || pure, so conditional evaluation of the
	// right side is still observable here.
	if e.Op == sea.Oand || e.Op == sea.Oor {
		truthy := l != 0
		if (e.Op == sea.Oand && !truthy) || (e.Op == sea.Oor && truthy) {
			return boolWord(truthy), nil
		}
		r, err := m.eval(f, e.R)
		if err != nil {
			return 0, err
		}
		return boolWord(r != 0), nil
	}

	r, err := m.eval(f, e.R)
	if err != nil {
		return 0, err
	}

	lptr, lIsPtr := e.L.ExprType().(seatypes.Tpointer)
	_, rIsPtr := e.R.ExprType().(seatypes.Tpointer)
	if lIsPtr && (e.Op == sea.Oadd || e.Op == sea.Osub) {
		scale := seatypes.SizeOf(lptr.Elem)
		if scale < 1 {
			scale = 1
		}
		if e.Op == sea.Osub && rIsPtr {
			return (l - r) / scale, nil
		}
		if e.Op == sea.Oadd {
			return l + r*scale, nil
		}
		return l - r*scale, nil
	}

	switch e.Op {
	case sea.Oadd:
		return castTo(l+r, e.Typ), nil
	case sea.Osub:
		return castTo(l-r, e.Typ), nil
	case sea.Omul:
		return castTo(l*r, e.Typ), nil
	case sea.Odiv:
		if r == 0 {
			return 0, errors.New("division by zero")
		}
		return castTo(l/r, e.Typ), nil
	case sea.Omod:
		if r == 0 {
			return 0, errors.New("division by zero")
		}
		return castTo(l%r, e.Typ), nil
	case sea.Oeq:
		return boolWord(l == r), nil
	case sea.One:
		return boolWord(l != r), nil
	case sea.Olt:
		return boolWord(l < r), nil
	case sea.Ogt:
		return boolWord(l > r), nil
	case sea.Ole:
		return boolWord(l <= r), nil
	case sea.Oge:
		return boolWord(l >= r), nil
	case sea.Obitand:
		return l & r, nil
	case sea.Obitor:
		return l | r, nil
	case sea.Oxor:
		return l ^ r, nil
	case sea.Oshl:
		return castTo(l<<uint(r&63), e.Typ), nil
	case sea.Oshr:
		return l >> uint(r&63), nil
	}
	return 0, errors.Errorf("unknown binary operator %v", e.Op)
}

// evalAddr resolves an lvalue to its address and static type.
func (m *Machine) evalAddr(f *frame, expr sea.Expr) (int64, seatypes.Type, error) {
	switch e := expr.(type) {
	case sea.Var:
		addr, ok := f.addrs[e.Name]
		if !ok {
			return 0, nil, errors.Errorf("unbound variable %q", e.Name)
		}
		return addr, f.types[e.Name], nil

	case sea.Member:
		var base int64
		var aggType seatypes.Type
		var err error
		if e.Arrow {
			base, err = m.eval(f, e.X)
			aggType = pointeeType(e.X.ExprType())
		} else {
			base, aggType, err = m.evalAddr(f, e.X)
		}
		if err != nil {
			return 0, nil, err
		}
		off := m.layouts.FieldOffset(aggType, e.Name)
		if off < 0 {
			return 0, nil, errors.Errorf("no field %q in %s", e.Name, aggType)
		}
		return base + off, e.Typ, nil

	case sea.Index:
		idx, err := m.eval(f, e.Idx)
		if err != nil {
			return 0, nil, err
		}
		arrType := e.Arr.ExprType()
		var base int64
		if isArray(arrType) {
			base, _, err = m.evalAddr(f, e.Arr)
		} else {
			base, err = m.eval(f, e.Arr)
		}
		if err != nil {
			return 0, nil, err
		}
		return base + idx*seatypes.SizeOf(e.Typ), e.Typ, nil

	case sea.Deref:
		p, err := m.eval(f, e.X)
		if err != nil {
			return 0, nil, err
		}
		return p, e.Typ, nil

	case sea.Cast:
		// (T*)p used as an lvalue target retypes the same address.
		addr, err := m.eval(f, e.X)
		return addr, e.Typ, err
	}
	return 0, nil, errors.Errorf("%T is not an lvalue", expr)
}

func (m *Machine) loadTyped(addr int64, typ seatypes.Type) (int64, error) {
	raw, err := m.mem.load(addr, scalarSize(typ))
	if err != nil {
		return 0, err
	}
	return castTo(raw, typ), nil
}

// --- type helpers ---

func scalarSize(t seatypes.Type) int64 {
	size := seatypes.SizeOf(t)
	if size > 8 {
		return 8
	}
	return size
}

func isArray(t seatypes.Type) bool {
	_, ok := t.(seatypes.Tarray)
	return ok
}

func pointeeType(t seatypes.Type) seatypes.Type {
	if p, ok := t.(seatypes.Tpointer); ok {
		return p.Elem
	}
	return t
}

func boolWord(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// castTo truncates and re-extends v for the target type's width.
func castTo(v int64, t seatypes.Type) int64 {
	switch tt := t.(type) {
	case seatypes.Tint:
		switch tt.Size {
		case seatypes.IBool:
			return boolWord(v != 0)
		case seatypes.I8:
			if tt.Sign == seatypes.Unsigned {
				return int64(uint8(v))
			}
			return int64(int8(v))
		case seatypes.I16:
			if tt.Sign == seatypes.Unsigned {
				return int64(uint16(v))
			}
			return int64(int16(v))
		case seatypes.I32:
			if tt.Sign == seatypes.Unsigned {
				return int64(uint32(v))
			}
			return int64(int32(v))
		}
		return v
	case seatypes.Tenum:
		return int64(int32(v))
	}
	return v
}

func unescape(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			out = append(out, s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			out = append(out, '\n')
		case 't':
			out = append(out, '\t')
		case 'r':
			out = append(out, '\r')
		case '0':
			out = append(out, 0)
		default:
			out = append(out, s[i])
		}
	}
	return string(out)
}
