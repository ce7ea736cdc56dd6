// Package sea defines the lowered intermediate representation. Expressions
// are side-effect free; every effect, including refcount adjustments, is an
// ordinary statement. The printer in this package is the final emitter.
package sea

import "github.com/ahoy-lang/ahoy-sea-compiler/pkg/seatypes"

// Node is the base interface for all IR nodes
type Node interface {
	implSeaNode()
}

// Expr is the interface for side-effect-free expressions
type Expr interface {
	Node
	implSeaExpr()
	ExprType() seatypes.Type
}

// Stmt is the interface for statements
type Stmt interface {
	Node
	implSeaStmt()
}

// UnaryOp represents pure unary operators
type UnaryOp int

const (
	Oneg    UnaryOp = iota // -
	Onot                   // !
	Onotint                // ~
)

func (op UnaryOp) String() string {
	names := []string{"-", "!", "~"}
	if int(op) < len(names) {
		return names[op]
	}
	return "?"
}

// BinaryOp represents pure binary operators
type BinaryOp int

const (
	Oadd BinaryOp = iota
	Osub
	Omul
	Odiv
	Omod
	Oeq
	One
	Olt
	Ogt
	Ole
	Oge
	Oand    // &&
	Oor     // ||
	Obitand // &
	Obitor  // |
	Oxor
	Oshl
	Oshr
)

func (op BinaryOp) String() string {
	names := []string{"+", "-", "*", "/", "%", "==", "!=", "<", ">", "<=", ">=",
		"&&", "||", "&", "|", "^", "<<", ">>"}
	if int(op) < len(names) {
		return names[op]
	}
	return "?"
}

// --- Expressions ---

// ConstInt is an integer constant
type ConstInt struct {
	Value int64
	Typ   seatypes.Type
}

// ConstBool is a boolean constant
type ConstBool struct {
	Value bool
}

// ConstChar is a character constant; Value keeps the source spelling
type ConstChar struct {
	Value string
}

// ConstStr is a string constant; Value keeps the source spelling with
// escape sequences intact
type ConstStr struct {
	Value string
}

// Var references a named local, parameter, or external object
type Var struct {
	Name string
	Typ  seatypes.Type
}

// Unop is a pure unary operation
type Unop struct {
	Op  UnaryOp
	X   Expr
	Typ seatypes.Type
}

// Binop is a pure binary operation
type Binop struct {
	Op   BinaryOp
	L, R Expr
	Typ  seatypes.Type
}

// Member is field access x.name or p->name
type Member struct {
	X     Expr
	Name  string
	Arrow bool
	Typ   seatypes.Type
}

// Index is array subscript access
type Index struct {
	Arr Expr
	Idx Expr
	Typ seatypes.Type
}

// Addr is &x
type Addr struct {
	X   Expr
	Typ seatypes.Type
}

// Deref is *p
type Deref struct {
	X   Expr
	Typ seatypes.Type
}

// Cast is (T)x
type Cast struct {
	X   Expr
	Typ seatypes.Type
}

// SizeofT is sizeof(T); it evaluates via the layout rules at emission
type SizeofT struct {
	T seatypes.Type
}

// Cond is the pure ternary c ? t : f
type Cond struct {
	C, T, F Expr
	Typ     seatypes.Type
}

func (e ConstInt) ExprType() seatypes.Type  { return e.Typ }
func (e ConstBool) ExprType() seatypes.Type { return seatypes.Bool() }
func (e ConstChar) ExprType() seatypes.Type { return seatypes.Char() }
func (e ConstStr) ExprType() seatypes.Type  { return seatypes.Pointer(seatypes.Char()) }
func (e Var) ExprType() seatypes.Type       { return e.Typ }
func (e Unop) ExprType() seatypes.Type      { return e.Typ }
func (e Binop) ExprType() seatypes.Type     { return e.Typ }
func (e Member) ExprType() seatypes.Type    { return e.Typ }
func (e Index) ExprType() seatypes.Type     { return e.Typ }
func (e Addr) ExprType() seatypes.Type      { return e.Typ }
func (e Deref) ExprType() seatypes.Type     { return e.Typ }
func (e Cast) ExprType() seatypes.Type      { return e.Typ }
func (e SizeofT) ExprType() seatypes.Type   { return seatypes.Long() }
func (e Cond) ExprType() seatypes.Type      { return e.Typ }

// --- Statements ---

// Decl declares a local variable with an optional pure initializer
type Decl struct {
	Name string
	Typ  seatypes.Type
	Init Expr // nil or side-effect free
}

// Assign stores RHS into the lvalue LHS
type Assign struct {
	LHS Expr
	RHS Expr
}

// Call invokes a function; Dst receives the result when non-nil
type Call struct {
	Dst  Expr // nil to discard the result
	Fn   string
	Args []Expr
}

// RefInit sets a fresh ARC object's refcount to 1. This is the allocation
// base case, not an increment.
type RefInit struct {
	Ptr Expr
}

// Retain increments the refcount of the object Ptr points at
type Retain struct {
	Ptr Expr
}

// Release decrements the refcount and frees the storage at zero
type Release struct {
	Ptr Expr
}

// Return exits the enclosing function
type Return struct {
	E Expr // nil for bare return
}

// If is a two-armed conditional
type If struct {
	Cond Expr
	Then []Stmt
	Else []Stmt
}

// While is a while loop
type While struct {
	Cond Expr
	Body []Stmt
}

// For is a for loop; Init and Post are single statements or nil
type For struct {
	Init Stmt
	Cond Expr
	Post Stmt
	Body []Stmt
}

// Block is a nested scope
type Block struct {
	Body []Stmt
}

// Break exits the innermost loop
type Break struct{}

// Continue advances the innermost loop
type Continue struct{}

// --- Program ---

// AggDecl is an emitted struct or union declaration; field order is the
// declaration order and fixes the ABI offsets.
type AggDecl struct {
	Name   string
	Union  bool
	Fields []seatypes.Field
}

// EnumMember is one emitted enumerator
type EnumMember struct {
	Name     string
	HasValue bool
	Value    int64
}

// EnumDef is an emitted enum declaration
type EnumDef struct {
	Name    string
	Members []EnumMember
}

// ExternDecl is an external function prototype carried through emission
type ExternDecl struct {
	Name string
	Sig  seatypes.Tfunction
}

// ParamDecl is a named function parameter
type ParamDecl struct {
	Name string
	Typ  seatypes.Type
}

// Function is a lowered function definition
type Function struct {
	Name   string
	Return seatypes.Type
	Params []ParamDecl
	Body   []Stmt
}

// Program is one lowered compilation unit
type Program struct {
	Aggregates []AggDecl
	Enums      []EnumDef
	Externs    []ExternDecl
	Funcs      []Function

	// UsesRuntime marks units that need the tagged-array/ARC prelude.
	UsesRuntime bool
}

// Marker methods
func (ConstInt) implSeaNode()  {}
func (ConstInt) implSeaExpr()  {}
func (ConstBool) implSeaNode() {}
func (ConstBool) implSeaExpr() {}
func (ConstChar) implSeaNode() {}
func (ConstChar) implSeaExpr() {}
func (ConstStr) implSeaNode()  {}
func (ConstStr) implSeaExpr()  {}
func (Var) implSeaNode()       {}
func (Var) implSeaExpr()       {}
func (Unop) implSeaNode()      {}
func (Unop) implSeaExpr()      {}
func (Binop) implSeaNode()     {}
func (Binop) implSeaExpr()     {}
func (Member) implSeaNode()    {}
func (Member) implSeaExpr()    {}
func (Index) implSeaNode()     {}
func (Index) implSeaExpr()     {}
func (Addr) implSeaNode()      {}
func (Addr) implSeaExpr()      {}
func (Deref) implSeaNode()     {}
func (Deref) implSeaExpr()     {}
func (Cast) implSeaNode()      {}
func (Cast) implSeaExpr()      {}
func (SizeofT) implSeaNode()   {}
func (SizeofT) implSeaExpr()   {}
func (Cond) implSeaNode()      {}
func (Cond) implSeaExpr()      {}

func (Decl) implSeaNode()     {}
func (Decl) implSeaStmt()     {}
func (Assign) implSeaNode()   {}
func (Assign) implSeaStmt()   {}
func (Call) implSeaNode()     {}
func (Call) implSeaStmt()     {}
func (RefInit) implSeaNode()  {}
func (RefInit) implSeaStmt()  {}
func (Retain) implSeaNode()   {}
func (Retain) implSeaStmt()   {}
func (Release) implSeaNode()  {}
func (Release) implSeaStmt()  {}
func (Return) implSeaNode()   {}
func (Return) implSeaStmt()   {}
func (If) implSeaNode()       {}
func (If) implSeaStmt()       {}
func (While) implSeaNode()    {}
func (While) implSeaStmt()    {}
func (For) implSeaNode()      {}
func (For) implSeaStmt()      {}
func (Block) implSeaNode()    {}
func (Block) implSeaStmt()    {}
func (Break) implSeaNode()    {}
func (Break) implSeaStmt()    {}
func (Continue) implSeaNode() {}
func (Continue) implSeaStmt() {}
