// Package ast defines the surface syntax tree for the sea dialect.
// The parser produces it; the resolver and lowering pass consume it.
// Nodes are immutable once a pipeline stage completes.
package ast

import "github.com/ahoy-lang/ahoy-sea-compiler/pkg/diag"

// Node is the base interface for all AST nodes
type Node interface {
	implNode()
}

// Expr is the interface for all expression nodes
type Expr interface {
	Node
	implExpr()
}

// Stmt is the interface for all statement nodes
type Stmt interface {
	Node
	implStmt()
}

// Decl is the interface for top-level declarations
type Decl interface {
	Node
	implDecl()
}

// Modifier is a type modifier keyword attached to a base type
type Modifier int

const (
	ModSigned Modifier = iota
	ModUnsigned
	ModShort
	ModLong
)

func (m Modifier) String() string {
	names := []string{"signed", "unsigned", "short", "long"}
	if int(m) < len(names) {
		return names[m]
	}
	return "?"
}

// TypeSpec is an unresolved type reference as written in source:
// a base name plus modifiers, pointer depth, and optional array length.
// Base may be empty when modifiers alone name the type ("unsigned long").
type TypeSpec struct {
	Base     string // "int", "char", "void", "bool", "intptr_t", typedef or tag name
	Mods     []Modifier
	PtrDepth int
	ArrayLen int64 // -1 when not an array
	Pos      diag.Pos
}

// BinaryOp represents binary operators, including assignment forms
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpLt
	OpLe
	OpGt
	OpGe
	OpEq
	OpNe
	OpAnd // &&
	OpOr  // ||
	OpBitAnd
	OpBitOr
	OpBitXor
	OpShl
	OpShr
	OpAssign
	OpAddAssign
	OpSubAssign
	OpMulAssign
	OpDivAssign
	OpComma
)

func (op BinaryOp) String() string {
	names := []string{"+", "-", "*", "/", "%", "<", "<=", ">", ">=", "==", "!=",
		"&&", "||", "&", "|", "^", "<<", ">>", "=", "+=", "-=", "*=", "/=", ","}
	if int(op) < len(names) {
		return names[op]
	}
	return "?"
}

// UnaryOp represents unary operators
type UnaryOp int

const (
	OpNeg     UnaryOp = iota // -
	OpNot                    // !
	OpBitNot                 // ~
	OpAddr                   // &
	OpDeref                  // *
	OpPreInc                 // ++x
	OpPreDec                 // --x
	OpPostInc                // x++
	OpPostDec                // x--
)

func (op UnaryOp) String() string {
	names := []string{"-", "!", "~", "&", "*", "++", "--", "++", "--"}
	if int(op) < len(names) {
		return names[op]
	}
	return "?"
}

// --- Expressions ---

// IntLit is an integer constant
type IntLit struct {
	Value int64
}

// CharLit is a character constant; Value holds the source spelling
// including any escape (e.g. `\n`).
type CharLit struct {
	Value string
}

// StringLit is a string constant (unescaped source spelling)
type StringLit struct {
	Value string
}

// BoolLit is true or false
type BoolLit struct {
	Value bool
}

// Ident is an identifier expression
type Ident struct {
	Name string
	Pos  diag.Pos
}

// Unary is a unary expression
type Unary struct {
	Op   UnaryOp
	Expr Expr
}

// Binary is a binary expression
type Binary struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

// Paren is a parenthesized expression
type Paren struct {
	Expr Expr
}

// Conditional is cond ? then : else
type Conditional struct {
	Cond Expr
	Then Expr
	Else Expr
}

// Call is a function call
type Call struct {
	Func Expr
	Args []Expr
	Pos  diag.Pos
}

// Index is array subscript access arr[idx]
type Index struct {
	Array Expr
	Index Expr
}

// Member is field access: x.name or p->name
type Member struct {
	Expr  Expr
	Name  string
	Arrow bool
	Pos   diag.Pos
}

// Cast is (Type)expr
type Cast struct {
	Type TypeSpec
	Expr Expr
}

// SizeofType is sizeof(Type)
type SizeofType struct {
	Type TypeSpec
}

// SizeofExpr is sizeof expr
type SizeofExpr struct {
	Expr Expr
}

// StmtExpr is a GNU statement expression ({ stmts; value; }).
// The trailing value is the last item when it is an expression statement;
// lowering rejects the node otherwise (MissingTrailingExpression).
type StmtExpr struct {
	Stmts []Stmt
	Pos   diag.Pos
}

// FieldInit is one entry of a compound literal initializer list.
// An empty Name marks a positional initializer.
type FieldInit struct {
	Name  string
	Value Expr
	Pos   diag.Pos
}

// CompoundLiteral is (Type){ .f = e, ... }
type CompoundLiteral struct {
	Type  TypeSpec
	Inits []FieldInit
	Pos   diag.Pos
}

// --- Statements ---

// ExprStmt is an expression used as a statement
type ExprStmt struct {
	Expr Expr
}

// DeclStmt is a local variable declaration with an optional initializer
type DeclStmt struct {
	Type TypeSpec
	Name string
	Init Expr // nil when absent
	Pos  diag.Pos
}

// Return is a return statement
type Return struct {
	Expr Expr // nil for bare return
}

// If is an if/else statement; Else is nil, *Block, or *If
type If struct {
	Cond Expr
	Then *Block
	Else Stmt
}

// While is a while loop
type While struct {
	Cond Expr
	Body *Block
}

// For is a for loop; any of Init/Cond/Post may be nil
type For struct {
	Init Stmt
	Cond Expr
	Post Expr
	Body *Block
}

// Break is a break statement
type Break struct{}

// Continue is a continue statement
type Continue struct{}

// Block is a compound statement
type Block struct {
	Items []Stmt
}

// --- Declarations ---

// Param is a function parameter
type Param struct {
	Type TypeSpec
	Name string
}

// FunDef is a function definition
type FunDef struct {
	ReturnType TypeSpec
	Name       string
	Params     []Param
	Body       *Block
	Pos        diag.Pos
}

// ExternFun declares an external function with an opaque signature
// (printf, malloc, ...). No body is ever attached.
type ExternFun struct {
	ReturnType TypeSpec
	Name       string
	Params     []Param
	Variadic   bool
	Pos        diag.Pos
}

// FieldDecl is one field of a struct or union. When Inline is non-nil the
// field's type is the inline (anonymous) aggregate and TypeSpec is unused.
type FieldDecl struct {
	Type   TypeSpec
	Name   string
	Inline *AggregateDecl
	Pos    diag.Pos
}

// AggregateDecl declares a struct or union type
type AggregateDecl struct {
	Name    string // tag or typedef name; empty for anonymous inline use
	IsUnion bool
	Fields  []FieldDecl
	Pos     diag.Pos
}

// EnumMember is one enumerator, with an optional explicit value
type EnumMember struct {
	Name     string
	HasValue bool
	Value    int64
}

// EnumDecl declares an enum type
type EnumDecl struct {
	Name    string
	Members []EnumMember
	Pos     diag.Pos
}

// Typedef binds a name to a type. Exactly one of Spec, Aggregate, Enum
// describes the aliased type (typedef struct {...} Name; is the common form).
type Typedef struct {
	Name      string
	Spec      *TypeSpec
	Aggregate *AggregateDecl
	Enum      *EnumDecl
	Pos       diag.Pos
}

// Program is one translation unit
type Program struct {
	Decls []Decl
}

// Marker methods for interface implementation
func (IntLit) implNode()    {}
func (IntLit) implExpr()    {}
func (CharLit) implNode()   {}
func (CharLit) implExpr()   {}
func (StringLit) implNode() {}
func (StringLit) implExpr() {}
func (BoolLit) implNode()   {}
func (BoolLit) implExpr()   {}
func (Ident) implNode()     {}
func (Ident) implExpr()     {}
func (Unary) implNode()     {}
func (Unary) implExpr()     {}
func (Binary) implNode()    {}
func (Binary) implExpr()    {}
func (Paren) implNode()     {}
func (Paren) implExpr()     {}

func (Conditional) implNode() {}
func (Conditional) implExpr() {}
func (Call) implNode()        {}
func (Call) implExpr()        {}
func (Index) implNode()       {}
func (Index) implExpr()       {}
func (Member) implNode()      {}
func (Member) implExpr()      {}
func (Cast) implNode()        {}
func (Cast) implExpr()        {}
func (SizeofType) implNode()  {}
func (SizeofType) implExpr()  {}
func (SizeofExpr) implNode()  {}
func (SizeofExpr) implExpr()  {}

func (StmtExpr) implNode()        {}
func (StmtExpr) implExpr()        {}
func (CompoundLiteral) implNode() {}
func (CompoundLiteral) implExpr() {}

func (ExprStmt) implNode() {}
func (ExprStmt) implStmt() {}
func (DeclStmt) implNode() {}
func (DeclStmt) implStmt() {}
func (Return) implNode()   {}
func (Return) implStmt()   {}
func (If) implNode()       {}
func (If) implStmt()       {}
func (While) implNode()    {}
func (While) implStmt()    {}
func (For) implNode()      {}
func (For) implStmt()      {}
func (Break) implNode()    {}
func (Break) implStmt()    {}
func (Continue) implNode() {}
func (Continue) implStmt() {}
func (Block) implNode()    {}
func (Block) implStmt()    {}

func (FunDef) implNode()        {}
func (FunDef) implDecl()        {}
func (ExternFun) implNode()     {}
func (ExternFun) implDecl()     {}
func (AggregateDecl) implNode() {}
func (AggregateDecl) implDecl() {}
func (EnumDecl) implNode()      {}
func (EnumDecl) implDecl()      {}
func (Typedef) implNode()       {}
func (Typedef) implDecl()       {}
