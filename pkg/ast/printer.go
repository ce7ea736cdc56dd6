// Package ast provides AST printing for the -dparse dump
package ast

import (
	"fmt"
	"io"
	"strings"
)

// String renders a TypeSpec the way it was written in source.
func (ts TypeSpec) String() string {
	var sb strings.Builder
	for _, m := range ts.Mods {
		sb.WriteString(m.String())
		sb.WriteByte(' ')
	}
	if ts.Base != "" {
		sb.WriteString(ts.Base)
	} else if len(ts.Mods) > 0 {
		// Modifier-only spec ("unsigned long"); trim the trailing space.
		return strings.TrimSuffix(sb.String(), " ")
	}
	sb.WriteString(strings.Repeat("*", ts.PtrDepth))
	return sb.String()
}

// Printer outputs the AST in a human-readable, source-like format
type Printer struct {
	w      io.Writer
	indent int
}

// NewPrinter creates a new AST printer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, indent: 0}
}

// PrintProgram prints a complete program
func (p *Printer) PrintProgram(prog *Program) {
	for _, decl := range prog.Decls {
		p.printDecl(decl)
		fmt.Fprintln(p.w)
	}
}

func (p *Printer) writeIndent() {
	fmt.Fprint(p.w, strings.Repeat("  ", p.indent))
}

func (p *Printer) printDecl(decl Decl) {
	switch d := decl.(type) {
	case FunDef:
		p.printFunDef(d)
	case ExternFun:
		p.printExternFun(d)
	case AggregateDecl:
		p.printAggregate(d, "")
		fmt.Fprintln(p.w, ";")
	case EnumDecl:
		p.printEnum(d, "")
		fmt.Fprintln(p.w, ";")
	case Typedef:
		p.printTypedef(d)
	default:
		fmt.Fprintf(p.w, "/* unknown declaration %T */\n", decl)
	}
}

func (p *Printer) printFunDef(f FunDef) {
	fmt.Fprintf(p.w, "%s %s(", f.ReturnType, f.Name)
	p.printParams(f.Params, false)
	fmt.Fprintln(p.w, ")")
	p.printBlock(f.Body)
}

func (p *Printer) printExternFun(f ExternFun) {
	fmt.Fprintf(p.w, "extern %s %s(", f.ReturnType, f.Name)
	p.printParams(f.Params, f.Variadic)
	fmt.Fprintln(p.w, ");")
}

func (p *Printer) printParams(params []Param, variadic bool) {
	for i, param := range params {
		if i > 0 {
			fmt.Fprint(p.w, ", ")
		}
		if param.Name == "" {
			fmt.Fprintf(p.w, "%s", param.Type)
		} else {
			fmt.Fprintf(p.w, "%s %s", param.Type, param.Name)
		}
	}
	if variadic {
		if len(params) > 0 {
			fmt.Fprint(p.w, ", ")
		}
		fmt.Fprint(p.w, "...")
	}
}

func (p *Printer) printAggregate(a AggregateDecl, typedefName string) {
	kw := "struct"
	if a.IsUnion {
		kw = "union"
	}
	if typedefName != "" {
		fmt.Fprintf(p.w, "typedef %s {\n", kw)
	} else if a.Name != "" {
		fmt.Fprintf(p.w, "%s %s {\n", kw, a.Name)
	} else {
		fmt.Fprintf(p.w, "%s {\n", kw)
	}
	p.indent++
	for _, field := range a.Fields {
		p.writeIndent()
		if field.Inline != nil {
			p.printAggregate(*field.Inline, "")
			fmt.Fprintf(p.w, " %s;\n", field.Name)
		} else if field.Type.ArrayLen >= 0 {
			fmt.Fprintf(p.w, "%s %s[%d];\n", field.Type, field.Name, field.Type.ArrayLen)
		} else {
			fmt.Fprintf(p.w, "%s %s;\n", field.Type, field.Name)
		}
	}
	p.indent--
	p.writeIndent()
	if typedefName != "" {
		fmt.Fprintf(p.w, "} %s", typedefName)
	} else {
		fmt.Fprint(p.w, "}")
	}
}

func (p *Printer) printEnum(e EnumDecl, typedefName string) {
	if typedefName != "" {
		fmt.Fprint(p.w, "typedef enum {\n")
	} else if e.Name != "" {
		fmt.Fprintf(p.w, "enum %s {\n", e.Name)
	} else {
		fmt.Fprint(p.w, "enum {\n")
	}
	p.indent++
	for i, m := range e.Members {
		p.writeIndent()
		if m.HasValue {
			fmt.Fprintf(p.w, "%s = %d", m.Name, m.Value)
		} else {
			fmt.Fprint(p.w, m.Name)
		}
		if i < len(e.Members)-1 {
			fmt.Fprint(p.w, ",")
		}
		fmt.Fprintln(p.w)
	}
	p.indent--
	p.writeIndent()
	if typedefName != "" {
		fmt.Fprintf(p.w, "} %s", typedefName)
	} else {
		fmt.Fprint(p.w, "}")
	}
}

func (p *Printer) printTypedef(t Typedef) {
	switch {
	case t.Aggregate != nil:
		p.printAggregate(*t.Aggregate, t.Name)
		fmt.Fprintln(p.w, ";")
	case t.Enum != nil:
		p.printEnum(*t.Enum, t.Name)
		fmt.Fprintln(p.w, ";")
	case t.Spec != nil:
		fmt.Fprintf(p.w, "typedef %s %s;\n", *t.Spec, t.Name)
	}
}

func (p *Printer) printBlock(b *Block) {
	p.writeIndent()
	fmt.Fprintln(p.w, "{")
	p.indent++
	for _, item := range b.Items {
		p.printStmt(item)
	}
	p.indent--
	p.writeIndent()
	fmt.Fprintln(p.w, "}")
}

// PrintStmt prints a single statement at the current indent
func (p *Printer) printStmt(stmt Stmt) {
	switch s := stmt.(type) {
	case ExprStmt:
		p.writeIndent()
		p.printExpr(s.Expr)
		fmt.Fprintln(p.w, ";")
	case DeclStmt:
		p.writeIndent()
		fmt.Fprintf(p.w, "%s %s", s.Type, s.Name)
		if s.Init != nil {
			fmt.Fprint(p.w, " = ")
			p.printExpr(s.Init)
		}
		fmt.Fprintln(p.w, ";")
	case Return:
		p.writeIndent()
		if s.Expr == nil {
			fmt.Fprintln(p.w, "return;")
		} else {
			fmt.Fprint(p.w, "return ")
			p.printExpr(s.Expr)
			fmt.Fprintln(p.w, ";")
		}
	case If:
		p.writeIndent()
		fmt.Fprint(p.w, "if (")
		p.printExpr(s.Cond)
		fmt.Fprintln(p.w, ")")
		p.printBlock(s.Then)
		if s.Else != nil {
			p.writeIndent()
			fmt.Fprintln(p.w, "else")
			p.printStmt(s.Else)
		}
	case While:
		p.writeIndent()
		fmt.Fprint(p.w, "while (")
		p.printExpr(s.Cond)
		fmt.Fprintln(p.w, ")")
		p.printBlock(s.Body)
	case For:
		p.writeIndent()
		fmt.Fprint(p.w, "for (")
		if d, ok := s.Init.(DeclStmt); ok {
			fmt.Fprintf(p.w, "%s %s", d.Type, d.Name)
			if d.Init != nil {
				fmt.Fprint(p.w, " = ")
				p.printExpr(d.Init)
			}
		} else if e, ok := s.Init.(ExprStmt); ok {
			p.printExpr(e.Expr)
		}
		fmt.Fprint(p.w, "; ")
		if s.Cond != nil {
			p.printExpr(s.Cond)
		}
		fmt.Fprint(p.w, "; ")
		if s.Post != nil {
			p.printExpr(s.Post)
		}
		fmt.Fprintln(p.w, ")")
		p.printBlock(s.Body)
	case Break:
		p.writeIndent()
		fmt.Fprintln(p.w, "break;")
	case Continue:
		p.writeIndent()
		fmt.Fprintln(p.w, "continue;")
	case *Block:
		p.printBlock(s)
	case Block:
		p.printBlock(&s)
	default:
		p.writeIndent()
		fmt.Fprintf(p.w, "/* unknown statement %T */\n", stmt)
	}
}

// printExpr prints an expression
func (p *Printer) printExpr(expr Expr) {
	switch e := expr.(type) {
	case IntLit:
		fmt.Fprintf(p.w, "%d", e.Value)
	case CharLit:
		fmt.Fprintf(p.w, "'%s'", e.Value)
	case StringLit:
		fmt.Fprintf(p.w, "%q", e.Value)
	case BoolLit:
		fmt.Fprintf(p.w, "%t", e.Value)
	case Ident:
		fmt.Fprint(p.w, e.Name)
	case Unary:
		switch e.Op {
		case OpPostInc, OpPostDec:
			p.printExpr(e.Expr)
			fmt.Fprint(p.w, e.Op)
		default:
			fmt.Fprint(p.w, e.Op)
			p.printExpr(e.Expr)
		}
	case Binary:
		p.printExpr(e.Left)
		fmt.Fprintf(p.w, " %s ", e.Op)
		p.printExpr(e.Right)
	case Paren:
		fmt.Fprint(p.w, "(")
		p.printExpr(e.Expr)
		fmt.Fprint(p.w, ")")
	case Conditional:
		p.printExpr(e.Cond)
		fmt.Fprint(p.w, " ? ")
		p.printExpr(e.Then)
		fmt.Fprint(p.w, " : ")
		p.printExpr(e.Else)
	case Call:
		p.printExpr(e.Func)
		fmt.Fprint(p.w, "(")
		for i, arg := range e.Args {
			if i > 0 {
				fmt.Fprint(p.w, ", ")
			}
			p.printExpr(arg)
		}
		fmt.Fprint(p.w, ")")
	case Index:
		p.printExpr(e.Array)
		fmt.Fprint(p.w, "[")
		p.printExpr(e.Index)
		fmt.Fprint(p.w, "]")
	case Member:
		p.printExpr(e.Expr)
		if e.Arrow {
			fmt.Fprint(p.w, "->")
		} else {
			fmt.Fprint(p.w, ".")
		}
		fmt.Fprint(p.w, e.Name)
	case Cast:
		fmt.Fprintf(p.w, "(%s)", e.Type)
		p.printExpr(e.Expr)
	case SizeofType:
		fmt.Fprintf(p.w, "sizeof(%s)", e.Type)
	case SizeofExpr:
		fmt.Fprint(p.w, "sizeof ")
		p.printExpr(e.Expr)
	case StmtExpr:
		fmt.Fprintln(p.w, "({")
		p.indent++
		for _, s := range e.Stmts {
			p.printStmt(s)
		}
		p.indent--
		p.writeIndent()
		fmt.Fprint(p.w, "})")
	case CompoundLiteral:
		fmt.Fprintf(p.w, "(%s){", e.Type)
		for i, init := range e.Inits {
			if i > 0 {
				fmt.Fprint(p.w, ", ")
			}
			if init.Name != "" {
				fmt.Fprintf(p.w, ".%s = ", init.Name)
			}
			p.printExpr(init.Value)
		}
		fmt.Fprint(p.w, "}")
	default:
		fmt.Fprintf(p.w, "/* unknown expression %T */", expr)
	}
}
