package sea

import (
	"fmt"
	"io"
	"strings"

	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/runtime"
	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/seatypes"
)

// Printer renders a lowered, instrumented program as one self-contained C
// translation unit. No semantic transformation happens here; anything the
// printer cannot render is an internal-invariant violation upstream.
type Printer struct {
	w       io.Writer
	indent  int
	emitted map[string]bool // aggregate names declared in this unit
}

// NewPrinter creates a new program printer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, emitted: make(map[string]bool)}
}

// PrintProgram prints a complete translation unit
func (p *Printer) PrintProgram(prog *Program) {
	fmt.Fprintln(p.w, "#include <stdio.h>")
	fmt.Fprintln(p.w, "#include <stdlib.h>")
	fmt.Fprintln(p.w, "#include <stdint.h>")
	fmt.Fprintln(p.w, "#include <stdbool.h>")
	fmt.Fprintln(p.w)

	if prog.UsesRuntime {
		fmt.Fprint(p.w, runtime.Prelude)
		fmt.Fprintln(p.w)
		p.emitted["AhoyArray"] = true
	}

	for _, a := range prog.Aggregates {
		p.emitted[a.Name] = true
	}

	for _, e := range prog.Enums {
		p.printEnum(e)
		fmt.Fprintln(p.w)
	}
	for _, a := range prog.Aggregates {
		p.printAggregate(a)
		fmt.Fprintln(p.w)
	}
	for _, ext := range prog.Externs {
		p.printExtern(ext)
	}
	if len(prog.Externs) > 0 {
		fmt.Fprintln(p.w)
	}
	for i, fn := range prog.Funcs {
		p.printFunction(&fn)
		if i < len(prog.Funcs)-1 {
			fmt.Fprintln(p.w)
		}
	}
}

func (p *Printer) printEnum(e EnumDef) {
	fmt.Fprintln(p.w, "typedef enum {")
	for i, m := range e.Members {
		if m.HasValue {
			fmt.Fprintf(p.w, "    %s = %d", m.Name, m.Value)
		} else {
			fmt.Fprintf(p.w, "    %s", m.Name)
		}
		if i < len(e.Members)-1 {
			fmt.Fprint(p.w, ",")
		}
		fmt.Fprintln(p.w)
	}
	fmt.Fprintf(p.w, "} %s;\n", e.Name)
}

func (p *Printer) printAggregate(a AggDecl) {
	kw := "struct"
	if a.Union {
		kw = "union"
	}
	fmt.Fprintf(p.w, "typedef %s {\n", kw)
	p.printFields(a.Fields, 1)
	fmt.Fprintf(p.w, "} %s;\n", a.Name)
}

func (p *Printer) printFields(fields []seatypes.Field, depth int) {
	pad := strings.Repeat("    ", depth)
	for _, f := range fields {
		switch ft := f.Type.(type) {
		case seatypes.Tstruct:
			if p.emitted[ft.Name] {
				fmt.Fprintf(p.w, "%s%s %s;\n", pad, ft.Name, f.Name)
				continue
			}
			fmt.Fprintf(p.w, "%sstruct {\n", pad)
			p.printFields(ft.Fields, depth+1)
			fmt.Fprintf(p.w, "%s} %s;\n", pad, f.Name)
		case seatypes.Tunion:
			if p.emitted[ft.Name] {
				fmt.Fprintf(p.w, "%s%s %s;\n", pad, ft.Name, f.Name)
				continue
			}
			fmt.Fprintf(p.w, "%sunion {\n", pad)
			p.printFields(ft.Fields, depth+1)
			fmt.Fprintf(p.w, "%s} %s;\n", pad, f.Name)
		default:
			fmt.Fprintf(p.w, "%s%s;\n", pad, cdecl(f.Type, f.Name))
		}
	}
}

func (p *Printer) printExtern(ext ExternDecl) {
	fmt.Fprintf(p.w, "%s %s(", ext.Sig.Return, ext.Name)
	for i, t := range ext.Sig.Params {
		if i > 0 {
			fmt.Fprint(p.w, ", ")
		}
		fmt.Fprint(p.w, t)
	}
	if ext.Sig.Variadic {
		if len(ext.Sig.Params) > 0 {
			fmt.Fprint(p.w, ", ")
		}
		fmt.Fprint(p.w, "...")
	}
	fmt.Fprintln(p.w, ");")
}

func (p *Printer) printFunction(fn *Function) {
	fmt.Fprintf(p.w, "%s %s(", fn.Return, fn.Name)
	if len(fn.Params) == 0 {
		fmt.Fprint(p.w, "void")
	}
	for i, param := range fn.Params {
		if i > 0 {
			fmt.Fprint(p.w, ", ")
		}
		fmt.Fprint(p.w, cdecl(param.Typ, param.Name))
	}
	fmt.Fprintln(p.w, ") {")
	p.indent++
	for _, s := range fn.Body {
		p.printStmt(s)
	}
	p.indent--
	fmt.Fprintln(p.w, "}")
}

// cdecl renders a C declarator for a (type, name) pair.
func cdecl(t seatypes.Type, name string) string {
	if arr, ok := t.(seatypes.Tarray); ok {
		return fmt.Sprintf("%s %s[%d]", arr.Elem, name, arr.Len)
	}
	return fmt.Sprintf("%s %s", t, name)
}

func (p *Printer) writeIndent() {
	fmt.Fprint(p.w, strings.Repeat("    ", p.indent))
}

func (p *Printer) printStmt(stmt Stmt) {
	switch s := stmt.(type) {
	case Decl:
		p.writeIndent()
		fmt.Fprint(p.w, cdecl(s.Typ, s.Name))
		if s.Init != nil {
			fmt.Fprint(p.w, " = ")
			p.printExpr(s.Init)
		}
		fmt.Fprintln(p.w, ";")

	case Assign:
		p.writeIndent()
		p.printExpr(s.LHS)
		fmt.Fprint(p.w, " = ")
		p.printExpr(s.RHS)
		fmt.Fprintln(p.w, ";")

	case Call:
		p.writeIndent()
		if s.Dst != nil {
			p.printExpr(s.Dst)
			fmt.Fprint(p.w, " = ")
		}
		fmt.Fprintf(p.w, "%s(", s.Fn)
		for i, arg := range s.Args {
			if i > 0 {
				fmt.Fprint(p.w, ", ")
			}
			p.printExpr(arg)
		}
		fmt.Fprintln(p.w, ");")

	case RefInit:
		p.writeIndent()
		p.printExpr(s.Ptr)
		fmt.Fprintf(p.w, "->%s = 1;\n", seatypes.RefcountField)

	case Retain:
		p.writeIndent()
		fmt.Fprint(p.w, "ahoy_retain(")
		p.printExpr(s.Ptr)
		fmt.Fprintln(p.w, ");")

	case Release:
		p.writeIndent()
		fmt.Fprint(p.w, "ahoy_release(")
		p.printExpr(s.Ptr)
		fmt.Fprintln(p.w, ");")

	case Return:
		p.writeIndent()
		if s.E == nil {
			fmt.Fprintln(p.w, "return;")
		} else {
			fmt.Fprint(p.w, "return ")
			p.printExpr(s.E)
			fmt.Fprintln(p.w, ";")
		}

	case If:
		p.writeIndent()
		fmt.Fprint(p.w, "if (")
		p.printExpr(s.Cond)
		fmt.Fprintln(p.w, ") {")
		p.indent++
		for _, t := range s.Then {
			p.printStmt(t)
		}
		p.indent--
		p.writeIndent()
		if len(s.Else) == 0 {
			fmt.Fprintln(p.w, "}")
			return
		}
		fmt.Fprintln(p.w, "} else {")
		p.indent++
		for _, e := range s.Else {
			p.printStmt(e)
		}
		p.indent--
		p.writeIndent()
		fmt.Fprintln(p.w, "}")

	case While:
		p.writeIndent()
		fmt.Fprint(p.w, "while (")
		p.printExpr(s.Cond)
		fmt.Fprintln(p.w, ") {")
		p.indent++
		for _, b := range s.Body {
			p.printStmt(b)
		}
		p.indent--
		p.writeIndent()
		fmt.Fprintln(p.w, "}")

	case For:
		p.writeIndent()
		fmt.Fprint(p.w, "for (")
		p.printInlineStmt(s.Init)
		fmt.Fprint(p.w, "; ")
		if s.Cond != nil {
			p.printExpr(s.Cond)
		}
		fmt.Fprint(p.w, "; ")
		p.printInlineStmt(s.Post)
		fmt.Fprintln(p.w, ") {")
		p.indent++
		for _, b := range s.Body {
			p.printStmt(b)
		}
		p.indent--
		p.writeIndent()
		fmt.Fprintln(p.w, "}")

	case Block:
		p.writeIndent()
		fmt.Fprintln(p.w, "{")
		p.indent++
		for _, b := range s.Body {
			p.printStmt(b)
		}
		p.indent--
		p.writeIndent()
		fmt.Fprintln(p.w, "}")

	case Break:
		p.writeIndent()
		fmt.Fprintln(p.w, "break;")

	case Continue:
		p.writeIndent()
		fmt.Fprintln(p.w, "continue;")

	default:
		p.writeIndent()
		fmt.Fprintf(p.w, "/* unknown statement %T */\n", stmt)
	}
}

// printInlineStmt prints a statement without indent or trailing
// semicolon/newline, for use inside for-headers.
func (p *Printer) printInlineStmt(stmt Stmt) {
	switch s := stmt.(type) {
	case nil:
	case Decl:
		fmt.Fprint(p.w, cdecl(s.Typ, s.Name))
		if s.Init != nil {
			fmt.Fprint(p.w, " = ")
			p.printExpr(s.Init)
		}
	case Assign:
		p.printExpr(s.LHS)
		fmt.Fprint(p.w, " = ")
		p.printExpr(s.RHS)
	case Call:
		if s.Dst != nil {
			p.printExpr(s.Dst)
			fmt.Fprint(p.w, " = ")
		}
		fmt.Fprintf(p.w, "%s(", s.Fn)
		for i, arg := range s.Args {
			if i > 0 {
				fmt.Fprint(p.w, ", ")
			}
			p.printExpr(arg)
		}
		fmt.Fprint(p.w, ")")
	}
}

func (p *Printer) printExpr(expr Expr) {
	switch e := expr.(type) {
	case ConstInt:
		fmt.Fprintf(p.w, "%d", e.Value)
	case ConstBool:
		fmt.Fprintf(p.w, "%t", e.Value)
	case ConstChar:
		fmt.Fprintf(p.w, "'%s'", e.Value)
	case ConstStr:
		fmt.Fprintf(p.w, "\"%s\"", e.Value)
	case Var:
		fmt.Fprint(p.w, e.Name)
	case Unop:
		fmt.Fprint(p.w, e.Op)
		p.printOperand(e.X)
	case Binop:
		p.printOperand(e.L)
		fmt.Fprintf(p.w, " %s ", e.Op)
		p.printOperand(e.R)
	case Member:
		p.printOperand(e.X)
		if e.Arrow {
			fmt.Fprint(p.w, "->")
		} else {
			fmt.Fprint(p.w, ".")
		}
		fmt.Fprint(p.w, e.Name)
	case Index:
		p.printOperand(e.Arr)
		fmt.Fprint(p.w, "[")
		p.printExpr(e.Idx)
		fmt.Fprint(p.w, "]")
	case Addr:
		fmt.Fprint(p.w, "&")
		p.printOperand(e.X)
	case Deref:
		fmt.Fprint(p.w, "*")
		p.printOperand(e.X)
	case Cast:
		fmt.Fprintf(p.w, "(%s)", e.Typ)
		p.printOperand(e.X)
	case SizeofT:
		fmt.Fprintf(p.w, "sizeof(%s)", e.T)
	case Cond:
		p.printOperand(e.C)
		fmt.Fprint(p.w, " ? ")
		p.printOperand(e.T)
		fmt.Fprint(p.w, " : ")
		p.printOperand(e.F)
	default:
		fmt.Fprintf(p.w, "/* unknown expression %T */", expr)
	}
}

// printOperand parenthesizes subexpressions that would otherwise bind
// wrong under a tighter postfix or binary operator.
func (p *Printer) printOperand(e Expr) {
	switch e.(type) {
	case Binop, Cond, Cast, Unop, Deref, Addr:
		fmt.Fprint(p.w, "(")
		p.printExpr(e)
		fmt.Fprint(p.w, ")")
	default:
		p.printExpr(e)
	}
}
