// Package parser implements a recursive descent parser for the sea dialect.
// It produces either a complete surface AST or exactly one SyntaxError
// diagnostic; no partial AST is handed downstream.
package parser

import (
	"strconv"

	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/ast"
	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/diag"
	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/lexer"
)

// Parser parses sea source code into an ast.Program
type Parser struct {
	l         *lexer.Lexer
	curToken  lexer.Token
	peekToken lexer.Token
	typedefs  map[string]bool // typedef names in scope
	err       *diag.Diagnostic
}

// New creates a new Parser for the given lexer
func New(l *lexer.Lexer) *Parser {
	p := &Parser{
		l:        l,
		typedefs: make(map[string]bool),
	}
	// Read two tokens to initialize curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) pos() diag.Pos {
	return diag.Pos{Line: p.curToken.Line, Column: p.curToken.Column}
}

// fail records the first syntax error; later parsing is abandoned.
func (p *Parser) fail(format string, args ...interface{}) {
	if p.err == nil {
		p.err = diag.New(diag.SyntaxError, p.pos(), format, args...)
	}
}

func (p *Parser) failed() bool {
	return p.err != nil
}

func (p *Parser) curTokenIs(t lexer.TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t lexer.TokenType) bool {
	return p.peekToken.Type == t
}

// expect consumes the current token if it has the given type, or fails.
func (p *Parser) expect(t lexer.TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.fail("expected %s, got %s", t, p.curToken.Type)
	return false
}

// ParseProgram parses a whole translation unit.
func (p *Parser) ParseProgram() (*ast.Program, *diag.Diagnostic) {
	prog := &ast.Program{}
	for !p.curTokenIs(lexer.TokenEOF) && !p.failed() {
		decl := p.parseDecl()
		if p.failed() {
			return nil, p.err
		}
		if decl != nil {
			prog.Decls = append(prog.Decls, decl)
		}
	}
	if p.failed() {
		return nil, p.err
	}
	return prog, nil
}

// --- Declarations ---

func (p *Parser) parseDecl() ast.Decl {
	switch p.curToken.Type {
	case lexer.TokenTypedef:
		return p.parseTypedef()
	case lexer.TokenStruct, lexer.TokenUnion:
		if p.peekTokenIs(lexer.TokenIdent) {
			return p.parseTaggedAggregate()
		}
		p.fail("expected tag name after %s", p.curToken.Type)
		return nil
	case lexer.TokenEnum:
		if p.peekTokenIs(lexer.TokenIdent) {
			return p.parseTaggedEnum()
		}
		p.fail("expected tag name after enum")
		return nil
	case lexer.TokenExtern:
		p.nextToken()
		return p.parseFunction()
	default:
		if p.isTypeStart() {
			return p.parseFunction()
		}
		p.fail("expected declaration, got %s", p.curToken.Type)
		return nil
	}
}

func (p *Parser) parseTypedef() ast.Decl {
	pos := p.pos()
	p.nextToken() // consume 'typedef'

	switch p.curToken.Type {
	case lexer.TokenStruct, lexer.TokenUnion:
		isUnion := p.curTokenIs(lexer.TokenUnion)
		p.nextToken()
		tag := ""
		if p.curTokenIs(lexer.TokenIdent) {
			tag = p.curToken.Literal
			p.nextToken()
		}
		agg := p.parseAggregateBody(tag, isUnion, pos)
		if p.failed() {
			return nil
		}
		if !p.curTokenIs(lexer.TokenIdent) {
			p.fail("expected typedef name, got %s", p.curToken.Type)
			return nil
		}
		name := p.curToken.Literal
		p.nextToken()
		p.expect(lexer.TokenSemicolon)
		p.typedefs[name] = true
		return ast.Typedef{Name: name, Aggregate: agg, Pos: pos}

	case lexer.TokenEnum:
		p.nextToken()
		tag := ""
		if p.curTokenIs(lexer.TokenIdent) {
			tag = p.curToken.Literal
			p.nextToken()
		}
		enum := p.parseEnumBody(tag, pos)
		if p.failed() {
			return nil
		}
		if !p.curTokenIs(lexer.TokenIdent) {
			p.fail("expected typedef name, got %s", p.curToken.Type)
			return nil
		}
		name := p.curToken.Literal
		p.nextToken()
		p.expect(lexer.TokenSemicolon)
		p.typedefs[name] = true
		return ast.Typedef{Name: name, Enum: enum, Pos: pos}

	default:
		spec := p.parseTypeSpec()
		if p.failed() {
			return nil
		}
		if !p.curTokenIs(lexer.TokenIdent) {
			p.fail("expected typedef name, got %s", p.curToken.Type)
			return nil
		}
		name := p.curToken.Literal
		p.nextToken()
		p.expect(lexer.TokenSemicolon)
		p.typedefs[name] = true
		return ast.Typedef{Name: name, Spec: &spec, Pos: pos}
	}
}

func (p *Parser) parseTaggedAggregate() ast.Decl {
	pos := p.pos()
	isUnion := p.curTokenIs(lexer.TokenUnion)
	p.nextToken()
	tag := p.curToken.Literal
	p.nextToken()
	agg := p.parseAggregateBody(tag, isUnion, pos)
	if p.failed() {
		return nil
	}
	p.expect(lexer.TokenSemicolon)
	return *agg
}

func (p *Parser) parseTaggedEnum() ast.Decl {
	pos := p.pos()
	p.nextToken()
	tag := p.curToken.Literal
	p.nextToken()
	enum := p.parseEnumBody(tag, pos)
	if p.failed() {
		return nil
	}
	p.expect(lexer.TokenSemicolon)
	return *enum
}

// parseAggregateBody parses "{ field... }" of a struct or union.
func (p *Parser) parseAggregateBody(name string, isUnion bool, pos diag.Pos) *ast.AggregateDecl {
	if !p.expect(lexer.TokenLBrace) {
		return nil
	}
	agg := &ast.AggregateDecl{Name: name, IsUnion: isUnion, Pos: pos}
	for !p.curTokenIs(lexer.TokenRBrace) && !p.curTokenIs(lexer.TokenEOF) && !p.failed() {
		p.parseFieldDecl(agg)
	}
	p.expect(lexer.TokenRBrace)
	return agg
}

// parseFieldDecl parses one field line, possibly with multiple declarators
// (int r, g, b;) or an inline struct/union member (anonymous or tagged).
func (p *Parser) parseFieldDecl(agg *ast.AggregateDecl) {
	fieldPos := p.pos()
	var spec ast.TypeSpec

	if p.curTokenIs(lexer.TokenUnion) || p.curTokenIs(lexer.TokenStruct) {
		isUnion := p.curTokenIs(lexer.TokenUnion)
		p.nextToken()
		tag := ""
		if p.curTokenIs(lexer.TokenIdent) {
			tag = p.curToken.Literal
			p.nextToken()
		}
		if p.curTokenIs(lexer.TokenLBrace) {
			// Inline definition: union [Tag] { ... } name;
			inline := p.parseAggregateBody(tag, isUnion, fieldPos)
			if p.failed() {
				return
			}
			if !p.curTokenIs(lexer.TokenIdent) {
				p.fail("expected member name after inline aggregate")
				return
			}
			name := p.curToken.Literal
			p.nextToken()
			p.expect(lexer.TokenSemicolon)
			agg.Fields = append(agg.Fields, ast.FieldDecl{Name: name, Inline: inline, Pos: fieldPos})
			return
		}
		// Reference to a previously declared tag: union U u;
		if tag == "" {
			p.fail("expected tag name or '{', got %s", p.curToken.Type)
			return
		}
		spec = ast.TypeSpec{Base: tag, ArrayLen: -1, Pos: fieldPos}
		for p.curTokenIs(lexer.TokenStar) {
			spec.PtrDepth++
			p.nextToken()
		}
	} else {
		spec = p.parseTypeSpec()
		if p.failed() {
			return
		}
	}
	for {
		if !p.curTokenIs(lexer.TokenIdent) {
			p.fail("expected field name, got %s", p.curToken.Type)
			return
		}
		fieldSpec := spec
		name := p.curToken.Literal
		p.nextToken()
		if p.curTokenIs(lexer.TokenLBracket) {
			p.nextToken()
			if !p.curTokenIs(lexer.TokenInt) {
				p.fail("expected array length, got %s", p.curToken.Type)
				return
			}
			n, convErr := strconv.ParseInt(p.curToken.Literal, 0, 64)
			if convErr != nil {
				p.fail("invalid array length %q", p.curToken.Literal)
				return
			}
			fieldSpec.ArrayLen = n
			p.nextToken()
			if !p.expect(lexer.TokenRBracket) {
				return
			}
		}
		agg.Fields = append(agg.Fields, ast.FieldDecl{Type: fieldSpec, Name: name, Pos: fieldPos})
		if p.curTokenIs(lexer.TokenComma) {
			p.nextToken()
			continue
		}
		break
	}
	p.expect(lexer.TokenSemicolon)
}

func (p *Parser) parseEnumBody(name string, pos diag.Pos) *ast.EnumDecl {
	if !p.expect(lexer.TokenLBrace) {
		return nil
	}
	enum := &ast.EnumDecl{Name: name, Pos: pos}
	for !p.curTokenIs(lexer.TokenRBrace) && !p.curTokenIs(lexer.TokenEOF) && !p.failed() {
		if !p.curTokenIs(lexer.TokenIdent) {
			p.fail("expected enumerator name, got %s", p.curToken.Type)
			return nil
		}
		member := ast.EnumMember{Name: p.curToken.Literal}
		p.nextToken()
		if p.curTokenIs(lexer.TokenAssign) {
			p.nextToken()
			neg := false
			if p.curTokenIs(lexer.TokenMinus) {
				neg = true
				p.nextToken()
			}
			if !p.curTokenIs(lexer.TokenInt) {
				p.fail("expected enumerator value, got %s", p.curToken.Type)
				return nil
			}
			v, convErr := strconv.ParseInt(p.curToken.Literal, 0, 64)
			if convErr != nil {
				p.fail("invalid enumerator value %q", p.curToken.Literal)
				return nil
			}
			if neg {
				v = -v
			}
			member.HasValue = true
			member.Value = v
			p.nextToken()
		}
		enum.Members = append(enum.Members, member)
		if p.curTokenIs(lexer.TokenComma) {
			p.nextToken()
		}
	}
	p.expect(lexer.TokenRBrace)
	return enum
}

// parseFunction parses "Type name(params) body" or a prototype ending in ";".
func (p *Parser) parseFunction() ast.Decl {
	pos := p.pos()
	retType := p.parseTypeSpec()
	if p.failed() {
		return nil
	}
	if !p.curTokenIs(lexer.TokenIdent) {
		p.fail("expected function name, got %s", p.curToken.Type)
		return nil
	}
	name := p.curToken.Literal
	p.nextToken()

	if !p.expect(lexer.TokenLParen) {
		return nil
	}
	params, variadic := p.parseParams()
	if p.failed() {
		return nil
	}

	if p.curTokenIs(lexer.TokenSemicolon) {
		p.nextToken()
		return ast.ExternFun{ReturnType: retType, Name: name, Params: params, Variadic: variadic, Pos: pos}
	}

	if !p.curTokenIs(lexer.TokenLBrace) {
		p.fail("expected '{' or ';', got %s", p.curToken.Type)
		return nil
	}
	body := p.parseBlock()
	if p.failed() {
		return nil
	}
	return ast.FunDef{ReturnType: retType, Name: name, Params: params, Body: body, Pos: pos}
}

func (p *Parser) parseParams() ([]ast.Param, bool) {
	var params []ast.Param
	variadic := false

	if p.curTokenIs(lexer.TokenRParen) {
		p.nextToken()
		return params, false
	}
	// (void) is an empty parameter list
	if p.curTokenIs(lexer.TokenVoid) && p.peekTokenIs(lexer.TokenRParen) {
		p.nextToken()
		p.nextToken()
		return params, false
	}

	for {
		if p.curTokenIs(lexer.TokenEllipsis) {
			variadic = true
			p.nextToken()
			break
		}
		spec := p.parseTypeSpec()
		if p.failed() {
			return nil, false
		}
		param := ast.Param{Type: spec}
		if p.curTokenIs(lexer.TokenIdent) {
			param.Name = p.curToken.Literal
			p.nextToken()
		}
		params = append(params, param)
		if p.curTokenIs(lexer.TokenComma) {
			p.nextToken()
			continue
		}
		break
	}
	p.expect(lexer.TokenRParen)
	return params, variadic
}

// --- Types ---

// isTypeStart reports whether the current token can begin a type specifier.
func (p *Parser) isTypeStart() bool {
	switch p.curToken.Type {
	case lexer.TokenInt_, lexer.TokenVoid, lexer.TokenChar_, lexer.TokenBool,
		lexer.TokenIntptr, lexer.TokenShort, lexer.TokenLong,
		lexer.TokenSigned, lexer.TokenUnsigned, lexer.TokenConst,
		lexer.TokenStruct, lexer.TokenUnion, lexer.TokenEnum:
		return true
	case lexer.TokenIdent:
		return p.typedefs[p.curToken.Literal]
	}
	return false
}

// parseTypeSpec parses modifiers, a base type name, and pointer stars.
// Validation of modifier combinations happens in the resolver; the parser
// records them in source order.
func (p *Parser) parseTypeSpec() ast.TypeSpec {
	spec := ast.TypeSpec{ArrayLen: -1, Pos: p.pos()}

	for {
		switch p.curToken.Type {
		case lexer.TokenConst:
			// const has no layout or ownership meaning here
			p.nextToken()
			continue
		case lexer.TokenSigned:
			spec.Mods = append(spec.Mods, ast.ModSigned)
			p.nextToken()
			continue
		case lexer.TokenUnsigned:
			spec.Mods = append(spec.Mods, ast.ModUnsigned)
			p.nextToken()
			continue
		case lexer.TokenShort:
			spec.Mods = append(spec.Mods, ast.ModShort)
			p.nextToken()
			continue
		case lexer.TokenLong:
			spec.Mods = append(spec.Mods, ast.ModLong)
			p.nextToken()
			continue
		}
		break
	}

	switch p.curToken.Type {
	case lexer.TokenInt_:
		spec.Base = "int"
		p.nextToken()
	case lexer.TokenChar_:
		spec.Base = "char"
		p.nextToken()
	case lexer.TokenVoid:
		spec.Base = "void"
		p.nextToken()
	case lexer.TokenBool:
		spec.Base = "bool"
		p.nextToken()
	case lexer.TokenIntptr:
		spec.Base = "intptr_t"
		p.nextToken()
	case lexer.TokenStruct, lexer.TokenUnion, lexer.TokenEnum:
		p.nextToken()
		if !p.curTokenIs(lexer.TokenIdent) {
			p.fail("expected tag name, got %s", p.curToken.Type)
			return spec
		}
		spec.Base = p.curToken.Literal
		p.nextToken()
	case lexer.TokenIdent:
		spec.Base = p.curToken.Literal
		p.nextToken()
	default:
		if len(spec.Mods) == 0 {
			p.fail("expected type specifier, got %s", p.curToken.Type)
			return spec
		}
		// Modifier-only type like "unsigned long".
	}

	for p.curTokenIs(lexer.TokenStar) {
		spec.PtrDepth++
		p.nextToken()
	}
	return spec
}

// --- Statements ---

func (p *Parser) parseBlock() *ast.Block {
	block := &ast.Block{Items: []ast.Stmt{}}
	p.nextToken() // consume '{'

	for !p.curTokenIs(lexer.TokenRBrace) && !p.curTokenIs(lexer.TokenEOF) && !p.failed() {
		stmt := p.parseStatement()
		if p.failed() {
			return block
		}
		if stmt != nil {
			block.Items = append(block.Items, stmt)
		}
	}
	p.expect(lexer.TokenRBrace)
	return block
}

func (p *Parser) parseStatement() ast.Stmt {
	switch p.curToken.Type {
	case lexer.TokenReturn:
		return p.parseReturnStatement()
	case lexer.TokenIf:
		return p.parseIfStatement()
	case lexer.TokenWhile:
		return p.parseWhileStatement()
	case lexer.TokenFor:
		return p.parseForStatement()
	case lexer.TokenBreak:
		p.nextToken()
		p.expect(lexer.TokenSemicolon)
		return ast.Break{}
	case lexer.TokenContinue:
		p.nextToken()
		p.expect(lexer.TokenSemicolon)
		return ast.Continue{}
	case lexer.TokenLBrace:
		return p.parseBlock()
	case lexer.TokenSemicolon:
		p.nextToken()
		return nil
	default:
		if p.isTypeStart() {
			return p.parseDeclStatement()
		}
		expr := p.parseExpression()
		if p.failed() {
			return nil
		}
		p.expect(lexer.TokenSemicolon)
		return ast.ExprStmt{Expr: expr}
	}
}

func (p *Parser) parseDeclStatement() ast.Stmt {
	pos := p.pos()
	spec := p.parseTypeSpec()
	if p.failed() {
		return nil
	}
	if !p.curTokenIs(lexer.TokenIdent) {
		p.fail("expected variable name, got %s", p.curToken.Type)
		return nil
	}
	name := p.curToken.Literal
	p.nextToken()

	if p.curTokenIs(lexer.TokenLBracket) {
		p.nextToken()
		if !p.curTokenIs(lexer.TokenInt) {
			p.fail("expected array length, got %s", p.curToken.Type)
			return nil
		}
		n, convErr := strconv.ParseInt(p.curToken.Literal, 0, 64)
		if convErr != nil {
			p.fail("invalid array length %q", p.curToken.Literal)
			return nil
		}
		spec.ArrayLen = n
		p.nextToken()
		if !p.expect(lexer.TokenRBracket) {
			return nil
		}
	}

	var init ast.Expr
	if p.curTokenIs(lexer.TokenAssign) {
		p.nextToken()
		if p.curTokenIs(lexer.TokenLBrace) {
			// Braced initializer takes the declaration's type:
			// Point p = {.x = 10, .y = 20};
			init = p.parseCompoundLiteral(spec)
		} else {
			init = p.parseAssignment()
		}
		if p.failed() {
			return nil
		}
	}
	p.expect(lexer.TokenSemicolon)
	return ast.DeclStmt{Type: spec, Name: name, Init: init, Pos: pos}
}

func (p *Parser) parseReturnStatement() ast.Stmt {
	p.nextToken() // consume 'return'

	var expr ast.Expr
	if !p.curTokenIs(lexer.TokenSemicolon) {
		expr = p.parseExpression()
		if p.failed() {
			return nil
		}
	}
	p.expect(lexer.TokenSemicolon)
	return ast.Return{Expr: expr}
}

func (p *Parser) parseIfStatement() ast.Stmt {
	p.nextToken() // consume 'if'
	if !p.expect(lexer.TokenLParen) {
		return nil
	}
	cond := p.parseExpression()
	if p.failed() {
		return nil
	}
	if !p.expect(lexer.TokenRParen) {
		return nil
	}
	then := p.parseBranchBlock()
	if p.failed() {
		return nil
	}
	stmt := ast.If{Cond: cond, Then: then}
	if p.curTokenIs(lexer.TokenElse) {
		p.nextToken()
		if p.curTokenIs(lexer.TokenIf) {
			stmt.Else = p.parseIfStatement()
		} else {
			stmt.Else = p.parseBranchBlock()
		}
	}
	return stmt
}

// parseBranchBlock parses a braced block or wraps a single statement in one.
func (p *Parser) parseBranchBlock() *ast.Block {
	if p.curTokenIs(lexer.TokenLBrace) {
		return p.parseBlock()
	}
	stmt := p.parseStatement()
	if p.failed() {
		return nil
	}
	return &ast.Block{Items: []ast.Stmt{stmt}}
}

func (p *Parser) parseWhileStatement() ast.Stmt {
	p.nextToken() // consume 'while'
	if !p.expect(lexer.TokenLParen) {
		return nil
	}
	cond := p.parseExpression()
	if p.failed() {
		return nil
	}
	if !p.expect(lexer.TokenRParen) {
		return nil
	}
	body := p.parseBranchBlock()
	return ast.While{Cond: cond, Body: body}
}

func (p *Parser) parseForStatement() ast.Stmt {
	p.nextToken() // consume 'for'
	if !p.expect(lexer.TokenLParen) {
		return nil
	}

	var init ast.Stmt
	if !p.curTokenIs(lexer.TokenSemicolon) {
		if p.isTypeStart() {
			init = p.parseDeclStatement() // consumes the ';'
		} else {
			expr := p.parseExpression()
			if p.failed() {
				return nil
			}
			init = ast.ExprStmt{Expr: expr}
			p.expect(lexer.TokenSemicolon)
		}
	} else {
		p.nextToken()
	}

	var cond ast.Expr
	if !p.curTokenIs(lexer.TokenSemicolon) {
		cond = p.parseExpression()
		if p.failed() {
			return nil
		}
	}
	if !p.expect(lexer.TokenSemicolon) {
		return nil
	}

	var post ast.Expr
	if !p.curTokenIs(lexer.TokenRParen) {
		post = p.parseExpression()
		if p.failed() {
			return nil
		}
	}
	if !p.expect(lexer.TokenRParen) {
		return nil
	}

	body := p.parseBranchBlock()
	return ast.For{Init: init, Cond: cond, Post: post, Body: body}
}
