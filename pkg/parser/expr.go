package parser

import (
	"strconv"

	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/ast"
	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/diag"
	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/lexer"
)

// Expression grammar, one function per precedence level. Each function is
// called with curToken at the first token of its construct and returns with
// curToken just past it.

func (p *Parser) parseExpression() ast.Expr {
	expr := p.parseAssignment()
	for p.curTokenIs(lexer.TokenComma) && !p.failed() {
		p.nextToken()
		right := p.parseAssignment()
		expr = ast.Binary{Op: ast.OpComma, Left: expr, Right: right}
	}
	return expr
}

var assignOps = map[lexer.TokenType]ast.BinaryOp{
	lexer.TokenAssign:      ast.OpAssign,
	lexer.TokenPlusAssign:  ast.OpAddAssign,
	lexer.TokenMinusAssign: ast.OpSubAssign,
	lexer.TokenStarAssign:  ast.OpMulAssign,
	lexer.TokenSlashAssign: ast.OpDivAssign,
}

func (p *Parser) parseAssignment() ast.Expr {
	left := p.parseConditional()
	if p.failed() {
		return left
	}
	if op, ok := assignOps[p.curToken.Type]; ok {
		p.nextToken()
		var right ast.Expr
		if p.curTokenIs(lexer.TokenLBrace) {
			// Untyped braced RHS is not an expression in this dialect
			p.fail("expected expression, got {")
			return left
		}
		right = p.parseAssignment() // right-associative
		return ast.Binary{Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseConditional() ast.Expr {
	cond := p.parseLogicalOr()
	if p.failed() || !p.curTokenIs(lexer.TokenQuestion) {
		return cond
	}
	p.nextToken()
	then := p.parseAssignment()
	if !p.expect(lexer.TokenColon) {
		return cond
	}
	els := p.parseConditional()
	return ast.Conditional{Cond: cond, Then: then, Else: els}
}

// binaryLevel parses a left-associative run of the given operators over the
// next-tighter level.
func (p *Parser) binaryLevel(ops map[lexer.TokenType]ast.BinaryOp, next func() ast.Expr) ast.Expr {
	left := next()
	for !p.failed() {
		op, ok := ops[p.curToken.Type]
		if !ok {
			return left
		}
		p.nextToken()
		right := next()
		left = ast.Binary{Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseLogicalOr() ast.Expr {
	return p.binaryLevel(map[lexer.TokenType]ast.BinaryOp{lexer.TokenOr: ast.OpOr}, p.parseLogicalAnd)
}

func (p *Parser) parseLogicalAnd() ast.Expr {
	return p.binaryLevel(map[lexer.TokenType]ast.BinaryOp{lexer.TokenAnd: ast.OpAnd}, p.parseBitOr)
}

func (p *Parser) parseBitOr() ast.Expr {
	return p.binaryLevel(map[lexer.TokenType]ast.BinaryOp{lexer.TokenPipe: ast.OpBitOr}, p.parseBitXor)
}

func (p *Parser) parseBitXor() ast.Expr {
	return p.binaryLevel(map[lexer.TokenType]ast.BinaryOp{lexer.TokenCaret: ast.OpBitXor}, p.parseBitAnd)
}

func (p *Parser) parseBitAnd() ast.Expr {
	return p.binaryLevel(map[lexer.TokenType]ast.BinaryOp{lexer.TokenAmpersand: ast.OpBitAnd}, p.parseEquality)
}

func (p *Parser) parseEquality() ast.Expr {
	return p.binaryLevel(map[lexer.TokenType]ast.BinaryOp{
		lexer.TokenEq: ast.OpEq,
		lexer.TokenNe: ast.OpNe,
	}, p.parseRelational)
}

func (p *Parser) parseRelational() ast.Expr {
	return p.binaryLevel(map[lexer.TokenType]ast.BinaryOp{
		lexer.TokenLt: ast.OpLt,
		lexer.TokenLe: ast.OpLe,
		lexer.TokenGt: ast.OpGt,
		lexer.TokenGe: ast.OpGe,
	}, p.parseShift)
}

func (p *Parser) parseShift() ast.Expr {
	return p.binaryLevel(map[lexer.TokenType]ast.BinaryOp{
		lexer.TokenShl: ast.OpShl,
		lexer.TokenShr: ast.OpShr,
	}, p.parseAdditive)
}

func (p *Parser) parseAdditive() ast.Expr {
	return p.binaryLevel(map[lexer.TokenType]ast.BinaryOp{
		lexer.TokenPlus:  ast.OpAdd,
		lexer.TokenMinus: ast.OpSub,
	}, p.parseMultiplicative)
}

func (p *Parser) parseMultiplicative() ast.Expr {
	return p.binaryLevel(map[lexer.TokenType]ast.BinaryOp{
		lexer.TokenStar:    ast.OpMul,
		lexer.TokenSlash:   ast.OpDiv,
		lexer.TokenPercent: ast.OpMod,
	}, p.parseUnary)
}

func (p *Parser) parseUnary() ast.Expr {
	switch p.curToken.Type {
	case lexer.TokenMinus:
		p.nextToken()
		return ast.Unary{Op: ast.OpNeg, Expr: p.parseUnary()}
	case lexer.TokenNot:
		p.nextToken()
		return ast.Unary{Op: ast.OpNot, Expr: p.parseUnary()}
	case lexer.TokenTilde:
		p.nextToken()
		return ast.Unary{Op: ast.OpBitNot, Expr: p.parseUnary()}
	case lexer.TokenAmpersand:
		p.nextToken()
		return ast.Unary{Op: ast.OpAddr, Expr: p.parseUnary()}
	case lexer.TokenStar:
		p.nextToken()
		return ast.Unary{Op: ast.OpDeref, Expr: p.parseUnary()}
	case lexer.TokenIncrement:
		p.nextToken()
		return ast.Unary{Op: ast.OpPreInc, Expr: p.parseUnary()}
	case lexer.TokenDecrement:
		p.nextToken()
		return ast.Unary{Op: ast.OpPreDec, Expr: p.parseUnary()}
	case lexer.TokenSizeof:
		return p.parseSizeof()
	case lexer.TokenLParen:
		// A parenthesized type is a cast or a compound literal; anything
		// else falls through to postfix/primary parsing.
		if p.peekIsTypeStart() {
			return p.parseCastOrCompound()
		}
	}
	return p.parsePostfix(p.parsePrimary())
}

// peekIsTypeStart reports whether the token after '(' begins a type.
func (p *Parser) peekIsTypeStart() bool {
	switch p.peekToken.Type {
	case lexer.TokenInt_, lexer.TokenVoid, lexer.TokenChar_, lexer.TokenBool,
		lexer.TokenIntptr, lexer.TokenShort, lexer.TokenLong,
		lexer.TokenSigned, lexer.TokenUnsigned, lexer.TokenConst,
		lexer.TokenStruct, lexer.TokenUnion, lexer.TokenEnum:
		return true
	case lexer.TokenIdent:
		return p.typedefs[p.peekToken.Literal]
	}
	return false
}

// parseCastOrCompound parses "(Type)expr" and "(Type){...}".
func (p *Parser) parseCastOrCompound() ast.Expr {
	p.nextToken() // consume '('
	spec := p.parseTypeSpec()
	if p.failed() {
		return nil
	}
	if !p.expect(lexer.TokenRParen) {
		return nil
	}
	if p.curTokenIs(lexer.TokenLBrace) {
		lit := p.parseCompoundLiteral(spec)
		if p.failed() {
			return nil
		}
		return p.parsePostfix(lit)
	}
	return ast.Cast{Type: spec, Expr: p.parseUnary()}
}

// parseCompoundLiteral parses the brace initializer of (Type){...}
// with curToken at '{'. Designated and positional entries are both
// recorded; lowering validates the combination.
func (p *Parser) parseCompoundLiteral(spec ast.TypeSpec) ast.Expr {
	pos := p.pos()
	p.nextToken() // consume '{'

	lit := ast.CompoundLiteral{Type: spec, Pos: pos}
	for !p.curTokenIs(lexer.TokenRBrace) && !p.curTokenIs(lexer.TokenEOF) && !p.failed() {
		initPos := p.pos()
		var init ast.FieldInit
		if p.curTokenIs(lexer.TokenDot) {
			p.nextToken()
			if !p.curTokenIs(lexer.TokenIdent) {
				p.fail("expected field name after '.', got %s", p.curToken.Type)
				return nil
			}
			init.Name = p.curToken.Literal
			p.nextToken()
			if !p.expect(lexer.TokenAssign) {
				return nil
			}
		}
		init.Value = p.parseAssignment()
		init.Pos = initPos
		if p.failed() {
			return nil
		}
		lit.Inits = append(lit.Inits, init)
		if p.curTokenIs(lexer.TokenComma) {
			p.nextToken()
			continue
		}
		break
	}
	if !p.expect(lexer.TokenRBrace) {
		return nil
	}
	return lit
}

// parseStmtExpr parses "({ stmts })" with curToken at '('.
func (p *Parser) parseStmtExpr() ast.Expr {
	pos := p.pos()
	p.nextToken() // consume '('

	block := p.parseBlock()
	if p.failed() {
		return nil
	}
	if !p.expect(lexer.TokenRParen) {
		return nil
	}
	return ast.StmtExpr{Stmts: block.Items, Pos: pos}
}

func (p *Parser) parseSizeof() ast.Expr {
	p.nextToken() // consume 'sizeof'
	if p.curTokenIs(lexer.TokenLParen) && p.peekIsTypeStart() {
		p.nextToken()
		spec := p.parseTypeSpec()
		if p.failed() {
			return nil
		}
		p.expect(lexer.TokenRParen)
		return ast.SizeofType{Type: spec}
	}
	return ast.SizeofExpr{Expr: p.parseUnary()}
}

func (p *Parser) parsePostfix(expr ast.Expr) ast.Expr {
	for !p.failed() {
		switch p.curToken.Type {
		case lexer.TokenLParen:
			pos := p.pos()
			p.nextToken()
			var args []ast.Expr
			for !p.curTokenIs(lexer.TokenRParen) && !p.curTokenIs(lexer.TokenEOF) && !p.failed() {
				args = append(args, p.parseAssignment())
				if p.curTokenIs(lexer.TokenComma) {
					p.nextToken()
				}
			}
			p.expect(lexer.TokenRParen)
			expr = ast.Call{Func: expr, Args: args, Pos: pos}
		case lexer.TokenLBracket:
			p.nextToken()
			idx := p.parseExpression()
			p.expect(lexer.TokenRBracket)
			expr = ast.Index{Array: expr, Index: idx}
		case lexer.TokenDot:
			pos := p.pos()
			p.nextToken()
			if !p.curTokenIs(lexer.TokenIdent) {
				p.fail("expected field name after '.', got %s", p.curToken.Type)
				return expr
			}
			expr = ast.Member{Expr: expr, Name: p.curToken.Literal, Pos: pos}
			p.nextToken()
		case lexer.TokenArrow:
			pos := p.pos()
			p.nextToken()
			if !p.curTokenIs(lexer.TokenIdent) {
				p.fail("expected field name after '->', got %s", p.curToken.Type)
				return expr
			}
			expr = ast.Member{Expr: expr, Name: p.curToken.Literal, Arrow: true, Pos: pos}
			p.nextToken()
		case lexer.TokenIncrement:
			p.nextToken()
			expr = ast.Unary{Op: ast.OpPostInc, Expr: expr}
		case lexer.TokenDecrement:
			p.nextToken()
			expr = ast.Unary{Op: ast.OpPostDec, Expr: expr}
		default:
			return expr
		}
	}
	return expr
}

func (p *Parser) parsePrimary() ast.Expr {
	switch p.curToken.Type {
	case lexer.TokenInt:
		lit := p.curToken.Literal
		p.nextToken()
		value, convErr := strconv.ParseInt(lit, 0, 64)
		if convErr != nil {
			p.fail("invalid integer literal %q", lit)
			return nil
		}
		return ast.IntLit{Value: value}
	case lexer.TokenChar:
		lit := p.curToken.Literal
		p.nextToken()
		return ast.CharLit{Value: lit}
	case lexer.TokenString:
		lit := p.curToken.Literal
		p.nextToken()
		return ast.StringLit{Value: lit}
	case lexer.TokenTrue:
		p.nextToken()
		return ast.BoolLit{Value: true}
	case lexer.TokenFalse:
		p.nextToken()
		return ast.BoolLit{Value: false}
	case lexer.TokenIdent:
		name := p.curToken.Literal
		pos := diag.Pos{Line: p.curToken.Line, Column: p.curToken.Column}
		p.nextToken()
		return ast.Ident{Name: name, Pos: pos}
	case lexer.TokenLParen:
		if p.peekTokenIs(lexer.TokenLBrace) {
			return p.parseStmtExpr()
		}
		p.nextToken()
		expr := p.parseExpression()
		if p.failed() {
			return nil
		}
		p.expect(lexer.TokenRParen)
		return ast.Paren{Expr: expr}
	default:
		p.fail("expected expression, got %s", p.curToken.Type)
		return nil
	}
}
