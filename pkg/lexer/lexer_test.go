package lexer

import "testing"

func TestNextToken(t *testing.T) {
	input := `int main(void) {
	CardData* card = ({ int a = 0x2a; a; });
	card->health += 1;
	return card != 0 && true;
}`

	tests := []struct {
		expectedType    TokenType
		expectedLiteral string
	}{
		{TokenInt_, "int"},
		{TokenIdent, "main"},
		{TokenLParen, "("},
		{TokenVoid, "void"},
		{TokenRParen, ")"},
		{TokenLBrace, "{"},
		{TokenIdent, "CardData"},
		{TokenStar, "*"},
		{TokenIdent, "card"},
		{TokenAssign, "="},
		{TokenLParen, "("},
		{TokenLBrace, "{"},
		{TokenInt_, "int"},
		{TokenIdent, "a"},
		{TokenAssign, "="},
		{TokenInt, "0x2a"},
		{TokenSemicolon, ";"},
		{TokenIdent, "a"},
		{TokenSemicolon, ";"},
		{TokenRBrace, "}"},
		{TokenRParen, ")"},
		{TokenSemicolon, ";"},
		{TokenIdent, "card"},
		{TokenArrow, "->"},
		{TokenIdent, "health"},
		{TokenPlusAssign, "+="},
		{TokenInt, "1"},
		{TokenSemicolon, ";"},
		{TokenReturn, "return"},
		{TokenIdent, "card"},
		{TokenNe, "!="},
		{TokenInt, "0"},
		{TokenAnd, "&&"},
		{TokenTrue, "true"},
		{TokenSemicolon, ";"},
		{TokenRBrace, "}"},
		{TokenEOF, ""},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - wrong type. expected=%q, got=%q (literal %q)",
				i, tokenNames[tt.expectedType], tokenNames[tok.Type], tok.Literal)
		}
		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - wrong literal. expected=%q, got=%q",
				i, tt.expectedLiteral, tok.Literal)
		}
	}
}

func TestTriviaAndDirectives(t *testing.T) {
	input := `#include <stdio.h>
// line comment
/* block
   comment */
typedef struct Point Point; ...`

	l := New(input)
	want := []TokenType{TokenTypedef, TokenStruct, TokenIdent, TokenIdent, TokenSemicolon, TokenEllipsis, TokenEOF}
	for i, w := range want {
		tok := l.NextToken()
		if tok.Type != w {
			t.Fatalf("token %d: expected %s, got %s (%q)", i, tokenNames[w], tokenNames[tok.Type], tok.Literal)
		}
	}
}

func TestCharAndStringLiterals(t *testing.T) {
	l := New(`'a' '\n' "hi %d\n"`)

	tok := l.NextToken()
	if tok.Type != TokenChar || tok.Literal != "a" {
		t.Errorf("expected char 'a', got %s %q", tokenNames[tok.Type], tok.Literal)
	}
	tok = l.NextToken()
	if tok.Type != TokenChar || tok.Literal != `\n` {
		t.Errorf("expected char escape, got %s %q", tokenNames[tok.Type], tok.Literal)
	}
	tok = l.NextToken()
	if tok.Type != TokenString || tok.Literal != `hi %d\n` {
		t.Errorf("expected string, got %s %q", tokenNames[tok.Type], tok.Literal)
	}
}

func TestPositions(t *testing.T) {
	l := New("int\n  x;")

	tok := l.NextToken()
	if tok.Line != 1 || tok.Column != 1 {
		t.Errorf("int at %d:%d, expected 1:1", tok.Line, tok.Column)
	}
	tok = l.NextToken()
	if tok.Line != 2 || tok.Column != 3 {
		t.Errorf("x at %d:%d, expected 2:3", tok.Line, tok.Column)
	}
}
