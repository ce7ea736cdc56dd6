package lexer

// TokenType represents the type of a token
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenIllegal

	// Literals
	TokenIdent  // main, foo, x
	TokenInt    // 42, 0x2a
	TokenChar   // 'a'
	TokenString // "hello"

	// Keywords
	TokenInt_     // int
	TokenVoid     // void
	TokenReturn   // return
	TokenIf       // if
	TokenElse     // else
	TokenWhile    // while
	TokenFor      // for
	TokenBreak    // break
	TokenContinue // continue
	TokenTypedef  // typedef
	TokenStruct   // struct
	TokenUnion    // union
	TokenEnum     // enum
	TokenSizeof   // sizeof
	TokenExtern   // extern
	TokenConst    // const
	TokenChar_    // char
	TokenShort    // short
	TokenLong     // long
	TokenSigned   // signed
	TokenUnsigned // unsigned
	TokenBool     // bool
	TokenIntptr   // intptr_t
	TokenTrue     // true
	TokenFalse    // false

	// Operators
	TokenPlus      // +
	TokenMinus     // -
	TokenStar      // *
	TokenSlash     // /
	TokenPercent   // %
	TokenAssign    // =
	TokenEq        // ==
	TokenNe        // !=
	TokenLt        // <
	TokenLe        // <=
	TokenGt        // >
	TokenGe        // >=
	TokenAnd       // &&
	TokenOr        // ||
	TokenNot       // !
	TokenAmpersand // &
	TokenPipe      // |
	TokenCaret     // ^
	TokenTilde     // ~
	TokenShl       // <<
	TokenShr       // >>
	TokenQuestion  // ?
	TokenColon     // :

	// Compound assignment operators
	TokenPlusAssign  // +=
	TokenMinusAssign // -=
	TokenStarAssign  // *=
	TokenSlashAssign // /=

	// Increment/decrement
	TokenIncrement // ++
	TokenDecrement // --

	// Delimiters
	TokenLParen    // (
	TokenRParen    // )
	TokenLBrace    // {
	TokenRBrace    // }
	TokenLBracket  // [
	TokenRBracket  // ]
	TokenSemicolon // ;
	TokenComma     // ,
	TokenDot       // .
	TokenArrow     // ->
	TokenEllipsis  // ...
)

var tokenNames = map[TokenType]string{
	TokenEOF:         "EOF",
	TokenIllegal:     "ILLEGAL",
	TokenIdent:       "IDENT",
	TokenInt:         "INT",
	TokenChar:        "CHAR",
	TokenString:      "STRING",
	TokenInt_:        "int",
	TokenVoid:        "void",
	TokenReturn:      "return",
	TokenIf:          "if",
	TokenElse:        "else",
	TokenWhile:       "while",
	TokenFor:         "for",
	TokenBreak:       "break",
	TokenContinue:    "continue",
	TokenTypedef:     "typedef",
	TokenStruct:      "struct",
	TokenUnion:       "union",
	TokenEnum:        "enum",
	TokenSizeof:      "sizeof",
	TokenExtern:      "extern",
	TokenConst:       "const",
	TokenChar_:       "char",
	TokenShort:       "short",
	TokenLong:        "long",
	TokenSigned:      "signed",
	TokenUnsigned:    "unsigned",
	TokenBool:        "bool",
	TokenIntptr:      "intptr_t",
	TokenTrue:        "true",
	TokenFalse:       "false",
	TokenPlus:        "+",
	TokenMinus:       "-",
	TokenStar:        "*",
	TokenSlash:       "/",
	TokenPercent:     "%",
	TokenAssign:      "=",
	TokenEq:          "==",
	TokenNe:          "!=",
	TokenLt:          "<",
	TokenLe:          "<=",
	TokenGt:          ">",
	TokenGe:          ">=",
	TokenAnd:         "&&",
	TokenOr:          "||",
	TokenNot:         "!",
	TokenAmpersand:   "&",
	TokenPipe:        "|",
	TokenCaret:       "^",
	TokenTilde:       "~",
	TokenShl:         "<<",
	TokenShr:         ">>",
	TokenQuestion:    "?",
	TokenColon:       ":",
	TokenPlusAssign:  "+=",
	TokenMinusAssign: "-=",
	TokenStarAssign:  "*=",
	TokenSlashAssign: "/=",
	TokenIncrement:   "++",
	TokenDecrement:   "--",
	TokenLParen:      "(",
	TokenRParen:      ")",
	TokenLBrace:      "{",
	TokenRBrace:      "}",
	TokenLBracket:    "[",
	TokenRBracket:    "]",
	TokenSemicolon:   ";",
	TokenComma:       ",",
	TokenDot:         ".",
	TokenArrow:       "->",
	TokenEllipsis:    "...",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// Token represents a lexical token
type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Column  int
}

// keywords maps keyword strings to token types
var keywords = map[string]TokenType{
	"int":      TokenInt_,
	"void":     TokenVoid,
	"return":   TokenReturn,
	"if":       TokenIf,
	"else":     TokenElse,
	"while":    TokenWhile,
	"for":      TokenFor,
	"break":    TokenBreak,
	"continue": TokenContinue,
	"typedef":  TokenTypedef,
	"struct":   TokenStruct,
	"union":    TokenUnion,
	"enum":     TokenEnum,
	"sizeof":   TokenSizeof,
	"extern":   TokenExtern,
	"const":    TokenConst,
	"char":     TokenChar_,
	"short":    TokenShort,
	"long":     TokenLong,
	"signed":   TokenSigned,
	"unsigned": TokenUnsigned,
	"bool":     TokenBool,
	"_Bool":    TokenBool,
	"intptr_t": TokenIntptr,
	"true":     TokenTrue,
	"false":    TokenFalse,
}

// LookupIdent returns the token type for an identifier (keyword or IDENT)
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return TokenIdent
}
