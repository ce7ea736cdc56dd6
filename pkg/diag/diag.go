// Package diag defines the structured diagnostics reported by the compiler.
// Every pipeline stage returns either its output or exactly one Diagnostic;
// there is no multi-error batching and no partial output.
package diag

import "fmt"

// Kind classifies a diagnostic by the failure condition it reports.
type Kind int

const (
	// SyntaxError is reported by the parser for malformed input.
	SyntaxError Kind = iota

	// Resolver failures.
	UnknownType
	DuplicateField
	InvalidModifierCombo
	InvalidRefcountField

	// Lowering failures.
	MalformedInitializer
	UnknownField
	MissingTrailingExpression

	// Internal marks an invariant violation inside the compiler itself,
	// distinct from any user-facing error class.
	Internal
)

var kindNames = map[Kind]string{
	SyntaxError:               "SyntaxError",
	UnknownType:               "UnknownType",
	DuplicateField:            "DuplicateField",
	InvalidModifierCombo:      "InvalidModifierCombo",
	InvalidRefcountField:      "InvalidRefcountField",
	MalformedInitializer:      "MalformedInitializer",
	UnknownField:              "UnknownField",
	MissingTrailingExpression: "MissingTrailingExpression",
	Internal:                  "internal error",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "UNKNOWN"
}

// Pos is a source position, 1-based line and column.
type Pos struct {
	Line   int
	Column int
}

func (p Pos) String() string {
	return fmt.Sprintf("line %d, col %d", p.Line, p.Column)
}

// Diagnostic is a fatal, structured compilation error.
type Diagnostic struct {
	Kind    Kind
	Message string
	Pos     Pos
}

// New builds a Diagnostic at the given position.
func New(kind Kind, pos Pos, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Kind: kind, Message: fmt.Sprintf(format, args...), Pos: pos}
}

func (d *Diagnostic) Error() string {
	if d.Pos.Line == 0 {
		return fmt.Sprintf("%s: %s", d.Kind, d.Message)
	}
	return fmt.Sprintf("%s: %s: %s", d.Pos, d.Kind, d.Message)
}
