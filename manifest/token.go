// Package manifest implements the fixed-grammar transaction manifest
// language of spec §6: a lexer and recursive-descent parser that
// lower manifest text into a flat instruction list, plus the
// transaction processor that drives those instructions through the
// kernel's System service.
package manifest

import "fmt"

// TokenKind enumerates the manifest lexer's fixed token vocabulary
// (spec §6).
type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenIdent
	TokenString
	TokenNumber
	TokenDecimal
	TokenBool
	TokenAddress // bech32m literal
	TokenLParen
	TokenRParen
	TokenComma
	TokenSemicolon
	TokenLAngle
	TokenRAngle
)

// Token is one lexical unit along with its source position, used for
// parser diagnostics that point back at a line/column (spec §3
// SUPPLEMENTED FEATURES, "parser diagnostics with source spans").
type Token struct {
	Kind   TokenKind
	Text   string
	Line   int
	Column int
}

func (t Token) String() string {
	return fmt.Sprintf("%s %q (line %d, col %d)", t.Kind, t.Text, t.Line, t.Column)
}

func (k TokenKind) String() string {
	switch k {
	case TokenEOF:
		return "EOF"
	case TokenIdent:
		return "IDENT"
	case TokenString:
		return "STRING"
	case TokenNumber:
		return "NUMBER"
	case TokenDecimal:
		return "DECIMAL"
	case TokenBool:
		return "BOOL"
	case TokenAddress:
		return "ADDRESS"
	case TokenLParen:
		return "("
	case TokenRParen:
		return ")"
	case TokenComma:
		return ","
	case TokenSemicolon:
		return ";"
	case TokenLAngle:
		return "<"
	case TokenRAngle:
		return ">"
	default:
		return "UNKNOWN"
	}
}
