package schema

import "strings"

// Special identifies a reserved path token resolved against the position
// of the node being produced rather than against bound variables.
type Special uint8

const (
	SpecialPath Special = iota + 1
	SpecialFullPath
	SpecialName
	SpecialParentPath
	SpecialParentFullPath
	SpecialParentName
	SpecialRootPath
)

//nolint:gochecknoglobals
var specialNames = map[string]Special{
	"PATH":             SpecialPath,
	"FULL_PATH":        SpecialFullPath,
	"NAME":             SpecialName,
	"PARENT_PATH":      SpecialParentPath,
	"PARENT_FULL_PATH": SpecialParentFullPath,
	"PARENT_NAME":      SpecialParentName,
	"ROOT_PATH":        SpecialRootPath,
}

func (s Special) String() string {
	for name, special := range specialNames {
		if special == s {
			return name
		}
	}

	return "UNKNOWN"
}

// SpecialByName resolves a reserved token name, like PATH or PARENT_NAME.
func SpecialByName(name string) (Special, bool) {
	s, ok := specialNames[name]

	return s, ok
}

// TokenKind discriminates the parts an expression is built from.
type TokenKind uint8

const (
	TokenText TokenKind = iota
	TokenVariable
	TokenSpecial
)

// Token is one part of an expression: literal text, a variable reference
// or a reserved path token.
type Token struct {
	Kind    TokenKind
	Text    string
	Special Special
}

func (t Token) String() string {
	switch t.Kind {
	case TokenVariable:
		return "${" + t.Text + "}"
	case TokenSpecial:
		return "${" + t.Special.String() + "}"
	case TokenText:
		return t.Text
	default:
		return t.Text
	}
}

// Expression is an uninterpreted sequence of tokens. Variables and
// reserved tokens are resolved lazily, at the point in the tree where the
// expression is used.
type Expression struct {
	Tokens []Token
}

func (e *Expression) String() string {
	var sb strings.Builder
	for _, t := range e.Tokens {
		sb.WriteString(t.String())
	}

	return sb.String()
}

// IsLiteral reports whether the expression consists of literal text only.
func (e *Expression) IsLiteral() bool {
	for _, t := range e.Tokens {
		if t.Kind != TokenText {
			return false
		}
	}

	return true
}

// TextExpression builds an expression holding nothing but literal text.
func TextExpression(text string) *Expression {
	return &Expression{Tokens: []Token{{Kind: TokenText, Text: text}}}
}

// VariableExpression builds an expression referencing a single variable.
func VariableExpression(name string) *Expression {
	return &Expression{Tokens: []Token{{Kind: TokenVariable, Text: name}}}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// IsIdentifier reports whether s is a valid variable or definition name:
// a letter or underscore followed by letters, digits or underscores.
func IsIdentifier(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentChar(s[i]) {
			return false
		}
	}

	return true
}

// takeIdentifier splits the longest identifier prefix off s.
func takeIdentifier(s string) (ident, rest string) {
	if s == "" || !isIdentStart(s[0]) {
		return "", s
	}
	i := 1
	for i < len(s) && isIdentChar(s[i]) {
		i++
	}

	return s[:i], s[i:]
}

// exprError reports a lexing failure at a byte offset into the expression
// text, so callers can map it back onto the source line.
type exprError struct {
	offset int
	msg    string
}

// ParseExpression lexes expression text into tokens. Variables are
// written $name, ${name} or {name}; a brace pair that does not enclose an
// identifier stays literal text, so regular expression quantifiers like
// {2,3} survive unharmed.
func ParseExpression(text string) (*Expression, error) {
	expr, lexErr := lexExpression(text)
	if lexErr != nil {
		return nil, &ParseError{Msg: lexErr.msg}
	}

	return expr, nil
}

func lexExpression(text string) (*Expression, *exprError) {
	if text == "" {
		return nil, &exprError{offset: 0, msg: "expected an expression"}
	}

	var tokens []Token
	var literal strings.Builder

	flush := func() {
		if literal.Len() > 0 {
			tokens = append(tokens, Token{Kind: TokenText, Text: literal.String()})
			literal.Reset()
		}
	}

	interp := func(name string) {
		if special, ok := SpecialByName(name); ok {
			tokens = append(tokens, Token{Kind: TokenSpecial, Special: special})

			return
		}
		tokens = append(tokens, Token{Kind: TokenVariable, Text: name})
	}

	i := 0
	for i < len(text) {
		switch c := text[i]; c {
		case '$':
			start := i
			i++
			if i < len(text) && text[i] == '{' {
				end := strings.IndexByte(text[i:], '}')
				if end < 0 {
					return nil, &exprError{offset: start, msg: "missing '}' after '${'"}
				}
				name := text[i+1 : i+end]
				if !IsIdentifier(name) {
					return nil, &exprError{offset: start, msg: "expected an identifier between '${' and '}'"}
				}
				flush()
				interp(name)
				i += end + 1

				continue
			}
			name, rest := takeIdentifier(text[i:])
			if name == "" {
				return nil, &exprError{offset: start, msg: "expected an identifier after '$'"}
			}
			flush()
			interp(name)
			i = len(text) - len(rest)
		case '{':
			if end := strings.IndexByte(text[i:], '}'); end > 0 {
				if name := text[i+1 : i+end]; IsIdentifier(name) {
					flush()
					interp(name)
					i += end + 1

					continue
				}
			}
			literal.WriteByte(c)
			i++
		default:
			literal.WriteByte(c)
			i++
		}
	}
	flush()

	if len(tokens) == 0 {
		return nil, &exprError{offset: 0, msg: "expected an expression"}
	}

	return &Expression{Tokens: tokens}, nil
}
