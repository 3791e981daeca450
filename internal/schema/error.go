package schema

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrBadMode       = errors.New("not a valid permission mode")
	ErrBadIdentifier = errors.New("not a valid identifier")
)

// ParseError describes a failure to parse schema text, pointing at the
// line and column the parser gave up on. Errors raised while building a
// nested item chain through Err.
type ParseError struct {
	Msg    string
	Line   int
	Column int
	Text   string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s (line %d, column %d)", e.Msg, e.Line, e.Column)
	}

	return e.Msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Diagnostic renders the error with the offending source line and a
// caret marking the failing column, one frame per chained cause.
func (e *ParseError) Diagnostic() string {
	var sb strings.Builder

	for err := e; err != nil; {
		sb.WriteString(err.Msg)
		sb.WriteByte('\n')
		if err.Line > 0 {
			gutter := fmt.Sprintf("%6d", err.Line)
			sb.WriteString(strings.Repeat(" ", len(gutter)))
			sb.WriteString(" |\n")
			sb.WriteString(gutter)
			sb.WriteString(" | ")
			sb.WriteString(err.Text)
			sb.WriteByte('\n')
			sb.WriteString(strings.Repeat(" ", len(gutter)))
			sb.WriteString(" | ")
			if err.Column > 1 {
				sb.WriteString(strings.Repeat(" ", err.Column-1))
			}
			sb.WriteString("^\n")
		}

		var next *ParseError
		if errors.As(err.Err, &next) {
			err = next
		} else {
			break
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}
