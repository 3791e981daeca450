package schema

import (
	"fmt"
	"strings"
)

const indentWidth = 4

// srcLine is one content-bearing line of schema text with its
// indentation level already measured.
type srcLine struct {
	number int
	level  int
	text   string
	raw    string
}

type parser struct {
	lines []srcLine
	pos   int
}

// Parse reads schema text into a node tree. The returned error, when not
// nil, is a *ParseError carrying the offending line and column.
//
// Indentation is four spaces per level. Blank lines and lines whose first
// non-whitespace character is '#' are ignored; any other trailing
// whitespace is rejected.
func Parse(text string) (*Node, error) {
	lines, perr := scanLines(text)
	if perr != nil {
		return nil, perr
	}

	p := &parser{lines: lines}
	root := newNodeBuilder(srcLine{number: 1}, true, false, true, nil)

	base := 0
	if len(lines) > 0 {
		base = lines[0].level
	}
	if perr := p.parseBlock(base, root); perr != nil {
		return nil, perr
	}
	if p.pos < len(p.lines) {
		return nil, p.errAt(p.lines[p.pos], 0, "invalid indentation")
	}

	node, perr := root.build()
	if perr != nil {
		return nil, perr
	}

	return node, nil
}

func scanLines(text string) ([]srcLine, *ParseError) {
	var lines []srcLine
	for i, raw := range strings.Split(text, "\n") {
		number := i + 1
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		indent := 0
		for indent < len(raw) && raw[indent] == ' ' {
			indent++
		}
		if indent < len(raw) && raw[indent] == '\t' {
			return nil, &ParseError{
				Msg:    "tabs are not allowed in indentation",
				Line:   number,
				Column: indent + 1,
				Text:   raw,
			}
		}
		if indent%indentWidth != 0 {
			return nil, &ParseError{
				Msg:    "indentation must be a multiple of four spaces",
				Line:   number,
				Column: indent + 1,
				Text:   raw,
			}
		}

		content := raw[indent:]
		if stripped := strings.TrimRight(content, " \t"); stripped != content {
			return nil, &ParseError{
				Msg:    "trailing whitespace",
				Line:   number,
				Column: indent + len(stripped) + 1,
				Text:   raw,
			}
		}

		lines = append(lines, srcLine{
			number: number,
			level:  indent / indentWidth,
			text:   content,
			raw:    raw,
		})
	}

	return lines, nil
}

func (p *parser) errAt(ln srcLine, textOffset int, msg string) *ParseError {
	return &ParseError{
		Msg:    msg,
		Line:   ln.number,
		Column: ln.level*indentWidth + textOffset + 1,
		Text:   ln.raw,
	}
}

func (p *parser) parseBlock(level int, b *nodeBuilder) *ParseError {
	for p.pos < len(p.lines) {
		ln := p.lines[p.pos]
		if ln.level < level {
			return nil
		}
		if ln.level > level {
			return p.errAt(ln, 0, "invalid indentation")
		}
		p.pos++

		var perr *ParseError
		if strings.HasPrefix(ln.text, ":") {
			perr = p.parseDirective(ln, level, b)
		} else {
			perr = p.parseItem(ln, level, b)
		}
		if perr != nil {
			return perr
		}
	}

	return nil
}

//nolint:cyclop
func (p *parser) parseDirective(ln srcLine, level int, b *nodeBuilder) *ParseError {
	word, rest, restOffset := splitDirective(ln.text)

	buildErr := func(err error) *ParseError {
		if err == nil {
			return nil
		}

		return p.errAt(ln, 0, err.Error())
	}

	switch word {
	case "let":
		name, after, ok := p.takeLetName(rest)
		if !ok {
			return p.errAt(ln, restOffset, "expected an identifier after :let")
		}
		valueOffset := restOffset + (len(rest) - len(after))
		expr, perr := p.parseExprAt(ln, after, valueOffset)
		if perr != nil {
			return perr
		}

		return buildErr(b.letVar(name, expr))

	case "use":
		if !IsIdentifier(rest) {
			return p.errAt(ln, restOffset, "expected an identifier after :use")
		}

		return buildErr(b.use(rest))

	case "match":
		expr, perr := p.parseExprAt(ln, rest, restOffset)
		if perr != nil {
			return perr
		}

		return buildErr(b.setMatch(expr))

	case "avoid":
		expr, perr := p.parseExprAt(ln, rest, restOffset)
		if perr != nil {
			return perr
		}

		return buildErr(b.setAvoid(expr))

	case "owner":
		expr, perr := p.parseExprAt(ln, rest, restOffset)
		if perr != nil {
			return perr
		}

		return buildErr(b.setOwner(expr))

	case "group":
		expr, perr := p.parseExprAt(ln, rest, restOffset)
		if perr != nil {
			return perr
		}

		return buildErr(b.setGroup(expr))

	case "perms", "mode":
		mode, err := ParseMode(rest)
		if err != nil {
			return p.errAt(ln, restOffset, err.Error())
		}

		return buildErr(b.setMode(mode))

	case "source":
		expr, perr := p.parseExprAt(ln, rest, restOffset)
		if perr != nil {
			return perr
		}

		return buildErr(b.setSource(expr))

	case "target":
		expr, perr := p.parseExprAt(ln, rest, restOffset)
		if perr != nil {
			return perr
		}

		return buildErr(b.setTarget(expr))

	case "def":
		return p.parseDef(ln, level, b, rest, restOffset)

	default:
		return p.errAt(ln, 0, fmt.Sprintf("unknown directive %q", ":"+word))
	}
}

// splitDirective separates the directive word from its argument text,
// returning the argument's byte offset within the line.
func splitDirective(text string) (word, rest string, restOffset int) {
	body := text[1:]
	idx := strings.IndexByte(body, ' ')
	if idx < 0 {
		return body, "", len(text)
	}
	word = body[:idx]
	restOffset = 1 + idx
	for restOffset < len(text) && text[restOffset] == ' ' {
		restOffset++
	}

	return word, text[restOffset:], restOffset
}

// takeLetName splits "name = value" into the identifier and the value
// text, tolerating spaces around the equals sign.
func (p *parser) takeLetName(rest string) (name, value string, ok bool) {
	name, after := takeIdentifier(rest)
	if name == "" {
		return "", "", false
	}
	i := 0
	for i < len(after) && after[i] == ' ' {
		i++
	}
	if i >= len(after) || after[i] != '=' {
		return "", "", false
	}
	i++
	for i < len(after) && after[i] == ' ' {
		i++
	}

	return name, after[i:], true
}

func (p *parser) parseExprAt(ln srcLine, text string, textOffset int) (*Expression, *ParseError) {
	expr, lexErr := lexExpression(text)
	if lexErr != nil {
		return nil, p.errAt(ln, textOffset+lexErr.offset, lexErr.msg)
	}

	return expr, nil
}

func (p *parser) parseDef(ln srcLine, level int, b *nodeBuilder, rest string, restOffset int) *ParseError {
	name, after := takeIdentifier(rest)
	if name == "" {
		return p.errAt(ln, restOffset, "expected an identifier after :def")
	}
	offset := restOffset + len(name)

	isDir := false
	if strings.HasPrefix(after, "/") {
		isDir = true
		after = after[1:]
		offset++
	}

	var symlink *Expression
	if after != "" {
		target, perr := p.parseArrow(ln, after, offset, false)
		if perr != nil {
			return perr
		}
		symlink = target
	}

	child := newNodeBuilder(ln, isDir, true, false, symlink)
	if perr := p.parseBlock(level+1, child); perr != nil {
		return p.wrapDef(ln, name, perr)
	}
	node, perr := child.build()
	if perr != nil {
		return p.wrapDef(ln, name, perr)
	}
	if err := b.define(name, node); err != nil {
		return p.errAt(ln, 0, err.Error())
	}

	return nil
}

func (p *parser) wrapDef(ln srcLine, name string, cause *ParseError) *ParseError {
	perr := p.errAt(ln, 0, fmt.Sprintf("error within definition %q", name))
	perr.Err = cause

	return perr
}

func (p *parser) parseItem(ln srcLine, level int, b *nodeBuilder) *ParseError {
	binding, rest, offset, perr := p.parseItemBinding(ln)
	if perr != nil {
		return perr
	}

	isDir := false
	if strings.HasPrefix(rest, "/") {
		isDir = true
		rest = rest[1:]
		offset++
	}

	var symlink *Expression
	if rest != "" {
		target, perr := p.parseArrow(ln, rest, offset, true)
		if perr != nil {
			return perr
		}
		symlink = target
	}

	child := newNodeBuilder(ln, isDir, false, false, symlink)
	if perr := p.parseBlock(level+1, child); perr != nil {
		return perr
	}
	node, perr := child.build()
	if perr != nil {
		return perr
	}
	if err := b.addEntry(binding, node); err != nil {
		return p.errAt(ln, 0, err.Error())
	}

	return nil
}

// parseItemBinding reads the leading static name or $variable of an item
// header, returning the unconsumed remainder and its byte offset.
func (p *parser) parseItemBinding(ln srcLine) (Binding, string, int, *ParseError) {
	text := ln.text
	if text[0] == '$' {
		name, rest := takeIdentifier(text[1:])
		if name == "" {
			return Binding{}, "", 0, p.errAt(ln, 1, "expected an identifier after '$'")
		}

		return Binding{Name: name, IsVariable: true}, rest, 1 + len(name), nil
	}

	i := 0
	for i < len(text) && isStaticNameChar(text[i]) {
		i++
	}
	if i == 0 {
		return Binding{}, "", 0, p.errAt(ln, 0, "expected an item name")
	}

	return Binding{Name: text[:i]}, text[i:], i, nil
}

// isStaticNameChar reports whether c may appear in a static item name.
func isStaticNameChar(c byte) bool {
	return isIdentChar(c) || strings.IndexByte("-.@^+%=", c) >= 0
}

// parseArrow reads a "-> target" tail. Item headers require a space on
// both sides of the arrow, :def headers accept it without.
func (p *parser) parseArrow(ln srcLine, rest string, restOffset int, needSpace bool) (*Expression, *ParseError) {
	i := 0
	for i < len(rest) && rest[i] == ' ' {
		i++
	}
	if needSpace && i == 0 {
		return nil, p.errAt(ln, restOffset, "unexpected character after item")
	}
	if !strings.HasPrefix(rest[i:], "->") {
		return nil, p.errAt(ln, restOffset+i, "unexpected character after item")
	}
	i += 2

	j := i
	for j < len(rest) && rest[j] == ' ' {
		j++
	}
	if needSpace && j == i {
		return nil, p.errAt(ln, restOffset+i, "expected a space after '->'")
	}

	return p.parseExprAt(ln, rest[j:], restOffset+j)
}
