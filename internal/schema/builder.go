package schema

import (
	"errors"
	"fmt"
)

// nodeBuilder accumulates the directives and child entries of one schema
// node while its block is being parsed, enforcing the structural rules
// before the node is built.
type nodeBuilder struct {
	header   srcLine
	isDir    bool
	isDef    bool
	topLevel bool

	match   *Expression
	avoid   *Expression
	symlink *Expression
	uses    []string
	attrs   Attributes
	source  *Expression

	vars    map[string]*Expression
	defs    map[string]*Node
	entries []Entry
}

func newNodeBuilder(header srcLine, isDir, isDef, topLevel bool, symlink *Expression) *nodeBuilder {
	b := &nodeBuilder{
		header:   header,
		isDir:    isDir,
		isDef:    isDef,
		topLevel: topLevel,
		symlink:  symlink,
	}
	if isDir {
		b.vars = make(map[string]*Expression)
		b.defs = make(map[string]*Node)
	}

	return b
}

func (b *nodeBuilder) setMatch(e *Expression) error {
	if b.match != nil {
		return errors.New(":match occurs twice")
	}
	if b.isDef {
		return errors.New(":match cannot be used in definition")
	}
	if b.topLevel {
		return errors.New(":match cannot be used at top level")
	}
	b.match = e

	return nil
}

func (b *nodeBuilder) setAvoid(e *Expression) error {
	if b.avoid != nil {
		return errors.New(":avoid occurs twice")
	}
	if b.isDef {
		return errors.New(":avoid cannot be used in definition")
	}
	if b.topLevel {
		return errors.New(":avoid cannot be used at top level")
	}
	b.avoid = e

	return nil
}

func (b *nodeBuilder) letVar(name string, e *Expression) error {
	if !b.isDir {
		return errors.New("cannot use :let to set variables inside files (add a '/' to make it a directory)")
	}
	if _, ok := b.vars[name]; ok {
		return fmt.Errorf(":let %s occurs twice", name)
	}
	b.vars[name] = e

	return nil
}

func (b *nodeBuilder) define(name string, node *Node) error {
	if !b.isDir {
		return errors.New("cannot :def sub-trees inside files (add a '/' to make it a directory)")
	}
	if _, ok := b.defs[name]; ok {
		return fmt.Errorf(":def %s occurs twice", name)
	}
	b.defs[name] = node

	return nil
}

func (b *nodeBuilder) use(name string) error {
	if b.source != nil {
		return errors.New(":use cannot be used in conjunction with :source")
	}
	b.uses = append(b.uses, name)

	return nil
}

func (b *nodeBuilder) setOwner(e *Expression) error {
	if b.attrs.Owner != nil {
		return errors.New(":owner occurs twice")
	}
	b.attrs.Owner = e

	return nil
}

func (b *nodeBuilder) setGroup(e *Expression) error {
	if b.attrs.Group != nil {
		return errors.New(":group occurs twice")
	}
	b.attrs.Group = e

	return nil
}

func (b *nodeBuilder) setMode(mode Mode) error {
	if b.attrs.Mode != nil {
		return errors.New(":perms occurs twice")
	}
	b.attrs.Mode = &mode

	return nil
}

func (b *nodeBuilder) setSource(e *Expression) error {
	if b.isDir {
		return errors.New(":source can only be used for files, not directories")
	}
	if len(b.uses) > 0 {
		return errors.New(":source cannot be used in conjunction with :use")
	}
	if b.source != nil {
		return errors.New(":source occurs twice")
	}
	b.source = e

	return nil
}

func (b *nodeBuilder) setTarget(e *Expression) error {
	if b.topLevel {
		return errors.New(":target cannot be used at top level")
	}
	if b.symlink != nil {
		return errors.New(":target occurs twice")
	}
	b.symlink = e

	return nil
}

func (b *nodeBuilder) addEntry(binding Binding, node *Node) error {
	if !b.isDir {
		return errors.New("files cannot have child items (add a '/' to make it a directory)")
	}
	b.entries = append(b.entries, Entry{Binding: binding, Node: node})

	return nil
}

func (b *nodeBuilder) build() (*Node, *ParseError) {
	node := &Node{
		Line:       b.header.number,
		Match:      b.match,
		Avoid:      b.avoid,
		Symlink:    b.symlink,
		Uses:       b.uses,
		Attributes: b.attrs,
	}

	if b.isDir {
		sortEntries(b.entries)
		node.Directory = &DirectorySchema{
			Vars:    b.vars,
			Defs:    b.defs,
			Entries: b.entries,
		}

		return node, nil
	}

	if b.source == nil && b.symlink == nil {
		return nil, &ParseError{
			Msg:    "file must have a :source (or add a '/' to make it a directory)",
			Line:   b.header.number,
			Column: b.header.level*indentWidth + 1,
			Text:   b.header.raw,
		}
	}
	node.File = &FileSchema{Source: b.source}

	return node, nil
}
