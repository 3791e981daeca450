// Package schema provides the tree description language that drives the
// provisioner: the node structures, the expression model, the entry
// attributes and the text parser producing them.
package schema

import (
	"fmt"
	"sort"
)

// Node describes a single entry of a schema tree, either a directory with
// sub-entries or a file with a content source. A node may additionally be
// declared a symlink, in which case the description applies to the target.
type Node struct {
	Line       int
	Match      *Expression
	Avoid      *Expression
	Symlink    *Expression
	Uses       []string
	Attributes Attributes
	Directory  *DirectorySchema
	File       *FileSchema
}

func (n *Node) IsDirectory() bool {
	return n.Directory != nil
}

func (n *Node) String() string {
	if n.IsDirectory() {
		return fmt.Sprintf("directory schema (line %d, %d entries)", n.Line, len(n.Directory.Entries))
	}

	return fmt.Sprintf("file schema (line %d)", n.Line)
}

// DirectorySchema holds the directory-specific parts of a node: the
// variables bound with :let, the sub-schemas named with :def and the
// child entries in evaluation order (static bindings before dynamic ones).
type DirectorySchema struct {
	Vars    map[string]*Expression
	Defs    map[string]*Node
	Entries []Entry
}

func (d *DirectorySchema) Var(name string) (*Expression, bool) {
	expr, ok := d.Vars[name]

	return expr, ok
}

func (d *DirectorySchema) Def(name string) (*Node, bool) {
	node, ok := d.Defs[name]

	return node, ok
}

// FileSchema holds the file-specific parts of a node. Source is nil only
// for symlink entries, whose target file is produced by its own schema.
type FileSchema struct {
	Source *Expression
}

// Entry pairs a binding with the node it produces.
type Entry struct {
	Binding Binding
	Node    *Node
}

// Binding names a child entry. A static binding matches exactly one name,
// a variable binding captures any name admitted by the node's :match
// pattern and binds it for the subtree.
type Binding struct {
	Name       string
	IsVariable bool
}

func (b Binding) String() string {
	if b.IsVariable {
		return "$" + b.Name
	}

	return b.Name
}

// sortEntries orders child entries for traversal: static bindings first,
// each group alphabetically, preserving source order between equals.
func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Binding, entries[j].Binding
		if a.IsVariable != b.IsVariable {
			return !a.IsVariable
		}

		return a.Name < b.Name
	})
}
