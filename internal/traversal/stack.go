package traversal

import (
	"github.com/planterhq/planter/internal/schema"
)

// sourceKind discriminates where a stack frame's bindings come from.
type sourceKind uint8

const (
	sourceOwnership sourceKind = iota + 1
	sourceDirectory
	sourceBinding
	sourceValues
)

// boundValue is a variable lookup result: either text already settled or
// an expression still to be expanded at the point of use. external marks
// values the caller supplied rather than the schema.
type boundValue struct {
	text     string
	expr     *schema.Expression
	external bool
}

// stackFrame scopes variable bindings and ownership along a descent.
// Each frame inherits the owner and group of its parent until a node's
// attributes override them.
type stackFrame struct {
	parent    *stackFrame
	kind      sourceKind
	directory *schema.DirectorySchema
	name      string
	value     string
	values    map[string]string
	external  bool
	owner     string
	group     string
}

// newStack opens a traversal stack carrying the initial ownership.
func newStack(owner string, group string) *stackFrame {
	return &stackFrame{kind: sourceOwnership, owner: owner, group: group}
}

func (f *stackFrame) push(frame *stackFrame) *stackFrame {
	frame.parent = f
	frame.owner = f.owner
	frame.group = f.group

	return frame
}

// pushDirectory scopes the :let bindings and :def lookups of a directory.
func (f *stackFrame) pushDirectory(directory *schema.DirectorySchema) *stackFrame {
	return f.push(&stackFrame{kind: sourceDirectory, directory: directory})
}

// pushBinding records the name a variable binding captured.
func (f *stackFrame) pushBinding(name string, value string) *stackFrame {
	return f.push(&stackFrame{kind: sourceBinding, name: name, value: value})
}

// pushValues scopes a set of preset values. Values marked external come
// from outside the schema and must satisfy the patterns they bind
// against.
func (f *stackFrame) pushValues(values map[string]string, external bool) *stackFrame {
	return f.push(&stackFrame{kind: sourceValues, values: values, external: external})
}

// pushOwnership overrides the owner and group deeper frames inherit.
// Empty strings keep the inherited value.
func (f *stackFrame) pushOwnership(owner string, group string) *stackFrame {
	frame := f.push(&stackFrame{kind: sourceOwnership})
	if owner != "" {
		frame.owner = owner
	}
	if group != "" {
		frame.group = group
	}

	return frame
}

// lookup resolves a variable to its innermost binding.
func (f *stackFrame) lookup(name string) (boundValue, bool) {
	for frame := f; frame != nil; frame = frame.parent {
		switch frame.kind {
		case sourceDirectory:
			if expr, ok := frame.directory.Var(name); ok {
				return boundValue{expr: expr}, true
			}
		case sourceBinding:
			if frame.name == name {
				return boundValue{text: frame.value}, true
			}
		case sourceValues:
			if value, ok := frame.values[name]; ok {
				return boundValue{text: value, external: frame.external}, true
			}
		case sourceOwnership:
		}
	}

	return boundValue{}, false
}

// findDefinition resolves a :def name to its innermost definition.
func (f *stackFrame) findDefinition(name string) (*schema.Node, bool) {
	for frame := f; frame != nil; frame = frame.parent {
		if frame.kind != sourceDirectory {
			continue
		}
		if node, ok := frame.directory.Def(name); ok {
			return node, true
		}
	}

	return nil, false
}
