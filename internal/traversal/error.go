package traversal

import "errors"

// MaxLinkDepth bounds how many symlinks one traversal may chain through
// while planting link targets.
const MaxLinkDepth = 16

var (
	ErrUndefinedVariable = errors.New("undefined variable")
	ErrPatternMismatch   = errors.New("value does not match the binding pattern")
	ErrConflict          = errors.New("existing entry conflicts with the schema")
	ErrSymlinkCycle      = errors.New("symlink chain loops or grows too long")
	ErrNoDefinition      = errors.New("no definition (:def) found")
	ErrUnproducible      = errors.New("no schema entry can produce the path")
	ErrMultipleMatches   = errors.New("name matches multiple bindings")
	ErrEvalDepth         = errors.New("expression expands too deeply")
	ErrRelativeLink      = errors.New("relative symlink targets need a plain directory schema")
)
