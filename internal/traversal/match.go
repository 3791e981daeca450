package traversal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/planterhq/planter/internal/filesystem"
	"github.com/planterhq/planter/internal/schema"
)

// Candidate names come from three places: the directory on disk, the
// component of the target path being sought, and the bindings of the
// schema itself.
const (
	originSchema = "the schema"
	originDisk   = "the disk"
	originTarget = "the target path"
)

// childEntry is one binding a directory offers, paired with the scope it
// was declared in and its compiled admission pattern.
type childEntry struct {
	binding schema.Binding
	node    *schema.Node
	frame   *stackFrame
	pattern *compiledPattern
}

// candidate is a name to be matched against a directory's bindings.
type candidate struct {
	name   string
	origin string
}

// candidateSet is an insertion-ordered name set, so traversal order does
// not depend on map iteration.
type candidateSet struct {
	ordered []candidate
	seen    map[string]bool
}

func newCandidateSet() *candidateSet {
	return &candidateSet{seen: make(map[string]bool)}
}

func (s *candidateSet) add(name string, origin string) {
	if name == "" || s.seen[name] {
		return
	}
	s.seen[name] = true
	s.ordered = append(s.ordered, candidate{name: name, origin: origin})
}

// traverseDirectory produces the children of a directory node: every
// name the schema, the disk or the target path puts forward is matched
// against the directory's bindings and descended into. In restricted
// extent only the sought component is considered.
func (r *run) traverseDirectory(
	ctx context.Context,
	frame *stackFrame,
	expanded []*schema.Node,
	at *filesystem.PlantedPath,
	remaining string,
	extent Extent,
) error {
	if extent == ExtentRestricted && remaining == "" {
		return nil
	}

	sought, rest := splitPath(remaining)

	children, err := r.collectChildren(frame, expanded, at)
	if err != nil {
		return err
	}
	names, err := r.collectCandidates(children, at, sought, extent)
	if err != nil {
		return err
	}

	for _, c := range names.ordered {
		if extent == ExtentRestricted && c.name != sought {
			continue
		}
		if err := r.matchName(ctx, children, at, c, sought, rest, extent); err != nil {
			return err
		}
	}

	return nil
}

// collectChildren gathers the bindings of a node and everything it uses,
// the node's own first. Each contributor's entries stay scoped to that
// contributor's directory frame.
func (r *run) collectChildren(frame *stackFrame, expanded []*schema.Node, at *filesystem.PlantedPath) ([]childEntry, error) {
	var children []childEntry
	for _, exp := range expanded {
		if exp.Directory == nil {
			continue
		}
		cFrame := frame.pushDirectory(exp.Directory)
		for _, entry := range exp.Directory.Entries {
			pattern, err := compilePattern(entry.Node, cFrame, at)
			if err != nil {
				return nil, err
			}
			children = append(children, childEntry{
				binding: entry.Binding,
				node:    entry.Node,
				frame:   cFrame,
				pattern: pattern,
			})
		}
	}

	return children, nil
}

// collectCandidates assembles the names to match: static binding names,
// the values of variable bindings already bound in scope, the directory
// listing and the sought path component. A bound value failing its own
// pattern is dropped, unless the value was supplied by the caller, which
// is a hard error.
func (r *run) collectCandidates(
	children []childEntry,
	at *filesystem.PlantedPath,
	sought string,
	extent Extent,
) (*candidateSet, error) {
	names := newCandidateSet()

	for _, child := range children {
		if !child.binding.IsVariable {
			names.add(child.binding.Name, originSchema)

			continue
		}
		value, ok := child.frame.lookup(child.binding.Name)
		if !ok {
			continue
		}
		text := value.text
		if value.expr != nil {
			expanded, err := evaluate(value.expr, child.frame, at)
			if err != nil {
				continue
			}
			text = expanded
		}
		if !child.pattern.matches(text) {
			if value.external {
				return nil, fmt.Errorf("(traversal) provided value %q for variable %q does not match its pattern: %w",
					text, child.binding.Name, ErrPatternMismatch)
			}

			continue
		}
		names.add(text, originSchema)
	}

	if extent == ExtentFull && r.fs.IsDirectory(at.Absolute()) {
		// A listing failure leaves the set as it is; creation of the
		// missing entries will surface the real problem.
		listing, err := r.fs.ListDirectory(at.Absolute())
		if err == nil {
			for _, entry := range listing {
				names.add(entry.Name, originDisk)
			}
		}
	}

	names.add(sought, originTarget)

	return names, nil
}

// matchName resolves one name against the directory's bindings and
// descends into the matched schema node. Static bindings beat variable
// ones; a name admitted by several variable bindings is a conflict on
// that entry alone.
func (r *run) matchName(
	ctx context.Context,
	children []childEntry,
	at *filesystem.PlantedPath,
	c candidate,
	sought string,
	rest string,
	extent Extent,
) error {
	var statics, dynamics []childEntry
	for _, child := range children {
		if child.binding.IsVariable {
			if child.pattern.matches(c.name) {
				dynamics = append(dynamics, child)
			}

			continue
		}
		if child.binding.Name == c.name {
			statics = append(statics, child)
		}
	}

	childAt, err := at.Join(c.name)
	if err != nil {
		return err
	}
	childRemaining := ""
	if c.name == sought {
		childRemaining = rest
	}

	switch {
	case len(statics) > 1:
		return fmt.Errorf("(traversal) %q in %q matches multiple static bindings: %w",
			c.name, at.Absolute(), ErrMultipleMatches)
	case len(statics) == 1:
		return r.traverseNode(ctx, statics[0].frame, statics[0].node, childAt, childRemaining, extent)
	case len(dynamics) > 1:
		res := r.report.ensure(childAt.Absolute())
		r.conflict(res, fmt.Errorf("(traversal) %q in %q matches multiple dynamic bindings %q and %q: %w",
			c.name, at.Absolute(), dynamics[0].binding, dynamics[1].binding, ErrMultipleMatches))

		return nil
	case len(dynamics) == 1:
		child := dynamics[0]
		bound := child.frame.pushBinding(child.binding.Name, c.name)

		return r.traverseNode(ctx, bound, child.node, childAt, childRemaining, extent)
	case c.name == sought:
		return fmt.Errorf("(traversal) no entry within %q can produce %q (considered: %s): %w",
			at.Absolute(), c.name, consideredBindings(children), ErrUnproducible)
	default:
		slog.Warn("Skipped an entry: nothing in the schema matches it",
			"name", c.name,
			"origin", c.origin,
			"path", at.Absolute(),
		)

		return nil
	}
}

func consideredBindings(children []childEntry) string {
	if len(children) == 0 {
		return "none"
	}
	names := make([]string, 0, len(children))
	for _, child := range children {
		names = append(names, child.binding.String())
	}

	return strings.Join(names, ", ")
}

// splitPath takes the first component off a relative path.
func splitPath(p string) (first string, rest string) {
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return p[:i], p[i+1:]
	}

	return p, ""
}
