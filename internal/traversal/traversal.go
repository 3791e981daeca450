// Package traversal walks schema trees against a filesystem capability,
// producing the entries a schema prescribes and reporting a per-path
// verdict on everything it touches. Existing state that already matches
// the schema is left alone; state that contradicts it marks a conflict
// and its subtree is skipped, while the rest of the run carries on.
package traversal

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/planterhq/planter/internal/config"
	"github.com/planterhq/planter/internal/filesystem"
	"github.com/planterhq/planter/internal/schema"
)

// Extent controls how much of a schema a traversal produces.
type Extent uint8

const (
	// ExtentFull produces everything the schema prescribes at and below
	// the target path, validating existing entries along the way.
	ExtentFull Extent = iota + 1
	// ExtentRestricted produces only the entries on the way to the
	// target path and leaves siblings alone. Symlink targets are
	// planted this way.
	ExtentRestricted
)

func (e Extent) String() string {
	switch e {
	case ExtentFull:
		return "full"
	case ExtentRestricted:
		return "restricted"
	default:
		return "unknown"
	}
}

// Handler drives schema traversals over one filesystem capability.
type Handler struct {
	config *config.Config
	fs     filesystem.Filesystem
}

// NewHandler returns a traversal handler provisioning through the given
// capability.
func NewHandler(configHandler *config.Config, fsHandler filesystem.Filesystem) *Handler {
	return &Handler{config: configHandler, fs: fsHandler}
}

// Params carries one provisioning request.
type Params struct {
	// Target is the absolute path to produce.
	Target string
	// Vars presets variable values by name. A preset value must satisfy
	// the pattern of any binding it reaches.
	Vars map[string]string
	// Owner and Group seed the ownership inherited wherever no schema
	// attribute overrides it. Both default to root.
	Owner string
	Group string
	// Extent defaults to ExtentFull.
	Extent Extent
}

// Traverse produces the target path and whatever else its schema
// prescribes, recording a verdict for every touched path in the returned
// report. The report is returned non-nil even on error, holding whatever
// was settled before the run stopped.
func (h *Handler) Traverse(ctx context.Context, params Params) (*Report, error) {
	r := &run{
		handler: h,
		fs:      h.fs,
		report:  newReport(),
		vars:    params.Vars,
		owner:   params.Owner,
		group:   params.Group,
	}
	if r.owner == "" {
		r.owner = "root"
	}
	if r.group == "" {
		r.group = "root"
	}
	extent := params.Extent
	if extent == 0 {
		extent = ExtentFull
	}

	target := path.Clean(params.Target)
	if !strings.HasPrefix(target, "/") {
		return r.report, fmt.Errorf("(traversal) target %q: %w", params.Target, filesystem.ErrNotAbsolute)
	}

	if err := r.traverse(ctx, target, extent); err != nil {
		return r.report, err
	}

	return r.report, nil
}

// run is the state of one Traverse invocation: the report under
// construction, the preset variables and the chain of symlinks currently
// being planted.
type run struct {
	handler *Handler
	fs      filesystem.Filesystem
	report  *Report
	vars    map[string]string
	owner   string
	group   string
	links   []string
}

// traverse resolves the stem covering a target and walks its schema from
// the stem root down.
func (r *run) traverse(ctx context.Context, target string, extent Extent) error {
	node, root, err := r.handler.config.SchemaFor(target)
	if err != nil {
		return err
	}

	slog.Debug("Traversing a schema stem",
		"target", target,
		"root", root.Path(),
		"extent", extent,
	)

	stack := newStack(r.owner, r.group)
	if len(r.vars) > 0 {
		stack = stack.pushValues(r.vars, true)
	}
	if err := validateTree(stack, node); err != nil {
		return err
	}

	at, err := filesystem.PlantPath(root, root.Path())
	if err != nil {
		return err
	}
	remaining := strings.TrimPrefix(strings.TrimPrefix(target, root.Path()), "/")

	return r.traverseNode(ctx, stack, node, at, remaining, extent)
}

// traverseNode produces a single entry: it expands :use references,
// settles ownership, creates or reconciles the entry and descends into
// directory children. Symlink nodes plant their target first and apply
// the rest of the node to it.
//
//nolint:cyclop
func (r *run) traverseNode(
	ctx context.Context,
	stack *stackFrame,
	node *schema.Node,
	at *filesystem.PlantedPath,
	remaining string,
	extent Extent,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	expanded, err := r.expandUses(stack, node)
	if err != nil {
		return err
	}
	resolved, err := r.resolveAttrs(stack, node, mergeAttributes(expanded), at)
	if err != nil {
		return err
	}
	frame := stack.pushOwnership(resolved.owner, resolved.group)

	createAt := at
	if link := firstSymlink(expanded); link != nil {
		target, err := evaluate(link, frame, at)
		if err != nil {
			return err
		}
		if !strings.HasPrefix(target, "/") {
			if !plainLinkNode(expanded) {
				return fmt.Errorf("(traversal) relative target %q for %q: %w",
					target, at.Absolute(), ErrRelativeLink)
			}
			r.ensureSymlink(at, target)

			return nil
		}

		if !r.pushLink(at.Absolute()) {
			res := r.report.ensure(at.Absolute())
			res.Kind = filesystem.KindSymlink
			res.Target = target
			r.conflict(res, fmt.Errorf("(traversal) linking %q to %q loops or chains more than %d links: %w",
				at.Absolute(), target, MaxLinkDepth, ErrSymlinkCycle))

			return nil
		}
		defer r.popLink()

		planted, err := r.plantLinkTarget(ctx, at, target)
		if err != nil {
			return err
		}
		if planted == nil {
			return nil
		}
		if !r.ensureSymlink(at, target) {
			return nil
		}
		createAt = planted
	}

	if node.IsDirectory() {
		if !r.ensureDirectory(createAt, resolved) {
			return nil
		}

		return r.traverseDirectory(ctx, frame, expanded, at, remaining, extent)
	}

	if remaining != "" {
		return fmt.Errorf("(traversal) %q is a file, cannot produce %q within it: %w",
			at.Absolute(), remaining, ErrUnproducible)
	}
	sourcePath := ""
	if source := firstFileSource(expanded); source != nil {
		sourcePath, err = evaluate(source, frame, at)
		if err != nil {
			return err
		}
	}
	r.ensureFile(createAt, resolved, sourcePath)

	return nil
}

// plantLinkTarget makes sure an absolute symlink target exists, planting
// it through its own stem's schema when missing. It returns the target
// planted under its root, or nil when the target could not be produced
// and the link was recorded as a conflict.
func (r *run) plantLinkTarget(ctx context.Context, at *filesystem.PlantedPath, target string) (*filesystem.PlantedPath, error) {
	_, targetRoot, err := r.handler.config.SchemaFor(target)
	if err != nil {
		return nil, fmt.Errorf("(traversal) no schema covers symlink target %q (link %q): %w",
			target, at.Absolute(), err)
	}

	if !r.fs.Exists(target) {
		if err := r.traverse(ctx, target, ExtentRestricted); err != nil {
			return nil, err
		}
		if !r.fs.Exists(target) {
			res := r.report.ensure(at.Absolute())
			res.Kind = filesystem.KindSymlink
			res.Target = target
			r.conflict(res, fmt.Errorf("(traversal) symlink target %q could not be produced: %w",
				target, ErrConflict))

			return nil, nil
		}
	}

	return filesystem.PlantPath(targetRoot, target)
}

// expandUses resolves the :use references of a node into the list of
// nodes contributing to it, the node itself first. References resolve
// within the node's own scope, so a directory may use a definition it
// declares itself.
func (r *run) expandUses(stack *stackFrame, node *schema.Node) ([]*schema.Node, error) {
	expanded := []*schema.Node{node}
	if len(node.Uses) == 0 {
		return expanded, nil
	}

	scope := stack
	if node.IsDirectory() {
		scope = stack.pushDirectory(node.Directory)
	}
	seen := map[*schema.Node]bool{node: true}
	for _, name := range node.Uses {
		def, ok := scope.findDefinition(name)
		if !ok {
			return nil, fmt.Errorf("(traversal) no definition (:def) found for %q: %w", name, ErrNoDefinition)
		}
		if seen[def] {
			continue
		}
		seen[def] = true
		expanded = append(expanded, def)
	}

	return expanded, nil
}

// mergeAttributes folds the attributes of a node and its used
// definitions, earliest contributor first.
func mergeAttributes(expanded []*schema.Node) schema.Attributes {
	var merged schema.Attributes
	for _, node := range expanded {
		if merged.Owner == nil {
			merged.Owner = node.Attributes.Owner
		}
		if merged.Group == nil {
			merged.Group = node.Attributes.Group
		}
		if merged.Mode == nil {
			merged.Mode = node.Attributes.Mode
		}
	}

	return merged
}

// resolveAttrs settles the ownership and mode of the entry a node
// produces. Owner and group evaluate in the enclosing scope and pass
// through the configured name maps; absent attributes inherit the
// enclosing ownership. The mode never inherits, it falls back to the
// default of the entry's kind.
func (r *run) resolveAttrs(
	stack *stackFrame,
	node *schema.Node,
	attrs schema.Attributes,
	at *filesystem.PlantedPath,
) (resolvedAttrs, error) {
	resolved := resolvedAttrs{owner: stack.owner, group: stack.group}

	if attrs.Owner != nil {
		owner, err := evaluate(attrs.Owner, stack, at)
		if err != nil {
			return resolved, err
		}
		resolved.owner = r.handler.config.MapUser(owner)
	}
	if attrs.Group != nil {
		group, err := evaluate(attrs.Group, stack, at)
		if err != nil {
			return resolved, err
		}
		resolved.group = r.handler.config.MapGroup(group)
	}

	switch {
	case attrs.Mode != nil:
		resolved.mode = *attrs.Mode
	case node.IsDirectory():
		resolved.mode = schema.DefaultDirectoryMode
	default:
		resolved.mode = schema.DefaultFileMode
	}

	return resolved, nil
}

// firstSymlink returns the symlink expression of the first contributor
// declaring one.
func firstSymlink(expanded []*schema.Node) *schema.Expression {
	for _, node := range expanded {
		if node.Symlink != nil {
			return node.Symlink
		}
	}

	return nil
}

// firstFileSource returns the :source expression of the first
// contributor declaring one.
func firstFileSource(expanded []*schema.Node) *schema.Expression {
	for _, node := range expanded {
		if node.File != nil && node.File.Source != nil {
			return node.File.Source
		}
	}

	return nil
}

// plainLinkNode reports whether a node describes nothing beyond the link
// itself: a directory without attributes, variables, definitions or
// entries. Relative symlink targets skip schema resolution entirely, so
// they are only allowed on such nodes.
func plainLinkNode(expanded []*schema.Node) bool {
	for _, node := range expanded {
		if node.File != nil || len(node.Uses) > 0 || !node.Attributes.IsEmpty() {
			return false
		}
		if node.Directory == nil {
			continue
		}
		d := node.Directory
		if len(d.Entries) > 0 || len(d.Vars) > 0 || len(d.Defs) > 0 {
			return false
		}
	}

	return true
}

// pushLink adds a link to the chain currently being planted, refusing
// revisits and chains beyond MaxLinkDepth.
func (r *run) pushLink(link string) bool {
	if len(r.links) >= MaxLinkDepth {
		return false
	}
	for _, seen := range r.links {
		if seen == link {
			return false
		}
	}
	r.links = append(r.links, link)

	return true
}

func (r *run) popLink() {
	r.links = r.links[:len(r.links)-1]
}
