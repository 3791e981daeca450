package traversal

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/planterhq/planter/internal/filesystem"
	"github.com/planterhq/planter/internal/schema"
)

// resolvedAttrs is the ownership and mode a node settled on for the
// entry it produces.
type resolvedAttrs struct {
	owner string
	group string
	mode  schema.Mode
}

// conflict records a conflicting path; the subtree below it is skipped
// while the rest of the traversal carries on.
func (r *run) conflict(res *PathResult, err error) {
	if res.Err == nil {
		res.Err = err
	}
	res.mark(OutcomeConflict)

	slog.Warn("Skipped a subtree: existing state conflicts with the schema",
		"path", res.Path,
		"error", err,
	)
}

// ensureDirectory brings a directory entry into existence, or reconciles
// the attributes of an existing one. It reports whether the traversal
// may descend below the path.
func (r *run) ensureDirectory(at *filesystem.PlantedPath, attrs resolvedAttrs) bool {
	p := at.Absolute()
	res := r.report.ensure(p)
	res.Kind = filesystem.KindDirectory

	switch {
	case r.fs.IsDirectory(p):
		return r.reconcileAttributes(res, p, attrs)
	case r.fs.Exists(p):
		r.conflict(res, fmt.Errorf("(traversal) %q exists but is not a directory: %w", p, ErrConflict))

		return false
	default:
		if err := r.fs.CreateDirectory(p); err != nil {
			r.conflict(res, fmt.Errorf("(traversal) failed to create directory %q: %w", p, err))

			return false
		}
		res.record(Operation{Kind: OpCreateDirectory, Path: p})
		res.mark(OutcomeCreated)

		return r.applyAttributes(res, p, attrs)
	}
}

// ensureFile brings a file entry into existence from its source, or
// checks that an existing file already carries the prescribed content.
// An empty sourcePath means the node has no content of its own; the file
// then only has to exist.
func (r *run) ensureFile(at *filesystem.PlantedPath, attrs resolvedAttrs, sourcePath string) {
	p := at.Absolute()
	res := r.report.ensure(p)
	res.Kind = filesystem.KindFile

	if r.fs.IsFile(p) {
		if sourcePath != "" {
			content, err := r.sourceContent(sourcePath)
			if err != nil {
				r.conflict(res, fmt.Errorf("(traversal) failed to read source %q for %q: %w", sourcePath, p, err))

				return
			}
			existing, err := r.fs.ReadFile(p)
			if err != nil {
				r.conflict(res, fmt.Errorf("(traversal) failed to read %q: %w", p, err))

				return
			}
			if filesystem.ContentDigest(existing) != filesystem.ContentDigest(content) {
				r.conflict(res, fmt.Errorf("(traversal) %q exists with different content: %w", p, ErrConflict))

				return
			}
		}
		r.reconcileAttributes(res, p, attrs)

		return
	}
	if r.fs.Exists(p) {
		r.conflict(res, fmt.Errorf("(traversal) %q exists but is not a file: %w", p, ErrConflict))

		return
	}
	if sourcePath == "" {
		r.conflict(res, fmt.Errorf("(traversal) %q has no :source to produce it from: %w", p, ErrConflict))

		return
	}

	content, err := r.sourceContent(sourcePath)
	if err != nil {
		r.conflict(res, fmt.Errorf("(traversal) failed to read source %q for %q: %w", sourcePath, p, err))

		return
	}
	if err := r.fs.CreateFile(p, content); err != nil {
		r.conflict(res, fmt.Errorf("(traversal) failed to create file %q: %w", p, err))

		return
	}
	res.record(Operation{Kind: OpCreateFile, Path: p, Size: len(content)})
	res.mark(OutcomeCreated)
	r.applyAttributes(res, p, attrs)
}

// sourceContent resolves the content a :source value prescribes. A
// value beginning with '=' carries the content itself after the marker,
// anything else names a file to read.
func (r *run) sourceContent(source string) ([]byte, error) {
	if text, ok := strings.CutPrefix(source, "="); ok {
		return []byte(text), nil
	}

	return r.fs.ReadFile(source)
}

// ensureSymlink brings a symlink into existence. An existing link
// already pointing at the target is left alone; anything else in the way
// is a conflict. It reports whether the link is in place.
func (r *run) ensureSymlink(at *filesystem.PlantedPath, target string) bool {
	p := at.Absolute()
	res := r.report.ensure(p)
	res.Kind = filesystem.KindSymlink
	res.Target = target

	if r.fs.IsLink(p) {
		existing, err := r.fs.ReadLink(p)
		if err != nil {
			r.conflict(res, fmt.Errorf("(traversal) failed to read link %q: %w", p, err))

			return false
		}
		if existing != target {
			r.conflict(res, fmt.Errorf("(traversal) %q points at %q, not %q: %w", p, existing, target, ErrConflict))

			return false
		}
		res.mark(OutcomeAlreadyMatches)

		return true
	}
	if r.fs.Exists(p) {
		r.conflict(res, fmt.Errorf("(traversal) %q exists but is not a symlink: %w", p, ErrConflict))

		return false
	}
	if err := r.fs.CreateSymlink(p, target); err != nil {
		r.conflict(res, fmt.Errorf("(traversal) failed to create link %q: %w", p, err))

		return false
	}
	res.record(Operation{Kind: OpCreateSymlink, Path: p, Target: target})
	res.mark(OutcomeCreated)

	return true
}

// applyAttributes sets ownership and permissions on a freshly created
// entry.
func (r *run) applyAttributes(res *PathResult, p string, attrs resolvedAttrs) bool {
	if err := r.fs.SetOwner(p, attrs.owner); err != nil {
		r.conflict(res, fmt.Errorf("(traversal) failed to set owner of %q: %w", p, err))

		return false
	}
	res.record(Operation{Kind: OpSetOwner, Path: p, Owner: attrs.owner})

	if err := r.fs.SetGroup(p, attrs.group); err != nil {
		r.conflict(res, fmt.Errorf("(traversal) failed to set group of %q: %w", p, err))

		return false
	}
	res.record(Operation{Kind: OpSetGroup, Path: p, Group: attrs.group})

	if err := r.fs.SetPermissions(p, attrs.mode); err != nil {
		r.conflict(res, fmt.Errorf("(traversal) failed to set permissions of %q: %w", p, err))

		return false
	}
	res.record(Operation{Kind: OpSetPermissions, Path: p, Mode: attrs.mode})

	res.Owner, res.Group, res.Mode = attrs.owner, attrs.group, attrs.mode

	return true
}

// reconcileAttributes updates an existing entry field by field, touching
// only what differs from the prescribed state.
func (r *run) reconcileAttributes(res *PathResult, p string, attrs resolvedAttrs) bool {
	current, err := r.fs.Attributes(p)
	if err != nil {
		r.conflict(res, fmt.Errorf("(traversal) failed to read attributes of %q: %w", p, err))

		return false
	}

	if current.Owner != attrs.owner {
		if err := r.fs.SetOwner(p, attrs.owner); err != nil {
			r.conflict(res, fmt.Errorf("(traversal) failed to set owner of %q: %w", p, err))

			return false
		}
		res.record(Operation{Kind: OpSetOwner, Path: p, Owner: attrs.owner})
	}
	if current.Group != attrs.group {
		if err := r.fs.SetGroup(p, attrs.group); err != nil {
			r.conflict(res, fmt.Errorf("(traversal) failed to set group of %q: %w", p, err))

			return false
		}
		res.record(Operation{Kind: OpSetGroup, Path: p, Group: attrs.group})
	}
	if current.Mode != attrs.mode {
		if err := r.fs.SetPermissions(p, attrs.mode); err != nil {
			r.conflict(res, fmt.Errorf("(traversal) failed to set permissions of %q: %w", p, err))

			return false
		}
		res.record(Operation{Kind: OpSetPermissions, Path: p, Mode: attrs.mode})
	}

	res.mark(OutcomeAlreadyMatches)
	res.Owner, res.Group, res.Mode = attrs.owner, attrs.group, attrs.mode

	return true
}
