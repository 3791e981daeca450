package filesystem

import (
	"fmt"
	"path"
	"strings"
)

// Root is the absolute, normalized directory a stem provisions beneath.
type Root string

// NewRoot validates and wraps a root path. The path must be absolute and
// normalized: no trailing slash (except "/" itself), no empty, "." or
// ".." components.
func NewRoot(p string) (Root, error) {
	if !strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("(fs) root %q: %w", p, ErrBadRoot)
	}
	if p != "/" {
		if strings.HasSuffix(p, "/") {
			return "", fmt.Errorf("(fs) root %q has a trailing slash: %w", p, ErrBadRoot)
		}
		for _, part := range strings.Split(p[1:], "/") {
			if part == "" || part == "." || part == ".." {
				return "", fmt.Errorf("(fs) root %q has an invalid component: %w", p, ErrBadRoot)
			}
		}
	}

	return Root(p), nil
}

func (r Root) Path() string {
	return string(r)
}

// Contains reports whether p lies at or beneath the root, comparing
// whole components so /primary does not contain /primary2.
func (r Root) Contains(p string) bool {
	root := string(r)
	if p == root {
		return true
	}
	if root == "/" {
		return strings.HasPrefix(p, "/")
	}

	return strings.HasPrefix(p, root+"/")
}

// PlantedPath is an absolute path paired with the root it was planted
// under, so both the full and the root-relative form stay available.
type PlantedPath struct {
	rootLen int
	full    string
}

// PlantPath anchors an absolute path beneath its root.
func PlantPath(root Root, p string) (*PlantedPath, error) {
	if !root.Contains(p) {
		return nil, fmt.Errorf("(fs) path %q must start with root %q: %w", p, root, ErrOutsideRoot)
	}

	return &PlantedPath{rootLen: len(root.Path()), full: p}, nil
}

func (p *PlantedPath) Root() Root {
	return Root(p.full[:p.rootLen])
}

// Absolute returns the full path.
func (p *PlantedPath) Absolute() string {
	return p.full
}

// Relative returns the path below the root, empty at the root itself.
func (p *PlantedPath) Relative() string {
	rel := p.full[p.rootLen:]

	return strings.TrimPrefix(rel, "/")
}

// Name returns the last component, empty at the root itself.
func (p *PlantedPath) Name() string {
	rel := p.Relative()
	if rel == "" {
		return ""
	}

	return path.Base(rel)
}

// Join extends the path by a single entry name.
func (p *PlantedPath) Join(name string) (*PlantedPath, error) {
	if strings.Contains(name, "/") {
		return nil, fmt.Errorf("(fs) cannot join %q to %q: %w", name, p.full, ErrBadEntryName)
	}

	full := p.full
	if !strings.HasSuffix(full, "/") {
		full += "/"
	}

	return &PlantedPath{rootLen: p.rootLen, full: full + name}, nil
}

// Parent steps up one component, reporting false at the root.
func (p *PlantedPath) Parent() (*PlantedPath, bool) {
	if p.Relative() == "" {
		return nil, false
	}
	dir := path.Dir(p.full)

	return &PlantedPath{rootLen: p.rootLen, full: dir}, true
}
