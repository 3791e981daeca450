// Package filesystem provides the narrow capability surface the
// provisioner works against: an in-memory backend for simulation and a
// backend applying the same operations to the real disk.
package filesystem

import (
	"fmt"
	"strings"

	"github.com/planterhq/planter/internal/schema"
)

// Kind discriminates the entry types a backend can hold.
type Kind uint8

const (
	KindDirectory Kind = iota + 1
	KindFile
	KindSymlink
)

func (k Kind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindFile:
		return "file"
	case KindSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// Attrs is the ownership and permission state of an existing entry.
type Attrs struct {
	Owner string
	Group string
	Mode  schema.Mode
}

// DirEntry is one name in a directory listing.
type DirEntry struct {
	Name string
	Kind Kind
}

// Filesystem is the capability the traversal engine provisions through.
// Predicates and mutating operations follow symlinks along the way, so
// paths leading through already-created links behave like on a real
// disk; IsLink and ReadLink inspect the final component itself.
type Filesystem interface {
	Exists(path string) bool
	IsDirectory(path string) bool
	IsFile(path string) bool
	IsLink(path string) bool

	CreateDirectory(path string) error
	CreateFile(path string, content []byte) error
	CreateSymlink(path string, target string) error

	SetOwner(path string, owner string) error
	SetGroup(path string, group string) error
	SetPermissions(path string, mode schema.Mode) error

	ListDirectory(path string) ([]DirEntry, error)
	ReadFile(path string) ([]byte, error)
	ReadLink(path string) (string, error)
	Attributes(path string) (Attrs, error)
}

// CreateDirectoryAll creates a directory and any missing parents, like
// mkdir -p, through any backend.
func CreateDirectoryAll(fs Filesystem, path string) error {
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("(fs) cannot create %q: %w", path, ErrNotAbsolute)
	}

	build := ""
	for _, part := range strings.Split(path, "/") {
		if part == "" {
			continue
		}
		build += "/" + part
		if fs.IsDirectory(build) {
			continue
		}
		if err := fs.CreateDirectory(build); err != nil {
			return fmt.Errorf("(fs) failed to create %q: %w", build, err)
		}
	}

	return nil
}
