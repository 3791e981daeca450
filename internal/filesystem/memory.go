package filesystem

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/planterhq/planter/internal/schema"
)

// maxLinkResolutions bounds how many symlinks one lookup may follow
// before the backend reports a link loop.
const maxLinkResolutions = 40

// maxPathLength mirrors the kernel's PATH_MAX, so runaway creation
// depths fail here the way they would on a real disk.
const maxPathLength = 4096

const symlinkMode = schema.Mode(0o777)

type memNode struct {
	kind     Kind
	attrs    Attrs
	content  []byte
	target   string
	children []string
}

// MemoryFilesystem is a purely in-memory backend. It mirrors disk
// semantics closely enough for simulation runs: paths resolve through
// symlinks, creation requires an existing parent directory and entries
// carry ownership and permissions. New entries default to root:root with
// the kind's default mode until the caller sets otherwise.
type MemoryFilesystem struct {
	mu    sync.RWMutex
	nodes map[string]*memNode
}

// NewMemoryFilesystem returns a backend holding only the root directory.
func NewMemoryFilesystem() *MemoryFilesystem {
	return &MemoryFilesystem{
		nodes: map[string]*memNode{
			"/": {
				kind:  KindDirectory,
				attrs: Attrs{Owner: "root", Group: "root", Mode: schema.DefaultDirectoryMode},
			},
		},
	}
}

func (m *MemoryFilesystem) Exists(p string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.lookup(p)

	return ok
}

func (m *MemoryFilesystem) IsDirectory(p string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	node, ok := m.lookup(p)

	return ok && node.kind == KindDirectory
}

func (m *MemoryFilesystem) IsFile(p string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	node, ok := m.lookup(p)

	return ok && node.kind == KindFile
}

func (m *MemoryFilesystem) IsLink(p string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	final, err := m.finalPath(p)
	if err != nil {
		return false
	}
	node, ok := m.nodes[final]

	return ok && node.kind == KindSymlink
}

func (m *MemoryFilesystem) CreateDirectory(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.insert(p, &memNode{
		kind:  KindDirectory,
		attrs: Attrs{Owner: "root", Group: "root", Mode: schema.DefaultDirectoryMode},
	})
}

func (m *MemoryFilesystem) CreateFile(p string, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.insert(p, &memNode{
		kind:    KindFile,
		attrs:   Attrs{Owner: "root", Group: "root", Mode: schema.DefaultFileMode},
		content: append([]byte(nil), content...),
	})
}

func (m *MemoryFilesystem) CreateSymlink(p string, target string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.insert(p, &memNode{
		kind:   KindSymlink,
		attrs:  Attrs{Owner: "root", Group: "root", Mode: symlinkMode},
		target: target,
	})
}

func (m *MemoryFilesystem) SetOwner(p string, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	node, err := m.resolve(p)
	if err != nil {
		return err
	}
	node.attrs.Owner = owner

	return nil
}

func (m *MemoryFilesystem) SetGroup(p string, group string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	node, err := m.resolve(p)
	if err != nil {
		return err
	}
	node.attrs.Group = group

	return nil
}

func (m *MemoryFilesystem) SetPermissions(p string, mode schema.Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	node, err := m.resolve(p)
	if err != nil {
		return err
	}
	node.attrs.Mode = mode

	return nil
}

func (m *MemoryFilesystem) ListDirectory(p string) ([]DirEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	canon, err := m.canonical(p)
	if err != nil {
		return nil, err
	}
	node, ok := m.nodes[canon]
	if !ok {
		return nil, fmt.Errorf("(fs) cannot list %q: %w", p, ErrNotExist)
	}
	if node.kind != KindDirectory {
		return nil, fmt.Errorf("(fs) cannot list %q: %w", p, ErrNotDirectory)
	}

	entries := make([]DirEntry, 0, len(node.children))
	for _, name := range node.children {
		child, ok := m.nodes[joinPath(canon, name)]
		if !ok {
			continue
		}
		entries = append(entries, DirEntry{Name: name, Kind: child.kind})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	return entries, nil
}

func (m *MemoryFilesystem) ReadFile(p string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	node, err := m.resolve(p)
	if err != nil {
		return nil, err
	}
	if node.kind != KindFile {
		return nil, fmt.Errorf("(fs) cannot read %q: %w", p, ErrNotFile)
	}

	return append([]byte(nil), node.content...), nil
}

func (m *MemoryFilesystem) ReadLink(p string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	final, err := m.finalPath(p)
	if err != nil {
		return "", err
	}
	node, ok := m.nodes[final]
	if !ok {
		return "", fmt.Errorf("(fs) cannot read link %q: %w", p, ErrNotExist)
	}
	if node.kind != KindSymlink {
		return "", fmt.Errorf("(fs) cannot read link %q: %w", p, ErrNotLink)
	}

	return node.target, nil
}

func (m *MemoryFilesystem) Attributes(p string) (Attrs, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	node, err := m.resolve(p)
	if err != nil {
		return Attrs{}, err
	}

	return node.attrs, nil
}

// Canonicalize resolves ".", ".." and symlinks to the plain path of the
// entry a path refers to. The final component is followed as well.
func (m *MemoryFilesystem) Canonicalize(p string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.canonical(p)
}

// resolve returns the node a path points at, following the final
// symlink, or ErrNotExist.
func (m *MemoryFilesystem) resolve(p string) (*memNode, error) {
	node, ok := m.lookup(p)
	if !ok {
		return nil, fmt.Errorf("(fs) %q: %w", p, ErrNotExist)
	}

	return node, nil
}

func (m *MemoryFilesystem) lookup(p string) (*memNode, bool) {
	canon, err := m.canonical(p)
	if err != nil {
		return nil, false
	}
	node, ok := m.nodes[canon]

	return node, ok
}

// finalPath canonicalizes all but the final component, so symlinks can
// be inspected rather than followed.
func (m *MemoryFilesystem) finalPath(p string) (string, error) {
	if p == "/" {
		return "/", nil
	}
	dir, err := m.canonical(path.Dir(p))
	if err != nil {
		return "", err
	}

	return joinPath(dir, path.Base(p)), nil
}

// canonical walks the path components against the node map, splicing in
// symlink targets as they are encountered.
func (m *MemoryFilesystem) canonical(p string) (string, error) {
	if !strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("(fs) %q: %w", p, ErrNotAbsolute)
	}

	var canon []string
	rest := strings.Split(p[1:], "/")
	followed := 0

	for i := 0; i < len(rest); i++ {
		part := rest[i]
		switch part {
		case "", ".":
			continue
		case "..":
			if len(canon) > 0 {
				canon = canon[:len(canon)-1]
			}

			continue
		}

		canon = append(canon, part)
		node, ok := m.nodes["/"+strings.Join(canon, "/")]
		if !ok || node.kind != KindSymlink {
			continue
		}

		followed++
		if followed > maxLinkResolutions {
			return "", fmt.Errorf("(fs) %q: %w", p, ErrLinkLoop)
		}

		// Splice the link target and the unwalked remainder back into
		// the worklist; absolute targets restart from the root.
		canon = canon[:len(canon)-1]
		target := node.target
		if strings.HasPrefix(target, "/") {
			canon = nil
			target = target[1:]
		}
		spliced := strings.Split(target, "/")
		spliced = append(spliced, rest[i+1:]...)
		rest = spliced
		i = -1
	}

	return "/" + strings.Join(canon, "/"), nil
}

// insert places a node, requiring an existing parent directory and a
// free name, like the matching syscalls would.
func (m *MemoryFilesystem) insert(p string, node *memNode) error {
	if !strings.HasPrefix(p, "/") {
		return fmt.Errorf("(fs) cannot create %q: %w", p, ErrNotAbsolute)
	}
	if len(p) > maxPathLength {
		return fmt.Errorf("(fs) cannot create %q: %w", p, ErrPathTooLong)
	}
	if p == "/" {
		return fmt.Errorf("(fs) cannot create %q: %w", p, ErrExist)
	}

	parent, err := m.canonical(path.Dir(p))
	if err != nil {
		return fmt.Errorf("(fs) cannot create %q: %w", p, err)
	}
	parentNode, ok := m.nodes[parent]
	if !ok {
		return fmt.Errorf("(fs) cannot create %q: %w", p, ErrNotExist)
	}
	if parentNode.kind != KindDirectory {
		return fmt.Errorf("(fs) cannot create %q: %w", p, ErrNotDirectory)
	}

	name := path.Base(p)
	full := joinPath(parent, name)
	if _, ok := m.nodes[full]; ok {
		return fmt.Errorf("(fs) cannot create %q: %w", p, ErrExist)
	}

	m.nodes[full] = node
	parentNode.children = append(parentNode.children, name)

	return nil
}

func joinPath(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}

	return dir + "/" + name
}
