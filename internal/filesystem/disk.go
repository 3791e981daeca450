package filesystem

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
	"sync"

	"github.com/planterhq/planter/internal/schema"
	"golang.org/x/sys/unix"
)

type osProvider interface {
	Stat(name string) (os.FileInfo, error)
	Lstat(name string) (os.FileInfo, error)
	ReadDir(name string) ([]os.DirEntry, error)
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm os.FileMode) error
	Readlink(name string) (string, error)
}

type unixProvider interface {
	Chmod(path string, mode uint32) error
	Chown(path string, uid, gid int) error
	Mkdir(path string, mode uint32) error
	Stat(path string, stat *unix.Stat_t) error
	Symlink(oldpath, newpath string) error
}

type userProvider interface {
	Lookup(name string) (*user.User, error)
	LookupGroup(name string) (*user.Group, error)
	LookupID(uid string) (*user.User, error)
	LookupGroupID(gid string) (*user.Group, error)
}

// DiskFilesystem applies operations to the real filesystem through the
// injected syscall providers. Name to id mappings are cached per handler
// since a traversal resolves the same few owners over and over.
type DiskFilesystem struct {
	osHandler   osProvider
	unixHandler unixProvider
	userHandler userProvider

	mu         sync.Mutex
	userIDs    map[string]int
	groupIDs   map[string]int
	userNames  map[int]string
	groupNames map[int]string
}

func NewDiskFilesystem(osHandler osProvider, unixHandler unixProvider, userHandler userProvider) *DiskFilesystem {
	return &DiskFilesystem{
		osHandler:   osHandler,
		unixHandler: unixHandler,
		userHandler: userHandler,
		userIDs:     make(map[string]int),
		groupIDs:    make(map[string]int),
		userNames:   make(map[int]string),
		groupNames:  make(map[int]string),
	}
}

func (d *DiskFilesystem) Exists(path string) bool {
	_, err := d.osHandler.Stat(path)

	return err == nil
}

func (d *DiskFilesystem) IsDirectory(path string) bool {
	info, err := d.osHandler.Stat(path)

	return err == nil && info.IsDir()
}

func (d *DiskFilesystem) IsFile(path string) bool {
	info, err := d.osHandler.Stat(path)

	return err == nil && info.Mode().IsRegular()
}

func (d *DiskFilesystem) IsLink(path string) bool {
	info, err := d.osHandler.Lstat(path)

	return err == nil && info.Mode()&os.ModeSymlink != 0
}

func (d *DiskFilesystem) CreateDirectory(path string) error {
	if err := d.unixHandler.Mkdir(path, uint32(schema.DefaultDirectoryMode)); err != nil {
		return fmt.Errorf("(fs) failed to create directory %q: %w", path, err)
	}

	return nil
}

func (d *DiskFilesystem) CreateFile(path string, content []byte) error {
	if d.Exists(path) {
		return fmt.Errorf("(fs) failed to create file %q: %w", path, ErrExist)
	}
	if err := d.osHandler.WriteFile(path, content, os.FileMode(schema.DefaultFileMode)); err != nil {
		return fmt.Errorf("(fs) failed to create file %q: %w", path, err)
	}

	return nil
}

func (d *DiskFilesystem) CreateSymlink(path string, target string) error {
	if err := d.unixHandler.Symlink(target, path); err != nil {
		return fmt.Errorf("(fs) failed to create symlink %q: %w", path, err)
	}

	return nil
}

func (d *DiskFilesystem) SetOwner(path string, owner string) error {
	uid, err := d.uidFor(owner)
	if err != nil {
		return err
	}
	if err := d.unixHandler.Chown(path, uid, -1); err != nil {
		return fmt.Errorf("(fs) failed to set owner of %q: %w", path, err)
	}

	return nil
}

func (d *DiskFilesystem) SetGroup(path string, group string) error {
	gid, err := d.gidFor(group)
	if err != nil {
		return err
	}
	if err := d.unixHandler.Chown(path, -1, gid); err != nil {
		return fmt.Errorf("(fs) failed to set group of %q: %w", path, err)
	}

	return nil
}

func (d *DiskFilesystem) SetPermissions(path string, mode schema.Mode) error {
	if err := d.unixHandler.Chmod(path, uint32(mode)); err != nil {
		return fmt.Errorf("(fs) failed to set permissions of %q: %w", path, err)
	}

	return nil
}

func (d *DiskFilesystem) ListDirectory(path string) ([]DirEntry, error) {
	dirEntries, err := d.osHandler.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("(fs) failed to list %q: %w", path, err)
	}

	entries := make([]DirEntry, 0, len(dirEntries))
	for _, entry := range dirEntries {
		kind := KindFile
		switch {
		case entry.IsDir():
			kind = KindDirectory
		case entry.Type()&os.ModeSymlink != 0:
			kind = KindSymlink
		}
		entries = append(entries, DirEntry{Name: entry.Name(), Kind: kind})
	}

	return entries, nil
}

func (d *DiskFilesystem) ReadFile(path string) ([]byte, error) {
	content, err := d.osHandler.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("(fs) failed to read %q: %w", path, err)
	}

	return content, nil
}

func (d *DiskFilesystem) ReadLink(path string) (string, error) {
	target, err := d.osHandler.Readlink(path)
	if err != nil {
		return "", fmt.Errorf("(fs) failed to read link %q: %w", path, err)
	}

	return target, nil
}

func (d *DiskFilesystem) Attributes(path string) (Attrs, error) {
	var stat unix.Stat_t
	if err := d.unixHandler.Stat(path, &stat); err != nil {
		return Attrs{}, fmt.Errorf("(fs) failed to stat %q: %w", path, err)
	}

	return Attrs{
		Owner: d.userNameFor(int(stat.Uid)),
		Group: d.groupNameFor(int(stat.Gid)),
		Mode:  schema.Mode(stat.Mode & 0o7777),
	}, nil
}

func (d *DiskFilesystem) uidFor(owner string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if uid, ok := d.userIDs[owner]; ok {
		return uid, nil
	}

	u, err := d.userHandler.Lookup(owner)
	if err != nil {
		return 0, fmt.Errorf("(fs) failed to look up user %q: %w", owner, err)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return 0, fmt.Errorf("(fs) failed to parse uid %q of user %q: %w", u.Uid, owner, err)
	}

	d.userIDs[owner] = uid
	d.userNames[uid] = owner

	return uid, nil
}

func (d *DiskFilesystem) gidFor(group string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if gid, ok := d.groupIDs[group]; ok {
		return gid, nil
	}

	g, err := d.userHandler.LookupGroup(group)
	if err != nil {
		return 0, fmt.Errorf("(fs) failed to look up group %q: %w", group, err)
	}
	gid, err := strconv.Atoi(g.Gid)
	if err != nil {
		return 0, fmt.Errorf("(fs) failed to parse gid %q of group %q: %w", g.Gid, group, err)
	}

	d.groupIDs[group] = gid
	d.groupNames[gid] = group

	return gid, nil
}

// userNameFor maps a uid back to a name, falling back to the numeric
// form when the user database has no entry for it.
func (d *DiskFilesystem) userNameFor(uid int) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	if name, ok := d.userNames[uid]; ok {
		return name
	}

	u, err := d.userHandler.LookupID(strconv.Itoa(uid))
	if err != nil {
		return strconv.Itoa(uid)
	}

	d.userNames[uid] = u.Username
	d.userIDs[u.Username] = uid

	return u.Username
}

func (d *DiskFilesystem) groupNameFor(gid int) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	if name, ok := d.groupNames[gid]; ok {
		return name
	}

	g, err := d.userHandler.LookupGroupID(strconv.Itoa(gid))
	if err != nil {
		return strconv.Itoa(gid)
	}

	d.groupNames[gid] = g.Name
	d.groupIDs[g.Name] = gid

	return g.Name
}
