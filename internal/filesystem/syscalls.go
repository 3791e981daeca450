package filesystem

import (
	"os"
	"os/user"

	"golang.org/x/sys/unix"
)

type OS struct{}

func (*OS) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

func (*OS) Lstat(name string) (os.FileInfo, error) {
	return os.Lstat(name)
}

func (*OS) ReadDir(name string) ([]os.DirEntry, error) {
	return os.ReadDir(name)
}

func (*OS) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

func (*OS) WriteFile(name string, data []byte, perm os.FileMode) error {
	return os.WriteFile(name, data, perm)
}

func (*OS) Readlink(name string) (string, error) {
	return os.Readlink(name)
}

type Unix struct{}

func (*Unix) Chmod(path string, mode uint32) error {
	return unix.Chmod(path, mode)
}

func (*Unix) Chown(path string, uid, gid int) error {
	return unix.Chown(path, uid, gid)
}

func (*Unix) Mkdir(path string, mode uint32) error {
	return unix.Mkdir(path, mode)
}

func (*Unix) Stat(path string, stat *unix.Stat_t) error {
	return unix.Stat(path, stat)
}

func (*Unix) Symlink(oldpath, newpath string) error {
	return unix.Symlink(oldpath, newpath)
}

type Users struct{}

func (*Users) Lookup(name string) (*user.User, error) {
	return user.Lookup(name)
}

func (*Users) LookupGroup(name string) (*user.Group, error) {
	return user.LookupGroup(name)
}

func (*Users) LookupID(uid string) (*user.User, error) {
	return user.LookupId(uid)
}

func (*Users) LookupGroupID(gid string) (*user.Group, error) {
	return user.LookupGroupId(gid)
}
