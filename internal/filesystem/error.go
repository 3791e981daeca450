package filesystem

import "errors"

var (
	ErrNotAbsolute  = errors.New("path is not absolute")
	ErrNotExist     = errors.New("no such file or directory")
	ErrExist        = errors.New("file exists")
	ErrNotDirectory = errors.New("not a directory")
	ErrNotFile      = errors.New("not a file")
	ErrNotLink      = errors.New("not a symlink")
	ErrLinkLoop     = errors.New("too many levels of symbolic links")
	ErrPathTooLong  = errors.New("path is too long")
	ErrOutsideRoot  = errors.New("path is outside the root")
	ErrBadRoot      = errors.New("root must be an absolute normalized path")
	ErrBadEntryName = errors.New("entry name must not contain a path separator")
)
