package config

import "errors"

var (
	// ErrNoStemForPath occurs when no configured root covers a requested path.
	ErrNoStemForPath = errors.New("no configured root covers the path")

	// ErrDuplicateRoot occurs when two stems claim the same root.
	ErrDuplicateRoot = errors.New("root is already configured")

	// ErrNoStems occurs when a configuration defines no stems at all.
	ErrNoStems = errors.New("configuration defines no stems")

	// ErrBadNameMap occurs when a name mapping cannot be parsed.
	ErrBadNameMap = errors.New("malformed name mapping")
)
