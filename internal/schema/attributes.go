package schema

import (
	"fmt"
)

// Mode holds the permission bits of an entry, including the setuid,
// setgid and sticky bits.
type Mode uint16

const (
	DefaultDirectoryMode = Mode(0o755)
	DefaultFileMode      = Mode(0o644)

	setuidBit   = 0o4000
	setgidBit   = 0o2000
	stickyBit   = 0o1000
	maxModeText = 4
)

func (m Mode) String() string {
	return fmt.Sprintf("%04o", uint16(m))
}

// Symbolic renders the mode the way a long directory listing would,
// for example rwxr-sr-x or rw-r--r--.
func (m Mode) Symbolic() string {
	out := make([]byte, 9)
	flags := "rwxrwxrwx"
	for i := 0; i < 9; i++ {
		if m&(1<<uint(8-i)) != 0 {
			out[i] = flags[i]
		} else {
			out[i] = '-'
		}
	}

	applySpecial := func(pos int, set bool, withExec, withoutExec byte) {
		if !set {
			return
		}
		if out[pos] == 'x' {
			out[pos] = withExec
		} else {
			out[pos] = withoutExec
		}
	}
	applySpecial(2, m&setuidBit != 0, 's', 'S')
	applySpecial(5, m&setgidBit != 0, 's', 'S')
	applySpecial(8, m&stickyBit != 0, 't', 'T')

	return string(out)
}

// ParseMode reads a permission mode from schema text, either as one to
// four octal digits or as a nine character symbolic string.
func ParseMode(text string) (Mode, error) {
	if text == "" {
		return 0, fmt.Errorf("expected a mode: %w", ErrBadMode)
	}
	if len(text) <= maxModeText {
		return parseOctalMode(text)
	}

	return parseSymbolicMode(text)
}

func parseOctalMode(text string) (Mode, error) {
	var mode Mode
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c < '0' || c > '7' {
			return 0, fmt.Errorf("expected octal digits in mode %q: %w", text, ErrBadMode)
		}
		mode = mode<<3 | Mode(c-'0')
	}

	return mode, nil
}

//nolint:mnd
func parseSymbolicMode(text string) (Mode, error) {
	if len(text) != 9 {
		return 0, fmt.Errorf("expected nine symbolic mode characters in %q: %w", text, ErrBadMode)
	}

	var mode Mode
	flags := "rwxrwxrwx"
	for i := 0; i < 9; i++ {
		c := text[i]
		bit := Mode(1) << uint(8-i)
		switch {
		case c == flags[i]:
			mode |= bit
		case c == '-':
		case i == 2 && c == 's':
			mode |= bit | setuidBit
		case i == 2 && c == 'S':
			mode |= setuidBit
		case i == 5 && c == 's':
			mode |= bit | setgidBit
		case i == 5 && c == 'S':
			mode |= setgidBit
		case i == 8 && c == 't':
			mode |= bit | stickyBit
		case i == 8 && c == 'T':
			mode |= stickyBit
		default:
			return 0, fmt.Errorf("unexpected mode character %q in %q: %w", c, text, ErrBadMode)
		}
	}

	return mode, nil
}

// Attributes carries the ownership and permission directives of a node.
// Owner and group stay unevaluated expressions until a node is produced;
// a nil field means the value is inherited.
type Attributes struct {
	Owner *Expression
	Group *Expression
	Mode  *Mode
}

func (a *Attributes) IsEmpty() bool {
	return a.Owner == nil && a.Group == nil && a.Mode == nil
}
