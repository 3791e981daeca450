package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseMode_Success tests octal and symbolic mode parsing.
func TestParseMode_Success(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want Mode
	}{
		{name: "ThreeDigitOctal", text: "755", want: 0o755},
		{name: "FourDigitOctal", text: "0750", want: 0o750},
		{name: "SetuidOctal", text: "4755", want: 0o4755},
		{name: "StickyOctal", text: "1777", want: 0o1777},
		{name: "SingleDigit", text: "7", want: 0o7},
		{name: "SymbolicPlain", text: "rwxr-xr-x", want: 0o755},
		{name: "SymbolicFile", text: "rw-r--r--", want: 0o644},
		{name: "SymbolicSetuid", text: "rwsr-xr-x", want: 0o4755},
		{name: "SymbolicSetuidNoExec", text: "rwSr--r--", want: 0o4644},
		{name: "SymbolicSetgid", text: "rwxr-sr-x", want: 0o2755},
		{name: "SymbolicSticky", text: "rwxrwxrwt", want: 0o1777},
		{name: "SymbolicStickyNoExec", text: "rwxrwxrwT", want: 0o1776},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mode, err := ParseMode(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, mode)
		})
	}
}

// TestParseMode_Error tests the mode parsing failure modes.
func TestParseMode_Error(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"", "999", "rwxrwx", "rwxr-xr-xx", "rwtr-xr-x", "rwxr-xr-s", "0x755"} {
		_, err := ParseMode(text)
		require.Error(t, err, "mode %q", text)
		assert.ErrorIs(t, err, ErrBadMode)
	}
}

// TestModeSymbolic_Success tests rendering modes back to symbolic form.
func TestModeSymbolic_Success(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mode Mode
		want string
	}{
		{mode: 0o755, want: "rwxr-xr-x"},
		{mode: 0o644, want: "rw-r--r--"},
		{mode: 0o4755, want: "rwsr-xr-x"},
		{mode: 0o4644, want: "rwSr--r--"},
		{mode: 0o2755, want: "rwxr-sr-x"},
		{mode: 0o1777, want: "rwxrwxrwt"},
		{mode: 0o1776, want: "rwxrwxrwT"},
		{mode: 0, want: "---------"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.mode.Symbolic(), "mode %s", tt.mode)
	}
}

// TestModeString_Success tests the octal display form.
func TestModeString_Success(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0755", Mode(0o755).String())
	assert.Equal(t, "4755", Mode(0o4755).String())
	assert.Equal(t, "0000", Mode(0).String())
}

// TestAttributesIsEmpty_Success tests attribute presence detection.
func TestAttributesIsEmpty_Success(t *testing.T) {
	t.Parallel()

	var attrs Attributes
	assert.True(t, attrs.IsEmpty())

	mode := DefaultDirectoryMode
	attrs.Mode = &mode
	assert.False(t, attrs.IsEmpty())

	attrs = Attributes{Owner: VariableExpression("user")}
	assert.False(t, attrs.IsEmpty())
}
