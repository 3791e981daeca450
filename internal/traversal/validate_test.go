package traversal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planterhq/planter/internal/schema"
)

// TestValidateTree_Success tests schemas whose references all resolve:
// through lets, bindings, caller values and reserved tokens.
func TestValidateTree_Success(t *testing.T) {
	t.Parallel()

	stack := newStack("root", "root")

	const scoped = `
:let region = eu

$cluster/
    :match [a-z]+
    node/
        :owner ${region}_admin
        :group $cluster
        state
            :source /seeds/${NAME}
`
	node, err := schema.Parse(scoped)
	require.NoError(t, err)
	assert.NoError(t, validateTree(stack, node))

	const fromCaller = `
deploy/
    :owner $provided
`
	node, err = schema.Parse(fromCaller)
	require.NoError(t, err)
	withValues := stack.pushValues(map[string]string{"provided": "svc"}, true)
	assert.NoError(t, validateTree(withValues, node))
	assert.ErrorIs(t, validateTree(stack, node), ErrUndefinedVariable)
}

// TestValidateTree_Success_UnusedDefinition tests that a definition
// nothing uses is never expanded, so its references stay unchecked like
// at runtime.
func TestValidateTree_Success_UnusedDefinition(t *testing.T) {
	t.Parallel()

	const text = `
:def broken/
    :owner $never_bound

ok/
`
	node, err := schema.Parse(text)
	require.NoError(t, err)
	assert.NoError(t, validateTree(newStack("root", "root"), node))
}

// TestValidateTree_Error tests misspelled variables, circular lets and
// missing definitions.
func TestValidateTree_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want error
	}{
		{
			name: "UndefinedOwner",
			text: "dir/\n    :owner $nobody\n",
			want: ErrUndefinedVariable,
		},
		{
			name: "UndefinedInLet",
			text: ":let a = ${missing}-suffix\ndir/\n",
			want: ErrUndefinedVariable,
		},
		{
			name: "UndefinedMatch",
			text: "$x/\n    :match $nope\n",
			want: ErrUndefinedVariable,
		},
		{
			name: "UndefinedSource",
			text: "file\n    :source /seeds/$nope\n",
			want: ErrUndefinedVariable,
		},
		{
			name: "UndefinedInUsedDef",
			text: ":def base/\n    :owner $nope\nhost/\n    :use base\n",
			want: ErrUndefinedVariable,
		},
		{
			name: "CircularLet",
			text: ":let a = $b\n:let b = $a\ndir/\n",
			want: ErrEvalDepth,
		},
		{
			name: "MissingDef",
			text: "dir/\n    :use missing\n",
			want: ErrNoDefinition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			node, err := schema.Parse(tt.text)
			require.NoError(t, err)
			assert.ErrorIs(t, validateTree(newStack("root", "root"), node), tt.want)
		})
	}
}
