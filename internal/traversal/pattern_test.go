package traversal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planterhq/planter/internal/schema"
)

// TestCompilePattern_Success tests whole-name anchoring, :avoid carving
// names out of a match, and variables interpolated into patterns.
func TestCompilePattern_Success(t *testing.T) {
	t.Parallel()

	stack := newStack("root", "root").pushBinding("prefix", "app")
	at := plantedAt(t, "/srv", "/srv")

	tests := []struct {
		name  string
		match string
		avoid string
		admit []string
		deny  []string
	}{
		{"Anchored", "v[0-9]+", "", []string{"v1", "v22"}, []string{"v", "xv1", "v1x"}},
		{"Avoid", ".*", ".*shed", []string{"cow", "barn"}, []string{"shed", "cow_shed"}},
		{"AvoidOnly", "", ".*[.]bak", []string{"data"}, []string{"data.bak"}},
		{"Variable", "${prefix}_.*", "", []string{"app_one"}, []string{"web_one"}},
		{"Any", "", "", []string{"anything", "at-all"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			node := &schema.Node{}
			if tt.match != "" {
				node.Match = mustExpression(t, tt.match)
			}
			if tt.avoid != "" {
				node.Avoid = mustExpression(t, tt.avoid)
			}

			pattern, err := compilePattern(node, stack, at)
			require.NoError(t, err)
			for _, name := range tt.admit {
				assert.True(t, pattern.matches(name), name)
			}
			for _, name := range tt.deny {
				assert.False(t, pattern.matches(name), name)
			}
		})
	}
}

// TestCompilePattern_Error tests invalid regular expressions and
// unresolvable pattern variables.
func TestCompilePattern_Error(t *testing.T) {
	t.Parallel()

	stack := newStack("root", "root")
	at := plantedAt(t, "/srv", "/srv")

	_, err := compilePattern(&schema.Node{Match: mustExpression(t, "*bad(")}, stack, at)
	assert.ErrorContains(t, err, "invalid pattern")

	_, err = compilePattern(&schema.Node{Match: mustExpression(t, "$missing")}, stack, at)
	assert.ErrorIs(t, err, ErrUndefinedVariable)
}
