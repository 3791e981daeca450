package traversal

import (
	"fmt"
	"regexp"

	"github.com/planterhq/planter/internal/filesystem"
	"github.com/planterhq/planter/internal/schema"
)

// compiledPattern decides which names a schema node admits. Match and
// avoid expressions evaluate against the enclosing scope before they
// compile, so a pattern may refer to variables bound further up the
// tree.
type compiledPattern struct {
	match *regexp.Regexp
	avoid *regexp.Regexp
}

// compilePattern builds the admission pattern of a node. A node without
// :match or :avoid admits every name; with only :avoid, :match defaults
// to .* so the avoid pattern carves names out of everything.
func compilePattern(node *schema.Node, stack *stackFrame, at *filesystem.PlantedPath) (*compiledPattern, error) {
	if node.Match == nil && node.Avoid == nil {
		return &compiledPattern{}, nil
	}

	pattern := &compiledPattern{}
	if node.Avoid != nil {
		avoid, err := compileAnchored(node.Avoid, stack, at)
		if err != nil {
			return nil, err
		}
		pattern.avoid = avoid
	}

	match := node.Match
	if match == nil {
		match = schema.TextExpression(".*")
	}
	compiled, err := compileAnchored(match, stack, at)
	if err != nil {
		return nil, err
	}
	pattern.match = compiled

	return pattern, nil
}

// compileAnchored evaluates and compiles a pattern expression, anchored
// so it must cover the whole name.
func compileAnchored(expr *schema.Expression, stack *stackFrame, at *filesystem.PlantedPath) (*regexp.Regexp, error) {
	value, err := evaluate(expr, stack, at)
	if err != nil {
		return nil, err
	}
	compiled, err := regexp.Compile("^(?:" + value + ")$")
	if err != nil {
		return nil, fmt.Errorf("(traversal) invalid pattern %q: %w", value, err)
	}

	return compiled, nil
}

// matches reports whether the pattern admits a name.
func (p *compiledPattern) matches(name string) bool {
	if p.avoid != nil && p.avoid.MatchString(name) {
		return false
	}
	if p.match == nil {
		return true
	}

	return p.match.MatchString(name)
}
