package traversal

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/planterhq/planter/internal/filesystem"
	"github.com/planterhq/planter/internal/schema"
)

// maxEvalDepth bounds nested expression expansion, so a :let variable
// defined in terms of itself fails instead of recursing forever.
const maxEvalDepth = 64

// evaluate renders an expression against the variables on the stack and
// the position of the path being produced. Variables bound to
// expressions expand against the stack at the point of use.
func evaluate(expr *schema.Expression, stack *stackFrame, at *filesystem.PlantedPath) (string, error) {
	return evaluateAtDepth(expr, stack, at, 0)
}

func evaluateAtDepth(expr *schema.Expression, stack *stackFrame, at *filesystem.PlantedPath, depth int) (string, error) {
	if depth >= maxEvalDepth {
		return "", fmt.Errorf("(traversal) expression %q: %w", expr, ErrEvalDepth)
	}

	var sb strings.Builder
	for _, token := range expr.Tokens {
		switch token.Kind {
		case schema.TokenText:
			sb.WriteString(token.Text)
		case schema.TokenVariable:
			value, ok := stack.lookup(token.Text)
			if !ok {
				return "", fmt.Errorf("(traversal) undefined variable %q in expression %q: %w",
					token.Text, expr, ErrUndefinedVariable)
			}
			if value.expr == nil {
				sb.WriteString(value.text)

				continue
			}
			expanded, err := evaluateAtDepth(value.expr, stack, at, depth+1)
			if err != nil {
				return "", err
			}
			sb.WriteString(expanded)
		case schema.TokenSpecial:
			value, err := evaluateSpecial(token.Special, at)
			if err != nil {
				return "", err
			}
			sb.WriteString(value)
		}
	}

	return sb.String(), nil
}

//nolint:cyclop
func evaluateSpecial(special schema.Special, at *filesystem.PlantedPath) (string, error) {
	switch special {
	case schema.SpecialPath:
		return at.Relative(), nil
	case schema.SpecialFullPath:
		return at.Absolute(), nil
	case schema.SpecialName:
		if name := at.Name(); name != "" {
			return name, nil
		}

		return "", fmt.Errorf("(traversal) path %q has no name component below its root", at.Absolute())
	case schema.SpecialParentPath:
		parent, ok := at.Parent()
		if !ok {
			return "", fmt.Errorf("(traversal) path %q has no parent below its root", at.Absolute())
		}

		return parent.Relative(), nil
	case schema.SpecialParentFullPath:
		if at.Absolute() == "/" {
			return "", fmt.Errorf("(traversal) path %q has no parent", at.Absolute())
		}

		return path.Dir(at.Absolute()), nil
	case schema.SpecialParentName:
		parent, ok := at.Parent()
		if !ok || parent.Relative() == "" {
			return "", fmt.Errorf("(traversal) path %q has no named parent below its root", at.Absolute())
		}

		return parent.Name(), nil
	case schema.SpecialRootPath:
		return at.Root().Path(), nil
	default:
		return "", errors.New("(traversal) unknown path token in expression")
	}
}
