package traversal

import (
	"fmt"

	"github.com/planterhq/planter/internal/schema"
)

// validateTree resolves every variable reference a schema can reach
// before any filesystem work, so a misspelled variable aborts the run
// before half a tree exists. Definitions are checked at their use sites,
// under the scope they expand in; an unused definition is never
// evaluated and stays unchecked, like at runtime.
func validateTree(stack *stackFrame, node *schema.Node) error {
	return validateNode(stack, node, make(map[*schema.Node]bool))
}

func validateNode(stack *stackFrame, node *schema.Node, active map[*schema.Node]bool) error {
	if active[node] {
		return nil
	}
	active[node] = true
	defer delete(active, node)

	if err := checkExpression(node.Attributes.Owner, stack); err != nil {
		return err
	}
	if err := checkExpression(node.Attributes.Group, stack); err != nil {
		return err
	}
	if err := checkExpression(node.Symlink, stack); err != nil {
		return err
	}
	if node.File != nil {
		if err := checkExpression(node.File.Source, stack); err != nil {
			return err
		}
	}

	scope := stack
	if node.IsDirectory() {
		scope = stack.pushDirectory(node.Directory)
		for name, expr := range node.Directory.Vars {
			if err := checkExpression(expr, scope); err != nil {
				return fmt.Errorf("(traversal) in :let %s: %w", name, err)
			}
		}
	}

	for _, name := range node.Uses {
		def, ok := scope.findDefinition(name)
		if !ok {
			return fmt.Errorf("(traversal) no definition (:def) found for %q: %w", name, ErrNoDefinition)
		}
		if err := validateNode(stack, def, active); err != nil {
			return err
		}
	}

	if !node.IsDirectory() {
		return nil
	}
	for _, entry := range node.Directory.Entries {
		if err := checkExpression(entry.Node.Match, scope); err != nil {
			return err
		}
		if err := checkExpression(entry.Node.Avoid, scope); err != nil {
			return err
		}
		child := scope
		if entry.Binding.IsVariable {
			child = scope.pushBinding(entry.Binding.Name, "")
		}
		if err := validateNode(child, entry.Node, active); err != nil {
			return err
		}
	}

	return nil
}

// checkExpression resolves the variable references of an expression
// without rendering values. Reserved path tokens always pass; positions
// are not known yet.
func checkExpression(expr *schema.Expression, stack *stackFrame) error {
	return checkExpressionAtDepth(expr, stack, 0)
}

func checkExpressionAtDepth(expr *schema.Expression, stack *stackFrame, depth int) error {
	if expr == nil {
		return nil
	}
	if depth >= maxEvalDepth {
		return fmt.Errorf("(traversal) expression %q: %w", expr, ErrEvalDepth)
	}

	for _, token := range expr.Tokens {
		if token.Kind != schema.TokenVariable {
			continue
		}
		value, ok := stack.lookup(token.Text)
		if !ok {
			return fmt.Errorf("(traversal) undefined variable %q in expression %q: %w",
				token.Text, expr, ErrUndefinedVariable)
		}
		if value.expr == nil {
			continue
		}
		if err := checkExpressionAtDepth(value.expr, stack, depth+1); err != nil {
			return err
		}
	}

	return nil
}
