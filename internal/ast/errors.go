package ast

import "fmt"

// TypeError reports a node that violates an AST invariant, such as a
// VariableReference surviving substitution.
type TypeError struct {
	Kind    string
	Message string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("ast error (%s): %s", e.Kind, e.Message)
}

func UnresolvedVariable(name string) *TypeError {
	return &TypeError{Kind: "unresolved_variable", Message: fmt.Sprintf("variable %q was never substituted", name)}
}
