package langparse

import "fmt"

// SyntaxError reports a malformed value expression.
type SyntaxError struct {
	Kind    string
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error (%s): %s", e.Kind, e.Message)
}
