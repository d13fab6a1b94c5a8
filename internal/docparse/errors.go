package docparse

import "fmt"

// ParseError reports an unparseable line in a document section, grounded on
// the original implementation's span-pointing parser diagnostics.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d: %s", e.Line, e.Message)
}
