package extractor

import "fmt"

// ExtractError reports a fatal failure loading or splitting a document,
// grounded on the original implementation's unwrap-or-panic file handling,
// made into a typed, recoverable error per spec.md §7.
type ExtractError struct {
	Path    string
	Message string
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract error (%s): %s", e.Path, e.Message)
}
