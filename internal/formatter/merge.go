package formatter

import (
	"fmt"
	"strings"
)

// UpdateMode selects how a freshly formatted snapshot is merged into an
// existing request's raw source text.
type UpdateMode int

const (
	// Overwrite replaces the request's existing SNAPSHOT block entirely.
	Overwrite UpdateMode = iota
	// Append adds the new snapshot as an additional `||`-separated option
	// instead of replacing the existing one.
	Append
)

// MergeError reports that raw text could not be safely rewritten.
type MergeError struct {
	Message string
}

func (e *MergeError) Error() string { return "formatter merge error: " + e.Message }

const snapshotKeyword = "SNAPSHOT"

// MergeSnapshot rewrites rawText (one request's source block) to contain the
// freshly captured snapshot, following the original implementation's
// create_content_with_snapshot: no existing SNAPSHOT means append a new
// block; exactly one existing SNAPSHOT is overwritten or extended depending
// on mode; more than one is a hard error rather than a silent guess.
func MergeSnapshot(rawText string, formattedSnapshot string, mode UpdateMode) (string, error) {
	count := strings.Count(rawText, snapshotKeyword)
	switch count {
	case 0:
		return strings.TrimRight(rawText, "\n") + "\n\nSNAPSHOT\n" + formattedSnapshot, nil
	case 1:
		idx := strings.Index(rawText, snapshotKeyword)
		before := rawText[:idx]
		switch mode {
		case Overwrite:
			return before + snapshotKeyword + "\n\n" + formattedSnapshot, nil
		case Append:
			existing := rawText[idx:]
			return before + strings.TrimRight(existing, "\n") + "\n\n||\n\n" + formattedSnapshot, nil
		default:
			return "", &MergeError{Message: fmt.Sprintf("unknown update mode %d", mode)}
		}
	default:
		return "", &MergeError{Message: "found more than one SNAPSHOT block in request text"}
	}
}
