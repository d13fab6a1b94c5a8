package orchestrator

import (
	"fmt"
	"os"
	"strings"
)

// rewriteFile applies every edit targeting path, replacing each edit's
// oldRaw substring with its newRaw text. Edits are applied in the order
// their sections appeared in the file, searching forward from the end of
// the previous replacement so an earlier rewrite never shifts where a
// later one is found.
func rewriteFile(path string, edits []pendingEdit) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("orchestrator: reading %s for update: %w", path, err)
	}
	content := string(raw)

	var b strings.Builder
	searchFrom := 0
	for _, e := range edits {
		idx := strings.Index(content[searchFrom:], e.oldRaw)
		if idx < 0 {
			return fmt.Errorf("orchestrator: could not locate section text to update in %s", path)
		}
		start := searchFrom + idx
		end := start + len(e.oldRaw)
		b.WriteString(content[searchFrom:start])
		b.WriteString(e.newRaw)
		searchFrom = end
	}
	b.WriteString(content[searchFrom:])

	info, err := os.Stat(path)
	mode := os.FileMode(0o644)
	if err == nil {
		mode = info.Mode()
	}
	if err := os.WriteFile(path, []byte(b.String()), mode); err != nil {
		return fmt.Errorf("orchestrator: writing %s: %w", path, err)
	}
	return nil
}
