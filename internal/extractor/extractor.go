// Package extractor loads a document from disk, splits it into sections,
// and resolves `import` preludes, grounded on
// original_source/src/request_extractor.rs (extract_requests/extract_imports)
// and, for import-stack bookkeeping, other_examples' bmcszk-go-restclient
// ParseRequestFile circular-import check.
package extractor

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"

	"github.com/httpsnap/httpsnap/internal/ast"
	"github.com/httpsnap/httpsnap/internal/docparse"
)

const requestSeparator = "###"

// ExtractDocument loads path (a `.http` or `.md` file), resolves any
// `import` prelude depth-first, and returns the fully flattened Document.
func ExtractDocument(path string) (*ast.Document, error) {
	sections, err := extractWithStack(path, nil)
	if err != nil {
		return nil, err
	}
	return &ast.Document{Path: path, Sections: sections}, nil
}

func extractWithStack(path string, stack []string) ([]ast.Section, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &ExtractError{Path: path, Message: err.Error()}
	}
	for _, seen := range stack {
		if seen == abs {
			return nil, &ExtractError{Path: path, Message: fmt.Sprintf("circular import (stack: %v)", append(stack, abs))}
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &ExtractError{Path: path, Message: err.Error()}
	}
	content := strings.TrimPrefix(string(raw), "﻿")

	var groups []string
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".http":
		groups = []string{content}
	case ".md":
		groups = extractHTTPFencedBlocks([]byte(content))
	default:
		return nil, &ExtractError{Path: path, Message: fmt.Sprintf("unrecognized document extension %q", ext)}
	}

	childStack := append(append([]string{}, stack...), abs)
	var sections []ast.Section
	for _, group := range groups {
		imports, rest := extractImports(group)
		for _, imp := range imports {
			full := imp
			if !filepath.IsAbs(imp) {
				full = filepath.Join(filepath.Dir(path), imp)
			}
			imported, err := extractWithStack(full, childStack)
			if err != nil {
				return nil, &ExtractError{Path: path, Message: fmt.Sprintf("importing %q: %s", imp, err)}
			}
			sections = append(sections, imported...)
		}
		for _, part := range strings.Split(rest, requestSeparator) {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			sec, err := docparse.ParseSection(path, trimmed)
			if err != nil {
				return nil, err
			}
			sections = append(sections, sec)
		}
	}
	return sections, nil
}

// extractImports returns the `import <path>` lines found at the top of
// text (stopping at the first non-import, non-blank line), and the
// remaining text with those lines removed.
func extractImports(text string) ([]string, string) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	var imports []string
	idx := 0
	for _, line := range lines {
		t := strings.TrimSpace(line)
		if path, ok := strings.CutPrefix(t, "import "); ok {
			imports = append(imports, strings.TrimSpace(path))
		} else if t != "" {
			break
		}
		idx++
	}
	return imports, strings.Join(lines[idx:], "\n")
}

// extractHTTPFencedBlocks walks a CommonMark document with goldmark and
// returns the raw text of every fenced code block tagged `http`, in
// document order, mirroring pulldown_cmark's event-stream walk in the
// original implementation.
func extractHTTPFencedBlocks(content []byte) []string {
	reader := gmtext.NewReader(content)
	doc := goldmark.New().Parser().Parse(reader)

	var blocks []string
	_ = gmast.Walk(doc, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		fcb, ok := n.(*gmast.FencedCodeBlock)
		if !ok || fcb.Info == nil {
			return gmast.WalkContinue, nil
		}
		lang := strings.Fields(string(fcb.Info.Value(content)))
		if len(lang) == 0 || !strings.EqualFold(lang[0], "http") {
			return gmast.WalkContinue, nil
		}
		var buf bytes.Buffer
		lines := fcb.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(content))
		}
		blocks = append(blocks, buf.String())
		return gmast.WalkContinue, nil
	})
	return blocks
}
