// Package docparse implements the line-oriented envelope grammar that
// wraps the recursive value grammar in internal/langparse: variable
// declarations, the method/URL line, headers, the request body, and the
// SNAPSHOT block with its `||`-separated options. Grounded on
// other_examples' bmcszk-go-restclient ParseRequests bufio.Scanner state
// machine and on original_source/src/parser/{variable_parser,url_parser,
// header_parser,snapshot_parser}.rs for exact token boundaries.
package docparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/httpsnap/httpsnap/internal/ast"
	"github.com/httpsnap/httpsnap/internal/langparse"
)

var verbSet = map[string]ast.HTTPVerb{
	"CONNECT": ast.VerbConnect,
	"DELETE":  ast.VerbDelete,
	"GET":     ast.VerbGet,
	"HEAD":    ast.VerbHead,
	"OPTIONS": ast.VerbOptions,
	"PATCH":   ast.VerbPatch,
	"POST":    ast.VerbPost,
	"PUT":     ast.VerbPut,
	"TRACE":   ast.VerbTrace,
}

var (
	sleepPattern      = regexp.MustCompile(`^sleep\s+(\d+)\s*$`)
	varDeclPattern    = regexp.MustCompile(`^@([a-zA-Z_][a-zA-Z0-9_]*)\s*=\s*(.*)$`)
	methodLinePattern = regexp.MustCompile(`^(\S+)\s+(\S.*)$`)
	statusLinePattern = regexp.MustCompile(`^status:\s*"?([0-9xX]{3})"?\s*$`)
	captureSuffix     = regexp.MustCompile(`\s*->\s*@([a-zA-Z_][a-zA-Z0-9_]*)\s*$`)
	guidMarker        = regexp.MustCompile(`^\{\{_:guid(?::(.*))?\}\}$`)
	timestampMarker   = regexp.MustCompile(`^\{\{_:timestamp\("([^"]*)"\)(?::(.*))?\}\}$`)
)

const (
	snapshotKeyword = "SNAPSHOT"
	optionSeparator = "||"
)

// ParseSection parses one `###`-delimited (or imported-file) block's raw
// text into either a RequestSection or a DelaySection. source records the
// originating file path for formatter round-trip provenance.
func ParseSection(source, text string) (ast.Section, error) {
	lines := splitLines(text)
	idx := skipBlank(lines, 0)
	if idx >= len(lines) {
		return nil, &ParseError{Line: idx + 1, Message: "empty section"}
	}
	if m := sleepPattern.FindStringSubmatch(strings.TrimSpace(lines[idx])); m != nil {
		ms, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return nil, &ParseError{Line: idx + 1, Message: fmt.Sprintf("invalid sleep duration: %s", err)}
		}
		return &ast.DelaySection{Source: source, RawText: text, DurationMS: ms}, nil
	}
	req, err := parseRequest(lines, idx)
	if err != nil {
		return nil, err
	}
	return &ast.RequestSection{Source: source, RawText: text, Request: req}, nil
}

func parseRequest(lines []string, idx int) (*ast.Request, error) {
	var decls []ast.VarDecl
	for idx < len(lines) {
		t := strings.TrimSpace(lines[idx])
		if t == "" {
			idx++
			continue
		}
		if !strings.HasPrefix(t, "@") {
			break
		}
		d, err := parseVarDecl(t)
		if err != nil {
			return nil, &ParseError{Line: idx + 1, Message: err.Error()}
		}
		decls = append(decls, d)
		idx++
	}

	idx = skipBlank(lines, idx)
	if idx >= len(lines) {
		return nil, &ParseError{Line: idx + 1, Message: "expected a method and URL line"}
	}
	verb, url, err := parseMethodLine(strings.TrimSpace(lines[idx]))
	if err != nil {
		return nil, &ParseError{Line: idx + 1, Message: err.Error()}
	}
	idx++

	headers, idx, err := collectHeaders(lines, idx, langparse.RequestMode)
	if err != nil {
		return nil, err
	}

	idx = skipBlank(lines, idx)
	var body *ast.Element
	if idx < len(lines) && strings.TrimSpace(lines[idx]) != snapshotKeyword {
		bodyText, next := collectUntil(lines, idx, snapshotKeyword)
		bodyText = strings.TrimSpace(bodyText)
		if bodyText != "" {
			el, perr := langparse.ParseElement(bodyText, langparse.RequestMode)
			if perr != nil {
				return nil, &ParseError{Line: idx + 1, Message: perr.Error()}
			}
			body = el
		}
		idx = next
	}

	idx = skipBlank(lines, idx)
	var snapshots []ast.Snapshot
	if idx < len(lines) && strings.TrimSpace(lines[idx]) == snapshotKeyword {
		idx++
		snapshots, err = parseSnapshotOptions(lines, idx)
		if err != nil {
			return nil, err
		}
	}

	return &ast.Request{
		Variables: decls,
		Method:    verb,
		URL:       url,
		Headers:   headers,
		Body:      body,
		Snapshots: snapshots,
	}, nil
}

func parseSnapshotOptions(lines []string, idx int) ([]ast.Snapshot, error) {
	var opts []ast.Snapshot
	for {
		snap, next, err := parseSnapshotOption(lines, idx)
		if err != nil {
			return nil, err
		}
		opts = append(opts, snap)
		idx = skipBlank(lines, next)
		if idx < len(lines) && strings.TrimSpace(lines[idx]) == optionSeparator {
			idx = skipBlank(lines, idx+1)
			continue
		}
		break
	}
	return opts, nil
}

func parseSnapshotOption(lines []string, idx int) (ast.Snapshot, int, error) {
	idx = skipBlank(lines, idx)
	if idx >= len(lines) {
		return ast.Snapshot{}, idx, &ParseError{Line: idx + 1, Message: "expected a status line"}
	}
	m := statusLinePattern.FindStringSubmatch(strings.TrimSpace(lines[idx]))
	if m == nil {
		return ast.Snapshot{}, idx, &ParseError{Line: idx + 1, Message: fmt.Sprintf("invalid status line %q", lines[idx])}
	}
	status := ast.StatusMatcher{Pattern: m[1]}
	idx++

	idx = skipBlank(lines, idx)
	headers, idx, err := collectHeaders(lines, idx, langparse.SnapshotMode)
	if err != nil {
		return ast.Snapshot{}, idx, err
	}

	idx = skipBlank(lines, idx)
	var body *ast.Element
	if idx < len(lines) && strings.TrimSpace(lines[idx]) != optionSeparator {
		bodyText, next := collectUntil(lines, idx, optionSeparator)
		bodyText = strings.TrimSpace(bodyText)
		if bodyText != "" {
			el, perr := langparse.ParseElement(bodyText, langparse.SnapshotMode)
			if perr != nil {
				return ast.Snapshot{}, idx, &ParseError{Line: idx + 1, Message: perr.Error()}
			}
			body = el
		}
		idx = next
	}
	return ast.Snapshot{Status: status, Headers: headers, Body: body}, idx, nil
}

// collectHeaders reads `Name: value` lines until a blank line, the
// SNAPSHOT keyword, or an option separator is reached.
func collectHeaders(lines []string, idx int, mode langparse.Mode) ([]ast.Header, int, error) {
	var headers []ast.Header
	for idx < len(lines) {
		t := strings.TrimSpace(lines[idx])
		if t == "" {
			idx++
			break
		}
		if t == snapshotKeyword || t == optionSeparator {
			break
		}
		h, err := parseHeaderLine(t, mode)
		if err != nil {
			return nil, idx, &ParseError{Line: idx + 1, Message: err.Error()}
		}
		headers = append(headers, h)
		idx++
	}
	return headers, idx, nil
}

// collectUntil joins raw (untrimmed) lines starting at idx up to, but not
// including, the first line whose trimmed form equals terminator, or EOF.
func collectUntil(lines []string, idx int, terminator string) (string, int) {
	start := idx
	for idx < len(lines) && strings.TrimSpace(lines[idx]) != terminator {
		idx++
	}
	return strings.Join(lines[start:idx], "\n"), idx
}

func parseVarDecl(line string) (ast.VarDecl, error) {
	m := varDeclPattern.FindStringSubmatch(line)
	if m == nil {
		return ast.VarDecl{}, fmt.Errorf("malformed variable declaration: %q", line)
	}
	name, raw := m[1], strings.TrimSpace(m[2])
	if raw == "generate(guid)" {
		return ast.VarDecl{Name: name, Generator: ast.GeneratorGuid}, nil
	}
	if raw == "" {
		return ast.VarDecl{}, fmt.Errorf("variable %q has no value", name)
	}
	var value ast.Value
	if looksLikeJSONValue(raw) {
		el, err := langparse.ParseElement(raw, langparse.RequestMode)
		if err != nil {
			return ast.VarDecl{}, err
		}
		value = el.Value
	} else {
		cs, err := langparse.ParseCompositeString(raw, false)
		if err != nil {
			return ast.VarDecl{}, err
		}
		value = ast.StringValue{Text: cs}
	}
	return ast.VarDecl{Name: name, Value: value}, nil
}

func looksLikeJSONValue(s string) bool {
	switch s[0] {
	case '{', '[', '"':
		return true
	case '-':
		return len(s) > 1 && s[1] >= '0' && s[1] <= '9'
	}
	if s[0] >= '0' && s[0] <= '9' {
		return true
	}
	return strings.HasPrefix(s, "true") || strings.HasPrefix(s, "false") || strings.HasPrefix(s, "null")
}

func parseMethodLine(line string) (ast.HTTPVerb, ast.CompositeString, error) {
	m := methodLinePattern.FindStringSubmatch(line)
	if m == nil {
		return "", ast.CompositeString{}, fmt.Errorf("expected 'METHOD url', got %q", line)
	}
	verb, ok := verbSet[m[1]]
	if !ok {
		return "", ast.CompositeString{}, fmt.Errorf("unknown or non-uppercase HTTP method %q", m[1])
	}
	url, err := langparse.ParseCompositeString(strings.TrimSpace(m[2]), false)
	if err != nil {
		return "", ast.CompositeString{}, err
	}
	return verb, url, nil
}

func parseHeaderLine(line string, mode langparse.Mode) (ast.Header, error) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return ast.Header{}, fmt.Errorf("expected 'Name: value' header line, got %q", line)
	}
	name := strings.TrimSpace(line[:idx])
	rest := strings.TrimSpace(line[idx+1:])
	if name == "" {
		return ast.Header{}, fmt.Errorf("empty header name in %q", line)
	}

	var captureAs *string
	if mode == langparse.SnapshotMode {
		if m := captureSuffix.FindStringSubmatchIndex(rest); m != nil {
			name := rest[m[2]:m[3]]
			captureAs = &name
			rest = strings.TrimSpace(rest[:m[0]])
		}
	}

	value, comparison, err := parseHeaderValue(rest, mode)
	if err != nil {
		return ast.Header{}, err
	}
	return ast.Header{Name: name, Value: value, CaptureAs: captureAs, Comparison: comparison}, nil
}

func parseHeaderValue(raw string, mode langparse.Mode) (ast.CompositeString, *ast.Comparison, error) {
	if mode == langparse.SnapshotMode {
		if raw == "_" {
			return ast.CompositeString{}, &ast.Comparison{Kind: ast.ComparisonIgnore}, nil
		}
		if m := guidMarker.FindStringSubmatch(raw); m != nil {
			cs, err := langparse.ParseCompositeString(m[1], false)
			if err != nil {
				return ast.CompositeString{}, nil, err
			}
			return cs, &ast.Comparison{Kind: ast.ComparisonGuid}, nil
		}
		if m := timestampMarker.FindStringSubmatch(raw); m != nil {
			cs, err := langparse.ParseCompositeString(m[2], false)
			if err != nil {
				return ast.CompositeString{}, nil, err
			}
			return cs, &ast.Comparison{Kind: ast.ComparisonTimestampFormat, Pattern: m[1]}, nil
		}
	}
	cs, err := langparse.ParseCompositeString(raw, false)
	return cs, nil, err
}

// ParseDeclarations parses an environment file's `@name =
// value-or-generator` lines, request-mode grammar only. Blank
// lines are skipped; any other content is a fatal error, per spec.md §6.
func ParseDeclarations(text string) ([]ast.VarDecl, error) {
	lines := splitLines(text)
	var decls []ast.VarDecl
	for i, raw := range lines {
		t := strings.TrimSpace(raw)
		if t == "" {
			continue
		}
		if !strings.HasPrefix(t, "@") {
			return nil, &ParseError{Line: i + 1, Message: fmt.Sprintf("expected '@name = value' declaration, got %q", t)}
		}
		d, err := parseVarDecl(t)
		if err != nil {
			return nil, &ParseError{Line: i + 1, Message: err.Error()}
		}
		decls = append(decls, d)
	}
	return decls, nil
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(text, "\n")
}

func skipBlank(lines []string, idx int) int {
	for idx < len(lines) && strings.TrimSpace(lines[idx]) == "" {
		idx++
	}
	return idx
}
