package langparse

import (
	"fmt"
	"strings"

	"github.com/httpsnap/httpsnap/internal/ast"
)

// Mode selects which grammar subset is legal: request bodies never carry
// comparison markers or capture bindings, snapshot bodies allow both.
type Mode int

const (
	RequestMode Mode = iota
	SnapshotMode
)

// ParseElement parses one value, in the given mode, from raw text (a JSON
// body, an object member value, or an array element).
func ParseElement(input string, mode Mode) (*ast.Element, error) {
	root, err := valueParser.ParseString("", input)
	if err != nil {
		return nil, &SyntaxError{Kind: "value_parse", Message: err.Error()}
	}
	return convertElement(root.Element, mode)
}

// ParseCompositeString decodes a raw (already-unquoted) run of text into a
// CompositeString, recognizing {{name}} interpolations and, when fromQuoted
// is true, JSON string escape sequences. Used both for quoted JSON string
// literals and for bare composite strings (URLs, header values).
func ParseCompositeString(raw string, fromQuoted bool) (ast.CompositeString, error) {
	var parts []ast.CompositeStringPart
	var literal strings.Builder
	runes := []rune(raw)
	i := 0
	flush := func() {
		if literal.Len() > 0 {
			parts = append(parts, ast.CompositeStringPart{Literal: literal.String()})
			literal.Reset()
		}
	}
	for i < len(runes) {
		c := runes[i]
		if c == '{' && i+1 < len(runes) && runes[i+1] == '{' {
			end := -1
			for j := i + 2; j+1 < len(runes); j++ {
				if runes[j] == '}' && runes[j+1] == '}' {
					end = j
					break
				}
			}
			if end == -1 {
				return ast.CompositeString{}, &SyntaxError{Kind: "unterminated_var_ref", Message: "missing closing }} in composite string"}
			}
			name := strings.TrimSpace(string(runes[i+2 : end]))
			flush()
			parts = append(parts, ast.CompositeStringPart{VarRef: name})
			i = end + 2
			continue
		}
		if fromQuoted && c == '\\' && i+1 < len(runes) {
			decoded, width, err := decodeEscape(runes[i+1:])
			if err != nil {
				return ast.CompositeString{}, err
			}
			literal.WriteRune(decoded)
			i += 1 + width
			continue
		}
		literal.WriteRune(c)
		i++
	}
	flush()
	return ast.CompositeString{Parts: ast.MergeLiterals(parts)}, nil
}

func decodeEscape(rest []rune) (rune, int, error) {
	if len(rest) == 0 {
		return 0, 0, &SyntaxError{Kind: "bad_escape", Message: "dangling backslash"}
	}
	switch rest[0] {
	case '"':
		return '"', 1, nil
	case '\\':
		return '\\', 1, nil
	case '/':
		return '/', 1, nil
	case 'b':
		return '\b', 1, nil
	case 'f':
		return '\f', 1, nil
	case 'n':
		return '\n', 1, nil
	case 'r':
		return '\r', 1, nil
	case 't':
		return '\t', 1, nil
	case 'u':
		if len(rest) < 5 {
			return 0, 0, &SyntaxError{Kind: "bad_escape", Message: "truncated \\u escape"}
		}
		var val rune
		for _, h := range rest[1:5] {
			val <<= 4
			switch {
			case h >= '0' && h <= '9':
				val |= h - '0'
			case h >= 'a' && h <= 'f':
				val |= h - 'a' + 10
			case h >= 'A' && h <= 'F':
				val |= h - 'A' + 10
			default:
				return 0, 0, &SyntaxError{Kind: "bad_escape", Message: "invalid hex digit in \\u escape"}
			}
		}
		return val, 5, nil
	default:
		return 0, 0, &SyntaxError{Kind: "bad_escape", Message: fmt.Sprintf("unknown escape \\%c", rest[0])}
	}
}

func stripQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

func convertElement(e *ElementAST, mode Mode) (*ast.Element, error) {
	value, comparison, err := convertValue(e.Value, mode)
	if err != nil {
		return nil, err
	}
	el := &ast.Element{Value: value, Comparison: comparison}
	if e.CaptureAs != nil {
		if mode == RequestMode {
			return nil, &SyntaxError{Kind: "capture_in_request", Message: "capture bindings (->) are only valid in snapshot bodies"}
		}
		el.CaptureAs = e.CaptureAs
	}
	return el, nil
}

func convertValue(v *ValueAST, mode Mode) (ast.Value, *ast.Comparison, error) {
	switch {
	case v.Marker != nil:
		if mode == RequestMode {
			return nil, nil, &SyntaxError{Kind: "marker_in_request", Message: "comparison markers are only valid in snapshot bodies"}
		}
		return convertMarker(v.Marker)
	case v.VarRef != nil:
		return ast.VarRef{Name: *v.VarRef}, nil, nil
	case v.Object != nil:
		obj, err := convertObject(v.Object, mode)
		return obj, nil, err
	case v.Array != nil:
		arr, err := convertArray(v.Array, mode)
		return arr, nil, err
	case v.Str != nil:
		cs, err := ParseCompositeString(stripQuotes(*v.Str), true)
		if err != nil {
			return nil, nil, err
		}
		return ast.StringValue{Text: cs}, nil, nil
	case v.Exp != nil:
		return ast.NumberValue{Kind: ast.NumberExponent, Raw: *v.Exp}, nil, nil
	case v.Frac != nil:
		return ast.NumberValue{Kind: ast.NumberFraction, Raw: *v.Frac}, nil, nil
	case v.Int != nil:
		n, err := parseInt(*v.Int)
		if err != nil {
			return nil, nil, err
		}
		return ast.NumberValue{Kind: ast.NumberInt, Int: n}, nil, nil
	case v.True:
		return ast.BoolValue{Value: true}, nil, nil
	case v.False:
		return ast.BoolValue{Value: false}, nil, nil
	case v.Null:
		return ast.NullValue{}, nil, nil
	}
	return nil, nil, &SyntaxError{Kind: "empty_value", Message: "value grammar matched nothing"}
}

func convertMarker(m *MarkerAST) (ast.Value, *ast.Comparison, error) {
	switch {
	case m.Ignore != nil:
		return ast.NullValue{}, &ast.Comparison{Kind: ast.ComparisonIgnore}, nil
	case m.Guid != nil:
		val, err := convertSimpleOrNull(m.Guid.Value)
		if err != nil {
			return nil, nil, err
		}
		return val, &ast.Comparison{Kind: ast.ComparisonGuid}, nil
	case m.Timestamp != nil:
		val, err := convertSimpleOrNull(m.Timestamp.Value)
		if err != nil {
			return nil, nil, err
		}
		return val, &ast.Comparison{Kind: ast.ComparisonTimestampFormat, Pattern: m.Timestamp.Pattern}, nil
	}
	return nil, nil, &SyntaxError{Kind: "empty_marker", Message: "marker grammar matched nothing"}
}

func convertSimpleOrNull(v *SimpleValueAST) (ast.Value, error) {
	if v == nil {
		return ast.NullValue{}, nil
	}
	switch {
	case v.Str != nil:
		cs, err := ParseCompositeString(stripQuotes(*v.Str), true)
		if err != nil {
			return nil, err
		}
		return ast.StringValue{Text: cs}, nil
	case v.Exp != nil:
		return ast.NumberValue{Kind: ast.NumberExponent, Raw: *v.Exp}, nil
	case v.Frac != nil:
		return ast.NumberValue{Kind: ast.NumberFraction, Raw: *v.Frac}, nil
	case v.Int != nil:
		n, err := parseInt(*v.Int)
		if err != nil {
			return nil, err
		}
		return ast.NumberValue{Kind: ast.NumberInt, Int: n}, nil
	}
	return ast.NullValue{}, nil
}

func convertObject(o *ObjectAST, mode Mode) (*ast.Object, error) {
	members := make([]ast.Member, 0, len(o.Members))
	for _, m := range o.Members {
		el, err := convertElement(m.Element, mode)
		if err != nil {
			return nil, err
		}
		members = append(members, ast.Member{Key: stripQuotes(m.Key), Value: *el})
	}
	return &ast.Object{Members: members}, nil
}

func convertArray(a *ArrayAST, mode Mode) (*ast.ArrayValue, error) {
	switch {
	case a.Empty:
		return &ast.ArrayValue{Kind: ast.ArrayLiteral}, nil
	case a.Contains != nil:
		els, err := convertElements(a.Contains.Elements, mode)
		return &ast.ArrayValue{Kind: ast.ArrayContains, Elements: els}, err
	case a.EndsWith != nil:
		els, err := convertElements(a.EndsWith.Elements, mode)
		return &ast.ArrayValue{Kind: ast.ArrayEndsWith, Elements: els}, err
	case a.StartsWith != nil:
		els, err := convertElements(a.StartsWith.Elements, mode)
		return &ast.ArrayValue{Kind: ast.ArrayStartsWith, Elements: els}, err
	case a.Literal != nil:
		els, err := convertElements(a.Literal.Elements, mode)
		return &ast.ArrayValue{Kind: ast.ArrayLiteral, Elements: els}, err
	}
	return nil, &SyntaxError{Kind: "empty_array", Message: "array grammar matched nothing"}
}

func convertElements(in []*ElementAST, mode Mode) ([]ast.Element, error) {
	out := make([]ast.Element, 0, len(in))
	for _, e := range in {
		el, err := convertElement(e, mode)
		if err != nil {
			return nil, err
		}
		out = append(out, *el)
	}
	return out, nil
}

func parseInt(raw string) (int64, error) {
	neg := false
	s := raw
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	var n int64
	for _, d := range s {
		if d < '0' || d > '9' {
			return 0, &SyntaxError{Kind: "bad_int", Message: fmt.Sprintf("invalid integer literal %q", raw)}
		}
		n = n*10 + int64(d-'0')
	}
	if neg {
		n = -n
	}
	return n, nil
}
