// Package formatter renders the AST back into the document's canonical
// textual form, and merges a freshly captured snapshot into an existing
// request's raw source text for `update` mode.
package formatter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/httpsnap/httpsnap/internal/ast"
)

// FormatSnapshot renders a captured response as a SNAPSHOT block's body,
// grounded on the original implementation's format_snapshot/format_header/
// format_value family: status line, blank line, sorted headers, blank line,
// body.
func FormatSnapshot(resp *ast.SnapResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "status: %03d\n\n", resp.Status)

	headers := make([]ast.Header, len(resp.Headers))
	copy(headers, resp.Headers)
	sort.Slice(headers, func(i, j int) bool { return headers[i].Name < headers[j].Name })
	for _, h := range headers {
		fmt.Fprintf(&b, "%s: %s\n", h.Name, formatHeaderValue(h))
	}
	b.WriteString("\n")

	if resp.Body != nil {
		b.WriteString(FormatElement(resp.Body, 0))
		b.WriteString("\n")
	}
	return b.String()
}

func formatHeaderValue(h ast.Header) string {
	if h.Comparison != nil {
		return formatComparisonMarker(*h.Comparison, formatCompositeString(h.Value))
	}
	return formatCompositeString(h.Value)
}

func formatComparisonMarker(c ast.Comparison, concrete string) string {
	switch c.Kind {
	case ast.ComparisonIgnore:
		return "{{_:_}}"
	case ast.ComparisonGuid:
		return fmt.Sprintf("{{_:guid:%s}}", concrete)
	case ast.ComparisonTimestampFormat:
		return fmt.Sprintf("{{_:timestamp(%q):%s}}", c.Pattern, concrete)
	default:
		return concrete
	}
}

func formatCompositeString(cs ast.CompositeString) string {
	var b strings.Builder
	for _, p := range cs.Parts {
		if p.IsLiteral() {
			b.WriteString(p.Literal)
		} else {
			fmt.Fprintf(&b, "{{%s}}", p.VarRef)
		}
	}
	return b.String()
}

// FormatElement renders one Element (value plus marker/capture decorations)
// at the given indent depth, 2 spaces per depth, matching merger.rs.
func FormatElement(e *ast.Element, depth int) string {
	body := formatValue(e.Value, depth, e.Comparison)
	if e.CaptureAs != nil {
		body = fmt.Sprintf("%s -> @%s", body, *e.CaptureAs)
	}
	return body
}

func formatValue(v ast.Value, depth int, comparison *ast.Comparison) string {
	switch val := v.(type) {
	case ast.VarRef:
		return fmt.Sprintf("{{%s}}", val.Name)
	case *ast.Object:
		return formatObject(val, depth, comparison)
	case *ast.ArrayValue:
		return formatArray(val, depth)
	case ast.StringValue:
		rendered := fmt.Sprintf("%q", formatCompositeString(val.Text))
		if comparison != nil {
			return formatComparisonMarker(*comparison, rendered)
		}
		return rendered
	case ast.NumberValue:
		rendered := formatNumber(val)
		if comparison != nil {
			return formatComparisonMarker(*comparison, rendered)
		}
		return rendered
	case ast.BoolValue:
		if val.Value {
			return "true"
		}
		return "false"
	case ast.NullValue:
		if comparison != nil {
			return formatComparisonMarker(*comparison, "null")
		}
		return "null"
	}
	return ""
}

func formatNumber(n ast.NumberValue) string {
	switch n.Kind {
	case ast.NumberInt:
		return strconv.FormatInt(n.Int, 10)
	default:
		return n.Raw
	}
}

func indent(depth int) string { return strings.Repeat("  ", depth) }

func formatObject(o *ast.Object, depth int, comparison *ast.Comparison) string {
	_ = comparison // object-level comparison markers are not representable; callers only pass it through for leaf values
	if len(o.Members) == 0 {
		return "{}"
	}
	var b strings.Builder
	b.WriteString("{\n")
	for i, m := range o.Members {
		b.WriteString(indent(depth + 1))
		fmt.Fprintf(&b, "%q: %s", m.Key, FormatElement(&m.Value, depth+1))
		if i < len(o.Members)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(indent(depth))
	b.WriteString("}")
	return b.String()
}

func formatArray(a *ast.ArrayValue, depth int) string {
	if a.Kind == ast.ArrayVarRef {
		return fmt.Sprintf("{{%s}}", a.Name)
	}
	if len(a.Elements) == 0 {
		return "[]"
	}
	var b strings.Builder
	b.WriteString("[\n")
	prefix, suffix := "", ""
	switch a.Kind {
	case ast.ArrayStartsWith:
		suffix = ", ..."
	case ast.ArrayEndsWith:
		prefix = "..., "
	case ast.ArrayContains:
		prefix, suffix = "..., ", ", ..."
	}
	for i, e := range a.Elements {
		b.WriteString(indent(depth + 1))
		if i == 0 && prefix != "" {
			b.WriteString(strings.TrimSuffix(prefix, " "))
			b.WriteString("\n")
			b.WriteString(indent(depth + 1))
		}
		b.WriteString(FormatElement(&e, depth+1))
		if i < len(a.Elements)-1 || suffix != "" {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	if suffix != "" {
		b.WriteString(indent(depth + 1))
		b.WriteString(strings.TrimPrefix(suffix, ", "))
		b.WriteString("\n")
	}
	b.WriteString(indent(depth))
	b.WriteString("]")
	return b.String()
}
