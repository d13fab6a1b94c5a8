// Package detector post-processes a captured response, annotating header
// and body string leaves that look like a GUID or a timestamp with the
// matching comparison marker, so the formatter can write a loosely-matching
// snapshot instead of a byte-exact one.
package detector

import (
	"time"

	"github.com/google/uuid"

	"github.com/httpsnap/httpsnap/internal/ast"
)

// Kind names one of the fixed detector passes selectable via --detectors.
type Kind string

const (
	Guid      Kind = "guid"
	Timestamp Kind = "timestamp"
)

// timestampLayouts lists the four patterns named in the specification, in
// try-order; first match wins.
var timestampLayouts = []string{
	"Mon, 02 Jan 2006 15:04:05 MST",
	"01/02/2006 03:04:05 PM",
	"20060102T150405Z",
	"2006-01-02T15:04:05Z",
}

var timestampChronoPatterns = []string{
	"%a, %d %b %Y %H:%M:%S %Z",
	"%m/%d/%Y %I:%M:%S %p",
	"%Y%m%dT%H%M%SZ",
	"%Y-%m-%dT%H:%M:%SZ",
}

// Pipeline applies the enabled detector passes, Guid before Timestamp, to
// every header value and body string leaf in resp. It returns a new
// SnapResponse; resp is left untouched.
func Pipeline(resp *ast.SnapResponse, enabled []Kind) *ast.SnapResponse {
	want := make(map[Kind]bool, len(enabled))
	for _, k := range enabled {
		want[k] = true
	}
	out := &ast.SnapResponse{Status: resp.Status}
	out.Headers = make([]ast.Header, len(resp.Headers))
	for i, h := range resp.Headers {
		out.Headers[i] = detectHeader(h, want)
	}
	if resp.Body != nil {
		out.Body = detectElement(resp.Body, want)
	}
	return out
}

func detectHeader(h ast.Header, want map[Kind]bool) ast.Header {
	value := flatten(h.Value)
	if want[Guid] {
		if _, err := uuid.Parse(value); err == nil {
			c := ast.Comparison{Kind: ast.ComparisonGuid}
			return ast.Header{Name: h.Name, Value: h.Value, CaptureAs: h.CaptureAs, Comparison: &c}
		}
	}
	if want[Timestamp] {
		if pattern, ok := matchTimestamp(value); ok {
			c := ast.Comparison{Kind: ast.ComparisonTimestampFormat, Pattern: pattern}
			return ast.Header{Name: h.Name, Value: h.Value, CaptureAs: h.CaptureAs, Comparison: &c}
		}
	}
	return h
}

// detectElement applies the passes post-order: children are visited first,
// then this element's own leaf value is tested. Only string leaves are
// candidates; object/array structure is otherwise preserved unchanged.
func detectElement(e *ast.Element, want map[Kind]bool) *ast.Element {
	switch v := e.Value.(type) {
	case *ast.Object:
		members := make([]ast.Member, len(v.Members))
		for i, m := range v.Members {
			members[i] = ast.Member{Key: m.Key, Value: *detectElement(&m.Value, want)}
		}
		return &ast.Element{Value: &ast.Object{Members: members}, CaptureAs: e.CaptureAs, Comparison: e.Comparison}
	case *ast.ArrayValue:
		elements := make([]ast.Element, len(v.Elements))
		for i := range v.Elements {
			elements[i] = *detectElement(&v.Elements[i], want)
		}
		return &ast.Element{Value: &ast.ArrayValue{Kind: v.Kind, Elements: elements, Name: v.Name}, CaptureAs: e.CaptureAs, Comparison: e.Comparison}
	case ast.StringValue:
		value := flatten(v.Text)
		if want[Guid] {
			if _, err := uuid.Parse(value); err == nil {
				c := ast.Comparison{Kind: ast.ComparisonGuid}
				return &ast.Element{Value: e.Value, CaptureAs: e.CaptureAs, Comparison: &c}
			}
		}
		if want[Timestamp] {
			if pattern, ok := matchTimestamp(value); ok {
				c := ast.Comparison{Kind: ast.ComparisonTimestampFormat, Pattern: pattern}
				return &ast.Element{Value: e.Value, CaptureAs: e.CaptureAs, Comparison: &c}
			}
		}
		return e
	default:
		return e
	}
}

func matchTimestamp(value string) (pattern string, ok bool) {
	for i, layout := range timestampLayouts {
		if _, err := time.Parse(layout, value); err == nil {
			return timestampChronoPatterns[i], true
		}
	}
	return "", false
}

func flatten(cs ast.CompositeString) string {
	out := ""
	for _, p := range cs.Parts {
		if p.IsLiteral() {
			out += p.Literal
		}
	}
	return out
}
