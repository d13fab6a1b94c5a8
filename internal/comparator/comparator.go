// Package comparator implements structural matching between a snapshot and
// an executed response: status, headers, and recursive body comparison with
// array-variant dispatch.
package comparator

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/httpsnap/httpsnap/internal/ast"
)

// Mismatch describes the first (or, across multiple snapshot options, the
// last) point of divergence found between a snapshot and a response.
type Mismatch struct {
	Path     string
	Expected string
	Actual   string
}

func (m *Mismatch) Error() string {
	return fmt.Sprintf("mismatch at %s: expected %s, got %s", m.Path, m.Expected, m.Actual)
}

// CompareSnapshot reports whether resp satisfies snap. On failure it returns
// the Mismatch describing the first divergence encountered.
func CompareSnapshot(snap *ast.Snapshot, resp *ast.SnapResponse) *Mismatch {
	if !snap.Status.Matches(resp.Status) {
		return &Mismatch{Path: "status", Expected: snap.Status.Pattern, Actual: fmt.Sprintf("%03d", resp.Status)}
	}
	if mm := compareHeaders(snap.Headers, resp.Headers); mm != nil {
		return mm
	}
	return compareBody(snap.Body, resp.Body, "$")
}

func compareHeaders(snapHeaders, respHeaders []ast.Header) *Mismatch {
	if len(respHeaders) > len(snapHeaders) {
		return &Mismatch{
			Path:     "headers",
			Expected: fmt.Sprintf("%d headers", len(snapHeaders)),
			Actual:   fmt.Sprintf("%d headers", len(respHeaders)),
		}
	}
	respByName := make(map[string]ast.Header, len(respHeaders))
	for _, h := range respHeaders {
		respByName[h.Name] = h
	}
	for _, sh := range snapHeaders {
		rh, ok := respByName[sh.Name]
		if !ok {
			return &Mismatch{Path: "headers." + sh.Name, Expected: "present", Actual: "missing"}
		}
		if mm := compareHeaderValue(sh, rh); mm != nil {
			return mm
		}
	}
	return nil
}

func compareHeaderValue(snap, resp ast.Header) *Mismatch {
	path := "headers." + snap.Name
	kind := ast.ComparisonExact
	if snap.Comparison != nil {
		kind = snap.Comparison.Kind
	}
	switch kind {
	case ast.ComparisonIgnore:
		return nil
	case ast.ComparisonGuid:
		if _, err := uuid.Parse(flatten(resp.Value)); err != nil {
			return &Mismatch{Path: path, Expected: "guid", Actual: flatten(resp.Value)}
		}
		return nil
	case ast.ComparisonTimestampFormat:
		layout := translateLayout(snap.Comparison.Pattern)
		if _, err := time.Parse(layout, flatten(resp.Value)); err != nil {
			return &Mismatch{Path: path, Expected: fmt.Sprintf("timestamp(%s)", snap.Comparison.Pattern), Actual: flatten(resp.Value)}
		}
		return nil
	default:
		expected, actual := flatten(snap.Value), flatten(resp.Value)
		if expected != actual {
			return &Mismatch{Path: path, Expected: expected, Actual: actual}
		}
		return nil
	}
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

// translateLayout converts the four chrono-style patterns named in the
// specification into Go reference-time layouts.
func translateLayout(pattern string) string {
	switch pattern {
	case "%a, %d %b %Y %H:%M:%S %Z":
		return "Mon, 02 Jan 2006 15:04:05 MST"
	case "%m/%d/%Y %I:%M:%S %p":
		return "01/02/2006 03:04:05 PM"
	case "%Y%m%dT%H%M%SZ":
		return "20060102T150405Z"
	case "%Y-%m-%dT%H:%M:%SZ":
		return "2006-01-02T15:04:05Z"
	default:
		return pattern
	}
}

func compareBody(snap, resp *ast.Element, path string) *Mismatch {
	if snap == nil {
		return nil
	}
	if resp == nil {
		return &Mismatch{Path: path, Expected: "body", Actual: "no body"}
	}
	if snap.Comparison != nil && snap.Comparison.Kind == ast.ComparisonIgnore {
		return nil
	}
	if snap.Comparison != nil {
		return compareHeaderValue(
			ast.Header{Name: path, Value: mustString(snap.Value), Comparison: snap.Comparison},
			ast.Header{Name: path, Value: mustString(resp.Value)},
		)
	}
	return compareValue(snap.Value, resp.Value, path)
}

func mustString(v ast.Value) ast.CompositeString {
	if sv, ok := v.(ast.StringValue); ok {
		return sv.Text
	}
	return ast.CompositeString{}
}

func compareValue(snap, resp ast.Value, path string) *Mismatch {
	switch sv := snap.(type) {
	case *ast.Object:
		ro, ok := resp.(*ast.Object)
		if !ok {
			return &Mismatch{Path: path, Expected: "object", Actual: describeKind(resp)}
		}
		return compareObject(sv, ro, path)
	case *ast.ArrayValue:
		ra, ok := resp.(*ast.ArrayValue)
		if !ok {
			return &Mismatch{Path: path, Expected: "array", Actual: describeKind(resp)}
		}
		return compareArray(sv, ra, path)
	case ast.StringValue:
		rs, ok := resp.(ast.StringValue)
		if !ok {
			return &Mismatch{Path: path, Expected: "string", Actual: describeKind(resp)}
		}
		if flatten(sv.Text) != flatten(rs.Text) {
			return &Mismatch{Path: path, Expected: flatten(sv.Text), Actual: flatten(rs.Text)}
		}
		return nil
	case ast.NumberValue:
		rn, ok := resp.(ast.NumberValue)
		if !ok {
			return &Mismatch{Path: path, Expected: "number", Actual: describeKind(resp)}
		}
		if !numbersEqual(sv, rn) {
			return &Mismatch{Path: path, Expected: numberText(sv), Actual: numberText(rn)}
		}
		return nil
	case ast.BoolValue:
		rb, ok := resp.(ast.BoolValue)
		if !ok || rb.Value != sv.Value {
			return &Mismatch{Path: path, Expected: fmt.Sprintf("%v", sv.Value), Actual: describeKind(resp)}
		}
		return nil
	case ast.NullValue:
		if _, ok := resp.(ast.NullValue); !ok {
			return &Mismatch{Path: path, Expected: "null", Actual: describeKind(resp)}
		}
		return nil
	}
	return nil
}

func numbersEqual(a, b ast.NumberValue) bool {
	if a.Kind == ast.NumberInt && b.Kind == ast.NumberInt {
		return a.Int == b.Int
	}
	return numberText(a) == numberText(b)
}

func numberText(n ast.NumberValue) string {
	if n.Kind == ast.NumberInt {
		return fmt.Sprintf("%d", n.Int)
	}
	return n.Raw
}

func describeKind(v ast.Value) string {
	switch v.(type) {
	case *ast.Object:
		return "object"
	case *ast.ArrayValue:
		return "array"
	case ast.StringValue:
		return "string"
	case ast.NumberValue:
		return "number"
	case ast.BoolValue:
		return "boolean"
	case ast.NullValue:
		return "null"
	default:
		return "unknown"
	}
}

func compareObject(snap, resp *ast.Object, path string) *Mismatch {
	if len(snap.Members) != len(resp.Members) {
		return &Mismatch{Path: path, Expected: fmt.Sprintf("%d members", len(snap.Members)), Actual: fmt.Sprintf("%d members", len(resp.Members))}
	}
	respByKey := make(map[string]*ast.Element, len(resp.Members))
	for i := range resp.Members {
		respByKey[resp.Members[i].Key] = &resp.Members[i].Value
	}
	for _, m := range snap.Members {
		rv, ok := respByKey[m.Key]
		if !ok {
			return &Mismatch{Path: path + "." + m.Key, Expected: "present", Actual: "missing"}
		}
		if mm := compareBody(&m.Value, rv, path+"."+m.Key); mm != nil {
			return mm
		}
	}
	return nil
}

func compareArray(snap, resp *ast.ArrayValue, path string) *Mismatch {
	switch snap.Kind {
	case ast.ArrayLiteral:
		if len(snap.Elements) != len(resp.Elements) {
			return &Mismatch{Path: path, Expected: fmt.Sprintf("%d elements", len(snap.Elements)), Actual: fmt.Sprintf("%d elements", len(resp.Elements))}
		}
		for i := range snap.Elements {
			if mm := compareBody(&snap.Elements[i], &resp.Elements[i], fmt.Sprintf("%s[%d]", path, i)); mm != nil {
				return mm
			}
		}
		return nil
	case ast.ArrayStartsWith:
		if len(resp.Elements) < len(snap.Elements) {
			return &Mismatch{Path: path, Expected: fmt.Sprintf("at least %d elements", len(snap.Elements)), Actual: fmt.Sprintf("%d elements", len(resp.Elements))}
		}
		for i := range snap.Elements {
			if mm := compareBody(&snap.Elements[i], &resp.Elements[i], fmt.Sprintf("%s[%d]", path, i)); mm != nil {
				return mm
			}
		}
		return nil
	case ast.ArrayEndsWith:
		if len(resp.Elements) < len(snap.Elements) {
			return &Mismatch{Path: path, Expected: fmt.Sprintf("at least %d elements", len(snap.Elements)), Actual: fmt.Sprintf("%d elements", len(resp.Elements))}
		}
		offset := len(resp.Elements) - len(snap.Elements)
		for i := range snap.Elements {
			if mm := compareBody(&snap.Elements[i], &resp.Elements[offset+i], fmt.Sprintf("%s[%d]", path, offset+i)); mm != nil {
				return mm
			}
		}
		return nil
	case ast.ArrayContains:
		start, ok := FindContainsWindow(snap, resp)
		if !ok {
			return &Mismatch{Path: path, Expected: "a contiguous matching window", Actual: fmt.Sprintf("%d elements", len(resp.Elements))}
		}
		for i := range snap.Elements {
			if mm := compareBody(&snap.Elements[i], &resp.Elements[start+i], fmt.Sprintf("%s[%d]", path, start+i)); mm != nil {
				return mm
			}
		}
		return nil
	default:
		return nil
	}
}

// FindContainsWindow returns the leftmost, earliest-starting index in resp
// at which every element of snap matches contiguously, or false if no such
// window exists. Exported so varstore.Capture can bind against the same
// window the comparator matched.
func FindContainsWindow(snap, resp *ast.ArrayValue) (int, bool) {
	n, m := len(snap.Elements), len(resp.Elements)
	if n > m {
		return 0, false
	}
	for start := 0; start+n <= m; start++ {
		ok := true
		for i := 0; i < n; i++ {
			if compareBody(&snap.Elements[i], &resp.Elements[start+i], "$") != nil {
				ok = false
				break
			}
		}
		if ok {
			return start, true
		}
	}
	return 0, false
}
