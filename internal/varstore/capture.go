package varstore

import (
	"github.com/httpsnap/httpsnap/internal/ast"
	"github.com/httpsnap/httpsnap/internal/comparator"
)

// Capture walks a matched (snapshot, response) pair in lockstep and binds
// every `-> @name` capture seen in the snapshot to the corresponding value
// observed in the response, grounded on the original implementation's
// extract_variables_from_headers/extract_variables_from_body. Capture is
// only ever called after CompareSnapshot has already reported a match, so
// the two trees are known to have the same shape.
func (s *Store) Capture(snap *ast.Snapshot, resp *ast.SnapResponse) {
	s.captureHeaders(snap.Headers, resp.Headers)
	if snap.Body != nil && resp.Body != nil {
		s.captureElement(snap.Body, resp.Body)
	}
}

func (s *Store) captureHeaders(snapHeaders, respHeaders []ast.Header) {
	respByName := make(map[string]ast.Header, len(respHeaders))
	for _, h := range respHeaders {
		respByName[h.Name] = h
	}
	for _, sh := range snapHeaders {
		if sh.CaptureAs == nil {
			continue
		}
		if rh, ok := respByName[sh.Name]; ok {
			s.variables[*sh.CaptureAs] = ast.StringValue{Text: rh.Value}
		}
	}
}

func (s *Store) captureElement(snapEl, respEl *ast.Element) {
	if snapEl.CaptureAs != nil {
		s.variables[*snapEl.CaptureAs] = respEl.Value
	}
	switch snapVal := snapEl.Value.(type) {
	case *ast.Object:
		respObj, ok := respEl.Value.(*ast.Object)
		if !ok {
			return
		}
		respByKey := make(map[string]*ast.Element, len(respObj.Members))
		for i := range respObj.Members {
			respByKey[respObj.Members[i].Key] = &respObj.Members[i].Value
		}
		for i := range snapVal.Members {
			if respChild, ok := respByKey[snapVal.Members[i].Key]; ok {
				s.captureElement(&snapVal.Members[i].Value, respChild)
			}
		}
	case *ast.ArrayValue:
		respArr, ok := respEl.Value.(*ast.ArrayValue)
		if !ok {
			return
		}
		offset := arrayMatchOffset(snapVal, respArr)
		for i := range snapVal.Elements {
			j := i + offset
			if j < 0 || j >= len(respArr.Elements) {
				continue
			}
			s.captureElement(&snapVal.Elements[i], &respArr.Elements[j])
		}
	}
}

// arrayMatchOffset mirrors the comparator's own array-variant placement so
// capture binds against the same response elements the comparator matched.
func arrayMatchOffset(snap, resp *ast.ArrayValue) int {
	switch snap.Kind {
	case ast.ArrayEndsWith:
		return len(resp.Elements) - len(snap.Elements)
	case ast.ArrayContains:
		if start, ok := comparator.FindContainsWindow(snap, resp); ok {
			return start
		}
		return 0
	default:
		return 0
	}
}
