package varstore

import (
	"fmt"
	"regexp"

	"github.com/httpsnap/httpsnap/internal/ast"
)

// VarError reports a substitution failure: a missing variable, or a
// variable used where only a string can go (an Object/Array/Null bound to a
// name interpolated inside a string).
type VarError struct {
	Kind    string
	Message string
}

func (e *VarError) Error() string {
	return fmt.Sprintf("variable error (%s): %s", e.Kind, e.Message)
}

var previousHeaderPattern = regexp.MustCompile(`^previous\.headers\["([a-zA-Z0-9_\-]+)"\]$`)

// Substitute replaces every VarRef node reachable from v with its bound
// value. It is total: every branch of the AST is visited, and idempotent:
// running it again over output containing no VarRef nodes is a no-op.
func (s *Store) Substitute(v ast.Value) (ast.Value, error) {
	switch val := v.(type) {
	case ast.VarRef:
		return s.resolve(val.Name)
	case *ast.Object:
		members := make([]ast.Member, len(val.Members))
		for i, m := range val.Members {
			el, err := s.SubstituteElement(&m.Value)
			if err != nil {
				return nil, err
			}
			members[i] = ast.Member{Key: m.Key, Value: *el}
		}
		return &ast.Object{Members: members}, nil
	case *ast.ArrayValue:
		if val.Kind == ast.ArrayVarRef {
			resolved, err := s.resolve(val.Name)
			if err != nil {
				return nil, err
			}
			arr, ok := resolved.(*ast.ArrayValue)
			if !ok {
				return nil, &VarError{Kind: "not_an_array", Message: fmt.Sprintf("variable %q is not an array", val.Name)}
			}
			return arr, nil
		}
		elements := make([]ast.Element, len(val.Elements))
		for i, e := range val.Elements {
			el, err := s.SubstituteElement(&e)
			if err != nil {
				return nil, err
			}
			elements[i] = *el
		}
		return &ast.ArrayValue{Kind: val.Kind, Elements: elements}, nil
	case ast.StringValue:
		text, err := s.SubstituteCompositeString(val.Text)
		if err != nil {
			return nil, err
		}
		return ast.StringValue{Text: text}, nil
	default:
		return v, nil
	}
}

// SubstituteElement substitutes the value inside an Element, preserving its
// capture/comparison decorations unchanged.
func (s *Store) SubstituteElement(e *ast.Element) (*ast.Element, error) {
	val, err := s.Substitute(e.Value)
	if err != nil {
		return nil, err
	}
	return &ast.Element{Value: val, CaptureAs: e.CaptureAs, Comparison: e.Comparison}, nil
}

// SubstituteCompositeString stringifies each variable reference part. Only
// String, Number and Boolean values may be interpolated into a string
// context; Object, Array and Null are a hard error, matching the original
// implementation's replace_in_composite_string.
func (s *Store) SubstituteCompositeString(cs ast.CompositeString) (ast.CompositeString, error) {
	out := make([]ast.CompositeStringPart, 0, len(cs.Parts))
	for _, p := range cs.Parts {
		if p.IsLiteral() {
			out = append(out, p)
			continue
		}
		resolved, err := s.resolve(p.VarRef)
		if err != nil {
			return ast.CompositeString{}, err
		}
		text, err := stringifyForContext(p.VarRef, resolved)
		if err != nil {
			return ast.CompositeString{}, err
		}
		out = append(out, ast.CompositeStringPart{Literal: text})
	}
	return ast.CompositeString{Parts: ast.MergeLiterals(out)}, nil
}

func stringifyForContext(name string, v ast.Value) (string, error) {
	switch val := v.(type) {
	case ast.StringValue:
		return flattenCompositeString(val.Text), nil
	case ast.NumberValue:
		return formatNumberForString(val), nil
	case ast.BoolValue:
		if val.Value {
			return "true", nil
		}
		return "false", nil
	default:
		return "", &VarError{Kind: "var_in_non_string_context", Message: fmt.Sprintf("variable %q cannot be used in a string", name)}
	}
}

func formatNumberForString(n ast.NumberValue) string {
	if n.Kind == ast.NumberInt {
		return fmt.Sprintf("%d", n.Int)
	}
	return n.Raw
}

func (s *Store) resolve(name string) (ast.Value, error) {
	if m := previousHeaderPattern.FindStringSubmatch(name); m != nil {
		val, ok := s.lookupPreviousHeader(m[1])
		if !ok {
			return nil, &VarError{Kind: "missing_previous_header", Message: fmt.Sprintf("no previous response header named %q", m[1])}
		}
		return ast.StringValue{Text: ast.CompositeString{Parts: []ast.CompositeStringPart{{Literal: val}}}}, nil
	}
	v, ok := s.lookup(name)
	if !ok {
		return nil, &VarError{Kind: "missing_variable", Message: fmt.Sprintf("variable %q is not declared", name)}
	}
	return v, nil
}

// SubstituteHeaders substitutes every header's composite-string value.
func (s *Store) SubstituteHeaders(headers []ast.Header) ([]ast.Header, error) {
	out := make([]ast.Header, len(headers))
	for i, h := range headers {
		text, err := s.SubstituteCompositeString(h.Value)
		if err != nil {
			return nil, err
		}
		out[i] = ast.Header{Name: h.Name, Value: text, CaptureAs: h.CaptureAs, Comparison: h.Comparison}
	}
	return out, nil
}

// SubstituteRequest resolves every variable reference in a request: its URL,
// headers and body. Snapshot options are left untouched — they are compared
// against, not executed.
func (s *Store) SubstituteRequest(req *ast.Request) (*ast.Request, error) {
	url, err := s.SubstituteCompositeString(req.URL)
	if err != nil {
		return nil, err
	}
	headers, err := s.SubstituteHeaders(req.Headers)
	if err != nil {
		return nil, err
	}
	var body *ast.Element
	if req.Body != nil {
		body, err = s.SubstituteElement(req.Body)
		if err != nil {
			return nil, err
		}
	}
	return &ast.Request{
		Variables: req.Variables,
		Method:    req.Method,
		URL:       url,
		Headers:   headers,
		Body:      body,
		Snapshots: req.Snapshots,
	}, nil
}
