package varstore

import (
	"testing"

	"github.com/httpsnap/httpsnap/internal/ast"
	"github.com/httpsnap/httpsnap/internal/langparse"
)

func mustParseElement(t *testing.T, input string, mode langparse.Mode) *ast.Element {
	t.Helper()
	el, err := langparse.ParseElement(input, mode)
	if err != nil {
		t.Fatalf("ParseElement(%q) failed: %v", input, err)
	}
	return el
}

func mustParseComposite(t *testing.T, input string) ast.CompositeString {
	t.Helper()
	cs, err := langparse.ParseCompositeString(input, false)
	if err != nil {
		t.Fatalf("ParseCompositeString(%q) failed: %v", input, err)
	}
	return cs
}

func TestGenerateDeclared_GuidThenLiteralInOrder(t *testing.T) {
	s := New()
	decls := []ast.VarDecl{
		{Name: "sessionId", Generator: ast.GeneratorGuid},
		{Name: "greeting", Value: ast.StringValue{Text: mustParseComposite(t, "hello {{sessionId}}")}},
	}
	if err := s.GenerateDeclared(decls); err != nil {
		t.Fatalf("GenerateDeclared failed: %v", err)
	}

	sessionVal, ok := s.lookup("sessionId")
	if !ok {
		t.Fatal("expected sessionId to be bound")
	}
	sessionID := sessionVal.(ast.StringValue).Text.Parts[0].Literal
	if sessionID == "" {
		t.Fatal("expected a non-empty generated GUID")
	}

	greeting, ok := s.lookup("greeting")
	if !ok {
		t.Fatal("expected greeting to be bound")
	}
	want := "hello " + sessionID
	got := greeting.(ast.StringValue).Text.Parts[0].Literal
	if got != want {
		t.Errorf("greeting = %q, want %q", got, want)
	}
}

func TestGenerateDeclared_MissingVariableIsAnError(t *testing.T) {
	s := New()
	decls := []ast.VarDecl{
		{Name: "x", Value: ast.StringValue{Text: mustParseComposite(t, "{{undeclared}}")}},
	}
	if err := s.GenerateDeclared(decls); err == nil {
		t.Fatal("expected an error referencing an undeclared variable")
	}
}

func TestSubstituteRequest_ResolvesURLHeadersAndBody(t *testing.T) {
	s := New()
	s.Extend(map[string]ast.Value{
		"host":  ast.StringValue{Text: mustParseComposite(t, "example.com")},
		"token": ast.StringValue{Text: mustParseComposite(t, "abc123")},
		"limit": ast.NumberValue{Kind: ast.NumberInt, Int: 10},
	})

	req := &ast.Request{
		Method: ast.VerbGet,
		URL:    mustParseComposite(t, "https://{{host}}/items?limit={{limit}}"),
		Headers: []ast.Header{
			{Name: "Authorization", Value: mustParseComposite(t, "Bearer {{token}}")},
		},
		Body: mustParseElement(t, `{"count": {{limit}}}`, langparse.RequestMode),
	}

	out, err := s.SubstituteRequest(req)
	if err != nil {
		t.Fatalf("SubstituteRequest failed: %v", err)
	}

	wantURL := "https://example.com/items?limit=10"
	if flattenCompositeString(out.URL) != wantURL {
		t.Errorf("URL = %q, want %q", flattenCompositeString(out.URL), wantURL)
	}
	wantAuth := "Bearer abc123"
	if flattenCompositeString(out.Headers[0].Value) != wantAuth {
		t.Errorf("Authorization header = %q, want %q", flattenCompositeString(out.Headers[0].Value), wantAuth)
	}
	body := out.Body.Value.(*ast.Object)
	count := body.Members[0].Value.Value.(ast.NumberValue)
	if count.Int != 10 {
		t.Errorf("body count = %d, want 10", count.Int)
	}
}

func TestSubstituteCompositeString_ObjectInStringContextIsAnError(t *testing.T) {
	s := New()
	s.Extend(map[string]ast.Value{
		"obj": &ast.Object{Members: []ast.Member{{Key: "a", Value: ast.Element{Value: ast.NumberValue{Kind: ast.NumberInt, Int: 1}}}}},
	})
	_, err := s.SubstituteCompositeString(mustParseComposite(t, "value: {{obj}}"))
	if err == nil {
		t.Fatal("expected an error interpolating an object into a string context")
	}
	ve, ok := err.(*VarError)
	if !ok || ve.Kind != "var_in_non_string_context" {
		t.Errorf("err = %#v, want VarError{Kind: var_in_non_string_context}", err)
	}
}

func TestSubstitute_PreviousHeaderSugar(t *testing.T) {
	s := New()
	s.SetPrevious(&ast.SnapResponse{
		Status: 200,
		Headers: []ast.Header{
			{Name: "X-Request-Id", Value: mustParseComposite(t, "req-42")},
		},
	})

	cs, err := s.SubstituteCompositeString(mustParseComposite(t, `{{previous.headers["X-Request-Id"]}}`))
	if err != nil {
		t.Fatalf("SubstituteCompositeString failed: %v", err)
	}
	if got := flattenCompositeString(cs); got != "req-42" {
		t.Errorf("got %q, want %q", got, "req-42")
	}
}

func TestSubstitute_PreviousHeaderSugarMissingHeaderIsAnError(t *testing.T) {
	s := New()
	s.SetPrevious(&ast.SnapResponse{Status: 200})
	_, err := s.SubstituteCompositeString(mustParseComposite(t, `{{previous.headers["Nope"]}}`))
	if err == nil {
		t.Fatal("expected an error for a missing previous response header")
	}
}

func TestCapture_HeadersAndNestedBody(t *testing.T) {
	s := New()
	snap := &ast.Snapshot{
		Status: ast.StatusMatcher{Pattern: "200"},
		Headers: []ast.Header{
			{Name: "X-Trace-Id", CaptureAs: strPtr("traceId")},
		},
		Body: mustParseElement(t, `{"user": {"id": 0 -> @userId}}`, langparse.SnapshotMode),
	}
	resp := &ast.SnapResponse{
		Status: 200,
		Headers: []ast.Header{
			{Name: "X-Trace-Id", Value: mustParseComposite(t, "trace-abc")},
		},
		Body: mustParseElement(t, `{"user": {"id": 99}}`, langparse.RequestMode),
	}

	s.Capture(snap, resp)

	traceID, ok := s.lookup("traceId")
	if !ok || flattenCompositeString(traceID.(ast.StringValue).Text) != "trace-abc" {
		t.Errorf("traceId = %#v, want StringValue(\"trace-abc\")", traceID)
	}
	userID, ok := s.lookup("userId")
	if !ok {
		t.Fatal("expected userId to be captured")
	}
	n, ok := userID.(ast.NumberValue)
	if !ok || n.Int != 99 {
		t.Errorf("userId = %#v, want NumberValue{Int: 99}", userID)
	}
}

func strPtr(s string) *string { return &s }
