package docparse

import (
	"testing"

	"github.com/httpsnap/httpsnap/internal/ast"
)

func TestParseSection_DelaySection(t *testing.T) {
	sec, err := ParseSection("doc.http", "sleep 500\n")
	if err != nil {
		t.Fatalf("ParseSection failed: %v", err)
	}
	delay, ok := sec.(*ast.DelaySection)
	if !ok {
		t.Fatalf("expected *ast.DelaySection, got %T", sec)
	}
	if delay.DurationMS != 500 {
		t.Errorf("DurationMS = %d, want 500", delay.DurationMS)
	}
	if delay.RawText != "sleep 500\n" {
		t.Errorf("RawText = %q, want original text preserved", delay.RawText)
	}
}

func TestParseSection_SimpleRequestNoBodyNoSnapshot(t *testing.T) {
	text := "GET https://example.com/items\nAccept: application/json\n"
	sec, err := ParseSection("doc.http", text)
	if err != nil {
		t.Fatalf("ParseSection failed: %v", err)
	}
	reqSec, ok := sec.(*ast.RequestSection)
	if !ok {
		t.Fatalf("expected *ast.RequestSection, got %T", sec)
	}
	if reqSec.Request.Method != ast.VerbGet {
		t.Errorf("Method = %v, want GET", reqSec.Request.Method)
	}
	if len(reqSec.Request.Headers) != 1 || reqSec.Request.Headers[0].Name != "Accept" {
		t.Errorf("Headers = %#v, want one Accept header", reqSec.Request.Headers)
	}
	if reqSec.Request.Body != nil {
		t.Errorf("expected no body, got %#v", reqSec.Request.Body)
	}
	if len(reqSec.Request.Snapshots) != 0 {
		t.Errorf("expected no snapshots, got %d", len(reqSec.Request.Snapshots))
	}
}

func TestParseSection_VariableDeclarationsAndBody(t *testing.T) {
	text := `@sessionId = generate(guid)
@limit = 10

POST https://example.com/items
Content-Type: application/json

{"limit": {{limit}}}
`
	sec, err := ParseSection("doc.http", text)
	if err != nil {
		t.Fatalf("ParseSection failed: %v", err)
	}
	reqSec := sec.(*ast.RequestSection)
	if len(reqSec.Request.Variables) != 2 {
		t.Fatalf("expected 2 variable declarations, got %d", len(reqSec.Request.Variables))
	}
	if reqSec.Request.Variables[0].Name != "sessionId" || reqSec.Request.Variables[0].Generator != ast.GeneratorGuid {
		t.Errorf("first decl = %#v, want sessionId generate(guid)", reqSec.Request.Variables[0])
	}
	if reqSec.Request.Body == nil {
		t.Fatal("expected a parsed body")
	}
	obj, ok := reqSec.Request.Body.Value.(*ast.Object)
	if !ok || len(obj.Members) != 1 {
		t.Fatalf("expected a one-member object body, got %#v", reqSec.Request.Body.Value)
	}
}

func TestParseSection_SnapshotWithCaptureAndMultipleOptions(t *testing.T) {
	text := `GET https://example.com/items/1

SNAPSHOT
status: 200
X-Trace-Id: _ -> @traceId

{"id": 1}

||

status: 404
`
	sec, err := ParseSection("doc.http", text)
	if err != nil {
		t.Fatalf("ParseSection failed: %v", err)
	}
	reqSec := sec.(*ast.RequestSection)
	if len(reqSec.Request.Snapshots) != 2 {
		t.Fatalf("expected 2 snapshot options, got %d", len(reqSec.Request.Snapshots))
	}
	first := reqSec.Request.Snapshots[0]
	if first.Status.Pattern != "200" {
		t.Errorf("first option status = %q, want 200", first.Status.Pattern)
	}
	if len(first.Headers) != 1 || first.Headers[0].CaptureAs == nil || *first.Headers[0].CaptureAs != "traceId" {
		t.Errorf("expected X-Trace-Id captured as traceId, got %#v", first.Headers)
	}
	if first.Headers[0].Comparison == nil || first.Headers[0].Comparison.Kind != ast.ComparisonIgnore {
		t.Errorf("expected an Ignore marker on X-Trace-Id, got %#v", first.Headers[0].Comparison)
	}
	second := reqSec.Request.Snapshots[1]
	if second.Status.Pattern != "404" {
		t.Errorf("second option status = %q, want 404", second.Status.Pattern)
	}
}

func TestParseSection_HeaderGuidAndTimestampMarkers(t *testing.T) {
	text := `GET https://example.com/

SNAPSHOT
status: 200
X-Request-Id: {{_:guid:abc-123}}
Date: {{_:timestamp("%a, %d %b %Y %H:%M:%S %Z"):Thu, 31 Jul 2026 10:00:00 GMT}}
`
	sec, err := ParseSection("doc.http", text)
	if err != nil {
		t.Fatalf("ParseSection failed: %v", err)
	}
	reqSec := sec.(*ast.RequestSection)
	snap := reqSec.Request.Snapshots[0]
	if snap.Headers[0].Comparison == nil || snap.Headers[0].Comparison.Kind != ast.ComparisonGuid {
		t.Errorf("expected a Guid marker, got %#v", snap.Headers[0].Comparison)
	}
	tsHeader := snap.Headers[1]
	if tsHeader.Comparison == nil || tsHeader.Comparison.Kind != ast.ComparisonTimestampFormat {
		t.Fatalf("expected a TimestampFormat marker, got %#v", tsHeader.Comparison)
	}
	if tsHeader.Comparison.Pattern != `%a, %d %b %Y %H:%M:%S %Z` {
		t.Errorf("pattern = %q, want the RFC1123 chrono pattern", tsHeader.Comparison.Pattern)
	}
}

func TestParseDeclarations_SkipsBlankLinesAndRejectsOther(t *testing.T) {
	decls, err := ParseDeclarations("@host = \"example.com\"\n\n@sessionId = generate(guid)\n")
	if err != nil {
		t.Fatalf("ParseDeclarations failed: %v", err)
	}
	if len(decls) != 2 {
		t.Fatalf("expected 2 declarations, got %d", len(decls))
	}

	_, err = ParseDeclarations("not a declaration\n")
	if err == nil {
		t.Fatal("expected an error for non-declaration content")
	}
	if _, ok := err.(*ParseError); !ok {
		t.Errorf("err = %#v, want *ParseError", err)
	}
}

func TestParseSection_MalformedMethodLineIsAnError(t *testing.T) {
	_, err := ParseSection("doc.http", "NOTAVERB https://example.com/\n")
	if err == nil {
		t.Fatal("expected an error for an unknown HTTP method")
	}
}
