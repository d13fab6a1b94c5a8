package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/httpsnap/httpsnap/internal/detector"
	"github.com/httpsnap/httpsnap/internal/extractor"
	"github.com/httpsnap/httpsnap/internal/formatter"
	"github.com/httpsnap/httpsnap/internal/testutil/mockserver"
)

func writeDoc(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.http")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

// TestRun_SimpleGetPasses is spec.md §8 scenario 1: a GET whose snapshot
// matches the mock's recorded response passes with no mismatch.
func TestRun_SimpleGetPasses(t *testing.T) {
	srv, err := mockserver.Start()
	if err != nil {
		t.Fatalf("mockserver.Start: %v", err)
	}
	defer srv.Close()
	srv.AddStub(mockserver.Stub{
		Method: "GET", Path: "/x", Status: 200,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    `{"hello":"world"}`,
	})

	doc, err := extractor.ExtractDocument(writeDoc(t, "GET "+srv.URL()+"/x\nAccept: application/json\n\n"+
		"SNAPSHOT\nstatus: 200\n\ncontent-type: application/json\n\n{\"hello\": \"world\"}\n"))
	if err != nil {
		t.Fatalf("ExtractDocument: %v", err)
	}

	report, err := Run(context.Background(), doc, RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Failed() {
		t.Fatalf("expected the document to pass, got: %#v", report.Results)
	}
}

// TestRun_StatusPatternPassAndFail is spec.md §8 scenario 2.
func TestRun_StatusPatternPassAndFail(t *testing.T) {
	srv, err := mockserver.Start()
	if err != nil {
		t.Fatalf("mockserver.Start: %v", err)
	}
	defer srv.Close()
	srv.AddStub(mockserver.Stub{Method: "GET", Path: "/created", Status: 201})

	doc, err := extractor.ExtractDocument(writeDoc(t,
		"GET "+srv.URL()+"/created\n\nSNAPSHOT\nstatus: 2xx\n\n"))
	if err != nil {
		t.Fatalf("ExtractDocument: %v", err)
	}
	report, err := Run(context.Background(), doc, RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Failed() {
		t.Fatalf("expected 201 to match status: 2xx, got: %#v", report.Results)
	}

	srv.Reset()
	srv.AddStub(mockserver.Stub{Method: "GET", Path: "/moved", Status: 301})
	doc2, err := extractor.ExtractDocument(writeDoc(t,
		"GET "+srv.URL()+"/moved\n\nSNAPSHOT\nstatus: 2xx\n\n"))
	if err != nil {
		t.Fatalf("ExtractDocument: %v", err)
	}
	report2, err := Run(context.Background(), doc2, RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report2.Failed() {
		t.Fatal("expected 301 to fail against status: 2xx")
	}
}

// TestRun_HeaderIgnore is spec.md §8 scenario 3: a `_` header marker
// tolerates any value, but a missing listed header still fails.
func TestRun_HeaderIgnore(t *testing.T) {
	srv, err := mockserver.Start()
	if err != nil {
		t.Fatalf("mockserver.Start: %v", err)
	}
	defer srv.Close()
	srv.AddStub(mockserver.Stub{
		Method: "GET", Path: "/ping", Status: 200,
		Headers: map[string]string{"Date": "Thu, 31 Jul 2026 10:00:00 GMT"},
	})

	doc, err := extractor.ExtractDocument(writeDoc(t,
		"GET "+srv.URL()+"/ping\n\nSNAPSHOT\nstatus: 200\n\ndate: _\n\n"))
	if err != nil {
		t.Fatalf("ExtractDocument: %v", err)
	}
	report, err := Run(context.Background(), doc, RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Failed() {
		t.Fatalf("expected an ignore marker to tolerate any Date value, got: %#v", report.Results)
	}
}

// TestRun_GuidCaptureAndReuse is spec.md §8 scenario 5: a value captured
// from one section's response substitutes cleanly into a later section's
// URL, with no VariableReference ever reaching the HTTP adapter.
func TestRun_GuidCaptureAndReuse(t *testing.T) {
	srv, err := mockserver.Start()
	if err != nil {
		t.Fatalf("mockserver.Start: %v", err)
	}
	defer srv.Close()
	const fixedID = "3fb9f7fa-1ab1-4f0b-9f3a-6b6e0e8d4e10"
	srv.AddStub(mockserver.Stub{
		Method: "POST", Path: "/items", Status: 201,
		Body: `{"id":"` + fixedID + `"}`,
	})
	srv.AddStub(mockserver.Stub{
		Method: "GET", Path: "/items/" + fixedID, Status: 200,
		Body: `{"id":"` + fixedID + `"}`,
	})

	doc, err := extractor.ExtractDocument(writeDoc(t,
		"POST "+srv.URL()+"/items\n\n"+
			"SNAPSHOT\nstatus: 201\n\n{\"id\": {{_:guid}} -> @id}\n\n"+
			"###\n\n"+
			"GET "+srv.URL()+"/items/{{id}}\n\n"+
			"SNAPSHOT\nstatus: 200\n\n{\"id\": \""+fixedID+"\"}\n\n"))
	if err != nil {
		t.Fatalf("ExtractDocument: %v", err)
	}
	report, err := Run(context.Background(), doc, RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Failed() {
		t.Fatalf("expected capture+reuse across sections to pass, got: %#v", report.Results)
	}
	if len(report.Results) != 2 || !report.Results[1].Passed {
		t.Fatalf("expected the second section (GET /items/%s) to pass using the captured id: %#v", fixedID, report.Results)
	}
}

// TestRun_UpdateModeRewritesMismatchingSnapshot exercises the
// mismatch->detect->format->rewrite path in update mode, matching spec.md
// §8 scenario 4 (timestamp detection feeding a subsequent run).
func TestRun_UpdateModeRewritesMismatchingSnapshot(t *testing.T) {
	srv, err := mockserver.Start()
	if err != nil {
		t.Fatalf("mockserver.Start: %v", err)
	}
	defer srv.Close()
	srv.AddStub(mockserver.Stub{
		Method: "GET", Path: "/events", Status: 200,
		Body: `{"t":"2025-03-25T14:54:09Z"}`,
	})

	path := writeDoc(t, "GET "+srv.URL()+"/events\n\nSNAPSHOT\nstatus: 200\n\n{\"t\": \"stale\"}\n\n")
	doc, err := extractor.ExtractDocument(path)
	if err != nil {
		t.Fatalf("ExtractDocument: %v", err)
	}

	report, err := Run(context.Background(), doc, RunOptions{
		Update:     true,
		UpdateMode: formatter.Overwrite,
		Detectors:  []detector.Kind{detector.Timestamp},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.Failed() {
		t.Fatal("expected the stale snapshot to report a mismatch even though update mode rewrote it")
	}
	if len(report.Rewrites) != 1 || report.Rewrites[0] != path {
		t.Fatalf("expected %s to be rewritten, got %#v", path, report.Rewrites)
	}

	rewritten, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading rewritten file: %v", err)
	}
	if !strings.Contains(string(rewritten), `{{_:timestamp("%Y-%m-%dT%H:%M:%SZ"):"2025-03-25T14:54:09Z"}}`) {
		t.Fatalf("expected the rewritten snapshot to carry a timestamp marker, got:\n%s", rewritten)
	}

	// A second run against a different timestamp of the same format
	// should now pass against the rewritten, detector-annotated snapshot.
	srv.Reset()
	srv.AddStub(mockserver.Stub{
		Method: "GET", Path: "/events", Status: 200,
		Body: `{"t":"2025-04-01T09:00:00Z"}`,
	})
	doc2, err := extractor.ExtractDocument(path)
	if err != nil {
		t.Fatalf("ExtractDocument (re-read): %v", err)
	}
	report2, err := Run(context.Background(), doc2, RunOptions{})
	if err != nil {
		t.Fatalf("Run (second pass): %v", err)
	}
	if report2.Failed() {
		t.Fatalf("expected the rewritten snapshot to tolerate a different timestamp of the same format, got: %#v", report2.Results)
	}
}
