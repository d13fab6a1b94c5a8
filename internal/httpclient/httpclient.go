// Package httpclient is the thin HTTP transport adapter described in
// spec.md §6 as an external collaborator, grounded on
// original_source/src/client.rs's HttpClient: one shared *http.Client (and
// cookie jar, reset per document per spec.md §5) per document run, with
// default headers applied before request-specific ones.
package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/httpsnap/httpsnap/internal/ast"
	"github.com/httpsnap/httpsnap/internal/formatter"
	"github.com/httpsnap/httpsnap/internal/langparse"
)

// Header is a raw name/value pair, as loaded from the client-options file
// (spec.md §6); unlike ast.Header it carries no composite-string or
// comparison decoration since it is never substituted or compared.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Options mirrors the optional JSON client-options file: {"use_cookies":
// bool?, "default_headers": [{"name":..,"value":..}]?}.
type Options struct {
	UseCookies     *bool    `json:"use_cookies,omitempty"`
	DefaultHeaders []Header `json:"default_headers,omitempty"`
}

// Client sends requests for a single document run. A new Client (and thus
// a fresh cookie jar) must be constructed per document, per spec.md §5.
type Client struct {
	http *http.Client
	opts Options
}

// New builds a Client. Cookies are enabled unless opts.UseCookies is
// explicitly false.
func New(opts Options) (*Client, error) {
	hc := &http.Client{Timeout: 30 * time.Second}
	if opts.UseCookies == nil || *opts.UseCookies {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, &TransportError{Message: err.Error()}
		}
		hc.Jar = jar
	}
	return &Client{http: hc, opts: opts}, nil
}

// Send issues a fully-substituted request (no ast.VarRef may remain, per
// the P3 invariant) and lifts the response into a SnapResponse, ready for
// the comparator.
func (c *Client) Send(ctx context.Context, req *ast.Request) (*ast.SnapResponse, error) {
	url := flatten(req.URL)
	var bodyReader io.Reader
	if req.Body != nil {
		bodyReader = strings.NewReader(formatter.FormatElement(req.Body, 0))
	}
	httpReq, err := http.NewRequestWithContext(ctx, string(req.Method), url, bodyReader)
	if err != nil {
		return nil, &TransportError{URL: url, Message: err.Error()}
	}

	c.applyHeaders(httpReq, req.Headers)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &TransportError{URL: url, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{URL: url, Message: err.Error()}
	}

	return liftResponse(resp.StatusCode, resp.Header, string(raw))
}

func (c *Client) applyHeaders(req *http.Request, reqHeaders []ast.Header) {
	for _, h := range c.opts.DefaultHeaders {
		req.Header.Set(h.Name, h.Value)
	}
	for _, h := range reqHeaders {
		req.Header.Set(h.Name, flatten(h.Value))
	}
}

// liftResponse reparses a response body into the AST the comparator
// compares against, mirroring original_source/src/parser/mod.rs's
// parse_response: the raw response headers and body are rebuilt as a
// SnapResponse using the same value grammar as request bodies.
func liftResponse(status int, headers http.Header, rawBody string) (*ast.SnapResponse, error) {
	out := &ast.SnapResponse{Status: status}
	for name, values := range headers {
		for _, v := range values {
			out.Headers = append(out.Headers, ast.Header{
				Name:  name,
				Value: ast.CompositeString{Parts: []ast.CompositeStringPart{{Literal: v}}},
			})
		}
	}
	trimmed := strings.TrimSpace(rawBody)
	if trimmed == "" {
		return out, nil
	}
	el, err := langparse.ParseElement(trimmed, langparse.RequestMode)
	if err != nil {
		return nil, &TransportError{Message: "response body is not a value the comparator can lift: " + err.Error()}
	}
	out.Body = el
	return out, nil
}

func flatten(cs ast.CompositeString) string {
	var b strings.Builder
	for _, p := range cs.Parts {
		if p.IsLiteral() {
			b.WriteString(p.Literal)
		}
	}
	return b.String()
}
