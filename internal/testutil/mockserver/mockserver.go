// Package mockserver is a test-only HTTP fixture server: an in-process
// fasthttp listener that replies to pre-registered method+path stubs.
// Grounded on gooddata-gooddata-goodmock's internal/server.HandleRequest
// (simplified from its wiremock-style request matcher down to an exact
// method+path lookup, since snapshot tests fix their request shape in
// advance) and main.go's fasthttp.ListenAndServe wiring.
package mockserver

import (
	"fmt"
	"net"
	"sync"

	"github.com/valyala/fasthttp"
)

// Stub is one canned response for a method+path pair.
type Stub struct {
	Method  string
	Path    string
	Status  int
	Headers map[string]string
	Body    string
}

// Server is a single-listener fixture; Start it once per test and Close it
// when done.
type Server struct {
	ln  net.Listener
	srv *fasthttp.Server

	mu    sync.Mutex
	stubs []Stub
}

// Start binds an ephemeral loopback port and begins serving in the
// background.
func Start() (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("mockserver: listen: %w", err)
	}
	s := &Server{ln: ln}
	s.srv = &fasthttp.Server{Handler: s.handle}
	go s.srv.Serve(ln) //nolint:errcheck // server errors surface via test request failures

	return s, nil
}

// URL returns the fixture's base URL, e.g. "http://127.0.0.1:54321".
func (s *Server) URL() string {
	return "http://" + s.ln.Addr().String()
}

// AddStub registers a response for stub.Method+stub.Path, replacing any
// existing stub for the same pair.
func (s *Server) AddStub(stub Stub) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.stubs {
		if existing.Method == stub.Method && existing.Path == stub.Path {
			s.stubs[i] = stub
			return
		}
	}
	s.stubs = append(s.stubs, stub)
}

// Reset clears every registered stub.
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stubs = nil
}

// Close stops accepting connections and shuts the server down.
func (s *Server) Close() error {
	return s.srv.Shutdown()
}

func (s *Server) handle(ctx *fasthttp.RequestCtx) {
	method := string(ctx.Method())
	path := string(ctx.Path())

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, stub := range s.stubs {
		if stub.Method != method || stub.Path != path {
			continue
		}
		for k, v := range stub.Headers {
			ctx.Response.Header.Set(k, v)
		}
		ctx.SetStatusCode(stub.Status)
		if stub.Body != "" {
			ctx.SetBodyString(stub.Body)
		}
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNotFound)
	ctx.SetBodyString(`{"error":"no stub registered for this request"}`)
}
