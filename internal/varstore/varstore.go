// Package varstore implements the variable lifecycle described in the
// request document language: environment extension, generator evaluation,
// substitution into requests, and capture from matched responses.
package varstore

import (
	"github.com/google/uuid"

	"github.com/httpsnap/httpsnap/internal/ast"
)

// Store holds the flat name->value map for one document run, grounded on
// the original implementation's VariableStore.
type Store struct {
	variables map[string]ast.Value
	// previous holds the last executed response, feeding the
	// {{previous.headers["Name"]}} sugar (SPEC_FULL.md §8).
	previous *ast.SnapResponse
}

func New() *Store {
	return &Store{variables: make(map[string]ast.Value)}
}

// Extend merges environment-provided values, overwriting any existing
// bindings of the same name.
func (s *Store) Extend(env map[string]ast.Value) {
	for k, v := range env {
		s.variables[k] = v
	}
}

// GenerateDeclared evaluates a request's @name declarations in source order,
// so that later declarations in the same section can reference earlier ones.
func (s *Store) GenerateDeclared(decls []ast.VarDecl) error {
	for _, d := range decls {
		switch d.Generator {
		case ast.GeneratorGuid:
			s.variables[d.Name] = ast.StringValue{Text: ast.CompositeString{
				Parts: []ast.CompositeStringPart{{Literal: uuid.NewString()}},
			}}
		case ast.NoGenerator:
			resolved, err := s.Substitute(d.Value)
			if err != nil {
				return err
			}
			s.variables[d.Name] = resolved.(ast.Value)
		}
	}
	return nil
}

// SetPrevious records the most recently executed response for the
// {{previous.headers[...]}} lookup sugar. Delay sections must not call this.
func (s *Store) SetPrevious(resp *ast.SnapResponse) {
	s.previous = resp
}

func (s *Store) lookup(name string) (ast.Value, bool) {
	v, ok := s.variables[name]
	return v, ok
}

func (s *Store) lookupPreviousHeader(headerName string) (string, bool) {
	if s.previous == nil {
		return "", false
	}
	for _, h := range s.previous.Headers {
		if h.Name == headerName {
			return flattenCompositeString(h.Value), true
		}
	}
	return "", false
}

func flattenCompositeString(cs ast.CompositeString) string {
	out := ""
	for _, p := range cs.Parts {
		if p.IsLiteral() {
			out += p.Literal
		}
	}
	return out
}
