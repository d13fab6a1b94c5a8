// Package envconfig loads the three file-based configuration inputs
// described in spec.md §6: the `--environment` variable file (parsed with
// the same request-mode grammar as a document's variable prelude), an
// optional `.env` file alongside it, and the optional JSON client-options
// file. Grounded on other_examples' bmcszk-go-restclient
// loadEnvironmentFile/ParseRequestFile .env merge.
package envconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/httpsnap/httpsnap/internal/ast"
	"github.com/httpsnap/httpsnap/internal/docparse"
	"github.com/httpsnap/httpsnap/internal/httpclient"
)

// LoadError reports a fatal failure loading one of the configuration
// inputs.
type LoadError struct {
	Path    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("config load error (%s): %s", e.Path, e.Message)
}

// LoadEnvironmentFile parses the `--environment` file's `@name = value`
// declarations. A missing path is not an error: it simply yields no
// declarations (the CLI flag is optional).
func LoadEnvironmentFile(path string) ([]ast.VarDecl, error) {
	if path == "" {
		return nil, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &LoadError{Path: path, Message: err.Error()}
	}
	decls, err := docparse.ParseDeclarations(string(content))
	if err != nil {
		return nil, &LoadError{Path: path, Message: err.Error()}
	}
	return decls, nil
}

// LoadDotEnv reads a `.env` file alongside dir, if present, and returns
// its values as plain string VarDecls (no generators), ready to be merged
// ahead of the `--environment` file via varstore.Store.GenerateDeclared.
// A missing .env file is not an error.
func LoadDotEnv(dir string) ([]ast.VarDecl, error) {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &LoadError{Path: path, Message: err.Error()}
	}
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, &LoadError{Path: path, Message: err.Error()}
	}
	decls := make([]ast.VarDecl, 0, len(values))
	for k, v := range values {
		decls = append(decls, ast.VarDecl{
			Name:  k,
			Value: ast.StringValue{Text: ast.CompositeString{Parts: []ast.CompositeStringPart{{Literal: v}}}},
		})
	}
	return decls, nil
}

// LoadClientOptions parses the optional JSON client-options file
// (spec.md §6). A missing path is not an error: it yields zero-value
// Options (cookies enabled, no default headers).
func LoadClientOptions(path string) (httpclient.Options, error) {
	if path == "" {
		return httpclient.Options{}, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return httpclient.Options{}, nil
		}
		return httpclient.Options{}, &LoadError{Path: path, Message: err.Error()}
	}
	var opts httpclient.Options
	if err := json.Unmarshal(content, &opts); err != nil {
		return httpclient.Options{}, &LoadError{Path: path, Message: err.Error()}
	}
	return opts, nil
}
