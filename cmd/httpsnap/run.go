package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/httpsnap/httpsnap/internal/ast"
	"github.com/httpsnap/httpsnap/internal/detector"
	"github.com/httpsnap/httpsnap/internal/envconfig"
	"github.com/httpsnap/httpsnap/internal/extractor"
	"github.com/httpsnap/httpsnap/internal/formatter"
	"github.com/httpsnap/httpsnap/internal/orchestrator"
)

// maxConcurrentDocuments bounds the worker pool that runs documents in
// parallel, mirroring the simplicity of the teacher's REPL loop rather than
// reaching for an external concurrency library (spec.md §5/§7).
const maxConcurrentDocuments = 8

// runFlags collects the subcommand flags shared by test and update.
type runFlags struct {
	path              string
	environment       string
	clientOptions     string
	verbose           bool
	update            bool
	continueOnFailure bool
	updateMode        string
	detectors         string
}

type docOutcome struct {
	path   string
	report *orchestrator.RunReport
	err    error
}

// runDocuments expands flags.path, loads shared configuration once, and
// runs every matched document concurrently (bounded by
// maxConcurrentDocuments), mirroring SPEC_FULL.md §7's plain
// goroutine+semaphore worker pool.
func runDocuments(ctx context.Context, logger *slog.Logger, flags runFlags) ([]docOutcome, error) {
	paths, err := expandPath(flags.path)
	if err != nil {
		return nil, fmt.Errorf("expanding --path %q: %w", flags.path, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no documents matched --path %q", flags.path)
	}

	baseVars, err := loadBaseVariables(flags.environment)
	if err != nil {
		return nil, err
	}
	clientOpts, err := envconfig.LoadClientOptions(flags.clientOptions)
	if err != nil {
		return nil, err
	}
	updateMode, err := parseUpdateMode(flags.updateMode)
	if err != nil {
		return nil, err
	}
	detectors, err := parseDetectors(flags.detectors)
	if err != nil {
		return nil, err
	}

	sem := make(chan struct{}, maxConcurrentDocuments)
	var wg sync.WaitGroup
	outcomes := make([]docOutcome, len(paths))

	for i, path := range paths {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, path string) {
			defer wg.Done()
			defer func() { <-sem }()

			doc, err := extractor.ExtractDocument(path)
			if err != nil {
				outcomes[i] = docOutcome{path: path, err: err}
				return
			}

			report, err := orchestrator.Run(ctx, doc, orchestrator.RunOptions{
				Update:            flags.update,
				UpdateMode:        updateMode,
				Detectors:         detectors,
				ContinueOnFailure: flags.continueOnFailure,
				BaseVariables:     baseVars,
				ClientOptions:     clientOpts,
				Logger:            logger.With("document", path),
			})
			outcomes[i] = docOutcome{path: path, report: report, err: err}
		}(i, path)
	}
	wg.Wait()

	return outcomes, nil
}

// expandPath resolves a --path glob (shell-style `*`, plus `**` as an
// enrichment, grounded on kluzzebass-gastrolog's discoverFiles) to a sorted,
// deduplicated list of document paths.
func expandPath(pattern string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		abs, err := filepath.Abs(m)
		if err != nil {
			abs = m
		}
		if seen[abs] {
			continue
		}
		ext := strings.ToLower(filepath.Ext(abs))
		if ext != ".http" && ext != ".md" {
			continue
		}
		seen[abs] = true
		out = append(out, abs)
	}
	sort.Strings(out)
	return out, nil
}

// loadBaseVariables merges the `.env` file alongside the environment file
// (if any) with the `--environment` file itself, the latter overriding the
// former, per SPEC_FULL.md §4.
func loadBaseVariables(environmentPath string) ([]ast.VarDecl, error) {
	var dotEnvDir string
	if environmentPath != "" {
		dotEnvDir = filepath.Dir(environmentPath)
	}
	dotEnv, err := envconfig.LoadDotEnv(dotEnvDir)
	if err != nil {
		return nil, err
	}
	env, err := envconfig.LoadEnvironmentFile(environmentPath)
	if err != nil {
		return nil, err
	}
	return append(dotEnv, env...), nil
}

func parseUpdateMode(s string) (formatter.UpdateMode, error) {
	switch strings.ToLower(s) {
	case "", "overwrite":
		return formatter.Overwrite, nil
	case "append":
		return formatter.Append, nil
	default:
		return 0, fmt.Errorf("unknown --update-mode %q (want overwrite or append)", s)
	}
}

func parseDetectors(s string) ([]detector.Kind, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return []detector.Kind{detector.Guid, detector.Timestamp}, nil
	}
	var out []detector.Kind
	for _, part := range strings.Split(s, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "guid":
			out = append(out, detector.Guid)
		case "timestamp":
			out = append(out, detector.Timestamp)
		case "":
		default:
			return nil, fmt.Errorf("unknown --detectors entry %q", part)
		}
	}
	return out, nil
}
