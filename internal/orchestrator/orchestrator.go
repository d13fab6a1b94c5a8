// Package orchestrator drives the per-document state machine described in
// spec.md §4.6: parse → substitute → execute → compare each snapshot option
// in declaration order → capture on match or record the mismatch → continue
// or stop. It is grounded on original_source/src/lib.rs's run function for
// loop order, generalized the way the teacher's
// internal/engine.InferenceEngine wraps a single Execute call in a small
// struct that takes a context.Context.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/httpsnap/httpsnap/internal/ast"
	"github.com/httpsnap/httpsnap/internal/comparator"
	"github.com/httpsnap/httpsnap/internal/detector"
	"github.com/httpsnap/httpsnap/internal/formatter"
	"github.com/httpsnap/httpsnap/internal/httpclient"
	"github.com/httpsnap/httpsnap/internal/varstore"
)

// RunOptions configures one document's execution.
type RunOptions struct {
	// Update, when true, rewrites mismatching sections' SNAPSHOT blocks
	// instead of merely reporting the mismatch.
	Update     bool
	UpdateMode formatter.UpdateMode
	// Detectors lists the comparison-marker passes run over a captured
	// response before it is formatted into an updated snapshot.
	Detectors []detector.Kind
	// ContinueOnFailure, when false (the default, matching
	// original_source/src/lib.rs), stops at the first section whose
	// response satisfies none of its snapshot options.
	ContinueOnFailure bool
	// BaseVariables are evaluated into the store before the first
	// section runs: the `.env` file's declarations followed by the
	// `--environment` file's, so the latter can override the former.
	BaseVariables []ast.VarDecl
	ClientOptions httpclient.Options
	Logger        *slog.Logger
}

// SectionResult records one section's outcome.
type SectionResult struct {
	Index   int
	Source  string
	Delayed bool
	Passed  bool
	// Mismatch is the last divergence seen across every snapshot option
	// tried, set only when Passed is false and Delayed is false.
	Mismatch *comparator.Mismatch
	// Err is a fatal, non-comparison error: a substitution failure, a
	// transport failure, or (in update mode) a rewrite failure.
	Err error
}

// RunReport aggregates a document's section outcomes for the CLI layer.
type RunReport struct {
	Path    string
	Results []SectionResult
	// Rewrites lists the files update mode rewrote, in case the CLI
	// wants to report them.
	Rewrites []string
}

// Failed reports whether any non-delay section hit an error or did not
// pass. A section whose snapshot update mode rewrote still counts as
// failed.
func (r *RunReport) Failed() bool {
	for _, res := range r.Results {
		if res.Delayed {
			continue
		}
		if res.Err != nil {
			return true
		}
		if !res.Passed {
			return true
		}
	}
	return false
}

type pendingEdit struct {
	source string
	oldRaw string
	newRaw string
}

// Run executes every section of doc in order, stopping early on a fatal
// error, an unmatched section (unless opts.ContinueOnFailure), or once a
// delay section's sleep is cancelled via ctx.
func Run(ctx context.Context, doc *ast.Document, opts RunOptions) (*RunReport, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client, err := httpclient.New(opts.ClientOptions)
	if err != nil {
		return nil, err
	}

	store := varstore.New()
	if err := store.GenerateDeclared(opts.BaseVariables); err != nil {
		return nil, err
	}

	report := &RunReport{Path: doc.Path}
	var edits []pendingEdit
	var fatalErr error

sections:
	for i, section := range doc.Sections {
		select {
		case <-ctx.Done():
			fatalErr = ctx.Err()
			break sections
		default:
		}

		switch sec := section.(type) {
		case *ast.DelaySection:
			logger.Debug("sleeping", "section", i, "ms", sec.DurationMS)
			if err := sleep(ctx, time.Duration(sec.DurationMS)*time.Millisecond); err != nil {
				report.Results = append(report.Results, SectionResult{Index: i, Source: sec.Source, Delayed: true, Err: err})
				fatalErr = err
				break sections
			}
			report.Results = append(report.Results, SectionResult{Index: i, Source: sec.Source, Delayed: true, Passed: true})

		case *ast.RequestSection:
			result, edit, err := runRequestSection(ctx, i, sec, store, client, opts, logger)
			report.Results = append(report.Results, result)
			if edit != nil {
				edits = append(edits, *edit)
			}
			if err != nil {
				fatalErr = err
				break sections
			}
			if !result.Passed && !opts.ContinueOnFailure {
				break sections
			}

		default:
			logger.Warn("unknown section kind", "section", i)
		}
	}

	if len(edits) > 0 {
		rewritten, err := applyEdits(edits)
		report.Rewrites = rewritten
		if err != nil && fatalErr == nil {
			fatalErr = err
		}
	}

	return report, fatalErr
}

// runRequestSection substitutes, executes and compares one request,
// returning its outcome plus, in update mode on a mismatch, the raw-text
// edit to apply once every section has run.
func runRequestSection(
	ctx context.Context,
	index int,
	sec *ast.RequestSection,
	store *varstore.Store,
	client *httpclient.Client,
	opts RunOptions,
	logger *slog.Logger,
) (SectionResult, *pendingEdit, error) {
	result := SectionResult{Index: index, Source: sec.Source}

	if err := store.GenerateDeclared(sec.Request.Variables); err != nil {
		result.Err = err
		return result, nil, err
	}

	substituted, err := store.SubstituteRequest(sec.Request)
	if err != nil {
		result.Err = err
		return result, nil, err
	}

	resp, err := client.Send(ctx, substituted)
	if err != nil {
		result.Err = err
		return result, nil, err
	}
	store.SetPrevious(resp)

	snap, mismatch := firstMatch(sec.Request.Snapshots, resp)
	if snap != nil {
		store.Capture(snap, resp)
		result.Passed = true
		logger.Debug("snapshot matched", "section", index, "source", sec.Source)
		return result, nil, nil
	}

	result.Mismatch = mismatch
	logger.Info("snapshot mismatch", "section", index, "source", sec.Source, "mismatch", mismatch)

	if !opts.Update {
		return result, nil, nil
	}

	edit, err := buildEdit(sec, resp, opts)
	if err != nil {
		result.Err = err
		return result, nil, err
	}
	return result, edit, nil
}

// firstMatch tries every snapshot option in declaration order and returns
// the first that matches, or nil plus the last option's mismatch if none
// do. A request with no snapshot options at all (fresh, never captured) is
// reported as a mismatch with a nil Mismatch so update mode still creates
// one.
func firstMatch(snapshots []ast.Snapshot, resp *ast.SnapResponse) (*ast.Snapshot, *comparator.Mismatch) {
	var last *comparator.Mismatch
	for i := range snapshots {
		mm := comparator.CompareSnapshot(&snapshots[i], resp)
		if mm == nil {
			return &snapshots[i], nil
		}
		last = mm
	}
	return nil, last
}

func buildEdit(sec *ast.RequestSection, resp *ast.SnapResponse, opts RunOptions) (*pendingEdit, error) {
	detected := detector.Pipeline(resp, opts.Detectors)
	formatted := formatter.FormatSnapshot(detected)
	merged, err := formatter.MergeSnapshot(sec.RawText, formatted, opts.UpdateMode)
	if err != nil {
		return nil, err
	}
	return &pendingEdit{source: sec.Source, oldRaw: sec.RawText, newRaw: merged}, nil
}

// applyEdits rewrites every file touched by at least one edit, replacing
// each edited section's raw text in file order so earlier rewrites never
// shift the search position for later ones within the same file.
func applyEdits(edits []pendingEdit) ([]string, error) {
	byFile := make(map[string][]pendingEdit)
	var order []string
	for _, e := range edits {
		if _, ok := byFile[e.source]; !ok {
			order = append(order, e.source)
		}
		byFile[e.source] = append(byFile[e.source], e)
	}

	var rewritten []string
	for _, path := range order {
		if err := rewriteFile(path, byFile[path]); err != nil {
			return rewritten, err
		}
		rewritten = append(rewritten, path)
	}
	return rewritten, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
