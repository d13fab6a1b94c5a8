package main

import (
	"fmt"
	"os"

	"github.com/httpsnap/httpsnap/internal/orchestrator"
)

// summarize prints a one-line-per-document result and returns the
// process's intended outcome: an *exitCodeError for exit 1 (comparison
// failure) or exit 2 (fatal), nil for exit 0, matching spec.md §6's exit
// code table.
func summarize(outcomes []docOutcome, verbose bool) error {
	var anyFatal, anyFailed bool

	for _, o := range outcomes {
		if o.err != nil {
			anyFatal = true
			fmt.Fprintf(os.Stderr, "FATAL  %s: %s\n", o.path, o.err)
			continue
		}
		if o.report.Failed() {
			anyFailed = true
			fmt.Fprintf(os.Stderr, "FAIL   %s\n", o.path)
		} else {
			fmt.Fprintf(os.Stdout, "PASS   %s\n", o.path)
		}
		if verbose || o.report.Failed() {
			printSections(o.report)
		}
		for _, rewritten := range o.report.Rewrites {
			fmt.Fprintf(os.Stdout, "       updated %s\n", rewritten)
		}
	}

	switch {
	case anyFatal:
		return &exitCodeError{code: 2, err: fmt.Errorf("one or more documents hit a fatal error")}
	case anyFailed:
		return &exitCodeError{code: 1, err: fmt.Errorf("one or more documents failed a comparison")}
	default:
		return nil
	}
}

func printSections(report *orchestrator.RunReport) {
	for _, res := range report.Results {
		switch {
		case res.Delayed:
			continue
		case res.Err != nil:
			fmt.Fprintf(os.Stderr, "       section %d (%s): error: %s\n", res.Index, res.Source, res.Err)
		case !res.Passed && res.Mismatch != nil:
			fmt.Fprintf(os.Stderr, "       section %d (%s): %s\n", res.Index, res.Source, res.Mismatch)
		case !res.Passed:
			fmt.Fprintf(os.Stderr, "       section %d (%s): no snapshot option matched (and none recorded yet)\n", res.Index, res.Source)
		}
	}
}
