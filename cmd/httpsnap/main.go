// Command httpsnap runs and updates request-document snapshot tests,
// grounded on ritamzico/pgraph/cmd/cli's shape of a small main.go wiring a
// library, enriched with cobra subcommands the way
// kluzzebass-gastrolog/cmd/gastrolog structures its command tree.
package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// exitCodeError lets a subcommand's RunE distinguish a comparison failure
// (exit 1, spec.md §6) from a fatal error (exit 2) without cobra printing
// its own "Error:" line for the former.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }
func (e *exitCodeError) Unwrap() error { return e.err }

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	rootCmd := &cobra.Command{
		Use:           "httpsnap",
		Short:         "HTTP request snapshot testing",
		Long:          "Run .http/.md request documents against a live server and compare responses to recorded snapshots.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newTestCmd(logger), newUpdateCmd(logger))

	err := rootCmd.Execute()
	if err == nil {
		os.Exit(0)
	}

	var ec *exitCodeError
	if errors.As(err, &ec) {
		if ec.err != nil {
			logger.Error(ec.err.Error())
		}
		os.Exit(ec.code)
	}
	logger.Error(err.Error())
	os.Exit(2)
}
