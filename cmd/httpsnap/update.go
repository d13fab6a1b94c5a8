package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func newUpdateCmd(logger *slog.Logger) *cobra.Command {
	flags := runFlags{update: true}

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Run request documents and rewrite mismatching snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.verbose {
				logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
			}
			outcomes, err := runDocuments(cmd.Context(), logger, flags)
			if err != nil {
				return &exitCodeError{code: 2, err: err}
			}
			return summarize(outcomes, flags.verbose)
		},
	}

	cmd.Flags().StringVar(&flags.path, "path", "", "glob of .http/.md documents to run (required)")
	cmd.Flags().StringVar(&flags.environment, "environment", "", "path to an environment variable-declaration file")
	cmd.Flags().StringVar(&flags.clientOptions, "client-options", "", "path to the JSON client-options file")
	cmd.Flags().BoolVar(&flags.verbose, "verbose", false, "log every section, not just failures")
	cmd.Flags().BoolVar(&flags.continueOnFailure, "continue-on-failure", false, "keep running remaining sections after a mismatch")
	cmd.Flags().StringVar(&flags.updateMode, "update-mode", "overwrite", "overwrite|append existing SNAPSHOT blocks")
	cmd.Flags().StringVar(&flags.detectors, "detectors", "all", "all|timestamp|guid,... comparison-marker detectors to apply")
	_ = cmd.MarkFlagRequired("path")

	return cmd
}
