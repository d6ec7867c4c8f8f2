package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheet2neon/internal/config"
	"github.com/JonMunkholm/sheet2neon/internal/extract"
	"github.com/JonMunkholm/sheet2neon/internal/report"
	"github.com/JonMunkholm/sheet2neon/internal/service"
)

// sourceFlags pick the input of run and audit.
type sourceFlags struct {
	sheetID  string
	rng      string
	sheet    string
	mappings []string
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.sheetID, "sheet-id", "", "Google spreadsheet id to read instead of a file")
	cmd.Flags().StringVar(&f.rng, "range", "", "A1 range of the spreadsheet, e.g. Students!A:E")
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "Worksheet of an .xlsx file (first sheet when empty)")
	cmd.Flags().StringArrayVar(&f.mappings, "map", nil, "Header mapping as field=Header (repeatable)")
}

// source builds the extractor for a file argument or --sheet-id.
func (f *sourceFlags) source(cfg *config.Config, args []string) (extract.Extractor, extract.Mapping, error) {
	mapping, err := extract.ParseMapping(f.mappings)
	if err != nil {
		return nil, nil, usageError("%v", err)
	}

	switch {
	case f.sheetID != "" && len(args) > 0:
		return nil, nil, usageError("give either a file or --sheet-id, not both")
	case f.sheetID != "":
		return &extract.Sheets{
			SpreadsheetID: f.sheetID,
			Range:         f.rng,
			Options:       extract.ClientOptions(cfg.Google.CredentialsJSON, cfg.Google.CredentialsFile),
		}, mapping, nil
	case len(args) == 0:
		return nil, nil, usageError("no source: give a file or --sheet-id")
	}

	ex, err := extract.FromFile(args[0], extract.FileOptions{Sheet: f.sheet, MaxBytes: cfg.Run.MaxFileSize})
	if err != nil {
		return nil, nil, err
	}
	return ex, mapping, nil
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var src sourceFlags
	var format string
	var failOnReject bool

	cmd := &cobra.Command{
		Use:   "run <entity> [file]",
		Short: "Validate a CSV, XLSX or Google Sheet and load it",
		Long: `Validate every row of the source, normalize it and insert it, skipping rows
whose key already exists. The run report is printed and saved to the run
history and REPORT_DIR.

Exit status is 0 even when rows are rejected unless --fail-on-reject is set.`,
		Args: rangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := resolveFormat(cmd, format)
			if err != nil {
				return err
			}
			return ctx.withService(cmd, func(c context.Context, svc *service.Service, cfg *config.Config) error {
				ex, mapping, err := src.source(cfg, args[1:])
				if err != nil {
					return err
				}

				res, runErr := svc.Run(c, service.RunRequest{Entity: args[0], Source: ex, Mapping: mapping})
				if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
					return runErr
				}

				if err := printRun(cmd, outFormat, res); err != nil {
					return err
				}
				if runErr != nil {
					return runErr
				}
				if failOnReject && res.Report.RecordsRejected > 0 {
					return errRejected
				}
				return nil
			})
		},
	}

	src.register(cmd)
	addFormatFlag(cmd, &format)
	cmd.Flags().BoolVar(&failOnReject, "fail-on-reject", false, "Exit with status 6 when any row is rejected")
	return cmd
}

func printRun(cmd *cobra.Command, format string, res service.RunResult) error {
	if format == formatJSON {
		return writeJSON(cmd, res.Report)
	}
	if err := report.RenderRun(cmd.OutOrStdout(), res.Report); err != nil {
		return err
	}
	if res.ReportPath != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Report saved to %s\n", res.ReportPath)
	}
	return nil
}

// rangeArgs is cobra.RangeArgs with the usage exit code.
func rangeArgs(lo, hi int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return withCode(exitUsage, cobra.RangeArgs(lo, hi)(cmd, args))
	}
}
