package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheet2neon/internal/config"
	"github.com/JonMunkholm/sheet2neon/internal/report"
	"github.com/JonMunkholm/sheet2neon/internal/service"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var format string
	var limit int

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "Show run history",
		Long:  "Without an argument list recent runs, newest first. With a run id print that run's full report.",
		Args:  rangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := resolveFormat(cmd, format)
			if err != nil {
				return err
			}
			var id uuid.UUID
			if len(args) == 1 {
				if id, err = uuid.Parse(args[0]); err != nil {
					return usageError("invalid run id %q: %v", args[0], err)
				}
			}

			return ctx.withService(cmd, func(c context.Context, svc *service.Service, cfg *config.Config) error {
				if id != uuid.Nil {
					rep, err := svc.GetRun(c, id)
					if err != nil {
						return withCode(exitDatabase, err)
					}
					if outFormat == formatJSON {
						return writeJSON(cmd, rep)
					}
					return report.RenderRun(cmd.OutOrStdout(), rep)
				}

				runs, err := svc.Runs(c, limit)
				if err != nil {
					return withCode(exitDatabase, err)
				}
				if outFormat == formatJSON {
					return writeJSON(cmd, runs)
				}
				if len(runs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
					return nil
				}
				return report.RenderRuns(cmd.OutOrStdout(), runs)
			})
		},
	}
	addFormatFlag(cmd, &format)
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to list")
	return cmd
}
