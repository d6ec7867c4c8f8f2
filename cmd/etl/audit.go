package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheet2neon/internal/config"
	"github.com/JonMunkholm/sheet2neon/internal/report"
	"github.com/JonMunkholm/sheet2neon/internal/service"
)

func newAuditCommand(ctx *commandContext) *cobra.Command {
	var src sourceFlags
	var format string
	var entity string

	cmd := &cobra.Command{
		Use:   "audit [file]",
		Short: "Profile a source without loading it",
		Long: `Report row and column counts, missing values, duplicate rows and value
kinds per column. With --entity the rows are also checked against that
entity's validation rules. Nothing is written to the database.`,
		Args: rangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := resolveFormat(cmd, format)
			if err != nil {
				return err
			}
			return ctx.withService(cmd, func(c context.Context, svc *service.Service, cfg *config.Config) error {
				ex, mapping, err := src.source(cfg, args)
				if err != nil {
					return err
				}
				res, err := svc.Audit(c, service.AuditRequest{Entity: entity, Source: ex, Mapping: mapping})
				if err != nil {
					return err
				}
				if outFormat == formatJSON {
					return writeJSON(cmd, res)
				}
				return report.RenderAudit(cmd.OutOrStdout(), res)
			})
		},
	}

	src.register(cmd)
	addFormatFlag(cmd, &format)
	cmd.Flags().StringVar(&entity, "entity", "", "Also validate rows against this entity")
	return cmd
}
