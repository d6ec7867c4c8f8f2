package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheet2neon/internal/config"
	"github.com/JonMunkholm/sheet2neon/internal/service"
)

func newInitDBCommand(ctx *commandContext) *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "init-db",
		Short: "Create missing tables",
		Long: `Create the department, student, course, enrollment and etl_runs tables if
they do not exist. With --seed the departments listed in the rule set are
inserted as well.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(c context.Context, svc *service.Service, cfg *config.Config) error {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Schema ready (%s)\n", cfg.Database.Backend)
				if !seed {
					return nil
				}
				n, err := svc.Seed(c)
				if err != nil {
					return withCode(exitDatabase, err)
				}
				fmt.Fprintf(out, "Seeded %d new department(s)\n", n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "Insert the rule set's departments")
	return cmd
}
