package main

import (
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheet2neon/internal/core"
	"github.com/JonMunkholm/sheet2neon/internal/report"
)

func newEntitiesCommand(ctx *commandContext) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "entities",
		Short: "List loadable entities and their fields",
		Long:  "List every entity with the rule set applied. Optional fields carry a ? suffix. No database is needed.",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := resolveFormat(cmd, format)
			if err != nil {
				return err
			}
			rs, err := ctx.loadRules()
			if err != nil {
				return err
			}

			var defs []core.EntityDefinition
			for _, def := range core.All() {
				applied, err := rs.Apply(def)
				if err != nil {
					return err
				}
				defs = append(defs, applied)
			}

			if outFormat == formatJSON {
				return writeJSON(cmd, report.Describe(defs))
			}
			return report.RenderEntities(cmd.OutOrStdout(), defs)
		},
	}
	addFormatFlag(cmd, &format)
	return cmd
}

func noArgs(cmd *cobra.Command, args []string) error {
	return withCode(exitUsage, cobra.NoArgs(cmd, args))
}
