package main

import (
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheet2neon/internal/rules"
)

func newRulesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Rule-set helpers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "sample",
		Short: "Print an annotated sample rule set",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := cmd.OutOrStdout().Write(rules.Sample())
			return err
		},
	})
	return cmd
}
