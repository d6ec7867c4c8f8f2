package main

import (
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var envFile string
	var rulesFile string

	rootCmd := &cobra.Command{
		Use:           "etl",
		Short:         "Load student, course and enrollment sheets into the database",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnvFile(envFile, cmd.Flags().Changed("env-file"))
		},
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file loaded before configuration (overrides set variables)")
	rootCmd.PersistentFlags().StringVar(&rulesFile, "rules", "", "Rule-set TOML file (defaults to RULES_FILE)")
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return withCode(exitUsage, err)
	})

	ctx := newCommandContext(&rulesFile)

	rootCmd.AddCommand(
		newRunCommand(ctx),
		newAuditCommand(ctx),
		newEntitiesCommand(ctx),
		newInitDBCommand(ctx),
		newRunsCommand(ctx),
		newRulesCommand(),
	)

	return rootCmd
}

// loadEnvFile applies path with godotenv.Overload. A missing default file is
// fine; a missing file the user named is not.
func loadEnvFile(path string, explicit bool) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && !explicit {
		return nil
	}
	if err := godotenv.Overload(path); err != nil {
		return withCode(exitConfig, err)
	}
	return nil
}
