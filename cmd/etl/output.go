package main

import (
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheet2neon/internal/report"
)

const (
	formatAuto  = "auto"
	formatJSON  = "json"
	formatTable = "table"
)

func addFormatFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(target, "format", formatAuto, "Output format: auto, json or table (auto picks table on a terminal)")
}

// resolveFormat turns auto into table for terminals and json for pipes.
func resolveFormat(cmd *cobra.Command, format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case formatJSON:
		return formatJSON, nil
	case formatTable:
		return formatTable, nil
	case formatAuto, "":
		if f, ok := cmd.OutOrStdout().(*os.File); ok && isTerminal(f.Fd()) {
			return formatTable, nil
		}
		return formatJSON, nil
	default:
		return "", usageError("unknown format %q, want auto, json or table", format)
	}
}

func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func writeJSON(cmd *cobra.Command, v any) error {
	return report.WriteJSON(cmd.OutOrStdout(), v)
}
