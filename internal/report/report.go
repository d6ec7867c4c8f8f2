// Package report writes run reports: one JSON file per run for the audit
// trail, and terminal tables for people.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/JonMunkholm/sheet2neon/internal/audit"
	"github.com/JonMunkholm/sheet2neon/internal/core"
)

const fileTimeLayout = "20060102T150405Z"

// FileName is the report file name for r.
func FileName(r core.RunReport) string {
	return fmt.Sprintf("etl_run_%s_%s.json", r.StartedAt.UTC().Format(fileTimeLayout), r.RunID)
}

// WriteFile writes r as indented JSON into dir and returns the path. The
// file is written under a temporary name and renamed so readers never see a
// partial report.
func WriteFile(dir string, r core.RunReport) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	path := filepath.Join(dir, FileName(r))
	tmp, err := os.CreateTemp(dir, ".etl_run_*.tmp")
	if err != nil {
		return "", fmt.Errorf("create report file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteJSON(tmp, r); err != nil {
		tmp.Close()
		return "", err
	}
	// CreateTemp makes the file 0600; reports are read by operators.
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return "", fmt.Errorf("chmod report file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close report file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename report file: %w", err)
	}
	return path, nil
}

// WriteJSON encodes v as indented JSON without HTML escaping, so reasons
// such as `invalid email format: "<x>"` stay readable.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	return tw
}

func alignRight(columns ...int) []table.ColumnConfig {
	cfgs := make([]table.ColumnConfig, 0, len(columns))
	for _, n := range columns {
		cfgs = append(cfgs, table.ColumnConfig{Number: n, Align: text.AlignRight, AlignHeader: text.AlignLeft})
	}
	return cfgs
}

// RenderRun writes the counters of r followed by one line per rejected row.
func RenderRun(w io.Writer, r core.RunReport) error {
	summary := newTable()
	summary.SetTitle(fmt.Sprintf("%s run %s", r.EntityType, r.RunID))
	summary.AppendHeader(table.Row{"Seen", "Loaded", "Skipped", "Rejected", "Duration"})
	summary.AppendRow(table.Row{r.RecordsSeen, r.RecordsLoaded, r.RecordsSkipped, r.RecordsRejected, r.Duration().Round(time.Millisecond)})
	summary.SetColumnConfigs(alignRight(1, 2, 3, 4))

	var b strings.Builder
	b.WriteString(summary.Render())
	b.WriteString("\n")
	if r.Interrupted {
		b.WriteString("run was interrupted; counters cover the rows processed before the stop\n")
	}

	if len(r.RejectedDetail) > 0 {
		rejected := newTable()
		rejected.SetTitle("Rejected rows")
		rejected.AppendHeader(table.Row{"Row", "Line", "Code", "Reasons"})
		for _, row := range r.RejectedDetail {
			code := ""
			if len(row.Reasons) > 0 {
				code = core.MapReason(row.Reasons[0]).Code
			}
			rejected.AppendRow(table.Row{row.RowIndex, lineText(row.Line), code, strings.Join(row.Reasons, "; ")})
		}
		rejected.SetColumnConfigs(alignRight(1, 2))
		b.WriteString(rejected.Render())
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func lineText(line int) string {
	if line <= 0 {
		return "-"
	}
	return strconv.Itoa(line)
}

// RenderRuns writes run history, newest first as given.
func RenderRuns(w io.Writer, runs []core.RunSummary) error {
	tw := newTable()
	tw.AppendHeader(table.Row{"Run", "Entity", "Started", "Seen", "Loaded", "Skipped", "Rejected", ""})
	for _, r := range runs {
		flag := ""
		if r.Interrupted {
			flag = "interrupted"
		}
		tw.AppendRow(table.Row{
			r.RunID, r.EntityType, r.StartedAt.UTC().Format("2006-01-02 15:04:05"),
			r.RecordsSeen, r.RecordsLoaded, r.RecordsSkipped, r.RecordsRejected, flag,
		})
	}
	tw.SetColumnConfigs(alignRight(4, 5, 6, 7))
	_, err := io.WriteString(w, tw.Render()+"\n")
	return err
}

// RenderEntities lists registered entities with their fields.
func RenderEntities(w io.Writer, defs []core.EntityDefinition) error {
	tw := newTable()
	tw.AppendHeader(table.Row{"Entity", "Table", "Key", "Fields", "Description"})
	for _, def := range defs {
		fields := make([]string, 0, len(def.Fields))
		for _, f := range def.Fields {
			name := f.Name
			if !f.Required {
				name += "?"
			}
			fields = append(fields, name)
		}
		tw.AppendRow(table.Row{
			def.Info.Key, def.Info.Table, strings.Join(def.Info.KeyFields, "+"),
			strings.Join(fields, ", "), def.Info.Description,
		})
	}
	_, err := io.WriteString(w, tw.Render()+"\n")
	return err
}

// RenderAudit writes a data-quality audit.
func RenderAudit(w io.Writer, a audit.Report) error {
	tw := newTable()
	tw.SetTitle(fmt.Sprintf("%s: %d rows, %d columns, %d duplicate rows",
		a.Source, a.TotalRows, a.TotalColumns, a.Duplicates.Count))
	tw.AppendHeader(table.Row{"Column", "Kind", "Unique", "Missing"})
	for _, c := range a.Columns {
		tw.AppendRow(table.Row{c.Name, c.Kind, c.UniqueCount, c.MissingCount})
	}
	tw.SetColumnConfigs(alignRight(3, 4))

	var b strings.Builder
	b.WriteString(tw.Render())
	b.WriteString("\n")

	if a.Entity != "" {
		fmt.Fprintf(&b, "%d of %d rows break %s rules", a.RowsFailingRules, a.TotalRows, a.Entity)
		if len(a.Violations) > 0 {
			codes := make([]string, 0, len(a.Violations))
			for code := range a.Violations {
				codes = append(codes, code)
			}
			slices.Sort(codes)
			parts := make([]string, 0, len(codes))
			for _, code := range codes {
				parts = append(parts, fmt.Sprintf("%s=%d", code, a.Violations[code]))
			}
			b.WriteString(" (" + strings.Join(parts, ", ") + ")")
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}
