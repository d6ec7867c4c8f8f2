// Package audit profiles an extracted batch without loading it: missing
// values, duplicate rows, per-column cardinality and the value kinds each
// column holds. When an entity is given the batch is also checked against
// its rule table and violations are counted per error code.
package audit

import (
	"slices"
	"strings"
	"time"

	"github.com/JonMunkholm/sheet2neon/internal/core"
)

// Column kinds inferred from the non-empty values.
const (
	KindEmpty   = "empty"
	KindInteger = "integer"
	KindNumber  = "number"
	KindDate    = "date"
	KindText    = "text"
	KindMixed   = "mixed"
)

// Report is the audit of one batch.
type Report struct {
	Source        string         `json:"source"`
	Entity        string         `json:"entity,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	TotalRows     int            `json:"total_rows"`
	TotalColumns  int            `json:"total_columns"`
	MissingValues map[string]int `json:"missing_values"`
	Duplicates    Duplicates     `json:"duplicates"`
	Columns       []ColumnStats  `json:"columns"`

	// Set only when audited against an entity.
	RowsFailingRules int            `json:"rows_failing_rules,omitempty"`
	Violations       map[string]int `json:"violations,omitempty"`
}

// Duplicates counts rows identical in every column to an earlier row.
type Duplicates struct {
	Count int   `json:"count"`
	Lines []int `json:"lines,omitempty"`
}

// ColumnStats describes one column.
type ColumnStats struct {
	Name         string `json:"name"`
	Kind         string `json:"kind"`
	UniqueCount  int    `json:"unique_count"`
	MissingCount int    `json:"missing_count"`
}

// HasIssues reports whether anything needs attention.
func (r Report) HasIssues() bool {
	return len(r.MissingValues) > 0 || r.Duplicates.Count > 0 || r.RowsFailingRules > 0
}

// Options tune an audit run.
type Options struct {
	Source string
	// Entity, when set, adds rule violations to the report.
	Entity *core.EntityDefinition
	// Lookups are passed to the validator together with Entity.
	Lookups core.Lookups
	Now     func() time.Time
}

// Run audits rows.
func Run(rows []core.RawRow, opts Options) (Report, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	columns := columnOrder(rows)
	r := Report{
		Source:        opts.Source,
		Timestamp:     now().UTC(),
		TotalRows:     len(rows),
		TotalColumns:  len(columns),
		MissingValues: map[string]int{},
		Columns:       make([]ColumnStats, 0, len(columns)),
	}

	for _, col := range columns {
		stats := profile(col, rows)
		if stats.MissingCount > 0 {
			r.MissingValues[col] = stats.MissingCount
		}
		r.Columns = append(r.Columns, stats)
	}

	r.Duplicates = duplicates(rows, columns)

	if opts.Entity != nil {
		r.Entity = opts.Entity.Info.Key
		v, err := core.NewRowValidator(opts.Entity.Fields, opts.Lookups)
		if err != nil {
			return Report{}, err
		}
		r.Violations = map[string]int{}
		for _, row := range rows {
			out := v.Validate(row)
			if out.Accepted {
				continue
			}
			r.RowsFailingRules++
			for _, reason := range out.Reasons {
				r.Violations[core.MapReason(reason).Code]++
			}
		}
	}

	return r, nil
}

// columnOrder returns every column in first-seen order.
func columnOrder(rows []core.RawRow) []string {
	var cols []string
	seen := map[string]bool{}
	for _, row := range rows {
		for _, c := range row.Columns {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	return cols
}

func profile(col string, rows []core.RawRow) ColumnStats {
	stats := ColumnStats{Name: col}
	unique := map[string]struct{}{}
	kinds := map[string]bool{}

	for _, row := range rows {
		text := row.Text(col)
		if text == "" {
			stats.MissingCount++
			continue
		}
		unique[text] = struct{}{}
		kinds[kindOf(row.Get(col), text)] = true
	}

	stats.UniqueCount = len(unique)
	switch len(kinds) {
	case 0:
		stats.Kind = KindEmpty
	case 1:
		for k := range kinds {
			stats.Kind = k
		}
	default:
		if len(kinds) == 2 && kinds[KindInteger] && kinds[KindNumber] {
			stats.Kind = KindNumber
		} else {
			stats.Kind = KindMixed
		}
	}
	return stats
}

func kindOf(v core.Value, text string) string {
	switch v.(type) {
	case int64, int:
		return KindInteger
	case float64:
		if strings.ContainsAny(text, ".eE") {
			return KindNumber
		}
		return KindInteger
	}
	if _, ok := core.ParseInteger(text); ok {
		return KindInteger
	}
	if looksNumeric(text) {
		return KindNumber
	}
	if _, ok := core.ParseDate(text); ok {
		return KindDate
	}
	return KindText
}

func looksNumeric(s string) bool {
	dot := false
	digits := 0
	for i, c := range s {
		switch {
		case c >= '0' && c <= '9':
			digits++
		case c == '.' && !dot:
			dot = true
		case (c == '-' || c == '+') && i == 0:
		default:
			return false
		}
	}
	return digits > 0
}

func duplicates(rows []core.RawRow, columns []string) Duplicates {
	var d Duplicates
	seen := make(map[string]struct{}, len(rows))
	var b strings.Builder
	for _, row := range rows {
		b.Reset()
		for _, c := range columns {
			b.WriteString(row.Text(c))
			b.WriteByte(0x1f)
		}
		key := b.String()
		if _, dup := seen[key]; dup {
			d.Count++
			d.Lines = append(d.Lines, row.Line)
			continue
		}
		seen[key] = struct{}{}
	}
	slices.Sort(d.Lines)
	return d
}
