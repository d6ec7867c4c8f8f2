// Package extract reads spreadsheets and CSV files into core.RawRow values.
//
// Every extractor follows the same contract: the first non-empty row is the
// header, each later row becomes one RawRow keyed by field name, rows whose
// cells are all blank are dropped, and any failure to read the source is a
// *core.ExtractionError. A source with a header and no data, or no content
// at all, yields zero rows and no error.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/sheet2neon/internal/core"
)

// Extractor produces the raw rows of one source.
type Extractor interface {
	// Name identifies the source in logs and errors.
	Name() string
	// Extract reads the whole source, renaming columns through m.
	Extract(ctx context.Context, m Mapping) ([]core.RawRow, error)
}

// Mapping maps field names to source header names, e.g. "name" -> "Full Name".
// Headers that are not mapped keep their cleaned, lower-cased name, so a file
// whose headers already match the field names needs no mapping.
type Mapping map[string]string

// ParseMapping parses "field=Header" pairs.
func ParseMapping(pairs []string) (Mapping, error) {
	m := make(Mapping, len(pairs))
	for _, pair := range pairs {
		field, header, ok := strings.Cut(pair, "=")
		field = strings.TrimSpace(field)
		header = strings.TrimSpace(header)
		if !ok || field == "" || header == "" {
			return nil, fmt.Errorf("invalid mapping %q, want field=Header", pair)
		}
		m[field] = header
	}
	return m, nil
}

// Merge returns a new mapping with other's entries taking precedence.
func (m Mapping) Merge(other Mapping) Mapping {
	out := make(Mapping, len(m)+len(other))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// columns turns a header row into field names.
func (m Mapping) columns(header []string) []string {
	byHeader := make(map[string]string, len(m))
	for field, h := range m {
		byHeader[strings.ToLower(core.CleanCell(h))] = field
	}

	cols := make([]string, len(header))
	for i, h := range header {
		key := strings.ToLower(core.CleanCell(h))
		if field, ok := byHeader[key]; ok {
			cols[i] = field
		} else {
			cols[i] = key
		}
	}
	return cols
}

// rowsFromGrid converts a header-first grid into raw rows. firstLine is the
// source line number of grid[0].
func rowsFromGrid(grid [][]core.Value, m Mapping, firstLine int) []core.RawRow {
	headerAt := -1
	for i, cells := range grid {
		if !blank(cells) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return nil
	}

	header := make([]string, len(grid[headerAt]))
	for i, v := range grid[headerAt] {
		header[i] = core.ValueText(v)
	}
	cols := m.columns(header)

	rows := make([]core.RawRow, 0, len(grid)-headerAt-1)
	for i := headerAt + 1; i < len(grid); i++ {
		if blank(grid[i]) {
			continue
		}
		rows = append(rows, core.NewRawRow(firstLine+i, cols, grid[i]))
	}
	return rows
}

func blank(cells []core.Value) bool {
	for _, c := range cells {
		if core.ValueText(c) != "" {
			return false
		}
	}
	return true
}

// FromFile picks an extractor by file extension.
func FromFile(path string, opts FileOptions) (Extractor, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return &CSVFile{Path: path, MaxBytes: opts.MaxBytes}, nil
	case ".xlsx", ".xlsm":
		return &XLSXFile{Path: path, Sheet: opts.Sheet}, nil
	default:
		return nil, core.NewExtractionError(path, fmt.Errorf("unsupported file type %q", filepath.Ext(path)))
	}
}

// FileOptions tune file-based extractors.
type FileOptions struct {
	Sheet    string // Worksheet for workbooks; the first sheet when empty
	MaxBytes int64  // Size limit for CSV input; 0 means unlimited
}

func openFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, core.NewExtractionError(path, err)
	}
	return f, nil
}
