package extract

import (
	"context"
	"encoding/csv"
	"errors"
	"io"

	"github.com/JonMunkholm/sheet2neon/internal/core"
)

// CSV reads comma-separated rows from R. Source names the input in errors.
type CSV struct {
	R        io.Reader
	Source   string
	MaxBytes int64
}

func (c *CSV) Name() string { return c.Source }

func (c *CSV) Extract(ctx context.Context, m Mapping) ([]core.RawRow, error) {
	grid, err := readCSV(ctx, Wrap(c.R, c.MaxBytes))
	if err != nil {
		return nil, core.NewExtractionError(c.Source, err)
	}
	return rowsFromGrid(grid, m, 1), nil
}

// CSVFile is a CSV on disk.
type CSVFile struct {
	Path     string
	MaxBytes int64
}

func (c *CSVFile) Name() string { return c.Path }

func (c *CSVFile) Extract(ctx context.Context, m Mapping) ([]core.RawRow, error) {
	f, err := openFile(c.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return (&CSV{R: f, Source: c.Path, MaxBytes: c.MaxBytes}).Extract(ctx, m)
}

// readCSV returns every record with one grid row per physical line, padding
// skipped blank lines so grid indexes stay aligned with line numbers.
func readCSV(ctx context.Context, r io.Reader) ([][]core.Value, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	var grid [][]core.Value
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return grid, nil
		}
		if err != nil {
			return nil, err
		}

		line, _ := reader.FieldPos(0)
		for len(grid) < line-1 {
			grid = append(grid, nil)
		}
		cells := make([]core.Value, len(record))
		for i, v := range record {
			cells[i] = v
		}
		grid = append(grid, cells)
	}
}
