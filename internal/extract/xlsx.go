package extract

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/sheet2neon/internal/core"
)

// XLSX reads one worksheet of a workbook streamed from R.
type XLSX struct {
	R      io.Reader
	Source string
	Sheet  string // first sheet when empty
}

func (x *XLSX) Name() string { return x.Source }

func (x *XLSX) Extract(ctx context.Context, m Mapping) ([]core.RawRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wb, err := excelize.OpenReader(x.R)
	if err != nil {
		return nil, core.NewExtractionError(x.Source, fmt.Errorf("open workbook: %w", err))
	}
	defer wb.Close()

	sheet := x.Sheet
	if sheet == "" {
		sheets := wb.GetSheetList()
		if len(sheets) == 0 {
			return nil, nil
		}
		sheet = sheets[0]
	}

	rows, err := wb.GetRows(sheet)
	if err != nil {
		return nil, core.NewExtractionError(x.Source, fmt.Errorf("read sheet %q: %w", sheet, err))
	}

	grid := make([][]core.Value, len(rows))
	for i, r := range rows {
		cells := make([]core.Value, len(r))
		for j, v := range r {
			cells[j] = v
		}
		grid[i] = cells
	}
	return rowsFromGrid(grid, m, 1), nil
}

// XLSXFile is a workbook on disk.
type XLSXFile struct {
	Path  string
	Sheet string
}

func (x *XLSXFile) Name() string { return x.Path }

func (x *XLSXFile) Extract(ctx context.Context, m Mapping) ([]core.RawRow, error) {
	f, err := openFile(x.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return (&XLSX{R: f, Source: x.Path, Sheet: x.Sheet}).Extract(ctx, m)
}
