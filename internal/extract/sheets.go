package extract

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/JonMunkholm/sheet2neon/internal/core"
)

// Sheets reads a range of a Google spreadsheet. Numbers arrive unformatted,
// so a year typed as 2 comes back as 2 rather than "2.00".
type Sheets struct {
	SpreadsheetID string
	Range         string // e.g. "Students!A:Z"; the first sheet when empty
	Options       []option.ClientOption
}

func (s *Sheets) Name() string {
	if s.Range == "" {
		return "sheets:" + s.SpreadsheetID
	}
	return "sheets:" + s.SpreadsheetID + "/" + s.Range
}

func (s *Sheets) Extract(ctx context.Context, m Mapping) ([]core.RawRow, error) {
	if s.SpreadsheetID == "" {
		return nil, core.NewExtractionError(s.Name(), fmt.Errorf("spreadsheet id is empty"))
	}

	svc, err := sheets.NewService(ctx, s.Options...)
	if err != nil {
		return nil, core.NewExtractionError(s.Name(), fmt.Errorf("create sheets client: %w", err))
	}

	rng := s.Range
	if rng == "" {
		rng = "A:ZZ"
	}
	resp, err := svc.Spreadsheets.Values.Get(s.SpreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).
		Do()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, core.NewExtractionError(s.Name(), err)
	}

	grid := make([][]core.Value, len(resp.Values))
	for i, r := range resp.Values {
		cells := make([]core.Value, len(r))
		for j, v := range r {
			cells[j] = v
		}
		grid[i] = cells
	}
	return rowsFromGrid(grid, m, 1), nil
}

// ClientOptions prefers inline JSON over a credentials file. With neither
// set the client falls back to application default credentials.
func ClientOptions(credentialsJSON, credentialsFile string) []option.ClientOption {
	opts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsReadonlyScope)}
	switch {
	case credentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	case credentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	return opts
}
