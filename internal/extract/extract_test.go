package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"google.golang.org/api/option"

	"github.com/JonMunkholm/sheet2neon/internal/core"
)

func TestParseMapping(t *testing.T) {
	m, err := ParseMapping([]string{"name=Full Name", " email = E-mail "})
	if err != nil {
		t.Fatalf("ParseMapping() error = %v", err)
	}
	if m["name"] != "Full Name" || m["email"] != "E-mail" {
		t.Errorf("mapping = %v", m)
	}

	for _, bad := range []string{"name", "=Header", "name="} {
		if _, err := ParseMapping([]string{bad}); err == nil {
			t.Errorf("ParseMapping(%q) succeeded", bad)
		}
	}
}

func TestMapping_Merge(t *testing.T) {
	base := Mapping{"name": "Name", "email": "Email"}
	got := base.Merge(Mapping{"email": "Mail"})
	if got["name"] != "Name" || got["email"] != "Mail" {
		t.Errorf("Merge() = %v", got)
	}
	if base["email"] != "Email" {
		t.Error("Merge() modified the receiver")
	}
}

func TestCSV_Extract(t *testing.T) {
	input := "Full Name,Email,Year,Department_ID\n" +
		"Asha Rao,asha@uni.edu,2,1\n" +
		"\n" +
		",,,\n" +
		"\"Li, Wei\",li@uni.edu,3,2\n"

	src := &CSV{R: strings.NewReader(input), Source: "students.csv"}
	rows, err := src.Extract(context.Background(), Mapping{"name": "full name"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2 (blank rows dropped)", len(rows))
	}

	first := rows[0]
	if first.Line != 2 {
		t.Errorf("first.Line = %d, want 2", first.Line)
	}
	if first.Text("name") != "Asha Rao" || first.Text("email") != "asha@uni.edu" || first.Text("department_id") != "1" {
		t.Errorf("first row = %v", first.Values)
	}
	if rows[1].Text("name") != "Li, Wei" {
		t.Errorf("quoted cell = %q", rows[1].Text("name"))
	}
	if rows[1].Line != 5 {
		t.Errorf("second.Line = %d, want 5", rows[1].Line)
	}
}

func TestCSV_Extract_Empty(t *testing.T) {
	for name, input := range map[string]string{
		"no content":  "",
		"header only": "name,email\n",
		"BOM only":    "\xEF\xBB\xBF",
	} {
		t.Run(name, func(t *testing.T) {
			rows, err := (&CSV{R: strings.NewReader(input), Source: "x.csv"}).Extract(context.Background(), nil)
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if len(rows) != 0 {
				t.Errorf("got %d rows, want 0", len(rows))
			}
		})
	}
}

func TestCSV_Extract_TooLarge(t *testing.T) {
	input := "name\n" + strings.Repeat("asha\n", 1000)
	_, err := (&CSV{R: strings.NewReader(input), Source: "big.csv", MaxBytes: 64}).Extract(context.Background(), nil)

	var extErr *core.ExtractionError
	if !errors.As(err, &extErr) {
		t.Fatalf("error = %v, want *core.ExtractionError", err)
	}
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("error = %v, want it to wrap ErrFileTooLarge", err)
	}
}

func TestCSVFile_Missing(t *testing.T) {
	_, err := (&CSVFile{Path: filepath.Join(t.TempDir(), "nope.csv")}).Extract(context.Background(), nil)
	if !core.IsFatal(err) {
		t.Errorf("error = %v, want a fatal extraction error", err)
	}
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "students.csv")
	if err := os.WriteFile(path, []byte("name,email\nAsha,asha@uni.edu\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	src, err := FromFile(path, FileOptions{})
	if err != nil {
		t.Fatalf("FromFile() error = %v", err)
	}
	rows, err := src.Extract(context.Background(), nil)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(rows) != 1 || rows[0].Text("email") != "asha@uni.edu" {
		t.Errorf("rows = %+v", rows)
	}

	if _, err := FromFile(filepath.Join(dir, "students.pdf"), FileOptions{}); !core.IsFatal(err) {
		t.Errorf("unsupported type: error = %v", err)
	}
}

func TestXLSX_Extract(t *testing.T) {
	wb := excelize.NewFile()
	defer wb.Close()
	for i, row := range [][]any{
		{"Code", "Name", "Credits", "Department_ID"},
		{"cs101", "intro to programming", 4, 1},
		{},
		{"ma201", "linear algebra", 3, 2},
	} {
		if len(row) == 0 {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := wb.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	buf, err := wb.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}

	rows, err := (&XLSX{R: buf, Source: "courses.xlsx"}).Extract(context.Background(), nil)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].Text("code") != "cs101" || rows[0].Text("credits") != "4" {
		t.Errorf("first row = %v", rows[0].Values)
	}
	if rows[1].Line != 4 {
		t.Errorf("second.Line = %d, want 4", rows[1].Line)
	}
}

func TestXLSX_Extract_NotAWorkbook(t *testing.T) {
	_, err := (&XLSX{R: strings.NewReader("not a zip"), Source: "bad.xlsx"}).Extract(context.Background(), nil)
	var extErr *core.ExtractionError
	if !errors.As(err, &extErr) {
		t.Errorf("error = %v, want *core.ExtractionError", err)
	}
}

func TestSheets_Extract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/spreadsheets/sheet-123/values/") {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("valueRenderOption"); got != "UNFORMATTED_VALUE" {
			t.Errorf("valueRenderOption = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"range": "Students!A1:D3",
			"majorDimension": "ROWS",
			"values": [
				["Name", "Email", "Year", "Department_ID"],
				["asha rao", "Asha@Uni.edu", 2, 1],
				["li wei", "li@uni.edu", 3.0, 2]
			]
		}`)
	}))
	defer srv.Close()

	src := &Sheets{
		SpreadsheetID: "sheet-123",
		Range:         "Students!A:D",
		Options: []option.ClientOption{
			option.WithEndpoint(srv.URL + "/"),
			option.WithoutAuthentication(),
		},
	}
	rows, err := src.Extract(context.Background(), nil)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[1].Text("year") != "3" || rows[0].Text("department_id") != "1" {
		t.Errorf("numeric cells = %q, %q", rows[1].Text("year"), rows[0].Text("department_id"))
	}
}

func TestSheets_Extract_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error": {"code": 403, "message": "The caller does not have permission"}}`)
	}))
	defer srv.Close()

	src := &Sheets{
		SpreadsheetID: "sheet-123",
		Options:       []option.ClientOption{option.WithEndpoint(srv.URL + "/"), option.WithoutAuthentication()},
	}
	_, err := src.Extract(context.Background(), nil)
	if !core.IsFatal(err) {
		t.Errorf("error = %v, want a fatal extraction error", err)
	}
}

func TestClientOptions(t *testing.T) {
	if got := len(ClientOptions("", "")); got != 1 {
		t.Errorf("no credentials: %d options, want scopes only", got)
	}
	if got := len(ClientOptions(`{"type":"service_account"}`, "/tmp/creds.json")); got != 2 {
		t.Errorf("json credentials: %d options", got)
	}
}
