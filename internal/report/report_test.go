package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/sheet2neon/internal/audit"
	"github.com/JonMunkholm/sheet2neon/internal/core"
)

func sample() core.RunReport {
	started := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	return core.RunReport{
		RunID:           uuid.MustParse("7d3c2f4e-0000-4000-8000-000000000001"),
		EntityType:      "students",
		StartedAt:       started,
		FinishedAt:      started.Add(1500 * time.Millisecond),
		RecordsSeen:     3,
		RecordsLoaded:   1,
		RecordsSkipped:  1,
		RecordsRejected: 1,
		RejectedDetail: []core.RejectedRow{
			{RowIndex: 2, Line: 4, Reasons: []string{`invalid email format: "<x>"`}},
		},
		SkippedDetail: []core.SkippedRow{{RowIndex: 1, Key: "a@uni.edu", Reason: core.SkipDuplicateInBatch}},
	}
}

func TestFileName(t *testing.T) {
	got := FileName(sample())
	want := "etl_run_20250301T093000Z_7d3c2f4e-0000-4000-8000-000000000001.json"
	if got != want {
		t.Errorf("FileName() = %q, want %q", got, want)
	}
}

func TestWriteFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	r := sample()

	path, err := WriteFile(dir, r)
	if err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("report written to %s, want it under %s", path, dir)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if mode := info.Mode().Perm(); mode != 0o644 {
		t.Errorf("report mode = %v, want -rw-r--r--", mode)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte(`"<x>"`)) {
		t.Errorf("reasons should not be HTML-escaped:\n%s", data)
	}

	var got core.RunReport
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if got.RunID != r.RunID || got.RecordsSeen != 3 {
		t.Errorf("round trip lost data: %+v", got)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the report in %s, found %d entries", dir, len(entries))
	}
}

func TestRenderRun(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderRun(&buf, sample()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	for _, want := range []string{"students run", "Rejected rows", "VAL002", "1.5s"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "interrupted") {
		t.Errorf("complete run rendered as interrupted:\n%s", out)
	}

	r := sample()
	r.Interrupted = true
	r.RejectedDetail = nil
	buf.Reset()
	if err := RenderRun(&buf, r); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "interrupted") {
		t.Errorf("interrupted run not flagged:\n%s", buf.String())
	}
	if strings.Contains(buf.String(), "Rejected rows") {
		t.Errorf("empty rejected table rendered:\n%s", buf.String())
	}
}

func TestRenderRuns(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderRuns(&buf, []core.RunSummary{sample().Summary()}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"7d3c2f4e", "students", "2025-03-01 09:30:00"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderAudit(t *testing.T) {
	a := audit.Report{
		Source:       "students.csv",
		Entity:       "students",
		TotalRows:    4,
		TotalColumns: 2,
		Columns: []audit.ColumnStats{
			{Name: "email", Kind: audit.KindText, UniqueCount: 3, MissingCount: 1},
		},
		RowsFailingRules: 2,
		Violations:       map[string]int{"VAL002": 1, "VAL001": 2},
	}

	var buf bytes.Buffer
	if err := RenderAudit(&buf, a); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "2 of 4 rows break students rules (VAL001=2, VAL002=1)") {
		t.Errorf("violations line missing or unsorted:\n%s", out)
	}
}

func TestRenderEntities(t *testing.T) {
	defs := []core.EntityDefinition{{
		Info: core.EntityInfo{Key: "courses", Table: "course", KeyFields: []string{"code"}},
		Fields: []core.FieldSpec{
			{Name: "code", Required: true},
			{Name: "credits"},
		},
	}}

	var buf bytes.Buffer
	if err := RenderEntities(&buf, defs); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "code, credits?") {
		t.Errorf("optional fields should be marked:\n%s", buf.String())
	}
}

func TestDescribe(t *testing.T) {
	defs := []core.EntityDefinition{{
		Info: core.EntityInfo{Key: "courses", Table: "course", KeyFields: []string{"code"}},
		Fields: []core.FieldSpec{
			{Name: "code", Type: core.FieldCode, Required: true},
			{Name: "credits", Type: core.FieldInteger, Domain: []int64{1, 2, 3, 4}},
		},
		Build: func(core.Fields) core.Record { return nil },
	}}

	data, err := json.Marshal(Describe(defs))
	if err != nil {
		t.Fatalf("definitions with a Build func must still marshal: %v", err)
	}
	var got []Entity
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got[0].Key != "courses" || got[0].Fields[0].Type != "code" || got[0].Fields[1].Required {
		t.Errorf("Describe = %+v", got[0])
	}
}
