package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Skip reasons recorded in SkippedRow.Reason.
const (
	SkipDuplicateInBatch = "duplicate_in_batch"
	SkipAlreadyInStore   = "already_in_store"
)

// RowOutcome is the terminal state of one input row.
type RowOutcome struct {
	RowIndex int         `json:"row_index"`
	Line     int         `json:"line,omitempty"`
	State    RowState    `json:"state"`
	Key      BusinessKey `json:"key,omitempty"`
	Reasons  []string    `json:"reasons,omitempty"`
}

// RejectedRow lists why a row was not loaded.
type RejectedRow struct {
	RowIndex int      `json:"row_index"`
	Line     int      `json:"line,omitempty"`
	Reasons  []string `json:"reasons"`
}

// SkippedRow is a benign duplicate.
type SkippedRow struct {
	RowIndex int    `json:"row_index"`
	Key      string `json:"key"`
	Reason   string `json:"reason"`
}

// RunReport summarizes one pipeline run. It is built once by the pipeline
// and handed out by value; slices are never shared with the builder.
//
// RecordsSeen == RecordsLoaded + RecordsSkipped + RecordsRejected holds for
// every report, including interrupted ones.
type RunReport struct {
	RunID           uuid.UUID     `json:"run_id"`
	EntityType      string        `json:"entity_type"`
	StartedAt       time.Time     `json:"started_at"`
	FinishedAt      time.Time     `json:"finished_at"`
	RecordsSeen     int           `json:"records_seen"`
	RecordsLoaded   int           `json:"records_loaded"`
	RecordsSkipped  int           `json:"records_skipped"`
	RecordsRejected int           `json:"records_rejected"`
	RejectedDetail  []RejectedRow `json:"rejected_detail"`
	SkippedDetail   []SkippedRow  `json:"skipped_detail"`
	Rows            []RowOutcome  `json:"rows"`
	Interrupted     bool          `json:"interrupted,omitempty"`
}

// Duration returns how long the run took.
func (r RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Check verifies the accounting invariant.
func (r RunReport) Check() error {
	if r.RecordsSeen != r.RecordsLoaded+r.RecordsSkipped+r.RecordsRejected {
		return fmt.Errorf("run %s: records_seen %d != loaded %d + skipped %d + rejected %d",
			r.RunID, r.RecordsSeen, r.RecordsLoaded, r.RecordsSkipped, r.RecordsRejected)
	}
	if len(r.Rows) != r.RecordsSeen {
		return fmt.Errorf("run %s: %d row outcomes for %d records seen", r.RunID, len(r.Rows), r.RecordsSeen)
	}
	return nil
}

// Summary returns the counters of the report without row details.
func (r RunReport) Summary() RunSummary {
	return RunSummary{
		RunID:           r.RunID,
		EntityType:      r.EntityType,
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
		RecordsSeen:     r.RecordsSeen,
		RecordsLoaded:   r.RecordsLoaded,
		RecordsSkipped:  r.RecordsSkipped,
		RecordsRejected: r.RecordsRejected,
		Interrupted:     r.Interrupted,
	}
}

// RunSummary is one line of run history.
type RunSummary struct {
	RunID           uuid.UUID `json:"run_id"`
	EntityType      string    `json:"entity_type"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	RecordsSeen     int       `json:"records_seen"`
	RecordsLoaded   int       `json:"records_loaded"`
	RecordsSkipped  int       `json:"records_skipped"`
	RecordsRejected int       `json:"records_rejected"`
	Interrupted     bool      `json:"interrupted,omitempty"`
}

// reportBuilder accumulates outcomes for the run that owns it.
type reportBuilder struct {
	r RunReport
}

func newReportBuilder(runID uuid.UUID, entity string, startedAt time.Time) *reportBuilder {
	return &reportBuilder{r: RunReport{
		RunID:          runID,
		EntityType:     entity,
		StartedAt:      startedAt,
		RejectedDetail: []RejectedRow{},
		SkippedDetail:  []SkippedRow{},
		Rows:           []RowOutcome{},
	}}
}

func (b *reportBuilder) record(o RowOutcome) {
	b.r.RecordsSeen++
	b.r.Rows = append(b.r.Rows, o)

	switch o.State {
	case StateLoaded:
		b.r.RecordsLoaded++
	case StateDuplicateInBatch:
		b.r.RecordsSkipped++
		b.r.SkippedDetail = append(b.r.SkippedDetail, SkippedRow{
			RowIndex: o.RowIndex, Key: string(o.Key), Reason: SkipDuplicateInBatch,
		})
	case StateSkippedDuplicate:
		b.r.RecordsSkipped++
		b.r.SkippedDetail = append(b.r.SkippedDetail, SkippedRow{
			RowIndex: o.RowIndex, Key: string(o.Key), Reason: SkipAlreadyInStore,
		})
	default:
		// Rejected and RejectedAtStore; a non-terminal state here would be a
		// pipeline bug and is counted as a rejection so the totals balance.
		b.r.RecordsRejected++
		reasons := o.Reasons
		if len(reasons) == 0 {
			reasons = []string{"row ended in state " + o.State.String()}
		}
		b.r.RejectedDetail = append(b.r.RejectedDetail, RejectedRow{
			RowIndex: o.RowIndex, Line: o.Line, Reasons: reasons,
		})
	}
}

// finish returns an independent copy of the report.
func (b *reportBuilder) finish(at time.Time, interrupted bool) RunReport {
	out := b.r
	out.FinishedAt = at
	out.Interrupted = interrupted
	out.RejectedDetail = cloneRejected(b.r.RejectedDetail)
	out.SkippedDetail = append([]SkippedRow{}, b.r.SkippedDetail...)
	out.Rows = make([]RowOutcome, len(b.r.Rows))
	for i, row := range b.r.Rows {
		row.Reasons = cloneStrings(row.Reasons)
		out.Rows[i] = row
	}
	return out
}

func cloneRejected(in []RejectedRow) []RejectedRow {
	out := make([]RejectedRow, len(in))
	for i, r := range in {
		r.Reasons = cloneStrings(r.Reasons)
		out[i] = r
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
