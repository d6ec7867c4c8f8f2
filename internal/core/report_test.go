package core

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestReportBuilder_Counts(t *testing.T) {
	b := newReportBuilder(uuid.New(), "people", time.Now())
	b.record(RowOutcome{RowIndex: 0, State: StateLoaded, Key: "a"})
	b.record(RowOutcome{RowIndex: 1, State: StateRejected, Reasons: []string{"missing name"}})
	b.record(RowOutcome{RowIndex: 2, State: StateDuplicateInBatch, Key: "a"})
	b.record(RowOutcome{RowIndex: 3, State: StateSkippedDuplicate, Key: "b"})
	b.record(RowOutcome{RowIndex: 4, State: StateRejectedAtStore, Reasons: []string{"fk"}})

	r := b.finish(time.Now(), false)
	if err := r.Check(); err != nil {
		t.Fatal(err)
	}
	if r.RecordsLoaded != 1 || r.RecordsSkipped != 2 || r.RecordsRejected != 2 {
		t.Errorf("counters = %+v", r.Summary())
	}
	if r.SkippedDetail[1].Reason != SkipAlreadyInStore {
		t.Errorf("SkippedDetail = %+v", r.SkippedDetail)
	}
}

func TestReportBuilder_NonTerminalStateStillBalances(t *testing.T) {
	b := newReportBuilder(uuid.New(), "people", time.Now())
	b.record(RowOutcome{RowIndex: 0, State: StateNormalized})

	r := b.finish(time.Now(), false)
	if err := r.Check(); err != nil {
		t.Fatal(err)
	}
	if r.RecordsRejected != 1 || !strings.Contains(r.RejectedDetail[0].Reasons[0], "normalized") {
		t.Errorf("RejectedDetail = %+v", r.RejectedDetail)
	}
}

func TestReportBuilder_FinishCopies(t *testing.T) {
	b := newReportBuilder(uuid.New(), "people", time.Now())
	b.record(RowOutcome{RowIndex: 0, State: StateRejected, Reasons: []string{"missing name"}})

	r := b.finish(time.Now(), false)
	r.RejectedDetail[0].Reasons[0] = "tampered"
	r.Rows[0].Reasons[0] = "tampered"

	again := b.finish(time.Now(), false)
	if again.RejectedDetail[0].Reasons[0] != "missing name" || again.Rows[0].Reasons[0] != "missing name" {
		t.Error("finished report shares memory with the builder")
	}
}

func TestRunReport_CheckDetectsImbalance(t *testing.T) {
	r := RunReport{RecordsSeen: 3, RecordsLoaded: 1}
	if err := r.Check(); err == nil {
		t.Error("Check() = nil for an unbalanced report")
	}
}

func TestRowState(t *testing.T) {
	terminal := map[RowState]bool{
		StatePending:          false,
		StateAccepted:         false,
		StateNormalized:       false,
		StateRejected:         true,
		StateDuplicateInBatch: true,
		StateLoaded:           true,
		StateSkippedDuplicate: true,
		StateRejectedAtStore:  true,
	}
	for state, want := range terminal {
		if got := state.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", state, got, want)
		}

		text, _ := state.MarshalText()
		var back RowState
		if err := back.UnmarshalText(text); err != nil || back != state {
			t.Errorf("round trip of %s gave %s (%v)", state, back, err)
		}
	}
}

func TestDeduplicator(t *testing.T) {
	d := NewDeduplicator()

	if _, dup := d.Seen("a", 0); dup {
		t.Fatal("first key reported duplicate")
	}
	if _, dup := d.Seen("b", 1); dup {
		t.Fatal("second key reported duplicate")
	}
	first, dup := d.Seen("a", 2)
	if !dup || first != 0 {
		t.Errorf("Seen(a) = %d, %v, want 0, true", first, dup)
	}
	if d.Len() != 2 {
		t.Errorf("Len() = %d", d.Len())
	}
}
