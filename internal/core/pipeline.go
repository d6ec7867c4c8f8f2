package core

// pipeline.go drives one run: every raw row goes through
// validate -> normalize -> deduplicate -> load, strictly in input order, and
// its terminal state is appended to the run's report. No row outcome stops
// the run; only a cancelled context does, and then the partial report still
// balances.

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Pipeline processes batches of raw rows for one entity. Its rule table and
// lookups are read-only, so a Pipeline may serve several runs at once; each
// run owns its own deduplicator and report.
type Pipeline struct {
	entity     EntityDefinition
	validator  *RowValidator
	normalizer *Normalizer
	loader     *Loader

	logger *slog.Logger
	now    func() time.Time
	newID  func() uuid.UUID
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used for run-level events.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithClock replaces time.Now, for reproducible reports.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithRunIDs replaces the run id generator.
func WithRunIDs(next func() uuid.UUID) Option {
	return func(p *Pipeline) { p.newID = next }
}

// NewPipeline assembles a pipeline for entity. Invalid rule tables, empty
// lookups and a missing store are reported as ConfigurationError.
func NewPipeline(entity EntityDefinition, lookups Lookups, ins Inserter, opts ...Option) (*Pipeline, error) {
	if ins == nil {
		return nil, NewConfigurationError("entity %s: no store configured", entity.Info.Key)
	}
	validator, err := NewRowValidator(entity.Fields, lookups)
	if err != nil {
		return nil, err
	}
	normalizer, err := NewNormalizer(entity)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		entity:     entity,
		validator:  validator,
		normalizer: normalizer,
		loader:     NewLoader(ins),
		logger:     slog.Default(),
		now:        time.Now,
		newID:      uuid.New,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Entity returns the definition the pipeline runs.
func (p *Pipeline) Entity() EntityDefinition {
	return p.entity
}

// Run processes rows and returns the run's report. A zero-length batch is a
// valid run with an all-zero report. If ctx ends, Run stops before the next
// row and returns the report of the rows handled so far along with the
// context error; those rows stay committed.
func (p *Pipeline) Run(ctx context.Context, rows []RawRow) (RunReport, error) {
	key := p.entity.Info.Key
	b := newReportBuilder(p.newID(), key, p.now().UTC())
	log := p.logger.With("run_id", b.r.RunID, "entity", key)
	log.Info("run started", "rows", len(rows))

	dedup := NewDeduplicator()
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return p.interrupt(b, log, err)
		}

		outcome, err := p.process(ctx, i, row, dedup)
		if err != nil {
			return p.interrupt(b, log, err)
		}
		b.record(outcome)
		recordRowMetric(key, outcome.State)

		if outcome.State == StateRejectedAtStore {
			log.Warn("row rejected by store", "row_index", i, "line", row.Line, "detail", outcome.Reasons)
		}
	}

	report := b.finish(p.now().UTC(), false)
	recordRunMetric(report)
	log.Info("run finished",
		"seen", report.RecordsSeen,
		"loaded", report.RecordsLoaded,
		"skipped", report.RecordsSkipped,
		"rejected", report.RecordsRejected,
		"distinct_keys", dedup.Len(),
		"duration", report.Duration(),
	)
	return report, nil
}

func (p *Pipeline) interrupt(b *reportBuilder, log *slog.Logger, err error) (RunReport, error) {
	report := b.finish(p.now().UTC(), true)
	recordRunMetric(report)
	log.Warn("run interrupted",
		"seen", report.RecordsSeen,
		"loaded", report.RecordsLoaded,
		"error", err,
	)
	return report, err
}

// process takes one row from Pending to a terminal state.
func (p *Pipeline) process(ctx context.Context, index int, row RawRow, dedup *Deduplicator) (RowOutcome, error) {
	out := RowOutcome{RowIndex: index, Line: row.Line, State: StatePending}

	validation := p.validator.Validate(row)
	if !validation.Accepted {
		out.State = StateRejected
		out.Reasons = validation.Reasons
		return out, nil
	}
	out.State = StateAccepted

	rec := p.normalizer.Normalize(row)
	out.Key = rec.Key()
	if first, dup := dedup.Seen(out.Key, index); dup {
		out.State = StateDuplicateInBatch
		out.Reasons = []string{"duplicate of row " + strconv.Itoa(first)}
		return out, nil
	}
	out.State = StateNormalized

	load, err := p.loader.Load(ctx, rec)
	if err != nil {
		return RowOutcome{}, err
	}
	switch load.Status {
	case LoadLoaded:
		out.State = StateLoaded
	case LoadSkippedDuplicate:
		out.State = StateSkippedDuplicate
	default:
		out.State = StateRejectedAtStore
		out.Reasons = []string{load.Detail}
	}
	return out, nil
}
