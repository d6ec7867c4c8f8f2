// Package service runs the extract, validate and load flow for callers that
// should not assemble it themselves: the HTTP handlers, the CLI and the
// scheduler. It owns the run limiter, resolves lookup tables, persists run
// history and writes report files.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/sheet2neon/internal/audit"
	"github.com/JonMunkholm/sheet2neon/internal/config"
	"github.com/JonMunkholm/sheet2neon/internal/core"
	"github.com/JonMunkholm/sheet2neon/internal/core/entities"
	"github.com/JonMunkholm/sheet2neon/internal/extract"
	"github.com/JonMunkholm/sheet2neon/internal/logging"
	"github.com/JonMunkholm/sheet2neon/internal/report"
	"github.com/JonMunkholm/sheet2neon/internal/rules"
	"github.com/JonMunkholm/sheet2neon/internal/store"
)

// Options configure a Service. Zero values take the config defaults.
type Options struct {
	Rules         *rules.RuleSet
	ReportDir     string // empty disables report files
	LookupSource  string // config.LookupFromStore, LookupFromRules or LookupNone
	MaxConcurrent int
	MaxWait       time.Duration
	RunTimeout    time.Duration
	Logger        *slog.Logger

	// Clock and RunIDs make reports reproducible in tests.
	Clock  func() time.Time
	RunIDs func() uuid.UUID
}

// OptionsFromConfig builds Options from loaded configuration.
func OptionsFromConfig(cfg *config.Config, rs *rules.RuleSet) Options {
	return Options{
		Rules:         rs,
		ReportDir:     cfg.Pipeline.ReportDir,
		LookupSource:  cfg.Pipeline.LookupSource,
		MaxConcurrent: cfg.Run.MaxConcurrent,
		MaxWait:       cfg.Run.MaxWait,
		RunTimeout:    cfg.Run.Timeout,
	}
}

// Service runs pipelines against one store.
type Service struct {
	store        store.Store
	rules        *rules.RuleSet
	limiter      *RunLimiter
	reportDir    string
	lookupSource string
	runTimeout   time.Duration
	logger       *slog.Logger
	now          func() time.Time
	newID        func() uuid.UUID
}

// New creates a Service.
func New(st store.Store, opts Options) *Service {
	s := &Service{
		store:        st,
		rules:        opts.Rules,
		limiter:      NewRunLimiter(opts.MaxConcurrent, opts.MaxWait),
		reportDir:    opts.ReportDir,
		lookupSource: opts.LookupSource,
		runTimeout:   opts.RunTimeout,
		logger:       opts.Logger,
		now:          opts.Clock,
		newID:        opts.RunIDs,
	}
	if s.rules == nil {
		s.rules = rules.Default()
	}
	if s.lookupSource == "" {
		s.lookupSource = config.LookupFromStore
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.New
	}
	return s
}

// Limiter exposes the run limiter for health output and shutdown.
func (s *Service) Limiter() *RunLimiter {
	return s.limiter
}

// Rules returns the active rule set.
func (s *Service) Rules() *rules.RuleSet {
	return s.rules
}

// RunRequest describes one run.
type RunRequest struct {
	Entity string
	Source extract.Extractor
	// Mapping overrides the rule set's header mapping for this run.
	Mapping extract.Mapping
}

// RunResult is a finished or interrupted run.
type RunResult struct {
	Report     core.RunReport
	ReportPath string // empty when report files are disabled or the write failed
}

// Run extracts the source and loads it. Unknown entities, bad rule sets and
// empty lookups return a *core.ConfigurationError and unreadable sources a
// *core.ExtractionError, both before any row is touched. If ctx ends
// mid-run, the partial report is still saved and returned with the context
// error.
func (s *Service) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	def, err := s.Entity(req.Entity)
	if err != nil {
		return RunResult{}, err
	}
	if req.Source == nil {
		return RunResult{}, core.NewConfigurationError("no source given for %s", req.Entity)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return RunResult{}, err
	}
	defer s.limiter.Release()

	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	log := logging.FromContext(ctx).With("entity", def.Info.Key, "source", req.Source.Name())

	lookups, err := s.Lookups(ctx)
	if err != nil {
		return RunResult{}, err
	}

	mapping := extract.Mapping(s.rules.Mapping(def.Info.Key)).Merge(req.Mapping)
	rows, err := req.Source.Extract(ctx, mapping)
	if err != nil {
		return RunResult{}, err
	}
	log.Debug("source extracted", "rows", len(rows))

	p, err := core.NewPipeline(def, lookups, s.store,
		core.WithLogger(log),
		core.WithClock(s.now),
		core.WithRunIDs(s.newID),
	)
	if err != nil {
		return RunResult{}, err
	}

	rep, runErr := p.Run(ctx, rows)
	res := RunResult{Report: rep}

	// History and report files are written even for an interrupted run, on a
	// context that outlives the cancelled one.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.store.SaveRun(persistCtx, rep); err != nil {
		log.Warn("save run history failed", "run_id", rep.RunID, "error", err)
	}
	if s.reportDir != "" {
		path, err := report.WriteFile(s.reportDir, rep)
		if err != nil {
			log.Warn("write report file failed", "run_id", rep.RunID, "error", err)
		} else {
			res.ReportPath = path
		}
	}

	return res, runErr
}

// Entity returns the registered definition with rule-set overrides applied.
func (s *Service) Entity(key string) (core.EntityDefinition, error) {
	def, err := core.Lookup(key)
	if err != nil {
		return core.EntityDefinition{}, err
	}
	return s.rules.Apply(def)
}

// Entities lists every entity with overrides applied.
func (s *Service) Entities() ([]core.EntityDefinition, error) {
	defs := core.All()
	out := make([]core.EntityDefinition, 0, len(defs))
	for _, def := range defs {
		applied, err := s.rules.Apply(def)
		if err != nil {
			return nil, err
		}
		out = append(out, applied)
	}
	return out, nil
}

// Lookups resolves the reference tables for validation. With the store as
// source an empty department table yields no lookup, so the foreign key
// rejects the rows instead.
func (s *Service) Lookups(ctx context.Context) (core.Lookups, error) {
	switch s.lookupSource {
	case config.LookupNone:
		return nil, nil
	case config.LookupFromRules:
		return s.rules.StaticLookups(), nil
	case config.LookupFromStore:
		ids, err := s.store.DepartmentIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("load department ids: %w", err)
		}
		if len(ids) == 0 {
			s.logger.Warn("department table is empty; references will be checked by the store")
			return nil, nil
		}
		return core.Lookups{entities.LookupDepartment: core.NewLookupSet(ids...)}, nil
	default:
		return nil, core.NewConfigurationError("unknown lookup source %q", s.lookupSource)
	}
}

// AuditRequest describes an audit. Entity is optional.
type AuditRequest struct {
	Entity  string
	Source  extract.Extractor
	Mapping extract.Mapping
}

// Audit extracts the source and profiles it without loading anything.
func (s *Service) Audit(ctx context.Context, req AuditRequest) (audit.Report, error) {
	if req.Source == nil {
		return audit.Report{}, core.NewConfigurationError("no source given for audit")
	}

	opts := audit.Options{Source: req.Source.Name(), Now: s.now}
	mapping := req.Mapping
	if req.Entity != "" {
		def, err := s.Entity(req.Entity)
		if err != nil {
			return audit.Report{}, err
		}
		lookups, err := s.Lookups(ctx)
		if err != nil {
			return audit.Report{}, err
		}
		opts.Entity = &def
		opts.Lookups = lookups
		mapping = extract.Mapping(s.rules.Mapping(def.Info.Key)).Merge(req.Mapping)
	}

	rows, err := req.Source.Extract(ctx, mapping)
	if err != nil {
		return audit.Report{}, err
	}
	return audit.Run(rows, opts)
}

// Runs returns recent run summaries, newest first.
func (s *Service) Runs(ctx context.Context, limit int) ([]core.RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListRuns(ctx, limit)
}

// GetRun returns one stored report.
func (s *Service) GetRun(ctx context.Context, id uuid.UUID) (core.RunReport, error) {
	return s.store.GetRun(ctx, id)
}

// TemplateHeaders returns the header row a source for entity should carry,
// honoring the rule set's header mapping.
func (s *Service) TemplateHeaders(entity string) ([]string, error) {
	def, err := s.Entity(entity)
	if err != nil {
		return nil, err
	}
	mapping := s.rules.Mapping(def.Info.Key)
	headers := make([]string, len(def.Fields))
	for i, f := range def.Fields {
		headers[i] = f.Name
		if h, ok := mapping[f.Name]; ok {
			headers[i] = h
		}
	}
	return headers, nil
}

// Seed inserts the rule set's departments into the store.
func (s *Service) Seed(ctx context.Context) (int, error) {
	ids := s.rules.DepartmentIDs()
	if len(ids) == 0 {
		return 0, nil
	}
	return s.store.SeedDepartments(ctx, ids)
}

// Purge deletes run history older than the retention window.
func (s *Service) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	return s.store.PurgeRuns(ctx, s.now().Add(-retention))
}

// Ping checks the store connection.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// IsBusy reports whether err means every run slot was taken.
func IsBusy(err error) bool {
	return errors.Is(err, ErrTooManyRuns)
}
