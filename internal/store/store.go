// Package store persists normalized records and run history.
//
// Two backends implement Store: Postgres for production (pgxpool) and SQLite
// for local runs and tests (modernc.org/sqlite, no cgo). Both load a record
// with an insert-ignore statement so a row whose business key is already
// stored reports inserted=false instead of an error. Every insert commits on
// its own.
package store

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/JonMunkholm/sheet2neon/internal/config"
	"github.com/JonMunkholm/sheet2neon/internal/core"
	"github.com/JonMunkholm/sheet2neon/internal/core/entities"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// ErrRunNotFound is returned by GetRun for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// Store is the persistence boundary used by the service.
type Store interface {
	core.Inserter

	// DepartmentIDs lists every department id, for validation lookups.
	DepartmentIDs(ctx context.Context) ([]int64, error)
	// SeedDepartments inserts missing departments and reports how many were new.
	SeedDepartments(ctx context.Context, ids []int64) (int, error)
	// EnsureSchema creates missing tables. Existing tables are left alone.
	EnsureSchema(ctx context.Context) error

	SaveRun(ctx context.Context, r core.RunReport) error
	GetRun(ctx context.Context, id uuid.UUID) (core.RunReport, error)
	// ListRuns returns the newest runs first.
	ListRuns(ctx context.Context, limit int) ([]core.RunSummary, error)
	// PurgeRuns deletes history started before cutoff.
	PurgeRuns(ctx context.Context, cutoff time.Time) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// Open connects to the backend named in cfg.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		return OpenPostgres(ctx, cfg)
	case config.BackendSQLite:
		return OpenSQLite(ctx, cfg.SQLitePath)
	default:
		return nil, core.NewConfigurationError("unknown database backend %q", cfg.Backend)
	}
}

func schemaSQL(backend string) (string, error) {
	data, err := schemaFS.ReadFile("schema/" + backend + ".sql")
	if err != nil {
		return "", errors.Wrap(err, "read schema")
	}
	return string(data), nil
}

func departmentName(id int64) string {
	return fmt.Sprintf("Department %d", id)
}

// notFound is the store-side rejection for an enrollment whose student or
// course is not loaded yet.
func notFound(what, key string) error {
	return fmt.Errorf("%s not found in store: %s", what, key)
}

func unsupported(rec core.Record) error {
	return fmt.Errorf("no table for record type %T", rec)
}

// enrolledOn normalizes an optional enrollment date to a UTC midnight.
func enrolledOn(e entities.Enrollment) *time.Time {
	if e.EnrolledOn == nil {
		return nil
	}
	t := e.EnrolledOn.UTC()
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}
