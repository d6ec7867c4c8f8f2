package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/sheet2neon/internal/config"
	"github.com/JonMunkholm/sheet2neon/internal/core"
	"github.com/JonMunkholm/sheet2neon/internal/core/entities"
)

// Postgres is the production store.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

// OpenPostgres creates a pool from cfg and verifies the connection.
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, core.NewConfigurationError("parse database URL: %v", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	poolConfig.MinConns = int32(cfg.MinConns)
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Wrap(err, "connect to database")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping database")
	}
	return &Postgres{pool: pool}, nil
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	ddl, err := schemaSQL(config.BackendPostgres)
	if err != nil {
		return err
	}
	if _, err := p.pool.Exec(ctx, ddl); err != nil {
		return errors.Wrap(err, "apply schema")
	}
	return nil
}

// InsertIgnore implements core.Inserter.
func (p *Postgres) InsertIgnore(ctx context.Context, rec core.Record) (bool, error) {
	switch r := rec.(type) {
	case entities.Student:
		tag, err := p.pool.Exec(ctx,
			`INSERT INTO student (name, email, year, department_id)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (email) DO NOTHING`,
			r.Name, r.Email, r.Year, r.DepartmentID)
		if err != nil {
			return false, errors.Wrap(err, "insert student")
		}
		return tag.RowsAffected() == 1, nil

	case entities.Course:
		tag, err := p.pool.Exec(ctx,
			`INSERT INTO course (code, name, credits, department_id)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (code) DO NOTHING`,
			r.Code, r.Name, r.Credits, r.DepartmentID)
		if err != nil {
			return false, errors.Wrap(err, "insert course")
		}
		return tag.RowsAffected() == 1, nil

	case entities.Enrollment:
		return p.insertEnrollment(ctx, r)

	default:
		return false, unsupported(rec)
	}
}

func (p *Postgres) insertEnrollment(ctx context.Context, e entities.Enrollment) (bool, error) {
	var inserted bool
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		var studentID, courseID int64
		err := tx.QueryRow(ctx, `SELECT student_id FROM student WHERE email = $1`, e.StudentEmail).Scan(&studentID)
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound("student", e.StudentEmail)
		}
		if err != nil {
			return errors.Wrap(err, "find student")
		}
		err = tx.QueryRow(ctx, `SELECT course_id FROM course WHERE code = $1`, e.CourseCode).Scan(&courseID)
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound("course", e.CourseCode)
		}
		if err != nil {
			return errors.Wrap(err, "find course")
		}

		var on pgtype.Date
		if d := enrolledOn(e); d != nil {
			on = pgtype.Date{Time: *d, Valid: true}
		}
		tag, err := tx.Exec(ctx,
			`INSERT INTO enrollment (student_id, course_id, enrolled_on)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (student_id, course_id) DO NOTHING`,
			studentID, courseID, on)
		if err != nil {
			return errors.Wrap(err, "insert enrollment")
		}
		inserted = tag.RowsAffected() == 1
		return nil
	})
	return inserted, err
}

func (p *Postgres) DepartmentIDs(ctx context.Context) ([]int64, error) {
	rows, err := p.pool.Query(ctx, `SELECT department_id FROM department ORDER BY department_id`)
	if err != nil {
		return nil, errors.Wrap(err, "list departments")
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, errors.Wrap(err, "scan departments")
	}
	return ids, nil
}

func (p *Postgres) SeedDepartments(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, id := range ids {
		batch.Queue(`INSERT INTO department (department_id, name) VALUES ($1, $2)
			ON CONFLICT (department_id) DO NOTHING`, id, departmentName(id))
	}

	results := p.pool.SendBatch(ctx, batch)
	defer results.Close()

	added := 0
	for range ids {
		tag, err := results.Exec()
		if err != nil {
			return added, errors.Wrap(err, "seed department")
		}
		added += int(tag.RowsAffected())
	}
	return added, nil
}

func (p *Postgres) SaveRun(ctx context.Context, r core.RunReport) error {
	data, err := json.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "encode report")
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO etl_runs (run_id, entity_type, started_at, finished_at,
			records_seen, records_loaded, records_skipped, records_rejected, interrupted, report)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (run_id) DO NOTHING`,
		r.RunID, r.EntityType, r.StartedAt, r.FinishedAt,
		r.RecordsSeen, r.RecordsLoaded, r.RecordsSkipped, r.RecordsRejected, r.Interrupted, data)
	if err != nil {
		return errors.Wrap(err, "save run")
	}
	return nil
}

func (p *Postgres) GetRun(ctx context.Context, id uuid.UUID) (core.RunReport, error) {
	var data []byte
	err := p.pool.QueryRow(ctx, `SELECT report FROM etl_runs WHERE run_id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.RunReport{}, ErrRunNotFound
	}
	if err != nil {
		return core.RunReport{}, errors.Wrap(err, "get run")
	}

	var r core.RunReport
	if err := json.Unmarshal(data, &r); err != nil {
		return core.RunReport{}, errors.Wrap(err, "decode report")
	}
	return r, nil
}

func (p *Postgres) ListRuns(ctx context.Context, limit int) ([]core.RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.pool.Query(ctx,
		`SELECT run_id, entity_type, started_at, finished_at,
			records_seen, records_loaded, records_skipped, records_rejected, interrupted
		 FROM etl_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list runs")
	}
	runs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.RunSummary, error) {
		var s core.RunSummary
		err := row.Scan(&s.RunID, &s.EntityType, &s.StartedAt, &s.FinishedAt,
			&s.RecordsSeen, &s.RecordsLoaded, &s.RecordsSkipped, &s.RecordsRejected, &s.Interrupted)
		s.StartedAt, s.FinishedAt = s.StartedAt.UTC(), s.FinishedAt.UTC()
		return s, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan runs")
	}
	return runs, nil
}

func (p *Postgres) PurgeRuns(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM etl_runs WHERE started_at < $1`, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "purge runs")
	}
	return tag.RowsAffected(), nil
}
