package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/JonMunkholm/sheet2neon/internal/config"
	"github.com/JonMunkholm/sheet2neon/internal/core"
	"github.com/JonMunkholm/sheet2neon/internal/core/entities"
)

// Timestamps are stored as fixed-width UTC text so they sort lexically.
const sqliteTime = "2006-01-02T15:04:05.000000000Z"

const sqliteDate = "2006-01-02"

// SQLite is a single-file store for local runs and tests.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite db")
	}
	// Pragmas are per connection; one connection keeps them in force and
	// serializes writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, errors.Wrapf(err, "apply pragma %q", pragma)
		}
	}

	s := &SQLite{db: db}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) EnsureSchema(ctx context.Context) error {
	ddl, err := schemaSQL(config.BackendSQLite)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return errors.Wrap(err, "apply schema")
	}
	return nil
}

// InsertIgnore implements core.Inserter.
func (s *SQLite) InsertIgnore(ctx context.Context, rec core.Record) (bool, error) {
	var (
		res sql.Result
		err error
	)
	switch r := rec.(type) {
	case entities.Student:
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO student (name, email, year, department_id)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT (email) DO NOTHING`,
			r.Name, r.Email, r.Year, r.DepartmentID)
		if err != nil {
			return false, errors.Wrap(err, "insert student")
		}

	case entities.Course:
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO course (code, name, credits, department_id)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT (code) DO NOTHING`,
			r.Code, r.Name, r.Credits, r.DepartmentID)
		if err != nil {
			return false, errors.Wrap(err, "insert course")
		}

	case entities.Enrollment:
		return s.insertEnrollment(ctx, r)

	default:
		return false, unsupported(rec)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "rows affected")
	}
	return n == 1, nil
}

func (s *SQLite) insertEnrollment(ctx context.Context, e entities.Enrollment) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, errors.Wrap(err, "begin enrollment tx")
	}
	defer func() { _ = tx.Rollback() }()

	var studentID, courseID int64
	err = tx.QueryRowContext(ctx, `SELECT student_id FROM student WHERE email = ?`, e.StudentEmail).Scan(&studentID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, notFound("student", e.StudentEmail)
	}
	if err != nil {
		return false, errors.Wrap(err, "find student")
	}
	err = tx.QueryRowContext(ctx, `SELECT course_id FROM course WHERE code = ?`, e.CourseCode).Scan(&courseID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, notFound("course", e.CourseCode)
	}
	if err != nil {
		return false, errors.Wrap(err, "find course")
	}

	var on sql.NullString
	if d := enrolledOn(e); d != nil {
		on = sql.NullString{String: d.Format(sqliteDate), Valid: true}
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO enrollment (student_id, course_id, enrolled_on)
		 VALUES (?, ?, ?)
		 ON CONFLICT (student_id, course_id) DO NOTHING`,
		studentID, courseID, on)
	if err != nil {
		return false, errors.Wrap(err, "insert enrollment")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "rows affected")
	}
	if err := tx.Commit(); err != nil {
		return false, errors.Wrap(err, "commit enrollment")
	}
	return n == 1, nil
}

func (s *SQLite) DepartmentIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT department_id FROM department ORDER BY department_id`)
	if err != nil {
		return nil, errors.Wrap(err, "list departments")
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan department")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate departments")
	}
	return ids, nil
}

func (s *SQLite) SeedDepartments(ctx context.Context, ids []int64) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin seed tx")
	}
	defer func() { _ = tx.Rollback() }()

	added := 0
	for _, id := range ids {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO department (department_id, name) VALUES (?, ?)
			 ON CONFLICT (department_id) DO NOTHING`, id, departmentName(id))
		if err != nil {
			return 0, errors.Wrap(err, "seed department")
		}
		n, _ := res.RowsAffected()
		added += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit seed")
	}
	return added, nil
}

func (s *SQLite) SaveRun(ctx context.Context, r core.RunReport) error {
	data, err := json.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "encode report")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO etl_runs (run_id, entity_type, started_at, finished_at,
			records_seen, records_loaded, records_skipped, records_rejected, interrupted, report)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (run_id) DO NOTHING`,
		r.RunID.String(), r.EntityType,
		r.StartedAt.UTC().Format(sqliteTime), r.FinishedAt.UTC().Format(sqliteTime),
		r.RecordsSeen, r.RecordsLoaded, r.RecordsSkipped, r.RecordsRejected, r.Interrupted, string(data))
	if err != nil {
		return errors.Wrap(err, "save run")
	}
	return nil
}

func (s *SQLite) GetRun(ctx context.Context, id uuid.UUID) (core.RunReport, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT report FROM etl_runs WHERE run_id = ?`, id.String()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RunReport{}, ErrRunNotFound
	}
	if err != nil {
		return core.RunReport{}, errors.Wrap(err, "get run")
	}

	var r core.RunReport
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return core.RunReport{}, errors.Wrap(err, "decode report")
	}
	return r, nil
}

func (s *SQLite) ListRuns(ctx context.Context, limit int) ([]core.RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, entity_type, started_at, finished_at,
			records_seen, records_loaded, records_skipped, records_rejected, interrupted
		 FROM etl_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list runs")
	}
	defer rows.Close()

	var runs []core.RunSummary
	for rows.Next() {
		var (
			sum              core.RunSummary
			id, start, finis string
		)
		if err := rows.Scan(&id, &sum.EntityType, &start, &finis,
			&sum.RecordsSeen, &sum.RecordsLoaded, &sum.RecordsSkipped, &sum.RecordsRejected, &sum.Interrupted); err != nil {
			return nil, errors.Wrap(err, "scan run")
		}
		if sum.RunID, err = uuid.Parse(id); err != nil {
			return nil, errors.Wrapf(err, "parse run id %q", id)
		}
		if sum.StartedAt, err = time.Parse(sqliteTime, start); err != nil {
			return nil, errors.Wrap(err, "parse started_at")
		}
		if sum.FinishedAt, err = time.Parse(sqliteTime, finis); err != nil {
			return nil, errors.Wrap(err, "parse finished_at")
		}
		runs = append(runs, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate runs")
	}
	return runs, nil
}

func (s *SQLite) PurgeRuns(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM etl_runs WHERE started_at < ?`, cutoff.UTC().Format(sqliteTime))
	if err != nil {
		return 0, errors.Wrap(err, "purge runs")
	}
	return res.RowsAffected()
}
