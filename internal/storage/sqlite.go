package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mindset/internal/task"
	logx "mindset/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

const taskColumns = `id, description, task_type, run_datetime, recurrence_rule,
	recurrence_minute, recurrence_hour, recurrence_day_of_month, recurrence_day_of_week, recurrence_month, status`

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Single connection: SQLite allows one writer, and the Guard already
	// serializes per row.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debug("sqlite store opened", logx.String("path", path))
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Create(ctx context.Context, t task.Task) (task.ID, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	t.Status = task.StatusStopped
	r, err := toRecord(t)
	if err != nil {
		return 0, wrap("create", 0, err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks(description, task_type, run_datetime, recurrence_rule,
			recurrence_minute, recurrence_hour, recurrence_day_of_month, recurrence_day_of_week, recurrence_month, status)
		 VALUES(?,?,?,?,?,?,?,?,?,?)`,
		nullStr(r.Description), r.TaskType, nullStr(r.RunAt), nullStr(r.Rule),
		nullStr(r.Minute), nullStr(r.Hour), nullStr(r.DayOfMonth), nullStr(r.DayOfWeek), nullStr(r.Month), r.Status,
	)
	if err != nil {
		return 0, wrap("create", 0, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, wrap("create", 0, err)
	}
	return task.ID(id), nil
}

func (s *sqliteStore) Get(ctx context.Context, id task.ID) (task.Task, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, int64(id))
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return task.Task{}, false, nil
	}
	if err != nil {
		return task.Task{}, false, wrap("get", id, err)
	}
	t, err := r.toTask()
	if err != nil {
		return task.Task{}, false, wrap("get", id, err)
	}
	return t, true, nil
}

func (s *sqliteStore) List(ctx context.Context) ([]task.Task, error) {
	return s.query(ctx, "list", `SELECT `+taskColumns+` FROM tasks ORDER BY id`)
}

func (s *sqliteStore) ListByStatus(ctx context.Context, status task.Status) ([]task.Task, error) {
	return s.query(ctx, "list", `SELECT `+taskColumns+` FROM tasks WHERE status = ? ORDER BY id`, string(status))
}

func (s *sqliteStore) query(ctx context.Context, op, q string, args ...any) ([]task.Task, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, wrap(op, 0, err)
	}
	defer rows.Close()

	var out []task.Task
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, wrap(op, 0, err)
		}
		t, err := r.toTask()
		if err != nil {
			s.log.Warn("skipping unreadable task row", logx.Int64("id", r.ID), logx.Err(err))
			continue
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op, 0, err)
	}
	return out, nil
}

func (s *sqliteStore) SetStatus(ctx context.Context, id task.ID, status task.Status) error {
	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET status = ? WHERE id = ?`, string(status), int64(id))
	if err != nil {
		return wrap("set_status", id, err)
	}
	return wrap("set_status", id, mustAffect(res))
}

func (s *sqliteStore) Delete(ctx context.Context, id task.ID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, int64(id))
	if err != nil {
		return wrap("delete", id, err)
	}
	return wrap("delete", id, mustAffect(res))
}

func mustAffect(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc rowScanner) (record, error) {
	var (
		r                             record
		desc, runAt, rule             sql.NullString
		minute, hour, dom, dow, month sql.NullString
	)
	if err := sc.Scan(&r.ID, &desc, &r.TaskType, &runAt, &rule, &minute, &hour, &dom, &dow, &month, &r.Status); err != nil {
		return record{}, err
	}
	r.Description = desc.String
	r.RunAt = runAt.String
	r.Rule = rule.String
	r.Minute = minute.String
	r.Hour = hour.String
	r.DayOfMonth = dom.String
	r.DayOfWeek = dow.String
	r.Month = month.String
	return r, nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
