package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	DateLayout = "2006-01-02"
)

func init() {
	// modernc registers as "sqlite", which sqlx does not know about.
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

type Task struct {
	ID       int64
	Text     string
	Done     bool
	Category *string
	DueDate  *time.Time
}

// CategoryOr returns the category, or fallback when the task has none.
func (t Task) CategoryOr(fallback string) string {
	if t.Category == nil {
		return fallback
	}
	return *t.Category
}

// DueString formats the due date as YYYY-MM-DD, or "" when absent.
func (t Task) DueString() string {
	if t.DueDate == nil {
		return ""
	}
	return t.DueDate.Format(DateLayout)
}

type NewTask struct {
	Text     string     `validate:"required,max=500"`
	Category *string    `validate:"omitempty,min=1,max=64"`
	DueDate  *time.Time `validate:"-"`
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Done          *bool
	Text          *string
	Category      *string
	DueDate       *time.Time
	ClearCategory bool
	ClearDueDate  bool
}

type Options struct {
	Driver string
	// DSN is the connection string. For sqlite it may be left empty and Path used instead.
	DSN          string
	Path         string
	PingTimeout  time.Duration
	MaxOpenConns int
}

type Store struct {
	db       *sqlx.DB
	driver   string
	validate *validator.Validate
}

func Open(ctx context.Context, opts Options) (*Store, error) {
	driver := strings.ToLower(strings.TrimSpace(opts.Driver))
	if driver == "" {
		driver = DriverSQLite
	}

	var dsn string
	switch driver {
	case DriverSQLite:
		dsn = opts.DSN
		if dsn == "" {
			if opts.Path == "" {
				return nil, errors.New("db path is empty")
			}
			if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil && !errors.Is(err, os.ErrExist) {
				return nil, err
			}
			dsn = sqliteDSN(opts.Path)
		}
	case DriverPostgres, "postgresql":
		driver = DriverPostgres
		if opts.DSN == "" {
			return nil, errors.New("postgres dsn is empty")
		}
		dsn = opts.DSN
	default:
		return nil, fmt.Errorf("unsupported driver %q", opts.Driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	} else {
		maxOpen := opts.MaxOpenConns
		if maxOpen <= 0 {
			maxOpen = 4
		}
		db.SetMaxOpenConns(maxOpen)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}

	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, driver: driver, validate: validator.New()}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Driver() string {
	return s.driver
}

func (s *Store) ensureSchema(ctx context.Context) error {
	const sqliteDDL = `
CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	text TEXT NOT NULL,
	done BOOLEAN NOT NULL DEFAULT 0,
	category TEXT DEFAULT NULL,
	due_date TEXT DEFAULT NULL
);`
	const postgresDDL = `
CREATE TABLE IF NOT EXISTS tasks (
	id BIGSERIAL PRIMARY KEY,
	text TEXT NOT NULL,
	done BOOLEAN NOT NULL DEFAULT FALSE,
	category TEXT,
	due_date DATE
);`
	ddl := sqliteDDL
	if s.driver == DriverPostgres {
		ddl = postgresDDL
	}
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

type taskRow struct {
	ID       int64          `db:"id"`
	Text     string         `db:"text"`
	Done     bool           `db:"done"`
	Category sql.NullString `db:"category"`
	DueDate  nullDate       `db:"due_date"`
}

func (r taskRow) task() Task {
	t := Task{ID: r.ID, Text: r.Text, Done: r.Done}
	if r.Category.Valid {
		c := r.Category.String
		t.Category = &c
	}
	if r.DueDate.Valid {
		d := r.DueDate.Time
		t.DueDate = &d
	}
	return t
}

const taskColumns = `id, text, done, category, due_date`

// List returns every task ordered by due date, undated tasks last.
func (s *Store) List(ctx context.Context) ([]Task, error) {
	var rows []taskRow
	q := `SELECT ` + taskColumns + ` FROM tasks ORDER BY due_date ASC NULLS LAST, id ASC`
	if err := s.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, &FetchError{Err: err}
	}
	tasks := make([]Task, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, r.task())
	}
	return tasks, nil
}

func (s *Store) Insert(ctx context.Context, nt NewTask) (Task, error) {
	check := nt
	check.Text = strings.TrimSpace(nt.Text)
	if err := s.validate.Struct(check); err != nil {
		return Task{}, &InsertError{Err: err}
	}

	q := s.db.Rebind(`INSERT INTO tasks (text, done, category, due_date) VALUES (?, ?, ?, ?) RETURNING ` + taskColumns)
	var row taskRow
	err := s.db.QueryRowxContext(ctx, q, nt.Text, false, nullString(nt.Category), dateArg(nt.DueDate)).StructScan(&row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrNoRow
		}
		return Task{}, &InsertError{Err: err}
	}
	return row.task(), nil
}

func (s *Store) Update(ctx context.Context, id int64, p Patch) error {
	sets, args := p.assignments()
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	q := s.db.Rebind(`UPDATE tasks SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return &UpdateError{ID: id, Err: err}
	}
	if err := requireRow(res); err != nil {
		return &UpdateError{ID: id, Err: err}
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM tasks WHERE id = ?`), id)
	if err != nil {
		return &DeleteError{ID: id, Err: err}
	}
	if err := requireRow(res); err != nil {
		return &DeleteError{ID: id, Err: err}
	}
	return nil
}

func (p Patch) assignments() ([]string, []any) {
	var sets []string
	var args []any
	if p.Done != nil {
		sets = append(sets, "done = ?")
		args = append(args, *p.Done)
	}
	if p.Text != nil {
		sets = append(sets, "text = ?")
		args = append(args, *p.Text)
	}
	switch {
	case p.ClearCategory:
		sets = append(sets, "category = NULL")
	case p.Category != nil:
		sets = append(sets, "category = ?")
		args = append(args, *p.Category)
	}
	switch {
	case p.ClearDueDate:
		sets = append(sets, "due_date = NULL")
	case p.DueDate != nil:
		sets = append(sets, "due_date = ?")
		args = append(args, dateArg(p.DueDate))
	}
	return sets, args
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func dateArg(d *time.Time) any {
	if d == nil {
		return nil
	}
	return d.Format(DateLayout)
}

func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}
	u := url.URL{
		Scheme: "file",
		Path:   path,
	}
	q := u.Query()
	q.Set("mode", "rwc")
	q.Set("_pragma", "busy_timeout(5000)")
	u.RawQuery = q.Encode()
	return u.String()
}
