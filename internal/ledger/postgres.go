package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository persists ledger entries in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const entryColumns = `id, reg_no, name, department, user_type, check_in_time, check_out_time`

func scanEntry(row interface{ Scan(...any) error }) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.RegNo, &e.Name, &e.Department, &e.UserType, &e.CheckInTime, &e.CheckOutTime)
	return e, err
}

// FindOpen returns the open entry for regNo, or nil. Served by the partial
// index on (reg_no) WHERE check_out_time IS NULL.
func (r *Repository) FindOpen(ctx context.Context, regNo string) (*Entry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM log_entries
		WHERE reg_no = $1 AND check_out_time IS NULL
		LIMIT 1
	`, regNo)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// Create writes a new entry with a null check-out time.
func (r *Repository) Create(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CheckOutTime = nil
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO log_entries (id, reg_no, name, department, user_type, check_in_time)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, e.RegNo, e.Name, e.Department, e.UserType, e.CheckInTime)
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Close sets the check-out time exactly once.
func (r *Repository) Close(ctx context.Context, id string, at time.Time) (Entry, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE log_entries SET check_out_time = $2
		WHERE id = $1 AND check_out_time IS NULL
		RETURNING `+entryColumns+`
	`, id, at)
	e, err := scanEntry(row)
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Entry{}, err
	}
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM log_entries WHERE id = $1)`, id).Scan(&exists); err != nil {
		return Entry{}, err
	}
	if exists {
		return Entry{}, ErrAlreadyClosed
	}
	return Entry{}, ErrNotFound
}

// CloseAllOpen stamps every open entry; returns how many were closed.
func (r *Repository) CloseAllOpen(ctx context.Context, at time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE log_entries SET check_out_time = $1 WHERE check_out_time IS NULL
	`, at)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// FindByRegNo returns all entries for a regNo, newest check-in first.
func (r *Repository) FindByRegNo(ctx context.Context, regNo string) ([]Entry, error) {
	return r.query(ctx, `
		SELECT `+entryColumns+` FROM log_entries
		WHERE reg_no = $1 ORDER BY check_in_time DESC
	`, regNo)
}

// FindUnresolved returns every entry still missing identity fields.
func (r *Repository) FindUnresolved(ctx context.Context) ([]Entry, error) {
	return r.query(ctx, `
		SELECT `+entryColumns+` FROM log_entries WHERE name IS NULL
	`)
}

// ResolveUnknown retroactively fills identity fields. Scoped to one regNo and
// to rows whose name is still null, so re-running it is a no-op.
func (r *Repository) ResolveUnknown(ctx context.Context, regNo, name, department string, userType UserType) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE log_entries SET name = $2, department = $3, user_type = $4
		WHERE reg_no = $1 AND name IS NULL
	`, regNo, name, department, userType)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// List returns all entries, newest check-in first.
func (r *Repository) List(ctx context.Context) ([]Entry, error) {
	return r.query(ctx, `
		SELECT `+entryColumns+` FROM log_entries ORDER BY check_in_time DESC
	`)
}

// ListOpen returns the currently open entries.
func (r *Repository) ListOpen(ctx context.Context) ([]Entry, error) {
	return r.query(ctx, `
		SELECT `+entryColumns+` FROM log_entries
		WHERE check_out_time IS NULL ORDER BY check_in_time DESC
	`)
}

func (r *Repository) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
