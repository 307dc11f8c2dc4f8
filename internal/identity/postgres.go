package identity

import (
	"context"
	"database/sql"
	"errors"
)

// Repository persists master records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func tableFor(variant Variant) string {
	if variant == Staff {
		return "staff"
	}
	return "students"
}

// Lookup searches the students table first, then staff.
func (r *Repository) Lookup(ctx context.Context, regNo string) (Identity, Variant, error) {
	for _, variant := range []Variant{Student, Staff} {
		row := r.db.QueryRowContext(ctx, `
			SELECT reg_no, name, department FROM `+tableFor(variant)+` WHERE reg_no = $1
		`, regNo)
		var id Identity
		err := row.Scan(&id.RegNo, &id.Name, &id.Department)
		if err == nil {
			return id, variant, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return Identity{}, "", err
		}
	}
	return Identity{}, "", ErrNotFound
}

// Upsert inserts or overwrites the record in the given variant's table.
// The other table is not checked for a conflicting key.
func (r *Repository) Upsert(ctx context.Context, id Identity, variant Variant) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO `+tableFor(variant)+` (reg_no, name, department)
		VALUES ($1, $2, $3)
		ON CONFLICT (reg_no) DO UPDATE SET
			name = EXCLUDED.name,
			department = EXCLUDED.department
	`, id.RegNo, id.Name, id.Department)
	return err
}

// DeleteMany removes each regNo from both tables.
func (r *Repository) DeleteMany(ctx context.Context, regNos []string) (int, error) {
	for _, regNo := range regNos {
		if _, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE reg_no = $1`, regNo); err != nil {
			return 0, err
		}
		if _, err := r.db.ExecContext(ctx, `DELETE FROM staff WHERE reg_no = $1`, regNo); err != nil {
			return 0, err
		}
	}
	return len(regNos), nil
}

// List returns all records of one variant ordered by regNo.
func (r *Repository) List(ctx context.Context, variant Variant) ([]Identity, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT reg_no, name, department FROM `+tableFor(variant)+` ORDER BY reg_no
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Identity
	for rows.Next() {
		var id Identity
		if err := rows.Scan(&id.RegNo, &id.Name, &id.Department); err != nil {
			return nil, err
		}
		res = append(res, id)
	}
	return res, rows.Err()
}
