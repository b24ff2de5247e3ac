package activity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"qrattend/internal/model"
)

// ErrNotFound is returned by mutations targeting an activity that does not
// exist. Lookups signal the same with a nil activity instead.
var ErrNotFound = errors.New("activity: not found")

// Repository persists activities in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const activityColumns = `id, name, description, location, start_time, end_time, is_active, created_by, created_at`

func scanActivity(row interface{ Scan(...any) error }) (model.Activity, error) {
	var a model.Activity
	err := row.Scan(&a.ID, &a.Name, &a.Description, &a.Location, &a.StartTime, &a.EndTime, &a.IsActive, &a.CreatedBy, &a.CreatedAt)
	return a, err
}

// Create inserts a new activity and fills in its id and creation time.
func (r *Repository) Create(ctx context.Context, a *model.Activity) error {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO activities (name, description, location, start_time, end_time, is_active, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id, created_at
	`, a.Name, a.Description, a.Location, a.StartTime, a.EndTime, a.IsActive, a.CreatedBy)
	return row.Scan(&a.ID, &a.CreatedAt)
}

// Update rewrites an activity's editable fields.
func (r *Repository) Update(ctx context.Context, a model.Activity) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE activities
		SET name = $2, description = $3, location = $4, start_time = $5, end_time = $6, is_active = $7
		WHERE id = $1
	`, a.ID, a.Name, a.Description, a.Location, a.StartTime, a.EndTime, a.IsActive)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}

// Get returns a single activity, or nil when it does not exist.
func (r *Repository) Get(ctx context.Context, id int64) (*model.Activity, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+activityColumns+` FROM activities WHERE id = $1`, id)
	a, err := scanActivity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// List returns all activities, most recent window first.
func (r *Repository) List(ctx context.Context) ([]model.Activity, error) {
	return r.query(ctx, `SELECT `+activityColumns+` FROM activities ORDER BY start_time DESC`)
}

// Recent returns the most recently scheduled activities.
func (r *Repository) Recent(ctx context.Context, limit int) ([]model.Activity, error) {
	if limit <= 0 {
		limit = 5
	}
	return r.query(ctx, `SELECT `+activityColumns+` FROM activities ORDER BY start_time DESC LIMIT $1`, limit)
}

// OngoingAt returns activities whose scan window contains now.
func (r *Repository) OngoingAt(ctx context.Context, now time.Time) ([]model.Activity, error) {
	return r.query(ctx, `
		SELECT `+activityColumns+` FROM activities
		WHERE start_time <= $1 AND end_time >= $1 AND is_active
		ORDER BY start_time
	`, now)
}

// Count returns the number of activities.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activities`).Scan(&n)
	return n, err
}

// Delete removes the activity and its attendance records in one transaction.
// Records go first so the foreign keys never dangle; if the activity delete
// fails the transaction rolls back as a whole.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM attendance_records WHERE activity_id = $1`, id); err != nil {
		return fmt.Errorf("delete attendance records: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM activities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete activity: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (r *Repository) query(ctx context.Context, q string, args ...any) ([]model.Activity, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []model.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}
