package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"qrattend/internal/model"
)

// ErrDuplicatePair is returned by Insert when the (student, activity) unique
// index rejects the row. Callers map it to the AlreadyRecorded outcome; it is
// how the check-then-insert race resolves to a single winner.
var ErrDuplicatePair = errors.New("attendance: record already exists for pair")

const pgUniqueViolation = "23505"

// Repository persists attendance records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const recordColumns = `id, student_id, activity_id, scanned_by, timestamp`

func scanRecord(row interface{ Scan(...any) error }) (model.AttendanceRecord, error) {
	var rec model.AttendanceRecord
	err := row.Scan(&rec.ID, &rec.StudentID, &rec.ActivityID, &rec.ScannedBy, &rec.Timestamp)
	return rec, err
}

// Find returns the record for the exact (student, activity) pair, or nil.
func (r *Repository) Find(ctx context.Context, studentID, activityID int64) (*model.AttendanceRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM attendance_records
		WHERE student_id = $1 AND activity_id = $2
	`, studentID, activityID)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// Insert writes a new record stamped with the database clock. A unique-index
// violation comes back as ErrDuplicatePair.
func (r *Repository) Insert(ctx context.Context, studentID, activityID, scannedBy int64) (model.AttendanceRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (student_id, activity_id, scanned_by)
		VALUES ($1,$2,$3)
		RETURNING `+recordColumns+`
	`, studentID, activityID, scannedBy)
	rec, err := scanRecord(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return model.AttendanceRecord{}, ErrDuplicatePair
		}
		return model.AttendanceRecord{}, err
	}
	return rec, nil
}

// Get returns a single record by id, or nil when it does not exist.
func (r *Repository) Get(ctx context.Context, id int64) (*model.AttendanceRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM attendance_records WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// ListByActivity returns an activity's records in scan order (ascending).
func (r *Repository) ListByActivity(ctx context.Context, activityID int64) ([]model.AttendanceRecord, error) {
	return r.query(ctx, `
		SELECT `+recordColumns+` FROM attendance_records
		WHERE activity_id = $1
		ORDER BY timestamp ASC
	`, activityID)
}

// ListByStudent returns a student's history, newest first.
func (r *Repository) ListByStudent(ctx context.Context, studentID int64) ([]model.AttendanceRecord, error) {
	return r.query(ctx, `
		SELECT `+recordColumns+` FROM attendance_records
		WHERE student_id = $1
		ORDER BY timestamp DESC
	`, studentID)
}

// Filter describes the optional report filters; zero values are skipped and
// the provided ones are ANDed together.
type Filter struct {
	ActivityID        int64
	StudentExternalID string
	DateFrom          *time.Time
	DateTo            *time.Time
}

// buildReportQuery assembles the filtered-report SQL. DateTo is inclusive of
// the whole calendar day, so it becomes a strict bound at dateTo + 24h.
func buildReportQuery(f Filter) (string, []any) {
	query := `SELECT a.id, a.student_id, a.activity_id, a.scanned_by, a.timestamp
		FROM attendance_records a`
	args := []any{}
	clauses := []string{}

	if f.StudentExternalID != "" {
		query += ` JOIN students s ON s.id = a.student_id`
		clauses = append(clauses, "s.student_id = $"+itoa(len(args)+1))
		args = append(args, f.StudentExternalID)
	}
	if f.ActivityID != 0 {
		clauses = append(clauses, "a.activity_id = $"+itoa(len(args)+1))
		args = append(args, f.ActivityID)
	}
	if f.DateFrom != nil {
		clauses = append(clauses, "a.timestamp >= $"+itoa(len(args)+1))
		args = append(args, *f.DateFrom)
	}
	if f.DateTo != nil {
		clauses = append(clauses, "a.timestamp < $"+itoa(len(args)+1))
		args = append(args, f.DateTo.Add(24*time.Hour))
	}
	if len(clauses) > 0 {
		query += " WHERE " + joinClauses(clauses, " AND ")
	}
	query += " ORDER BY a.timestamp DESC"
	return query, args
}

// Filtered returns the report rows matching the filter, newest first.
func (r *Repository) Filtered(ctx context.Context, f Filter) ([]model.AttendanceRecord, error) {
	query, args := buildReportQuery(f)
	return r.query(ctx, query, args...)
}

// DayCount is one bucket of the daily attendance series.
type DayCount struct {
	Date  time.Time `json:"date"`
	Count int64     `json:"count"`
}

// DailySeries groups records by calendar date since the given time, ascending.
// Days without records do not appear; callers fill gaps if they need a dense
// series.
func (r *Repository) DailySeries(ctx context.Context, since time.Time) ([]DayCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DATE(timestamp) AS day, COUNT(*) AS n
		FROM attendance_records
		WHERE timestamp >= $1
		GROUP BY day
		ORDER BY day ASC
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []DayCount
	for rows.Next() {
		var dc DayCount
		if err := rows.Scan(&dc.Date, &dc.Count); err != nil {
			return nil, err
		}
		res = append(res, dc)
	}
	return res, rows.Err()
}

// Count returns the total number of records.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendance_records`).Scan(&n)
	return n, err
}

// CountByActivity returns the number of records for one activity.
func (r *Repository) CountByActivity(ctx context.Context, activityID int64) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendance_records WHERE activity_id = $1`, activityID).Scan(&n)
	return n, err
}

func (r *Repository) query(ctx context.Context, q string, args ...any) ([]model.AttendanceRecord, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []model.AttendanceRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

func itoa(i int) string { return fmt.Sprintf("%d", i) }

func joinClauses(parts []string, sep string) string {
	if len(parts) == 0 {
		return ""
	}
	out := parts[0]
	for i := 1; i < len(parts); i++ {
		out += sep + parts[i]
	}
	return out
}
