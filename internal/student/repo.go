package student

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"qrattend/internal/model"
	"qrattend/internal/token"
)

// ErrNotFound is returned by mutations targeting a student that does not
// exist. Lookups signal the same with a nil student instead.
var ErrNotFound = errors.New("student: not found")

// Repository persists students in Postgres. Token regeneration lives here
// because the payload embeds the database id: every create and update ends
// with a fresh qr_data value for the row.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const studentColumns = `id, student_id, first_name, last_name, email, phone, date_of_birth, qr_data, created_at`

func scanStudent(row interface{ Scan(...any) error }) (model.Student, error) {
	var (
		s     model.Student
		phone sql.NullString
		dob   sql.NullTime
	)
	err := row.Scan(&s.ID, &s.StudentID, &s.FirstName, &s.LastName, &s.Email, &phone, &dob, &s.QRData, &s.CreatedAt)
	if err != nil {
		return s, err
	}
	s.Phone = phone.String
	if dob.Valid {
		t := dob.Time
		s.DateOfBirth = &t
	}
	return s, nil
}

// Create inserts a student and issues their identity token. The token embeds
// the generated id, so the insert and the qr_data write happen in one
// transaction.
func (r *Repository) Create(ctx context.Context, s *model.Student) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		INSERT INTO students (student_id, first_name, last_name, email, phone, date_of_birth)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at
	`, s.StudentID, s.FirstName, s.LastName, s.Email, s.Phone, s.DateOfBirth)
	if err := row.Scan(&s.ID, &s.CreatedAt); err != nil {
		return err
	}

	qr, err := token.Encode(*s)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE students SET qr_data = $2 WHERE id = $1`, s.ID, qr); err != nil {
		return err
	}
	s.QRData = qr
	return tx.Commit()
}

// Update rewrites a student's identity fields and regenerates their token.
func (r *Repository) Update(ctx context.Context, s *model.Student) error {
	qr, err := token.Encode(*s)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE students
		SET student_id = $2, first_name = $3, last_name = $4, email = $5, phone = $6, date_of_birth = $7, qr_data = $8
		WHERE id = $1
	`, s.ID, s.StudentID, s.FirstName, s.LastName, s.Email, s.Phone, s.DateOfBirth, qr)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	s.QRData = qr
	return nil
}

// Get returns a single student, or nil when it does not exist.
func (r *Repository) Get(ctx context.Context, id int64) (*model.Student, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id)
	s, err := scanStudent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// List returns all students ordered by name.
func (r *Repository) List(ctx context.Context) ([]model.Student, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+studentColumns+` FROM students ORDER BY last_name, first_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []model.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// Count returns the number of registered students. The attendance rate for
// an activity is computed against this total.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM students`).Scan(&n)
	return n, err
}

// RefreshToken regenerates and persists a student's token, returning the
// updated student. Nil when the student does not exist.
func (r *Repository) RefreshToken(ctx context.Context, id int64) (*model.Student, error) {
	s, err := r.Get(ctx, id)
	if err != nil || s == nil {
		return s, err
	}
	qr, err := token.Encode(*s)
	if err != nil {
		return nil, fmt.Errorf("encode token: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `UPDATE students SET qr_data = $2 WHERE id = $1`, id, qr); err != nil {
		return nil, err
	}
	s.QRData = qr
	return s, nil
}

// Delete removes the student and their attendance records in one transaction.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM attendance_records WHERE student_id = $1`, id); err != nil {
		return fmt.Errorf("delete attendance records: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}
