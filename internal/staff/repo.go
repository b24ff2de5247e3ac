package staff

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"qrattend/internal/auth"
	"qrattend/internal/model"
)

// Repository persists staff accounts in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const staffColumns = `id, username, email, password_hash, is_admin, created_at`

func scanStaff(row interface{ Scan(...any) error }) (model.StaffAccount, error) {
	var a model.StaffAccount
	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.IsAdmin, &a.CreatedAt)
	return a, err
}

// Create inserts a staff account and fills in its id.
func (r *Repository) Create(ctx context.Context, a *model.StaffAccount) error {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO staff_accounts (username, email, password_hash, is_admin)
		VALUES ($1,$2,$3,$4)
		RETURNING id, created_at
	`, a.Username, a.Email, a.PasswordHash, a.IsAdmin)
	return row.Scan(&a.ID, &a.CreatedAt)
}

// GetByUsername returns an account by login name, or nil when unknown.
func (r *Repository) GetByUsername(ctx context.Context, username string) (*model.StaffAccount, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+staffColumns+` FROM staff_accounts WHERE username = $1`, username)
	a, err := scanStaff(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// Get returns an account by id, or nil when unknown.
func (r *Repository) Get(ctx context.Context, id int64) (*model.StaffAccount, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+staffColumns+` FROM staff_accounts WHERE id = $1`, id)
	a, err := scanStaff(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// EnsureAdmin provisions the default admin account once at startup. The
// existence check makes it idempotent across restarts.
func (r *Repository) EnsureAdmin(ctx context.Context, username, email, password string) error {
	existing, err := r.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	admin := model.StaffAccount{Username: username, Email: email, PasswordHash: hash, IsAdmin: true}
	if err := r.Create(ctx, &admin); err != nil {
		return err
	}
	log.Printf("provisioned default admin account %q", username)
	return nil
}
