package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/medstock/medstock-backend/pkg/database"
	"github.com/medstock/medstock-backend/pkg/errors"
)

// User represents a staff account. PasswordHash never leaves the server.
type User struct {
	ID            string     `db:"id" json:"id"`
	Username      string     `db:"username" json:"username"`
	PasswordHash  string     `db:"password_hash" json:"-"`
	FullName      string     `db:"full_name" json:"full_name"`
	Email         *string    `db:"email" json:"email,omitempty"`
	Role          string     `db:"role" json:"role"`
	LicenseNumber *string    `db:"license_number" json:"license_number,omitempty"`
	IsActive      bool       `db:"is_active" json:"is_active"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	LastLoginAt   *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedBy     *string    `db:"created_by" json:"created_by,omitempty"`
}

// UserRepository handles user data access
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user
func (r *UserRepository) Create(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	query := `
		INSERT INTO users (id, username, password_hash, full_name, email, role, license_number, is_active, created_by)
		VALUES (:id, :username, :password_hash, :full_name, :email, :role, :license_number, :is_active, :created_by)
		RETURNING created_at`

	rows, err := r.db.NamedQueryContext(ctx, query, user)
	if err != nil {
		return database.MapPQError(err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&user.CreatedAt); err != nil {
			return errors.Internal("failed to scan created user")
		}
	}

	return nil
}

// GetByID gets a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	var user User
	query := `SELECT * FROM users WHERE id = $1`

	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("user")
		}
		return nil, database.MapPQError(err)
	}

	return &user, nil
}

// GetByUsername gets a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	query := `SELECT * FROM users WHERE username = $1`

	if err := r.db.GetContext(ctx, &user, query, username); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("user")
		}
		return nil, database.MapPQError(err)
	}

	return &user, nil
}

// List lists users ordered by creation time
func (r *UserRepository) List(ctx context.Context) ([]*User, error) {
	var users []*User
	query := `SELECT * FROM users ORDER BY created_at DESC`

	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, database.MapPQError(err)
	}

	return users, nil
}

// ListByRole lists active users holding the given role
func (r *UserRepository) ListByRole(ctx context.Context, role string) ([]*User, error) {
	var users []*User
	query := `SELECT * FROM users WHERE role = $1 AND is_active = true ORDER BY full_name`

	if err := r.db.SelectContext(ctx, &users, query, role); err != nil {
		return nil, database.MapPQError(err)
	}

	return users, nil
}

// CountByRole counts active users holding the given role
func (r *UserRepository) CountByRole(ctx context.Context, role string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM users WHERE role = $1 AND is_active = true`

	if err := r.db.GetContext(ctx, &count, query, role); err != nil {
		return 0, database.MapPQError(err)
	}

	return count, nil
}

// Update updates a user's profile fields. Username, password and role
// changes go through dedicated methods.
func (r *UserRepository) Update(ctx context.Context, user *User) error {
	query := `
		UPDATE users
		SET full_name = :full_name,
		    email = :email,
		    license_number = :license_number,
		    is_active = :is_active
		WHERE id = :id`

	result, err := r.db.NamedExecContext(ctx, query, user)
	if err != nil {
		return database.MapPQError(err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return errors.NotFound("user")
	}

	return nil
}

// UpdateRole changes a user's role
func (r *UserRepository) UpdateRole(ctx context.Context, id, role string) error {
	query := `UPDATE users SET role = $1 WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, role, id)
	if err != nil {
		return database.MapPQError(err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return errors.NotFound("user")
	}

	return nil
}

// UpdatePassword replaces a user's password hash
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE users SET password_hash = $1 WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, passwordHash, id)
	if err != nil {
		return database.MapPQError(err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return errors.NotFound("user")
	}

	return nil
}

// UpdateLastLogin records a successful login
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string) error {
	query := `UPDATE users SET last_login_at = NOW() WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return database.MapPQError(err)
	}

	return nil
}

// Deactivate disables a user account
func (r *UserRepository) Deactivate(ctx context.Context, id string) error {
	query := `UPDATE users SET is_active = false WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return database.MapPQError(err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return errors.NotFound("user")
	}

	return nil
}
