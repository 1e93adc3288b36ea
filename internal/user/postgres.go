package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/onnwee/sinistra/internal/authz"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert stores a new user.
func (r *PostgresRepository) Insert(ctx context.Context, u *User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name, phone, role, created_at)
		VALUES ($1, lower($2), $3, $4, $5, $6, $7, $8)
	`, u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Phone, string(u.Role), u.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		// 23505: unique_violation on the email index.
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.getBy(ctx, `WHERE id = $1`, id)
}

// GetByEmail retrieves a user by email.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getBy(ctx, `WHERE email = lower($1)`, email)
}

func (r *PostgresRepository) getBy(ctx context.Context, where string, arg any) (*User, error) {
	var u User
	var role string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, first_name, last_name, phone, role, created_at
		FROM users `+where, arg).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Phone, &role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	u.Role = authz.Role(role)
	return &u, nil
}
