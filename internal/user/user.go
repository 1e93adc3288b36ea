// Package user provides the account registry backing the identity
// provider: registration, credential verification, lookup by email.
package user

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/onnwee/sinistra/internal/authz"
)

// Common errors for user operations.
var (
	ErrNotFound    = errors.New("user not found")
	ErrEmailTaken  = errors.New("email already registered")
	ErrBadPassword = errors.New("invalid credentials")
)

// User is an account holder: victim, expert, or admin.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    *string    `json:"first_name,omitempty"`
	LastName     *string    `json:"last_name,omitempty"`
	Phone        *string    `json:"phone,omitempty"`
	Role         authz.Role `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
}

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password against the stored hash.
// Returns ErrBadPassword on mismatch.
func (u *User) CheckPassword(password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return ErrBadPassword
	}
	return nil
}

// Repository defines user persistence.
type Repository interface {
	// Insert stores a new user. Returns ErrEmailTaken when the email is
	// already registered.
	Insert(ctx context.Context, u *User) error

	// GetByID retrieves a user by ID. Returns ErrNotFound when absent.
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByEmail retrieves a user by email. Returns ErrNotFound when absent.
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Used for testing and development. Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu      sync.RWMutex
	users   map[string]*User // ID -> User
	byEmail map[string]string
}

// NewInMemoryRepository creates a new in-memory user repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		users:   make(map[string]*User),
		byEmail: make(map[string]string),
	}
}

// Insert stores a new user.
func (r *InMemoryRepository) Insert(ctx context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := normalizeEmail(u.Email)
	if _, exists := r.byEmail[email]; exists {
		return ErrEmailTaken
	}

	uCopy := *u
	r.users[u.ID] = &uCopy
	r.byEmail[email] = u.ID
	return nil
}

// GetByID retrieves a user by ID.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	uCopy := *u
	return &uCopy, nil
}

// GetByEmail retrieves a user by email.
func (r *InMemoryRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	uCopy := *r.users[id]
	return &uCopy, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
