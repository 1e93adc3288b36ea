package user

import (
	"context"
	"errors"
	"testing"

	"github.com/onnwee/sinistra/internal/authz"
)

func TestPasswordRoundtrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "correct horse battery staple" {
		t.Fatal("password stored in clear")
	}

	u := &User{PasswordHash: hash}
	if err := u.CheckPassword("correct horse battery staple"); err != nil {
		t.Errorf("CheckPassword with right password: %v", err)
	}
	if err := u.CheckPassword("wrong"); !errors.Is(err, ErrBadPassword) {
		t.Errorf("CheckPassword with wrong password = %v, want ErrBadPassword", err)
	}
}

func TestInsert_EmailTaken(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	first := &User{ID: "u1", Email: "Alice@Example.com", Role: authz.RoleVictime}
	if err := repo.Insert(ctx, first); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// Uniqueness is case-insensitive.
	dup := &User{ID: "u2", Email: "alice@example.com", Role: authz.RoleVictime}
	if err := repo.Insert(ctx, dup); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate insert error = %v, want ErrEmailTaken", err)
	}
}

func TestGetByEmail(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	u := &User{ID: "u1", Email: "Bob@Example.com", Role: authz.RoleExpert}
	if err := repo.Insert(ctx, u); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	for _, email := range []string{"bob@example.com", "BOB@EXAMPLE.COM", " bob@example.com "} {
		got, err := repo.GetByEmail(ctx, email)
		if err != nil {
			t.Errorf("GetByEmail(%q): %v", email, err)
			continue
		}
		if got.ID != "u1" {
			t.Errorf("GetByEmail(%q) = %s, want u1", email, got.ID)
		}
	}

	if _, err := repo.GetByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown email error = %v, want ErrNotFound", err)
	}
}

func TestGetByID(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing user error = %v, want ErrNotFound", err)
	}

	u := &User{ID: "u1", Email: "c@example.com", Role: authz.RoleAdmin}
	if err := repo.Insert(ctx, u); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, err := repo.GetByID(ctx, "u1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Role != authz.RoleAdmin {
		t.Errorf("role = %s, want %s", got.Role, authz.RoleAdmin)
	}

	// Returned value is a copy; mutating it must not touch the store.
	got.Email = "hacked@example.com"
	again, _ := repo.GetByID(ctx, "u1")
	if again.Email != "c@example.com" {
		t.Errorf("store mutated through returned copy: %s", again.Email)
	}
}
