package identity

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestRegisterAndFind(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	user, err := svc.Register(ctx, Registration{
		Email:    "  Alice@Example.com ",
		FullName: "Alice Doe",
		Password: "hunter2hunter2",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("email not normalized: %q", user.Email)
	}
	if bcrypt.CompareHashAndPassword(user.PasswordHash, []byte("hunter2hunter2")) != nil {
		t.Fatalf("stored hash does not match password")
	}

	found, err := svc.Find(ctx, user.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.ID != user.ID {
		t.Fatalf("expected %s, got %s", user.ID, found.ID)
	}

	byEmail, err := svc.FindByEmail(ctx, "ALICE@example.com")
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if byEmail.ID != user.ID {
		t.Fatalf("lookup by email returned a different user")
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	if _, err := svc.Register(ctx, Registration{Email: "not-an-email", Password: "hunter2hunter2"}); err == nil {
		t.Fatalf("expected invalid email to be rejected")
	}
	if _, err := svc.Register(ctx, Registration{Email: "ok@example.com", Password: "short"}); err == nil {
		t.Fatalf("expected short password to be rejected")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	reg := Registration{Email: "bob@example.com", Password: "hunter2hunter2"}
	if _, err := svc.Register(ctx, reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.Register(ctx, reg); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestFindUnknownUser(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	if _, err := svc.Find(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
