package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"github.com/taskflow/taskflow-go/internal/model"
)

func newTestIDs(t *testing.T) *IDGenerator {
	t.Helper()
	ids, err := NewIDGenerator(1)
	if err != nil {
		t.Fatalf("NewIDGenerator() unexpected error: %v", err)
	}
	return ids
}

func TestNewUserRepository(t *testing.T) {
	repo := NewUserRepository(nil, nil)
	if repo == nil {
		t.Fatal("expected non-nil UserRepository")
	}
	if repo.db != nil {
		t.Fatal("expected nil db when constructed with nil")
	}
}

func TestNewIDGenerator(t *testing.T) {
	if _, err := NewIDGenerator(1024); err == nil {
		t.Fatal("expected error for node out of range")
	}

	ids := newTestIDs(t)
	seen := make(map[int64]bool)
	for i := 0; i < 1000; i++ {
		id := ids.Next()
		if id <= 0 {
			t.Fatalf("Next() = %d, want positive", id)
		}
		if seen[id] {
			t.Fatalf("Next() returned duplicate id %d", id)
		}
		seen[id] = true
	}
}

func TestSentinelErrors(t *testing.T) {
	if ErrUserNotFound.Error() != "user not found" {
		t.Fatalf("unexpected error message: %s", ErrUserNotFound.Error())
	}
	if ErrDuplicateEmail.Error() != "email already exists" {
		t.Fatalf("unexpected error message: %s", ErrDuplicateEmail.Error())
	}
	if ErrDuplicateUsername.Error() != "username already exists" {
		t.Fatalf("unexpected error message: %s", ErrDuplicateUsername.Error())
	}
}

func TestIsDuplicateEntryError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sentinel", ErrUserNotFound, false},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'a@b.c' for key 'users.uq_users_email'"}, true},
		{"mysql other", &mysql.MySQLError{Number: 1146, Message: "Table doesn't exist"}, false},
		{"wrapped mysql duplicate", fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1062}), true},
		{"postgres unique", &pq.Error{Code: "23505", Constraint: "uq_users_username"}, true},
		{"postgres other", &pq.Error{Code: "23503"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isDuplicateEntryError(tt.err); got != tt.want {
				t.Errorf("isDuplicateEntryError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDuplicateUserError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"mysql email", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'a@b.c' for key 'users.uq_users_email'"}, ErrDuplicateEmail},
		{"mysql username", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'bob' for key 'users.uq_users_username'"}, ErrDuplicateUsername},
		{"postgres email", &pq.Error{Code: "23505", Constraint: "uq_users_email"}, ErrDuplicateEmail},
		{"postgres username", &pq.Error{Code: "23505", Constraint: "uq_users_username"}, ErrDuplicateUsername},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := duplicateUserError(tt.err); !errors.Is(got, tt.want) {
				t.Errorf("duplicateUserError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMemoryUserRepositoryUniqueness(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository(newTestIDs(t))

	alice := &model.User{Email: "alice@example.com", Username: "alice", PasswordHash: "h"}
	if err := repo.Create(ctx, alice); err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}
	if alice.ID == 0 || alice.CreatedAt.IsZero() {
		t.Fatal("Create() did not assign id and timestamps")
	}

	if err := repo.Create(ctx, &model.User{Email: "alice@example.com", Username: "other"}); !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("Create() duplicate email error = %v, want ErrDuplicateEmail", err)
	}
	if err := repo.Create(ctx, &model.User{Email: "other@example.com", Username: "alice"}); !errors.Is(err, ErrDuplicateUsername) {
		t.Errorf("Create() duplicate username error = %v, want ErrDuplicateUsername", err)
	}

	bob := &model.User{Email: "bob@example.com", Username: "bob"}
	if err := repo.Create(ctx, bob); err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}
	bob.Username = "alice"
	if err := repo.Update(ctx, bob); !errors.Is(err, ErrDuplicateUsername) {
		t.Errorf("Update() to taken username error = %v, want ErrDuplicateUsername", err)
	}
}

func TestMemoryUserRepositoryRefreshToken(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository(newTestIDs(t))

	u := &model.User{Email: "carol@example.com", Username: "carol"}
	if err := repo.Create(ctx, u); err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}

	token := "refresh-1"
	if err := repo.SetRefreshToken(ctx, u.ID, &token); err != nil {
		t.Fatalf("SetRefreshToken() unexpected error: %v", err)
	}
	token = "mutated-after-store"

	got, err := repo.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID() unexpected error: %v", err)
	}
	if got.RefreshToken == nil || *got.RefreshToken != "refresh-1" {
		t.Fatalf("RefreshToken = %v, want refresh-1", got.RefreshToken)
	}

	// Profile updates never touch the session.
	got.FirstName = "Caroline"
	got.RefreshToken = nil
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("Update() unexpected error: %v", err)
	}
	got, _ = repo.GetByID(ctx, u.ID)
	if got.RefreshToken == nil || got.FirstName != "Caroline" {
		t.Fatalf("after Update() user = %+v", got)
	}

	if err := repo.SetRefreshToken(ctx, u.ID, nil); err != nil {
		t.Fatalf("SetRefreshToken(nil) unexpected error: %v", err)
	}
	got, _ = repo.GetByID(ctx, u.ID)
	if got.RefreshToken != nil {
		t.Fatal("SetRefreshToken(nil) did not clear the token")
	}

	if err := repo.SetRefreshToken(ctx, 999, nil); err != nil {
		t.Errorf("clearing unknown user error = %v, want nil", err)
	}
	if err := repo.SetRefreshToken(ctx, 999, &token); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("setting unknown user error = %v, want ErrUserNotFound", err)
	}
}

func TestMemoryUserRepositoryResetToken(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository(newTestIDs(t))

	digest := "abc123"
	expires := time.Now().Add(15 * time.Minute)
	u := &model.User{Email: "dan@example.com", Username: "dan", ResetTokenHash: &digest, ResetExpiresAt: &expires}
	if err := repo.Create(ctx, u); err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}

	if _, err := repo.GetByResetTokenHash(ctx, digest, time.Now()); err != nil {
		t.Errorf("GetByResetTokenHash() unexpected error: %v", err)
	}
	if _, err := repo.GetByResetTokenHash(ctx, digest, expires.Add(time.Second)); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expired reset token error = %v, want ErrUserNotFound", err)
	}
	if _, err := repo.GetByResetTokenHash(ctx, "other", time.Now()); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("unknown reset token error = %v, want ErrUserNotFound", err)
	}
}
