package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/taskflow/taskflow-go/internal/model"
)

// openTestDB connects to the database named by TASKFLOW_TEST_DB_DRIVER and
// TASKFLOW_TEST_DB_DSN, or skips. MySQL DSNs need parseTime=true.
func openTestDB(t *testing.T) (*UserRepository, *TodoRepository) {
	t.Helper()
	driver, dsn := os.Getenv("TASKFLOW_TEST_DB_DRIVER"), os.Getenv("TASKFLOW_TEST_DB_DSN")
	if driver == "" || dsn == "" {
		t.Skip("TASKFLOW_TEST_DB_DRIVER and TASKFLOW_TEST_DB_DSN not set")
	}

	ctx := context.Background()
	db, err := Open(ctx, driver, dsn)
	if err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := EnsureSchema(ctx, db); err != nil {
		t.Fatalf("EnsureSchema() unexpected error: %v", err)
	}
	// Idempotent.
	if err := EnsureSchema(ctx, db); err != nil {
		t.Fatalf("EnsureSchema() second run: %v", err)
	}

	ids := newTestIDs(t)
	return NewUserRepository(db, ids), NewTodoRepository(db, ids)
}

func TestSQLUserRepository(t *testing.T) {
	users, _ := openTestDB(t)
	ctx := context.Background()
	suffix := fmt.Sprint(time.Now().UnixNano())

	u := &model.User{
		FirstName:    "Alice",
		LastName:     "Liddell",
		Email:        "alice" + suffix + "@example.com",
		Username:     "alice" + suffix,
		PasswordHash: "hash",
	}
	if err := users.Create(ctx, u); err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}
	if u.ID == 0 {
		t.Fatal("expected id to be assigned")
	}

	dupEmail := *u
	dupEmail.Username = "other" + suffix
	if err := users.Create(ctx, &dupEmail); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("Create() duplicate email = %v, want ErrDuplicateEmail", err)
	}
	dupName := *u
	dupName.Email = "other" + suffix + "@example.com"
	if err := users.Create(ctx, &dupName); !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("Create() duplicate username = %v, want ErrDuplicateUsername", err)
	}

	token := "refresh-" + suffix
	if err := users.SetRefreshToken(ctx, u.ID, &token); err != nil {
		t.Fatalf("SetRefreshToken() unexpected error: %v", err)
	}
	got, err := users.GetByEmail(ctx, u.Email)
	if err != nil {
		t.Fatalf("GetByEmail() unexpected error: %v", err)
	}
	if got.RefreshToken == nil || *got.RefreshToken != token {
		t.Fatalf("RefreshToken = %v, want %q", got.RefreshToken, token)
	}

	if err := users.SetRefreshToken(ctx, u.ID, nil); err != nil {
		t.Fatalf("SetRefreshToken(nil) unexpected error: %v", err)
	}
	got, _ = users.GetByID(ctx, u.ID)
	if got.RefreshToken != nil {
		t.Fatal("expected refresh token to be cleared")
	}

	if _, err := users.GetByID(ctx, u.ID+1); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("GetByID() missing = %v, want ErrUserNotFound", err)
	}
}

func TestSQLTodoRepository(t *testing.T) {
	users, todos := openTestDB(t)
	ctx := context.Background()
	suffix := fmt.Sprint(time.Now().UnixNano())

	owner := &model.User{FirstName: "Bob", LastName: "Tables", Email: "bob" + suffix + "@example.com", Username: "bob" + suffix, PasswordHash: "hash"}
	if err := users.Create(ctx, owner); err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}

	first := &model.Todo{UserID: owner.ID, Title: "first", Description: "d", Priority: model.PriorityLow, Status: model.StatusTodo}
	second := &model.Todo{UserID: owner.ID, Title: "second", Description: "d", Priority: model.PriorityHigh, Status: model.StatusTodo}
	for _, td := range []*model.Todo{first, second} {
		if err := todos.Create(ctx, td); err != nil {
			t.Fatalf("Create() unexpected error: %v", err)
		}
	}

	list, err := todos.ListByUser(ctx, owner.ID)
	if err != nil {
		t.Fatalf("ListByUser() unexpected error: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID {
		t.Fatalf("ListByUser() = %+v, want newest first", list)
	}

	now := time.Now().UTC().Truncate(time.Second)
	first.Status = model.StatusDone
	first.CompletedAt = &now
	if err := todos.Update(ctx, first); err != nil {
		t.Fatalf("Update() unexpected error: %v", err)
	}
	got, err := todos.GetByID(ctx, owner.ID, first.ID)
	if err != nil {
		t.Fatalf("GetByID() unexpected error: %v", err)
	}
	if got.Status != model.StatusDone || got.CompletedAt == nil {
		t.Fatalf("GetByID() = %+v, want done with completedAt", got)
	}

	if _, err := todos.GetByID(ctx, owner.ID+1, first.ID); !errors.Is(err, ErrTodoNotFound) {
		t.Fatalf("GetByID() other owner = %v, want ErrTodoNotFound", err)
	}
	if err := todos.Delete(ctx, owner.ID+1, first.ID); !errors.Is(err, ErrTodoNotFound) {
		t.Fatalf("Delete() other owner = %v, want ErrTodoNotFound", err)
	}
	if err := todos.Delete(ctx, owner.ID, first.ID); err != nil {
		t.Fatalf("Delete() unexpected error: %v", err)
	}
}
