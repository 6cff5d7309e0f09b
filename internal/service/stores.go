package service

import (
	"context"
	"time"

	"github.com/taskflow/taskflow-go/internal/model"
)

// UserStore is the credential store the auth service persists users through.
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByResetTokenHash(ctx context.Context, digest string, at time.Time) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	SetRefreshToken(ctx context.Context, id int64, token *string) error
}

// TodoStore persists tasks. All lookups are scoped to the owning user.
type TodoStore interface {
	Create(ctx context.Context, todo *model.Todo) error
	GetByID(ctx context.Context, userID, id int64) (*model.Todo, error)
	ListByUser(ctx context.Context, userID int64) ([]model.Todo, error)
	Update(ctx context.Context, todo *model.Todo) error
	Delete(ctx context.Context, userID, id int64) error
}

// Mailer delivers password reset links.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, resetURL string) error
}
