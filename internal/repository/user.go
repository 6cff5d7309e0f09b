package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/taskflow/taskflow-go/internal/model"
)

const userColumns = `id, first_name, last_name, email, username, password_hash,
	refresh_token, reset_token_hash, reset_expires_at, created_at, updated_at`

// UserRepository handles user persistence operations.
type UserRepository struct {
	db  *sqlx.DB
	ids *IDGenerator
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sqlx.DB, ids *IDGenerator) *UserRepository {
	return &UserRepository{db: db, ids: ids}
}

// Create inserts a new user and sets the generated ID and timestamps on the user struct.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	user.ID = r.ids.Next()
	user.CreatedAt = now()
	user.UpdatedAt = user.CreatedAt

	query := r.db.Rebind(`INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.FirstName, user.LastName, user.Email, user.Username, user.PasswordHash,
		user.RefreshToken, user.ResetTokenHash, user.ResetExpiresAt, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return duplicateUserError(err)
		}
		return err
	}
	return nil
}

// GetByEmail retrieves a user by their email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

// GetByID retrieves a user by their ID.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetByUsername retrieves a user by username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

// GetByResetTokenHash retrieves the user holding an unexpired reset token digest.
func (r *UserRepository) GetByResetTokenHash(ctx context.Context, digest string, at time.Time) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users
		WHERE reset_token_hash = ? AND reset_expires_at > ?`, digest, at.UTC())
}

// Update saves profile, password and reset-token fields. The refresh token is
// left alone; use SetRefreshToken for session changes.
func (r *UserRepository) Update(ctx context.Context, user *model.User) error {
	user.UpdatedAt = now()
	query := r.db.Rebind(`UPDATE users SET first_name = ?, last_name = ?, username = ?,
		password_hash = ?, reset_token_hash = ?, reset_expires_at = ?, updated_at = ?
		WHERE id = ?`)

	result, err := r.db.ExecContext(ctx, query,
		user.FirstName, user.LastName, user.Username, user.PasswordHash,
		user.ResetTokenHash, user.ResetExpiresAt, user.UpdatedAt, user.ID,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return duplicateUserError(err)
		}
		return err
	}
	return requireRow(result, ErrUserNotFound)
}

// SetRefreshToken stores the single active refresh token for a user, or
// clears it when token is nil. Clearing an unknown user is not an error.
func (r *UserRepository) SetRefreshToken(ctx context.Context, id int64, token *string) error {
	query := r.db.Rebind(`UPDATE users SET refresh_token = ?, updated_at = ? WHERE id = ?`)
	result, err := r.db.ExecContext(ctx, query, token, now(), id)
	if err != nil {
		return err
	}
	if token == nil {
		return nil
	}
	return requireRow(result, ErrUserNotFound)
}

func (r *UserRepository) getOne(ctx context.Context, query string, args ...interface{}) (*model.User, error) {
	user := &model.User{}
	if err := r.db.GetContext(ctx, user, r.db.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// MySQL reports rows changed, not rows matched, so a same-value update would
// look like a miss. Callers always bump updated_at, which keeps it accurate.
func requireRow(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
