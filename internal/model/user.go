package model

import "time"

// User represents a user in the database.
type User struct {
	ID             int64      `db:"id"`
	FirstName      string     `db:"first_name"`
	LastName       string     `db:"last_name"`
	Email          string     `db:"email"`
	Username       string     `db:"username"`
	PasswordHash   string     `db:"password_hash"`
	RefreshToken   *string    `db:"refresh_token"`
	ResetTokenHash *string    `db:"reset_token_hash"`
	ResetExpiresAt *time.Time `db:"reset_expires_at"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

// Response strips credentials and session state from the user.
func (u *User) Response() UserResponse {
	return UserResponse{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// SignupRequest represents a user registration request.
type SignupRequest struct {
	FirstName string `json:"firstName" validate:"required,min=3"`
	LastName  string `json:"lastName" validate:"required,min=3"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	Username  string `json:"username" validate:"required,min=3"`
}

// LoginRequest represents a user login request.
type LoginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=8"`
	RememberMe bool   `json:"rememberMe"`
}

// UpdateProfileRequest changes profile fields. Empty fields are left untouched.
type UpdateProfileRequest struct {
	FirstName       string `json:"firstName" validate:"omitempty,min=3"`
	LastName        string `json:"lastName" validate:"omitempty,min=3"`
	Username        string `json:"username" validate:"omitempty,min=3"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword" validate:"omitempty,min=8"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// UserResponse represents user data safe for API responses (no sensitive fields).
type UserResponse struct {
	ID        int64     `json:"id,string"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AuthResponse is returned by login and profile updates.
type AuthResponse struct {
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
}

// MessageResponse is the body of every response that carries no data.
type MessageResponse struct {
	Message string `json:"message"`
}
