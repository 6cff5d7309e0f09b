package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/taskflow/taskflow-go/internal/crypto"
	"github.com/taskflow/taskflow-go/internal/model"
	"github.com/taskflow/taskflow-go/internal/repository"
)

// ResetTokenTTL is how long an emailed reset link stays valid.
const ResetTokenTTL = 15 * time.Minute

var (
	ErrUserNotFound             = errors.New("user not found")
	ErrInvalidCredentials       = errors.New("invalid email or password")
	ErrUserExists               = errors.New("user already exists")
	ErrUsernameTaken            = errors.New("username already taken")
	ErrRefreshTokenMissing      = errors.New("refresh token missing")
	ErrSessionExpired           = errors.New("session expired")
	ErrInvalidRefreshToken      = errors.New("invalid refresh token")
	ErrCurrentPasswordIncorrect = errors.New("current password incorrect")
	ErrInvalidResetToken        = errors.New("invalid or expired reset token")
)

// Session is the outcome of a successful login: the sanitized user plus both
// tokens and their expiry, ready to be written as cookies.
type Session struct {
	User           model.UserResponse
	AccessToken    string
	AccessExpires  time.Time
	RefreshToken   string
	RefreshExpires time.Time
}

// AuthService handles authentication business logic.
type AuthService struct {
	users     UserStore
	tokens    *crypto.TokenIssuer
	mailer    Mailer
	clientURL string
	log       *zap.Logger
	now       func() time.Time
}

// NewAuthService creates a new AuthService. clientURL is the front-end origin
// that reset links point at.
func NewAuthService(users UserStore, tokens *crypto.TokenIssuer, mailer Mailer, clientURL string, log *zap.Logger) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		mailer:    mailer,
		clientURL: strings.TrimRight(clientURL, "/"),
		log:       log,
		now:       time.Now,
	}
}

// Signup creates a new user account. No session is started.
func (s *AuthService) Signup(ctx context.Context, req model.SignupRequest) (model.UserResponse, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = normalize(req.Email)
	req.Username = normalize(req.Username)
	if err := validateRequest("Incorrect format", req); err != nil {
		return model.UserResponse{}, err
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		return model.UserResponse{}, err
	}

	user := &model.User{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			return model.UserResponse{}, ErrUserExists
		case errors.Is(err, repository.ErrDuplicateUsername):
			return model.UserResponse{}, ErrUsernameTaken
		}
		return model.UserResponse{}, err
	}

	s.log.Info("user signed up", zap.Int64("user_id", user.ID))
	return user.Response(), nil
}

// Login authenticates a user, issues both tokens and stores the refresh token
// as the user's only active session, replacing any earlier one.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (Session, error) {
	req.Email = normalize(req.Email)
	if err := validateRequest("Incorrect format", req); err != nil {
		return Session{}, err
	}

	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return Session{}, ErrUserNotFound
		}
		return Session{}, err
	}

	match, err := crypto.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil {
		return Session{}, err
	}
	if !match {
		return Session{}, ErrInvalidCredentials
	}

	access, accessExp, err := s.tokens.IssueAccessToken(user.ID)
	if err != nil {
		return Session{}, err
	}
	refresh, refreshExp, err := s.tokens.IssueRefreshToken(user.ID, req.RememberMe)
	if err != nil {
		return Session{}, err
	}
	if err := s.users.SetRefreshToken(ctx, user.ID, &refresh); err != nil {
		return Session{}, err
	}

	s.log.Info("user logged in", zap.Int64("user_id", user.ID), zap.Bool("remember_me", req.RememberMe))
	return Session{
		User:           user.Response(),
		AccessToken:    access,
		AccessExpires:  accessExp,
		RefreshToken:   refresh,
		RefreshExpires: refreshExp,
	}, nil
}

// Refresh exchanges a valid refresh token for a new access token. The refresh
// token itself is not rotated, so concurrent refreshes with the same value
// all succeed.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	if refreshToken == "" {
		return "", time.Time{}, ErrRefreshTokenMissing
	}

	userID, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return "", time.Time{}, ErrSessionExpired
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", time.Time{}, ErrInvalidRefreshToken
		}
		return "", time.Time{}, err
	}
	if user.RefreshToken == nil || subtle.ConstantTimeCompare([]byte(*user.RefreshToken), []byte(refreshToken)) != 1 {
		return "", time.Time{}, ErrInvalidRefreshToken
	}

	return s.tokens.IssueAccessToken(user.ID)
}

// Logout clears the stored refresh token. It is idempotent.
func (s *AuthService) Logout(ctx context.Context, userID int64) error {
	if err := s.users.SetRefreshToken(ctx, userID, nil); err != nil {
		return err
	}
	s.log.Info("user logged out", zap.Int64("user_id", userID))
	return nil
}

// Profile returns the sanitized user.
func (s *AuthService) Profile(ctx context.Context, userID int64) (model.UserResponse, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return model.UserResponse{}, err
	}
	return user.Response(), nil
}

// UpdateProfile changes names, username and optionally the password. A new
// password requires the current one.
func (s *AuthService) UpdateProfile(ctx context.Context, userID int64, req model.UpdateProfileRequest) (model.UserResponse, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Username = normalize(req.Username)
	// Whitespace alone means no new password; any other value is hashed as typed.
	changePassword := strings.TrimSpace(req.NewPassword) != ""
	if !changePassword {
		req.NewPassword = ""
	}
	if err := validateRequest("Validation failed", req); err != nil {
		return model.UserResponse{}, err
	}
	if changePassword && req.CurrentPassword == "" {
		return model.UserResponse{}, fieldError("Validation failed", "currentPassword", "required_with",
			"Current password is required to set a new password")
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return model.UserResponse{}, err
	}

	if changePassword {
		match, err := crypto.VerifyPassword(req.CurrentPassword, user.PasswordHash)
		if err != nil {
			return model.UserResponse{}, err
		}
		if !match {
			return model.UserResponse{}, ErrCurrentPasswordIncorrect
		}
		hash, err := crypto.HashPassword(req.NewPassword)
		if err != nil {
			return model.UserResponse{}, err
		}
		user.PasswordHash = hash
	}

	if req.FirstName != "" {
		user.FirstName = req.FirstName
	}
	if req.LastName != "" {
		user.LastName = req.LastName
	}
	if req.Username != "" {
		user.Username = req.Username
	}

	if err := s.users.Update(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateUsername):
			return model.UserResponse{}, ErrUsernameTaken
		case errors.Is(err, repository.ErrUserNotFound):
			return model.UserResponse{}, ErrUserNotFound
		}
		return model.UserResponse{}, err
	}
	return user.Response(), nil
}

// ForgotPassword stores a reset token digest for a known email and mails the
// raw token. The outcome is the same whether or not the email exists, and a
// delivery failure is only logged.
func (s *AuthService) ForgotPassword(ctx context.Context, req model.ForgotPasswordRequest) error {
	req.Email = normalize(req.Email)
	if err := validateRequest("Invalid email format", req); err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil
		}
		return err
	}

	token, digest, err := crypto.NewResetToken()
	if err != nil {
		return err
	}
	expires := s.now().Add(ResetTokenTTL).UTC()
	user.ResetTokenHash = &digest
	user.ResetExpiresAt = &expires
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}

	resetURL := s.clientURL + "/reset-password/" + token
	if err := s.mailer.SendPasswordReset(ctx, user.Email, resetURL); err != nil {
		s.log.Error("sending password reset email failed", zap.Int64("user_id", user.ID), zap.Error(err))
	}
	return nil
}

// ResetPassword sets a new password for the holder of an unexpired reset
// token and invalidates the token.
func (s *AuthService) ResetPassword(ctx context.Context, token string, req model.ResetPasswordRequest) error {
	if err := validateRequest("Validation failed", req); err != nil {
		return err
	}
	if token == "" {
		return ErrInvalidResetToken
	}

	user, err := s.users.GetByResetTokenHash(ctx, crypto.HashResetToken(token), s.now())
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.ResetTokenHash = nil
	user.ResetExpiresAt = nil
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}

	s.log.Info("password reset", zap.Int64("user_id", user.ID))
	return nil
}

func (s *AuthService) getUser(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
