package crypto

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenIssuer   = "taskflow"
	tokenAudience = "taskflow-api"

	AccessTokenTTL          = 15 * time.Minute
	RefreshTokenTTL         = 7 * 24 * time.Hour
	RememberRefreshTokenTTL = 30 * 24 * time.Hour
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrSameSecrets  = errors.New("access and refresh secrets must differ")
)

// Claims represents the JWT claims carried by both access and refresh tokens.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64 `json:"id,string"`
}

// TokenIssuer mints and verifies access and refresh tokens. Each kind is signed
// with its own secret.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	now           func() time.Time
}

// IssuerOption configures a TokenIssuer.
type IssuerOption func(*TokenIssuer)

// WithClock overrides the time source used for iat/exp and for verification.
func WithClock(now func() time.Time) IssuerOption {
	return func(t *TokenIssuer) { t.now = now }
}

// NewTokenIssuer creates a TokenIssuer. The two secrets must be non-empty and distinct.
func NewTokenIssuer(accessSecret, refreshSecret string, opts ...IssuerOption) (*TokenIssuer, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("token secrets must not be empty")
	}
	if accessSecret == refreshSecret {
		return nil, ErrSameSecrets
	}
	t := &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// IssueAccessToken creates a 15 minute access token for the given user.
func (t *TokenIssuer) IssueAccessToken(userID int64) (string, time.Time, error) {
	return t.sign(userID, t.accessSecret, AccessTokenTTL)
}

// IssueRefreshToken creates a refresh token valid for 7 days, or 30 days when rememberMe is set.
func (t *TokenIssuer) IssueRefreshToken(userID int64, rememberMe bool) (string, time.Time, error) {
	return t.sign(userID, t.refreshSecret, RefreshTTL(rememberMe))
}

// VerifyAccessToken validates an access token and returns the user id it carries.
func (t *TokenIssuer) VerifyAccessToken(token string) (int64, error) {
	return t.verify(token, t.accessSecret)
}

// VerifyRefreshToken validates a refresh token signature and expiry. It does not
// check the token against the stored session value.
func (t *TokenIssuer) VerifyRefreshToken(token string) (int64, error) {
	return t.verify(token, t.refreshSecret)
}

// RefreshTTL returns the refresh token lifetime for the remember-me flag.
func RefreshTTL(rememberMe bool) time.Duration {
	if rememberMe {
		return RememberRefreshTokenTTL
	}
	return RefreshTokenTTL
}

func (t *TokenIssuer) sign(userID int64, secret []byte, ttl time.Duration) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		UserID: userID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (t *TokenIssuer) verify(tokenString string, secret []byte) (int64, error) {
	if tokenString == "" {
		return 0, ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		// jwt checks the signature before claims, so an expired error means
		// the token was genuinely ours.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrTokenExpired
		}
		return 0, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == 0 {
		return 0, ErrInvalidToken
	}
	return claims.UserID, nil
}
