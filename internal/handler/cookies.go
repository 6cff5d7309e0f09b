package handler

import (
	"net/http"
	"time"

	"github.com/taskflow/taskflow-go/internal/middleware"
)

const (
	RefreshTokenCookie = "refreshToken"
	// RefreshCookiePath scopes the refresh cookie so the browser only sends it
	// to the refresh endpoint.
	RefreshCookiePath = "/api/v1/user/refresh"
	accessCookiePath  = "/"
)

// CookieManager writes the session cookies. Every cookie is HttpOnly and
// SameSite=Strict; Secure is dropped only in development.
type CookieManager struct {
	secure bool
	now    func() time.Time
}

// NewCookieManager creates a CookieManager.
func NewCookieManager(secure bool) *CookieManager {
	return &CookieManager{secure: secure, now: time.Now}
}

// SetAccessToken writes the access token cookie on path "/".
func (m *CookieManager) SetAccessToken(w http.ResponseWriter, token string, expires time.Time) {
	m.set(w, middleware.AccessTokenCookie, token, accessCookiePath, expires)
}

// SetRefreshToken writes the refresh token cookie scoped to the refresh endpoint.
func (m *CookieManager) SetRefreshToken(w http.ResponseWriter, token string, expires time.Time) {
	m.set(w, RefreshTokenCookie, token, RefreshCookiePath, expires)
}

// Clear expires both session cookies. Paths must match the ones they were set
// with or the browser keeps them.
func (m *CookieManager) Clear(w http.ResponseWriter) {
	m.delete(w, middleware.AccessTokenCookie, accessCookiePath)
	m.delete(w, RefreshTokenCookie, RefreshCookiePath)
}

func (m *CookieManager) set(w http.ResponseWriter, name, value, path string, expires time.Time) {
	maxAge := int(expires.Sub(m.now()).Round(time.Second) / time.Second)
	if maxAge <= 0 {
		maxAge = -1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  expires.UTC(),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (m *CookieManager) delete(w http.ResponseWriter, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
	})
}
