package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

type jarEntry struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Host     string    `json:"host"`
	Path     string    `json:"path"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"httpOnly,omitempty"`
}

func (e jarEntry) key() string {
	return e.Host + ";" + e.Path + ";" + e.Name
}

func (e jarEntry) expired(now time.Time) bool {
	return !e.Expires.IsZero() && !now.Before(e.Expires)
}

// Jar is an http.CookieJar that can be saved to disk so a session survives
// between runs of the terminal client. Cookies are host-only and follow the
// usual path matching, which keeps the refresh cookie off every request but
// the refresh call.
type Jar struct {
	mu      sync.Mutex
	path    string
	entries map[string]jarEntry
	now     func() time.Time
}

// NewJar returns an in-memory jar.
func NewJar() *Jar {
	return &Jar{entries: map[string]jarEntry{}, now: time.Now}
}

// OpenJar loads a jar persisted at path. A missing file yields an empty jar
// that is written on the first change.
func OpenJar(path string) (*Jar, error) {
	j := NewJar()
	j.path = path

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return j, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cookie jar: %w", err)
	}

	var entries []jarEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse cookie jar: %w", err)
	}
	now := j.now()
	for _, e := range entries {
		if !e.expired(now) {
			j.entries[e.key()] = e
		}
	}
	return j, nil
}

// SetCookies implements http.CookieJar.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	host := canonicalHost(u)
	for _, c := range cookies {
		e := jarEntry{
			Name:     c.Name,
			Value:    c.Value,
			Host:     host,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
		if e.Path == "" || e.Path[0] != '/' {
			e.Path = defaultPath(u.Path)
		}

		switch {
		case c.MaxAge < 0:
			delete(j.entries, e.key())
			continue
		case c.MaxAge > 0:
			e.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		case !c.Expires.IsZero():
			if !c.Expires.After(now) {
				delete(j.entries, e.key())
				continue
			}
			e.Expires = c.Expires
		}
		j.entries[e.key()] = e
	}
	j.saveLocked()
}

// Cookies implements http.CookieJar.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	host := canonicalHost(u)
	secure := u.Scheme == "https"
	reqPath := u.Path
	if reqPath == "" {
		reqPath = "/"
	}

	var out []*http.Cookie
	for k, e := range j.entries {
		if e.expired(now) {
			delete(j.entries, k)
			continue
		}
		if e.Host != host || (e.Secure && !secure) || !pathMatch(reqPath, e.Path) {
			continue
		}
		out = append(out, &http.Cookie{Name: e.Name, Value: e.Value})
	}
	return out
}

// Clear drops every cookie and removes the persisted file.
func (j *Jar) Clear() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.entries = map[string]jarEntry{}
	if j.path == "" {
		return nil
	}
	if err := os.Remove(j.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove cookie jar: %w", err)
	}
	return nil
}

// Best effort: a failed save only costs the next run its session.
func (j *Jar) saveLocked() {
	if j.path == "" {
		return
	}
	entries := make([]jarEntry, 0, len(j.entries))
	for _, e := range j.entries {
		entries = append(entries, e)
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(j.path), 0o700); err != nil {
		return
	}
	_ = os.WriteFile(j.path, data, 0o600)
}

func canonicalHost(u *url.URL) string {
	return strings.ToLower(u.Host)
}

// defaultPath is the directory of the request path.
func defaultPath(p string) string {
	if p == "" || p[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(p, "/")
	if i == 0 {
		return "/"
	}
	return p[:i]
}

func pathMatch(reqPath, cookiePath string) bool {
	if reqPath == cookiePath {
		return true
	}
	if !strings.HasPrefix(reqPath, cookiePath) {
		return false
	}
	return strings.HasSuffix(cookiePath, "/") || reqPath[len(cookiePath)] == '/'
}
