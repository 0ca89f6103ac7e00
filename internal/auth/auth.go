package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Browsers share cookies across ports, so every dashboard instance signs its
// sessions under its own cookie name.
const cookiePrefix = "autobid_"

const (
	// IdleTimeout ends a session nobody has used for this long
	IdleTimeout = 2 * time.Hour
	// MaxLifetime ends a session regardless of activity
	MaxLifetime = 12 * time.Hour
)

// Words for generated dashboard passwords
var passwordWords = []string{
	"lecture", "tutorial", "practical", "campus", "credit",
	"semester", "timetable", "library", "thesis", "module",
	"exam", "lab", "slot", "quiz", "seminar",
	"faculty", "unit", "grade", "major",
}

// Session is one signed-in dashboard browser
type Session struct {
	Created  time.Time
	LastSeen time.Time
	Remote   string
}

// Auth guards one dashboard instance with a shared password
type Auth struct {
	password string
	instance string
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// New creates the authenticator of a dashboard instance
func New(password string) *Auth {
	return &Auth{
		password: password,
		instance: randomHex(4),
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Instance identifies this dashboard in its cookie name and startup banner
func (a *Auth) Instance() string {
	return a.instance
}

// CookieName is the session cookie of this instance
func (a *Auth) CookieName() string {
	return cookiePrefix + a.instance
}

// GeneratePassword creates a random 3-word password
func GeneratePassword() string {
	words := make([]string, 3)
	for i := range words {
		words[i] = passwordWords[randomInt(len(passwordWords))]
	}
	return strings.Join(words, "-")
}

// Login checks the password and opens a session for the remote address
func (a *Auth) Login(password, remote string) (string, bool) {
	if subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) != 1 {
		return "", false
	}

	token := randomHex(32)
	now := a.now()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.pruneLocked(now)
	a.sessions[token] = &Session{Created: now, LastSeen: now, Remote: remote}
	return token, true
}

// Logout ends a session
func (a *Auth) Logout(token string) {
	a.mu.Lock()
	delete(a.sessions, token)
	a.mu.Unlock()
}

// Touch reports whether the session is live and marks it used
func (a *Auth) Touch(token string) bool {
	now := a.now()

	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sessions[token]
	if !ok {
		return false
	}
	if expired(s, now) {
		delete(a.sessions, token)
		return false
	}
	s.LastSeen = now
	return true
}

// ActiveSessions returns the live sessions, oldest first
func (a *Auth) ActiveSessions() []Session {
	now := a.now()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.pruneLocked(now)
	out := make([]Session, 0, len(a.sessions))
	for _, s := range a.sessions {
		out = append(out, *s)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Created.Before(out[j-1].Created); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Authenticated reports whether the request carries a live session of this instance
func (a *Auth) Authenticated(r *http.Request) bool {
	cookie, err := r.Cookie(a.CookieName())
	if err != nil {
		return false
	}
	return a.Touch(cookie.Value)
}

// RequireAuth middleware for dashboard pages (redirects to login)
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.Authenticated(r) {
			next.ServeHTTP(w, r)
			return
		}
		http.Redirect(w, r, "/login", http.StatusFound)
	})
}

// RequireAuthAPI middleware for API endpoints (returns 401)
func (a *Auth) RequireAuthAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.Authenticated(r) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":"UNAUTHORIZED","error":"Unauthorized - please log in"}`))
	})
}

// SetCookie stores the session token in the browser
func (a *Auth) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.CookieName(),
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(MaxLifetime.Seconds()),
	})
}

// ClearCookie removes the session cookie
func (a *Auth) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.CookieName(),
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

func (a *Auth) pruneLocked(now time.Time) {
	for token, s := range a.sessions {
		if expired(s, now) {
			delete(a.sessions, token)
		}
	}
}

func expired(s *Session, now time.Time) bool {
	return now.Sub(s.LastSeen) > IdleTimeout || now.Sub(s.Created) > MaxLifetime
}

func randomHex(n int) string {
	b := make([]byte, n)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// randomInt returns a uniform random int in [0, max)
func randomInt(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0
	}
	return int(n.Int64())
}
