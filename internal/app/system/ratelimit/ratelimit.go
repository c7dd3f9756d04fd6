// Package ratelimit throttles login and code-issuing endpoints per client.
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Limiter counts requests per key in fixed windows. It is safe for
// concurrent use.
type Limiter struct {
	mu       sync.Mutex
	windows  map[string]*window
	limit    int
	duration time.Duration
	now      func() time.Time
}

type window struct {
	count     int
	expiresAt time.Time
}

// New creates a limiter allowing limit requests per key per duration and
// starts a background sweep of expired windows.
func New(limit int, duration time.Duration) *Limiter {
	l := newLimiter(limit, duration, time.Now)
	go l.sweepLoop(duration * 2)
	return l
}

func newLimiter(limit int, duration time.Duration, now func() time.Time) *Limiter {
	return &Limiter{
		windows:  make(map[string]*window),
		limit:    limit,
		duration: duration,
		now:      now,
	}
}

// Allow records a request for key and reports whether it is within limits.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.After(w.expiresAt) {
		l.windows[key] = &window{count: 1, expiresAt: now.Add(l.duration)}
		return true
	}
	if w.count >= l.limit {
		return false
	}
	w.count++
	return true
}

// Remaining returns how many requests key has left in its current window.
func (l *Limiter) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || l.now().After(w.expiresAt) {
		return l.limit
	}
	if left := l.limit - w.count; left > 0 {
		return left
	}
	return 0
}

// RetryAfter returns how long until key's window resets, or zero when key
// is not currently limited.
func (l *Limiter) RetryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || w.count < l.limit {
		return 0
	}
	if d := w.expiresAt.Sub(l.now()); d > 0 {
		return d
	}
	return 0
}

// Reset clears key's window.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}

func (l *Limiter) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for range ticker.C {
		l.mu.Lock()
		now := l.now()
		for key, w := range l.windows {
			if now.After(w.expiresAt) {
				delete(l.windows, key)
			}
		}
		l.mu.Unlock()
	}
}

// ClientIP extracts the client IP, preferring X-Forwarded-For and
// X-Real-IP over RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// Guard protects the credential endpoints. Login attempts are limited per
// IP and per email; code-issuing requests (resend verification, forgot
// password) share a tighter per-IP budget.
type Guard struct {
	loginIP    *Limiter
	loginEmail *Limiter
	codes      *Limiter
}

// NewGuard returns a Guard with the production limits: 10 logins per IP per
// minute, 5 per email per 5 minutes, and 5 code requests per IP per 15
// minutes.
func NewGuard() *Guard {
	return &Guard{
		loginIP:    New(10, time.Minute),
		loginEmail: New(5, 5*time.Minute),
		codes:      New(5, 15*time.Minute),
	}
}

// NewGuardWith builds a Guard from explicit limiters; used by tests.
func NewGuardWith(loginIP, loginEmail, codes *Limiter) *Guard {
	return &Guard{loginIP: loginIP, loginEmail: loginEmail, codes: codes}
}

func emailKey(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// CheckLogin reports whether a login attempt may proceed, and a message for
// the user when it may not.
func (g *Guard) CheckLogin(r *http.Request, email string) (bool, string) {
	if !g.loginIP.Allow(ClientIP(r)) {
		return false, "Too many login attempts. Please wait a minute before trying again."
	}
	if email != "" && !g.loginEmail.Allow(emailKey(email)) {
		return false, "Too many login attempts for this account. Please wait a few minutes."
	}
	return true, ""
}

// LoginSucceeded clears the per-email counter.
func (g *Guard) LoginSucceeded(email string) {
	if email != "" {
		g.loginEmail.Reset(emailKey(email))
	}
}

// CheckCodeRequest limits how often a client may trigger a code email.
func (g *Guard) CheckCodeRequest(r *http.Request) (bool, string) {
	if !g.codes.Allow(ClientIP(r)) {
		return false, "Too many code requests. Please wait before asking for another code."
	}
	return true, ""
}
