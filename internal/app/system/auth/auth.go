// Package auth owns the session cookie and the signed-in user in request
// context.
package auth

import (
	"context"
	"encoding/gob"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dalemusser/scholarhub/internal/domain/models"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Session keys                                                                |
*─────────────────────────────────────────────────────────────────────────────*/

const (
	isAuthKey = "is_authenticated"
	userIDKey = "user_id"

	// FlowIDKey holds the id of the server-side verification/reset flow.
	FlowIDKey = "flow_id"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Current-User helper                                                         |
*─────────────────────────────────────────────────────────────────────────────*/

// SessionUser is the signed-in account as seen by handlers. It is rebuilt
// from the database on every request so approval and role changes apply
// immediately.
type SessionUser struct {
	ID            string
	Name          string
	Email         string
	Role          models.Role
	Approved      bool
	ConsentStatus models.ConsentStatus
}

// MayEnter reports whether the account passes the approval gate.
func (u *SessionUser) MayEnter() bool {
	return u.Approved || u.Role.BypassesApproval()
}

// UserFetcher loads a SessionUser by account id. It returns nil for unknown
// or deactivated accounts.
type UserFetcher interface {
	FetchUser(ctx context.Context, userID string) *SessionUser
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the user and a found flag.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok && u != nil
}

// WithTestUser injects u into the request context. Tests use it to bypass
// the session cookie.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

/*─────────────────────────────────────────────────────────────────────────────*
| SessionManager                                                              |
*─────────────────────────────────────────────────────────────────────────────*/

// SessionManager wraps the gorilla cookie store used for the login session.
type SessionManager struct {
	store   *sessions.CookieStore
	name    string
	fetcher UserFetcher
	logger  *zap.Logger
}

// NewSessionManager builds the cookie store. In production (secure=true)
// cookies are Secure with SameSite=Lax; in local dev over http they are not
// marked Secure so browsers accept them.
func NewSessionManager(sessionKey, name, domain string, maxAge time.Duration, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, fmt.Errorf("session key is empty; provide ≥32 random chars")
	}
	if len(sessionKey) < 32 {
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(sessionKey)))
	}
	if name == "" {
		name = "scholarhub-session"
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	store.Options = &sessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	logger.Info("session store initialized",
		zap.String("name", name),
		zap.Bool("secure", secure),
		zap.String("domain", domain))

	return &SessionManager{store: store, name: name, logger: logger}, nil
}

// SetUserFetcher installs the loader LoadSessionUser uses.
func (m *SessionManager) SetUserFetcher(f UserFetcher) { m.fetcher = f }

// Name returns the cookie name.
func (m *SessionManager) Name() string { return m.name }

// GetSession returns the session. On a decode error a fresh session is still
// returned alongside the error so callers can continue.
func (m *SessionManager) GetSession(r *http.Request) (*sessions.Session, error) {
	return m.store.Get(r, m.name)
}

// SignIn marks sess authenticated as userID. The caller saves the session.
func SignIn(sess *sessions.Session, userID string) {
	sess.Values[isAuthKey] = true
	sess.Values[userIDKey] = userID
}

// SignOut clears every value and expires the cookie. The caller saves.
func SignOut(sess *sessions.Session) {
	for k := range sess.Values {
		delete(sess.Values, k)
	}
	sess.Options.MaxAge = -1
}

// SessionUserID returns the authenticated account id stored in sess.
func SessionUserID(sess *sessions.Session) (string, bool) {
	if isAuth, _ := sess.Values[isAuthKey].(bool); !isAuth {
		return "", false
	}
	id := getString(sess, userIDKey)
	return id, id != ""
}

// FlowID returns the flow id stored in sess, if any.
func FlowID(sess *sessions.Session) string { return getString(sess, FlowIDKey) }

// LoadSessionUser injects the current user into the request context. The
// account is re-read through the UserFetcher; a deleted or deactivated
// account is treated as signed out.
func (m *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := m.GetSession(r)
		if err != nil || m.fetcher == nil {
			next.ServeHTTP(w, r)
			return
		}
		id, ok := SessionUserID(sess)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		if u := m.fetcher.FetchUser(r.Context(), id); u != nil {
			r = withUser(r, u)
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSignedIn ensures there is a user in context (set by LoadSessionUser).
// If not signed in:
//   - HTMX: sends HX-Redirect to /login?return=...
//   - HTML: 303 redirect to /login?return=...
//   - API:  401 Unauthorized with a plain error body.
func (m *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); ok {
			next.ServeHTTP(w, r)
			return
		}
		denyUnauthenticated(w, r)
	})
}

// RequireCapability admits signed-in users whose role satisfies can, for
// example models.Role.CanManagePapers.
func (m *SessionManager) RequireCapability(can func(models.Role) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r)
			if !ok {
				denyUnauthenticated(w, r)
				return
			}
			if !can(u.Role) {
				denyForbidden(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func denyUnauthenticated(w http.ResponseWriter, r *http.Request) {
	ret := url.QueryEscape(currentURI(r))

	// HTMX: full-page client redirect (no partial swap)
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/login?return="+ret)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if wantsHTML(r) {
		http.Redirect(w, r, "/login?return="+ret, http.StatusSeeOther)
		return
	}
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func denyForbidden(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/forbidden")
		w.WriteHeader(http.StatusForbidden)
		return
	}
	if wantsHTML(r) {
		http.Redirect(w, r, "/forbidden", http.StatusSeeOther)
		return
	}
	http.Error(w, "forbidden", http.StatusForbidden)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Flash messages                                                              |
*─────────────────────────────────────────────────────────────────────────────*/

// Flash kinds.
const (
	FlashSuccess = "success"
	FlashInfo    = "info"
	FlashWarning = "warning"
	FlashError   = "error"
)

// Flash is a one-shot message shown on the next page.
type Flash struct {
	Kind    string
	Message string
}

func init() { gob.Register(Flash{}) }

const flashesKey ctxKey = "flashes"

// AddFlash queues a message for the next page view. Call it before the
// redirect is written.
func (m *SessionManager) AddFlash(w http.ResponseWriter, r *http.Request, kind, msg string) {
	sess, _ := m.GetSession(r)
	sess.AddFlash(Flash{Kind: kind, Message: msg})
	if err := sess.Save(r, w); err != nil {
		m.logger.Warn("failed to save flash", zap.Error(err))
	}
}

// LoadFlashes moves queued messages from the session into the request
// context, where Flashes reads them.
func (m *SessionManager) LoadFlashes(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := m.GetSession(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		raw := sess.Flashes()
		if len(raw) == 0 {
			next.ServeHTTP(w, r)
			return
		}
		out := make([]Flash, 0, len(raw))
		for _, v := range raw {
			if f, ok := v.(Flash); ok {
				out = append(out, f)
			}
		}
		if err := sess.Save(r, w); err != nil {
			m.logger.Warn("failed to clear flashes", zap.Error(err))
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), flashesKey, out)))
	})
}

// Flashes returns the messages loaded for this request.
func Flashes(r *http.Request) []Flash {
	f, _ := r.Context().Value(flashesKey).([]Flash)
	return f
}

// helpers

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

// getString safely extracts a string from a session value.
func getString(s *sessions.Session, key string) string {
	if v, ok := s.Values[key].(string); ok {
		return v
	}
	return ""
}

func wantsHTML(r *http.Request) bool {
	// Very light heuristic: treat it as HTML if it's HTMX or Accepts text/html.
	if r.Header.Get("HX-Request") == "true" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func currentURI(r *http.Request) string {
	u := *r.URL
	return u.RequestURI()
}
