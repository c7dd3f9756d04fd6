// Package accountflow ties the browser session to its server-side
// verification flow. The session cookie only carries the flow id; pending
// verification, pending password reset and the verified-this-session set
// live in the flows collection.
package accountflow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	accountstore "github.com/dalemusser/scholarhub/internal/app/store/accounts"
	flowstore "github.com/dalemusser/scholarhub/internal/app/store/flows"
	"github.com/dalemusser/scholarhub/internal/app/system/auth"
	"github.com/dalemusser/scholarhub/internal/app/system/gates"
	"github.com/dalemusser/scholarhub/internal/app/system/metrics"
	"github.com/dalemusser/scholarhub/internal/app/system/verification"
	"github.com/dalemusser/scholarhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

// VerifyPath is where a pending verification is completed.
const VerifyPath = "/accounts/verify-email"

// CodeSender delivers codes. mailer.Notices implements it.
type CodeSender interface {
	VerificationCode(to, code, expiresIn string)
	PasswordResetCode(to, code, expiresIn string)
}

// Manager loads and saves flows for the current browser.
type Manager struct {
	Sessions *auth.SessionManager
	Flows    *flowstore.Store
	Accounts *accountstore.Store
	Codes    CodeSender
	Metrics  *metrics.Metrics
	Log      *zap.Logger

	now func() time.Time
}

// New builds a Manager.
func New(sm *auth.SessionManager, flows *flowstore.Store, accounts *accountstore.Store, codes CodeSender, m *metrics.Metrics, logger *zap.Logger) *Manager {
	return &Manager{
		Sessions: sm,
		Flows:    flows,
		Accounts: accounts,
		Codes:    codes,
		Metrics:  m,
		Log:      logger,
		now:      time.Now,
	}
}

// Now is the clock used for codes and lockouts.
func (m *Manager) Now() time.Time { return m.now().UTC() }

// State is the session plus its flow for one request.
type State struct {
	Session *sessions.Session
	Flow    *flowstore.Flow
}

// Load returns the browser's flow, starting a new one when the session has
// none or it expired. The new flow is not persisted until Save.
func (m *Manager) Load(ctx context.Context, r *http.Request) (State, error) {
	sess, err := m.Sessions.GetSession(r)
	if err != nil {
		if scErr, ok := err.(securecookie.Error); ok && scErr.IsDecode() {
			m.Log.Warn("session cookie invalid, using fresh session", zap.Error(err))
		} else {
			m.Log.Error("session store error, using fresh session", zap.Error(err))
		}
	}
	f, err := m.Flows.GetOrNew(ctx, auth.FlowID(sess))
	if err != nil {
		return State{}, fmt.Errorf("load flow: %w", err)
	}
	return State{Session: sess, Flow: f}, nil
}

// Save persists the flow and writes the session cookie pointing at it.
func (m *Manager) Save(ctx context.Context, w http.ResponseWriter, r *http.Request, st State) error {
	if err := m.Flows.Save(ctx, st.Flow); err != nil {
		return fmt.Errorf("save flow: %w", err)
	}
	st.Session.Values[auth.FlowIDKey] = st.Flow.ID
	if err := st.Session.Save(r, w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// ErrLocked is returned by IssueCode while the account is locked out.
var ErrLocked = errors.New("verification locked")

// IssueCode stores a fresh code on the account and sends it. The attempt
// counter is kept.
func (m *Manager) IssueCode(ctx context.Context, a *models.Account) error {
	now := m.Now()
	if locked, _ := verification.IsLocked(&a.Profile, now); locked {
		return ErrLocked
	}
	code, err := verification.Issue(&a.Profile, now)
	if err != nil {
		return err
	}
	if err := m.Accounts.SaveVerification(ctx, a.ID, a.Profile); err != nil {
		return fmt.Errorf("save verification code: %w", err)
	}
	m.Codes.VerificationCode(a.Email, code, verification.HumanizeWait(verification.CodeTTL))
	return nil
}

// BeginVerification issues a code for a and points the flow at it. The
// caller saves the state and redirects to VerifyPath.
func (m *Manager) BeginVerification(ctx context.Context, st State, a *models.Account, purpose flowstore.Purpose, returnURL string) error {
	if err := m.IssueCode(ctx, a); err != nil {
		return err
	}
	st.Flow.StartVerification(a.ID, purpose, returnURL)
	return nil
}

// SignIn authenticates the session as a, records the login and returns the
// page to land on: the pending dashboard for unapproved accounts, otherwise
// the safe return URL or the dashboard.
func (m *Manager) SignIn(ctx context.Context, w http.ResponseWriter, r *http.Request, st State, a models.Account, returnURL string) (string, error) {
	auth.SignIn(st.Session, a.ID.Hex())
	if err := m.Save(ctx, w, r, st); err != nil {
		return "", err
	}
	if err := m.Accounts.TouchLogin(ctx, a.ID, m.Now()); err != nil {
		m.Log.Warn("record login time failed", zap.String("account_id", a.ID.Hex()), zap.Error(err))
	}
	m.Log.Info("signed in", zap.String("account_id", a.ID.Hex()), zap.String("role", string(a.Role)))
	return Landing(a, returnURL), nil
}

// Landing is where a freshly signed-in account goes.
func Landing(a models.Account, returnURL string) string {
	if !a.Profile.Approved && !a.Role.BypassesApproval() {
		return gates.PendingPath
	}
	return urlutil.SafeReturn(returnURL, "", gates.DashboardPath)
}

// SignOut clears the authenticated session and forgets the flow, including
// which accounts were verified in this browser.
func (m *Manager) SignOut(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	sess, err := m.Sessions.GetSession(r)
	if err != nil {
		m.Log.Warn("session decode failed during logout", zap.Error(err))
	}
	if id := auth.FlowID(sess); id != "" {
		if err := m.Flows.Delete(ctx, id); err != nil {
			m.Log.Warn("delete flow failed", zap.Error(err))
		}
	}
	auth.SignOut(sess)
	return sess.Save(r, w)
}
