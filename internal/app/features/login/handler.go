// internal/app/features/login/handler.go
package login

import (
	"context"
	"errors"
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/scholarhub/internal/app/features/errors"
	accountstore "github.com/dalemusser/scholarhub/internal/app/store/accounts"
	flowstore "github.com/dalemusser/scholarhub/internal/app/store/flows"
	"github.com/dalemusser/scholarhub/internal/app/system/accountflow"
	"github.com/dalemusser/scholarhub/internal/app/system/auditlog"
	"github.com/dalemusser/scholarhub/internal/app/system/auth"
	"github.com/dalemusser/scholarhub/internal/app/system/authutil"
	"github.com/dalemusser/scholarhub/internal/app/system/metrics"
	"github.com/dalemusser/scholarhub/internal/app/system/ratelimit"
	"github.com/dalemusser/scholarhub/internal/app/system/timeouts"
	"github.com/dalemusser/scholarhub/internal/app/system/verification"
	"github.com/dalemusser/scholarhub/internal/app/system/viewdata"
	"github.com/dalemusser/scholarhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

const invalidCredentials = "Invalid email or password."

type Handler struct {
	Accounts *accountstore.Store
	Flow     *accountflow.Manager
	Guard    *ratelimit.Guard
	ErrLog   *uierrors.ErrorLogger
	Metrics  *metrics.Metrics
	Log      *zap.Logger
	AuditLog *auditlog.Logger
}

func NewHandler(accounts *accountstore.Store, flow *accountflow.Manager, guard *ratelimit.Guard, errLog *uierrors.ErrorLogger, m *metrics.Metrics, logger *zap.Logger) *Handler {
	return &Handler{
		Accounts: accounts,
		Flow:     flow,
		Guard:    guard,
		ErrLog:   errLog,
		Metrics:  m,
		Log:      logger,
	}
}

type loginData struct {
	viewdata.BaseVM
	Email     string
	ReturnURL string
	Error     string
}

type verifyData struct {
	viewdata.BaseVM
	MaskedEmail string
	Purpose     string
	Error       string
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, status int, email, ret, msg string) {
	data := loginData{
		BaseVM:    viewdata.NewBaseVM(r, "Sign in", "/"),
		Email:     email,
		ReturnURL: ret,
		Error:     msg,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	templates.Render(w, r, "login", data)
}

func (h *Handler) renderVerify(w http.ResponseWriter, r *http.Request, status int, email string, purpose flowstore.Purpose, msg string) {
	data := verifyData{
		BaseVM:      viewdata.NewBaseVM(r, "Verify your email", "/login"),
		MaskedEmail: MaskEmail(email),
		Purpose:     string(purpose),
		Error:       msg,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	templates.Render(w, r, "verify_email", data)
}

// MaskEmail keeps the first character of the local part and the domain:
// "ana@example.com" becomes "a**@example.com".
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return email
	}
	local := []rune(email[:at])
	if len(local) == 1 {
		return email
	}
	return string(local[0]) + strings.Repeat("*", len(local)-1) + email[at:]
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET|POST /login                                                             |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	h.renderLogin(w, r, http.StatusOK, "", query.Get(r, "return"), "")
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/login")
		return
	}
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	ret := strings.TrimSpace(r.FormValue("return"))

	if ok, msg := h.Guard.CheckLogin(r, email); !ok {
		h.Log.Warn("login rate limited", zap.String("ip", ratelimit.ClientIP(r)))
		h.AuditLog.LoginFailedRateLimit(r.Context(), r, email)
		h.renderLogin(w, r, http.StatusTooManyRequests, email, ret, msg)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	acct, err := h.Accounts.GetByEmail(ctx, email)
	if errors.Is(err, accountstore.ErrNotFound) {
		h.Metrics.LoginFailed()
		h.AuditLog.LoginFailedUserNotFound(ctx, r, email)
		h.renderLogin(w, r, http.StatusUnauthorized, email, ret, invalidCredentials)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "account lookup failed", err, "A database error occurred.", "/login")
		return
	}
	if !authutil.CheckPassword(acct.PasswordHash, password) {
		h.Metrics.LoginFailed()
		h.Log.Info("login failed: bad password", zap.String("account_id", acct.ID.Hex()))
		h.AuditLog.LoginFailedWrongPassword(ctx, r, acct.ID, acct.Email)
		h.renderLogin(w, r, http.StatusUnauthorized, email, ret, invalidCredentials)
		return
	}
	if !acct.Active {
		h.Log.Info("login refused: inactive account", zap.String("account_id", acct.ID.Hex()))
		h.AuditLog.LoginFailedUserDisabled(ctx, r, acct.ID, acct.Email)
		h.renderLogin(w, r, http.StatusForbidden, email, ret, "This account has been deactivated. Contact an administrator.")
		return
	}
	h.Guard.LoginSucceeded(email)
	h.AuditLog.LoginSuccess(ctx, r, acct.ID, acct.Email)

	st, err := h.Flow.Load(ctx, r)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load flow failed", err, "Something went wrong. Please try again.", "/login")
		return
	}

	if st.Flow.IsVerified(acct.ID) {
		dest, err := h.Flow.SignIn(ctx, w, r, st, acct, ret)
		if err != nil {
			h.ErrLog.LogServerError(w, r, "sign in failed", err, "Something went wrong. Please try again.", "/login")
			return
		}
		http.Redirect(w, r, dest, http.StatusSeeOther)
		return
	}

	err = h.Flow.BeginVerification(ctx, st, &acct, flowstore.PurposeLogin, ret)
	if errors.Is(err, accountflow.ErrLocked) {
		_, left := verification.IsLocked(&acct.Profile, h.Flow.Now())
		h.renderLogin(w, r, http.StatusTooManyRequests, email, ret,
			verification.Outcome{Result: verification.Locked, LockedFor: left}.Message())
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "issue verification code failed", err, "We could not send a verification code.", "/login")
		return
	}
	if err := h.Flow.Save(ctx, w, r, st); err != nil {
		h.ErrLog.LogServerError(w, r, "save flow failed", err, "Something went wrong. Please try again.", "/login")
		return
	}
	http.Redirect(w, r, accountflow.VerifyPath, http.StatusSeeOther)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET|POST /accounts/verify-email                                             |
*─────────────────────────────────────────────────────────────────────────────*/

// pendingAccount returns the account the flow is verifying, or ok=false when
// there is none.
func (h *Handler) pendingAccount(ctx context.Context, st accountflow.State) (models.Account, bool, error) {
	if st.Flow.PendingAccountID == nil {
		return models.Account{}, false, nil
	}
	acct, err := h.Accounts.GetByID(ctx, *st.Flow.PendingAccountID)
	if errors.Is(err, accountstore.ErrNotFound) {
		return models.Account{}, false, nil
	}
	if err != nil {
		return models.Account{}, false, err
	}
	return acct, true, nil
}

func (h *Handler) ServeVerify(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	st, err := h.Flow.Load(ctx, r)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load flow failed", err, "Something went wrong. Please try again.", "/login")
		return
	}
	acct, ok, err := h.pendingAccount(ctx, st)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "pending account lookup failed", err, "A database error occurred.", "/login")
		return
	}
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	h.renderVerify(w, r, http.StatusOK, acct.Email, st.Flow.Purpose, "")
}

func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", accountflow.VerifyPath)
		return
	}
	code := strings.TrimSpace(r.FormValue("code"))

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	st, err := h.Flow.Load(ctx, r)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load flow failed", err, "Something went wrong. Please try again.", "/login")
		return
	}
	acct, ok, err := h.pendingAccount(ctx, st)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "pending account lookup failed", err, "A database error occurred.", "/login")
		return
	}
	purpose := st.Flow.Purpose

	var out verification.Outcome
	if ok {
		out = verification.Evaluate(&acct.Profile, code, h.Flow.Now())
		if err := h.Accounts.SaveVerification(ctx, acct.ID, acct.Profile); err != nil {
			h.ErrLog.LogServerError(w, r, "save verification state failed", err, "A database error occurred.", accountflow.VerifyPath)
			return
		}
	} else {
		out = verification.Evaluate(nil, code, h.Flow.Now())
	}
	h.Metrics.Verification(string(purpose), out.Result.String())

	switch out.Result {
	case verification.Verified:
	case verification.NoPending:
		h.renderVerify(w, r, http.StatusBadRequest, "", purpose, out.Message())
		return
	case verification.Locked:
		h.Log.Warn("verification locked", zap.String("account_id", acct.ID.Hex()))
		h.AuditLog.VerificationFailed(ctx, r, acct.ID, out.Result.String())
		h.renderVerify(w, r, http.StatusTooManyRequests, acct.Email, purpose, out.Message())
		return
	default:
		h.AuditLog.VerificationFailed(ctx, r, acct.ID, out.Result.String())
		h.renderVerify(w, r, http.StatusUnprocessableEntity, acct.Email, purpose, out.Message())
		return
	}

	if !acct.Active {
		h.renderLogin(w, r, http.StatusForbidden, acct.Email, "", "This account has been deactivated. Contact an administrator.")
		return
	}

	ret := st.Flow.ReturnURL
	st.Flow.MarkVerified(acct.ID)
	dest, err := h.Flow.SignIn(ctx, w, r, st, acct, ret)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "sign in failed", err, "Something went wrong. Please try again.", "/login")
		return
	}
	h.Log.Info("email verified",
		zap.String("account_id", acct.ID.Hex()),
		zap.String("purpose", string(purpose)))
	h.AuditLog.EmailVerified(ctx, r, acct.ID, string(purpose))
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /accounts/resend-verification                                          |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleResend(w http.ResponseWriter, r *http.Request) {
	sm := h.Flow.Sessions
	if ok, msg := h.Guard.CheckCodeRequest(r); !ok {
		sm.AddFlash(w, r, auth.FlashError, msg)
		http.Redirect(w, r, accountflow.VerifyPath, http.StatusSeeOther)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	st, err := h.Flow.Load(ctx, r)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load flow failed", err, "Something went wrong. Please try again.", "/login")
		return
	}
	acct, ok, err := h.pendingAccount(ctx, st)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "pending account lookup failed", err, "A database error occurred.", "/login")
		return
	}
	if !ok {
		sm.AddFlash(w, r, auth.FlashWarning, "No verification is in progress. Please sign in again.")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	err = h.Flow.IssueCode(ctx, &acct)
	if errors.Is(err, accountflow.ErrLocked) {
		_, left := verification.IsLocked(&acct.Profile, h.Flow.Now())
		sm.AddFlash(w, r, auth.FlashError, verification.Outcome{Result: verification.Locked, LockedFor: left}.Message())
		http.Redirect(w, r, accountflow.VerifyPath, http.StatusSeeOther)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "resend verification code failed", err, "We could not send a verification code.", accountflow.VerifyPath)
		return
	}
	h.Log.Info("verification code resent", zap.String("account_id", acct.ID.Hex()))
	sm.AddFlash(w, r, auth.FlashSuccess, "A new code has been sent to your email. It expires in "+
		verification.HumanizeWait(verification.CodeTTL)+".")
	http.Redirect(w, r, accountflow.VerifyPath, http.StatusSeeOther)
}
