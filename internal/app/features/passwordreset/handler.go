// internal/app/features/passwordreset/handler.go
package passwordreset

import (
	"context"
	"errors"
	"fmt"
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
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

const (
	ForgotPath = "/accounts/forgot-password"
	VerifyPath = "/accounts/verify-password-reset"
	ResendPath = "/accounts/resend-password-reset"

	metricPurpose = "password_reset"
)

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

type forgotData struct {
	viewdata.BaseVM
	Email  string
	Error  string
	Errors map[string]string
}

type verifyData struct {
	viewdata.BaseVM
	Error string
}

func (h *Handler) renderForgot(w http.ResponseWriter, r *http.Request, status int, email, msg string, errs map[string]string) {
	data := forgotData{
		BaseVM: viewdata.NewBaseVM(r, "Reset your password", "/login"),
		Email:  email,
		Error:  msg,
		Errors: errs,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	templates.Render(w, r, "forgot_password", data)
}

func (h *Handler) renderVerify(w http.ResponseWriter, r *http.Request, status int, msg string) {
	data := verifyData{
		BaseVM: viewdata.NewBaseVM(r, "Enter your reset code", ForgotPath),
		Error:  msg,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	templates.Render(w, r, "verify_password_reset", data)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET|POST /accounts/forgot-password                                          |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeForgot(w http.ResponseWriter, r *http.Request) {
	h.renderForgot(w, r, http.StatusOK, "", "", nil)
}

func (h *Handler) HandleForgot(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", ForgotPath)
		return
	}
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	confirm := r.FormValue("confirm_password")

	errs := map[string]string{}
	if !authutil.IsValidEmail(email) {
		errs["email"] = "Enter a valid email address."
	}
	if err := authutil.ValidatePasswordPair(password, confirm); err != nil {
		errs["password"] = capitalize(err.Error()) + "."
	}
	if len(errs) > 0 {
		h.renderForgot(w, r, http.StatusUnprocessableEntity, email, "", errs)
		return
	}

	if ok, msg := h.Guard.CheckCodeRequest(r); !ok {
		h.renderForgot(w, r, http.StatusTooManyRequests, email, msg, nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	acct, err := h.Accounts.GetByEmail(ctx, email)
	if errors.Is(err, accountstore.ErrNotFound) {
		// Same response as a real request so the form does not reveal which
		// emails are registered.
		h.Log.Info("password reset requested for unknown email")
		http.Redirect(w, r, VerifyPath, http.StatusSeeOther)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "account lookup failed", err, "A database error occurred.", ForgotPath)
		return
	}

	now := h.Flow.Now()
	if wait := verification.ResetWait(acct.Profile, now); wait > 0 {
		h.renderForgot(w, r, http.StatusTooManyRequests, email,
			fmt.Sprintf("A password reset was requested recently. You can request another in %s.", verification.HumanizeWait(wait)), nil)
		return
	}
	if locked, left := verification.IsLocked(&acct.Profile, now); locked {
		h.renderForgot(w, r, http.StatusTooManyRequests, email,
			verification.Outcome{Result: verification.Locked, LockedFor: left}.Message(), nil)
		return
	}

	hash, err := authutil.HashPassword(password)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "hash password failed", err, "Something went wrong. Please try again.", ForgotPath)
		return
	}
	code, err := verification.Issue(&acct.Profile, now)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "generate reset code failed", err, "Something went wrong. Please try again.", ForgotPath)
		return
	}
	if err := h.Accounts.SaveVerification(ctx, acct.ID, acct.Profile); err != nil {
		h.ErrLog.LogServerError(w, r, "save reset code failed", err, "A database error occurred.", ForgotPath)
		return
	}

	st, err := h.Flow.Load(ctx, r)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load flow failed", err, "Something went wrong. Please try again.", ForgotPath)
		return
	}
	st.Flow.PendingReset = &flowstore.PendingReset{
		AccountID:    acct.ID,
		PasswordHash: hash,
		RequestedAt:  now,
	}
	if err := h.Flow.Save(ctx, w, r, st); err != nil {
		h.ErrLog.LogServerError(w, r, "save flow failed", err, "Something went wrong. Please try again.", ForgotPath)
		return
	}
	if err := h.Accounts.SetResetRequested(ctx, acct.ID, now); err != nil {
		h.Log.Warn("record reset request failed", zap.String("account_id", acct.ID.Hex()), zap.Error(err))
	}
	h.Flow.Codes.PasswordResetCode(acct.Email, code, verification.HumanizeWait(verification.CodeTTL))
	h.Log.Info("password reset code issued", zap.String("account_id", acct.ID.Hex()))

	http.Redirect(w, r, VerifyPath, http.StatusSeeOther)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET|POST /accounts/verify-password-reset                                    |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeVerify(w http.ResponseWriter, r *http.Request) {
	h.renderVerify(w, r, http.StatusOK, "")
}

func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", VerifyPath)
		return
	}
	code := strings.TrimSpace(r.FormValue("code"))

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	st, err := h.Flow.Load(ctx, r)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load flow failed", err, "Something went wrong. Please try again.", ForgotPath)
		return
	}
	pending := st.Flow.PendingReset
	if pending == nil {
		out := verification.Evaluate(nil, code, h.Flow.Now())
		h.Metrics.Verification(metricPurpose, out.Result.String())
		h.renderVerify(w, r, http.StatusBadRequest, "No password reset is in progress. Please start again.")
		return
	}

	acct, err := h.Accounts.GetByID(ctx, pending.AccountID)
	if errors.Is(err, accountstore.ErrNotFound) {
		st.Flow.PendingReset = nil
		if err := h.Flow.Save(ctx, w, r, st); err != nil {
			h.Log.Warn("clear stale reset failed", zap.Error(err))
		}
		h.renderVerify(w, r, http.StatusBadRequest, "No password reset is in progress. Please start again.")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "account lookup failed", err, "A database error occurred.", VerifyPath)
		return
	}

	out := verification.Evaluate(&acct.Profile, code, h.Flow.Now())
	if err := h.Accounts.SaveVerification(ctx, acct.ID, acct.Profile); err != nil {
		h.ErrLog.LogServerError(w, r, "save verification state failed", err, "A database error occurred.", VerifyPath)
		return
	}
	h.Metrics.Verification(metricPurpose, out.Result.String())

	if !out.OK() {
		status := http.StatusUnprocessableEntity
		if out.Result == verification.Locked {
			status = http.StatusTooManyRequests
		}
		h.renderVerify(w, r, status, out.Message())
		return
	}

	if err := h.Accounts.SetPasswordHash(ctx, acct.ID, pending.PasswordHash); err != nil {
		h.ErrLog.LogServerError(w, r, "update password failed", err, "A database error occurred.", VerifyPath)
		return
	}
	st.Flow.PendingReset = nil
	if err := h.Flow.Save(ctx, w, r, st); err != nil {
		h.Log.Warn("clear reset state failed", zap.Error(err))
	}
	h.Log.Info("password reset", zap.String("account_id", acct.ID.Hex()))
	h.AuditLog.PasswordReset(ctx, r, acct.ID)

	h.Flow.Sessions.AddFlash(w, r, auth.FlashSuccess, "Your password has been reset. Please sign in.")
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /accounts/resend-password-reset                                        |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleResend mails a fresh code for the reset already in progress. The
// new password and the request cooldown are left as they are.
func (h *Handler) HandleResend(w http.ResponseWriter, r *http.Request) {
	sm := h.Flow.Sessions
	if ok, msg := h.Guard.CheckCodeRequest(r); !ok {
		sm.AddFlash(w, r, auth.FlashError, msg)
		http.Redirect(w, r, VerifyPath, http.StatusSeeOther)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	st, err := h.Flow.Load(ctx, r)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load flow failed", err, "Something went wrong. Please try again.", ForgotPath)
		return
	}
	pending := st.Flow.PendingReset
	if pending == nil {
		sm.AddFlash(w, r, auth.FlashWarning, "No password reset is in progress. Please start again.")
		http.Redirect(w, r, ForgotPath, http.StatusSeeOther)
		return
	}

	acct, err := h.Accounts.GetByID(ctx, pending.AccountID)
	if errors.Is(err, accountstore.ErrNotFound) {
		st.Flow.PendingReset = nil
		if err := h.Flow.Save(ctx, w, r, st); err != nil {
			h.Log.Warn("clear stale reset failed", zap.Error(err))
		}
		sm.AddFlash(w, r, auth.FlashWarning, "No password reset is in progress. Please start again.")
		http.Redirect(w, r, ForgotPath, http.StatusSeeOther)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "account lookup failed", err, "A database error occurred.", VerifyPath)
		return
	}

	now := h.Flow.Now()
	if locked, left := verification.IsLocked(&acct.Profile, now); locked {
		sm.AddFlash(w, r, auth.FlashError, verification.Outcome{Result: verification.Locked, LockedFor: left}.Message())
		http.Redirect(w, r, VerifyPath, http.StatusSeeOther)
		return
	}
	code, err := verification.Issue(&acct.Profile, now)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "generate reset code failed", err, "Something went wrong. Please try again.", VerifyPath)
		return
	}
	if err := h.Accounts.SaveVerification(ctx, acct.ID, acct.Profile); err != nil {
		h.ErrLog.LogServerError(w, r, "save reset code failed", err, "A database error occurred.", VerifyPath)
		return
	}
	h.Flow.Codes.PasswordResetCode(acct.Email, code, verification.HumanizeWait(verification.CodeTTL))
	h.Log.Info("password reset code resent", zap.String("account_id", acct.ID.Hex()))

	sm.AddFlash(w, r, auth.FlashSuccess, "A new code has been sent to your email. It expires in "+
		verification.HumanizeWait(verification.CodeTTL)+".")
	http.Redirect(w, r, VerifyPath, http.StatusSeeOther)
}
