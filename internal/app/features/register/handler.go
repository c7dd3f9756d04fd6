// internal/app/features/register/handler.go
package register

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	uierrors "github.com/dalemusser/scholarhub/internal/app/features/errors"
	accountstore "github.com/dalemusser/scholarhub/internal/app/store/accounts"
	flowstore "github.com/dalemusser/scholarhub/internal/app/store/flows"
	"github.com/dalemusser/scholarhub/internal/app/system/accountflow"
	"github.com/dalemusser/scholarhub/internal/app/system/auditlog"
	"github.com/dalemusser/scholarhub/internal/app/system/authutil"
	"github.com/dalemusser/scholarhub/internal/app/system/metrics"
	"github.com/dalemusser/scholarhub/internal/app/system/registration"
	"github.com/dalemusser/scholarhub/internal/app/system/timeouts"
	"github.com/dalemusser/scholarhub/internal/app/system/viewdata"
	"github.com/dalemusser/scholarhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

type Handler struct {
	Accounts *accountstore.Store
	Flow     *accountflow.Manager
	ErrLog   *uierrors.ErrorLogger
	Metrics  *metrics.Metrics
	Log      *zap.Logger
	AuditLog *auditlog.Logger
}

func NewHandler(accounts *accountstore.Store, flow *accountflow.Manager, errLog *uierrors.ErrorLogger, m *metrics.Metrics, logger *zap.Logger) *Handler {
	return &Handler{
		Accounts: accounts,
		Flow:     flow,
		ErrLog:   errLog,
		Metrics:  m,
		Log:      logger,
	}
}

type option struct {
	Value string
	Label string
}

type formData struct {
	viewdata.BaseVM
	Input  registration.Input
	Errors registration.Errors
	Roles  []option
	Months []option
}

func roleOptions() []option {
	var out []option
	for _, r := range models.RegistrableRoles() {
		out = append(out, option{Value: string(r), Label: r.Label()})
	}
	return out
}

func monthOptions() []option {
	out := make([]option, 0, 12)
	for m := time.January; m <= time.December; m++ {
		out = append(out, option{Value: strconv.Itoa(int(m)), Label: m.String()})
	}
	return out
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, in registration.Input, errs registration.Errors) {
	in.Password = ""
	in.ConfirmPassword = ""
	data := formData{
		BaseVM: viewdata.NewBaseVM(r, "Create an account", "/"),
		Input:  in,
		Errors: errs,
		Roles:  roleOptions(),
		Months: monthOptions(),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	templates.Render(w, r, "register", data)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /accounts/register                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeRegister(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, registration.Input{}, nil)
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /accounts/register                                                     |
*─────────────────────────────────────────────────────────────────────────────*/

func inputFromForm(r *http.Request) registration.Input {
	return registration.Input{
		Email:           strings.TrimSpace(r.FormValue(registration.FieldEmail)),
		Password:        r.FormValue(registration.FieldPassword),
		ConfirmPassword: r.FormValue(registration.FieldConfirm),
		Role:            r.FormValue(registration.FieldRole),
		FirstName:       r.FormValue(registration.FieldFirst),
		MiddleInitial:   r.FormValue(registration.FieldMiddle),
		LastName:        r.FormValue(registration.FieldLast),
		Suffix:          r.FormValue(registration.FieldSuffix),
		BirthMonth:      r.FormValue("birth_month"),
		BirthDay:        r.FormValue("birth_day"),
		BirthYear:       r.FormValue("birth_year"),
		AgreeTerms:      r.FormValue(registration.FieldTerms) != "",
		TookSHS:         r.FormValue("took_shs") != "",
		G11:             r.FormValue(registration.FieldG11),
		G12:             r.FormValue(registration.FieldG12),
	}
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/accounts/register")
		return
	}
	in := inputFromForm(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	reg, errs := registration.Validate(in, h.Flow.Now())
	if !errs.Has(registration.FieldEmail) {
		exists, err := h.Accounts.EmailExists(ctx, reg.Email)
		if err != nil {
			h.ErrLog.LogServerError(w, r, "email lookup failed", err, "A database error occurred.", "/accounts/register")
			return
		}
		if exists {
			errs[registration.FieldEmail] = "An account with this email already exists."
		}
	}
	if len(errs) > 0 {
		h.render(w, r, http.StatusUnprocessableEntity, in, errs)
		return
	}

	hash, err := authutil.HashPassword(reg.Password)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "hash password failed", err, "Something went wrong. Please try again.", "/accounts/register")
		return
	}
	acct, err := h.Accounts.Create(ctx, reg.Account(hash))
	if errors.Is(err, accountstore.ErrDuplicateEmail) {
		h.render(w, r, http.StatusUnprocessableEntity, in, registration.Errors{
			registration.FieldEmail: "An account with this email already exists.",
		})
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "create account failed", err, "A database error occurred.", "/accounts/register")
		return
	}
	h.Metrics.Registered()
	h.AuditLog.Registered(ctx, r, acct.ID, acct.Email, string(acct.Role))
	h.Log.Info("account registered",
		zap.String("account_id", acct.ID.Hex()),
		zap.String("role", string(acct.Role)))

	st, err := h.Flow.Load(ctx, r)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load flow failed", err, "Something went wrong. Please try again.", "/accounts/register")
		return
	}
	if err := h.Flow.BeginVerification(ctx, st, &acct, flowstore.PurposeRegistration, ""); err != nil {
		h.ErrLog.LogServerError(w, r, "issue verification code failed", err, "We could not send a verification code.", "/login")
		return
	}
	if err := h.Flow.Save(ctx, w, r, st); err != nil {
		h.ErrLog.LogServerError(w, r, "save flow failed", err, "Something went wrong. Please try again.", "/login")
		return
	}
	http.Redirect(w, r, accountflow.VerifyPath, http.StatusSeeOther)
}
