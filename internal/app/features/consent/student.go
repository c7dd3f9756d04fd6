// internal/app/features/consent/student.go
package consent

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/scholarhub/internal/app/system/auth"
	"github.com/dalemusser/scholarhub/internal/app/system/authz"
	consentsvc "github.com/dalemusser/scholarhub/internal/app/system/consent"
	"github.com/dalemusser/scholarhub/internal/app/system/timeouts"
	"github.com/dalemusser/scholarhub/internal/app/system/viewdata"
	"github.com/dalemusser/scholarhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

type consentData struct {
	viewdata.BaseVM
	StatusLabel string
	Consented   bool
	Pending     bool
	ConsentDate string
	Adult       bool
	AgeKnown    bool
	HasFile     bool
	FileURL     string
	Error       string
}

func (h *Handler) renderConsent(w http.ResponseWriter, r *http.Request, status int, a models.Account, msg string) {
	age := a.Age(time.Now())
	data := consentData{
		BaseVM:      viewdata.NewBaseVM(r, "Name consent", "/dashboard"),
		StatusLabel: a.Profile.ConsentStatus.Label(),
		Consented:   a.Profile.ConsentStatus.Normalize() == models.ConsentConsented,
		Pending:     a.Profile.ConsentStatus.Normalize() == models.ConsentPendingGuardian,
		Adult:       age >= consentsvc.AdultAge,
		AgeKnown:    age >= 0,
		HasFile:     a.Profile.ConsentFile != "",
		FileURL:     "/accounts/consent-file/" + a.ID.Hex(),
		Error:       msg,
	}
	if a.Profile.ConsentDate != nil {
		data.ConsentDate = a.Profile.ConsentDate.Format("January 2, 2006")
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	templates.Render(w, r, "consent_page", data)
}

// ServeConsent handles GET /accounts/consent.
func (h *Handler) ServeConsent(w http.ResponseWriter, r *http.Request) {
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	a, err := h.Accounts.GetByID(ctx, uid)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load account failed", err, "A database error occurred.", "/dashboard")
		return
	}
	h.renderConsent(w, r, http.StatusOK, a, "")
}

// HandleUpdate handles POST /accounts/update-consent. Adults consent for
// themselves; minors upload a signed guardian form. action=revoke withdraws a
// granted consent.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, consentsvc.MaxFileSize+(1<<20))
	var parseErr error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		parseErr = r.ParseMultipartForm(8 << 20)
	} else {
		parseErr = r.ParseForm()
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	a, err := h.Accounts.GetByID(ctx, uid)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load account failed", err, "A database error occurred.", ConsentPath)
		return
	}
	if parseErr != nil {
		var tooBig *http.MaxBytesError
		if errors.As(parseErr, &tooBig) {
			h.renderConsent(w, r, http.StatusRequestEntityTooLarge, a, "File size exceeds 10MB limit.")
			return
		}
		h.ErrLog.LogBadRequest(w, r, "parse form failed", parseErr, "Invalid form data.", ConsentPath)
		return
	}

	var (
		action string
		flash  string
	)
	switch {
	case r.FormValue("action") == "revoke":
		action, flash = "revoked", "Your consent has been withdrawn. Your name is now shown as initials."
		_, err = h.Consent.Revoke(ctx, uid)

	case a.Age(time.Now()) >= consentsvc.AdultAge:
		action, flash = "self_consented", "Thank you. Your full name may now be shown on your papers."
		_, err = h.Consent.SelfConsent(ctx, uid, r.FormValue("agree_terms") != "")

	default:
		action, flash = "guardian_submitted", "Your guardian's consent form was uploaded and is awaiting review."
		up := consentsvc.Upload{}
		if file, header, ferr := r.FormFile("consent_file"); ferr == nil {
			defer file.Close()
			up = consentsvc.Upload{
				Filename:    header.Filename,
				Size:        header.Size,
				ContentType: header.Header.Get("Content-Type"),
				Body:        file,
			}
		}
		_, err = h.Consent.SubmitGuardianForm(ctx, uid, r.FormValue("agree_terms") != "", up)
	}

	if err != nil {
		if !userFacing(err) {
			h.ErrLog.LogServerError(w, r, "update consent failed", err, consentsvc.Message(err), ConsentPath)
			return
		}
		status, msg := http.StatusUnprocessableEntity, consentsvc.Message(err)
		if errors.Is(err, consentsvc.ErrWrongState) {
			status = http.StatusConflict
			if action == "revoked" {
				msg = "There is no consent to withdraw."
			}
		}
		h.renderConsent(w, r, status, a, msg)
		return
	}

	h.Metrics.ConsentChanged(action)
	h.Log.Info("consent updated", zap.String("account_id", uid.Hex()), zap.String("action", action))
	h.Sessions.AddFlash(w, r, auth.FlashSuccess, flash)
	http.Redirect(w, r, ConsentPath, http.StatusSeeOther)
}
