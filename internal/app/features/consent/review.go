// internal/app/features/consent/review.go
package consent

import (
	"context"
	"errors"
	"net/http"
	"time"

	uierrors "github.com/dalemusser/scholarhub/internal/app/features/errors"
	accountstore "github.com/dalemusser/scholarhub/internal/app/store/accounts"
	"github.com/dalemusser/scholarhub/internal/app/system/auth"
	"github.com/dalemusser/scholarhub/internal/app/system/authz"
	consentsvc "github.com/dalemusser/scholarhub/internal/app/system/consent"
	"github.com/dalemusser/scholarhub/internal/app/system/objectstore"
	"github.com/dalemusser/scholarhub/internal/app/system/timeouts"
	"github.com/dalemusser/scholarhub/internal/app/system/viewdata"
	"github.com/dalemusser/scholarhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

type reviewRow struct {
	ID        string
	Name      string
	Email     string
	Age       int
	Submitted string
	HasFile   bool
}

type reviewData struct {
	viewdata.BaseVM
	Rows []reviewRow
}

// ServeReview handles GET /accounts/consents.
func (h *Handler) ServeReview(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	pending, err := h.Accounts.ListConsentPending(ctx)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list pending consents failed", err, "A database error occurred.", "/dashboard")
		return
	}

	now := time.Now()
	data := reviewData{BaseVM: viewdata.NewBaseVM(r, "Guardian consent review", "/dashboard")}
	for _, a := range pending {
		data.Rows = append(data.Rows, reviewRow{
			ID:        a.ID.Hex(),
			Name:      accountstore.DisplayName(a),
			Email:     a.Email,
			Age:       a.Age(now),
			Submitted: a.UpdatedAt.Format("Jan 2, 2006"),
			HasFile:   a.Profile.ConsentFile != "",
		})
	}
	templates.Render(w, r, "consent_review", data)
}

// review applies an approve or deny decision.
func (h *Handler) review(w http.ResponseWriter, r *http.Request, action string, apply func(context.Context, models.Account) (models.Account, error)) {
	id, ok := accountID(r)
	if !ok {
		uierrors.RenderNotFound(w, r, "Account not found.", ReviewPath)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	a, err := apply(ctx, models.Account{ID: id})
	switch {
	case errors.Is(err, consentsvc.ErrNotFound):
		uierrors.RenderNotFound(w, r, "That account no longer exists.", ReviewPath)
		return
	case errors.Is(err, consentsvc.ErrWrongState):
		h.Sessions.AddFlash(w, r, auth.FlashWarning, consentsvc.Message(err))
		http.Redirect(w, r, ReviewPath, http.StatusSeeOther)
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "consent review failed", err, consentsvc.Message(err), ReviewPath)
		return
	}

	_, _, reviewer, _ := authz.UserCtx(r)
	h.Metrics.ConsentChanged(action)
	h.AuditLog.ConsentReviewed(ctx, r, id, action == "approved")
	h.Log.Info("guardian consent reviewed",
		zap.String("account_id", id.Hex()),
		zap.String("reviewer_id", reviewer.Hex()),
		zap.String("action", action))
	h.Sessions.AddFlash(w, r, auth.FlashSuccess, "Consent for "+accountstore.DisplayName(a)+" "+action+".")
	http.Redirect(w, r, ReviewPath, http.StatusSeeOther)
}

// HandleApprove handles POST /accounts/approve-consent/{id}.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, "approved", func(ctx context.Context, a models.Account) (models.Account, error) {
		return h.Consent.Approve(ctx, a.ID)
	})
}

// HandleDeny handles POST /accounts/deny-consent/{id}.
func (h *Handler) HandleDeny(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, "denied", func(ctx context.Context, a models.Account) (models.Account, error) {
		return h.Consent.Deny(ctx, a.ID)
	})
}

// ServeFile handles GET /accounts/consent-file/{id}. Reviewers may open any
// form; students only their own.
func (h *Handler) ServeFile(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(r)
	if !ok {
		uierrors.RenderNotFound(w, r, "File not found.", "/")
		return
	}
	role, _, uid, _ := authz.UserCtx(r)
	if !role.CanReviewConsent() && uid != id {
		uierrors.RenderForbidden(w, r, "You do not have access to this file.", "/dashboard")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	rc, a, err := h.Consent.OpenForm(ctx, id)
	if errors.Is(err, consentsvc.ErrNotFound) || errors.Is(err, storage.ErrNotFound) {
		uierrors.RenderNotFound(w, r, "No consent form is on file.", ReviewPath)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "open consent file failed", err, "Could not open the file.", ReviewPath)
		return
	}
	defer rc.Close()

	if err := objectstore.WritePDF(w, rc, "guardian-consent-"+a.ID.Hex()+".pdf"); err != nil {
		h.Log.Warn("consent file download interrupted", zap.String("account_id", id.Hex()), zap.Error(err))
	}
}
