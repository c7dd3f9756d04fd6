// internal/app/features/approvals/edit.go
package approvals

import (
	"context"
	"errors"
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/scholarhub/internal/app/features/errors"
	accountstore "github.com/dalemusser/scholarhub/internal/app/store/accounts"
	"github.com/dalemusser/scholarhub/internal/app/system/approval"
	"github.com/dalemusser/scholarhub/internal/app/system/auth"
	"github.com/dalemusser/scholarhub/internal/app/system/registration"
	"github.com/dalemusser/scholarhub/internal/app/system/timeouts"
	"github.com/dalemusser/scholarhub/internal/app/system/viewdata"
	"github.com/dalemusser/scholarhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
)

type roleOption struct {
	Value    string
	Label    string
	Selected bool
}

type editData struct {
	viewdata.BaseVM
	ID     string
	Email  string
	Edit   approval.Edit
	Roles  []roleOption
	Errors registration.Errors
}

func editFromAccount(a models.Account) approval.Edit {
	return approval.Edit{
		FirstName:     a.Profile.PendingFirstName,
		MiddleInitial: a.Profile.PendingMiddleInitial,
		LastName:      a.Profile.PendingLastName,
		Suffix:        a.Profile.PendingSuffix,
		TookSHS:       a.Profile.TookSHS,
		G11:           a.Profile.PendingG11,
		G12:           a.Profile.PendingG12,
		Role:          a.Role,
	}
}

func editFromForm(r *http.Request) approval.Edit {
	role, _ := models.ParseRole(r.FormValue("role"))
	return approval.Edit{
		FirstName:     r.FormValue(registration.FieldFirst),
		MiddleInitial: r.FormValue(registration.FieldMiddle),
		LastName:      r.FormValue(registration.FieldLast),
		Suffix:        r.FormValue(registration.FieldSuffix),
		TookSHS:       r.FormValue("took_shs") != "",
		G11:           strings.TrimSpace(r.FormValue(registration.FieldG11)),
		G12:           strings.TrimSpace(r.FormValue(registration.FieldG12)),
		Role:          role,
	}
}

func (h *Handler) renderEdit(w http.ResponseWriter, r *http.Request, status int, a models.Account, e approval.Edit, errs registration.Errors) {
	data := editData{
		BaseVM: viewdata.NewBaseVM(r, "Edit & approve", ListPath),
		ID:     a.ID.Hex(),
		Email:  a.Email,
		Edit:   e,
		Errors: errs,
	}
	for _, role := range models.RegistrableRoles() {
		data.Roles = append(data.Roles, roleOption{Value: string(role), Label: role.Label(), Selected: role == e.Role})
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	templates.Render(w, r, "approve_edit", data)
}

// loadPending fetches the account for the edit form. It renders and returns
// false when the account is missing or already approved.
func (h *Handler) loadPending(ctx context.Context, w http.ResponseWriter, r *http.Request) (models.Account, bool) {
	id, ok := accountID(r)
	if !ok {
		uierrors.RenderNotFound(w, r, "Account not found.", ListPath)
		return models.Account{}, false
	}
	a, err := h.Accounts.GetByID(ctx, id)
	if errors.Is(err, accountstore.ErrNotFound) {
		uierrors.RenderNotFound(w, r, "That account no longer exists.", ListPath)
		return models.Account{}, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load account failed", err, "A database error occurred.", ListPath)
		return models.Account{}, false
	}
	if a.Profile.Approved {
		h.Sessions.AddFlash(w, r, auth.FlashInfo, "That account was already approved.")
		http.Redirect(w, r, ListPath, http.StatusSeeOther)
		return models.Account{}, false
	}
	return a, true
}

// ServeEdit handles GET /accounts/approve-edit/{id}.
func (h *Handler) ServeEdit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	a, ok := h.loadPending(ctx, w, r)
	if !ok {
		return
	}
	h.renderEdit(w, r, http.StatusOK, a, editFromAccount(a), nil)
}

// HandleEdit handles POST /accounts/approve-edit/{id}: save the corrected
// pending identity, then approve.
func (h *Handler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", ListPath)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	a, ok := h.loadPending(ctx, w, r)
	if !ok {
		return
	}
	e := editFromForm(r)

	res, err := h.Approval.ApproveWithEdit(ctx, a.ID, e)
	var errs registration.Errors
	if errors.As(err, &errs) {
		h.renderEdit(w, r, http.StatusUnprocessableEntity, a, e, errs)
		return
	}
	if h.approvalFailed(w, r, a.ID, err) {
		return
	}
	h.approved(w, r, res)
}
