// internal/app/features/approvals/approve.go
package approvals

import (
	"context"
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/scholarhub/internal/app/features/errors"
	accountstore "github.com/dalemusser/scholarhub/internal/app/store/accounts"
	"github.com/dalemusser/scholarhub/internal/app/system/auth"
	"github.com/dalemusser/scholarhub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// HandleApprove handles POST /accounts/approve/{id}.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(r)
	if !ok {
		uierrors.RenderNotFound(w, r, "Account not found.", ListPath)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	res, err := h.Approval.Approve(ctx, id)
	if h.approvalFailed(w, r, id, err) {
		return
	}
	h.approved(w, r, res)
}

// HandleDeny handles POST /accounts/deny/{id}. The account and its embedded
// profile are deleted; a stored guardian form is removed afterwards.
func (h *Handler) HandleDeny(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(r)
	if !ok {
		uierrors.RenderNotFound(w, r, "Account not found.", ListPath)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	a, err := h.Accounts.GetByID(ctx, id)
	if errors.Is(err, accountstore.ErrNotFound) {
		uierrors.RenderNotFound(w, r, "That account no longer exists.", ListPath)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load account failed", err, "A database error occurred.", ListPath)
		return
	}
	if a.Profile.Approved || a.Role.BypassesApproval() {
		h.Sessions.AddFlash(w, r, auth.FlashWarning, "Approved accounts are removed from user management, not the approval queue.")
		http.Redirect(w, r, ListPath, http.StatusSeeOther)
		return
	}

	deleted, err := h.Accounts.Delete(ctx, id)
	if err != nil && !errors.Is(err, accountstore.ErrNotFound) {
		h.ErrLog.LogServerError(w, r, "delete account failed", err, "Could not deny the account.", ListPath)
		return
	}
	if err == nil {
		h.Consent.DiscardFiles(ctx, deleted)
	}
	h.Log.Info("account denied", zap.String("account_id", id.Hex()), zap.String("role", string(a.Role)))
	h.AuditLog.AccountDenied(ctx, r, id, a.Email)

	h.Sessions.AddFlash(w, r, auth.FlashSuccess, accountstore.DisplayName(a)+" was denied and removed.")
	http.Redirect(w, r, ListPath, http.StatusSeeOther)
}
