// internal/app/features/users/actions.go
package users

import (
	"context"
	"errors"
	"net/http"

	accountstore "github.com/dalemusser/scholarhub/internal/app/store/accounts"
	"github.com/dalemusser/scholarhub/internal/app/system/auth"
	"github.com/dalemusser/scholarhub/internal/app/system/navigation"
	"github.com/dalemusser/scholarhub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// HandleDelete handles POST /users/{id}/delete. The account's consent file
// is removed and any author it claimed becomes unclaimed; papers keep their
// authors.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	back := navigation.SafeBackURL(r, navigation.UsersBackURL)
	id, ok := accountID(r)
	if !ok {
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	if isSelf(r, id) {
		h.Sessions.AddFlash(w, r, auth.FlashError, "You cannot delete your own account.")
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	a, err := h.Accounts.Delete(ctx, id)
	if errors.Is(err, accountstore.ErrNotFound) {
		h.Sessions.AddFlash(w, r, auth.FlashInfo, "That user was already deleted.")
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "delete user failed", err, "Could not delete the user.", ListPath)
		return
	}

	h.Consent.DiscardFiles(ctx, a)
	if err := h.Authors.Release(ctx, a.ID); err != nil {
		h.Log.Warn("failed to release authors of deleted account", zap.String("account_id", a.ID.Hex()), zap.Error(err))
	}
	if h.Catalog != nil {
		h.Catalog.AuthorsChanged(ctx)
	}

	h.Log.Info("user deleted", zap.String("account_id", a.ID.Hex()), zap.String("email", a.Email))
	h.AuditLog.UserDeleted(ctx, r, a.ID, a.Email)
	h.Sessions.AddFlash(w, r, auth.FlashSuccess, "Deleted "+a.Email+".")
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// HandleToggleActive handles POST /users/{id}/toggle-active.
func (h *Handler) HandleToggleActive(w http.ResponseWriter, r *http.Request) {
	back := navigation.SafeBackURL(r, navigation.UsersBackURL)
	id, ok := accountID(r)
	if !ok {
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	if isSelf(r, id) {
		h.Sessions.AddFlash(w, r, auth.FlashError, "You cannot deactivate your own account.")
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	a, err := h.Accounts.GetByID(ctx, id)
	if errors.Is(err, accountstore.ErrNotFound) {
		h.Sessions.AddFlash(w, r, auth.FlashInfo, "That user no longer exists.")
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load user failed", err, "A database error occurred.", ListPath)
		return
	}
	if err := h.Accounts.SetActive(ctx, id, !a.Active); err != nil {
		h.ErrLog.LogServerError(w, r, "toggle user failed", err, "Could not update the user.", ListPath)
		return
	}

	state := "Activated "
	if a.Active {
		state = "Deactivated "
	}
	h.Log.Info("user active toggled", zap.String("account_id", id.Hex()), zap.Bool("active", !a.Active))
	h.AuditLog.UserActiveChanged(ctx, r, id, !a.Active)
	h.Sessions.AddFlash(w, r, auth.FlashSuccess, state+a.Email+".")
	http.Redirect(w, r, back, http.StatusSeeOther)
}
