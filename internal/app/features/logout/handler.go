// internal/app/features/logout/handler.go
package logout

import (
	"context"
	"net/http"

	"github.com/dalemusser/scholarhub/internal/app/system/accountflow"
	"github.com/dalemusser/scholarhub/internal/app/system/auditlog"
	"github.com/dalemusser/scholarhub/internal/app/system/auth"
	"github.com/dalemusser/scholarhub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

type Handler struct {
	Flow     *accountflow.Manager
	Log      *zap.Logger
	AuditLog *auditlog.Logger
}

func NewHandler(flow *accountflow.Manager, logger *zap.Logger) *Handler {
	return &Handler{
		Flow: flow,
		Log:  logger,
	}
}

// ServeLogout handles GET and POST /logout. The session cookie is expired and
// the server-side flow is deleted, so the next login in this browser needs a
// fresh email code.
func (h *Handler) ServeLogout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if u, ok := auth.CurrentUser(r); ok {
		h.AuditLog.Logout(ctx, r, u.ID)
	}
	if err := h.Flow.SignOut(ctx, w, r); err != nil {
		h.Log.Error("logout: save session", zap.Error(err))
	}

	// HTMX handling: use HX-Redirect to force a client-side navigation to "/".
	if r.Header.Get("HX-Request") != "" {
		w.Header().Set("HX-Redirect", "/")
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
