// internal/app/features/dashboard/admin.go
package dashboard

import (
	"context"
	"net/http"

	"github.com/dalemusser/scholarhub/internal/app/system/timeouts"
	"github.com/dalemusser/scholarhub/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

type adminData struct {
	viewdata.BaseVM
	Approved       int64
	Pending        int64
	ConsentPending int
	Papers         int64
}

func (h *Handler) ServeAdmin(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	data := adminData{BaseVM: viewdata.NewBaseVM(r, "Admin dashboard", "/")}
	var err error
	if data.Approved, data.Pending, err = h.Accounts.CountByApproval(ctx); err != nil {
		h.ErrLog.LogServerError(w, r, "count accounts failed", err, "A database error occurred.", "/")
		return
	}
	consent, err := h.Accounts.ListConsentPending(ctx)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "count consent reviews failed", err, "A database error occurred.", "/")
		return
	}
	data.ConsentPending = len(consent)
	if data.Papers, err = h.Papers.Count(ctx); err != nil {
		h.ErrLog.LogServerError(w, r, "count papers failed", err, "A database error occurred.", "/")
		return
	}

	h.Log.Debug("admin dashboard served", zap.String("user", data.UserName))
	templates.Render(w, r, "admin_dashboard", data)
}
