// internal/app/features/dashboard/pending.go
package dashboard

import (
	"net/http"

	"github.com/dalemusser/scholarhub/internal/app/system/auth"
	"github.com/dalemusser/scholarhub/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/templates"
)

type pendingData struct {
	viewdata.BaseVM
	Email string
	Role  string
}

// ServePending handles GET /accounts/pending, the only page an unapproved
// account can reach besides the public ones. Approved users go on to their
// dashboard.
func (h *Handler) ServePending(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	if u.MayEnter() {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	templates.Render(w, r, "pending_dashboard", pendingData{
		BaseVM: viewdata.NewBaseVM(r, "Awaiting approval", "/"),
		Email:  u.Email,
		Role:   u.Role.Label(),
	})
}
