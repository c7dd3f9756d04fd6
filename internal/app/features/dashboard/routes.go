// internal/app/features/dashboard/routes.go
package dashboard

import (
	"github.com/dalemusser/scholarhub/internal/app/system/auth"
	"github.com/dalemusser/scholarhub/internal/app/system/gates"
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers /dashboard and the pending-approval page. Both
// require a signed-in user.
func MountRoutes(r chi.Router, h *Handler, sm *auth.SessionManager) {
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Get("/dashboard", h.ServeDashboard)
		pr.Get(gates.PendingPath, h.ServePending)
	})
}
