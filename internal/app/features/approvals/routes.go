// internal/app/features/approvals/routes.go
package approvals

import (
	"github.com/dalemusser/scholarhub/internal/app/system/auth"
	"github.com/dalemusser/scholarhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the admin approval queue.
//
//	GET  /accounts/pending-accounts
//	POST /accounts/approve/{id}
//	GET  /accounts/approve-edit/{id}
//	POST /accounts/approve-edit/{id}
//	POST /accounts/deny/{id}
func MountRoutes(r chi.Router, h *Handler, sm *auth.SessionManager) {
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Use(sm.RequireCapability(models.Role.CanApproveAccounts))

		pr.Get(ListPath, h.ServeList)
		pr.Post("/accounts/approve/{id}", h.HandleApprove)
		pr.Get("/accounts/approve-edit/{id}", h.ServeEdit)
		pr.Post("/accounts/approve-edit/{id}", h.HandleEdit)
		pr.Post("/accounts/deny/{id}", h.HandleDeny)
	})
}
