// internal/app/features/users/routes.go
package users

import (
	"github.com/dalemusser/scholarhub/internal/app/system/auth"
	"github.com/dalemusser/scholarhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes returns the admin-only user management router, mounted at /users.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)
	r.Use(sm.RequireCapability(models.Role.CanManageUsers))

	r.Get("/", h.ServeList)
	r.Get("/{id}/edit", h.ServeEdit)
	r.Post("/{id}/edit", h.HandleEdit)
	r.Post("/{id}/delete", h.HandleDelete)
	r.Post("/{id}/toggle-active", h.HandleToggleActive)
	return r
}
